package deploy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
	"github.com/michalshavit1/salto/schema"
)

func orderElement(t *testing.T, memberIDs ...string) *element.Element {
	t.Helper()
	members := make([]any, 0, len(memberIDs))
	for _, id := range memberIDs {
		member := element.New("zendesk", "automation", "auto-"+id, map[string]any{
			"id":    json.Number(id),
			"title": "auto-" + id,
		})
		members = append(members, element.NewResolvedReference(member))
	}
	order := element.New("zendesk", schema.OrderKind("automation"), schema.OrderElementKey, map[string]any{
		schema.OrderMembersField: members,
	})
	return order
}

func TestReorderIssuesDensePositions(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	deployer := NewOrderDeployer(deployRegistry(t), client, logr.Discard())

	before := orderElement(t, "11", "22", "33")
	after := orderElement(t, "22", "33", "11")
	applied, errs := deployer.Deploy(context.Background(), schema.OrderKind("automation"),
		[]Change{Modification(before, after)})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(applied) != 1 {
		t.Fatalf("expected one applied change, got %d", len(applied))
	}

	requests := client.captured()
	if len(requests) != 1 {
		t.Fatalf("expected a single batched request, got %d", len(requests))
	}
	if requests[0].Method != "PUT" || requests[0].Path != "/api/v2/automations/update_many" {
		t.Fatalf("unexpected request line: %s %s", requests[0].Method, requests[0].Path)
	}
	want := map[string]any{"automations": []any{
		map[string]any{"id": int64(22), "position": 1},
		map[string]any{"id": int64(33), "position": 2},
		map[string]any{"id": int64(11), "position": 3},
	}}
	if diff := cmp.Diff(want, requests[0].Body); diff != "" {
		t.Fatalf("unexpected payload (-want +got):\n%s", diff)
	}
}

func TestReorderRejectsMultiChangeBatch(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	deployer := NewOrderDeployer(deployRegistry(t), client, logr.Discard())

	order := orderElement(t, "11", "22")
	applied, errs := deployer.Deploy(context.Background(), schema.OrderKind("automation"), []Change{
		Modification(order, order),
		Removal(order),
	})
	if len(applied) != 0 {
		t.Fatalf("rejected batch must apply nothing, got %d", len(applied))
	}
	if len(errs) != 2 {
		t.Fatalf("expected an error per change, got %d", len(errs))
	}
	for _, err := range errs {
		if !faults.IsCategory(err, faults.InvalidOrderChangeBatch) {
			t.Fatalf("expected invalid batch category, got %v", err)
		}
	}
	if len(client.captured()) != 0 {
		t.Fatalf("rejected batch must issue no requests")
	}
}

func TestReorderRejectsNonModification(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	deployer := NewOrderDeployer(deployRegistry(t), client, logr.Discard())

	applied, errs := deployer.Deploy(context.Background(), schema.OrderKind("automation"),
		[]Change{Addition(orderElement(t, "11"))})
	if len(applied) != 0 || len(errs) != 1 {
		t.Fatalf("expected rejection, got applied=%d errs=%d", len(applied), len(errs))
	}
	if !faults.IsCategory(errs[0], faults.InvalidOrderChangeBatch) {
		t.Fatalf("expected invalid batch category, got %v", errs[0])
	}
}

func TestReorderRejectsNonIntegerMemberIdentifier(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	deployer := NewOrderDeployer(deployRegistry(t), client, logr.Discard())

	member := element.New("zendesk", "automation", "bad", map[string]any{"id": "not-a-number"})
	order := element.New("zendesk", schema.OrderKind("automation"), schema.OrderElementKey, map[string]any{
		schema.OrderMembersField: []any{element.NewResolvedReference(member)},
	})
	applied, errs := deployer.Deploy(context.Background(), schema.OrderKind("automation"),
		[]Change{Modification(order, order)})
	if len(applied) != 0 || len(errs) != 1 {
		t.Fatalf("expected rejection, got applied=%d errs=%d", len(applied), len(errs))
	}
	if !faults.IsCategory(errs[0], faults.InvalidMemberIdentifier) {
		t.Fatalf("expected invalid member identifier, got %v", errs[0])
	}
	if len(client.captured()) != 0 {
		t.Fatalf("invalid batch must issue no requests")
	}
}
