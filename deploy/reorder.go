package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
	"github.com/michalshavit1/salto/schema"
	"github.com/michalshavit1/salto/service"
)

const defaultMemberIDField = "id"

// OrderDeployer applies ordered-collection changes. A valid batch is exactly
// one modification of the synthetic order element; it collapses into a single
// reorder request carrying dense 1-based positions for every member of the
// post-change sequence.
type OrderDeployer struct {
	registry *schema.Registry
	client   service.Client
	log      logr.Logger
}

func NewOrderDeployer(registry *schema.Registry, client service.Client, log logr.Logger) *OrderDeployer {
	return &OrderDeployer{registry: registry, client: client, log: log}
}

// Deploy handles the whole batch addressed at one order kind. On a rejected
// batch every change fails and no request goes out.
func (d *OrderDeployer) Deploy(ctx context.Context, orderKind string, changes []Change) ([]Change, []*faults.DeployError) {
	if len(changes) == 0 {
		return nil, nil
	}

	rs, ok := d.registry.LookupOrder(orderKind)
	if !ok {
		return nil, failBatch(changes, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("kind %q is not an ordered collection", orderKind), nil))
	}

	if err := validateOrderBatch(orderKind, changes); err != nil {
		return nil, failBatch(changes, err)
	}
	change := changes[0]

	members, ok := change.After.Values[schema.OrderMembersField].([]any)
	if !ok {
		return nil, failBatch(changes, faults.NewTypedError(faults.InvalidOrderChangeBatch,
			fmt.Sprintf("order element %s carries no member sequence", change.After.ID), nil))
	}

	memberField := rs.Order.MemberIDField
	if memberField == "" {
		memberField = defaultMemberIDField
	}

	payload := make([]any, 0, len(members))
	for position, member := range members {
		memberID, err := memberIdentifier(memberField, member)
		if err != nil {
			return nil, failBatch(changes, err)
		}
		payload = append(payload, map[string]any{
			memberField:            memberID,
			rs.Order.PositionField: position + 1,
		})
	}

	tmpl := rs.Order.Reorder
	url, err := substituteURL(tmpl, change.After.Values, change.After.ID)
	if err != nil {
		return nil, failBatch(changes, err)
	}

	var body any = payload
	if tmpl.EnvelopeField != "" {
		body = map[string]any{tmpl.EnvelopeField: payload}
	}

	d.log.V(1).Info("issuing reorder request",
		"kind", orderKind, "members", len(payload), "url", url)
	if _, err := d.client.Request(ctx, strings.ToUpper(tmpl.Method), url, nil, body); err != nil {
		return nil, failBatch(changes, err)
	}
	return changes, nil
}

func validateOrderBatch(orderKind string, changes []Change) error {
	if len(changes) != 1 {
		return faults.NewTypedError(faults.InvalidOrderChangeBatch,
			fmt.Sprintf("ordered collection %q got %d changes, expected exactly one modification", orderKind, len(changes)), nil)
	}
	change := changes[0]
	if change.Action != ActionModify || change.Before == nil || change.After == nil {
		return faults.NewTypedError(faults.InvalidOrderChangeBatch,
			fmt.Sprintf("ordered collection %q only supports modification of the existing order element", orderKind), nil)
	}
	return nil
}

// memberIdentifier extracts the service-side integer identifier of one
// sequence member, which may arrive as a reference or a raw scalar.
func memberIdentifier(memberField string, member any) (int64, error) {
	switch t := member.(type) {
	case *element.Reference:
		target := t.Elem()
		if target == nil {
			return 0, faults.NewTypedError(faults.InvalidMemberIdentifier,
				fmt.Sprintf("order member %s is not in the fetched universe", t.Target), nil)
		}
		raw, ok := element.LookupString(target.Values, memberField)
		if !ok {
			return 0, faults.NewTypedError(faults.InvalidMemberIdentifier,
				fmt.Sprintf("order member %s has no %q value", target.ID, memberField), nil)
		}
		return parseMemberID(raw)
	case json.Number:
		return parseMemberID(t.String())
	case string:
		return parseMemberID(t)
	default:
		return 0, faults.NewTypedError(faults.InvalidMemberIdentifier,
			fmt.Sprintf("order member %v is not an identifier", member), nil)
	}
}

func parseMemberID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, faults.NewTypedError(faults.InvalidMemberIdentifier,
			fmt.Sprintf("order member identifier %q is not an integer", raw), err)
	}
	return id, nil
}

func failBatch(changes []Change, cause error) []*faults.DeployError {
	errs := make([]*faults.DeployError, 0, len(changes))
	for _, change := range changes {
		errs = append(errs, faults.NewDeployError(
			string(change.ElementID()), faults.SeverityError, "", cause))
	}
	return errs
}
