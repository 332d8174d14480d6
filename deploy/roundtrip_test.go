package deploy

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/fetch"
)

// Fetch mapping and deploy rendering are inverses: a raw wire item that goes
// through standalone flattening renders back to its original shape.
func TestRenderRoundTripsFetchedItem(t *testing.T) {
	t.Parallel()

	registry := deployRegistry(t)
	raw := map[string]any{
		"name": "default",
		"statuses": []any{
			map[string]any{"id": 10, "name": "Open"},
			map[string]any{"id": 20, "name": "Done"},
		},
	}

	elems, err := fetch.NewMapper(registry, "jira", logr.Discard()).MapItem("workflow", raw)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}
	if len(elems) != 3 {
		t.Fatalf("expected parent plus two children, got %d", len(elems))
	}

	mapper := NewMapper(registry, nil, &fakeClient{}, logr.Discard())
	req, err := mapper.Render(Modification(elems[0], elems[0]))
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	want, err := element.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if diff := cmp.Diff(want, any(req.Body["workflow"])); diff != "" {
		t.Fatalf("round trip drifted (-want +got):\n%s", diff)
	}
}
