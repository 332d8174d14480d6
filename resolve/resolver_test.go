package resolve

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/michalshavit1/salto/element"
)

func newTestResolver(sink *[]string) *Resolver {
	log := logr.Discard()
	if sink != nil {
		log = funcr.New(func(prefix, args string) {
			*sink = append(*sink, args)
		}, funcr.Options{Verbosity: 1})
	}
	return NewResolver(
		"zendesk",
		[]TypeAnnotation{{Name: "object_type", Kind: "ticket_field"}},
		[]FieldAnnotation{{Name: "source_field", TargetKind: "object_field"}},
		"custom_object",
		func(kind string) bool { return kind != "data_record" },
		log,
	)
}

func universe() []*element.Element {
	return []*element.Element{
		element.New("zendesk", "ticket_field", "priority", map[string]any{"name": "priority"}),
		element.New("zendesk", "custom_object", "asset", map[string]any{"name": "asset"}),
		element.New("zendesk", "automation", "close_stale", map[string]any{
			"title":       "close_stale",
			"object_type": "priority",
		}),
	}
}

func TestResolveTypeAnnotation(t *testing.T) {
	t.Parallel()

	elems := universe()
	r := newTestResolver(nil)
	r.Resolve(elems, BuildIndex(elems, logr.Discard()))

	ref, ok := elems[2].Values["object_type"].(*element.Reference)
	if !ok {
		t.Fatalf("expected reference, got %#v", elems[2].Values["object_type"])
	}
	if ref.Target != elems[0].ID {
		t.Fatalf("reference target %s, want %s", ref.Target, elems[0].ID)
	}
	if ref.Elem() != elems[0] {
		t.Fatalf("expected lazy target pointer to be filled from the universe")
	}
}

func TestResolveAmbiguousFallsBackToGenericKind(t *testing.T) {
	t.Parallel()

	elems := universe()
	elems[2].Values["object_type"] = "asset" // not a ticket_field, but a custom object
	r := newTestResolver(nil)
	r.Resolve(elems, BuildIndex(elems, logr.Discard()))

	ref, ok := elems[2].Values["object_type"].(*element.Reference)
	if !ok {
		t.Fatalf("expected fallback resolution, got %#v", elems[2].Values["object_type"])
	}
	if ref.Target.Kind() != "custom_object" {
		t.Fatalf("expected custom_object target, got %s", ref.Target)
	}
}

func TestResolveUnresolvedPassthrough(t *testing.T) {
	t.Parallel()

	var logged []string
	elems := universe()
	elems[2].Values["object_type"] = "not_fetched"
	r := newTestResolver(&logged)
	r.Resolve(elems, BuildIndex(elems, logr.Discard()))

	if got := elems[2].Values["object_type"]; got != "not_fetched" {
		t.Fatalf("unresolved value must stay untouched, got %#v", got)
	}
	if len(logged) != 1 {
		t.Fatalf("expected exactly one low-severity log entry, got %d: %v", len(logged), logged)
	}
}

func TestResolveIdempotence(t *testing.T) {
	t.Parallel()

	once := universe()
	twice := universe()
	r := newTestResolver(nil)

	idxOnce := BuildIndex(once, logr.Discard())
	r.Resolve(once, idxOnce)

	idxTwice := BuildIndex(twice, logr.Discard())
	r.Resolve(twice, idxTwice)
	r.Resolve(twice, idxTwice)

	opts := []cmp.Option{
		cmp.Comparer(func(a, b *element.Reference) bool {
			return a.Target == b.Target
		}),
		cmpopts.IgnoreUnexported(element.Element{}),
	}
	for i := range once {
		if diff := cmp.Diff(once[i].Values, twice[i].Values, opts...); diff != "" {
			t.Fatalf("double resolution diverged on %s (-once +twice):\n%s", once[i].ID, diff)
		}
	}
}

func TestResolveCompoundFieldAnnotation(t *testing.T) {
	t.Parallel()

	elems := universe()
	elems[2].Values["source_field"] = []any{"ticket.priority", "malformed", "ticket.status"}
	r := newTestResolver(nil)
	r.Resolve(elems, BuildIndex(elems, logr.Discard()))

	values := elems[2].Values["source_field"].([]any)
	first, ok := values[0].(*element.Reference)
	if !ok {
		t.Fatalf("expected synthesized reference, got %#v", values[0])
	}
	want := element.NewID("zendesk", "object_field", "ticket", "priority")
	if first.Target != want {
		t.Fatalf("reference target %s, want %s", first.Target, want)
	}
	if values[1] != "malformed" {
		t.Fatalf("malformed compound value must stay untouched, got %#v", values[1])
	}
	if _, ok := values[2].(*element.Reference); !ok {
		t.Fatalf("expected sequence to resolve element-wise")
	}
}

func TestResolveSkipsNonConfigurationKinds(t *testing.T) {
	t.Parallel()

	record := element.New("zendesk", "data_record", "row1", map[string]any{
		"object_type": "priority",
	})
	elems := append(universe(), record)
	r := newTestResolver(nil)
	r.Resolve(elems, BuildIndex(elems, logr.Discard()))

	if got := record.Values["object_type"]; got != "priority" {
		t.Fatalf("non-configuration kinds must be skipped entirely, got %#v", got)
	}
}

func TestReverseRoundTrip(t *testing.T) {
	t.Parallel()

	elems := universe()
	elems[2].Values["source_field"] = "ticket.priority"
	original := elems[2].Clone()

	r := newTestResolver(nil)
	r.Resolve(elems, BuildIndex(elems, logr.Discard()))

	rendered := elems[2].Clone()
	r.ReverseElement(rendered)

	if diff := cmp.Diff(original.Values, rendered.Values); diff != "" {
		t.Fatalf("resolve/reverse is not an inverse (-original +rendered):\n%s", diff)
	}
}

func TestBuildIndexLastWriteWins(t *testing.T) {
	t.Parallel()

	var logged []string
	log := funcr.New(func(prefix, args string) {
		logged = append(logged, args)
	}, funcr.Options{Verbosity: 1})

	first := element.New("zendesk", "macro", "dup", map[string]any{})
	second := &element.Element{
		ID:         element.NewID("zendesk", "macro", "group", "dup"),
		Kind:       "macro",
		NaturalKey: "dup",
	}
	idx := BuildIndex([]*element.Element{first, second}, log)

	id, ok := idx.Lookup("macro", "dup")
	if !ok || id != second.ID {
		t.Fatalf("expected last write to win, got %s %v", id, ok)
	}
	if len(logged) != 1 {
		t.Fatalf("expected one collision diagnostic, got %d", len(logged))
	}
}
