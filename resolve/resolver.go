package resolve

import (
	"strings"

	"github.com/go-logr/logr"

	"github.com/michalshavit1/salto/element"
)

// CompoundSeparator splits "<container>.<member>" annotation values.
const CompoundSeparator = "."

// TypeAnnotation names a field whose string value refers to another element
// by natural name. Kind is the metadata-type kind tried first on lookup.
type TypeAnnotation struct {
	Name string
	Kind string
}

// FieldAnnotation names a field whose string value encodes its own target as
// "<container>.<member>"; TargetKind is the kind of the synthesized target.
type FieldAnnotation struct {
	Name       string
	TargetKind string
}

// Resolver rewrites annotation strings into structural references after
// fetch, and renders them back to wire strings before deploy. Both passes
// are idempotent: resolved values are left alone, unresolved values are
// passed through untouched.
type Resolver struct {
	adapter          string
	typeAnnotations  []TypeAnnotation
	fieldAnnotations []FieldAnnotation
	genericKind      string
	isConfigObject   element.KindPredicate
	log              logr.Logger
}

func NewResolver(
	adapter string,
	typeAnnotations []TypeAnnotation,
	fieldAnnotations []FieldAnnotation,
	genericKind string,
	isConfigObject element.KindPredicate,
	log logr.Logger,
) *Resolver {
	if isConfigObject == nil {
		isConfigObject = func(string) bool { return true }
	}
	return &Resolver{
		adapter:          adapter,
		typeAnnotations:  typeAnnotations,
		fieldAnnotations: fieldAnnotations,
		genericKind:      genericKind,
		isConfigObject:   isConfigObject,
		log:              log,
	}
}

// Stats counts one resolution pass's outcomes.
type Stats struct {
	Resolved   int
	Unresolved int
}

// Resolve runs the type pass and then the field pass over every
// configuration-object element, in place. The index is read-only here; no
// element depends on another element's resolution, so one traversal covers
// the whole set.
func (r *Resolver) Resolve(elems []*element.Element, idx *Index) Stats {
	var stats Stats
	if r == nil {
		return stats
	}
	byID := make(map[element.ID]*element.Element, len(elems))
	for _, e := range elems {
		if e != nil {
			byID[e.ID] = e
		}
	}

	for _, e := range elems {
		if e == nil || !r.isConfigObject(e.Kind) {
			continue
		}
		for _, ta := range r.typeAnnotations {
			value, ok := e.Values[ta.Name]
			if !ok {
				continue
			}
			e.Values[ta.Name] = r.resolveTypeValue(e, ta, value, idx, byID, &stats)
		}
		for _, fa := range r.fieldAnnotations {
			value, ok := e.Values[fa.Name]
			if !ok {
				continue
			}
			e.Values[fa.Name] = r.resolveFieldValue(e, fa, value, byID, &stats)
		}
	}
	return stats
}

// resolveTypeValue tries the annotation's declared kind, then the generic
// custom-object kind. A miss on both is not an error: some values point
// outside the fetched universe and must survive unchanged.
func (r *Resolver) resolveTypeValue(e *element.Element, ta TypeAnnotation, value any, idx *Index, byID map[element.ID]*element.Element, stats *Stats) any {
	switch t := value.(type) {
	case *element.Reference:
		return t
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = r.resolveTypeValue(e, ta, t[i], idx, byID, stats)
		}
		return out
	case string:
		id, ok := idx.Lookup(ta.Kind, t)
		if !ok && r.genericKind != "" && r.genericKind != ta.Kind {
			id, ok = idx.Lookup(r.genericKind, t)
		}
		if !ok {
			r.log.V(1).Info("reference target not in fetched universe, keeping raw value",
				"element", e.ID, "field", ta.Name, "value", t)
			stats.Unresolved++
			return t
		}
		ref := element.NewReference(id)
		ref.SetElem(byID[id])
		stats.Resolved++
		return ref
	default:
		return value
	}
}

// resolveFieldValue synthesizes references from "<container>.<member>"
// values. The target is derivable from the encoding itself, so no index
// lookup happens; a value that does not split into exactly two parts is
// left as-is.
func (r *Resolver) resolveFieldValue(e *element.Element, fa FieldAnnotation, value any, byID map[element.ID]*element.Element, stats *Stats) any {
	switch t := value.(type) {
	case *element.Reference:
		return t
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = r.resolveFieldValue(e, fa, t[i], byID, stats)
		}
		return out
	case string:
		parts := strings.Split(t, CompoundSeparator)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			r.log.V(1).Info("field annotation value is not a compound key, keeping raw value",
				"element", e.ID, "field", fa.Name, "value", t)
			stats.Unresolved++
			return t
		}
		id := element.NewID(r.adapter, fa.TargetKind, parts[0], parts[1])
		ref := element.NewReference(id)
		ref.SetElem(byID[id])
		stats.Resolved++
		return ref
	default:
		return value
	}
}

// ReverseElement renders an element's structural references back to their
// wire strings, in place. Deploy mappers call this on a clone so the
// fetched original keeps its references for diffing.
func (r *Resolver) ReverseElement(e *element.Element) {
	if r == nil || e == nil || e.Values == nil {
		return
	}
	for _, ta := range r.typeAnnotations {
		if value, ok := e.Values[ta.Name]; ok {
			e.Values[ta.Name] = reverseTypeValue(value)
		}
	}
	for _, fa := range r.fieldAnnotations {
		if value, ok := e.Values[fa.Name]; ok {
			e.Values[fa.Name] = reverseFieldValue(value)
		}
	}
}

func reverseTypeValue(value any) any {
	switch t := value.(type) {
	case *element.Reference:
		if target := t.Elem(); target != nil {
			return target.NaturalKey
		}
		return t.Target.LastSegment()
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = reverseTypeValue(t[i])
		}
		return out
	default:
		return value
	}
}

func reverseFieldValue(value any) any {
	switch t := value.(type) {
	case *element.Reference:
		segments := t.Target.Segments()
		if len(segments) < 2 {
			return t.Target.LastSegment()
		}
		return segments[len(segments)-2] + CompoundSeparator + segments[len(segments)-1]
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = reverseFieldValue(t[i])
		}
		return out
	default:
		return value
	}
}
