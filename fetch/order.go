package fetch

import (
	"sort"
	"strconv"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/schema"
)

// SynthesizeOrder builds the single ordered-collection element for a group
// of same-kind members. Members are referenced in position order; ties fall
// back to the configured secondary key, then the natural key, so the result
// is deterministic for any input order.
func SynthesizeOrder(adapter string, rs *schema.ResourceSchema, members []*element.Element) *element.Element {
	if rs == nil || rs.Order == nil {
		return nil
	}

	sorted := make([]*element.Element, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, iOK := positionOf(sorted[i], rs.Order.PositionField)
		pj, jOK := positionOf(sorted[j], rs.Order.PositionField)
		switch {
		case iOK && !jOK:
			return true
		case !iOK && jOK:
			return false
		case iOK && jOK && pi != pj:
			return pi < pj
		}
		if secondary := rs.Order.SecondarySortField; secondary != "" {
			si, _ := element.LookupString(sorted[i].Values, secondary)
			sj, _ := element.LookupString(sorted[j].Values, secondary)
			if si != sj {
				return si < sj
			}
		}
		return sorted[i].NaturalKey < sorted[j].NaturalKey
	})

	refs := make([]any, 0, len(sorted))
	for _, member := range sorted {
		refs = append(refs, element.NewResolvedReference(member))
	}

	orderKind := schema.OrderKind(rs.Kind)
	elem := &element.Element{
		ID:         element.NewID(adapter, orderKind, schema.OrderElementKey),
		Kind:       orderKind,
		NaturalKey: schema.OrderElementKey,
		FileName:   schema.OrderElementKey,
		Values: map[string]any{
			schema.OrderMembersField: refs,
		},
	}
	if !rs.Order.Visible {
		elem.SetAnnotation(element.AnnotationHidden, "true")
	}
	return elem
}

func positionOf(e *element.Element, field string) (float64, bool) {
	raw, ok := element.LookupString(e.Values, field)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
