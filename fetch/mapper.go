package fetch

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/itchyny/gojq"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
	"github.com/michalshavit1/salto/schema"
)

// Mapper turns raw listing payloads into normalized elements according to
// the schema tables. Pure transformation: the payload has already been
// fetched and shape-checked by the caller.
type Mapper struct {
	registry *schema.Registry
	adapter  string
	log      logr.Logger
}

func NewMapper(registry *schema.Registry, adapter string, log logr.Logger) *Mapper {
	return &Mapper{
		registry: registry,
		adapter:  adapter,
		log:      log,
	}
}

// Map flattens one listing page of the given kind into elements. Standalone
// children are promoted to top-level elements and emitted after their
// parent, with the parent field rewritten to references.
func (m *Mapper) Map(kind string, page any) ([]*element.Element, error) {
	rs, err := m.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}

	normalized, err := element.Normalize(page)
	if err != nil {
		return nil, faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q page is not normalizable", kind), err)
	}

	items, err := m.extractEnvelope(rs, normalized)
	if err != nil {
		return nil, err
	}

	var out []*element.Element
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			m.log.Info("skipping non-object listing item", "kind", kind, "itemType", fmt.Sprintf("%T", item))
			continue
		}
		elems, err := m.mapItem(rs, obj, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, elems...)
	}
	return out, nil
}

// MapItem maps one already-extracted item of the given kind, bypassing
// envelope extraction. The first returned element is the item itself,
// followed by any promoted standalone children.
func (m *Mapper) MapItem(kind string, item map[string]any) ([]*element.Element, error) {
	rs, err := m.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	normalized, err := element.Normalize(item)
	if err != nil {
		return nil, faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q item is not normalizable", kind), err)
	}
	obj, ok := normalized.(map[string]any)
	if !ok {
		return nil, faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q item is %T, expected object", kind, normalized), nil)
	}
	return m.mapItem(rs, obj, nil)
}

// extractEnvelope locates the data inside a page. A single object where a
// sequence was expected is treated as a singleton collection.
func (m *Mapper) extractEnvelope(rs *schema.ResourceSchema, page any) ([]any, error) {
	data := page

	switch {
	case strings.TrimSpace(rs.DataJQ) != "":
		extracted, err := runJQ(page, rs.DataJQ)
		if err != nil {
			return nil, faults.NewTypedError(faults.MalformedServiceResponse,
				fmt.Sprintf("kind %q envelope jq failed", rs.Kind), err)
		}
		data = extracted
	case strings.TrimSpace(rs.DataField) != "":
		obj, ok := page.(map[string]any)
		if !ok {
			return nil, faults.NewTypedError(faults.MalformedServiceResponse,
				fmt.Sprintf("kind %q page is %T but dataField %q is declared", rs.Kind, page, rs.DataField), nil)
		}
		extracted, ok := element.GetAttrPath(obj, rs.DataField)
		if !ok {
			return nil, faults.NewTypedError(faults.MalformedServiceResponse,
				fmt.Sprintf("kind %q page has no %q envelope", rs.Kind, rs.DataField), nil)
		}
		data = extracted
	}

	switch t := data.(type) {
	case []any:
		return t, nil
	case map[string]any:
		return []any{t}, nil
	case nil:
		return nil, nil
	default:
		return nil, faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q envelope is %T, expected object or array", rs.Kind, data), nil)
	}
}

// mapItem builds the element for one raw item plus the standalone children
// promoted out of it. parentSegments scope child identifiers under their
// parent's natural key.
func (m *Mapper) mapItem(rs *schema.ResourceSchema, obj map[string]any, parentSegments []string) ([]*element.Element, error) {
	values := element.DeepCopy(obj).(map[string]any)

	naturalKey := joinFieldValues(values, rs.IDFields)
	if naturalKey == "" {
		m.log.Info("skipping item without identifier", "kind", rs.Kind, "idFields", rs.IDFields)
		return nil, nil
	}

	fileName := joinFieldValues(values, rs.FileNameFields)
	if fileName == "" {
		fileName = naturalKey
	}

	m.applyOmitRules(rs, values)
	m.checkEnums(rs, naturalKey, values)

	segments := append(append([]string{}, parentSegments...), naturalKey)
	elem := &element.Element{
		ID:         element.NewID(m.adapter, rs.Kind, segments...),
		Kind:       rs.Kind,
		NaturalKey: naturalKey,
		FileName:   fileName,
		Values:     values,
	}

	out := []*element.Element{elem}
	for _, standalone := range rs.Standalone {
		raw, ok := values[standalone.Field]
		if !ok || raw == nil {
			continue
		}
		childSchema, err := m.registry.Lookup(standalone.Kind)
		if err != nil {
			return nil, err
		}

		children, refs, err := m.mapStandalone(childSchema, raw, segments)
		if err != nil {
			return nil, err
		}
		if refs == nil {
			continue
		}
		values[standalone.Field] = refs
		out = append(out, children...)
	}

	return out, nil
}

// mapStandalone maps a standalone field value (object or sequence of
// objects) into child elements and the reference value that replaces the
// field on the parent.
func (m *Mapper) mapStandalone(childSchema *schema.ResourceSchema, raw any, parentSegments []string) ([]*element.Element, any, error) {
	mapOne := func(obj map[string]any) ([]*element.Element, *element.Reference, error) {
		elems, err := m.mapItem(childSchema, obj, parentSegments)
		if err != nil || len(elems) == 0 {
			return nil, nil, err
		}
		return elems, element.NewResolvedReference(elems[0]), nil
	}

	switch t := raw.(type) {
	case map[string]any:
		children, ref, err := mapOne(t)
		if err != nil || ref == nil {
			return nil, nil, err
		}
		return children, ref, nil
	case []any:
		var children []*element.Element
		refs := make([]any, 0, len(t))
		for _, entry := range t {
			obj, ok := entry.(map[string]any)
			if !ok {
				m.log.Info("skipping non-object standalone entry", "kind", childSchema.Kind)
				continue
			}
			mapped, ref, err := mapOne(obj)
			if err != nil {
				return nil, nil, err
			}
			if ref == nil {
				continue
			}
			children = append(children, mapped...)
			refs = append(refs, ref)
		}
		return children, refs, nil
	default:
		m.log.Info("standalone field holds a scalar, leaving as-is", "kind", childSchema.Kind)
		return nil, nil, nil
	}
}

func (m *Mapper) applyOmitRules(rs *schema.ResourceSchema, values map[string]any) {
	for _, rule := range rs.OmitFields {
		if rule.Type == "" {
			element.DeleteAttrPath(values, rule.Name)
			continue
		}
		value, ok := element.GetAttrPath(values, rule.Name)
		if !ok {
			continue
		}
		if kindName(value) == rule.Type {
			element.DeleteAttrPath(values, rule.Name)
		}
	}
}

// checkEnums logs restriction violations as warnings; the raw value is kept
// unchanged so fetch never fails over vocabulary drift.
func (m *Mapper) checkEnums(rs *schema.ResourceSchema, naturalKey string, values map[string]any) {
	for field, allowed := range rs.Enums {
		value, ok := element.LookupString(values, field)
		if !ok {
			continue
		}
		found := false
		for _, candidate := range allowed {
			if candidate == value {
				found = true
				break
			}
		}
		if !found {
			m.log.Info("enum restriction violated, keeping raw value",
				"kind", rs.Kind, "element", naturalKey, "field", field, "value", value)
		}
	}
}

// joinFieldValues walks field paths in order and joins the non-empty values
// into one key. Paths whose value is missing or empty are skipped.
func joinFieldValues(values map[string]any, paths []string) string {
	var parts []string
	for _, path := range paths {
		if value, ok := element.LookupString(values, path); ok && strings.TrimSpace(value) != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, element.KeySeparator)
}

func kindName(v any) string {
	switch element.KindOf(v) {
	case element.KindObject:
		return "object"
	case element.KindArray:
		return "array"
	case element.KindString:
		return "string"
	case element.KindNumber:
		return "number"
	case element.KindBool:
		return "bool"
	case element.KindReference:
		return "reference"
	default:
		return "null"
	}
}

func runJQ(input any, expression string) (any, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, err
	}
	iter := query.Run(input)

	var results []any
	for {
		value, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := value.(error); ok {
			return nil, err
		}
		results = append(results, value)
	}

	if len(results) == 0 {
		return nil, nil
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}
