package deploy

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
	"github.com/michalshavit1/salto/resolve"
	"github.com/michalshavit1/salto/schema"
	"github.com/michalshavit1/salto/service"
)

// Transform adjusts a change's working copy before rendering. Transforms run
// in registration order and may return a different element.
type Transform func(e *element.Element) (*element.Element, error)

// WireRequest is one fully rendered service call: resolved URL, method, and
// the envelope-wrapped body.
type WireRequest struct {
	Method string
	URL    string
	Body   map[string]any
}

// Mapper renders changes into wire requests and issues them. Rendering works
// on a clone so the caller's elements keep their references and nested
// children for diffing.
type Mapper struct {
	registry   *schema.Registry
	resolver   *resolve.Resolver
	client     service.Client
	transforms []Transform
	log        logr.Logger
}

func NewMapper(registry *schema.Registry, resolver *resolve.Resolver, client service.Client, log logr.Logger, transforms ...Transform) *Mapper {
	return &Mapper{
		registry:   registry,
		resolver:   resolver,
		client:     client,
		transforms: transforms,
		log:        log,
	}
}

// Render maps a change onto its deploy template without touching the wire.
func (m *Mapper) Render(change Change) (*WireRequest, error) {
	state := change.Element()
	if state == nil {
		return nil, faults.NewTypedError(faults.InternalError,
			fmt.Sprintf("%s change carries no element state", change.Action), nil)
	}

	rs, err := m.registry.Lookup(state.Kind)
	if err != nil {
		return nil, err
	}
	tmpl := rs.Deploy[change.Operation()]
	if tmpl == nil {
		return nil, faults.NewTypedError(faults.UnsupportedOperation,
			fmt.Sprintf("kind %q has no deploy template for operation %q", state.Kind, change.Operation()), nil)
	}

	working := state.Clone()
	if err := m.renderWireValues(rs, working); err != nil {
		return nil, err
	}

	// Placeholders resolve against the element state, before transforms get a
	// chance to strip their source fields.
	url, err := substituteURL(tmpl, working.Values, state.ID)
	if err != nil {
		return nil, err
	}

	for _, transform := range m.transforms {
		working, err = transform(working)
		if err != nil {
			return nil, err
		}
		if working == nil {
			return nil, faults.NewTypedError(faults.InternalError,
				fmt.Sprintf("transform dropped element %s", state.ID), nil)
		}
	}

	body := working.Values
	if tmpl.EnvelopeField != "" {
		body = map[string]any{tmpl.EnvelopeField: body}
	}

	return &WireRequest{
		Method: strings.ToUpper(tmpl.Method),
		URL:    url,
		Body:   body,
	}, nil
}

// Deploy renders the change and issues exactly one request. DELETE calls go
// out without a body.
func (m *Mapper) Deploy(ctx context.Context, change Change) error {
	req, err := m.Render(change)
	if err != nil {
		return err
	}

	var body any
	if req.Method != http.MethodDelete {
		body = req.Body
	}

	m.log.V(1).Info("issuing deploy request",
		"element", change.ElementID(), "method", req.Method, "url", req.URL)
	_, err = m.client.Request(ctx, req.Method, req.URL, nil, body)
	return err
}

// renderWireValues turns the working copy's structural values back into the
// service's wire shape, in place: references become natural names, standalone
// children are re-nested under their original fields.
func (m *Mapper) renderWireValues(rs *schema.ResourceSchema, working *element.Element) error {
	m.resolver.ReverseElement(working)

	// Position is owned by the synthetic order element and deployed only
	// through the batched reorder request; member bodies never carry it.
	if rs.Order != nil {
		element.DeleteAttrPath(working.Values, rs.Order.PositionField)
	}

	for _, standalone := range rs.Standalone {
		value, ok := working.Values[standalone.Field]
		if !ok {
			continue
		}
		childSchema, err := m.registry.Lookup(standalone.Kind)
		if err != nil {
			return err
		}
		working.Values[standalone.Field] = m.renestValue(childSchema, working.ID, standalone.Field, value)
	}

	for name, value := range working.Values {
		working.Values[name] = renderResidualReferences(value)
	}
	return nil
}

func (m *Mapper) renestValue(childSchema *schema.ResourceSchema, parent element.ID, field string, value any) any {
	switch t := value.(type) {
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = m.renestValue(childSchema, parent, field, t[i])
		}
		return out
	case *element.Reference:
		child := t.Elem()
		if child == nil {
			m.log.V(1).Info("standalone child not in fetched universe, rendering natural name",
				"parent", parent, "field", field, "target", t.Target)
			return t.Target.LastSegment()
		}
		childCopy := child.Clone()
		if err := m.renderWireValues(childSchema, childCopy); err != nil {
			return t.Target.LastSegment()
		}
		return childCopy.Values
	default:
		return value
	}
}

func renderResidualReferences(value any) any {
	switch t := value.(type) {
	case *element.Reference:
		if target := t.Elem(); target != nil {
			return target.NaturalKey
		}
		return t.Target.LastSegment()
	case map[string]any:
		for key, item := range t {
			t[key] = renderResidualReferences(item)
		}
		return t
	case []any:
		for i := range t {
			t[i] = renderResidualReferences(t[i])
		}
		return t
	default:
		return value
	}
}

// substituteURL fills every {placeholder} in the template URL from the
// rendered values. Placeholder sources must resolve to scalars.
func substituteURL(tmpl *schema.RequestTemplate, values map[string]any, id element.ID) (string, error) {
	url := tmpl.URL
	for _, placeholder := range schema.URLPlaceholders(tmpl.URL) {
		source := tmpl.URLFields[placeholder]
		value, ok := element.GetAttrPath(values, source)
		if !ok || !element.IsScalar(value) {
			return "", faults.NewTypedError(faults.MissingURLParameter,
				fmt.Sprintf("element %s has no scalar value at %q for url placeholder %q", id, source, placeholder), nil)
		}
		url = strings.ReplaceAll(url, "{"+placeholder+"}", fmt.Sprint(value))
	}
	return url, nil
}
