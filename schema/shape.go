package schema

import (
	"fmt"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
)

// ValidateListPage rejects malformed listing payloads before they reach the
// fetch mapper. The declared envelope path must resolve to an object or an
// array; anything else means the service answered with an unexpected shape.
func ValidateListPage(rs *ResourceSchema, page any) error {
	if rs == nil {
		return faults.NewTypedError(faults.ConfigurationError, "resource schema is required", nil)
	}

	switch page.(type) {
	case map[string]any, []any:
	default:
		return faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q listing page is %T, expected object or array", rs.Kind, page), nil)
	}

	if rs.DataJQ != "" || rs.DataField == "" {
		// jq envelopes are evaluated by the mapper itself; a bare payload
		// has no declared shape beyond being object or array.
		return nil
	}

	obj, ok := page.(map[string]any)
	if !ok {
		return faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q listing page is an array but dataField %q is declared", rs.Kind, rs.DataField), nil)
	}
	envelope, ok := element.GetAttrPath(obj, rs.DataField)
	if !ok {
		return faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q listing page has no %q envelope", rs.Kind, rs.DataField), nil)
	}
	switch envelope.(type) {
	case map[string]any, []any:
		return nil
	default:
		return faults.NewTypedError(faults.MalformedServiceResponse,
			fmt.Sprintf("kind %q envelope %q is %T, expected object or array", rs.Kind, rs.DataField, envelope), nil)
	}
}
