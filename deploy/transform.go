package deploy

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/faults"
)

// DropFields builds a transform that deletes the given attribute paths from
// every rendered element. Typical use is stripping server-managed fields the
// write endpoints reject.
func DropFields(paths ...string) Transform {
	return func(e *element.Element) (*element.Element, error) {
		for _, path := range paths {
			element.DeleteAttrPath(e.Values, path)
		}
		return e, nil
	}
}

// JQ builds a transform that reshapes the element's values with a jq
// expression. The expression must yield an object.
func JQ(expression string) (Transform, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("transform expression %q does not parse", expression), err)
	}
	return func(e *element.Element) (*element.Element, error) {
		iter := query.Run(jqValue(e.Values))
		value, ok := iter.Next()
		if !ok {
			return nil, faults.NewTypedError(faults.InternalError,
				fmt.Sprintf("transform %q produced no output for %s", expression, e.ID), nil)
		}
		if err, isErr := value.(error); isErr {
			return nil, faults.NewTypedError(faults.InternalError,
				fmt.Sprintf("transform %q failed for %s", expression, e.ID), err)
		}
		obj, isObj := value.(map[string]any)
		if !isObj {
			return nil, faults.NewTypedError(faults.InternalError,
				fmt.Sprintf("transform %q yielded %T for %s, expected object", expression, value, e.ID), nil)
		}
		normalized, err := element.Normalize(obj)
		if err != nil {
			return nil, faults.NewTypedError(faults.InternalError,
				fmt.Sprintf("transform %q output for %s is not normalizable", expression, e.ID), err)
		}
		e.Values = normalized.(map[string]any)
		return e, nil
	}, nil
}

// jqValue converts the wire value shape into what gojq accepts: json numbers
// become native ints or floats.
func jqValue(value any) any {
	switch t := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[key] = jqValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = jqValue(t[i])
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return value
	}
}
