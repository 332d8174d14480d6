package cmd

import (
	"encoding/json"

	"github.com/michalshavit1/salto/element"
)

// exportValue converts the in-memory value shape into plain yaml-friendly
// values: references become their target identifiers and json numbers become
// native ints or floats.
func exportValue(value any) any {
	switch t := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[key] = exportValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = exportValue(t[i])
		}
		return out
	case *element.Reference:
		return string(t.Target)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return value
	}
}
