package element

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindObject
	KindArray
	KindString
	KindNumber
	KindBool
	KindReference
)

// KindOf reports the normalized kind of a value produced by Normalize.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return KindNull
	case map[string]any:
		return KindObject
	case []any:
		return KindArray
	case string:
		return KindString
	case json.Number:
		return KindNumber
	case bool:
		return KindBool
	case *Reference:
		return KindReference
	default:
		return KindNull
	}
}

// IsScalar reports whether v renders as a single primitive wire value.
func IsScalar(v any) bool {
	switch KindOf(v) {
	case KindString, KindNumber, KindBool:
		return true
	default:
		return false
	}
}

// Normalize converts v into the uniform value shape used by every element:
// map[string]any, []any, string, json.Number, bool, nil, or *Reference.
// Numbers always become json.Number so round-trips stay bit-for-bit.
func Normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool, string, json.Number, *Reference:
		return t, nil
	case float32, float64, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return json.Number(fmt.Sprintf("%v", t)), nil
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			nv, err := Normalize(vv)
			if err != nil {
				return nil, err
			}
			m[k] = nv
		}
		return m, nil
	case []any:
		s := make([]any, len(t))
		for i := range t {
			nv, err := Normalize(t[i])
			if err != nil {
				return nil, err
			}
			s[i] = nv
		}
		return s, nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("value not JSON-serializable: %T: %w", t, err)
		}
		return FromJSON(b)
	}
}

// FromJSON decodes raw JSON into the normalized value shape.
func FromJSON(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return Normalize(v)
}

// DeepCopy clones a normalized value. References are shared, not copied:
// they record a relation by identifier, not an owning link.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = DeepCopy(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i := range t {
			s[i] = DeepCopy(t[i])
		}
		return s
	case json.Number, string, bool, *Reference:
		return t
	default:
		b, _ := json.Marshal(t)
		v2, err := FromJSON(b)
		if err != nil {
			return nil
		}
		return v2
	}
}
