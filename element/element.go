package element

import (
	"strings"
)

// KeySeparator joins identifier field values into a natural key.
const KeySeparator = "_"

// AnnotationHidden marks synthetic elements that normal diffing should skip.
const AnnotationHidden = "hidden"

// ID is a stable element identifier: adapter, resource kind, then the
// sanitized natural-key segments, joined with "/". Assigned once on fetch
// and immutable afterwards.
type ID string

func NewID(adapter, kind string, segments ...string) ID {
	parts := make([]string, 0, len(segments)+2)
	parts = append(parts, sanitizeSegment(adapter), sanitizeSegment(kind))
	for _, seg := range segments {
		seg = sanitizeSegment(seg)
		if seg == "" {
			continue
		}
		parts = append(parts, seg)
	}
	return ID(strings.Join(parts, "/"))
}

func (id ID) Adapter() string {
	parts := strings.Split(string(id), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func (id ID) Kind() string {
	parts := strings.Split(string(id), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// Segments returns the natural-key segments, without adapter and kind.
func (id ID) Segments() []string {
	parts := strings.Split(string(id), "/")
	if len(parts) <= 2 {
		return nil
	}
	return parts[2:]
}

func (id ID) LastSegment() string {
	segments := id.Segments()
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

func sanitizeSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	segment = strings.ReplaceAll(segment, "/", "-")
	segment = strings.ReplaceAll(segment, "\\", "-")
	return segment
}

// Element is one normalized configuration record fetched from a service.
// Values hold the uniform value shape from Normalize; the natural key is
// derived from the schema's identifier fields and is not guaranteed unique.
type Element struct {
	ID          ID
	Kind        string
	NaturalKey  string
	FileName    string
	Annotations map[string]string
	Values      map[string]any
}

func New(adapter, kind, naturalKey string, values map[string]any) *Element {
	return &Element{
		ID:         NewID(adapter, kind, naturalKey),
		Kind:       kind,
		NaturalKey: naturalKey,
		FileName:   naturalKey,
		Values:     values,
	}
}

// Clone copies the element and its values. Deploy mappers render from a
// clone so the fetched original stays intact for diffing.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	clone := &Element{
		ID:         e.ID,
		Kind:       e.Kind,
		NaturalKey: e.NaturalKey,
		FileName:   e.FileName,
	}
	if e.Annotations != nil {
		clone.Annotations = make(map[string]string, len(e.Annotations))
		for k, v := range e.Annotations {
			clone.Annotations[k] = v
		}
	}
	if e.Values != nil {
		clone.Values = DeepCopy(e.Values).(map[string]any)
	}
	return clone
}

func (e *Element) Annotation(name string) string {
	if e == nil || e.Annotations == nil {
		return ""
	}
	return e.Annotations[name]
}

func (e *Element) SetAnnotation(name, value string) {
	if e.Annotations == nil {
		e.Annotations = make(map[string]string)
	}
	e.Annotations[name] = value
}

func (e *Element) Hidden() bool {
	return e.Annotation(AnnotationHidden) == "true"
}

// KindPredicate reports whether a resource kind participates in reference
// resolution (metadata types and configuration objects do, data does not).
type KindPredicate func(kind string) bool
