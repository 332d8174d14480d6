package element

// Reference is a resolved pointer from one element's field to another
// element, carried by stable identifier. The target pointer is filled in
// lazily for display and re-nesting; the target's lifetime is owned by the
// enclosing record set, never by the reference.
type Reference struct {
	Target ID

	elem *Element
}

func NewReference(target ID) *Reference {
	return &Reference{Target: target}
}

func NewResolvedReference(target *Element) *Reference {
	if target == nil {
		return nil
	}
	return &Reference{Target: target.ID, elem: target}
}

// Elem returns the dereferenced target, or nil when the target lives
// outside the fetched universe.
func (r *Reference) Elem() *Element {
	if r == nil {
		return nil
	}
	return r.elem
}

func (r *Reference) SetElem(e *Element) {
	if r == nil {
		return
	}
	r.elem = e
}

func (r *Reference) String() string {
	if r == nil {
		return "<nil>"
	}
	return string(r.Target)
}
