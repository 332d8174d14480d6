package deploy

import (
	"github.com/michalshavit1/salto/element"
	"github.com/michalshavit1/salto/schema"
)

type Action string

const (
	ActionAdd    Action = "add"
	ActionModify Action = "modify"
	ActionRemove Action = "remove"
)

// Change is one requested transition for a single element. Before and After
// carry the pre- and post-change states; additions have no Before, removals
// no After.
type Change struct {
	Action Action
	Before *element.Element
	After  *element.Element
}

func Addition(after *element.Element) Change {
	return Change{Action: ActionAdd, After: after}
}

func Modification(before, after *element.Element) Change {
	return Change{Action: ActionModify, Before: before, After: after}
}

func Removal(before *element.Element) Change {
	return Change{Action: ActionRemove, Before: before}
}

// Element returns the state a wire request is rendered from: the post-change
// state for additions and modifications, the pre-change state for removals.
func (c Change) Element() *element.Element {
	if c.Action == ActionRemove {
		return c.Before
	}
	return c.After
}

func (c Change) Kind() string {
	if e := c.Element(); e != nil {
		return e.Kind
	}
	return ""
}

func (c Change) ElementID() element.ID {
	if e := c.Element(); e != nil {
		return e.ID
	}
	return ""
}

func (c Change) Operation() schema.Operation {
	switch c.Action {
	case ActionAdd:
		return schema.OperationAdd
	case ActionModify:
		return schema.OperationModify
	case ActionRemove:
		return schema.OperationRemove
	default:
		return schema.Operation(c.Action)
	}
}
