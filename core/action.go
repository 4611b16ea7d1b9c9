package core

import "fmt"

// Action is an operation a user may attempt on a tensor.
type Action uint8

const (
	ActionRead Action = iota + 1
	ActionWrite
	ActionDelete
	ActionFork
)

var actionNames = map[Action]string{
	ActionRead:   "read",
	ActionWrite:  "write",
	ActionDelete: "delete",
	ActionFork:   "fork",
}

// Actions lists every known action.
func Actions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete, ActionFork}
}

// String returns the lowercase action name.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	_, ok := actionNames[a]
	return ok
}

// ParseAction maps a name such as "read" to its Action.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, name)
}
