package core

import "fmt"

// Action is one of the four grid moves. The numeric value is the index of
// the action in an estimator's output vector and also its tie-break priority.
type Action int

const (
	ActionUp Action = iota
	ActionDown
	ActionLeft
	ActionRight
)

// NumActions is the size of the action space
const NumActions = 4

// AllActions lists the actions in priority order
var AllActions = [NumActions]Action{ActionUp, ActionDown, ActionLeft, ActionRight}

// actionDeltas provides coordinate offsets for each action
var actionDeltas = [NumActions]Coordinate{
	ActionUp:    {X: 0, Y: -1},
	ActionDown:  {X: 0, Y: 1},
	ActionLeft:  {X: -1, Y: 0},
	ActionRight: {X: 1, Y: 0},
}

// Valid reports whether the action is part of the action space
func (a Action) Valid() bool {
	return a >= 0 && a < NumActions
}

// Validate returns ErrInvalidAction for actions outside the action space
func (a Action) Validate() error {
	if !a.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidAction, int(a))
	}
	return nil
}

// Delta returns the unit offset of the action, or the zero offset if invalid
func (a Action) Delta() Coordinate {
	if !a.Valid() {
		return Coordinate{}
	}
	return actionDeltas[a]
}

func (a Action) String() string {
	switch a {
	case ActionUp:
		return "Up"
	case ActionDown:
		return "Down"
	case ActionLeft:
		return "Left"
	case ActionRight:
		return "Right"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

// ParseAction converts a name such as "up" or "Right" to an Action
func ParseAction(s string) (Action, error) {
	switch s {
	case "up", "Up", "U", "u":
		return ActionUp, nil
	case "down", "Down", "D", "d":
		return ActionDown, nil
	case "left", "Left", "L", "l":
		return ActionLeft, nil
	case "right", "Right", "R", "r":
		return ActionRight, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}
