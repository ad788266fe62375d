package agent

import "fmt"

// Phase is the step of the per-tick cycle a controller is in
type Phase int

const (
	// PhaseObserving - reading the world
	PhaseObserving Phase = iota

	// PhaseActing - choosing and applying an action
	PhaseActing

	// PhaseLearning - replaying a batch into the estimator
	PhaseLearning

	// PhaseFailed - the estimator broke, the team no longer acts
	PhaseFailed
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case PhaseObserving:
		return "Observing"
	case PhaseActing:
		return "Acting"
	case PhaseLearning:
		return "Learning"
	case PhaseFailed:
		return "Failed"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// AllowedTransitions returns the valid phases this phase can transition to
func (p Phase) AllowedTransitions() []Phase {
	switch p {
	case PhaseObserving:
		return []Phase{PhaseActing, PhaseFailed}
	case PhaseActing:
		return []Phase{PhaseLearning, PhaseObserving, PhaseFailed}
	case PhaseLearning:
		return []Phase{PhaseObserving, PhaseFailed}
	default:
		return []Phase{}
	}
}

// CanTransitionTo checks if a transition from this phase to the target phase is allowed
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}
