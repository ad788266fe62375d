package states

import "fmt"

// SessionPhase represents the lifecycle phase of a training session
type SessionPhase int

const (
	// PhaseInitializing - world, controllers and servers being built
	PhaseInitializing SessionPhase = iota

	// PhaseRunning - the training loop is ticking
	PhaseRunning

	// PhasePaused - the loop is parked until resumed
	PhasePaused

	// PhaseStopped - final state after a clean shutdown
	PhaseStopped

	// PhaseError - final state after every team failed or setup broke
	PhaseError
)

// String returns the string representation of a SessionPhase
func (p SessionPhase) String() string {
	switch p {
	case PhaseInitializing:
		return "Initializing"
	case PhaseRunning:
		return "Running"
	case PhasePaused:
		return "Paused"
	case PhaseStopped:
		return "Stopped"
	case PhaseError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// IsTerminal returns true if the phase represents a terminal state
func (p SessionPhase) IsTerminal() bool {
	return p == PhaseStopped || p == PhaseError
}

// CanTick returns true if the training loop may advance in this phase
func (p SessionPhase) CanTick() bool {
	return p == PhaseRunning
}

// AllowedTransitions returns the valid phases this phase can transition to
func (p SessionPhase) AllowedTransitions() []SessionPhase {
	switch p {
	case PhaseInitializing:
		return []SessionPhase{PhaseRunning, PhaseStopped, PhaseError}
	case PhaseRunning:
		return []SessionPhase{PhasePaused, PhaseStopped, PhaseError}
	case PhasePaused:
		return []SessionPhase{PhaseRunning, PhaseStopped, PhaseError}
	default:
		return []SessionPhase{}
	}
}

// CanTransitionTo checks if a transition from this phase to the target phase is allowed
func (p SessionPhase) CanTransitionTo(target SessionPhase) bool {
	for _, phase := range p.AllowedTransitions() {
		if phase == target {
			return true
		}
	}
	return false
}

// ParsePhase converts a string to a SessionPhase
func ParsePhase(s string) SessionPhase {
	switch s {
	case "Initializing":
		return PhaseInitializing
	case "Running":
		return PhaseRunning
	case "Paused":
		return PhasePaused
	case "Stopped":
		return PhaseStopped
	case "Error":
		return PhaseError
	default:
		return PhaseInitializing // Default to initializing for unknown phases
	}
}
