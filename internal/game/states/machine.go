package states

import (
	"fmt"
	"sync"
	"time"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
)

// State represents a session state with lifecycle callbacks
type State interface {
	// Phase returns the SessionPhase this state represents
	Phase() SessionPhase

	// Enter is called when transitioning into this state
	Enter(ctx *SessionContext) error

	// Exit is called when transitioning out of this state
	Exit(ctx *SessionContext) error

	// Validate checks if the state is valid given the context
	Validate(ctx *SessionContext) error
}

// Transition represents a state transition in the history
type Transition struct {
	From      SessionPhase
	To        SessionPhase
	Timestamp time.Time
	Reason    string
}

// StateMachine manages session state transitions and history
type StateMachine struct {
	mu             sync.RWMutex
	currentPhase   SessionPhase
	states         map[SessionPhase]State
	context        *SessionContext
	history        []Transition
	maxHistorySize int
	publisher      events.Publisher
}

// NewStateMachine creates a new state machine. publisher may be nil.
func NewStateMachine(ctx *SessionContext, publisher events.Publisher) *StateMachine {
	sm := &StateMachine{
		currentPhase:   PhaseInitializing,
		states:         make(map[SessionPhase]State),
		context:        ctx,
		history:        make([]Transition, 0, 16),
		maxHistorySize: 1000,
		publisher:      publisher,
	}

	sm.RegisterState(NewInitializingState())
	sm.RegisterState(NewRunningState())
	sm.RegisterState(NewPausedState())
	sm.RegisterState(NewStoppedState())
	sm.RegisterState(NewErrorState())

	return sm
}

// RegisterState registers a state implementation
func (sm *StateMachine) RegisterState(state State) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.states[state.Phase()] = state
}

// CurrentPhase returns the current session phase
func (sm *StateMachine) CurrentPhase() SessionPhase {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.currentPhase
}

// TransitionTo attempts to transition to the specified phase. The transition
// event is published after the machine lock is released so subscribers may
// query the machine.
func (sm *StateMachine) TransitionTo(targetPhase SessionPhase, reason string) error {
	previousPhase, err := sm.transition(targetPhase, reason)
	if err != nil {
		return err
	}

	if sm.publisher != nil {
		sm.publisher.Publish(events.NewStateTransitionEvent(
			sm.context.RunID,
			previousPhase.String(),
			targetPhase.String(),
			reason,
		))
	}
	return nil
}

func (sm *StateMachine) transition(targetPhase SessionPhase, reason string) (SessionPhase, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.currentPhase.CanTransitionTo(targetPhase) {
		return sm.currentPhase, fmt.Errorf("invalid transition from %s to %s", sm.currentPhase, targetPhase)
	}

	currentState, hasCurrentState := sm.states[sm.currentPhase]
	targetState, hasTargetState := sm.states[targetPhase]

	if !hasTargetState {
		return sm.currentPhase, fmt.Errorf("no state implementation for phase %s", targetPhase)
	}

	if err := targetState.Validate(sm.context); err != nil {
		return sm.currentPhase, fmt.Errorf("target state validation failed: %w", err)
	}

	if hasCurrentState {
		if err := currentState.Exit(sm.context); err != nil {
			sm.context.Logger.Error().
				Err(err).
				Str("from_phase", sm.currentPhase.String()).
				Str("to_phase", targetPhase.String()).
				Msg("Error exiting state")
			// Continue with transition despite exit error
		}
	}

	previousPhase := sm.currentPhase
	sm.currentPhase = targetPhase

	if err := targetState.Enter(sm.context); err != nil {
		// Rollback on enter failure
		sm.currentPhase = previousPhase
		return previousPhase, fmt.Errorf("failed to enter state %s: %w", targetPhase, err)
	}

	sm.addToHistory(Transition{
		From:      previousPhase,
		To:        targetPhase,
		Timestamp: time.Now(),
		Reason:    reason,
	})

	sm.context.Logger.Info().
		Str("from_phase", previousPhase.String()).
		Str("to_phase", targetPhase.String()).
		Str("reason", reason).
		Msg("State transition completed")

	return previousPhase, nil
}

// Fail records err on the context and moves the session to PhaseError
func (sm *StateMachine) Fail(err error) error {
	if err == nil {
		err = fmt.Errorf("unspecified failure")
	}
	sm.mu.Lock()
	sm.context.Error = err
	sm.mu.Unlock()
	return sm.TransitionTo(PhaseError, err.Error())
}

// addToHistory adds a transition to the history, maintaining max size
func (sm *StateMachine) addToHistory(transition Transition) {
	sm.history = append(sm.history, transition)

	if len(sm.history) > sm.maxHistorySize {
		// Keep the most recent entries
		sm.history = sm.history[len(sm.history)-sm.maxHistorySize:]
	}
}

// GetHistory returns a copy of the transition history
func (sm *StateMachine) GetHistory() []Transition {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	history := make([]Transition, len(sm.history))
	copy(history, sm.history)
	return history
}

// Elapsed returns the running time of the session excluding pauses
func (sm *StateMachine) Elapsed() time.Duration {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.context.GetElapsedTime()
}

// CanTransitionTo checks if a transition to the target phase is allowed
func (sm *StateMachine) CanTransitionTo(targetPhase SessionPhase) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.currentPhase.CanTransitionTo(targetPhase)
}
