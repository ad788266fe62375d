package states

import (
	"errors"
	"testing"
	"time"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPhase_String(t *testing.T) {
	tests := []struct {
		phase    SessionPhase
		expected string
	}{
		{PhaseInitializing, "Initializing"},
		{PhaseRunning, "Running"},
		{PhasePaused, "Paused"},
		{PhaseStopped, "Stopped"},
		{PhaseError, "Error"},
		{SessionPhase(999), "Unknown(999)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.phase.String())
			if tt.phase != SessionPhase(999) {
				assert.Equal(t, tt.phase, ParsePhase(tt.expected))
			}
		})
	}
}

func TestSessionPhase_Properties(t *testing.T) {
	assert.True(t, PhaseStopped.IsTerminal())
	assert.True(t, PhaseError.IsTerminal())
	assert.False(t, PhasePaused.IsTerminal())

	assert.True(t, PhaseRunning.CanTick())
	assert.False(t, PhasePaused.CanTick())
	assert.False(t, PhaseInitializing.CanTick())
}

func TestSessionPhase_Transitions(t *testing.T) {
	tests := []struct {
		from    SessionPhase
		allowed []SessionPhase
	}{
		{PhaseInitializing, []SessionPhase{PhaseRunning, PhaseStopped, PhaseError}},
		{PhaseRunning, []SessionPhase{PhasePaused, PhaseStopped, PhaseError}},
		{PhasePaused, []SessionPhase{PhaseRunning, PhaseStopped, PhaseError}},
		{PhaseStopped, []SessionPhase{}},
		{PhaseError, []SessionPhase{}},
	}

	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.AllowedTransitions())
			for _, phase := range tt.allowed {
				assert.True(t, tt.from.CanTransitionTo(phase))
			}
			assert.False(t, tt.from.CanTransitionTo(PhaseInitializing))
		})
	}
}

func TestSessionContext_ElapsedExcludesPauses(t *testing.T) {
	ctx := NewSessionContext("run", 2, zerolog.Nop())
	assert.Equal(t, time.Duration(0), ctx.GetElapsedTime())

	ctx.StartTime = time.Now().Add(-10 * time.Second)
	ctx.TotalPauseDuration = 4 * time.Second
	elapsed := ctx.GetElapsedTime()
	assert.InDelta(t, float64(6*time.Second), float64(elapsed), float64(500*time.Millisecond))
}

func TestStateMachine(t *testing.T) {
	bus := events.NewEventBus(zerolog.Nop())
	var transitions []*events.StateTransitionEvent
	bus.SubscribeFunc(events.TypeStateTransition, func(e events.Event) {
		transitions = append(transitions, e.(*events.StateTransitionEvent))
	})

	ctx := NewSessionContext("test-run", 2, zerolog.Nop())
	sm := NewStateMachine(ctx, bus)
	assert.Equal(t, PhaseInitializing, sm.CurrentPhase())

	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))
	assert.False(t, ctx.StartTime.IsZero())

	require.NoError(t, sm.TransitionTo(PhasePaused, "pause requested"))
	assert.False(t, ctx.PauseTime.IsZero())

	require.NoError(t, sm.TransitionTo(PhaseRunning, "resume requested"))
	assert.True(t, ctx.PauseTime.IsZero())

	require.NoError(t, sm.TransitionTo(PhaseStopped, "shutdown"))
	assert.True(t, sm.CurrentPhase().IsTerminal())

	err := sm.TransitionTo(PhaseRunning, "restart")
	assert.Error(t, err)
	assert.Equal(t, PhaseStopped, sm.CurrentPhase())

	history := sm.GetHistory()
	require.Len(t, history, 4)
	assert.Equal(t, PhaseInitializing, history[0].From)
	assert.Equal(t, PhaseStopped, history[3].To)

	require.Len(t, transitions, 4)
	assert.Equal(t, "Running", transitions[1].FromPhase)
	assert.Equal(t, "Paused", transitions[1].ToPhase)
	assert.Equal(t, "test-run", transitions[1].RunID())
}

func TestStateMachine_RunningNeedsTeams(t *testing.T) {
	sm := NewStateMachine(NewSessionContext("run", 0, zerolog.Nop()), nil)

	err := sm.TransitionTo(PhaseRunning, "start")
	assert.Error(t, err)
	assert.Equal(t, PhaseInitializing, sm.CurrentPhase())
}

func TestStateMachine_Fail(t *testing.T) {
	ctx := NewSessionContext("run", 2, zerolog.Nop())
	sm := NewStateMachine(ctx, nil)
	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))

	boom := errors.New("all teams failed")
	require.NoError(t, sm.Fail(boom))
	assert.Equal(t, PhaseError, sm.CurrentPhase())
	assert.Equal(t, boom, ctx.Error)
	assert.Equal(t, "all teams failed", sm.GetHistory()[1].Reason)
}

func TestStateMachine_PublisherMayQueryMachine(t *testing.T) {
	bus := events.NewEventBus(zerolog.Nop())
	sm := NewStateMachine(NewSessionContext("run", 1, zerolog.Nop()), bus)

	var seen SessionPhase
	bus.SubscribeFunc(events.TypeStateTransition, func(events.Event) {
		seen = sm.CurrentPhase()
	})

	require.NoError(t, sm.TransitionTo(PhaseRunning, "start"))
	assert.Equal(t, PhaseRunning, seen)
}

// MockState is a test implementation of State
type MockState struct {
	phase       SessionPhase
	enterCalled bool
	exitCalled  bool
	enterError  error
}

func (m *MockState) Phase() SessionPhase            { return m.phase }
func (m *MockState) Enter(*SessionContext) error    { m.enterCalled = true; return m.enterError }
func (m *MockState) Exit(*SessionContext) error     { m.exitCalled = true; return nil }
func (m *MockState) Validate(*SessionContext) error { return nil }

func TestStateMachine_CustomStates(t *testing.T) {
	sm := NewStateMachine(NewSessionContext("run", 1, zerolog.Nop()), nil)

	runningMock := &MockState{phase: PhaseRunning}
	pausedMock := &MockState{phase: PhasePaused, enterError: errors.New("cannot pause")}
	sm.RegisterState(runningMock)
	sm.RegisterState(pausedMock)

	require.NoError(t, sm.TransitionTo(PhaseRunning, "test"))
	assert.True(t, runningMock.enterCalled)

	err := sm.TransitionTo(PhasePaused, "test")
	assert.Error(t, err)
	assert.True(t, runningMock.exitCalled)
	assert.Equal(t, PhaseRunning, sm.CurrentPhase(), "enter failure rolls back")
}
