package states

import (
	"fmt"
	"time"
)

// InitializingState represents session setup
type InitializingState struct{}

func NewInitializingState() State { return &InitializingState{} }

func (s *InitializingState) Phase() SessionPhase { return PhaseInitializing }

func (s *InitializingState) Enter(ctx *SessionContext) error {
	ctx.Logger.Debug().Msg("Entering Initializing state")
	return nil
}

func (s *InitializingState) Exit(ctx *SessionContext) error {
	ctx.Logger.Debug().Msg("Exiting Initializing state")
	return nil
}

func (s *InitializingState) Validate(ctx *SessionContext) error { return nil }

// RunningState represents an active training loop
type RunningState struct{}

func NewRunningState() State { return &RunningState{} }

func (s *RunningState) Phase() SessionPhase { return PhaseRunning }

func (s *RunningState) Enter(ctx *SessionContext) error {
	if ctx.StartTime.IsZero() {
		ctx.StartTime = time.Now()
		ctx.Logger.Info().
			Time("start_time", ctx.StartTime).
			Msg("Training started")
	}
	return nil
}

func (s *RunningState) Exit(ctx *SessionContext) error {
	ctx.Logger.Debug().
		Dur("elapsed", ctx.GetElapsedTime()).
		Msg("Exiting running state")
	return nil
}

func (s *RunningState) Validate(ctx *SessionContext) error {
	if ctx.TeamCount < 1 {
		return fmt.Errorf("cannot run without controllers, have %d", ctx.TeamCount)
	}
	return nil
}

// PausedState represents a parked training loop
type PausedState struct{}

func NewPausedState() State { return &PausedState{} }

func (s *PausedState) Phase() SessionPhase { return PhasePaused }

func (s *PausedState) Enter(ctx *SessionContext) error {
	ctx.PauseTime = time.Now()
	ctx.Logger.Info().Msg("Training paused")
	return nil
}

func (s *PausedState) Exit(ctx *SessionContext) error {
	if !ctx.PauseTime.IsZero() {
		pauseDuration := time.Since(ctx.PauseTime)
		ctx.TotalPauseDuration += pauseDuration
		ctx.PauseTime = time.Time{}
		ctx.Logger.Info().
			Dur("pause_duration", pauseDuration).
			Msg("Training resumed")
	}
	return nil
}

func (s *PausedState) Validate(ctx *SessionContext) error { return nil }

// StoppedState is the final state after a clean shutdown
type StoppedState struct{}

func NewStoppedState() State { return &StoppedState{} }

func (s *StoppedState) Phase() SessionPhase { return PhaseStopped }

func (s *StoppedState) Enter(ctx *SessionContext) error {
	ctx.Logger.Info().
		Dur("elapsed", ctx.GetElapsedTime()).
		Msg("Training stopped")
	return nil
}

func (s *StoppedState) Exit(ctx *SessionContext) error { return nil }

func (s *StoppedState) Validate(ctx *SessionContext) error { return nil }

// ErrorState is the final state after an unrecoverable failure
type ErrorState struct{}

func NewErrorState() State { return &ErrorState{} }

func (s *ErrorState) Phase() SessionPhase { return PhaseError }

func (s *ErrorState) Enter(ctx *SessionContext) error {
	ctx.Logger.Error().Err(ctx.Error).Msg("Training entered error state")
	return nil
}

func (s *ErrorState) Exit(ctx *SessionContext) error { return nil }

func (s *ErrorState) Validate(ctx *SessionContext) error { return nil }
