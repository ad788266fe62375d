package states

import (
	"time"

	"github.com/rs/zerolog"
)

// SessionContext provides run-specific information to states
type SessionContext struct {
	// RunID uniquely identifies this training run
	RunID string

	Logger zerolog.Logger

	// StartTime is when the session first entered PhaseRunning
	StartTime time.Time

	// PauseTime is when the session was paused (if paused)
	PauseTime time.Time

	// TotalPauseDuration tracks total time spent paused
	TotalPauseDuration time.Duration

	// TeamCount is the number of controllers the session drives
	TeamCount int

	// Error holds any error that caused transition to PhaseError
	Error error
}

// NewSessionContext creates a new session context
func NewSessionContext(runID string, teamCount int, logger zerolog.Logger) *SessionContext {
	return &SessionContext{
		RunID:     runID,
		TeamCount: teamCount,
		Logger:    logger.With().Str("run_id", runID).Logger(),
	}
}

// GetElapsedTime returns the time elapsed since the session started, excluding pauses
func (sc *SessionContext) GetElapsedTime() time.Duration {
	if sc.StartTime.IsZero() {
		return 0
	}
	paused := sc.TotalPauseDuration
	if !sc.PauseTime.IsZero() {
		paused += time.Since(sc.PauseTime)
	}
	return time.Since(sc.StartTime) - paused
}
