package events

import (
	"time"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// Event type constants
const (
	TypeEpisodeStarted  = "episode.started"
	TypeEpisodeEnded    = "episode.ended"
	TypeFlagPickedUp    = "flag.picked_up"
	TypeFlagCaptured    = "flag.captured"
	TypeMoveRejected    = "move.rejected"
	TypeAgentFailed     = "agent.failed"
	TypeStateTransition = "state.transition"
)

// EpisodeStartedEvent is published after the world has been reset
type EpisodeStartedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Rows     int
	Cols     int
	Layout   string
}

// NewEpisodeStartedEvent creates a new EpisodeStartedEvent
func NewEpisodeStartedEvent(runID string, episode, rows, cols int, layout string) *EpisodeStartedEvent {
	return &EpisodeStartedEvent{
		BaseEvent: newBase(TypeEpisodeStarted, runID),
		Metadata:  EventMetadata{Episode: episode},
		Rows:      rows,
		Cols:      cols,
		Layout:    layout,
	}
}

// EpisodeEndedEvent is published when an episode finishes by capture or truncation
type EpisodeEndedEvent struct {
	BaseEvent
	Metadata  EventMetadata
	Winner    core.TeamID // NoTeam when truncated
	Truncated bool
	Steps     int
	Duration  time.Duration
	Scores    [core.NumTeams]int
}

// NewEpisodeEndedEvent creates a new EpisodeEndedEvent
func NewEpisodeEndedEvent(runID string, episode int, winner core.TeamID, truncated bool, steps int, duration time.Duration, scores [core.NumTeams]int) *EpisodeEndedEvent {
	return &EpisodeEndedEvent{
		BaseEvent: newBase(TypeEpisodeEnded, runID),
		Metadata:  EventMetadata{Episode: episode, Step: steps},
		Winner:    winner,
		Truncated: truncated,
		Steps:     steps,
		Duration:  duration,
		Scores:    scores,
	}
}

// FlagPickedUpEvent is published when an agent steps onto the free flag
type FlagPickedUpEvent struct {
	BaseEvent
	Metadata EventMetadata
	Team     core.TeamID
	Position core.Coordinate
}

// NewFlagPickedUpEvent creates a new FlagPickedUpEvent
func NewFlagPickedUpEvent(runID string, team core.TeamID, pos core.Coordinate) *FlagPickedUpEvent {
	return &FlagPickedUpEvent{
		BaseEvent: newBase(TypeFlagPickedUp, runID),
		Metadata:  EventMetadata{Team: team.String()},
		Team:      team,
		Position:  pos,
	}
}

// FlagCapturedEvent is published when a carrier reaches its home region
type FlagCapturedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Team     core.TeamID
	Position core.Coordinate
	Score    int
}

// NewFlagCapturedEvent creates a new FlagCapturedEvent
func NewFlagCapturedEvent(runID string, team core.TeamID, pos core.Coordinate, score int) *FlagCapturedEvent {
	return &FlagCapturedEvent{
		BaseEvent: newBase(TypeFlagCaptured, runID),
		Metadata:  EventMetadata{Team: team.String()},
		Team:      team,
		Position:  pos,
		Score:     score,
	}
}

// MoveRejectedEvent is published when a move is blocked by the grid edge,
// an obstacle, the enemy home or the opponent
type MoveRejectedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Team     core.TeamID
	From     core.Coordinate
	Action   core.Action
	Reason   string
}

// NewMoveRejectedEvent creates a new MoveRejectedEvent
func NewMoveRejectedEvent(runID string, team core.TeamID, from core.Coordinate, action core.Action, reason string) *MoveRejectedEvent {
	return &MoveRejectedEvent{
		BaseEvent: newBase(TypeMoveRejected, runID),
		Metadata:  EventMetadata{Team: team.String()},
		Team:      team,
		From:      from,
		Action:    action,
		Reason:    reason,
	}
}

// AgentFailedEvent is published when a team's controller stops after an estimator failure
type AgentFailedEvent struct {
	BaseEvent
	Metadata EventMetadata
	Team     core.TeamID
	Err      string
}

// NewAgentFailedEvent creates a new AgentFailedEvent
func NewAgentFailedEvent(runID string, team core.TeamID, err error) *AgentFailedEvent {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &AgentFailedEvent{
		BaseEvent: newBase(TypeAgentFailed, runID),
		Metadata:  EventMetadata{Team: team.String()},
		Team:      team,
		Err:       msg,
	}
}

// StateTransitionEvent is published when the session state machine transitions between phases
type StateTransitionEvent struct {
	BaseEvent
	FromPhase string
	ToPhase   string
	Reason    string
}

// NewStateTransitionEvent creates a new StateTransitionEvent
func NewStateTransitionEvent(runID, fromPhase, toPhase, reason string) *StateTransitionEvent {
	return &StateTransitionEvent{
		BaseEvent: newBase(TypeStateTransition, runID),
		FromPhase: fromPhase,
		ToPhase:   toPhase,
		Reason:    reason,
	}
}
