package experience

import (
	"github.com/google/uuid"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// Transition is one recorded (state, action, reward, next state, done) tuple.
// It is treated as immutable once created; NewTransition copies the slices it is given.
type Transition struct {
	ID        uuid.UUID
	Team      core.TeamID
	State     []float64
	Action    core.Action
	Reward    float64
	NextState []float64
	Done      bool
}

// NewTransition creates a transition with a fresh ID and private copies of both observations
func NewTransition(team core.TeamID, state []float64, action core.Action, reward float64, nextState []float64, done bool) Transition {
	return Transition{
		ID:        uuid.New(),
		Team:      team,
		State:     cloneFloats(state),
		Action:    action,
		Reward:    reward,
		NextState: cloneFloats(nextState),
		Done:      done,
	}
}

func cloneFloats(src []float64) []float64 {
	if src == nil {
		return nil
	}
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst
}
