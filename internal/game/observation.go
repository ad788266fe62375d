package game

import "github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"

// Observation tags as seen by the acting agent
const (
	ObsEmpty        = 0.0
	ObsBlocked      = 1.0 // obstacle or the opponent's home
	ObsOpponent     = 2.0
	ObsFlag         = 3.0
	ObsSelf         = 4.0
	ObsSelfCarrying = 5.0
)

// Observe encodes the grid from team's point of view as a row-major vector
// of length rows*cols. The agent's own cell always reads ObsSelf or ObsSelfCarrying.
func (w *World) Observe(team core.TeamID) []float64 {
	obs := make([]float64, len(w.board.Cells))
	for i, cell := range w.board.Cells {
		obs[i] = encodeCell(cell, team)
	}

	self := w.positions[team].ToIndex(w.board.W)
	if w.carrier == team {
		obs[self] = ObsSelfCarrying
	} else {
		obs[self] = ObsSelf
	}
	return obs
}

func encodeCell(cell core.CellType, team core.TeamID) float64 {
	switch {
	case cell == core.CellObstacle:
		return ObsBlocked
	case cell == core.CellFlag:
		return ObsFlag
	case cell.IsHome():
		if cell == team.HomeCell() {
			return ObsEmpty
		}
		return ObsBlocked
	case cell.IsAgent():
		if cell == team.AgentCell() {
			return ObsSelf
		}
		return ObsOpponent
	default:
		return ObsEmpty
	}
}
