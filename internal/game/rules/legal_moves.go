package rules

import (
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
)

// CanEnter reports whether team may move onto target. Cells off the board,
// obstacles, the opponent's home and the opponent's agent block the move.
func CanEnter(terrain *core.Board, team core.TeamID, target, opponent core.Coordinate) bool {
	if !terrain.InBounds(target) {
		return false
	}
	if target.Equal(opponent) {
		return false
	}
	return mapgen.Passable(terrain.Get(target), team)
}

// LegalActionMask returns one entry per action, true where the move from pos
// would be accepted.
func LegalActionMask(terrain *core.Board, team core.TeamID, pos, opponent core.Coordinate) [core.NumActions]bool {
	var mask [core.NumActions]bool
	for _, a := range core.AllActions {
		mask[a] = CanEnter(terrain, team, pos.Move(a), opponent)
	}
	return mask
}
