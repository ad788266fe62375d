package rules

import "github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"

// HomeChecker reports whether a cell belongs to a team's home region
type HomeChecker interface {
	InHome(team core.TeamID, c core.Coordinate) bool
}

// IsCapture reports whether a move completes a capture: the team holds the
// flag and stands inside its own home region.
func IsCapture(homes HomeChecker, team core.TeamID, pos core.Coordinate, carrier core.TeamID) bool {
	if !team.Valid() || carrier != team {
		return false
	}
	return homes.InHome(team, pos)
}
