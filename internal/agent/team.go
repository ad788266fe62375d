package agent

import "github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"

// Team is the identity a controller plays under
type Team struct {
	ID    core.TeamID
	Name  string
	Color string
}

// DefaultTeams returns the two teams in acting order
func DefaultTeams() [core.NumTeams]Team {
	return [core.NumTeams]Team{
		{ID: core.TeamA, Name: "Team 1", Color: "red"},
		{ID: core.TeamB, Name: "Team 2", Color: "blue"},
	}
}
