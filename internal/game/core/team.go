package core

import "fmt"

// TeamID identifies one of the two competing teams. Its value is also the
// fixed order in which teams act within a tick.
type TeamID int

const (
	NoTeam TeamID = -1
	TeamA  TeamID = 0
	TeamB  TeamID = 1
)

// NumTeams is the number of teams on the grid
const NumTeams = 2

// Teams lists the teams in acting order
var Teams = [NumTeams]TeamID{TeamA, TeamB}

// Valid reports whether the id names a team
func (t TeamID) Valid() bool { return t == TeamA || t == TeamB }

// Validate returns ErrInvalidTeam for unknown teams
func (t TeamID) Validate() error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTeam, int(t))
	}
	return nil
}

// Opponent returns the other team
func (t TeamID) Opponent() TeamID {
	switch t {
	case TeamA:
		return TeamB
	case TeamB:
		return TeamA
	default:
		return NoTeam
	}
}

// AgentCell is the tag written where the team's agent stands
func (t TeamID) AgentCell() CellType {
	if t == TeamB {
		return CellTeamBAgent
	}
	return CellTeamAAgent
}

// HomeCell is the terrain tag of the team's home base
func (t TeamID) HomeCell() CellType {
	if t == TeamB {
		return CellTeamBHome
	}
	return CellTeamAHome
}

func (t TeamID) String() string {
	switch t {
	case TeamA:
		return "team_a"
	case TeamB:
		return "team_b"
	case NoTeam:
		return "none"
	default:
		return fmt.Sprintf("team(%d)", int(t))
	}
}

// ParseTeam accepts "a", "b", "team_a", "team_b", "team1" and "team2"
func ParseTeam(s string) (TeamID, error) {
	switch s {
	case "a", "A", "team_a", "team1":
		return TeamA, nil
	case "b", "B", "team_b", "team2":
		return TeamB, nil
	}
	return NoTeam, fmt.Errorf("%w: %q", ErrInvalidTeam, s)
}
