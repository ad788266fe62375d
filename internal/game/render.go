package game

import (
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// Board symbols, one rune per cell
const (
	SymbolEmpty    = "."
	SymbolObstacle = "#"
	SymbolFlag     = "F"
	SymbolHomeA    = "a"
	SymbolHomeB    = "b"
	SymbolAgentA   = "A"
	SymbolAgentB   = "B"
)

// Snapshot is a copy of the world state safe to hand to readers
type Snapshot struct {
	Rows        int
	Cols        int
	Cells       []core.CellType
	Positions   [core.NumTeams]core.Coordinate
	Scores      [core.NumTeams]int
	Carrier     core.TeamID
	FlagPos     core.Coordinate
	FlagFree    bool
	EpisodeOver bool
	Steps       int
}

// Snapshot copies the current state
func (w *World) Snapshot() Snapshot {
	cells := make([]core.CellType, len(w.board.Cells))
	copy(cells, w.board.Cells)
	return Snapshot{
		Rows:        w.board.H,
		Cols:        w.board.W,
		Cells:       cells,
		Positions:   w.positions,
		Scores:      w.scores,
		Carrier:     w.carrier,
		FlagPos:     w.flagPos,
		FlagFree:    w.flagFree(),
		EpisodeOver: w.episodeOver,
		Steps:       w.steps,
	}
}

// Render draws the world as text, one line per row
func (w *World) Render(color bool) string {
	return w.Snapshot().Render(color)
}

// Render draws the snapshot as text. Team A is red, team B blue, the flag
// yellow, and the flag carrier bold.
func (s Snapshot) Render(color bool) string {
	au := aurora.NewAurora(color)

	var sb strings.Builder
	sb.Grow((s.Cols + 1) * (s.Rows + 2))
	for y := 0; y < s.Rows; y++ {
		for x := 0; x < s.Cols; x++ {
			sb.WriteString(s.symbol(au, s.Cells[y*s.Cols+x]))
		}
		sb.WriteByte('\n')
	}

	carrier := "none"
	if s.Carrier.Valid() {
		carrier = s.Carrier.String()
	}
	fmt.Fprintf(&sb, "score %s=%d %s=%d carrier=%s\n",
		core.TeamA, s.Scores[core.TeamA], core.TeamB, s.Scores[core.TeamB], carrier)
	return sb.String()
}

func (s Snapshot) symbol(au aurora.Aurora, cell core.CellType) string {
	switch cell {
	case core.CellObstacle:
		return SymbolObstacle
	case core.CellFlag:
		return au.Yellow(SymbolFlag).String()
	case core.CellTeamAHome:
		return au.Red(SymbolHomeA).String()
	case core.CellTeamBHome:
		return au.Blue(SymbolHomeB).String()
	case core.CellTeamAAgent:
		if s.Carrier == core.TeamA {
			return au.Red(SymbolAgentA).Bold().String()
		}
		return au.Red(SymbolAgentA).String()
	case core.CellTeamBAgent:
		if s.Carrier == core.TeamB {
			return au.Blue(SymbolAgentB).Bold().String()
		}
		return au.Blue(SymbolAgentB).String()
	default:
		return SymbolEmpty
	}
}

// Grid returns the snapshot as rows of symbols without color
func (s Snapshot) Grid() []string {
	rows := strings.Split(strings.TrimSuffix(s.Render(false), "\n"), "\n")
	return rows[:s.Rows]
}
