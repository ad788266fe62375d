package game

import (
	"fmt"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
)

// PlanCapture returns a shortest scripted walk for team from its current
// cell to the free flag and back to its nearest home cell. The other agent
// is assumed to stay out of the way.
func (w *World) PlanCapture(team core.TeamID) ([]core.Action, error) {
	if err := team.Validate(); err != nil {
		return nil, err
	}
	if w.episodeOver {
		return nil, core.ErrEpisodeOver
	}
	if w.carrier != core.NoTeam {
		return nil, fmt.Errorf("flag is already carried by %s", w.carrier)
	}

	from := w.positions[team]
	out, ok := mapgen.Route(w.layout, team, from, w.flagPos)
	if !ok {
		return nil, fmt.Errorf("%w: no path from %s to the flag", mapgen.ErrInvalidLayout, from)
	}
	home := w.layout.NearestHome(team, w.flagPos)
	back, ok := mapgen.Route(w.layout, team, w.flagPos, home)
	if !ok {
		return nil, fmt.Errorf("%w: no path from the flag to %s", mapgen.ErrInvalidLayout, home)
	}
	// The carrier scores on the first home cell it enters
	cur := w.flagPos
	for i, a := range back {
		cur = cur.Move(a)
		if w.layout.InHome(team, cur) {
			back = back[:i+1]
			break
		}
	}
	return append(out, back...), nil
}
