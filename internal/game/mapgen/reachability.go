package mapgen

import "github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"

// Passable reports whether a team may stand on a terrain cell.
// Obstacles and the opponent's home region are closed to it.
func Passable(terrain core.CellType, team core.TeamID) bool {
	switch {
	case terrain == core.CellObstacle:
		return false
	case terrain.IsHome():
		return terrain == team.HomeCell()
	default:
		return true
	}
}

// Reachable reports whether every team can walk from its start to the flag.
// Moves are reversible, so the same path also leads back home.
func Reachable(l *Layout) bool {
	for _, team := range core.Teams {
		if !pathExists(l, team, l.Starts[team], l.Flag) {
			return false
		}
	}
	return true
}

func pathExists(l *Layout, team core.TeamID, from, to core.Coordinate) bool {
	_, ok := Route(l, team, from, to)
	return ok
}

// Route returns a shortest sequence of moves that takes team from one cell to
// another over passable terrain, ignoring the other agent. ok is false when
// no such path exists.
func Route(l *Layout, team core.TeamID, from, to core.Coordinate) (actions []core.Action, ok bool) {
	b := l.Terrain
	if !b.InBounds(from) || !b.InBounds(to) {
		return nil, false
	}
	// via[i] is the move that first reached cell i, -1 when unvisited
	via := make([]core.Action, len(b.Cells))
	for i := range via {
		via[i] = -1
	}
	start, goal := from.ToIndex(b.W), to.ToIndex(b.W)
	via[start] = 0
	queue := []int{start}

	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		if head == goal {
			return backtrack(b.W, via, from, to), true
		}
		cur := core.FromIndex(head, b.W)
		for _, a := range core.AllActions {
			next := cur.Move(a)
			if !b.InBounds(next) || !Passable(b.Get(next), team) {
				continue
			}
			idx := next.ToIndex(b.W)
			if idx == start || via[idx] >= 0 {
				continue
			}
			via[idx] = a
			queue = append(queue, idx)
		}
	}
	return nil, false
}

func backtrack(width int, via []core.Action, from, to core.Coordinate) []core.Action {
	var path []core.Action
	for cur := to; !cur.Equal(from); {
		a := via[cur.ToIndex(width)]
		path = append(path, a)
		d := a.Delta()
		cur = core.Coordinate{X: cur.X - d.X, Y: cur.Y - d.Y}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
