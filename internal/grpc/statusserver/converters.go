package statusserver

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/simulation"
)

// SnapshotToStruct converts a simulation snapshot to the wire payload shared
// by the gRPC service and the HTTP API
func SnapshotToStruct(snap simulation.Snapshot) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(SnapshotToMap(snap))
	if err != nil {
		return nil, fmt.Errorf("failed to convert snapshot: %w", err)
	}
	return s, nil
}

// StatsToStruct converts a controller's full histories to the wire payload
func StatsToStruct(stats agent.Stats) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(statsToMap(stats))
	if err != nil {
		return nil, fmt.Errorf("failed to convert stats: %w", err)
	}
	return s, nil
}

// SnapshotToMap flattens a snapshot into values structpb accepts
func SnapshotToMap(snap simulation.Snapshot) map[string]interface{} {
	w := snap.World

	positions := make(map[string]interface{}, core.NumTeams)
	scores := make(map[string]interface{}, core.NumTeams)
	teams := make(map[string]interface{}, core.NumTeams)
	heatmap := make(map[string]interface{}, core.NumTeams)
	for _, team := range core.Teams {
		positions[team.String()] = coordinateToMap(w.Positions[team])
		scores[team.String()] = w.Scores[team]
		teams[team.String()] = statsToMap(snap.Teams[team])
		heatmap[team.String()] = intsToList(snap.Heatmap[team])
	}

	cells := make([]int, len(w.Cells))
	for i, c := range w.Cells {
		cells[i] = int(c)
	}

	flag := coordinateToMap(w.FlagPos)
	flag["free"] = w.FlagFree

	return map[string]interface{}{
		"run_id":             snap.RunID,
		"phase":              snap.Phase,
		"episode":            snap.Episode,
		"episodes_completed": snap.EpisodesCompleted,
		"episode_steps":      snap.EpisodeSteps,
		"ticks":              snap.Ticks,
		"elapsed_ms":         snap.Elapsed.Milliseconds(),
		"tick_delay_ms":      snap.TickDelay.Milliseconds(),
		"timestamp":          formatTimestamp(snap.Timestamp),
		"rows":               w.Rows,
		"cols":               w.Cols,
		"grid":               stringsToList(snap.Grid),
		"cells":              intsToList(cells),
		"positions":          positions,
		"scores":             scores,
		"carrier":            w.Carrier.String(),
		"flag":               flag,
		"episode_over":       w.EpisodeOver,
		"teams":              teams,
		"heatmap":            heatmap,
		"progress": map[string]interface{}{
			"ticks":               snap.Progress.Ticks,
			"episodes":            snap.Progress.Episodes,
			"ticks_since_episode": snap.Progress.TicksSinceEpisode,
			"ticks_per_second":    snap.Progress.TicksPerSecond,
			"stalled":             snap.Progress.Stalled,
			"goroutines":          snap.Progress.Goroutines,
		},
	}
}

func statsToMap(stats agent.Stats) map[string]interface{} {
	m := map[string]interface{}{
		"team":            stats.Team,
		"name":            stats.Name,
		"color":           stats.Color,
		"phase":           stats.Phase,
		"epsilon":         stats.Epsilon,
		"total_reward":    stats.TotalReward,
		"episodes":        stats.Episodes,
		"steps":           stats.Steps,
		"learn_steps":     stats.LearnSteps,
		"buffer_size":     stats.BufferSize,
		"buffer_dropped":  stats.BufferDropped,
		"losses":          floatsToList(stats.Losses),
		"episode_rewards": floatsToList(stats.EpisodeRewards),
		"epsilon_values":  floatsToList(stats.EpsilonValues),
		"recent_actions":  stringsToList(stats.RecentActions),
	}
	if stats.Failure != "" {
		m["failure"] = stats.Failure
	}
	return m
}

func coordinateToMap(c core.Coordinate) map[string]interface{} {
	return map[string]interface{}{"row": c.Y, "col": c.X}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func floatsToList(values []float64) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func intsToList(values []int) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func stringsToList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
