package simulation

import (
	"time"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/monitoring"
)

// Snapshot is a consistent copy of everything status readers show
type Snapshot struct {
	RunID             string
	Phase             string
	Episode           int // the episode in progress, starting at 1
	EpisodesCompleted int
	EpisodeSteps      int
	Ticks             int64
	Elapsed           time.Duration
	TickDelay         time.Duration
	Timestamp         time.Time

	World   game.Snapshot
	Grid    []string
	Teams   [core.NumTeams]agent.Stats
	Heatmap [core.NumTeams][]int

	Progress monitoring.ProgressMetrics
}

// Snapshot copies the current state. Controller histories are cut to the
// configured snapshot_history most recent entries.
func (s *Simulation) Snapshot() Snapshot {
	s.worldMu.RLock()
	world := s.world.Snapshot()
	episodes := s.episodes
	steps := s.episodeSteps
	ticks := s.ticks
	s.worldMu.RUnlock()

	snap := Snapshot{
		RunID:             s.runID,
		Phase:             s.machine.CurrentPhase().String(),
		Episode:           episodes + 1,
		EpisodesCompleted: episodes,
		EpisodeSteps:      steps,
		Ticks:             ticks,
		Elapsed:           s.machine.Elapsed(),
		TickDelay:         s.TickDelay(),
		Timestamp:         time.Now(),
		World:             world,
		Grid:              world.Grid(),
		Heatmap:           s.Heatmap(),
		Progress:          s.monitor.GetMetrics(),
	}
	for team, c := range s.controllers {
		stats := c.Stats()
		stats.Losses = recent(stats.Losses, s.config.SnapshotHistory)
		stats.EpisodeRewards = recent(stats.EpisodeRewards, s.config.SnapshotHistory)
		stats.EpsilonValues = recent(stats.EpsilonValues, s.config.SnapshotHistory)
		snap.Teams[team] = stats
	}
	return snap
}

// History returns the full reporting histories of team's controller
func (s *Simulation) History(team core.TeamID) (agent.Stats, bool) {
	if !team.Valid() {
		return agent.Stats{}, false
	}
	return s.controllers[team].Stats(), true
}

func recent(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}
