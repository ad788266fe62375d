package simulation

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/estimator"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/rules"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/states"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/testutil"
)

// scriptedEstimator makes a greedy controller play a fixed action sequence,
// repeating the last action once the script runs out
type scriptedEstimator struct {
	mu      sync.Mutex
	actions []core.Action
	next    int
}

func (s *scriptedEstimator) Predict([]float64) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.next
	if i >= len(s.actions) {
		i = len(s.actions) - 1
	}
	s.next++
	values := make([]float64, core.NumActions)
	values[s.actions[i]] = 1
	return values, nil
}

func (s *scriptedEstimator) Fit([][]float64, [][]float64) (float64, error) { return 0, nil }

func repeat(a core.Action, n int) []core.Action {
	out := make([]core.Action, n)
	for i := range out {
		out[i] = a
	}
	return out
}

func scriptedFactory(scripts [core.NumTeams][]core.Action) EstimatorFactory {
	return func(team core.TeamID, _, _ int, _ *rand.Rand) (estimator.Estimator, error) {
		return &scriptedEstimator{actions: scripts[team]}, nil
	}
}

func fixedFactory(ests [core.NumTeams]estimator.Estimator) EstimatorFactory {
	return func(team core.TeamID, _, _ int, _ *rand.Rand) (estimator.Estimator, error) {
		return ests[team], nil
	}
}

func openWorldConfig() game.Config {
	config := game.DefaultConfig()
	config.Map.Layout = mapgen.LayoutOpen
	return config
}

// greedyAgentConfig never explores and never has enough data to learn
func greedyAgentConfig() agent.Config {
	config := agent.DefaultConfig()
	config.EpsilonStart = 0
	config.EpsilonFloor = 0
	return config
}

func testSimConfig() Config {
	config := DefaultConfig()
	config.Seed = 12345
	config.MaxEpisodeSteps = 0
	config.Monitor.CheckInterval = 0
	return config
}

func newTestSimulation(t *testing.T, config Config, factory EstimatorFactory) *Simulation {
	t.Helper()
	s, err := New(config, openWorldConfig(), greedyAgentConfig(), factory, testutil.NopLogger())
	require.NoError(t, err)
	return s
}

func TestNew_Errors(t *testing.T) {
	logger := testutil.NopLogger()

	bad := testSimConfig()
	bad.MaxEpisodeSteps = -1
	_, err := New(bad, openWorldConfig(), greedyAgentConfig(), MLPFactory(estimator.DefaultMLPConfig(), logger), logger)
	assert.Error(t, err)

	_, err = New(testSimConfig(), openWorldConfig(), greedyAgentConfig(), nil, logger)
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = New(testSimConfig(), openWorldConfig(), greedyAgentConfig(),
		func(core.TeamID, int, int, *rand.Rand) (estimator.Estimator, error) { return nil, boom }, logger)
	assert.ErrorIs(t, err, boom)

	badWorld := openWorldConfig()
	badWorld.Map.Rows = 0
	_, err = New(testSimConfig(), badWorld, greedyAgentConfig(), MLPFactory(estimator.DefaultMLPConfig(), logger), logger)
	assert.ErrorIs(t, err, mapgen.ErrInvalidLayout)
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSimulation(t, testSimConfig(), MLPFactory(estimator.DefaultMLPConfig(), testutil.NopLogger()))

	assert.NotEmpty(t, s.RunID())
	assert.Equal(t, states.PhaseInitializing, s.Phase())
	assert.Equal(t, 0, s.EpisodesCompleted())
	for _, team := range core.Teams {
		require.NotNil(t, s.Controller(team))
		assert.Equal(t, team, s.Controller(team).Team().ID)
	}
	heat := s.Heatmap()
	assert.Len(t, heat[core.TeamA], 200)
}

func TestTick_CaptureEndsEpisode(t *testing.T) {
	var scripts [core.NumTeams][]core.Action
	scripts[core.TeamA] = append(repeat(core.ActionRight, 9), repeat(core.ActionLeft, 8)...)
	scripts[core.TeamB] = []core.Action{core.ActionUp}
	s := newTestSimulation(t, testSimConfig(), scriptedFactory(scripts))

	var ended []*events.EpisodeEndedEvent
	s.Bus().SubscribeFunc(events.TypeEpisodeEnded, func(e events.Event) {
		ended = append(ended, e.(*events.EpisodeEndedEvent))
	})
	captures := 0
	s.Bus().SubscribeFunc(events.TypeFlagCaptured, func(events.Event) { captures++ })

	for tick := 1; tick <= 16; tick++ {
		result, err := s.Tick()
		require.NoError(t, err)
		require.False(t, result.Done, "tick %d", tick)
		require.False(t, result.EpisodeEnded)
	}
	snap := s.Snapshot()
	assert.Equal(t, core.TeamA, snap.World.Carrier)
	assert.Equal(t, core.At(5, 3), snap.World.Positions[core.TeamA])

	result, err := s.Tick()
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.True(t, result.EpisodeEnded)
	assert.False(t, result.Truncated)
	assert.Equal(t, core.TeamA, result.Winner)
	assert.Equal(t, 0.0, result.Rewards[core.TeamB], "team B skips the capturing tick")

	assert.Equal(t, int64(17), s.Controller(core.TeamA).Stats().Steps)
	assert.Equal(t, int64(16), s.Controller(core.TeamB).Stats().Steps)

	snap = s.Snapshot()
	assert.Equal(t, 1, snap.EpisodesCompleted)
	assert.Equal(t, 2, snap.Episode)
	assert.Equal(t, 0, snap.EpisodeSteps)
	assert.Equal(t, [core.NumTeams]int{1, 0}, snap.World.Scores)
	assert.Equal(t, core.At(5, 1), snap.World.Positions[core.TeamA], "world reset after the capture")
	assert.True(t, snap.World.FlagFree)
	for _, stats := range snap.Teams {
		assert.Equal(t, 1, stats.Episodes)
		assert.Len(t, stats.EpisodeRewards, 1)
	}

	require.Len(t, ended, 1)
	assert.Equal(t, core.TeamA, ended[0].Winner)
	assert.Equal(t, 17, ended[0].Steps)
	assert.Equal(t, 1, ended[0].Metadata.Episode)
	assert.Equal(t, 1, captures)

	last := s.Controller(core.TeamA).Buffer().GetLatest(1)
	require.Len(t, last, 1)
	assert.True(t, last[0].Done)
}

func TestTick_Truncation(t *testing.T) {
	config := testSimConfig()
	config.MaxEpisodeSteps = 5
	var scripts [core.NumTeams][]core.Action
	scripts[core.TeamA] = []core.Action{core.ActionUp}
	scripts[core.TeamB] = []core.Action{core.ActionDown}
	s := newTestSimulation(t, config, scriptedFactory(scripts))

	for tick := 1; tick < 5; tick++ {
		result, err := s.Tick()
		require.NoError(t, err)
		require.False(t, result.EpisodeEnded)
	}
	result, err := s.Tick()
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.True(t, result.EpisodeEnded)
	assert.False(t, result.Done)
	assert.Equal(t, core.NoTeam, result.Winner)

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.EpisodesCompleted)
	assert.Equal(t, [core.NumTeams]int{0, 0}, snap.World.Scores)
	for _, team := range core.Teams {
		buffer := s.Controller(team).Buffer()
		for _, tr := range buffer.GetLatest(buffer.Size()) {
			assert.False(t, tr.Done, "truncation is not recorded as terminal")
		}
		assert.Len(t, s.Controller(team).Stats().EpsilonValues, 1, "truncation closes the episode for both teams")
	}
}

func TestTick_FailedTeamIsSkipped(t *testing.T) {
	broken := testutil.NewFakeEstimator()
	broken.PredictErr = estimator.ErrDiverged
	healthy := testutil.NewFakeEstimator()
	s := newTestSimulation(t, testSimConfig(), fixedFactory([core.NumTeams]estimator.Estimator{broken, healthy}))

	var failed []core.TeamID
	s.Bus().SubscribeFunc(events.TypeAgentFailed, func(e events.Event) {
		failed = append(failed, e.(*events.AgentFailedEvent).Team)
	})

	_, err := s.Tick()
	require.NoError(t, err)
	_, err = s.Tick()
	require.NoError(t, err)

	assert.True(t, s.Controller(core.TeamA).Failed())
	assert.False(t, s.Controller(core.TeamB).Failed())
	assert.Equal(t, []core.TeamID{core.TeamA}, failed)
	assert.Equal(t, int64(0), s.Controller(core.TeamA).Stats().Steps)
	assert.Equal(t, int64(2), s.Controller(core.TeamB).Stats().Steps)
	assert.Equal(t, int64(2), s.Ticks())

	healthy.PredictErr = estimator.ErrDiverged
	_, err = s.Tick()
	assert.ErrorIs(t, err, ErrAllTeamsFailed)
}

func TestSnapshot(t *testing.T) {
	config := testSimConfig()
	config.MaxEpisodeSteps = 2
	config.SnapshotHistory = 2
	var scripts [core.NumTeams][]core.Action
	scripts[core.TeamA] = []core.Action{core.ActionRight}
	scripts[core.TeamB] = []core.Action{core.ActionLeft}
	s := newTestSimulation(t, config, scriptedFactory(scripts))

	for i := 0; i < 10; i++ {
		_, err := s.Tick()
		require.NoError(t, err)
	}

	snap := s.Snapshot()
	assert.Equal(t, s.RunID(), snap.RunID)
	assert.Equal(t, "Initializing", snap.Phase)
	assert.Equal(t, int64(10), snap.Ticks)
	assert.Equal(t, 5, snap.EpisodesCompleted)
	assert.Len(t, snap.Grid, 10)
	assert.Equal(t, 20, len(snap.Grid[0]))
	assert.Equal(t, int64(10), snap.Progress.Ticks)
	assert.Equal(t, int64(5), snap.Progress.Episodes)

	for _, team := range core.Teams {
		stats := snap.Teams[team]
		assert.Len(t, stats.EpisodeRewards, 2, "snapshot keeps the newest entries")
		assert.Len(t, stats.EpsilonValues, 2)

		full, ok := s.History(team)
		require.True(t, ok)
		assert.Len(t, full.EpisodeRewards, 5)

		total := 0
		for _, n := range snap.Heatmap[team] {
			total += n
		}
		assert.Equal(t, 10, total, "one visit per step")
	}
	// Team A alternates between (5,2) and a reset, never anywhere else
	assert.Equal(t, 5, snap.Heatmap[core.TeamA][core.At(5, 2).ToIndex(20)])
	assert.Equal(t, 5, snap.Heatmap[core.TeamA][core.At(5, 3).ToIndex(20)])

	_, ok := s.History(core.NoTeam)
	assert.False(t, ok)
}

func TestSetters(t *testing.T) {
	s := newTestSimulation(t, testSimConfig(), scriptedFactory([core.NumTeams][]core.Action{{core.ActionUp}, {core.ActionUp}}))

	s.SetTickDelay(25 * time.Millisecond)
	assert.Equal(t, 25*time.Millisecond, s.TickDelay())
	s.SetTickDelay(-time.Second)
	assert.Equal(t, time.Duration(0), s.TickDelay())

	rewards := rules.DefaultRewardConfig()
	rewards.InvalidMove = -5
	require.NoError(t, s.SetRewardConfig(rewards))

	// Team A at (5,1) moves up into its home, then (3,1), (2,1), (1,1), (0,1), then off the grid
	var last TickResult
	for i := 0; i < 6; i++ {
		var err error
		last, err = s.Tick()
		require.NoError(t, err)
	}
	assert.Equal(t, -5.0, last.Rewards[core.TeamA])

	rewards.InvalidMove = 3
	assert.Error(t, s.SetRewardConfig(rewards))
}

func TestRun_PauseResumeStop(t *testing.T) {
	config := testSimConfig()
	config.TickDelay = time.Millisecond
	config.MaxEpisodeSteps = 50
	s := newTestSimulation(t, config, MLPFactory(estimator.DefaultMLPConfig(), testutil.NopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	testutil.WaitFor(t, 2*time.Second, func() bool { return s.Ticks() > 5 }, "loop never ticked")
	assert.Equal(t, states.PhaseRunning, s.Phase())

	require.NoError(t, s.Pause())
	assert.Equal(t, states.PhasePaused, s.Phase())
	time.Sleep(30 * time.Millisecond)
	parked := s.Ticks()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, parked, s.Ticks(), "paused loop does not tick")

	require.NoError(t, s.Resume())
	testutil.WaitFor(t, 2*time.Second, func() bool { return s.Ticks() > parked }, "loop did not resume")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, states.PhaseStopped, s.Phase())

	assert.ErrorIs(t, s.Resume(), ErrNotPaused, "stopped is terminal")
	ticks := s.Ticks()
	assert.NoError(t, s.Run(context.Background()), "an ended session returns at once")
	assert.Equal(t, ticks, s.Ticks())
}

func TestResumeBeforeRun(t *testing.T) {
	config := testSimConfig()
	config.MaxEpisodes = 1
	config.MaxEpisodeSteps = 4
	s := newTestSimulation(t, config, scriptedFactory([core.NumTeams][]core.Action{{core.ActionUp}, {core.ActionDown}}))

	assert.ErrorIs(t, s.Resume(), ErrNotPaused)
	assert.Error(t, s.Pause(), "nothing to pause before the loop starts")
	assert.Equal(t, states.PhaseInitializing, s.Phase())

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, s.EpisodesCompleted())
	assert.Equal(t, states.PhaseStopped, s.Phase())
}

func TestStopBeforeRun(t *testing.T) {
	s := newTestSimulation(t, testSimConfig(), scriptedFactory([core.NumTeams][]core.Action{{core.ActionUp}, {core.ActionDown}}))

	require.NoError(t, s.Stop("shutdown before start"))
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int64(0), s.Ticks())
	assert.Equal(t, states.PhaseStopped, s.Phase())
}

func TestRun_StopWhilePaused(t *testing.T) {
	config := testSimConfig()
	config.TickDelay = time.Millisecond
	s := newTestSimulation(t, config, scriptedFactory([core.NumTeams][]core.Action{{core.ActionUp}, {core.ActionDown}}))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	testutil.WaitFor(t, 2*time.Second, func() bool { return s.Ticks() > 0 })

	require.NoError(t, s.Pause())
	require.NoError(t, s.Stop("operator stop"))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, states.PhaseStopped, s.Phase())
}

func TestRun_EpisodeLimit(t *testing.T) {
	config := testSimConfig()
	config.MaxEpisodes = 3
	config.MaxEpisodeSteps = 4
	s := newTestSimulation(t, config, scriptedFactory([core.NumTeams][]core.Action{{core.ActionUp}, {core.ActionDown}}))

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 3, s.EpisodesCompleted())
	assert.Equal(t, int64(12), s.Ticks())
	assert.Equal(t, states.PhaseStopped, s.Phase())
}

func TestRun_AllTeamsFailed(t *testing.T) {
	a := testutil.NewFakeEstimator()
	a.PredictErr = estimator.ErrDiverged
	b := testutil.NewFakeEstimator()
	b.PredictErr = estimator.ErrDiverged
	s := newTestSimulation(t, testSimConfig(), fixedFactory([core.NumTeams]estimator.Estimator{a, b}))

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrAllTeamsFailed)
	assert.Equal(t, states.PhaseError, s.Phase())
}

func TestRun_Deterministic(t *testing.T) {
	run := func() Snapshot {
		config := testSimConfig()
		config.Seed = 7
		config.MaxEpisodes = 2
		config.MaxEpisodeSteps = 40
		agentConfig := agent.DefaultConfig()
		agentConfig.BatchSize = 8
		agentConfig.BufferCapacity = 100
		s, err := New(config, game.DefaultConfig(), agentConfig, MLPFactory(estimator.DefaultMLPConfig(), testutil.NopLogger()), testutil.NopLogger())
		require.NoError(t, err)
		require.NoError(t, s.Run(context.Background()))
		return s.Snapshot()
	}

	first, second := run(), run()
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.World.Cells, second.World.Cells)
	assert.Equal(t, first.Heatmap, second.Heatmap)
	for _, team := range core.Teams {
		assert.Equal(t, first.Teams[team].Losses, second.Teams[team].Losses)
	}
}
