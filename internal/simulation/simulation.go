// Package simulation runs the training loop: one world, one controller per
// team, a session state machine and the bookkeeping readers need.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/agent"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/estimator"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/rules"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/states"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/monitoring"
)

// ErrAllTeamsFailed is returned when no controller is left to act
var ErrAllTeamsFailed = errors.New("all teams failed")

// ErrNotPaused is returned by Resume when the session is not paused
var ErrNotPaused = errors.New("session is not paused")

// EstimatorFactory builds the estimator of one team
type EstimatorFactory func(team core.TeamID, inputs, outputs int, rng *rand.Rand) (estimator.Estimator, error)

// MLPFactory returns a factory building an MLP per team
func MLPFactory(config estimator.MLPConfig, logger zerolog.Logger) EstimatorFactory {
	return func(team core.TeamID, inputs, outputs int, rng *rand.Rand) (estimator.Estimator, error) {
		return estimator.NewMLP(inputs, outputs, config, rng, logger.With().Str("team", team.String()).Logger())
	}
}

// TickResult summarizes one tick
type TickResult struct {
	Rewards      [core.NumTeams]float64
	Done         bool
	Winner       core.TeamID
	Truncated    bool
	EpisodeEnded bool
}

// Simulation owns the world and the controllers. Tick and Run must be
// driven from a single goroutine; everything else is safe for concurrent use.
type Simulation struct {
	runID  string
	config Config
	logger zerolog.Logger

	worldMu      sync.RWMutex // guards world and the episode counters
	world        *game.World
	episodes     int // completed episodes
	episodeSteps int
	episodeStart time.Time
	ticks        int64

	controllers [core.NumTeams]*agent.Controller

	heatMu  sync.Mutex
	heatmap [core.NumTeams][]int

	machine   *states.StateMachine
	bus       *events.EventBus
	monitor   *monitoring.ProgressMonitor
	tickDelay atomic.Int64
	wake      chan struct{}
}

// New builds the world and one controller per team. All RNGs are derived
// from config.Seed so a fixed seed gives a reproducible run.
func New(config Config, worldConfig game.Config, agentConfig agent.Config, factory EstimatorFactory, logger zerolog.Logger) (*Simulation, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}
	if factory == nil {
		return nil, errors.New("estimator factory is required")
	}

	runID := uuid.NewString()
	base := logger
	logger = logger.With().Str("run_id", runID).Logger()

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	master := rand.New(rand.NewSource(seed))

	bus := events.NewEventBus(logger)
	world, err := game.NewWorld(worldConfig, rand.New(rand.NewSource(master.Int63())), logger, game.WithPublisher(bus, runID))
	if err != nil {
		return nil, fmt.Errorf("failed to create world: %w", err)
	}

	s := &Simulation{
		runID:        runID,
		config:       config,
		logger:       logger.With().Str("component", "simulation").Logger(),
		world:        world,
		episodeStart: time.Now(),
		bus:          bus,
		monitor:      monitoring.NewProgressMonitor(config.Monitor, logger),
		wake:         make(chan struct{}, 1),
	}
	s.tickDelay.Store(int64(config.TickDelay))

	cells := world.Rows() * world.Cols()
	for _, team := range agent.DefaultTeams() {
		est, err := factory(team.ID, cells, core.NumActions, rand.New(rand.NewSource(master.Int63())))
		if err != nil {
			return nil, fmt.Errorf("failed to create estimator for %s: %w", team.ID, err)
		}
		c, err := agent.NewController(team, agentConfig, est, rand.New(rand.NewSource(master.Int63())), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create controller for %s: %w", team.ID, err)
		}
		s.controllers[team.ID] = c
		s.heatmap[team.ID] = make([]int, cells)
	}

	s.machine = states.NewStateMachine(states.NewSessionContext(runID, core.NumTeams, base), bus)

	s.logger.Info().
		Int64("seed", seed).
		Int("rows", world.Rows()).
		Int("cols", world.Cols()).
		Int("max_episode_steps", config.MaxEpisodeSteps).
		Msg("Simulation created")
	return s, nil
}

// lockedWorld serializes controller access to the world
type lockedWorld struct {
	s *Simulation
}

func (l lockedWorld) Observe(team core.TeamID) []float64 {
	l.s.worldMu.RLock()
	defer l.s.worldMu.RUnlock()
	return l.s.world.Observe(team)
}

func (l lockedWorld) Step(team core.TeamID, action core.Action) (game.StepResult, error) {
	l.s.worldMu.Lock()
	result, err := l.s.world.Step(team, action)
	pos := l.s.world.Position(team)
	cols := l.s.world.Cols()
	l.s.worldMu.Unlock()

	if err == nil {
		l.s.heatMu.Lock()
		l.s.heatmap[team][pos.ToIndex(cols)]++
		l.s.heatMu.Unlock()
	}
	return result, err
}

// Tick runs one cycle per team in order TeamA then TeamB. Once a team
// captures, the remaining teams skip the tick. Failed controllers are
// skipped; ErrAllTeamsFailed is returned when none is left.
func (s *Simulation) Tick() (TickResult, error) {
	env := lockedWorld{s: s}
	result := TickResult{Winner: core.NoTeam}
	active := 0

	for _, c := range s.controllers {
		if c.Failed() {
			continue
		}
		active++
		if result.Done {
			continue
		}

		team := c.Team().ID
		res, err := c.Tick(env)
		if err != nil {
			if c.Failed() {
				active--
				s.bus.Publish(events.NewAgentFailedEvent(s.runID, team, err))
				continue
			}
			return result, fmt.Errorf("tick %s: %w", team, err)
		}
		result.Rewards[team] = res.Reward
		if res.Done {
			result.Done = true
			result.Winner = team
		}
	}
	if active == 0 {
		return result, ErrAllTeamsFailed
	}

	s.monitor.RecordTick()
	s.worldMu.Lock()
	s.ticks++
	s.episodeSteps++
	steps := s.episodeSteps
	s.worldMu.Unlock()

	if !result.Done && s.config.MaxEpisodeSteps > 0 && steps >= s.config.MaxEpisodeSteps {
		result.Truncated = true
	}
	if result.Done || result.Truncated {
		s.endEpisode(result)
		result.EpisodeEnded = true
	}
	return result, nil
}

// endEpisode closes the episode for every live controller and resets the world
func (s *Simulation) endEpisode(result TickResult) {
	for _, c := range s.controllers {
		if !c.Failed() {
			c.EndEpisode()
		}
	}

	s.worldMu.Lock()
	s.episodes++
	episode := s.episodes
	steps := s.episodeSteps
	duration := time.Since(s.episodeStart)
	scores := s.world.Scores()
	s.world.Reset()
	s.episodeSteps = 0
	s.episodeStart = time.Now()
	started := s.episodeStartedEvent(episode + 1)
	s.worldMu.Unlock()

	s.monitor.RecordEpisode()

	s.logger.Debug().
		Int("episode", episode).
		Str("winner", result.Winner.String()).
		Bool("truncated", result.Truncated).
		Int("steps", steps).
		Msg("Episode finished")
	s.bus.Publish(events.NewEpisodeEndedEvent(s.runID, episode, result.Winner, result.Truncated, steps, duration, scores))
	s.bus.Publish(started)
}

// episodeStartedEvent must be called with worldMu held
func (s *Simulation) episodeStartedEvent(episode int) events.Event {
	return events.NewEpisodeStartedEvent(s.runID, episode, s.world.Rows(), s.world.Cols(), string(s.world.Config().Map.Layout))
}

// Run drives Tick until ctx is cancelled, Stop is called, the episode
// limit is reached or every team has failed. It parks while paused and
// returns nil at once for a session that already ended.
func (s *Simulation) Run(ctx context.Context) error {
	if s.machine.CurrentPhase().IsTerminal() {
		return nil
	}
	if err := s.machine.TransitionTo(states.PhaseRunning, "training started"); err != nil {
		return err
	}
	s.monitor.Start()
	defer s.monitor.Stop()

	s.worldMu.RLock()
	started := s.episodeStartedEvent(s.episodes + 1)
	s.worldMu.RUnlock()
	s.bus.Publish(started)

	for {
		if ctx.Err() != nil {
			s.stop("context cancelled")
			return nil
		}

		switch phase := s.machine.CurrentPhase(); {
		case phase.IsTerminal():
			return nil
		case phase == states.PhasePaused:
			select {
			case <-ctx.Done():
			case <-s.wake:
			}
			continue
		}

		if _, err := s.Tick(); err != nil {
			s.logger.Error().Err(err).Msg("Training loop failed")
			if failErr := s.machine.Fail(err); failErr != nil {
				s.logger.Warn().Err(failErr).Msg("Could not record failure")
			}
			return err
		}

		if s.config.MaxEpisodes > 0 && s.EpisodesCompleted() >= s.config.MaxEpisodes {
			s.stop("episode limit reached")
			return nil
		}

		if delay := s.TickDelay(); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
			case <-s.wake:
			case <-timer.C:
			}
			timer.Stop()
		}
	}
}

// Pause parks the training loop after the current tick
func (s *Simulation) Pause() error {
	return s.machine.TransitionTo(states.PhasePaused, "pause requested")
}

// Resume continues a paused training loop. Only Run starts one.
func (s *Simulation) Resume() error {
	if phase := s.machine.CurrentPhase(); phase != states.PhasePaused {
		return fmt.Errorf("%w: phase is %s", ErrNotPaused, phase)
	}
	if err := s.machine.TransitionTo(states.PhaseRunning, "resume requested"); err != nil {
		return err
	}
	s.signal()
	return nil
}

// Stop ends the session. Run returns after the current tick.
func (s *Simulation) Stop(reason string) error {
	if err := s.machine.TransitionTo(states.PhaseStopped, reason); err != nil {
		return err
	}
	s.signal()
	return nil
}

func (s *Simulation) stop(reason string) {
	if s.machine.CurrentPhase().IsTerminal() {
		return
	}
	if err := s.Stop(reason); err != nil {
		s.logger.Warn().Err(err).Msg("Could not stop session")
	}
}

func (s *Simulation) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SetTickDelay changes the pause between ticks of a running loop
func (s *Simulation) SetTickDelay(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.tickDelay.Store(int64(d))
	s.signal()
}

// TickDelay returns the pause between ticks
func (s *Simulation) TickDelay() time.Duration {
	return time.Duration(s.tickDelay.Load())
}

// SetRewardConfig swaps the reward coefficients used by subsequent steps
func (s *Simulation) SetRewardConfig(config rules.RewardConfig) error {
	s.worldMu.Lock()
	defer s.worldMu.Unlock()
	return s.world.SetRewardConfig(config)
}

// RunID returns the id tagging this run's logs and events
func (s *Simulation) RunID() string { return s.runID }

// Phase returns the session phase
func (s *Simulation) Phase() states.SessionPhase { return s.machine.CurrentPhase() }

// Bus returns the event bus. Handlers run synchronously on the training
// goroutine, some while the world lock is held, and must not call back
// into the simulation.
func (s *Simulation) Bus() *events.EventBus { return s.bus }

// Monitor returns the progress monitor
func (s *Simulation) Monitor() *monitoring.ProgressMonitor { return s.monitor }

// Controller returns the controller of team
func (s *Simulation) Controller(team core.TeamID) *agent.Controller { return s.controllers[team] }

// EpisodesCompleted returns the number of finished episodes
func (s *Simulation) EpisodesCompleted() int {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()
	return s.episodes
}

// Ticks returns the number of ticks run
func (s *Simulation) Ticks() int64 {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()
	return s.ticks
}

// Render draws the current board
func (s *Simulation) Render(color bool) string {
	s.worldMu.RLock()
	defer s.worldMu.RUnlock()
	return s.world.Render(color)
}

// Heatmap returns a copy of the per-team visit counts, row-major
func (s *Simulation) Heatmap() [core.NumTeams][]int {
	s.heatMu.Lock()
	defer s.heatMu.Unlock()

	var out [core.NumTeams][]int
	for team, counts := range s.heatmap {
		out[team] = append([]int(nil), counts...)
	}
	return out
}
