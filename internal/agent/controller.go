package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/estimator"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/experience"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// Environment is the part of the world a controller needs
type Environment interface {
	Observe(team core.TeamID) []float64
	Step(team core.TeamID, action core.Action) (game.StepResult, error)
}

// Controller trains one team online with epsilon-greedy exploration and
// experience replay. Tick must only be called from one goroutine; the
// metric accessors are safe to call from any goroutine.
type Controller struct {
	team      Team
	config    Config
	estimator estimator.Estimator
	buffer    *experience.Buffer
	rng       *rand.Rand
	logger    zerolog.Logger

	mu             sync.Mutex // guards the fields below
	phase          Phase
	epsilon        float64
	totalReward    float64
	episodeRewards []float64
	losses         []float64
	epsilonValues  []float64
	steps          int64
	learnSteps     int64
	episodes       int
	bufferFull     bool
	failure        error
}

// recentActions is how many of the latest moves Stats reports
const recentActions = 10

// NewController creates a controller for team. The replay buffer gets its
// own RNG seeded from rng so action selection and sampling stay reproducible.
func NewController(team Team, config Config, est estimator.Estimator, rng *rand.Rand, logger zerolog.Logger) (*Controller, error) {
	if err := team.ID.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if est == nil {
		return nil, errors.New("estimator is required")
	}
	if rng == nil {
		return nil, errors.New("rng is required")
	}

	l := logger.With().Str("component", "agent").Str("team", team.ID.String()).Logger()
	bufferRNG := rand.New(rand.NewSource(rng.Int63()))

	return &Controller{
		team:      team,
		config:    config,
		estimator: est,
		buffer:    experience.NewBuffer(config.BufferCapacity, bufferRNG, l),
		rng:       rng,
		logger:    l,
		phase:     PhaseObserving,
		epsilon:   config.EpsilonStart,
	}, nil
}

// Team returns the controller's team
func (c *Controller) Team() Team { return c.team }

// Buffer returns the controller's replay buffer
func (c *Controller) Buffer() *experience.Buffer { return c.buffer }

// SelectAction picks an action for obs: a uniformly random one with
// probability epsilon, otherwise the greedy action of the estimator.
func (c *Controller) SelectAction(obs []float64) (core.Action, error) {
	c.mu.Lock()
	eps := c.epsilon
	c.mu.Unlock()

	if c.rng.Float64() < eps {
		return core.AllActions[c.rng.Intn(core.NumActions)], nil
	}

	values, err := c.estimator.Predict(obs)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}
	if len(values) != core.NumActions {
		return 0, fmt.Errorf("%w: estimator returned %d values, want %d", estimator.ErrShapeMismatch, len(values), core.NumActions)
	}
	if !estimator.AllFinite(values) {
		return 0, fmt.Errorf("%w: non-finite action values", estimator.ErrDiverged)
	}
	action := core.Action(estimator.Argmax(values))
	if err := action.Validate(); err != nil {
		return 0, err
	}
	return action, nil
}

// Tick runs one Observe, Act, Learn cycle against env. Errors from env are
// returned unchanged and leave the controller usable; estimator errors move
// it to PhaseFailed and every later Tick returns ErrControllerFailed.
func (c *Controller) Tick(env Environment) (game.StepResult, error) {
	if c.Failed() {
		return game.StepResult{}, ErrControllerFailed
	}

	c.setPhase(PhaseObserving)
	state := env.Observe(c.team.ID)

	c.setPhase(PhaseActing)
	action, err := c.SelectAction(state)
	if err != nil {
		c.fail(err)
		return game.StepResult{}, err
	}

	result, err := env.Step(c.team.ID, action)
	if err != nil {
		c.setPhase(PhaseObserving)
		return game.StepResult{}, err
	}

	c.buffer.Add(experience.NewTransition(c.team.ID, state, action, result.Reward, result.Observation, result.Done))
	c.mu.Lock()
	c.totalReward += result.Reward
	c.steps++
	steps := c.steps
	fillsBuffer := !c.bufferFull && c.buffer.IsFull()
	if fillsBuffer {
		c.bufferFull = true
	}
	c.mu.Unlock()

	if fillsBuffer {
		c.logger.Info().
			Int("capacity", c.buffer.Capacity()).
			Int64("steps", steps).
			Msg("Replay buffer full, evicting oldest transitions")
	}

	c.setPhase(PhaseLearning)
	if steps%int64(c.config.LearnEvery) == 0 {
		if err := c.learn(); err != nil {
			c.fail(err)
			return result, err
		}
	}

	c.setPhase(PhaseObserving)
	return result, nil
}

// learn replays one batch into the estimator. A short buffer is not an error.
func (c *Controller) learn() error {
	batch, err := c.buffer.Sample(c.config.BatchSize)
	if errors.Is(err, experience.ErrInsufficientData) {
		return nil
	}
	if err != nil {
		return err
	}

	states := make([][]float64, len(batch))
	targets := make([][]float64, len(batch))
	for i, t := range batch {
		target, err := c.target(t)
		if err != nil {
			return err
		}
		states[i] = t.State
		targets[i] = target
	}

	loss, err := c.estimator.Fit(states, targets)
	if err != nil {
		return fmt.Errorf("fit: %w", err)
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return fmt.Errorf("%w: loss %v", estimator.ErrDiverged, loss)
	}

	c.mu.Lock()
	c.losses = appendBounded(c.losses, loss, c.config.HistoryLimit)
	c.learnSteps++
	c.mu.Unlock()
	return nil
}

// target is the current prediction for t.State with the taken action's slot
// replaced by the one-step bootstrapped return
func (c *Controller) target(t experience.Transition) ([]float64, error) {
	current, err := c.estimator.Predict(t.State)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(current) != core.NumActions {
		return nil, fmt.Errorf("%w: estimator returned %d values, want %d", estimator.ErrShapeMismatch, len(current), core.NumActions)
	}
	target := make([]float64, len(current))
	copy(target, current)

	value := t.Reward
	if !t.Done {
		next, err := c.estimator.Predict(t.NextState)
		if err != nil {
			return nil, fmt.Errorf("predict next: %w", err)
		}
		if !estimator.AllFinite(next) {
			return nil, fmt.Errorf("%w: non-finite next-state values", estimator.ErrDiverged)
		}
		value += c.config.Gamma * estimator.Max(next)
	}
	target[t.Action] = value
	return target, nil
}

// EndEpisode records the finished episode's return and decays epsilon
func (c *Controller) EndEpisode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.episodeRewards = appendBounded(c.episodeRewards, c.totalReward, c.config.HistoryLimit)
	c.totalReward = 0
	c.epsilon = math.Max(c.config.EpsilonFloor, c.epsilon*c.config.EpsilonDecay)
	c.epsilonValues = appendBounded(c.epsilonValues, c.epsilon, c.config.HistoryLimit)
	c.episodes++
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == p || c.phase == PhaseFailed {
		return
	}
	if !c.phase.CanTransitionTo(p) {
		c.logger.Warn().Stringer("from", c.phase).Stringer("to", p).Msg("Unexpected phase transition")
	}
	c.phase = p
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseFailed {
		return
	}
	c.phase = PhaseFailed
	c.failure = err
	c.logger.Error().Err(err).Int("episodes", c.episodes).Int64("steps", c.steps).Msg("Controller failed, team stops acting")
}

// Phase returns the current phase
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Failed reports whether the controller stopped after an estimator failure
func (c *Controller) Failed() bool {
	return c.Phase() == PhaseFailed
}

// Err returns the error that failed the controller, if any
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// Epsilon returns the current exploration rate
func (c *Controller) Epsilon() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epsilon
}

// Stats is a point-in-time copy of a controller's metrics
type Stats struct {
	Team           string    `json:"team"`
	Name           string    `json:"name"`
	Color          string    `json:"color"`
	Phase          string    `json:"phase"`
	Epsilon        float64   `json:"epsilon"`
	TotalReward    float64   `json:"total_reward"`
	Episodes       int       `json:"episodes"`
	Steps          int64     `json:"steps"`
	LearnSteps     int64     `json:"learn_steps"`
	BufferSize     int       `json:"buffer_size"`
	BufferDropped  int64     `json:"buffer_dropped"`
	EpisodeRewards []float64 `json:"episode_rewards"`
	Losses         []float64 `json:"losses"`
	EpsilonValues  []float64 `json:"epsilon_values"`
	RecentActions  []string  `json:"recent_actions"` // oldest first
	Failure        string    `json:"failure,omitempty"`
}

// Stats returns a copy of the controller's metrics
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	bs := c.buffer.Stats()
	s := Stats{
		Team:           c.team.ID.String(),
		Name:           c.team.Name,
		Color:          c.team.Color,
		Phase:          c.phase.String(),
		Epsilon:        c.epsilon,
		TotalReward:    c.totalReward,
		Episodes:       c.episodes,
		Steps:          c.steps,
		LearnSteps:     c.learnSteps,
		BufferSize:     bs.CurrentSize,
		BufferDropped:  bs.TotalDropped,
		EpisodeRewards: append([]float64(nil), c.episodeRewards...),
		Losses:         append([]float64(nil), c.losses...),
		EpsilonValues:  append([]float64(nil), c.epsilonValues...),
	}
	for _, t := range c.buffer.GetLatest(recentActions) {
		s.RecentActions = append(s.RecentActions, t.Action.String())
	}
	if c.failure != nil {
		s.Failure = c.failure.Error()
	}
	return s
}

// appendBounded appends v and drops the oldest entries beyond limit
func appendBounded(s []float64, v float64, limit int) []float64 {
	s = append(s, v)
	if len(s) > limit {
		s = append(s[:0], s[len(s)-limit:]...)
	}
	return s
}
