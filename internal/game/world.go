package game

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/events"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/rules"
)

// Rejection reasons reported in StepResult and MoveRejected events
const (
	RejectOutOfBounds = "out_of_bounds"
	RejectObstacle    = "obstacle"
	RejectEnemyHome   = "enemy_home"
	RejectOccupied    = "occupied"
)

// Config holds everything needed to build a World
type Config struct {
	Map     mapgen.MapConfig
	Rewards rules.RewardConfig
}

// DefaultConfig returns a walled 10x20 arena with the default reward policy
func DefaultConfig() Config {
	return Config{
		Map:     mapgen.DefaultMapConfig(10, 20),
		Rewards: rules.DefaultRewardConfig(),
	}
}

// Validate checks the layout and reward settings
func (c Config) Validate() error {
	if err := c.Map.Validate(); err != nil {
		return err
	}
	if err := c.Rewards.Validate(); err != nil {
		return fmt.Errorf("invalid rewards: %w", err)
	}
	return nil
}

// StepResult is the outcome of one move
type StepResult struct {
	Observation []float64
	Reward      float64
	Done        bool
	Accepted    bool
	PickedUp    bool
	Captured    bool
	Reason      string // why the move was rejected, empty when accepted
}

// Option configures optional World collaborators
type Option func(*World)

// WithPublisher makes the world publish flag and rejection events tagged with runID
func WithPublisher(p events.Publisher, runID string) Option {
	return func(w *World) {
		w.publisher = p
		w.runID = runID
	}
}

// World is the capture-the-flag grid. It is not safe for concurrent use;
// callers serialize access.
type World struct {
	config    Config
	layout    *mapgen.Layout
	board     *core.Board // terrain with flag and agent tags written over it
	positions [core.NumTeams]core.Coordinate
	carrier   core.TeamID
	flagPos   core.Coordinate // meaningful while the flag is free
	scores    [core.NumTeams]int

	episodeOver bool
	steps       int

	generator *mapgen.Generator
	policy    rules.RewardPolicy
	publisher events.Publisher
	runID     string
	logger    zerolog.Logger
}

// NewWorld validates the configuration, builds the layout and resets the world.
// A nil rng is seeded from the clock.
func NewWorld(config Config, rng *rand.Rand, logger zerolog.Logger, opts ...Option) (*World, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	w := &World{
		config:    config,
		carrier:   core.NoTeam,
		generator: mapgen.NewGenerator(config.Map, rng),
		policy:    rules.NewRewardPolicy(config.Rewards),
		logger:    logger.With().Str("component", "world").Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}

	layout, err := w.generator.Generate()
	if err != nil {
		return nil, err
	}
	w.layout = layout
	w.place()

	w.logger.Info().
		Int("rows", config.Map.Rows).
		Int("cols", config.Map.Cols).
		Str("layout", string(config.Map.Layout)).
		Int("obstacles", layout.Terrain.Count(core.CellObstacle)).
		Msg("World created")
	return w, nil
}

// Reset starts a new episode. Fixed layouts come back identical; random
// layouts are drawn again from the world's RNG. Scores are kept.
func (w *World) Reset() {
	if w.config.Map.Layout == mapgen.LayoutRandom {
		layout, err := w.generator.Generate()
		if err != nil {
			// Config was validated at construction so this only guards against misuse
			w.logger.Error().Err(err).Msg("Failed to regenerate layout, keeping previous one")
		} else {
			w.layout = layout
		}
	}
	w.place()
}

// place writes terrain, agents and the free flag for a fresh episode
func (w *World) place() {
	w.board = w.layout.Terrain.Clone()
	w.carrier = core.NoTeam
	w.flagPos = w.layout.Flag
	w.board.Set(w.flagPos, core.CellFlag)
	for _, team := range core.Teams {
		w.positions[team] = w.layout.Starts[team]
		w.board.Set(w.positions[team], team.AgentCell())
	}
	w.episodeOver = false
	w.steps = 0
}

// Step moves team one cell in the direction of action
func (w *World) Step(team core.TeamID, action core.Action) (StepResult, error) {
	if err := team.Validate(); err != nil {
		return StepResult{}, err
	}
	if err := action.Validate(); err != nil {
		return StepResult{}, err
	}
	if w.episodeOver {
		return StepResult{}, core.ErrEpisodeOver
	}
	w.steps++

	old := w.positions[team]
	target := old.Move(action)
	carriedBefore := w.carrier == team
	in := rules.RewardInput{
		Team:          team,
		Old:           old,
		New:           old,
		CarriedBefore: carriedBefore,
		CarriedAfter:  carriedBefore,
		FlagPos:       w.flagPos,
		HomeTarget:    w.layout.NearestHome(team, old),
	}

	if reason := w.blocked(team, target); reason != "" {
		result := StepResult{
			Observation: w.Observe(team),
			Reward:      w.policy.Evaluate(in),
			Reason:      reason,
		}
		w.logger.Debug().
			Str("team", team.String()).
			Str("action", action.String()).
			Str("reason", reason).
			Msg("Move rejected")
		w.publish(events.NewMoveRejectedEvent(w.runID, team, old, action, reason))
		return result, nil
	}

	// Leave the old cell
	w.board.Set(old, w.layout.Terrain.Get(old))

	pickedUp := false
	if w.carrier == core.NoTeam && target.Equal(w.flagPos) {
		w.carrier = team
		pickedUp = true
	}
	w.positions[team] = target
	w.board.Set(target, team.AgentCell())

	captured := rules.IsCapture(w.layout, team, target, w.carrier)

	in.New = target
	in.Accepted = true
	in.CarriedAfter = w.carrier == team
	in.Captured = captured
	reward := w.policy.Evaluate(in)

	if pickedUp {
		w.logger.Debug().Str("team", team.String()).Stringer("pos", target).Msg("Flag picked up")
		w.publish(events.NewFlagPickedUpEvent(w.runID, team, target))
	}
	if captured {
		w.capture(team)
	}

	return StepResult{
		Observation: w.Observe(team),
		Reward:      reward,
		Done:        captured,
		Accepted:    true,
		PickedUp:    pickedUp,
		Captured:    captured,
	}, nil
}

// blocked returns the reason a move onto target is rejected, or "" if it is allowed
func (w *World) blocked(team core.TeamID, target core.Coordinate) string {
	if !w.board.InBounds(target) {
		return RejectOutOfBounds
	}
	if target.Equal(w.positions[team.Opponent()]) {
		return RejectOccupied
	}
	switch terrain := w.layout.Terrain.Get(target); {
	case terrain == core.CellObstacle:
		return RejectObstacle
	case !mapgen.Passable(terrain, team):
		return RejectEnemyHome
	}
	return ""
}

// capture scores the flag for team. The flag is consumed and stays off the
// board until Reset puts it back on the center cell.
func (w *World) capture(team core.TeamID) {
	w.scores[team]++
	w.carrier = core.NoTeam
	w.flagPos = w.layout.Flag
	w.episodeOver = true

	w.logger.Info().
		Str("team", team.String()).
		Int("score", w.scores[team]).
		Int("steps", w.steps).
		Msg("Flag captured")
	w.publish(events.NewFlagCapturedEvent(w.runID, team, w.positions[team], w.scores[team]))
}

func (w *World) publish(e events.Event) {
	if w.publisher != nil {
		w.publisher.Publish(e)
	}
}

// SetRewardConfig swaps the reward coefficients used by subsequent steps
func (w *World) SetRewardConfig(config rules.RewardConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	w.config.Rewards = config
	w.policy = rules.NewRewardPolicy(config)
	return nil
}

// LegalActions reports which actions team could take without being rejected
func (w *World) LegalActions(team core.TeamID) [core.NumActions]bool {
	if !team.Valid() {
		return [core.NumActions]bool{}
	}
	return rules.LegalActionMask(w.layout.Terrain, team, w.positions[team], w.positions[team.Opponent()])
}

// Config returns the world's configuration
func (w *World) Config() Config { return w.config }

// Rows returns the grid height
func (w *World) Rows() int { return w.board.H }

// Cols returns the grid width
func (w *World) Cols() int { return w.board.W }

// Position returns the authoritative position of team's agent
func (w *World) Position(team core.TeamID) core.Coordinate { return w.positions[team] }

// Carrier returns the team holding the flag, or NoTeam when the flag is free
func (w *World) Carrier() core.TeamID { return w.carrier }

// FlagPosition returns the free flag's cell and whether the flag is free.
// A captured flag is neither free nor carried until Reset.
func (w *World) FlagPosition() (core.Coordinate, bool) {
	return w.flagPos, w.flagFree()
}

func (w *World) flagFree() bool { return w.carrier == core.NoTeam && !w.episodeOver }

// Score returns the captures credited to team
func (w *World) Score(team core.TeamID) int { return w.scores[team] }

// Scores returns a copy of all scores
func (w *World) Scores() [core.NumTeams]int { return w.scores }

// EpisodeOver reports whether a capture ended the episode
func (w *World) EpisodeOver() bool { return w.episodeOver }

// Steps returns the number of steps taken since the last reset
func (w *World) Steps() int { return w.steps }

// Layout returns the static layout of the current episode
func (w *World) Layout() *mapgen.Layout { return w.layout }

// Cell returns the tag at c
func (w *World) Cell(c core.Coordinate) core.CellType { return w.board.Get(c) }
