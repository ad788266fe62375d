package rules

import (
	"fmt"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
)

// RewardConfig holds configurable reward values
type RewardConfig struct {
	StepCost    float64 `mapstructure:"step_cost"`    // added to every accepted move, usually negative
	InvalidMove float64 `mapstructure:"invalid_move"` // whole reward of a rejected move
	FlagPickup  float64 `mapstructure:"flag_pickup"`
	ShapingCoef float64 `mapstructure:"shaping_coef"` // scales the reduction in distance to the sub-goal
	Capture     float64 `mapstructure:"capture"`
}

// DefaultRewardConfig returns the default reward configuration
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		StepCost:    -0.01,
		InvalidMove: -1.0,
		FlagPickup:  10.0,
		ShapingCoef: 0.1,
		Capture:     100.0,
	}
}

// Validate checks the signs the reward terms rely on
func (c RewardConfig) Validate() error {
	if c.InvalidMove > 0 {
		return fmt.Errorf("invalid_move must not be positive, got %v", c.InvalidMove)
	}
	if c.ShapingCoef < 0 {
		return fmt.Errorf("shaping_coef must not be negative, got %v", c.ShapingCoef)
	}
	if c.Capture < 0 || c.FlagPickup < 0 {
		return fmt.Errorf("capture and flag_pickup must not be negative")
	}
	return nil
}

// RewardInput describes a single move as seen by the reward policy
type RewardInput struct {
	Team          core.TeamID
	Old           core.Coordinate
	New           core.Coordinate // equals Old when the move was rejected
	CarriedBefore bool
	CarriedAfter  bool
	Accepted      bool
	FlagPos       core.Coordinate // flag cell before the move
	HomeTarget    core.Coordinate // nearest own home cell to Old
	Captured      bool
}

// RewardPolicy turns a move into a scalar reward
type RewardPolicy struct {
	config RewardConfig
}

// NewRewardPolicy creates a reward policy from a configuration
func NewRewardPolicy(config RewardConfig) RewardPolicy {
	return RewardPolicy{config: config}
}

// Config returns the policy's coefficients
func (p RewardPolicy) Config() RewardConfig { return p.config }

// Evaluate computes the reward for one move. A rejected move earns only the
// invalid move penalty. Otherwise the step cost, the shaping term, the pickup
// bonus and the capture bonus are summed.
func (p RewardPolicy) Evaluate(in RewardInput) float64 {
	if !in.Accepted {
		return p.config.InvalidMove
	}

	reward := p.config.StepCost
	reward += p.Shaping(in)

	if !in.CarriedBefore && in.CarriedAfter {
		reward += p.config.FlagPickup
	}
	if in.Captured {
		reward += p.config.Capture
	}
	return reward
}

// Shaping returns ShapingCoef times the reduction in Manhattan distance to the
// sub-goal held before the move: the flag when not carrying, home when carrying.
func (p RewardPolicy) Shaping(in RewardInput) float64 {
	goal := in.FlagPos
	if in.CarriedBefore {
		goal = in.HomeTarget
	}
	delta := in.Old.DistanceTo(goal) - in.New.DistanceTo(goal)
	return p.config.ShapingCoef * float64(delta)
}
