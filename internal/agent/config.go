package agent

import (
	"errors"
	"fmt"
)

// ErrControllerFailed is returned by Tick once the controller has stopped after an estimator failure
var ErrControllerFailed = errors.New("controller failed")

// Config holds the learning hyperparameters of a controller
type Config struct {
	Gamma          float64 `mapstructure:"gamma"`
	BatchSize      int     `mapstructure:"batch_size"`
	BufferCapacity int     `mapstructure:"buffer_capacity"`
	EpsilonStart   float64 `mapstructure:"epsilon_start"`
	EpsilonFloor   float64 `mapstructure:"epsilon_floor"`
	EpsilonDecay   float64 `mapstructure:"epsilon_decay"`
	LearnEvery     int     `mapstructure:"learn_every"`   // learn on every n-th step
	HistoryLimit   int     `mapstructure:"history_limit"` // length of the reporting histories
}

// DefaultConfig returns the default hyperparameters
func DefaultConfig() Config {
	return Config{
		Gamma:          0.99,
		BatchSize:      64,
		BufferCapacity: 10000,
		EpsilonStart:   1.0,
		EpsilonFloor:   0.01,
		EpsilonDecay:   0.995,
		LearnEvery:     1,
		HistoryLimit:   1000,
	}
}

// Validate checks the hyperparameters
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("gamma must be in [0,1], got %v", c.Gamma)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.BufferCapacity < c.BatchSize {
		return fmt.Errorf("buffer capacity %d is smaller than batch size %d", c.BufferCapacity, c.BatchSize)
	}
	if c.EpsilonFloor < 0 || c.EpsilonFloor > c.EpsilonStart || c.EpsilonStart > 1 {
		return fmt.Errorf("epsilon must satisfy 0 <= floor <= start <= 1, got floor %v start %v", c.EpsilonFloor, c.EpsilonStart)
	}
	if c.EpsilonDecay <= 0 || c.EpsilonDecay > 1 {
		return fmt.Errorf("epsilon decay must be in (0,1], got %v", c.EpsilonDecay)
	}
	if c.LearnEvery < 1 {
		return fmt.Errorf("learn_every must be at least 1, got %d", c.LearnEvery)
	}
	if c.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be at least 1, got %d", c.HistoryLimit)
	}
	return nil
}
