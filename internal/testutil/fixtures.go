package testutil

import (
	"sync"
	"testing"

	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/core"
	"github.com/mitchelldurbincs/CaptureTheFlagRL/internal/game/mapgen"
)

// NewWorld builds a 10x20 world with the given layout and default rewards
func NewWorld(t *testing.T, layout mapgen.LayoutKind) *game.World {
	t.Helper()
	config := game.DefaultConfig()
	config.Map.Layout = layout
	w, err := game.NewWorld(config, NewTestRNG(12345), NopLogger())
	if err != nil {
		t.Fatalf("failed to create world: %v", err)
	}
	return w
}

// FakeEstimator returns fixed action values and records Fit calls
type FakeEstimator struct {
	mu sync.Mutex

	// Values is returned by Predict for every observation unless ValuesFor is set
	Values    []float64
	ValuesFor func(obs []float64) []float64

	PredictErr error
	FitErr     error
	Loss       float64

	PredictCalls int
	FitCalls     int
	FitStates    [][]float64
	FitTargets   [][]float64
}

// NewFakeEstimator returns an estimator that predicts zero for every action
func NewFakeEstimator() *FakeEstimator {
	return &FakeEstimator{Values: make([]float64, core.NumActions)}
}

// Predict implements estimator.Estimator
func (f *FakeEstimator) Predict(obs []float64) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PredictCalls++
	if f.PredictErr != nil {
		return nil, f.PredictErr
	}
	values := f.Values
	if f.ValuesFor != nil {
		values = f.ValuesFor(obs)
	}
	out := make([]float64, len(values))
	copy(out, values)
	return out, nil
}

// Fit implements estimator.Estimator
func (f *FakeEstimator) Fit(obs [][]float64, targets [][]float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FitCalls++
	if f.FitErr != nil {
		return 0, f.FitErr
	}
	f.FitStates = obs
	f.FitTargets = targets
	return f.Loss, nil
}

// Fits returns the number of Fit calls so far
func (f *FakeEstimator) Fits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.FitCalls
}
