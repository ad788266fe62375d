// Package estimator holds the action-value function approximators used by
// the agent controllers. Implementations are not safe for concurrent use.
package estimator

import (
	"errors"
	"math"
)

var (
	// ErrDiverged is returned when a prediction, loss or parameter stops being finite
	ErrDiverged = errors.New("estimator diverged")
	// ErrShapeMismatch is returned when inputs or targets do not match the estimator's dimensions
	ErrShapeMismatch = errors.New("shape mismatch")
)

// Estimator maps an observation to one value per action
type Estimator interface {
	// Predict returns the action values for a single observation
	Predict(obs []float64) ([]float64, error)
	// Fit performs one supervised update toward targets on a batch of
	// stacked observations and returns the batch loss before the update
	Fit(obs [][]float64, targets [][]float64) (float64, error)
}

// Argmax returns the index of the largest value. Ties go to the lowest index.
// It returns -1 for an empty slice.
func Argmax(values []float64) int {
	best := -1
	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}
	return best
}

// Max returns the largest value, or 0 for an empty slice
func Max(values []float64) float64 {
	if i := Argmax(values); i >= 0 {
		return values[i]
	}
	return 0
}

// AllFinite reports whether no value is NaN or infinite
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
