package estimator

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MLPConfig holds the network shape and optimizer settings
type MLPConfig struct {
	Hidden       int     `mapstructure:"hidden"`
	LearningRate float64 `mapstructure:"learning_rate"`
	GradClip     float64 `mapstructure:"grad_clip"`   // global gradient norm limit, 0 disables clipping
	InputScale   float64 `mapstructure:"input_scale"` // observations are multiplied by this before the first layer
}

// DefaultMLPConfig returns the defaults used by the trainer
func DefaultMLPConfig() MLPConfig {
	return MLPConfig{
		Hidden:       64,
		LearningRate: 0.001,
		GradClip:     1.0,
		InputScale:   0.2,
	}
}

// Validate checks the configuration
func (c MLPConfig) Validate() error {
	if c.Hidden < 1 {
		return fmt.Errorf("hidden units must be at least 1, got %d", c.Hidden)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	if c.GradClip < 0 {
		return fmt.Errorf("grad clip must not be negative, got %v", c.GradClip)
	}
	if c.InputScale <= 0 {
		return fmt.Errorf("input scale must be positive, got %v", c.InputScale)
	}
	return nil
}

// MLP is a one hidden layer ReLU network trained with plain SGD on squared error
type MLP struct {
	inputs  int
	outputs int
	config  MLPConfig

	w1 *mat.Dense // hidden x inputs
	b1 []float64
	w2 *mat.Dense // outputs x hidden
	b2 []float64

	logger zerolog.Logger
}

// NewMLP creates a network with He-initialized weights drawn from rng
func NewMLP(inputs, outputs int, config MLPConfig, rng *rand.Rand, logger zerolog.Logger) (*MLP, error) {
	if inputs < 1 || outputs < 1 {
		return nil, fmt.Errorf("%w: need at least one input and output, got %d and %d", ErrShapeMismatch, inputs, outputs)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &MLP{
		inputs:  inputs,
		outputs: outputs,
		config:  config,
		w1:      mat.NewDense(config.Hidden, inputs, heInit(rng, config.Hidden*inputs, inputs)),
		b1:      make([]float64, config.Hidden),
		w2:      mat.NewDense(outputs, config.Hidden, heInit(rng, outputs*config.Hidden, config.Hidden)),
		b2:      make([]float64, outputs),
		logger:  logger.With().Str("component", "mlp").Logger(),
	}

	m.logger.Debug().
		Int("inputs", inputs).
		Int("hidden", config.Hidden).
		Int("outputs", outputs).
		Float64("learning_rate", config.LearningRate).
		Msg("Estimator created")
	return m, nil
}

func heInit(rng *rand.Rand, n, fanIn int) []float64 {
	std := math.Sqrt(2.0 / float64(fanIn))
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return data
}

// Predict returns the action values for one observation
func (m *MLP) Predict(obs []float64) ([]float64, error) {
	x, err := stack([][]float64{obs}, m.inputs, m.config.InputScale)
	if err != nil {
		return nil, err
	}
	_, _, y := m.forward(x)

	out := mat.Row(nil, 0, y)
	if !AllFinite(out) {
		return nil, fmt.Errorf("%w: non-finite prediction", ErrDiverged)
	}
	return out, nil
}

// Fit takes one gradient step toward targets and returns the loss before the step.
// The loss is the squared error summed over outputs and averaged over the batch.
func (m *MLP) Fit(obs [][]float64, targets [][]float64) (float64, error) {
	if len(obs) == 0 || len(obs) != len(targets) {
		return 0, fmt.Errorf("%w: %d observations for %d targets", ErrShapeMismatch, len(obs), len(targets))
	}
	x, err := stack(obs, m.inputs, m.config.InputScale)
	if err != nil {
		return 0, err
	}
	t, err := stack(targets, m.outputs, 1)
	if err != nil {
		return 0, err
	}

	z1, h, y := m.forward(x)
	n := float64(len(obs))

	var dy mat.Dense
	dy.Sub(y, t)
	loss := mat.Sum(elemSquare(&dy)) / n
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("%w: non-finite loss", ErrDiverged)
	}
	dy.Scale(2/n, &dy)

	// Output layer
	var dw2 mat.Dense
	dw2.Mul(dy.T(), h)
	db2 := colSums(&dy)

	// Hidden layer through the ReLU mask
	var dz1 mat.Dense
	dz1.Mul(&dy, m.w2)
	dz1.Apply(func(i, j int, v float64) float64 {
		if z1.At(i, j) <= 0 {
			return 0
		}
		return v
	}, &dz1)
	var dw1 mat.Dense
	dw1.Mul(dz1.T(), x)
	db1 := colSums(&dz1)

	scale := m.config.LearningRate
	if clip := m.config.GradClip; clip > 0 {
		norm := math.Sqrt(sumSquares(&dw1) + sumSquares(&dw2) + floats.Dot(db1, db1) + floats.Dot(db2, db2))
		if norm > clip {
			scale *= clip / norm
		}
	}

	dw1.Scale(scale, &dw1)
	m.w1.Sub(m.w1, &dw1)
	dw2.Scale(scale, &dw2)
	m.w2.Sub(m.w2, &dw2)
	floats.AddScaled(m.b1, -scale, db1)
	floats.AddScaled(m.b2, -scale, db2)

	if !AllFinite(m.w1.RawMatrix().Data) || !AllFinite(m.w2.RawMatrix().Data) {
		return loss, fmt.Errorf("%w: non-finite weights after update", ErrDiverged)
	}
	return loss, nil
}

// forward returns the hidden pre-activations, the hidden activations and the outputs
func (m *MLP) forward(x *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense) {
	var z1 mat.Dense
	z1.Mul(x, m.w1.T())
	z1.Apply(func(i, j int, v float64) float64 { return v + m.b1[j] }, &z1)

	var h mat.Dense
	h.Apply(func(i, j int, v float64) float64 { return math.Max(0, v) }, &z1)

	var y mat.Dense
	y.Mul(&h, m.w2.T())
	y.Apply(func(i, j int, v float64) float64 { return v + m.b2[j] }, &y)
	return &z1, &h, &y
}

// stack copies rows into a matrix, multiplying every value by scale
func stack(rows [][]float64, width int, scale float64) (*mat.Dense, error) {
	data := make([]float64, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(r), width)
		}
		for _, v := range r {
			data = append(data, v*scale)
		}
	}
	return mat.NewDense(len(rows), width, data), nil
}

// Inputs returns the observation length the network expects
func (m *MLP) Inputs() int { return m.inputs }

// Outputs returns the number of action values the network produces
func (m *MLP) Outputs() int { return m.outputs }

func elemSquare(a *mat.Dense) *mat.Dense {
	var sq mat.Dense
	sq.MulElem(a, a)
	return &sq
}

func sumSquares(a *mat.Dense) float64 {
	return mat.Sum(elemSquare(a))
}

func colSums(a *mat.Dense) []float64 {
	_, c := a.Dims()
	sums := make([]float64, c)
	for j := range sums {
		sums[j] = mat.Sum(a.ColView(j))
	}
	return sums
}
