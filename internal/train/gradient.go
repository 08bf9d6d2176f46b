package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anynet/anyff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"

	"github.com/rewired-gh/indexcast/internal/models"
)

// GradientConfig holds gradient descent parameters
type GradientConfig struct {
	Hidden       int
	Epochs       int
	LearningRate float64
	// Patience is the number of epochs without improvement before the
	// learning rate is divided by 5
	Patience int
	Seed     int64
}

// minLearningRate stops training once the adaptive rate has decayed this far
const minLearningRate = 1e-6

// improvementTol is the minimum loss decrease that counts as improvement
const improvementTol = 1e-7

// Gradient trains an FC -> tanh -> FC network by full-batch gradient descent.
// It holds only configuration, so one Gradient may run concurrent Fits.
type Gradient struct {
	cfg GradientConfig
}

// MLP is a network fitted by Gradient
type MLP struct {
	creator anyvec.Creator
	net     anynet.Net
	// LossCurve holds the mean squared error at the start of each epoch
	LossCurve []float64
}

// NewGradient creates a Gradient trainer
func NewGradient(cfg GradientConfig) *Gradient {
	if cfg.Patience <= 0 {
		cfg.Patience = 2
	}
	return &Gradient{cfg: cfg}
}

// Name implements Trainer
func (g *Gradient) Name() string { return "gradient" }

// Fit implements Trainer. The returned model is an *MLP.
func (g *Gradient) Fit(ctx context.Context, set models.ExampleSet) (Model, error) {
	if err := checkSet(set); err != nil {
		return nil, err
	}
	if g.cfg.Hidden < 1 || g.cfg.Epochs < 1 || g.cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("invalid gradient config: hidden=%d epochs=%d learning_rate=%v",
			g.cfg.Hidden, g.cfg.Epochs, g.cfg.LearningRate)
	}

	c := anyvec64.DefaultCreator{}
	rng := rand.New(rand.NewSource(g.cfg.Seed))
	hidden := newFC(c, set.Width(), g.cfg.Hidden, rng)
	output := newFC(c, g.cfg.Hidden, 1, rng)
	mlp := &MLP{
		creator: c,
		net:     anynet.Net{hidden, anynet.Tanh, output},
	}

	samples := make(anyff.SliceSampleList, len(set))
	for i, ex := range set {
		samples[i] = &anyff.Sample{
			Input:  c.MakeVectorData(c.MakeNumericList(ex.Window)),
			Output: c.MakeVectorData(c.MakeNumericList([]float64{ex.Target})),
		}
	}

	trainer := &anyff.Trainer{
		Net:     mlp.net,
		Cost:    anynet.MSE{},
		Params:  mlp.net.Parameters(),
		Average: true,
	}
	rate := &adaptiveRate{rate: g.cfg.LearningRate, patience: g.cfg.Patience}

	stop := make(chan struct{})
	stopped := false
	halt := func() {
		if !stopped {
			stopped = true
			close(stop)
		}
	}

	var ctxErr error
	sgd := &anysgd.SGD{
		Fetcher:    trainer,
		Gradienter: trainer,
		Samples:    samples,
		Rater:      rate,
		// one batch is one epoch
		BatchSize: len(samples),
		StatusFunc: func(anysgd.Batch) {
			if stopped {
				return
			}
			if err := ctx.Err(); err != nil {
				ctxErr = err
				halt()
				return
			}
			loss := numericValue(trainer.LastCost)
			if math.IsNaN(loss) {
				// no batch has been costed yet
				return
			}
			mlp.LossCurve = append(mlp.LossCurve, loss)
			if !rate.observe(loss) || len(mlp.LossCurve) >= g.cfg.Epochs {
				halt()
			}
		},
	}
	if err := sgd.Run(stop); err != nil {
		return nil, fmt.Errorf("failed to train network: %w", err)
	}
	if ctxErr != nil {
		return nil, ctxErr
	}

	return mlp, nil
}

// Predict implements Model
func (m *MLP) Predict(x []float64) float64 {
	in := anydiff.NewConst(m.creator.MakeVectorData(m.creator.MakeNumericList(x)))
	out := m.net.Apply(in, 1).Output()
	return out.Data().([]float64)[0]
}

// newFC creates a fully connected layer with seeded weights scaled by 1/sqrt(in)
// and zero biases
func newFC(c anyvec.Creator, in, out int, rng *rand.Rand) *anynet.FC {
	fc := anynet.NewFC(c, in, out)
	w := make([]float64, in*out)
	scale := 1 / math.Sqrt(float64(in))
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
	fc.Weights.Vector.SetData(c.MakeNumericList(w))
	fc.Biases.Vector.SetData(c.MakeNumericList(make([]float64, out)))
	return fc
}

// adaptiveRate is an anysgd.Rater that divides the learning rate by 5 once the
// loss has not improved for patience epochs
type adaptiveRate struct {
	rate     float64
	patience int
	best     float64
	stale    int
	seen     bool
}

// Rate implements anysgd.Rater
func (a *adaptiveRate) Rate(epoch float64) float64 {
	return a.rate
}

// observe records one epoch's loss and reports whether training should go on
func (a *adaptiveRate) observe(loss float64) bool {
	if !a.seen || loss < a.best-improvementTol {
		a.seen = true
		a.best = loss
		a.stale = 0
		return true
	}
	a.stale++
	if a.stale >= a.patience {
		a.rate /= 5
		a.stale = 0
	}
	return a.rate >= minLearningRate
}

func numericValue(n anyvec.Numeric) float64 {
	switch v := n.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	default:
		return math.NaN()
	}
}
