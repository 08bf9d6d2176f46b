// Package train fits regression models on windowed example sets.
//
// Three trainers share one interface:
//   - Evolver: genetic search over the weights of a fixed-topology Network,
//     fitness = -0.5 * sum of squared errors.
//   - Gradient: an anynet FC -> tanh -> FC network trained by anysgd with
//     full batches and an adaptive learning rate.
//   - Linear: ordinary least squares baseline.
//
// Trainers never reorder examples; the example set is consumed as given.
package train

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/indexcast/internal/models"
)

// ErrNoExamples is returned when a trainer receives an empty example set
var ErrNoExamples = errors.New("no training examples")

// Model predicts a scalar target from an input window
type Model interface {
	Predict(x []float64) float64
}

// Trainer fits a Model on an example set
type Trainer interface {
	Name() string
	Fit(ctx context.Context, set models.ExampleSet) (Model, error)
}

// Evaluation holds predictions and error metrics for one example set
type Evaluation struct {
	Predictions []float64
	Actual      []float64
	// Cost is -0.5 * sum((pred - actual)^2); 0 is a perfect fit
	Cost float64
	RMSE float64
}

// Evaluate runs model over set in order
func Evaluate(model Model, set models.ExampleSet) Evaluation {
	ev := Evaluation{
		Predictions: make([]float64, len(set)),
		Actual:      set.Targets(),
	}
	var sse float64
	for i, e := range set {
		p := model.Predict(e.Window)
		ev.Predictions[i] = p
		d := p - e.Target
		sse += d * d
	}
	ev.Cost = -0.5 * sse
	if len(set) > 0 {
		ev.RMSE = math.Sqrt(sse / float64(len(set)))
	}
	return ev
}

// checkSet validates that set is non-empty and rectangular
func checkSet(set models.ExampleSet) error {
	if len(set) == 0 {
		return ErrNoExamples
	}
	width := set.Width()
	for i, e := range set {
		if len(e.Window) != width {
			return fmt.Errorf("example %d has width %d, expected %d", i, len(e.Window), width)
		}
	}
	return nil
}
