package train

import (
	"context"
	"fmt"

	"github.com/sajari/regression"

	"github.com/rewired-gh/indexcast/internal/models"
)

// Linear fits an ordinary least squares model, target ~ intercept + sum(c_i * x_i)
type Linear struct{}

// LinearModel holds fitted OLS coefficients
type LinearModel struct {
	Intercept float64   `json:"intercept"`
	Coeffs    []float64 `json:"coeffs"`
	R2        float64   `json:"r2"`
}

// NewLinear creates a Linear trainer
func NewLinear() *Linear {
	return &Linear{}
}

// Name implements Trainer
func (l *Linear) Name() string { return "linear" }

// Fit implements Trainer. It needs more examples than window width.
func (l *Linear) Fit(ctx context.Context, set models.ExampleSet) (Model, error) {
	if err := checkSet(set); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := set.Width()
	r := new(regression.Regression)
	r.SetObserved("target")
	for i := 0; i < width; i++ {
		r.SetVar(i, fmt.Sprintf("x%d", i))
	}
	for _, ex := range set {
		r.Train(regression.DataPoint(ex.Target, ex.Window))
	}
	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("failed to fit linear model: %w", err)
	}

	m := &LinearModel{
		Intercept: r.Coeff(0),
		Coeffs:    make([]float64, width),
		R2:        r.R2,
	}
	for i := range m.Coeffs {
		m.Coeffs[i] = r.Coeff(i + 1)
	}
	return m, nil
}

// Predict implements Model
func (m *LinearModel) Predict(x []float64) float64 {
	y := m.Intercept
	for i, c := range m.Coeffs {
		if i < len(x) {
			y += c * x[i]
		}
	}
	return y
}
