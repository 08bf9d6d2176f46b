package models

import (
	"errors"
	"fmt"
	"time"
)

// RunSummary describes the outcome of one training and evaluation run
type RunSummary struct {
	ID            string  `json:"id"`
	Trainer       string  `json:"trainer"`
	Series        string  `json:"series"`
	WindowLength  int     `json:"window_length"`
	Horizon       int     `json:"horizon"`
	StridePolicy  string  `json:"stride_policy"`
	TrainExamples int     `json:"train_examples"`
	TestExamples  int     `json:"test_examples"`
	TrainCost     float64 `json:"train_cost"`
	TestCost      float64 `json:"test_cost"`
	TestRMSE      float64 `json:"test_rmse"` // in original (descaled) units
	// Extra holds the paired models trained on the same windows for further horizons
	Extra      []HorizonSummary `json:"extra,omitempty"`
	Duration   time.Duration    `json:"duration"`
	FinishedAt time.Time        `json:"finished_at"`
}

// HorizonSummary is the evaluation of a paired model for one extra horizon
type HorizonSummary struct {
	Horizon   int     `json:"horizon"`
	TrainCost float64 `json:"train_cost"`
	TestCost  float64 `json:"test_cost"`
	TestRMSE  float64 `json:"test_rmse"`
}

// CombinedTestCost sums the test cost of the primary model and every paired model
func (r *RunSummary) CombinedTestCost() float64 {
	total := r.TestCost
	for _, h := range r.Extra {
		total += h.TestCost
	}
	return total
}

// Validate checks that all summary fields are valid
func (r *RunSummary) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	if r.Trainer == "" {
		return errors.New("trainer must not be empty")
	}
	if r.WindowLength <= 0 {
		return errors.New("window length must be positive")
	}
	if r.TrainExamples < 0 || r.TestExamples < 0 {
		return errors.New("example counts must not be negative")
	}
	if r.TestCost > 0 || r.TrainCost > 0 {
		return errors.New("cost must not be positive")
	}
	if r.TestRMSE < 0 {
		return errors.New("rmse must not be negative")
	}
	for _, h := range r.Extra {
		if h.Horizon <= 0 || h.Horizon == r.Horizon {
			return fmt.Errorf("extra horizon %d must be positive and differ from the primary horizon", h.Horizon)
		}
		if h.TrainCost > 0 || h.TestCost > 0 {
			return fmt.Errorf("cost for horizon %d must not be positive", h.Horizon)
		}
		if h.TestRMSE < 0 {
			return fmt.Errorf("rmse for horizon %d must not be negative", h.Horizon)
		}
	}
	if r.FinishedAt.After(time.Now()) {
		return errors.New("finished at must not be in the future")
	}
	return nil
}
