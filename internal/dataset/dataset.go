// Package dataset prepares retrieved series for training: it aligns series,
// scales them, splits them into training and testing parts, and windows each
// part into examples.
package dataset

import (
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/window"
)

// Options configures Prepare
type Options struct {
	Window        window.Options
	TrainFraction float64
	Scale         ScaleMethod
	// ExtraHorizons are predicted from exactly the same windows as
	// Window.Horizon, so paired models see identical inputs
	ExtraHorizons []int
	// Weekdays appends a Monday..Friday one-hot of each window's last date
	Weekdays bool
}

// Prepared is the output of Prepare
type Prepared struct {
	models.Dataset
	// Extra holds one dataset per extra horizon, keyed by horizon
	Extra map[int]models.Dataset
	// Scaler maps predictions on the primary series back to original units
	Scaler *Scaler
	// TrainLen and TestLen count observations on each side of the split
	TrainLen int
	TestLen  int
}

// weekdays are the one-hot positions appended by Options.Weekdays
var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Split divides values at floor(trainFraction * len(values)). The training part
// holds the earliest observations. Both parts alias values.
func Split(values []float64, trainFraction float64) (train, test []float64, err error) {
	if trainFraction <= 0 || trainFraction >= 1 || math.IsNaN(trainFraction) {
		return nil, nil, &window.ConfigError{Field: "train_fraction", Value: trainFraction}
	}
	n := int(math.Floor(trainFraction * float64(len(values))))
	return values[:n], values[n:], nil
}

// Prepare scales, splits and windows primary. Each covariate must share the
// primary series' timestamps (see Align and AlignAll); its windows are
// appended to the primary windows so every input holds len(covariates)+1
// blocks of Length values, followed by five weekday flags when enabled.
// Targets always come from the primary series.
//
// When extra horizons are requested, windows are cut for the largest horizon
// and every horizon's targets are read from the same windows.
func Prepare(primary models.Series, covariates []models.Series, opts Options) (*Prepared, error) {
	if err := opts.Window.Validate(); err != nil {
		return nil, err
	}
	buildOpts := opts.Window
	for _, h := range opts.ExtraHorizons {
		if h <= 0 {
			return nil, &window.ConfigError{Field: "extra_horizons", Value: h}
		}
		if h > buildOpts.Horizon {
			buildOpts.Horizon = h
		}
	}
	if err := primary.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", window.ErrMalformedInput, err)
	}
	for _, cov := range covariates {
		if cov.Len() != primary.Len() {
			return nil, fmt.Errorf("%w: covariate %s has %d observations, primary has %d",
				window.ErrMalformedInput, cov.Name, cov.Len(), primary.Len())
		}
	}

	// statistics are fitted on the full series before splitting
	scaler, err := FitScaler(opts.Scale, primary.Values())
	if err != nil {
		return nil, fmt.Errorf("failed to fit scaler: %w", err)
	}
	scaled := scaler.Transform(primary.Values())

	trainValues, testValues, err := Split(scaled, opts.TrainFraction)
	if err != nil {
		return nil, err
	}
	stamps := primary.Timestamps()
	trainStamps, testStamps := stamps[:len(trainValues)], stamps[len(trainValues):]

	out := &Prepared{Scaler: scaler, TrainLen: len(trainValues), TestLen: len(testValues)}
	if out.Train, err = window.Build(trainValues, buildOpts); err != nil {
		return nil, fmt.Errorf("failed to window training data: %w", err)
	}
	if out.Test, err = window.Build(testValues, buildOpts); err != nil {
		return nil, fmt.Errorf("failed to window testing data: %w", err)
	}

	for _, cov := range covariates {
		covScaler, err := FitScaler(opts.Scale, cov.Values())
		if err != nil {
			return nil, fmt.Errorf("failed to fit scaler for %s: %w", cov.Name, err)
		}
		covTrain, covTest, _ := Split(covScaler.Transform(cov.Values()), opts.TrainFraction)
		if err := appendCovariate(out.Train, covTrain, buildOpts); err != nil {
			return nil, err
		}
		if err := appendCovariate(out.Test, covTest, buildOpts); err != nil {
			return nil, err
		}
	}

	if opts.Weekdays {
		appendWeekdays(out.Train, trainStamps, opts.Window.Length)
		appendWeekdays(out.Test, testStamps, opts.Window.Length)
	}

	if len(opts.ExtraHorizons) > 0 {
		out.Extra = make(map[int]models.Dataset, len(opts.ExtraHorizons))
		for _, h := range opts.ExtraHorizons {
			out.Extra[h] = models.Dataset{
				Train: retarget(out.Train, trainValues, opts.Window.Length, h),
				Test:  retarget(out.Test, testValues, opts.Window.Length, h),
			}
		}
		out.Train = retarget(out.Train, trainValues, opts.Window.Length, opts.Window.Horizon)
		out.Test = retarget(out.Test, testValues, opts.Window.Length, opts.Window.Horizon)
	}

	return out, nil
}

// retarget copies set with targets taken horizon steps after each window
func retarget(set models.ExampleSet, values []float64, length, horizon int) models.ExampleSet {
	out := make(models.ExampleSet, len(set))
	for i, ex := range set {
		out[i] = models.Example{
			Offset: ex.Offset,
			Window: append([]float64(nil), ex.Window...),
			Target: values[ex.Offset+length+horizon-1],
		}
	}
	return out
}

// appendWeekdays adds the Monday..Friday one-hot of each window's last date.
// Weekend dates get all zeros.
func appendWeekdays(set models.ExampleSet, stamps []time.Time, length int) {
	for i := range set {
		day := stamps[set[i].Offset+length-1].Weekday()
		for _, wd := range weekdays {
			flag := 0.0
			if day == wd {
				flag = 1
			}
			set[i].Window = append(set[i].Window, flag)
		}
	}
}

// appendCovariate extends each example's window with the covariate window at the
// same offset
func appendCovariate(set models.ExampleSet, values []float64, opts window.Options) error {
	covSet, err := window.Build(values, opts)
	if err != nil {
		return fmt.Errorf("failed to window covariate: %w", err)
	}
	if len(covSet) != len(set) {
		return fmt.Errorf("%w: covariate produced %d windows, expected %d", window.ErrMalformedInput, len(covSet), len(set))
	}
	for i := range set {
		set[i].Window = append(set[i].Window, covSet[i].Window...)
	}
	return nil
}
