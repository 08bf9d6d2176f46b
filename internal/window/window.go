// Package window turns a time-ordered scalar series into fixed-length
// input windows paired with the value that follows each window.
//
// For a series S of length N, window length W and horizon H, every emitted
// example has Window = S[i:i+W] and Target = S[i+W+H-1]. Start offsets are
// either every index (StrideOverlapping) or multiples of W (StrideBlock).
// Windows whose target would fall past the end of S are dropped, never padded.
//
// Build is a pure function: it never mutates its input and the returned
// windows do not share memory with it.
package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/rewired-gh/indexcast/internal/models"
)

// StridePolicy controls the spacing of window start offsets
type StridePolicy string

const (
	// StrideOverlapping starts a window at every offset (stride 1).
	StrideOverlapping StridePolicy = "overlapping"
	// StrideBlock starts windows every Length offsets, so windows never overlap.
	StrideBlock StridePolicy = "block"
)

// Default option values
const (
	DefaultLength  = 30
	DefaultHorizon = 1
)

var (
	// ErrInvalidConfig is returned for non-positive lengths or horizons and
	// unknown stride policies.
	ErrInvalidConfig = errors.New("invalid window configuration")
	// ErrMalformedInput is returned when the series holds NaN or infinite values.
	ErrMalformedInput = errors.New("malformed input series")
)

// ConfigError describes which option was rejected
type ConfigError struct {
	Field string
	Value interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s=%v", ErrInvalidConfig, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// InputError points at the first unusable value in a series
type InputError struct {
	Offset int
	Value  float64
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%v: value %v at offset %d", ErrMalformedInput, e.Value, e.Offset)
}

func (e *InputError) Unwrap() error {
	return ErrMalformedInput
}

// Options configures a windowing pass
type Options struct {
	Length  int
	Horizon int
	Stride  StridePolicy
	// TrimToMultiple drops the oldest N mod Length observations before block
	// windowing. It has no effect for overlapping windows.
	TrimToMultiple bool
}

// DefaultOptions returns 30-long overlapping windows predicting one step ahead
func DefaultOptions() Options {
	return Options{
		Length:  DefaultLength,
		Horizon: DefaultHorizon,
		Stride:  StrideOverlapping,
	}
}

// Validate checks that options describe a usable windowing pass
func (o Options) Validate() error {
	if o.Length <= 0 {
		return &ConfigError{Field: "window_length", Value: o.Length}
	}
	if o.Horizon <= 0 {
		return &ConfigError{Field: "horizon", Value: o.Horizon}
	}
	switch o.Stride {
	case StrideOverlapping, StrideBlock:
	default:
		return &ConfigError{Field: "stride_policy", Value: o.Stride}
	}
	return nil
}

// step returns the distance between consecutive window starts
func (o Options) step() int {
	if o.Stride == StrideBlock {
		return o.Length
	}
	return 1
}

// Trim keeps the latest observations so that the result length is a multiple
// of length. The returned slice aliases values.
func Trim(values []float64, length int) []float64 {
	if length <= 0 {
		return values
	}
	return values[len(values)%length:]
}

// Count returns how many examples Build emits for a series of n observations.
// It assumes opts is valid.
func Count(n int, opts Options) int {
	if opts.Stride == StrideBlock && opts.TrimToMultiple {
		n -= n % opts.Length
	}
	span := opts.Length + opts.Horizon - 1
	if n <= span {
		return 0
	}
	// start offsets i = 0, step, 2*step, ... with i + span < n
	return (n-span-1)/opts.step() + 1
}

// Build cuts values into examples according to opts. A series too short to
// hold a single window and its target yields an empty, non-nil set.
func Build(values []float64, opts Options) (models.ExampleSet, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &InputError{Offset: i, Value: v}
		}
	}

	// offsets reported on examples are relative to the untrimmed series
	base := 0
	series := values
	if opts.Stride == StrideBlock && opts.TrimToMultiple {
		series = Trim(values, opts.Length)
		base = len(values) - len(series)
	}

	examples := make(models.ExampleSet, 0, Count(len(values), opts))
	targetOffset := opts.Length + opts.Horizon - 1
	for i := 0; i+targetOffset < len(series); i += opts.step() {
		w := make([]float64, opts.Length)
		copy(w, series[i:i+opts.Length])
		examples = append(examples, models.Example{
			Offset: base + i,
			Window: w,
			Target: series[i+targetOffset],
		})
	}
	return examples, nil
}

// BuildSeries windows the values of a series. It is a convenience around Build.
func BuildSeries(s models.Series, opts Options) (models.ExampleSet, error) {
	return Build(s.Values(), opts)
}
