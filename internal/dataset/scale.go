package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ScaleMethod names a normalization scheme
type ScaleMethod string

const (
	// ScaleMinMax maps values onto [0, 1] using (x - min) / (max - min).
	ScaleMinMax ScaleMethod = "minmax"
	// ScaleMean centers values with (x - mean) / (max - min), giving roughly [-1, 1].
	ScaleMean ScaleMethod = "mean"
)

// Scaler holds the statistics fitted on a series so predictions can be mapped
// back to original units
type Scaler struct {
	Method ScaleMethod `json:"method"`
	Min    float64     `json:"min"`
	Max    float64     `json:"max"`
	Mean   float64     `json:"mean"`
}

// FitScaler computes scaling statistics for values
func FitScaler(method ScaleMethod, values []float64) (*Scaler, error) {
	if method != ScaleMinMax && method != ScaleMean {
		return nil, fmt.Errorf("unknown scale method %q", method)
	}
	if len(values) == 0 {
		// nothing to scale; Transform and Inverse act on a zero spread
		return &Scaler{Method: method}, nil
	}
	return &Scaler{
		Method: method,
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   stat.Mean(values, nil),
	}, nil
}

func (s *Scaler) center() float64 {
	if s.Method == ScaleMean {
		return s.Mean
	}
	return s.Min
}

// Transform returns a scaled copy of values. A constant series scales to zeros.
func (s *Scaler) Transform(values []float64) []float64 {
	out := make([]float64, len(values))
	spread := s.Max - s.Min
	if spread == 0 {
		return out
	}
	c := s.center()
	for i, v := range values {
		out[i] = (v - c) / spread
	}
	return out
}

// Inverse maps one scaled value back to original units
func (s *Scaler) Inverse(v float64) float64 {
	spread := s.Max - s.Min
	if spread == 0 {
		return s.center()
	}
	return v*spread + s.center()
}

// InverseAll maps scaled values back to original units
func (s *Scaler) InverseAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Inverse(v)
	}
	return out
}
