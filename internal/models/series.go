// Package models defines the core domain entities for indexcast.
// These models represent retrieved observation series, the fixed-length
// training examples derived from them, and the summary of a single run.
//
// Terminology:
//   - Series: time-ordered (timestamp, value) observations for one instrument column.
//   - Example: one input window paired with the scalar target that follows it.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Observation is a single scalar reading at a point in time
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is an ordered sequence of observations for one named column,
// e.g. "BSE/SENSEX:Close". It is treated as immutable once loaded.
type Series struct {
	Name         string        `json:"name"`
	Observations []Observation `json:"observations"`
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s.Observations)
}

// Values returns a copy of the observation values in time order
func (s Series) Values() []float64 {
	values := make([]float64, len(s.Observations))
	for i, o := range s.Observations {
		values[i] = o.Value
	}
	return values
}

// Timestamps returns a copy of the observation timestamps in time order
func (s Series) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Observations))
	for i, o := range s.Observations {
		ts[i] = o.Timestamp
	}
	return ts
}

// First returns the earliest observation. The series must not be empty.
func (s Series) First() Observation {
	return s.Observations[0]
}

// Last returns the latest observation. The series must not be empty.
func (s Series) Last() Observation {
	return s.Observations[len(s.Observations)-1]
}

// Validate checks that timestamps strictly increase and that every value is finite.
func (s *Series) Validate() error {
	if s.Name == "" {
		return errors.New("series name must not be empty")
	}
	for i, o := range s.Observations {
		if o.Timestamp.IsZero() {
			return fmt.Errorf("observation %d has zero timestamp", i)
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("observation %d (%s) has non-finite value", i, o.Timestamp.Format(time.DateOnly))
		}
		if i > 0 && !o.Timestamp.After(s.Observations[i-1].Timestamp) {
			return fmt.Errorf("observation %d (%s) is not after previous timestamp %s",
				i, o.Timestamp.Format(time.DateOnly), s.Observations[i-1].Timestamp.Format(time.DateOnly))
		}
	}
	return nil
}
