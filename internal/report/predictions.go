// Package report writes run outputs: a predictions table for offline plotting
// and an optional Telegram summary of each run.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// WritePredictions writes actual and predicted values as CSV with a header row
func WritePredictions(w io.Writer, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return fmt.Errorf("actual has %d values, predicted has %d", len(actual), len(predicted))
	}

	df := dataframe.New(
		series.New(actual, series.Float, "actual"),
		series.New(predicted, series.Float, "predicted"),
	)
	if df.Err != nil {
		return fmt.Errorf("failed to build predictions frame: %w", df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("failed to write predictions: %w", err)
	}
	return nil
}

// WritePredictionsFile writes the predictions CSV to path, creating parent directories
func WritePredictionsFile(path string, actual, predicted []float64) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create predictions file: %w", err)
	}
	if err := WritePredictions(f, actual, predicted); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
