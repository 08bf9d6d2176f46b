package main

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rewired-gh/indexcast/internal/config"
	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/quandl"
	"github.com/rewired-gh/indexcast/internal/train"
	"github.com/rewired-gh/indexcast/internal/window"
)

// walkFetcher serves seeded random walks, one per dataset column
type walkFetcher struct {
	n     int
	calls []string
}

func (f *walkFetcher) FetchSeries(ctx context.Context, code, column string, r quandl.DateRange) (models.Series, error) {
	f.calls = append(f.calls, code)
	h := fnv.New64a()
	h.Write([]byte(code + ":" + column))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	series := models.Series{Name: code + ":" + column}
	v := 1000.0
	for i := 0; i < f.n; i++ {
		v += rng.NormFloat64() * 10
		series.Observations = append(series.Observations, models.Observation{
			Timestamp: r.From.AddDate(0, 0, i),
			Value:     v,
		})
	}
	return series, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Source: config.SourceConfig{
			IndexDataset:    "BSE/SENSEX",
			IndexColumn:     "Close",
			ExchangeDataset: "FRED/DEXINUS",
			ExchangeColumn:  "Value",
			Fill:            "drop",
			FromDate:        "2010-01-01",
			ToDate:          "2012-01-01",
		},
		Window: config.WindowConfig{
			WindowLength:  5,
			StridePolicy:  "overlapping",
			Horizon:       1,
			TrainFraction: 0.9,
		},
		Scaling:  config.ScalingConfig{Method: "minmax"},
		Training: config.TrainingConfig{Trainer: "linear"},
		Report:   config.ReportConfig{PredictionsPath: filepath.Join(t.TempDir(), "predictions.csv")},
	}
}

func TestRunPipeline_Linear(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &walkFetcher{n: 200}

	run, err := runPipeline(context.Background(), cfg, fetcher, "run-test")
	if err != nil {
		t.Fatalf("runPipeline failed: %v", err)
	}
	if err := run.Validate(); err != nil {
		t.Errorf("Invalid run summary: %v", err)
	}

	opts := cfg.WindowOptions()
	if want := window.Count(180, opts); run.TrainExamples != want {
		t.Errorf("Expected %d train examples, got %d", want, run.TrainExamples)
	}
	if want := window.Count(20, opts); run.TestExamples != want {
		t.Errorf("Expected %d test examples, got %d", want, run.TestExamples)
	}
	if run.Trainer != "linear" || run.Series != "BSE/SENSEX:Close" {
		t.Errorf("Unexpected run identity: %+v", run)
	}
	if len(fetcher.calls) != 1 {
		t.Errorf("Expected only the index to be fetched, got %v", fetcher.calls)
	}

	data, err := os.ReadFile(cfg.Report.PredictionsPath)
	if err != nil {
		t.Fatalf("Failed to read predictions: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != run.TestExamples+1 {
		t.Errorf("Expected %d CSV lines, got %d", run.TestExamples+1, len(lines))
	}
}

func TestRunPipeline_WithExchange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.UseExchange = true
	cfg.Window.StridePolicy = "block"
	cfg.Window.Trim = true
	cfg.Report.PredictionsPath = ""
	fetcher := &walkFetcher{n: 300}

	run, err := runPipeline(context.Background(), cfg, fetcher, "run-test")
	if err != nil {
		t.Fatalf("runPipeline failed: %v", err)
	}
	if len(fetcher.calls) != 2 {
		t.Errorf("Expected index and exchange fetches, got %v", fetcher.calls)
	}
	if want := window.Count(270, cfg.WindowOptions()); run.TrainExamples != want {
		t.Errorf("Expected %d train examples, got %d", want, run.TrainExamples)
	}
}

func TestRunPipeline_ExtraColumns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.ExtraColumns = []string{"Open", "Volume"}
	cfg.Source.UseExchange = true
	fetcher := &walkFetcher{n: 200}

	run, err := runPipeline(context.Background(), cfg, fetcher, "run-test")
	if err != nil {
		t.Fatalf("runPipeline failed: %v", err)
	}
	want := []string{"BSE/SENSEX", "BSE/SENSEX", "BSE/SENSEX", "FRED/DEXINUS"}
	if !reflect.DeepEqual(fetcher.calls, want) {
		t.Errorf("Expected fetches %v, got %v", want, fetcher.calls)
	}
	// every series covers the same days, so alignment keeps all 200
	if want := window.Count(180, cfg.WindowOptions()); run.TrainExamples != want {
		t.Errorf("Expected %d train examples, got %d", want, run.TrainExamples)
	}
	if err := run.Validate(); err != nil {
		t.Errorf("Invalid run summary: %v", err)
	}
}

func TestRunPipeline_Weekdays(t *testing.T) {
	cfg := testConfig(t)
	cfg.Window.Weekdays = true
	cfg.Training = config.TrainingConfig{Trainer: "gradient", Hidden: 2, Epochs: 20, LearningRate: 0.1, Seed: 1}
	cfg.Report.PredictionsPath = ""

	run, err := runPipeline(context.Background(), cfg, &walkFetcher{n: 120}, "run-test")
	if err != nil {
		t.Fatalf("runPipeline failed: %v", err)
	}
	if run.Trainer != "gradient" {
		t.Errorf("Expected gradient trainer, got %s", run.Trainer)
	}
	if want := window.Count(108, cfg.WindowOptions()); run.TrainExamples != want {
		t.Errorf("Expected %d train examples, got %d", want, run.TrainExamples)
	}
}

func TestRunPipeline_ExtraHorizons(t *testing.T) {
	cfg := testConfig(t)
	cfg.Window.ExtraHorizons = []int{7}
	fetcher := &walkFetcher{n: 200}

	run, err := runPipeline(context.Background(), cfg, fetcher, "run-test")
	if err != nil {
		t.Fatalf("runPipeline failed: %v", err)
	}
	if err := run.Validate(); err != nil {
		t.Fatalf("Invalid run summary: %v", err)
	}

	// both horizons share windows sized for the longest one
	opts := cfg.WindowOptions()
	opts.Horizon = 7
	if want := window.Count(180, opts); run.TrainExamples != want {
		t.Errorf("Expected %d train examples, got %d", want, run.TrainExamples)
	}
	if len(run.Extra) != 1 || run.Extra[0].Horizon != 7 {
		t.Fatalf("Expected one paired horizon 7, got %+v", run.Extra)
	}
	if got, want := run.CombinedTestCost(), run.TestCost+run.Extra[0].TestCost; got != want {
		t.Errorf("Expected combined cost %f, got %f", want, got)
	}

	data, err := os.ReadFile(horizonPath(cfg.Report.PredictionsPath, 7))
	if err != nil {
		t.Fatalf("Failed to read paired predictions: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != run.TestExamples+1 {
		t.Errorf("Expected %d CSV lines, got %d", run.TestExamples+1, len(lines))
	}
}

func TestHorizonPath(t *testing.T) {
	if got := horizonPath("data/predictions.csv", 7); got != "data/predictions_h7.csv" {
		t.Errorf("Unexpected path %s", got)
	}
	if got := horizonPath("preds", 2); got != "preds_h2" {
		t.Errorf("Unexpected path %s", got)
	}
}

func TestRunPipeline_InsufficientData(t *testing.T) {
	cfg := testConfig(t)
	cfg.Window.WindowLength = 30

	_, err := runPipeline(context.Background(), cfg, &walkFetcher{n: 20}, "run-test")
	if !errors.Is(err, train.ErrNoExamples) {
		t.Errorf("Expected ErrNoExamples, got %v", err)
	}
}

func TestRunPipeline_InvalidDates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.FromDate = "2010-13-45"

	_, err := runPipeline(context.Background(), cfg, &walkFetcher{n: 50}, "run-test")
	var rangeErr *quandl.DateRangeError
	if !errors.As(err, &rangeErr) {
		t.Errorf("Expected DateRangeError, got %v", err)
	}
}

func TestNewTrainer(t *testing.T) {
	tests := []struct {
		trainer  string
		expected string
	}{
		{"evolve", "evolve"},
		{"gradient", "gradient"},
		{"linear", "linear"},
	}
	for _, tt := range tests {
		tr := newTrainer(config.TrainingConfig{Trainer: tt.trainer, Hidden: 2, Population: 4, Generations: 1})
		if tr.Name() != tt.expected {
			t.Errorf("newTrainer(%q).Name() = %s, expected %s", tt.trainer, tr.Name(), tt.expected)
		}
	}
}

func TestRMSE(t *testing.T) {
	if got := rmse([]float64{1, 2}, []float64{1, 4}); math.Abs(got-math.Sqrt2) > 1e-12 {
		t.Errorf("Expected sqrt(2), got %v", got)
	}
	if got := rmse(nil, nil); got != 0 {
		t.Errorf("Expected 0 for empty input, got %v", got)
	}
}
