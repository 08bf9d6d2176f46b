package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/indexcast/internal/config"
	"github.com/rewired-gh/indexcast/internal/dataset"
	"github.com/rewired-gh/indexcast/internal/logger"
	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/quandl"
	"github.com/rewired-gh/indexcast/internal/report"
	"github.com/rewired-gh/indexcast/internal/storage"
	"github.com/rewired-gh/indexcast/internal/train"
)

// runPipeline retrieves the configured series, windows them, trains the
// configured model and evaluates it on the held-out tail. Paired models for
// extra horizons are trained on the same windows.
func runPipeline(ctx context.Context, cfg *config.Config, fetcher storage.Fetcher, runID string) (*models.RunSummary, error) {
	startTime := time.Now()
	runLog := logger.With("run_id", runID)
	runLog.Info().Str("trainer", cfg.Training.Trainer).Msg("Starting run")

	dates, err := quandl.ParseDateRange(cfg.Source.FromDate, cfg.Source.ToDate)
	if err != nil {
		return nil, fmt.Errorf("invalid date range: %w", err)
	}

	index, err := fetcher.FetchSeries(ctx, cfg.Source.IndexDataset, cfg.Source.IndexColumn, dates)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", cfg.Source.IndexDataset, err)
	}
	logger.Info("Retrieved %d observations for %s", index.Len(), index.Name)

	var covariates []models.Series
	for _, column := range cfg.Source.ExtraColumns {
		extra, err := fetcher.FetchSeries(ctx, cfg.Source.IndexDataset, column, dates)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s column %s: %w", cfg.Source.IndexDataset, column, err)
		}
		covariates = append(covariates, extra)
	}
	if cfg.Source.UseExchange {
		exchange, err := fetcher.FetchSeries(ctx, cfg.Source.ExchangeDataset, cfg.Source.ExchangeColumn, dates)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", cfg.Source.ExchangeDataset, err)
		}
		covariates = append(covariates, exchange)
	}
	if len(covariates) > 0 {
		before := index.Len()
		index, covariates, err = dataset.AlignAll(index, covariates, dataset.FillPolicy(cfg.Source.Fill))
		if err != nil {
			return nil, fmt.Errorf("failed to align series: %w", err)
		}
		logger.Info("Aligned %s with %d covariates: %d -> %d observations (fill=%s)",
			index.Name, len(covariates), before, index.Len(), cfg.Source.Fill)
	}

	prepared, err := dataset.Prepare(index, covariates, dataset.Options{
		Window:        cfg.WindowOptions(),
		TrainFraction: cfg.Window.TrainFraction,
		Scale:         dataset.ScaleMethod(cfg.Scaling.Method),
		ExtraHorizons: cfg.Window.ExtraHorizons,
		Weekdays:      cfg.Window.Weekdays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dataset: %w", err)
	}
	logger.Info("Prepared %d training and %d testing examples (window=%d, stride=%s, horizon=%d, width=%d)",
		len(prepared.Train), len(prepared.Test), cfg.Window.WindowLength, cfg.Window.StridePolicy,
		cfg.Window.Horizon, prepared.Train.Width())
	if len(prepared.Test) == 0 {
		logger.Warn("Testing part has only %d observations, no test examples produced", prepared.TestLen)
	}

	trainer := newTrainer(cfg.Training)
	primary, err := fitHorizon(ctx, trainer, prepared.Dataset, prepared.Scaler, cfg.Window.Horizon, cfg.Report.PredictionsPath)
	if err != nil {
		return nil, err
	}

	run := &models.RunSummary{
		ID:            runID,
		Trainer:       trainer.Name(),
		Series:        index.Name,
		WindowLength:  cfg.Window.WindowLength,
		Horizon:       cfg.Window.Horizon,
		StridePolicy:  cfg.Window.StridePolicy,
		TrainExamples: len(prepared.Train),
		TestExamples:  len(prepared.Test),
		TrainCost:     primary.TrainCost,
		TestCost:      primary.TestCost,
		TestRMSE:      primary.TestRMSE,
	}

	for _, h := range cfg.Window.ExtraHorizons {
		path := ""
		if cfg.Report.PredictionsPath != "" {
			path = horizonPath(cfg.Report.PredictionsPath, h)
		}
		paired, err := fitHorizon(ctx, newTrainer(cfg.Training), prepared.Extra[h], prepared.Scaler, h, path)
		if err != nil {
			return nil, err
		}
		run.Extra = append(run.Extra, *paired)
	}
	if len(run.Extra) > 0 {
		logger.Info("Combined test cost over %d horizons: %.6f", len(run.Extra)+1, run.CombinedTestCost())
	}

	run.Duration = time.Since(startTime)
	run.FinishedAt = time.Now()
	runLog.Info().Dur("duration", run.Duration).Msg("Run completed")
	return run, nil
}

// fitHorizon trains one model on data, evaluates it and writes its descaled
// test predictions to path when path is set
func fitHorizon(ctx context.Context, trainer train.Trainer, data models.Dataset, scaler *dataset.Scaler, horizon int, path string) (*models.HorizonSummary, error) {
	model, err := trainer.Fit(ctx, data.Train)
	if err != nil {
		return nil, fmt.Errorf("failed to train %s model for horizon %d: %w", trainer.Name(), horizon, err)
	}

	trainEval := train.Evaluate(model, data.Train)
	testEval := train.Evaluate(model, data.Test)

	actual := scaler.InverseAll(testEval.Actual)
	predicted := scaler.InverseAll(testEval.Predictions)
	testRMSE := rmse(actual, predicted)
	logger.Info("Horizon %d: train cost %.6f, test cost %.6f, test RMSE %.2f (scaled %.6f)",
		horizon, trainEval.Cost, testEval.Cost, testRMSE, testEval.RMSE)

	if path != "" {
		if err := report.WritePredictionsFile(path, actual, predicted); err != nil {
			return nil, err
		}
		logger.Info("Wrote %d test predictions to %s", len(predicted), path)
	}

	return &models.HorizonSummary{
		Horizon:   horizon,
		TrainCost: trainEval.Cost,
		TestCost:  testEval.Cost,
		TestRMSE:  testRMSE,
	}, nil
}

// horizonPath derives the predictions file for an extra horizon,
// e.g. predictions.csv -> predictions_h7.csv
func horizonPath(path string, horizon int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_h%d%s", strings.TrimSuffix(path, ext), horizon, ext)
}

// newTrainer builds the configured trainer
func newTrainer(cfg config.TrainingConfig) train.Trainer {
	switch cfg.Trainer {
	case "gradient":
		return train.NewGradient(train.GradientConfig{
			Hidden:       cfg.Hidden,
			Epochs:       cfg.Epochs,
			LearningRate: cfg.LearningRate,
			Patience:     cfg.Patience,
			Seed:         cfg.Seed,
		})
	case "linear":
		return train.NewLinear()
	default:
		return train.NewEvolver(train.EvolveConfig{
			Hidden:        cfg.Hidden,
			Population:    cfg.Population,
			Generations:   cfg.Generations,
			MutationRate:  cfg.MutationRate,
			MutationScale: cfg.MutationScale,
			Elite:         cfg.Elite,
			Workers:       cfg.Workers,
			Stagnation:    cfg.Stagnation,
			Seed:          cfg.Seed,
		}, logGeneration(cfg.Generations))
	}
}

// logGeneration logs evolver progress, every generation at debug level and
// roughly every tenth at info level
func logGeneration(total int) train.Reporter {
	every := total / 10
	if every < 1 {
		every = 1
	}
	return func(s train.GenerationStats) {
		if s.Generation%every == 0 || s.Generation == total-1 {
			logger.Info("Generation %d/%d: best %.6f, mean %.6f, std %.6f",
				s.Generation+1, total, s.BestFitness, s.MeanFitness, s.StdDev)
			return
		}
		if s.Reseeded {
			logger.Debug("Generation %d: fitness stagnated, reseeded non-elite genomes", s.Generation+1)
		}
		logger.Debug("Generation %d: best %.6f (genome %s)", s.Generation+1, s.BestFitness, s.BestGenome)
	}
}

// rmse returns the root mean squared error in the units of its inputs
func rmse(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	return floats.Distance(actual, predicted, 2) / math.Sqrt(float64(len(actual)))
}
