// Command fetch-history retrieves the configured index and exchange-rate series,
// stores them in the observation cache and reports how well they line up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/rewired-gh/indexcast/internal/config"
	"github.com/rewired-gh/indexcast/internal/dataset"
	"github.com/rewired-gh/indexcast/internal/logger"
	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/quandl"
	"github.com/rewired-gh/indexcast/internal/storage"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	fromDate   = flag.String("from", "", "Start date (yyyy-mm-dd), overrides source.from_date")
	toDate     = flag.String("to", "", "End date (yyyy-mm-dd), overrides source.to_date")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *fromDate != "" {
		cfg.Source.FromDate = *fromDate
	}
	if *toDate != "" {
		cfg.Source.ToDate = *toDate
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	dates, err := quandl.ParseDateRange(cfg.Source.FromDate, cfg.Source.ToDate)
	if err != nil {
		logger.Fatal("Invalid date range: %v", err)
	}

	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	client := quandl.NewClient(cfg.Source.APIBaseURL, cfg.Source.APIKey, cfg.Source.Timeout, quandl.ClientConfig{
		MaxRetries:     cfg.Source.MaxRetries,
		RetryDelayBase: cfg.Source.RetryDelayBase,
	})
	fetcher := storage.NewCachedFetcher(store, client, uuid.New().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	index, err := fetcher.FetchSeries(ctx, cfg.Source.IndexDataset, cfg.Source.IndexColumn, dates)
	if err != nil {
		logger.Error("Failed to fetch index: %v", err)
		store.Close()
		os.Exit(1)
	}
	exchange, err := fetcher.FetchSeries(ctx, cfg.Source.ExchangeDataset, cfg.Source.ExchangeColumn, dates)
	if err != nil {
		logger.Error("Failed to fetch exchange rate: %v", err)
		store.Close()
		os.Exit(1)
	}

	cov, err := compare(index, exchange)
	if err != nil {
		logger.Error("Failed to compare series: %v", err)
		store.Close()
		os.Exit(1)
	}
	fmt.Print(cov)
}

// coverage summarizes two series retrieved over the same date range
type coverage struct {
	Primary, Secondary models.Series
	// Common counts dates present in both series
	Common int
	// Padded counts primary dates usable once secondary gaps are carried forward
	Padded int
}

func compare(primary, secondary models.Series) (coverage, error) {
	dropped, err := dataset.Align(primary, secondary, dataset.FillDrop)
	if err != nil {
		return coverage{}, err
	}
	padded, err := dataset.Align(primary, secondary, dataset.FillPad)
	if err != nil {
		return coverage{}, err
	}
	return coverage{
		Primary:   primary,
		Secondary: secondary,
		Common:    dropped.Primary.Len(),
		Padded:    padded.Primary.Len(),
	}, nil
}

func (c coverage) String() string {
	out := describe(c.Primary) + describe(c.Secondary)
	out += fmt.Sprintf("length difference (%s - %s): %d\n", c.Secondary.Name, c.Primary.Name, c.Secondary.Len()-c.Primary.Len())
	out += fmt.Sprintf("common dates: %d\n", c.Common)
	out += fmt.Sprintf("usable with pad fill: %d\n", c.Padded)
	return out
}

func describe(s models.Series) string {
	if s.Len() == 0 {
		return fmt.Sprintf("%s: no observations\n", s.Name)
	}
	return fmt.Sprintf("%s: %d observations, %s to %s\n", s.Name, s.Len(),
		s.First().Timestamp.Format(quandl.DateLayout), s.Last().Timestamp.Format(quandl.DateLayout))
}
