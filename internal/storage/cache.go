package storage

import (
	"context"

	"github.com/rewired-gh/indexcast/internal/logger"
	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/quandl"
)

// Fetcher retrieves one column of a remote dataset
type Fetcher interface {
	FetchSeries(ctx context.Context, code, column string, r quandl.DateRange) (models.Series, error)
}

// CachedFetcher serves series from storage when a covering fetch was recorded
// and falls through to the remote fetcher otherwise
type CachedFetcher struct {
	store  *Storage
	remote Fetcher
	runID  string
}

// NewCachedFetcher wraps remote with store. Fetches it records are attributed to runID.
func NewCachedFetcher(store *Storage, remote Fetcher, runID string) *CachedFetcher {
	return &CachedFetcher{store: store, remote: remote, runID: runID}
}

// FetchSeries implements Fetcher
func (c *CachedFetcher) FetchSeries(ctx context.Context, code, column string, r quandl.DateRange) (models.Series, error) {
	name := code + ":" + column

	series, ok, err := c.store.LoadSeries(ctx, name, r)
	if err != nil {
		logger.Warn("Cache lookup for %s failed, fetching remotely: %v", name, err)
	} else if ok {
		logger.Info("Loaded %d cached observations for %s (%s)", series.Len(), name, r)
		return series, nil
	}

	logger.Info("Retrieving %s (%s) from data provider", name, r)
	series, err = c.remote.FetchSeries(ctx, code, column, r)
	if err != nil {
		return models.Series{}, err
	}

	if err := c.store.SaveSeries(ctx, series, r, c.runID); err != nil {
		// a failed cache write does not invalidate the fetched data
		logger.Warn("Failed to cache %s: %v", name, err)
	} else {
		logger.Debug("Cached %d observations for %s", series.Len(), name)
	}
	return series, nil
}
