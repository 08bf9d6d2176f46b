// Package quandl retrieves historical time series from a Quandl-compatible
// data API (v3 "datasets/{code}/data.json" endpoint).
//
// Every fetched dataset is reduced to a single named column, returned as an
// ascending models.Series. Rows with a null cell in that column are skipped;
// gap filling across series is left to the dataset package.
package quandl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rewired-gh/indexcast/internal/models"
)

// DateLayout is the yyyy-mm-dd layout used by the API
const DateLayout = "2006-01-02"

// Client provides access to the historical data API
type Client struct {
	apiBaseURL     string
	apiKey         string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// ClientConfig holds optional HTTP and retry tuning
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// datasetResponse mirrors the data.json payload
type datasetResponse struct {
	DatasetData struct {
		ColumnNames []string        `json:"column_names"`
		Data        [][]interface{} `json:"data"`
	} `json:"dataset_data"`
}

type errorResponse struct {
	QuandlError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"quandl_error"`
}

// NewClient creates a new data API client
func NewClient(apiBaseURL, apiKey string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		apiBaseURL:     strings.TrimRight(apiBaseURL, "/"),
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// FetchSeries retrieves one column of a dataset between two dates (inclusive).
// The returned series is named "code:column".
func (c *Client) FetchSeries(ctx context.Context, code, column string, r DateRange) (models.Series, error) {
	params := url.Values{}
	params.Set("start_date", r.From.Format(DateLayout))
	params.Set("end_date", r.To.Format(DateLayout))
	params.Set("order", "asc")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	endpoint := fmt.Sprintf("%s/datasets/%s/data.json?%s", c.apiBaseURL, code, params.Encode())

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return models.Series{}, fmt.Errorf("failed to fetch dataset %s: %w", code, err)
	}

	var resp datasetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Series{}, fmt.Errorf("failed to decode dataset %s: %w", code, err)
	}

	series, err := parseColumn(code+":"+column, resp, column)
	if err != nil {
		return models.Series{}, fmt.Errorf("dataset %s: %w", code, err)
	}
	return series, nil
}

// parseColumn extracts the named column into an ascending series
func parseColumn(name string, resp datasetResponse, column string) (models.Series, error) {
	cols := resp.DatasetData.ColumnNames
	dateIdx, valueIdx := -1, -1
	for i, c := range cols {
		switch {
		case strings.EqualFold(c, "date"):
			dateIdx = i
		case strings.EqualFold(c, column):
			valueIdx = i
		}
	}
	if dateIdx < 0 {
		return models.Series{}, errors.New("response has no date column")
	}
	if valueIdx < 0 {
		return models.Series{}, fmt.Errorf("unknown column %q (available: %s)", column, strings.Join(cols, ", "))
	}

	series := models.Series{Name: name}
	for i, row := range resp.DatasetData.Data {
		if len(row) != len(cols) {
			return models.Series{}, fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(cols))
		}
		dateStr, ok := row[dateIdx].(string)
		if !ok {
			return models.Series{}, fmt.Errorf("row %d has non-string date %v", i, row[dateIdx])
		}
		ts, err := time.Parse(DateLayout, dateStr)
		if err != nil {
			return models.Series{}, fmt.Errorf("row %d: %w", i, err)
		}
		value, ok := row[valueIdx].(float64)
		if !ok {
			// null cells are gaps, not errors
			continue
		}
		series.Observations = append(series.Observations, models.Observation{Timestamp: ts, Value: value})
	}

	// order=asc is a request, not a guarantee
	sort.SliceStable(series.Observations, func(i, j int) bool {
		return series.Observations[i].Timestamp.Before(series.Observations[j].Timestamp)
	})

	if err := series.Validate(); err != nil {
		return models.Series{}, err
	}
	return series, nil
}

// doRequest performs HTTP request with retry logic and returns the body
func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			// client errors are not retried
			var apiErr errorResponse
			if json.Unmarshal(body, &apiErr) == nil && apiErr.QuandlError.Message != "" {
				return nil, fmt.Errorf("api error %d (%s): %s", resp.StatusCode, apiErr.QuandlError.Code, apiErr.QuandlError.Message)
			}
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
