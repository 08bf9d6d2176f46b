// Package storage caches retrieved observation series in a SQL database so
// repeated runs do not hit the data provider again.
//
// SQLite (modernc.org/sqlite, pure Go) is the default backend and supports
// ":memory:" for tests. PostgreSQL is available through lib/pq for shared
// caches. Queries are written with "?" placeholders and rebound per driver.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/indexcast/internal/models"
	"github.com/rewired-gh/indexcast/internal/quandl"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS observations (
		series TEXT NOT NULL,
		ts BIGINT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (series, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS fetches (
		series TEXT NOT NULL,
		from_date TEXT NOT NULL,
		to_date TEXT NOT NULL,
		fetched_at BIGINT NOT NULL,
		run_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		finished_at BIGINT NOT NULL,
		summary TEXT NOT NULL
	)`,
}

// Storage is a SQL-backed cache of observation series
type Storage struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex // serializes writers; SQLite allows a single writer
}

// New opens (and migrates) the cache database
func New(driver, dsn string) (*Storage, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	if driver == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// every new connection to :memory: is a fresh database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(3)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &Storage{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Close releases the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// rebind converts "?" placeholders to "$n" for PostgreSQL
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SaveSeries upserts the observations of a series and records that range r
// has been fetched by runID
func (s *Storage) SaveSeries(ctx context.Context, series models.Series, r quandl.DateRange, runID string) error {
	if err := series.Validate(); err != nil {
		return fmt.Errorf("invalid series: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO observations (series, ts, value) VALUES (?, ?, ?)
		 ON CONFLICT (series, ts) DO UPDATE SET value = excluded.value`))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range series.Observations {
		if _, err := stmt.ExecContext(ctx, series.Name, o.Timestamp.Unix(), o.Value); err != nil {
			return fmt.Errorf("failed to insert observation %s: %w", o.Timestamp.Format(quandl.DateLayout), err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(
		`INSERT INTO fetches (series, from_date, to_date, fetched_at, run_id) VALUES (?, ?, ?, ?, ?)`),
		series.Name, r.From.Format(quandl.DateLayout), r.To.Format(quandl.DateLayout), time.Now().Unix(), runID); err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadSeries returns cached observations of a series within r. ok is false
// when no recorded fetch covers r, in which case the cache must not be trusted.
func (s *Storage) LoadSeries(ctx context.Context, name string, r quandl.DateRange) (series models.Series, ok bool, err error) {
	var covered int
	err = s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM fetches WHERE series = ? AND from_date <= ? AND to_date >= ?`),
		name, r.From.Format(quandl.DateLayout), r.To.Format(quandl.DateLayout)).Scan(&covered)
	if err != nil {
		return models.Series{}, false, fmt.Errorf("failed to query fetches: %w", err)
	}
	if covered == 0 {
		return models.Series{}, false, nil
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT ts, value FROM observations WHERE series = ? AND ts >= ? AND ts < ? ORDER BY ts`),
		name, r.From.Unix(), r.To.AddDate(0, 0, 1).Unix())
	if err != nil {
		return models.Series{}, false, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	series = models.Series{Name: name}
	for rows.Next() {
		var ts int64
		var value float64
		if err := rows.Scan(&ts, &value); err != nil {
			return models.Series{}, false, fmt.Errorf("failed to scan observation: %w", err)
		}
		series.Observations = append(series.Observations, models.Observation{
			Timestamp: time.Unix(ts, 0).UTC(),
			Value:     value,
		})
	}
	if err := rows.Err(); err != nil {
		return models.Series{}, false, fmt.Errorf("failed to read observations: %w", err)
	}
	return series, true, nil
}

// SaveRun persists a run summary as JSON
func (s *Storage) SaveRun(ctx context.Context, run *models.RunSummary) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO runs (id, finished_at, summary) VALUES (?, ?, ?)`),
		run.ID, run.FinishedAt.Unix(), string(data))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun loads a run summary by ID
func (s *Storage) GetRun(ctx context.Context, id string) (*models.RunSummary, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT summary FROM runs WHERE id = ?`), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	var run models.RunSummary
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}
