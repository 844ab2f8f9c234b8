// Package exporter runs one client export: fetch every client record from
// the upstream API, normalize it, and write the CRM import CSV.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/upmind-client-export/pkg/client"
	"github.com/Sternrassler/upmind-client-export/pkg/config"
	"github.com/Sternrassler/upmind-client-export/pkg/csvexport"
	"github.com/Sternrassler/upmind-client-export/pkg/logging"
	"github.com/Sternrassler/upmind-client-export/pkg/normalize"
	"github.com/Sternrassler/upmind-client-export/pkg/pagination"
	"github.com/Sternrassler/upmind-client-export/pkg/runstate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when another export holds the run lock.
var ErrRunInProgress = errors.New("another export run is in progress")

// RecordFetcher drains the upstream client listing.
type RecordFetcher interface {
	FetchAll(ctx context.Context, startURL string) ([]normalize.Record, error)
}

// RunStore guards and records export runs. Implemented by *runstate.Store.
type RunStore interface {
	Acquire(ctx context.Context, runID string) (bool, error)
	Release(ctx context.Context, runID string) error
	Record(ctx context.Context, summary runstate.Summary) error
}

// Options describe a single export run.
type Options struct {
	StartURL   string
	OutputPath string
	Metadata   csvexport.Metadata
}

// OptionsFromConfig maps the resolved configuration onto run options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		StartURL:   cfg.APIURL,
		OutputPath: cfg.OutputPath,
		Metadata: csvexport.Metadata{
			Status:         cfg.Status,
			ClientType:     cfg.ClientType,
			OwnerID:        cfg.OwnerID,
			OrganizationID: cfg.OrganizationID,
		},
	}
}

// NewAPIFetcher builds the bearer-authenticated paginated fetcher for cfg.
func NewAPIFetcher(cfg config.Config) (*pagination.Fetcher, error) {
	apiClient, err := client.New(client.DefaultConfig(cfg.APIToken, cfg.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	return pagination.NewFetcher(apiClient), nil
}

// Result summarizes a completed export.
type Result struct {
	RunID      string
	Fetched    int
	Written    int
	OutputPath string
	Duration   time.Duration
}

// Exporter runs exports.
type Exporter struct {
	fetcher RecordFetcher
	store   RunStore
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// New creates an exporter. store may be nil, which disables the run lock and
// run summaries.
func New(fetcher RecordFetcher, store RunStore) *Exporter {
	return &Exporter{
		fetcher: fetcher,
		store:   store,
		logger:  logging.NewLogger("exporter"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Run performs one export. Every failure is fatal: the CSV may be left
// partially written if writing fails part way through.
func (e *Exporter) Run(ctx context.Context, opts Options) (result *Result, err error) {
	runID := e.newID()
	logger := e.logger.With().Str("run_id", runID).Logger()
	started := e.now()

	summary := runstate.Summary{
		RunID:      runID,
		StartedAt:  started,
		OutputPath: opts.OutputPath,
	}

	if e.store != nil {
		acquired, lockErr := e.store.Acquire(ctx, runID)
		if lockErr != nil {
			return nil, lockErr
		}
		if !acquired {
			return nil, ErrRunInProgress
		}
		defer func() {
			e.finish(ctx, logger, &summary, err)
		}()
	}

	logger.Info().
		Str("output", opts.OutputPath).
		Msg("Export started")

	records, err := e.fetcher.FetchAll(ctx, opts.StartURL)
	if err != nil {
		return nil, fmt.Errorf("fetch clients: %w", err)
	}
	summary.Fetched = len(records)

	written, err := csvexport.WriteFile(opts.OutputPath, opts.Metadata, records)
	summary.Written = written
	if err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	duration := e.now().Sub(started)
	logger.Info().
		Int("records", len(records)).
		Int("rows", written).
		Str("output", opts.OutputPath).
		Dur("duration", duration).
		Msg("Export complete")

	return &Result{
		RunID:      runID,
		Fetched:    len(records),
		Written:    written,
		OutputPath: opts.OutputPath,
		Duration:   duration,
	}, nil
}

// finish records the run summary and releases the lock. Run state failures
// are logged and never change the export result.
func (e *Exporter) finish(ctx context.Context, logger zerolog.Logger, summary *runstate.Summary, runErr error) {
	// Record even when the run context was cancelled.
	ctx = context.WithoutCancel(ctx)

	summary.FinishedAt = e.now()
	summary.Status = runstate.StatusSucceeded
	if runErr != nil {
		summary.Status = runstate.StatusFailed
		summary.Error = runErr.Error()
	}

	if err := e.store.Record(ctx, *summary); err != nil {
		logger.Warn().Err(err).Msg("Failed to record run summary")
	}
	if err := e.store.Release(ctx, summary.RunID); err != nil {
		logger.Warn().Err(err).Msg("Failed to release run lock")
	}
}
