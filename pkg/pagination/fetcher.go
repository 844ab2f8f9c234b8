package pagination

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Sternrassler/upmind-client-export/pkg/logging"
	"github.com/Sternrassler/upmind-client-export/pkg/normalize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_export_pages_fetched_total",
		Help: "Total number of listing pages fetched",
	})

	recordsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "client_export_records_fetched_total",
		Help: "Total number of raw client records fetched",
	})
)

// PageGetter is the interface the API client must implement for fetching a
// single page by absolute URL.
type PageGetter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Fetcher follows next-page cursors until the listing is exhausted.
type Fetcher struct {
	getter PageGetter
	logger zerolog.Logger
}

// NewFetcher creates a new sequential fetcher.
func NewFetcher(getter PageGetter) *Fetcher {
	return &Fetcher{
		getter: getter,
		logger: logging.NewLogger("pagination"),
	}
}

// FetchAll fetches every page starting at startURL and returns all records
// in upstream order. Any error aborts the whole listing and no records are
// returned.
func (f *Fetcher) FetchAll(ctx context.Context, startURL string) ([]normalize.Record, error) {
	start := time.Now()

	var records []normalize.Record
	visited := make(map[string]bool)
	pages := 0

	cursor := startURL
	for cursor != "" {
		if visited[cursor] {
			return nil, &ShapeError{URL: cursor, Reason: "next link revisits an already fetched page"}
		}
		visited[cursor] = true

		body, err := f.getter.Get(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", pages+1, err)
		}

		page, err := DecodePage(cursor, body)
		if err != nil {
			return nil, err
		}

		pages++
		pagesFetchedTotal.Inc()
		recordsFetchedTotal.Add(float64(len(page.Records)))
		records = append(records, page.Records...)

		f.logger.Debug().
			Int("page", pages).
			Int("records", len(page.Records)).
			Bool("has_next", page.Next != "").
			Msg("Page fetched")

		cursor, err = resolveNext(cursor, page.Next)
		if err != nil {
			return nil, err
		}
	}

	f.logger.Info().
		Int("pages", pages).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return records, nil
}

// resolveNext turns a possibly relative next link into an absolute URL.
func resolveNext(current, next string) (string, error) {
	if next == "" {
		return "", nil
	}

	base, err := url.Parse(current)
	if err != nil {
		return "", &ShapeError{URL: current, Reason: fmt.Sprintf("invalid page URL: %v", err)}
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", &ShapeError{URL: current, Reason: fmt.Sprintf("invalid next link %q: %v", next, err)}
	}
	return base.ResolveReference(ref).String(), nil
}
