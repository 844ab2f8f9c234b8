// Package metrics provides the Prometheus registry used by the client export.
// All metrics are defined in their respective packages (client, pagination,
// csvexport, runstate) to maintain modularity and avoid circular dependencies.
//
// The export is a one-shot process, so nothing is scraped; instead the
// gathered metrics can be written to a node_exporter textfile at exit.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the export.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes all gathered metrics to path in the Prometheus text
// format. The file is written atomically.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is empty")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - client_export_requests_total{endpoint, status} (Counter): Upstream requests by endpoint and HTTP status
//   - client_export_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - client_export_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, unexpected_status)
//
// Pagination Metrics (pkg/pagination):
//   - client_export_pages_fetched_total (Counter): Listing pages fetched
//   - client_export_records_fetched_total (Counter): Raw client records fetched
//
// Output Metrics (pkg/csvexport):
//   - client_export_rows_written_total (Counter): CSV data rows written
//
// Run State Metrics (pkg/runstate):
//   - client_export_lock_contended_total (Counter): Runs refused because the lock was held
//   - client_export_runstate_errors_total{operation} (Counter): Redis run state errors
//
// Example Prometheus Queries (textfile collector):
//
//   # Records lost between fetch and write (should be 0)
//   client_export_records_fetched_total - client_export_rows_written_total
//
//   # Upstream error classes of the last run
//   client_export_errors_total
