// Package csvexport writes normalized client rows as a CRM import CSV.
package csvexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/upmind-client-export/pkg/logging"
	"github.com/Sternrassler/upmind-client-export/pkg/normalize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "client_export_rows_written_total",
	Help: "Total number of CSV data rows written",
})

// Header is the fixed column order of the import file.
var Header = []string{
	"name",
	"company",
	"email",
	"phone",
	"source",
	"notes_summary",
	"status",
	"client_type",
	"owner_id",
	"organization_id",
}

// UnknownName is written when a row has no name, email or phone.
const UnknownName = "Unknown"

// Metadata holds the constant columns appended to every row.
type Metadata struct {
	Status         string
	ClientType     string
	OwnerID        string
	OrganizationID string
}

// DisplayName is the value of the name column: the normalized name, else the
// email, else the phone, else UnknownName.
func DisplayName(row normalize.Row) string {
	switch {
	case row.Name != "":
		return row.Name
	case row.Email != "":
		return row.Email
	case row.Phone != "":
		return row.Phone
	default:
		return UnknownName
	}
}

// Writer writes the header followed by one line per row.
type Writer struct {
	csv           *csv.Writer
	meta          Metadata
	headerWritten bool
	rows          int
}

// NewWriter creates a writer emitting comma-delimited, RFC 4180 quoted lines.
func NewWriter(w io.Writer, meta Metadata) *Writer {
	return &Writer{
		csv:  csv.NewWriter(w),
		meta: meta,
	}
}

// Write appends one row, writing the header first if needed.
func (w *Writer) Write(row normalize.Row) error {
	if err := w.writeHeader(); err != nil {
		return err
	}

	record := []string{
		DisplayName(row),
		row.Company,
		row.Email,
		row.Phone,
		row.Source,
		row.NotesSummary,
		w.meta.Status,
		w.meta.ClientType,
		w.meta.OwnerID,
		w.meta.OrganizationID,
	}
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("write row %d: %w", w.rows+1, err)
	}

	w.rows++
	rowsWrittenTotal.Inc()
	return nil
}

// Flush writes the header if no row was written and flushes buffered data.
func (w *Writer) Flush() error {
	if err := w.writeHeader(); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) writeHeader() error {
	if w.headerWritten {
		return nil
	}
	if err := w.csv.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.headerWritten = true
	return nil
}

// WriteFile creates path and writes every record, normalizing each one as
// it is written. The file is flushed and closed on every exit path; a
// failure part way through leaves the rows written so far on disk.
func WriteFile(path string, meta Metadata, records []normalize.Record) (n int, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create output file: %w", err)
	}

	logger := logging.NewLogger("csvexport")
	w := NewWriter(f, meta)
	defer func() {
		flushErr := w.Flush()
		closeErr := f.Close()
		if err == nil {
			err = errors.Join(flushErr, closeErr)
		}
		n = w.Rows()
	}()

	for i, record := range records {
		row := normalize.Normalize(record)
		logger.Debug().
			Int("row", i+1).
			Str("email", logging.RedactEmail(row.Email)).
			Str("phone", logging.RedactPhone(row.Phone)).
			Bool("name_fallback", row.Name == "").
			Msg("Writing client row")

		if err := w.Write(row); err != nil {
			return w.Rows(), err
		}
	}

	return w.Rows(), nil
}
