package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"sheetload/pkg/contracts/domain"
)

// CSVSerializer renders a filtered dataset as the CSV body that gets loaded
// into the warehouse
type CSVSerializer struct {
	headers []string
}

// NewCSVSerializer creates a serializer writing domain.Columns as the header
func NewCSVSerializer() *CSVSerializer {
	return &CSVSerializer{headers: domain.Columns}
}

// Serialize renders rows as CSV. The output is a pure function of its
// input: same rows, same bytes.
func (s *CSVSerializer) Serialize(anchor domain.Date, rows domain.FilteredDataset) ([]byte, error) {
	var buf bytes.Buffer

	w, err := s.NewStreamWriter(&buf)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if r.Date != anchor {
			return nil, fmt.Errorf("record %d is dated %s, not the anchor date %s", i, r.Date, anchor)
		}
		if err := w.WriteRecord(r); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	slog.Debug("Serialized CSV",
		slog.String("anchor_date", anchor.String()),
		slog.Int("record_count", len(rows)),
		slog.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

// StreamWriter writes records one at a time to an underlying writer
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the header to out and returns a writer for the rows
func (s *CSVSerializer) NewStreamWriter(out io.Writer) (*StreamWriter, error) {
	writer := csv.NewWriter(out)
	writer.UseCRLF = false

	if err := writer.Write(s.headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (w *StreamWriter) WriteRecord(r domain.Record) error {
	return w.writer.Write(formatRecord(r))
}

// Close flushes the stream writer
func (w *StreamWriter) Close() error {
	w.writer.Flush()
	return w.writer.Error()
}

// OutputFileName returns the object name for an anchor date, YYYY-MM-DD.csv
func OutputFileName(anchor domain.Date) string {
	return formatDate(anchor) + ".csv"
}
