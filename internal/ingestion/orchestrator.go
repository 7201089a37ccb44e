package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sheetload/internal/config"
	"sheetload/internal/dataprocessing"
	apperrors "sheetload/internal/errors"
	"sheetload/internal/exporter"
	"sheetload/internal/infrastructure"
	"sheetload/internal/storage"
	"sheetload/internal/warehouse"
	"sheetload/pkg/contracts/domain"
)

// Deps are the collaborators of an Ingestor. Source and Sink may be the
// same store.
type Deps struct {
	Source  storage.ObjectStore
	Sink    storage.ObjectStore
	Loader  warehouse.Loader
	Metrics *infrastructure.Metrics
	Logger  *slog.Logger
}

// Result describes a completed ingestion
type Result struct {
	Source     domain.ObjectRef         `json:"source"`
	Label      string                   `json:"label"`
	AnchorDate domain.Date              `json:"anchor_date"`
	Output     domain.ObjectRef         `json:"output"`
	Locations  []string                 `json:"locations"`
	Values     map[domain.ValueKind]int `json:"values"`

	RowsExtracted int `json:"rows_extracted"`
	RowsRejected  int `json:"rows_rejected"`
	RowsDropped   int `json:"rows_dropped"`
	RowsWritten   int `json:"rows_written"`
	BytesWritten  int `json:"bytes_written"`

	Duration time.Duration `json:"duration_ns"`
}

// Ingestor turns one uploaded workbook into one CSV object and one
// warehouse load. An Ingestor holds no per-run state and is safe for
// concurrent use.
type Ingestor struct {
	cfg        config.IngestionConfig
	source     storage.ObjectStore
	sink       storage.ObjectStore
	loader     warehouse.Loader
	serializer *exporter.CSVSerializer
	metrics    *infrastructure.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewIngestor creates an Ingestor
func NewIngestor(cfg config.IngestionConfig, deps Deps) *Ingestor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := deps.Sink
	if sink == nil {
		sink = deps.Source
	}
	return &Ingestor{
		cfg:        cfg,
		source:     deps.Source,
		sink:       sink,
		loader:     deps.Loader,
		serializer: exporter.NewCSVSerializer(),
		metrics:    deps.Metrics,
		logger:     infrastructure.WithComponent(logger, "ingestor"),
		tracer:     otel.Tracer(infrastructure.InstrumentationName),
	}
}

// Ingest runs the pipeline for one source object: parse the key, fetch,
// extract, filter, serialize, write, load. Steps run in order and the first
// failure ends the run. Nothing is written unless every step before the
// write succeeded. A failed load leaves the written CSV in place.
func (i *Ingestor) Ingest(ctx context.Context, ref domain.ObjectRef) (*Result, error) {
	start := time.Now()
	ctx, span := i.tracer.Start(ctx, "ingest", trace.WithAttributes(
		attribute.String("source.bucket", ref.Bucket),
		attribute.String("source.key", ref.Key),
	))
	defer span.End()

	infrastructure.RecordActiveRunChange(ctx, i.metrics, 1)
	defer infrastructure.RecordActiveRunChange(ctx, i.metrics, -1)

	result := &Result{Source: ref}
	err := i.run(ctx, ref, result)
	result.Duration = time.Since(start)

	stats := infrastructure.IngestionStats{
		Label:        result.Label,
		Extracted:    result.RowsExtracted,
		Rejected:     result.RowsRejected,
		Dropped:      result.RowsDropped,
		Written:      result.RowsWritten,
		BytesWritten: result.BytesWritten,
	}
	infrastructure.RecordIngestion(ctx, i.metrics, stats, result.Duration, errorTypeOf(err))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.ErrorContext(ctx, "Ingestion failed",
			slog.String("bucket", result.Source.Bucket),
			slog.String("key", result.Source.Key),
			slog.String("error_type", errorTypeOf(err)),
			slog.Bool("retryable", apperrors.IsRetryable(err)),
			slog.String("error", err.Error()),
			slog.Duration("duration", result.Duration))
		return nil, err
	}

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"ingest.label":        result.Label,
		"ingest.anchor_date":  result.AnchorDate.String(),
		"ingest.rows_written": result.RowsWritten,
		"ingest.output_key":   result.Output.Key,
	})

	i.logger.InfoContext(ctx, "Ingestion completed",
		slog.String("source", result.Source.String()),
		slog.String("output", result.Output.String()),
		slog.String("anchor_date", result.AnchorDate.String()),
		slog.Int("rows_written", result.RowsWritten),
		slog.Int("rows_dropped", result.RowsDropped),
		slog.Int("rows_rejected", result.RowsRejected),
		slog.Duration("duration", result.Duration))

	return result, nil
}

func (i *Ingestor) run(ctx context.Context, ref domain.ObjectRef, result *Result) error {
	bucket, err := i.sourceBucket(ref.Bucket)
	if err != nil {
		return err
	}
	result.Source.Bucket = bucket

	label, _, err := ParseLabel(ref.Key)
	if err != nil {
		return err
	}
	result.Label = label

	var body []byte
	err = i.stage(ctx, "fetch", func(ctx context.Context) error {
		body, err = i.source.Fetch(ctx, bucket, ref.Key)
		return err
	})
	if err != nil {
		return err
	}

	var extraction *dataprocessing.Extraction
	err = i.stage(ctx, "extract", func(ctx context.Context) error {
		extraction, err = dataprocessing.ParseWorkbook(bytes.NewReader(body))
		return err
	})
	if err != nil {
		return err
	}
	result.RowsExtracted = len(extraction.Dataset)
	result.RowsRejected = len(extraction.Rejected)
	for _, rej := range extraction.Rejected {
		i.logger.WarnContext(ctx, "Skipping malformed row",
			slog.String("key", ref.Key),
			slog.Int("row", rej.Row),
			slog.String("column", rej.Column),
			slog.String("error", rej.Err.Error()))
	}

	var (
		anchor domain.Date
		rows   domain.FilteredDataset
	)
	err = i.stage(ctx, "filter", func(ctx context.Context) error {
		anchor, rows, err = dataprocessing.FilterByAnchor(extraction.Dataset)
		return err
	})
	if err != nil {
		return err
	}
	result.AnchorDate = anchor
	result.RowsDropped = len(extraction.Dataset) - len(rows)
	result.Locations = rows.Locations()
	result.Values = rows.ValueCounts()

	var csv []byte
	err = i.stage(ctx, "serialize", func(ctx context.Context) error {
		csv, err = i.serializer.Serialize(anchor, rows)
		return err
	})
	if err != nil {
		return err
	}

	out := domain.OutputObject{Bucket: i.cfg.OutputBucket, Label: label, Date: anchor, Body: csv}
	err = i.stage(ctx, "put", func(ctx context.Context) error {
		return i.sink.Put(ctx, out.Bucket, out.Key(), out.Body)
	})
	if err != nil {
		return err
	}
	result.Output = out.Ref()
	result.RowsWritten = len(rows)
	result.BytesWritten = len(csv)

	cmd := domain.LoadCommand{
		Table:           i.cfg.TargetTable,
		Columns:         domain.Columns,
		Object:          out.Ref(),
		CredentialsRef:  i.cfg.CredentialsRef,
		Date:            anchor,
		Locations:       result.Locations,
		ReplaceExisting: i.cfg.ReplaceExisting,
	}
	return i.loader.Load(ctx, cmd)
}

// sourceBucket resolves the bucket of an event against the configured one
func (i *Ingestor) sourceBucket(bucket string) (string, error) {
	switch {
	case bucket == "" && i.cfg.SourceBucket == "":
		return "", apperrors.NewAppValidationError("event names no bucket and no source bucket is configured")
	case bucket == "":
		return i.cfg.SourceBucket, nil
	case i.cfg.SourceBucket != "" && bucket != i.cfg.SourceBucket:
		return "", apperrors.NewAppValidationError(
			fmt.Sprintf("bucket %q is not the configured source bucket %q", bucket, i.cfg.SourceBucket)).
			WithContext("bucket", bucket)
	default:
		return bucket, nil
	}
}

// stage runs fn in a child span named after the step
func (i *Ingestor) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := i.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func errorTypeOf(err error) string {
	if err == nil {
		return ""
	}
	if t := apperrors.TypeOf(err); t != "" {
		return string(t)
	}
	return "INTERNAL"
}
