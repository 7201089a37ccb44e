package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sheetload/internal/config"
	apperrors "sheetload/internal/errors"
	"sheetload/internal/infrastructure"
	"sheetload/pkg/contracts/domain"
)

// Loader issues one bulk load of an output object into the target table.
// Implementations do not retry.
type Loader interface {
	Load(ctx context.Context, cmd domain.LoadCommand) error
}

// copyOptions match the CSV the exporter writes
const copyOptions = "FORMAT CSV EMPTYASNULL BLANKSASNULL IGNOREHEADER 1 IGNOREBLANKLINES"

// BuildStatements renders the SQL for a load: an optional DELETE of the rows
// being replaced, then the COPY. The statements are meant to run as one unit.
func BuildStatements(cmd domain.LoadCommand) ([]string, error) {
	if !config.IsSQLIdent(cmd.Table) {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid target table %q", cmd.Table))
	}
	if len(cmd.Columns) == 0 {
		return nil, apperrors.NewAppValidationError("load command has no columns")
	}
	for _, c := range cmd.Columns {
		if !config.IsSQLIdent(c) {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid column name %q", c))
		}
	}
	if cmd.Object.Bucket == "" || cmd.Object.Key == "" {
		return nil, apperrors.NewAppValidationError("load command has no source object")
	}

	var stmts []string

	if cmd.ReplaceExisting && len(cmd.Locations) > 0 {
		quoted := make([]string, len(cmd.Locations))
		for i, loc := range cmd.Locations {
			quoted[i] = quoteLiteral(loc)
		}
		stmts = append(stmts, fmt.Sprintf("DELETE FROM %s WHERE date = %s AND location IN (%s)",
			cmd.Table, quoteLiteral(cmd.Date.String()), strings.Join(quoted, ", ")))
	}

	copyStmt := fmt.Sprintf("COPY %s (%s) FROM %s", cmd.Table, strings.Join(cmd.Columns, ", "), quoteLiteral(cmd.Object.String()))
	if cmd.CredentialsRef != "" {
		copyStmt += " IAM_ROLE " + quoteLiteral(cmd.CredentialsRef)
	}
	stmts = append(stmts, copyStmt+" "+copyOptions)

	return stmts, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// NoopLoader logs the statements it would run. It backs local runs where no
// warehouse is reachable.
type NoopLoader struct {
	logger *slog.Logger
}

// NewNoopLoader creates a loader that only logs
func NewNoopLoader(logger *slog.Logger) *NoopLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopLoader{logger: logger.With(slog.String("component", "noop_loader"))}
}

// Load validates the command and logs its statements
func (l *NoopLoader) Load(ctx context.Context, cmd domain.LoadCommand) error {
	stmts, err := BuildStatements(cmd)
	if err != nil {
		return err
	}
	for _, s := range stmts {
		l.logger.InfoContext(ctx, "Skipping warehouse statement", slog.String("sql", s))
	}
	return nil
}

// instrumented records a span and the load duration around another loader
type instrumented struct {
	next    Loader
	backend string
	metrics *infrastructure.Metrics
	tracer  trace.Tracer
}

// WithTelemetry wraps l so every load is traced and timed under backend
func WithTelemetry(l Loader, backend string, metrics *infrastructure.Metrics) Loader {
	return &instrumented{
		next:    l,
		backend: backend,
		metrics: metrics,
		tracer:  otel.Tracer(infrastructure.InstrumentationName),
	}
}

func (i *instrumented) Load(ctx context.Context, cmd domain.LoadCommand) error {
	ctx, span := i.tracer.Start(ctx, "load", trace.WithAttributes(
		attribute.String("warehouse.backend", i.backend),
		attribute.String("warehouse.table", cmd.Table),
		attribute.String("warehouse.object", cmd.Object.String()),
	))
	defer span.End()

	start := time.Now()
	err := i.next.Load(ctx, cmd)
	infrastructure.RecordLoad(ctx, i.metrics, i.backend, time.Since(start), err == nil)
	if err != nil {
		infrastructure.RecordError(ctx, err)
	}
	return err
}
