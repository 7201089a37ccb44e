package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-chi/chi/v5"

	"sheetload/internal/config"
	apperrors "sheetload/internal/errors"
	"sheetload/internal/infrastructure"
	"sheetload/internal/ingestion"
	"sheetload/internal/storage"
	handlers "sheetload/internal/transport/http"
	"sheetload/internal/warehouse"
)

// Overrides replaces components that would otherwise be built from the
// configuration. Nil fields are built as usual.
type Overrides struct {
	Source storage.ObjectStore
	Sink   storage.ObjectStore
	Loader warehouse.Loader
}

// Application wires configuration, telemetry, storage, the warehouse loader
// and the ingestion pipeline together
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.Metrics
	Ingestor      *ingestion.Ingestor
	Dispatcher    *ingestion.Dispatcher

	loaderCloser io.Closer
	server       *http.Server
}

// New builds an application from cfg
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, ov Overrides) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion),
		slog.String("warehouse", cfg.Warehouse.Backend))

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		Metrics:       metrics,
	}

	var awsCfg aws.Config
	if needsAWS(cfg, ov) {
		awsCfg, err = storage.NewAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
	}

	source, sink := ov.Source, ov.Sink
	if source == nil || sink == nil {
		s3 := storage.NewS3Store(awsCfg, cfg.AWS.S3ForcePathStyle, logger)
		if source == nil {
			source = s3
		}
		if sink == nil {
			sink = s3
		}
	}

	loader := ov.Loader
	if loader == nil {
		loader, a.loaderCloser, err = warehouse.New(cfg.Warehouse, awsCfg, metrics, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create warehouse loader: %w", err)
		}
	}

	a.Ingestor = ingestion.NewIngestor(cfg.Ingestion, ingestion.Deps{
		Source:  source,
		Sink:    sink,
		Loader:  loader,
		Metrics: metrics,
		Logger:  logger,
	})
	a.Dispatcher = ingestion.NewDispatcher(a.Ingestor, cfg.Ingestion.MaxConcurrency, logger)

	return a, nil
}

// needsAWS reports whether any component left to build talks to AWS
func needsAWS(cfg *config.Config, ov Overrides) bool {
	if ov.Source == nil || ov.Sink == nil {
		return true
	}
	return ov.Loader == nil && cfg.Warehouse.Backend == config.BackendRedshiftData
}

// HandleS3Event ingests every ObjectCreated record of event. It returns an
// error only when some record failed in a way a retry can fix, so the
// function runtime redelivers the event; data failures are logged and
// dropped.
func (a *Application) HandleS3Event(ctx context.Context, event events.S3Event) error {
	ctx = infrastructure.EnsureTraceID(ctx)

	refs, invalid := ingestion.RefsFromS3Event(event)
	outcomes := append(invalid, a.Dispatcher.Dispatch(ctx, refs)...)

	for _, out := range outcomes.Failed() {
		a.Logger.WarnContext(ctx, "Record failed",
			slog.String("source", out.Ref.String()),
			slog.String("error", out.Err.Error()),
			slog.Bool("retryable", apperrors.IsRetryable(out.Err)))
	}

	if outcomes.Retryable() {
		return outcomes.Err()
	}
	return nil
}

// Router builds the HTTP API over the application's dispatcher
func (a *Application) Router() chi.Router {
	return handlers.NewRouter(handlers.RouterConfig{
		Server:     a.Config.Server,
		Dispatcher: a.Dispatcher,
		Version:    config.AppVersion,
		Warehouse:  a.Config.Warehouse.Backend,
		Tracer:     a.OTelProviders.Tracer,
		Metrics:    a.Metrics,
		Prometheus: a.OTelProviders.PrometheusHTTP,
		Logger:     a.Logger,
	})
}

func (a *Application) createServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run serves HTTP until ctx is cancelled or the process gets SIGINT or
// SIGTERM, then shuts down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.createServer()

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return a.Close(shutdownCtx)
}

// Close releases the warehouse connection and flushes telemetry
func (a *Application) Close(ctx context.Context) error {
	var errs []error

	if a.loaderCloser != nil {
		if err := a.loaderCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("warehouse close: %w", err))
		}
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}
