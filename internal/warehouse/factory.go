package warehouse

import (
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"

	"sheetload/internal/config"
	apperrors "sheetload/internal/errors"
	"sheetload/internal/infrastructure"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the loader selected by cfg.Backend, wrapped with telemetry. The
// returned closer releases backend resources.
func New(cfg config.WarehouseConfig, awsCfg aws.Config, metrics *infrastructure.Metrics, logger *slog.Logger) (Loader, io.Closer, error) {
	switch cfg.Backend {
	case config.BackendRedshiftData:
		return WithTelemetry(NewRedshiftDataLoader(awsCfg, cfg, logger), cfg.Backend, metrics), nopCloser{}, nil
	case config.BackendPostgres:
		l, err := NewSQLLoader(cfg.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return WithTelemetry(l, cfg.Backend, metrics), l, nil
	case config.BackendNoop:
		return WithTelemetry(NewNoopLoader(logger), cfg.Backend, metrics), nopCloser{}, nil
	default:
		return nil, nil, apperrors.NewConfigError("unknown warehouse backend "+cfg.Backend, nil)
	}
}
