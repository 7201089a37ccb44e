// Command lambda is the function entry point: each invocation receives an
// S3 event notification and ingests every created object in it.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"sheetload/internal/app"
	"sheetload/internal/config"
	"sheetload/internal/infrastructure"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	application, err := app.New(ctx, cfg, logger, app.Overrides{})
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	lambda.StartWithOptions(application.HandleS3Event, lambda.WithEnableSIGTERM(func() {
		if err := application.Close(context.Background()); err != nil {
			logger.Error("Shutdown failed", slog.String("error", err.Error()))
		}
	}))
}
