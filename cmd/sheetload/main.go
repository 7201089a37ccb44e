// Command sheetload converts one workbook to its dated CSV locally, and
// optionally loads it into the warehouse.
//
//	sheetload -in "Feb 2020.xlsx" -label conversion -out ./out
//	sheetload -in "Feb 2020.xlsx" -label conversion -load
//
// Without -load the CSV is written under -out as label/YYYY-MM-DD.csv and
// the warehouse statements are only logged. With -load the CSV goes to the
// configured output bucket and the configured backend loads it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"sheetload/internal/app"
	"sheetload/internal/config"
	"sheetload/internal/infrastructure"
	"sheetload/internal/storage"
	"sheetload/pkg/contracts"
	"sheetload/pkg/contracts/domain"
)

// localBucket names the in-memory bucket the workbook is staged in
const localBucket = "local"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sheetload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "workbook to convert (.xlsx)")
	label := fs.String("label", "", "dataset label, the first segment of the output key")
	out := fs.String("out", "", "output directory (required without -load)")
	load := fs.Bool("load", false, "write to the output bucket and load into the warehouse")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return exitOK
	}

	if *in == "" || *label == "" || (*out == "" && !*load) {
		fmt.Fprintln(stderr, "sheetload: -in and -label are required, and -out unless -load is set")
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(*load)
	if err != nil {
		fmt.Fprintf(stderr, "sheetload: %v\n", err)
		return exitError
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	data, err := os.ReadFile(*in)
	if err != nil {
		logger.Error("Cannot read workbook", slog.String("path", *in), slog.String("error", err.Error()))
		return exitError
	}

	source := storage.NewMemoryStore()
	key := *label + "/" + filepath.Base(*in)
	source.Seed(localBucket, key, data)

	ov := app.Overrides{Source: source}
	if !*load {
		ov.Sink = storage.NewFileStore(*out, logger)
	}

	application, err := app.New(ctx, cfg, logger, ov)
	if err != nil {
		logger.Error("Failed to initialize application", slog.String("error", err.Error()))
		return exitError
	}
	defer application.Close(ctx)

	logger.Info("Converting workbook",
		slog.String("input", *in),
		slog.String("label", *label),
		slog.Bool("load", *load))

	res, err := application.Ingestor.Ingest(ctx, domain.ObjectRef{Bucket: localBucket, Key: key})
	if err != nil {
		logger.Error("Conversion failed", slog.String("error", err.Error()))
		return exitError
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("Failed to write result", slog.String("error", err.Error()))
		return exitError
	}
	return exitOK
}

// loadConfig reads the usual configuration. A local conversion only needs
// defaults, so a configuration that fails to load is tolerated unless the
// warehouse is involved.
func loadConfig(load bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		if load {
			return nil, err
		}
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	cfg.Ingestion.SourceBucket = localBucket
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	if !load {
		cfg.Ingestion.OutputBucket = localBucket
		cfg.Warehouse.Backend = config.BackendNoop
	}
	return cfg, nil
}
