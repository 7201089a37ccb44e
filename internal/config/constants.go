package config

import (
	"time"

	"sheetload/pkg/contracts"
)

// Application constants
const (
	AppName    = "sheetload"
	AppVersion = contracts.Version

	// EnvPrefix prefixes every environment variable, e.g. SHEETLOAD_INGESTION_OUTPUT_BUCKET
	EnvPrefix = "SHEETLOAD"

	// Warehouse backends
	BackendRedshiftData = "redshift-data"
	BackendPostgres     = "postgres"
	BackendNoop         = "noop"

	DefaultTargetTable    = "public.test_table"
	DefaultDatabase       = "dev"
	DefaultRegion         = "eu-west-1"
	DefaultMaxConcurrency = 4
	DefaultMaxConnections = 64
	DefaultPollInterval   = time.Second
	DefaultLoadTimeout    = 10 * time.Minute

	// Rate Limiting
	DefaultRateLimit = 50 // requests per second
	DefaultBurstSize = 20

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

var configFileLocations = []string{
	"sheetload.yaml",
	"configs/sheetload.yaml",
}
