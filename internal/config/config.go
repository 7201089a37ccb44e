package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "sheetload/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Ingestion IngestionConfig `yaml:"ingestion" envconfig:"INGESTION"`
	Warehouse WarehouseConfig `yaml:"warehouse" envconfig:"WAREHOUSE"`
	AWS       AWSConfig       `yaml:"aws" envconfig:"AWS"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// IngestionConfig names the buckets, the target table and the load credentials
type IngestionConfig struct {
	SourceBucket    string `yaml:"source_bucket" envconfig:"SOURCE_BUCKET"`
	OutputBucket    string `yaml:"output_bucket" envconfig:"OUTPUT_BUCKET" validate:"required"`
	TargetTable     string `yaml:"target_table" envconfig:"TARGET_TABLE" validate:"required,sqlident"`
	CredentialsRef  string `yaml:"credentials_ref" envconfig:"CREDENTIALS_REF"`
	ReplaceExisting bool   `yaml:"replace_existing" envconfig:"REPLACE_EXISTING"`
	MaxConcurrency  int    `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" validate:"min=1,max=64"`
}

// WarehouseConfig selects and configures the bulk-load backend
type WarehouseConfig struct {
	Backend      string        `yaml:"backend" envconfig:"BACKEND" validate:"oneof=redshift-data postgres noop"`
	ClusterID    string        `yaml:"cluster_id" envconfig:"CLUSTER_ID"`
	Workgroup    string        `yaml:"workgroup" envconfig:"WORKGROUP"`
	Database     string        `yaml:"database" envconfig:"DATABASE"`
	DBUser       string        `yaml:"db_user" envconfig:"DB_USER"`
	SecretARN    string        `yaml:"secret_arn" envconfig:"SECRET_ARN"`
	DSN          string        `yaml:"dsn" envconfig:"DSN"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL" validate:"gt=0"`
	LoadTimeout  time.Duration `yaml:"load_timeout" envconfig:"LOAD_TIMEOUT" validate:"gt=0"`
}

// AWSConfig contains the connection settings shared by the S3 and Redshift Data clients
type AWSConfig struct {
	Region           string `yaml:"region" envconfig:"REGION" validate:"required"`
	Profile          string `yaml:"profile" envconfig:"PROFILE"`
	AccessKey        string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey        string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	SessionToken     string `yaml:"session_token" envconfig:"SESSION_TOKEN"`
	EndpointURL      string `yaml:"endpoint_url" envconfig:"ENDPOINT_URL" validate:"omitempty,url"`
	S3ForcePathStyle bool   `yaml:"s3_force_path_style" envconfig:"S3_FORCE_PATH_STYLE"`
	MaxConnections   int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS" validate:"min=1"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"min=1"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"min=0,max=1"`
}

// Load builds the configuration from defaults, the optional YAML file and
// SHEETLOAD_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("failed to load config from %s", configFile), err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file, or "" when none exists
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	for _, location := range configFileLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

var sqlIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// IsSQLIdent reports whether s is a plain or schema-qualified SQL identifier
func IsSQLIdent(s string) bool {
	return sqlIdentPattern.MatchString(s)
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return IsSQLIdent(fl.Field().String())
	})
	return v
}

// Validate checks field constraints and the backend-specific requirements
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return apperrors.NewConfigError("config validation failed", err)
	}

	switch c.Warehouse.Backend {
	case BackendRedshiftData:
		if (c.Warehouse.ClusterID == "") == (c.Warehouse.Workgroup == "") {
			return apperrors.NewConfigError("redshift-data backend needs exactly one of cluster_id or workgroup", nil)
		}
		if c.Warehouse.Database == "" {
			return apperrors.NewConfigError("redshift-data backend needs a database", nil)
		}
	case BackendPostgres:
		if c.Warehouse.DSN == "" {
			return apperrors.NewConfigError("postgres backend needs a dsn", nil)
		}
	}

	if c.Warehouse.Backend != BackendNoop && c.Ingestion.CredentialsRef == "" {
		return apperrors.NewConfigError("credentials_ref is required to load into the warehouse", nil)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return apperrors.NewConfigError("logging file_path is required for file output", nil)
	}

	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			TargetTable:     DefaultTargetTable,
			ReplaceExisting: true,
			MaxConcurrency:  DefaultMaxConcurrency,
		},
		Warehouse: WarehouseConfig{
			Backend:      BackendRedshiftData,
			Database:     DefaultDatabase,
			PollInterval: DefaultPollInterval,
			LoadTimeout:  DefaultLoadTimeout,
		},
		AWS: AWSConfig{
			Region:         DefaultRegion,
			MaxConnections: DefaultMaxConnections,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "console",
			FilePath: "logs/sheetload.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		},
	}
}
