package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sheetload/internal/config"
	apperrors "sheetload/internal/errors"
	"sheetload/internal/infrastructure"
	"sheetload/internal/shared/testutil"
	"sheetload/internal/storage"
	"sheetload/pkg/contracts/domain"
)

type recordingLoader struct {
	mu   sync.Mutex
	cmds []domain.LoadCommand
	err  error
}

func (l *recordingLoader) Load(_ context.Context, cmd domain.LoadCommand) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cmds = append(l.cmds, cmd)
	return l.err
}

func (l *recordingLoader) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cmds)
}

type harness struct {
	ingestor *Ingestor
	source   *storage.MemoryStore
	sink     *storage.MemoryStore
	loader   *recordingLoader
	logs     *testutil.BufferedSlogHandler
}

func ingestionConfig() config.IngestionConfig {
	return config.IngestionConfig{
		SourceBucket:    "uploads",
		OutputBucket:    "output",
		TargetTable:     "public.test_table",
		CredentialsRef:  "arn:aws:iam::123456789012:role/loader",
		ReplaceExisting: true,
		MaxConcurrency:  2,
	}
}

func newHarness(t *testing.T, cfg config.IngestionConfig, metrics *infrastructure.Metrics) *harness {
	t.Helper()
	h := &harness{
		source: storage.NewMemoryStore(),
		sink:   storage.NewMemoryStore(),
		loader: &recordingLoader{},
	}
	logger, logs := testutil.NewTestLogger(t)
	h.logs = logs
	h.ingestor = NewIngestor(cfg, Deps{
		Source:  h.source,
		Sink:    h.sink,
		Loader:  h.loader,
		Metrics: metrics,
		Logger:  logger,
	})
	return h
}

var feb1 = domain.Date{Year: 2020, Month: time.February, Day: 1}

func TestIngest_ConversionRates(t *testing.T) {
	h := newHarness(t, ingestionConfig(), nil)
	h.source.Seed("uploads", "conversion/feb.xlsx", testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...))

	res, err := h.ingestor.Ingest(context.Background(), domain.ObjectRef{Bucket: "uploads", Key: "conversion/feb.xlsx"})
	require.NoError(t, err)

	body, ok := h.sink.Object("output", "conversion/2020-02-01.csv")
	require.True(t, ok)
	assert.Equal(t, testutil.ConversionRateCSV, string(body))
	assert.Equal(t, 1, h.sink.Puts())
	assert.Equal(t, []string{"output/conversion/2020-02-01.csv"}, h.sink.Keys())

	require.Equal(t, 1, h.loader.calls())
	assert.Equal(t, domain.LoadCommand{
		Table:           "public.test_table",
		Columns:         domain.Columns,
		Object:          domain.ObjectRef{Bucket: "output", Key: "conversion/2020-02-01.csv"},
		CredentialsRef:  "arn:aws:iam::123456789012:role/loader",
		Date:            feb1,
		Locations:       []string{"UK", "ES", "DE", "FR"},
		ReplaceExisting: true,
	}, h.loader.cmds[0])

	assert.Equal(t, "conversion", res.Label)
	assert.Equal(t, feb1, res.AnchorDate)
	assert.Equal(t, domain.ObjectRef{Bucket: "output", Key: "conversion/2020-02-01.csv"}, res.Output)
	assert.Equal(t, 5, res.RowsExtracted)
	assert.Equal(t, 1, res.RowsDropped)
	assert.Equal(t, 4, res.RowsWritten)
	assert.Equal(t, 0, res.RowsRejected)
	assert.Equal(t, len(testutil.ConversionRateCSV), res.BytesWritten)
	assert.Equal(t, map[domain.ValueKind]int{domain.ValueNumeric: 2, domain.ValueMissing: 2}, res.Values)
}

func TestIngest_Deterministic(t *testing.T) {
	h := newHarness(t, ingestionConfig(), nil)
	h.source.Seed("uploads", "conversion/feb.xlsx", testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...))
	ref := domain.ObjectRef{Bucket: "uploads", Key: "conversion/feb.xlsx"}

	first, err := h.ingestor.Ingest(context.Background(), ref)
	require.NoError(t, err)
	firstBody, _ := h.sink.Object("output", first.Output.Key)

	second, err := h.ingestor.Ingest(context.Background(), ref)
	require.NoError(t, err)
	secondBody, _ := h.sink.Object("output", second.Output.Key)

	assert.Equal(t, first.Output, second.Output)
	assert.Equal(t, firstBody, secondBody)
	assert.Len(t, h.sink.Keys(), 1)
}

func TestIngest_LabelsAreIsolated(t *testing.T) {
	h := newHarness(t, ingestionConfig(), nil)
	h.source.Seed("uploads", "uk/feb.xlsx", testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...))
	h.source.Seed("uploads", "es/feb.xlsx", testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...))

	d := NewDispatcher(h.ingestor, 2, nil)
	outcomes := d.Dispatch(context.Background(), []domain.ObjectRef{
		{Bucket: "uploads", Key: "uk/feb.xlsx"},
		{Bucket: "uploads", Key: "es/feb.xlsx"},
	})

	require.NoError(t, outcomes.Err())
	assert.Equal(t, []string{"output/es/2020-02-01.csv", "output/uk/2020-02-01.csv"}, h.sink.Keys())
	assert.Equal(t, 2, h.loader.calls())
}

func TestIngest_Failures(t *testing.T) {
	day := testutil.Day(2020, time.February, 1)

	tests := []struct {
		name      string
		ref       domain.ObjectRef
		seed      []byte
		setup     func(h *harness)
		sentinel  error
		fetches   int
		puts      int
		loads     int
		keepsCSV  bool
		retryable bool
	}{
		{
			name:     "key without label",
			ref:      domain.ObjectRef{Bucket: "uploads", Key: "filename.xlsx"},
			sentinel: apperrors.ErrMalformedKey,
		},
		{
			name:     "header only workbook",
			ref:      domain.ObjectRef{Bucket: "uploads", Key: "l/empty.xlsx"},
			seed:     testutil.BuildDataWorkbook(t),
			sentinel: apperrors.ErrEmptyDataset,
			fetches:  1,
		},
		{
			name: "first row date unusable",
			ref:  domain.ObjectRef{Bucket: "uploads", Key: "l/bad.xlsx"},
			seed: testutil.BuildDataWorkbook(t,
				[]interface{}{"UK", "m", 1, "not a date"},
				[]interface{}{"ES", "m", 2, day}),
			sentinel: apperrors.ErrEmptyDataset,
			fetches:  1,
		},
		{
			name:     "not a workbook",
			ref:      domain.ObjectRef{Bucket: "uploads", Key: "l/notes.xlsx"},
			seed:     []byte("plain text"),
			sentinel: apperrors.ErrMalformedWorkbook,
			fetches:  1,
		},
		{
			name:      "source missing",
			ref:       domain.ObjectRef{Bucket: "uploads", Key: "l/absent.xlsx"},
			sentinel:  apperrors.ErrSourceUnavailable,
			fetches:   1,
			retryable: true,
		},
		{
			name:      "sink down",
			ref:       domain.ObjectRef{Bucket: "uploads", Key: "l/feb.xlsx"},
			seed:      testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...),
			setup:     func(h *harness) { h.sink.PutErr = errors.New("503 Slow Down") },
			sentinel:  apperrors.ErrSinkUnavailable,
			fetches:   1,
			puts:      1,
			retryable: true,
		},
		{
			name: "load rejected",
			ref:  domain.ObjectRef{Bucket: "uploads", Key: "l/feb.xlsx"},
			seed: testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...),
			setup: func(h *harness) {
				h.loader.err = apperrors.NewLoadFailedError("COPY failed", nil)
			},
			sentinel: apperrors.ErrLoadFailed,
			fetches:  1,
			puts:     1,
			loads:    1,
			keepsCSV: true,
		},
		{
			name:     "foreign bucket",
			ref:      domain.ObjectRef{Bucket: "elsewhere", Key: "l/feb.xlsx"},
			sentinel: &apperrors.AppError{Type: apperrors.ErrTypeValidation},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, ingestionConfig(), nil)
			if tt.seed != nil {
				h.source.Seed("uploads", tt.ref.Key, tt.seed)
			}
			if tt.setup != nil {
				tt.setup(h)
			}

			res, err := h.ingestor.Ingest(context.Background(), tt.ref)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))

			assert.Equal(t, tt.fetches, h.source.Fetches(), "fetches")
			assert.Equal(t, tt.puts, h.sink.Puts(), "puts")
			assert.Equal(t, tt.loads, h.loader.calls(), "loads")

			_, written := h.sink.Object("output", "l/2020-02-01.csv")
			assert.Equal(t, tt.keepsCSV, written)
		})
	}
}

func TestIngest_SourceBucketResolution(t *testing.T) {
	seed := testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...)

	t.Run("empty event bucket uses configured bucket", func(t *testing.T) {
		h := newHarness(t, ingestionConfig(), nil)
		h.source.Seed("uploads", "l/feb.xlsx", seed)

		res, err := h.ingestor.Ingest(context.Background(), domain.ObjectRef{Key: "l/feb.xlsx"})
		require.NoError(t, err)
		assert.Equal(t, "uploads", res.Source.Bucket)
	})

	t.Run("no configured bucket accepts any", func(t *testing.T) {
		cfg := ingestionConfig()
		cfg.SourceBucket = ""
		h := newHarness(t, cfg, nil)
		h.source.Seed("other", "l/feb.xlsx", seed)

		_, err := h.ingestor.Ingest(context.Background(), domain.ObjectRef{Bucket: "other", Key: "l/feb.xlsx"})
		require.NoError(t, err)
	})

	t.Run("no bucket anywhere", func(t *testing.T) {
		cfg := ingestionConfig()
		cfg.SourceBucket = ""
		h := newHarness(t, cfg, nil)

		_, err := h.ingestor.Ingest(context.Background(), domain.ObjectRef{Key: "l/feb.xlsx"})
		assert.Equal(t, apperrors.ErrTypeValidation, apperrors.TypeOf(err))
		assert.Equal(t, 0, h.source.Fetches())
	})
}

func TestIngest_RejectedRowsCounted(t *testing.T) {
	day := testutil.Day(2020, time.February, 1)
	h := newHarness(t, ingestionConfig(), nil)
	h.source.Seed("uploads", "l/feb.xlsx", testutil.BuildDataWorkbook(t,
		[]interface{}{"UK", "m", 1, day},
		[]interface{}{"ES", "m", 2, "someday"},
		[]interface{}{"DE", "m", "n/a", day},
	))

	res, err := h.ingestor.Ingest(context.Background(), domain.ObjectRef{Bucket: "uploads", Key: "l/feb.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowsRejected)
	assert.Equal(t, 2, res.RowsWritten)
	assert.Equal(t, map[domain.ValueKind]int{domain.ValueNumeric: 1, domain.ValueInvalid: 1}, res.Values)

	body, _ := h.sink.Object("output", "l/2020-02-01.csv")
	assert.Equal(t, "location,metric,value,date\nUK,m,1,2020-02-01\nDE,m,n/a,2020-02-01\n", string(body))
	warnings := h.logs.GetRecordsByLevel(slog.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Equal(t, "Skipping malformed row", warnings[0].Message)
	assert.Equal(t, int64(3), warnings[0].Attrs["row"])
	assert.Equal(t, "l/feb.xlsx", warnings[0].Attrs["key"])
	assert.Equal(t, "ingestor", warnings[0].Attrs["component"])
}

func TestIngest_Telemetry(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	reader := sdkmetric.NewManualReader()
	metrics, err := infrastructure.CreateMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	require.NoError(t, err)

	h := newHarness(t, ingestionConfig(), metrics)
	h.source.Seed("uploads", "l/feb.xlsx", testutil.BuildDataWorkbook(t, testutil.ConversionRateRows()...))

	_, err = h.ingestor.Ingest(context.Background(), domain.ObjectRef{Bucket: "uploads", Key: "l/feb.xlsx"})
	require.NoError(t, err)
	_, err = h.ingestor.Ingest(context.Background(), domain.ObjectRef{Bucket: "uploads", Key: "nolabel.xlsx"})
	require.Error(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"fetch", "extract", "filter", "serialize", "put", "ingest", "ingest"}, names)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	runs := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "ingestion_runs_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				runs[outcome.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"success": 1, "failure": 1}, runs)
}
