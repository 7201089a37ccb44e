package errors

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetload/internal/shared/testutil"
)

func TestErrorMiddleware_Handler(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		body      string
		status    int
		level     slog.Level
		loggedKey string
	}{
		{
			name: "success is logged at info",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
			status: http.StatusAccepted,
			level:  slog.LevelInfo,
		},
		{
			name: "client error is logged at warn with sanitized body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
			body:      `{"secret_arn":"arn:aws:secretsmanager:x","bucket":"in"}`,
			status:    http.StatusUnprocessableEntity,
			level:     slog.LevelWarn,
			loggedKey: "request_body",
		},
		{
			name: "server error is logged at error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			status: http.StatusServiceUnavailable,
			level:  slog.LevelError,
		},
		{
			name: "panic becomes problem response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("boom")
			},
			status: http.StatusInternalServerError,
			level:  slog.LevelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			m := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

			req := httptest.NewRequest(http.MethodPost, "/v1/events/s3", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			m.Handler(tt.handler).ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			testutil.AssertLogContains(t, logs, tt.level, "http request")
			testutil.AssertLogAttr(t, logs, "status", int64(tt.status))

			if tt.loggedKey != "" {
				var logged string
				for _, r := range logs.GetRecords() {
					if v, ok := r.Attrs[tt.loggedKey].(string); ok {
						logged = v
					}
				}
				require.NotEmpty(t, logged)
				assert.Contains(t, logged, "[REDACTED]")
				assert.NotContains(t, logged, "secretsmanager")
			}
		})
	}
}

func TestErrorMiddleware_PreservesRequestBody(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewErrorMiddleware(NewErrorHandler(logger, false), logger)

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, err := buf.ReadFrom(r.Body)
		require.NoError(t, err)
		seen = buf.String()
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/events/s3", strings.NewReader(`{"Records":[]}`))
	m.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, `{"Records":[]}`, seen)
}

func TestSanitizeRequestBody(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		redacted []string
		kept     []string
	}{
		{
			name:     "warehouse credentials",
			input:    `{"credentials_ref":"arn:aws:iam::1:role/copy","secret_arn":"arn:s","table":"t"}`,
			redacted: []string{"credentials_ref", "secret_arn"},
			kept:     []string{`"table":"t"`},
		},
		{
			name:     "aws keys",
			input:    `{"access_key":"AKIA","secret_key":"s3cr3t","session_token":"tok","region":"eu-west-1"}`,
			redacted: []string{"access_key", "secret_key", "session_token"},
			kept:     []string{`"region":"eu-west-1"`},
		},
		{
			name:     "dsn",
			input:    `{"dsn":"postgres://u:p@h/db"}`,
			redacted: []string{"dsn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := sanitizeRequestBody(tt.input)
			for _, field := range tt.redacted {
				assert.Contains(t, out, `"`+field+`":"[REDACTED]"`)
			}
			for _, s := range tt.kept {
				assert.Contains(t, out, s)
			}
		})
	}

	assert.Equal(t, "not json", sanitizeRequestBody("not json"))
}
