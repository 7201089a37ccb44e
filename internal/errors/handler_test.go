package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetload/internal/shared/testutil"
)

func TestProblemForType(t *testing.T) {
	tests := []struct {
		errType     ErrorType
		status      int
		problemType string
	}{
		{ErrTypeMalformedKey, http.StatusUnprocessableEntity, TypeMalformedKey},
		{ErrTypeMalformedWorkbook, http.StatusUnprocessableEntity, TypeMalformedWorkbook},
		{ErrTypeEmptyDataset, http.StatusUnprocessableEntity, TypeEmptyDataset},
		{ErrTypeUnparseableDate, http.StatusUnprocessableEntity, TypeUnparseableDate},
		{ErrTypeSourceUnavailable, http.StatusServiceUnavailable, TypeSourceUnavailable},
		{ErrTypeSinkUnavailable, http.StatusServiceUnavailable, TypeSinkUnavailable},
		{ErrTypeLoadFailed, http.StatusBadGateway, TypeLoadFailed},
		{ErrTypeValidation, http.StatusBadRequest, TypeValidation},
		{ErrTypeConfig, http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			status, problemType := ProblemForType(tt.errType)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.problemType, problemType)
		})
	}
}

func TestErrorHandler_ErrorToProblem(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	req := httptest.NewRequest(http.MethodPost, "/v1/events/s3", nil)

	tests := []struct {
		name        string
		err         error
		status      int
		problemType string
		errorCode   interface{}
	}{
		{
			name:        "malformed key",
			err:         NewMalformedKeyError("filename.xlsx"),
			status:      http.StatusUnprocessableEntity,
			problemType: TypeMalformedKey,
			errorCode:   "MALFORMED_KEY",
		},
		{
			name:        "wrapped sink error",
			err:         fmt.Errorf("put: %w", NewSinkUnavailableError("bucket down", nil)),
			status:      http.StatusServiceUnavailable,
			problemType: TypeSinkUnavailable,
			errorCode:   "SINK_UNAVAILABLE",
		},
		{
			name:        "api error",
			err:         ErrPayloadTooLarge,
			status:      http.StatusRequestEntityTooLarge,
			problemType: TypePayloadTooLarge,
			errorCode:   "PAYLOAD_TOO_LARGE",
		},
		{
			name:        "deadline exceeded",
			err:         fmt.Errorf("load: %w", context.DeadlineExceeded),
			status:      http.StatusGatewayTimeout,
			problemType: TypeTimeout,
		},
		{
			name:        "unknown error",
			err:         fmt.Errorf("boom"),
			status:      http.StatusInternalServerError,
			problemType: TypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, req)

			assert.Equal(t, tt.status, problem.Status)
			assert.Equal(t, tt.problemType, problem.Type)
			assert.Equal(t, "/v1/events/s3", problem.Instance)
			assert.Equal(t, tt.errorCode, problem.Extensions["error_code"])
		})
	}
}

func TestErrorHandler_ErrorToProblemRetryableExtension(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	req := httptest.NewRequest(http.MethodPost, "/v1/events/s3", nil)

	problem := h.ErrorToProblem(NewSourceUnavailableError("in", "a/b.xlsx", nil), req)
	assert.Equal(t, true, problem.Extensions["retryable"])
	assert.Equal(t, map[string]interface{}{"bucket": "in", "key": "a/b.xlsx"}, problem.Extensions["context"])

	problem = h.ErrorToProblem(NewLoadFailedError("rejected", nil), req)
	assert.Equal(t, false, problem.Extensions["retryable"])
	assert.NotContains(t, problem.Extensions, "context")
}

func TestErrorHandler_HandleError(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/events/s3", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, NewEmptyDatasetError("workbook has no data rows", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, TypeEmptyDataset, body["type"])
	assert.Equal(t, "EMPTY_DATASET", body["error_code"])
	assert.Contains(t, body, "trace_id")
	assert.NotContains(t, body, "stack")

	testutil.AssertLogContains(t, handler, slog.LevelError, "request failed")
}

func TestErrorHandler_HandleErrorNil(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, rec.Body.Len())
	assert.Equal(t, 0, handler.Count())
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("boom"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)
	rec := httptest.NewRecorder()

	h.HandlePanic(rec, httptest.NewRequest(http.MethodPost, "/v1/events/s3", nil), "nil map write")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "nil map write")
	assert.True(t, handler.ContainsMessage("panic recovered"))
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), TypeNotFound)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodDelete, "/v1/events/s3", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Contains(t, rec.Body.String(), "DELETE")
}
