package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "sheetload/internal/errors"
	"sheetload/internal/ingestion"
	"sheetload/internal/middleware"
	"sheetload/pkg/contracts/domain"
)

// Dispatcher runs a batch of ingestions
type Dispatcher interface {
	Dispatch(ctx context.Context, refs []domain.ObjectRef) ingestion.Outcomes
}

// RecordError describes why one record failed
type RecordError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// RecordResult reports one event record
type RecordResult struct {
	Source string            `json:"source"`
	Status string            `json:"status"`
	Result *ingestion.Result `json:"result,omitempty"`
	Error  *RecordError      `json:"error,omitempty"`
}

// EventsResponse is the body of a successful POST /v1/events/s3
type EventsResponse struct {
	Records  []RecordResult `json:"records"`
	Ingested int            `json:"ingested"`
	Failed   int            `json:"failed"`
	Skipped  int            `json:"skipped"`
}

// Render implements the render.Renderer interface
func (e *EventsResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, http.StatusOK)
	return nil
}

// EventsHandler accepts storage event notifications over HTTP
type EventsHandler struct {
	dispatcher Dispatcher
	errors     *apperrors.ErrorHandler
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(dispatcher Dispatcher, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *EventsHandler {
	if dispatcher == nil {
		panic("dispatcher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}
	return &EventsHandler{
		dispatcher: dispatcher,
		errors:     errorHandler,
		logger:     logger.With(slog.String("handler", "events")),
	}
}

// Routes sets up the events routes
func (h *EventsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/s3", h.HandleS3Event)
	return r
}

// HandleS3Event handles POST /v1/events/s3.
//
// Every ObjectCreated record is ingested. The response is 200 with one entry
// per record unless some record failed with a retryable error, in which case
// it is a 503 problem carrying the same entries so the sender retries.
func (h *EventsHandler) HandleS3Event(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var event events.S3Event
	if err := render.DecodeJSON(r.Body, &event); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errors.HandleError(w, r, apperrors.ErrPayloadTooLarge)
			return
		}
		h.errors.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}

	refs, invalid := ingestion.RefsFromS3Event(event)
	outcomes := append(invalid, h.dispatcher.Dispatch(ctx, refs)...)

	resp := &EventsResponse{
		Records: make([]RecordResult, 0, len(outcomes)),
		Skipped: len(event.Records) - len(outcomes),
	}
	for _, out := range outcomes {
		resp.Records = append(resp.Records, recordResult(out))
		if out.Err != nil {
			resp.Failed++
		} else {
			resp.Ingested++
		}
	}

	h.logger.InfoContext(ctx, "S3 event handled",
		slog.Int("records", len(event.Records)),
		slog.Int("ingested", resp.Ingested),
		slog.Int("failed", resp.Failed),
		slog.Int("skipped", resp.Skipped),
	)

	if outcomes.Retryable() {
		h.renderRetryable(w, r, outcomes, resp)
		return
	}

	render.Render(w, r, resp)
}

func (h *EventsHandler) renderRetryable(w http.ResponseWriter, r *http.Request, outcomes ingestion.Outcomes, resp *EventsResponse) {
	var first error
	for _, out := range outcomes.Failed() {
		if apperrors.IsRetryable(out.Err) {
			first = out.Err
			break
		}
	}

	err := apperrors.NewAppError(apperrors.TypeOf(first),
		fmt.Sprintf("%d of %d records failed", resp.Failed, len(outcomes)), first)

	h.logger.ErrorContext(r.Context(), "S3 event needs retry",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	problem := h.errors.ErrorToProblem(err, r).
		WithExtension("records", resp.Records).
		WithExtension("trace_id", middleware.GetReqID(r.Context()))
	render.Render(w, r, problem)
}

func recordResult(out ingestion.Outcome) RecordResult {
	rr := RecordResult{Source: out.Ref.String(), Status: "ingested", Result: out.Result}
	if out.Err != nil {
		rr.Status = "failed"
		rr.Result = nil
		rr.Error = &RecordError{
			Type:      string(apperrors.TypeOf(out.Err)),
			Message:   out.Err.Error(),
			Retryable: apperrors.IsRetryable(out.Err),
		}
	}
	return rr
}
