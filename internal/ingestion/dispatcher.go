package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	apperrors "sheetload/internal/errors"
	"sheetload/pkg/contracts/domain"
)

// Runner ingests one object
type Runner interface {
	Ingest(ctx context.Context, ref domain.ObjectRef) (*Result, error)
}

// Outcome is the result of one ref in a batch
type Outcome struct {
	Ref    domain.ObjectRef `json:"ref"`
	Result *Result          `json:"result,omitempty"`
	Err    error            `json:"-"`
}

// Outcomes is a batch result in input order
type Outcomes []Outcome

// Failed returns the outcomes that ended in an error
func (o Outcomes) Failed() Outcomes {
	var failed Outcomes
	for _, out := range o {
		if out.Err != nil {
			failed = append(failed, out)
		}
	}
	return failed
}

// Err joins the failures, or returns nil if every ref succeeded
func (o Outcomes) Err() error {
	var errs []error
	for _, out := range o.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", out.Ref, out.Err))
	}
	return errors.Join(errs...)
}

// Retryable reports whether any failure is worth retrying
func (o Outcomes) Retryable() bool {
	for _, out := range o.Failed() {
		if apperrors.IsRetryable(out.Err) {
			return true
		}
	}
	return false
}

// Dispatcher runs a batch of independent ingestions with bounded
// parallelism. One failing ref never cancels or affects the others.
type Dispatcher struct {
	runner Runner
	limit  int
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher running at most limit ingestions at once
func NewDispatcher(runner Runner, limit int, logger *slog.Logger) *Dispatcher {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: runner, limit: limit, logger: logger.With(slog.String("component", "dispatcher"))}
}

// Dispatch ingests every ref and waits for all of them
func (d *Dispatcher) Dispatch(ctx context.Context, refs []domain.ObjectRef) Outcomes {
	outcomes := make(Outcomes, len(refs))

	var g errgroup.Group
	g.SetLimit(d.limit)

	for idx, ref := range refs {
		g.Go(func() error {
			res, err := d.runner.Ingest(ctx, ref)
			outcomes[idx] = Outcome{Ref: ref, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := len(outcomes.Failed())
	d.logger.InfoContext(ctx, "Batch dispatched",
		slog.Int("total", len(refs)),
		slog.Int("succeeded", len(refs)-failed),
		slog.Int("failed", failed))

	return outcomes
}
