package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/redshiftdata"
	"github.com/aws/aws-sdk-go-v2/service/redshiftdata/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"sheetload/internal/config"
	apperrors "sheetload/internal/errors"
	"sheetload/pkg/contracts/domain"
)

type dataAPI interface {
	BatchExecuteStatement(ctx context.Context, params *redshiftdata.BatchExecuteStatementInput, optFns ...func(*redshiftdata.Options)) (*redshiftdata.BatchExecuteStatementOutput, error)
	DescribeStatement(ctx context.Context, params *redshiftdata.DescribeStatementInput, optFns ...func(*redshiftdata.Options)) (*redshiftdata.DescribeStatementOutput, error)
}

// RedshiftDataLoader runs loads through the Redshift Data API. The DELETE
// and COPY are submitted as one batch, which Redshift runs in a single
// transaction, and the call blocks until the batch finishes.
type RedshiftDataLoader struct {
	client dataAPI
	cfg    config.WarehouseConfig
	logger *slog.Logger
}

// NewRedshiftDataLoader creates a loader from an SDK configuration
func NewRedshiftDataLoader(awsCfg aws.Config, cfg config.WarehouseConfig, logger *slog.Logger) *RedshiftDataLoader {
	return newRedshiftDataLoader(redshiftdata.NewFromConfig(awsCfg), cfg, logger)
}

func newRedshiftDataLoader(client dataAPI, cfg config.WarehouseConfig, logger *slog.Logger) *RedshiftDataLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedshiftDataLoader{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redshift_data_loader")),
	}
}

// Load submits the batch and waits for it
func (l *RedshiftDataLoader) Load(ctx context.Context, cmd domain.LoadCommand) error {
	stmts, err := BuildStatements(cmd)
	if err != nil {
		return err
	}

	input := &redshiftdata.BatchExecuteStatementInput{
		Sqls:          stmts,
		Database:      aws.String(l.cfg.Database),
		StatementName: aws.String("sheetload-" + uuid.NewString()),
	}
	if l.cfg.ClusterID != "" {
		input.ClusterIdentifier = aws.String(l.cfg.ClusterID)
	}
	if l.cfg.Workgroup != "" {
		input.WorkgroupName = aws.String(l.cfg.Workgroup)
	}
	if l.cfg.DBUser != "" {
		input.DbUser = aws.String(l.cfg.DBUser)
	}
	if l.cfg.SecretARN != "" {
		input.SecretArn = aws.String(l.cfg.SecretARN)
	}

	out, err := l.client.BatchExecuteStatement(ctx, input)
	if err != nil {
		return classifyAPIError("submit load", err)
	}
	id := aws.ToString(out.Id)

	l.logger.InfoContext(ctx, "Submitted warehouse load",
		slog.String("statement_id", id),
		slog.String("table", cmd.Table),
		slog.String("object", cmd.Object.String()),
		slog.Int("statements", len(stmts)))

	return l.wait(ctx, id)
}

func (l *RedshiftDataLoader) wait(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.LoadTimeout)
	defer cancel()

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		desc, err := l.client.DescribeStatement(ctx, &redshiftdata.DescribeStatementInput{Id: aws.String(id)})
		if err != nil {
			if ctx.Err() != nil {
				return l.timedOut(id, ctx.Err())
			}
			return classifyAPIError("describe load", err).WithContext("statement_id", id)
		}

		switch desc.Status {
		case types.StatusStringFinished:
			l.logger.InfoContext(ctx, "Warehouse load finished", slog.String("statement_id", id))
			return nil
		case types.StatusStringFailed, types.StatusStringAborted:
			reason := aws.ToString(desc.Error)
			if reason == "" {
				reason = string(desc.Status)
			}
			return apperrors.NewLoadFailedError(fmt.Sprintf("warehouse rejected load: %s", reason), nil).
				WithContext("statement_id", id).
				WithContext("status", string(desc.Status))
		}

		select {
		case <-ctx.Done():
			return l.timedOut(id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// timedOut reports a load whose outcome is unknown. It is not retryable: the
// statement may still complete.
func (l *RedshiftDataLoader) timedOut(id string, cause error) *apperrors.AppError {
	return apperrors.NewLoadFailedError("gave up waiting for warehouse load", cause).
		WithContext("statement_id", id)
}

// classifyAPIError separates requests the service rejected from transport
// failures
func classifyAPIError(op string, err error) *apperrors.AppError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		var throttled *types.ActiveStatementsExceededException
		if !errors.As(err, &throttled) {
			return apperrors.NewLoadFailedError(op+" rejected", err).WithContext("error_code", apiErr.ErrorCode())
		}
	}
	return apperrors.NewSinkUnavailableError(op+" failed", err)
}
