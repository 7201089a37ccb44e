package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	apperrors "sheetload/internal/errors"
	"sheetload/pkg/contracts/domain"
)

// SQLLoader runs loads over a direct connection to the warehouse, which
// speaks the PostgreSQL wire protocol. Statements run in one transaction.
type SQLLoader struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLLoader opens a connection pool for dsn using the pgx driver
func NewSQLLoader(dsn string, logger *slog.Logger) (*SQLLoader, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid warehouse dsn", err)
	}
	db.SetMaxOpenConns(4)
	return newSQLLoader(db, logger), nil
}

func newSQLLoader(db *sql.DB, logger *slog.Logger) *SQLLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLLoader{db: db, logger: logger.With(slog.String("component", "sql_loader"))}
}

// Load runs the statements and commits, or rolls back on the first failure
func (l *SQLLoader) Load(ctx context.Context, cmd domain.LoadCommand) error {
	stmts, err := BuildStatements(cmd)
	if err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewSinkUnavailableError("cannot begin warehouse transaction", err)
	}

	for i, stmt := range stmts {
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				l.logger.WarnContext(ctx, "Rollback failed", slog.String("error", rbErr.Error()))
			}
			return classifySQLError(fmt.Sprintf("statement %d", i+1), err)
		}
		if n, err := res.RowsAffected(); err == nil {
			l.logger.DebugContext(ctx, "Executed warehouse statement",
				slog.Int("statement", i+1),
				slog.Int64("rows_affected", n))
		}
	}

	if err := tx.Commit(); err != nil {
		return classifySQLError("commit", err)
	}

	l.logger.InfoContext(ctx, "Warehouse load committed",
		slog.String("table", cmd.Table),
		slog.String("object", cmd.Object.String()))
	return nil
}

// Close releases the connection pool
func (l *SQLLoader) Close() error {
	return l.db.Close()
}

// classifySQLError treats errors the server reported as rejections and
// everything else as the warehouse being unreachable
func classifySQLError(op string, err error) *apperrors.AppError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return apperrors.NewLoadFailedError(op+": "+pgErr.Message, err).
			WithContext("sqlstate", pgErr.Code)
	}
	return apperrors.NewSinkUnavailableError(op+" failed", err)
}
