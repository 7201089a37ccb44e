package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sheetload/internal/errors"
)

// recorder is a database/sql driver that records statements instead of
// talking to a server
type recorder struct {
	mu         sync.Mutex
	statements []string
	commits    int
	rollbacks  int

	beginErr error
	execErr  error
	failOn   string
}

func (r *recorder) Connect(context.Context) (driver.Conn, error) { return &recConn{r: r}, nil }
func (r *recorder) Driver() driver.Driver                        { return r }
func (r *recorder) Open(string) (driver.Conn, error)             { return &recConn{r: r}, nil }

type recConn struct{ r *recorder }

func (c *recConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("prepare not supported") }
func (c *recConn) Close() error                        { return nil }

func (c *recConn) Begin() (driver.Tx, error) {
	if c.r.beginErr != nil {
		return nil, c.r.beginErr
	}
	return &recTx{r: c.r}, nil
}

func (c *recConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if c.r.failOn != "" && strings.HasPrefix(query, c.r.failOn) {
		return nil, c.r.execErr
	}
	c.r.statements = append(c.r.statements, query)
	return driver.RowsAffected(4), nil
}

type recTx struct{ r *recorder }

func (t *recTx) Commit() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.commits++
	return nil
}

func (t *recTx) Rollback() error {
	t.r.mu.Lock()
	defer t.r.mu.Unlock()
	t.r.rollbacks++
	return nil
}

func TestSQLLoader_Load(t *testing.T) {
	rec := &recorder{}
	loader := newSQLLoader(sql.OpenDB(rec), nil)
	defer loader.Close()

	require.NoError(t, loader.Load(context.Background(), loadCommand()))

	require.Len(t, rec.statements, 2)
	assert.True(t, strings.HasPrefix(rec.statements[0], "DELETE FROM public.test_table"))
	assert.Equal(t, expectedCopy, rec.statements[1])
	assert.Equal(t, 1, rec.commits)
	assert.Equal(t, 0, rec.rollbacks)
}

func TestSQLLoader_Failures(t *testing.T) {
	tests := []struct {
		name      string
		rec       *recorder
		errType   apperrors.ErrorType
		rollbacks int
		sqlstate  string
	}{
		{
			name:    "cannot begin",
			rec:     &recorder{beginErr: errors.New("connection refused")},
			errType: apperrors.ErrTypeSinkUnavailable,
		},
		{
			name: "copy rejected",
			rec: &recorder{
				failOn:  "COPY",
				execErr: &pgconn.PgError{Code: "XX000", Message: "Load into table 'test_table' failed"},
			},
			errType:   apperrors.ErrTypeLoadFailed,
			rollbacks: 1,
			sqlstate:  "XX000",
		},
		{
			name:      "connection lost mid-load",
			rec:       &recorder{failOn: "DELETE", execErr: errors.New("unexpected EOF")},
			errType:   apperrors.ErrTypeSinkUnavailable,
			rollbacks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := newSQLLoader(sql.OpenDB(tt.rec), nil)
			defer loader.Close()

			err := loader.Load(context.Background(), loadCommand())
			require.Error(t, err)
			assert.Equal(t, tt.errType, apperrors.TypeOf(err))
			assert.Equal(t, tt.rollbacks, tt.rec.rollbacks)
			assert.Equal(t, 0, tt.rec.commits)

			if tt.sqlstate != "" {
				var appErr *apperrors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.sqlstate, appErr.Context["sqlstate"])
			}
		})
	}
}

func TestNewSQLLoader(t *testing.T) {
	loader, err := NewSQLLoader("postgres://loader@localhost:5439/dev?sslmode=require", nil)
	require.NoError(t, err)
	assert.NoError(t, loader.Close())
}
