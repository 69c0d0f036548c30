package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity-go/pkg/database"
)

var (
	// ErrNotAffected is returned when a write matched no row, e.g. an update
	// or delete of an unknown key.
	ErrNotAffected = errors.New("no rows affected")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = database.ErrDuplicate
)

// ConnectionFactory creates the handle an accessor owns and tells it how to
// quote identifiers for that database.
type ConnectionFactory interface {
	Create(ctx context.Context) (*sqlx.DB, error)
	Identifiers() database.Identifiers
}

// conn is the connection and identifier rules every accessor carries.
type conn struct {
	db  *sqlx.DB
	ids database.Identifiers
	log *zap.SugaredLogger
}

func open(ctx context.Context, f ConnectionFactory, log *zap.SugaredLogger) (conn, error) {
	db, err := f.Create(ctx)
	if err != nil {
		return conn{}, err
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return conn{db: db, ids: f.Identifiers(), log: log}, nil
}

// Close releases the connection owned by the accessor.
func (c conn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// inTx runs fn in a transaction. Any error from fn or from commit rolls the
// whole transaction back.
func (c conn) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			c.log.Warnw("rollback failed", "err", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// execOne runs a named statement that must touch exactly one row.
func execOne(ctx context.Context, e sqlx.ExtContext, q string, arg map[string]any) error {
	n, err := exec(ctx, e, q, arg)
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotAffected
	}
	return nil
}

func exec(ctx context.Context, e sqlx.ExtContext, q string, arg map[string]any) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, e, q, arg)
	if err != nil {
		return 0, database.MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// query runs a named query and scans every row with scan.
func query[T any](ctx context.Context, e sqlx.ExtContext, q string, arg map[string]any, scan func(scanner) (T, error)) ([]T, error) {
	rows, err := sqlx.NamedQueryContext(ctx, e, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// queryOne is query for statements returning at most one row. The zero
// value and a nil error mean no row matched.
func queryOne[T any](ctx context.Context, e sqlx.ExtContext, q string, arg map[string]any, scan func(scanner) (T, error)) (T, error) {
	var zero T
	out, err := query(ctx, e, q, arg, scan)
	if err != nil || len(out) == 0 {
		return zero, err
	}
	return out[0], nil
}
