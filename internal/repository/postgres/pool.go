// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the slice of a Postgres pool the repositories need. Both
// *pgxpool.Pool and pgxmock.PgxPoolIface satisfy it, so every repository is
// testable without a database.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// DB carries the pool into repository constructors.
type DB struct{ Pool PgxPool }

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// pgcode 23505
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// pgcode 23503: a referenced row (for grants, the document) is gone.
func isForeignKeyViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23503"
}
