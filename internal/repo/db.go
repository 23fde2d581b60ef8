// Package repo contains all database access logic for the tracking backend.
// Each resource has its own file with an interface and a Postgres
// implementation. No business logic lives here — only SQL and type mapping.
package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and
// pgx.Tx. Accepting this interface instead of *pgxpool.Pool directly allows
// integration tests to pass a transaction that is rolled back after each
// test, giving per-test isolation without any manual cleanup. Methods that
// need multi-statement atomicity call Begin; on a pgx.Tx that opens a
// savepoint, so the rollback-isolation property holds in tests too.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for QueryRow and Query calls alike.
type scanner interface {
	Scan(dest ...any) error
}

// uniqueViolation is the SQLSTATE pgx reports when an insert trips a unique
// constraint or index.
const uniqueViolation = "23505"
