package db

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// Handle adapts a *pgx.Conn to the pipekit.DBConnection interface.
// It owns the connection and any connector resources (such as a Cloud SQL
// dialer) and releases both on Close.
//
// Thread-Safety: Not safe for concurrent use (pgx.Conn is not).
type Handle struct {
	conn   *pgx.Conn
	schema string
	extra  io.Closer
}

// NewHandle wraps an open connection. extra may be nil.
func NewHandle(conn *pgx.Conn, schema string, extra io.Closer) *Handle {
	return &Handle{conn: conn, schema: schema, extra: extra}
}

// errNotOpen is returned by every method of a nil or closed Handle.
var errNotOpen = fmt.Errorf("database connection is closed or was never opened: %w", pipekit.ErrConnectionFailed)

// live returns the open connection, or errNotOpen.
func (h *Handle) live() (*pgx.Conn, error) {
	if h == nil || h.conn == nil {
		return nil, errNotOpen
	}
	return h.conn, nil
}

// Exec executes a statement without returning any rows.
func (h *Handle) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	conn, err := h.live()
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return conn.Exec(ctx, sql, args...)
}

// QueryRow executes a query that is expected to return at most one row.
// On a nil or closed Handle the returned row's Scan reports the error.
func (h *Handle) QueryRow(ctx context.Context, sql string, args ...any) pipekit.ResultRow {
	conn, err := h.live()
	if err != nil {
		return errRow{err: err}
	}
	return conn.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction.
func (h *Handle) Begin(ctx context.Context) (pipekit.Tx, error) {
	conn, err := h.live()
	if err != nil {
		return nil, err
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

// Schema returns the configured search_path.
func (h *Handle) Schema() string {
	if h == nil {
		return ""
	}
	return h.schema
}

// SearchPath reports the session's effective search_path.
func (h *Handle) SearchPath(ctx context.Context) (string, error) {
	var path string
	err := h.QueryRow(ctx, "SHOW search_path").Scan(&path)
	return path, err
}

// ServerVersion reports the server's version() banner.
func (h *Handle) ServerVersion(ctx context.Context) (string, error) {
	var version string
	err := h.QueryRow(ctx, "SELECT version()").Scan(&version)
	return version, err
}

// Close terminates the session and releases connector resources.
// Safe to call more than once, and on a nil Handle.
func (h *Handle) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	var errs []error
	if h.conn != nil {
		errs = append(errs, h.conn.Close(ctx))
		h.conn = nil
	}
	if h.extra != nil {
		errs = append(errs, h.extra.Close())
		h.extra = nil
	}
	return errors.Join(errs...)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error {
	return r.err
}

// txAdapter adapts pgx.Tx to pipekit.Tx.
type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.tx.Exec(ctx, sql, args...)
}

func (t *txAdapter) QueryRow(ctx context.Context, sql string, args ...any) pipekit.ResultRow {
	return t.tx.QueryRow(ctx, sql, args...)
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// Verify Handle implements DBConnection at compile time
var _ pipekit.DBConnection = (*Handle)(nil)
