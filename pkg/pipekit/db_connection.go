package pipekit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection abstracts the open database handle returned by the connector.
// It decouples loaders and secret stores from pgx-specific types.
//
// Thread-Safety: a DBConnection wraps a single server session and is not safe
// for concurrent use.
type DBConnection interface {
	Querier

	// Begin starts a transaction on the underlying session.
	Begin(ctx context.Context) (Tx, error)

	// Schema returns the search path the session was opened with.
	Schema() string

	// Close terminates the session.
	Close(ctx context.Context) error
}

// Querier is the subset of operations shared by connections and transactions.
type Querier interface {
	// Exec executes a statement without returning any rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// QueryRow executes a query that is expected to return at most one row.
	// Errors are deferred until ResultRow's Scan method is called.
	QueryRow(ctx context.Context, sql string, args ...any) ResultRow
}

// Tx is an open transaction.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ResultRow represents a single row returned by QueryRow.
type ResultRow interface {
	// Scan reads the values from the row into dest values.
	// Returns an error if no row was found or if the scan fails.
	Scan(dest ...any) error
}

// SecretStore resolves named secrets at call time.
type SecretStore interface {
	// Get returns the secret stored under key, or an error wrapping
	// ErrSecretNotFound when the store does not know it.
	Get(ctx context.Context, key string) (string, error)
}
