package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

const variableQuery = `SELECT val, COALESCE(is_encrypted, false) FROM variable WHERE key = $1`

// PostgresStore reads secrets from a scheduler metadata database's variable
// table, resolved through the connection's search_path.
//
// Values encrypted with the scheduler's Fernet key cannot be decrypted here
// and are reported as pipekit.ErrSecretEncrypted.
type PostgresStore struct {
	conn pipekit.DBConnection
}

// NewPostgresStore creates a store reading through conn. The caller keeps
// ownership of conn.
func NewPostgresStore(conn pipekit.DBConnection) *PostgresStore {
	return &PostgresStore{conn: conn}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var (
		val       *string
		encrypted bool
	)
	err := s.conn.QueryRow(ctx, variableQuery, key).Scan(&val, &encrypted)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%s (variable table): %w", key, pipekit.ErrSecretNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query variable %s: %w", key, err)
	}
	if encrypted {
		return "", fmt.Errorf("%s: %w", key, pipekit.ErrSecretEncrypted)
	}
	if val == nil {
		return "", fmt.Errorf("%s is NULL: %w", key, pipekit.ErrSecretNotFound)
	}
	return *val, nil
}

func (s *PostgresStore) String() string {
	return "variable table (schema " + s.conn.Schema() + ")"
}

var _ pipekit.SecretStore = (*PostgresStore)(nil)
