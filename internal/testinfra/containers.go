package testinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	// TestSchema is created by the init script; connection sections used in
	// tests point their schema key at it.
	TestSchema = "pipekit_test"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

// StartPostgres runs a disposable PostgreSQL server with TestSchema and an
// Airflow-style variable table already in place.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	dir, err := os.MkdirTemp("", "pipekit-pg-init-")
	if err != nil {
		return nil, fmt.Errorf("create init dir: %w", err)
	}
	initScript, err := writeInitScript(dir)
	if err != nil {
		return nil, err
	}

	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		postgres.WithInitScripts(initScript),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}

	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

func writeInitScript(dir string) (string, error) {
	script := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS public.variable (
    id           SERIAL PRIMARY KEY,
    key          VARCHAR(250) UNIQUE,
    val          TEXT,
    description  TEXT,
    is_encrypted BOOLEAN
);
`, TestSchema)
	path := filepath.Join(dir, "init.sql")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		return "", fmt.Errorf("write init script: %w", err)
	}
	return path, nil
}
