package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pipekit/internal/testinfra"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		ctx := context.Background()
		container, err := testinfra.StartPostgres(ctx)
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the test database connection string.
// Priority: PIPEKIT_TEST_CONN env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv("PIPEKIT_TEST_CONN"); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("PIPEKIT_TEST_CONN not set and Docker unavailable: %v", err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString for convenience.
// Returns the test connection string if available, otherwise skips the test.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// UniqueName returns prefix followed by a random suffix that is a valid
// unquoted PostgreSQL identifier.
func UniqueName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CreateTestSchema creates a uniquely named schema and drops it, with
// everything in it, when the test completes.
func CreateTestSchema(t *testing.T, connString string) string {
	t.Helper()

	ctx := context.Background()
	schema := UniqueName("t")

	conn := GetTestConn(t, connString)
	if _, err := conn.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("Failed to create test schema %s: %v", schema, err)
	}

	t.Cleanup(func() {
		cleanup, err := pgx.Connect(context.Background(), connString)
		if err != nil {
			t.Logf("Warning: Failed to connect for cleanup: %v", err)
			return
		}
		defer cleanup.Close(context.Background()) //nolint:errcheck
		if _, err := cleanup.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("Warning: Failed to drop schema %s: %v", schema, err)
		}
	})

	return schema
}

// GetTestConn opens a plain connection that is closed when the test completes.
func GetTestConn(t *testing.T, connString string) *pgx.Conn {
	t.Helper()

	conn, err := pgx.Connect(context.Background(), connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() {
		conn.Close(context.Background()) //nolint:errcheck
	})
	return conn
}

// WriteConnectionINI writes an INI file holding one connection section that
// points at the database of connString with the given schema. It returns the
// file path.
func WriteConnectionINI(t *testing.T, connString, section, schema string) string {
	t.Helper()

	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}

	content := fmt.Sprintf(`[%s]
user = %s
pwd = %s
host = %s
port = %d
dbname = %s
schema = %s
sslmode = disable
`, section, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, schema)

	path := filepath.Join(t.TempDir(), "config.ini")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write connection INI: %v", err)
	}
	return path
}

// ForceApprover is a test approver that always approves replace requests.
type ForceApprover struct{}

// RequestApproval always returns true (auto-approves).
func (a *ForceApprover) RequestApproval(ctx context.Context, tableName string) (bool, error) {
	return true, nil
}
