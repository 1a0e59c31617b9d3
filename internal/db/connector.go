package db

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// ConnectorFactory creates the Connector for a resolved configuration.
// NewConnector is the production factory; tests substitute their own.
type ConnectorFactory func(config *pipekit.ConnectionConfig) (pipekit.Connector, error)

// StandardConnector implements the Connector interface for standard
// username/password authentication.
type StandardConnector struct {
	config *pipekit.ConnectionConfig
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
func NewStandardConnector(config *pipekit.ConnectionConfig) *StandardConnector {
	return &StandardConnector{config: config}
}

// Connect opens a connection using the configured password.
func (c *StandardConnector) Connect(ctx context.Context) (*pgx.Conn, error) {
	return connectWithConfig(ctx, c.config)
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *pipekit.ConnectionConfig) (pipekit.Connector, error) {
	switch config.AuthMethod {
	case pipekit.AuthMethodStandard:
		return NewStandardConnector(config), nil
	case pipekit.AuthMethodAWSIAM:
		return newAWSConnector(config)
	case pipekit.AuthMethodGoogleIAM:
		return newGoogleConnector(config)
	case pipekit.AuthMethodAzureEntraID:
		return newAzureConnector(config)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, pipekit.ErrUnsupportedAuthMethod)
	}
}

// connectWithConfig dials and pings. The connection is closed again if the
// ping fails, so callers never see a half-open session.
func connectWithConfig(ctx context.Context, config *pipekit.ConnectionConfig) (*pgx.Conn, error) {
	connConfig, err := pgx.ParseConfig(BuildConnectionString(config))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w: %w", err, pipekit.ErrInvalidConfig)
	}
	return openAndPing(ctx, connConfig, config)
}

func openAndPing(ctx context.Context, connConfig *pgx.ConnConfig, config *pipekit.ConnectionConfig) (*pgx.Conn, error) {
	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx) //nolint:errcheck
		return nil, wrapConnectionError(err, config)
	}
	return conn, nil
}

// closerOf returns the connector's extra resources, if it holds any.
func closerOf(c pipekit.Connector) io.Closer {
	if closer, ok := c.(io.Closer); ok {
		return closer
	}
	return nil
}

// wrapConnectionError wraps raw pgx connection errors with actionable guidance.
// The result chains both the original error and pipekit.ErrConnectionFailed.
func wrapConnectionError(err error, config *pipekit.ConnectionConfig) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var guidance string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		guidance = fmt.Sprintf(`connection refused to %s

Check that PostgreSQL is running (pg_isready -h %s -p %d)
and that the host and port keys of the section are right.`, addr, config.Host, config.Port)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		guidance = fmt.Sprintf(`cannot resolve host "%s"

Check the host key of the section and DNS reachability.`, config.Host)

	case strings.Contains(errStr, "password authentication failed"):
		guidance = fmt.Sprintf(`password authentication failed for user "%s" on database "%s"

Check the user and pwd keys of the section ($PGPASSWORD and ~/.pgpass
are used when pwd is empty).`, config.Username, config.Database)

	case strings.Contains(errStr, "too many connections"):
		guidance = fmt.Sprintf(`too many connections to database "%s"

Close idle sessions or raise max_connections on the server.`, config.Database)

	case strings.Contains(errStr, "does not exist"):
		guidance = fmt.Sprintf(`database "%s" does not exist

Create it (createdb %s) or fix the dbname key of the section.`, config.Database, config.Database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		guidance = fmt.Sprintf(`connection timed out to %s

The server may be overloaded, or a firewall may be dropping packets.`, addr)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		guidance = `SSL/TLS connection error

Check the sslmode key of the section.`

	default:
		return fmt.Errorf("failed to connect to database: %w: %w", pipekit.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%s\n\nOriginal error: %w: %w", guidance, pipekit.ErrConnectionFailed, err)
}
