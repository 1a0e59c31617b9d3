package db

import (
	"context"
	"errors"

	"github.com/vvka-141/pipekit/internal/credentials"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

const connectOp = "connect"

// Connect opens a database session described by section of the INI file at
// configFile. The session's search_path is set to the section's schema.
//
// On any failure the error is logged and returned together with a nil
// handle; a non-nil handle is always open.
func Connect(ctx context.Context, configFile, section string, logger pipekit.Logger) (*Handle, error) {
	return ConnectWith(ctx, NewConnector, configFile, section, logger)
}

// ConnectWith is Connect with an explicit connector factory.
func ConnectWith(ctx context.Context, factory ConnectorFactory, configFile, section string, logger pipekit.Logger) (*Handle, error) {
	values, err := credentials.ReadSection(configFile, section)
	if err != nil {
		if errors.Is(err, pipekit.ErrSectionNotFound) {
			logger.Error("Section %s not found in file %s", section, configFile)
		} else {
			logger.Error("Error connecting to the database: %v", err)
		}
		return nil, pipekit.NewError(connectOp, pipekit.KindConfig, err)
	}

	config, err := ConfigFromSection(values)
	if err != nil {
		logger.Error("Error connecting to the database: invalid section %s: %v", section, err)
		return nil, pipekit.NewError(connectOp, pipekit.KindConfig, err)
	}

	return ConnectConfig(ctx, factory, config, logger)
}

// ConnectConfig opens a session for an already resolved configuration.
func ConnectConfig(ctx context.Context, factory ConnectorFactory, config *pipekit.ConnectionConfig, logger pipekit.Logger) (*Handle, error) {
	logger.Info("Connecting to the database...")
	logger.Verbose("Target %s (auth: %s)", Redact(config), config.AuthMethod)

	connector, err := factory(config)
	if err != nil {
		logger.Error("Error connecting to the database: %v", err)
		return nil, pipekit.NewError(connectOp, pipekit.KindConfig, err)
	}
	if tc, ok := connector.(*TokenBasedConnector); ok {
		connector = tc.WithLogger(logger)
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		if closer := closerOf(connector); closer != nil {
			closer.Close() //nolint:errcheck
		}
		logger.Error("Error connecting to the database: %v", err)
		kind := pipekit.KindConnection
		if errors.Is(err, pipekit.ErrInvalidConfig) {
			kind = pipekit.KindConfig
		}
		return nil, pipekit.NewError(connectOp, kind, err)
	}

	logger.Info("Database connection established")
	return NewHandle(conn, config.Schema, closerOf(connector)), nil
}
