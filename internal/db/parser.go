package db

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// ParseConnectionString parses a PostgreSQL URI into a ConnectionConfig.
// Format: postgresql://[user[:password]@][host][:port][/dbname][?param1=value1&...]
//
// A search_path passed through the options parameter is lifted into Schema.
func ParseConnectionString(connStr string) (*pipekit.ConnectionConfig, error) {
	if connStr == "" {
		return nil, fmt.Errorf("connection string is empty")
	}
	if !strings.HasPrefix(connStr, "postgresql://") && !strings.HasPrefix(connStr, "postgres://") {
		return nil, fmt.Errorf("unrecognized connection string format")
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PostgreSQL URI: %w", err)
	}

	config := &pipekit.ConnectionConfig{
		Host:             "localhost",
		Port:             pipekit.DefaultPostgresPort,
		Database:         "postgres",
		AuthMethod:       pipekit.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	if u.Hostname() != "" {
		config.Host = u.Hostname()
	}
	if u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		config.Port = port
	}

	if u.User != nil {
		config.Username = u.User.Username()
		if pass, ok := u.User.Password(); ok {
			config.Password = pass
		}
	}

	if len(u.Path) > 1 {
		config.Database = strings.TrimPrefix(u.Path, "/")
	}

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch strings.ToLower(key) {
		case "sslmode":
			config.SSLMode = value
		case "application_name":
			config.AppName = value
		case "connect_timeout":
			if timeout, err := strconv.Atoi(value); err == nil {
				config.ConnectTimeout = time.Duration(timeout) * time.Second
			}
		case "options":
			if schema, ok := schemaFromOptions(value); ok {
				config.Schema = schema
			} else {
				config.AdditionalParams[key] = value
			}
		default:
			config.AdditionalParams[key] = value
		}
	}

	return config, nil
}

// BuildConnectionString renders config as
// postgresql://{user}:{pwd}@{host}:{port}/{dbname}?options=-c search_path={schema}
// User and password are percent-encoded.
func BuildConnectionString(config *pipekit.ConnectionConfig) string {
	u := &url.URL{
		Scheme: "postgresql",
		Host:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		Path:   "/" + config.Database,
	}

	if config.Username != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.Username, config.Password)
		} else {
			u.User = url.User(config.Username)
		}
	}

	query := url.Values{}
	if config.Schema != "" {
		query.Set("options", SearchPathOption(config.Schema))
	}
	if config.SSLMode != "" {
		query.Set("sslmode", config.SSLMode)
	}
	if config.AppName != "" {
		query.Set("application_name", config.AppName)
	}
	if config.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(config.ConnectTimeout.Seconds())))
	}
	for key, value := range config.AdditionalParams {
		query.Set(key, value)
	}

	u.RawQuery = query.Encode()
	return u.String()
}

// SearchPathOption returns the startup "options" value that sets the
// session search_path. Spaces are backslash-escaped as the server expects.
func SearchPathOption(schema string) string {
	return "-c search_path=" + strings.ReplaceAll(schema, " ", `\ `)
}

func schemaFromOptions(options string) (string, bool) {
	const prefix = "-c search_path="
	if !strings.HasPrefix(options, prefix) {
		return "", false
	}
	return strings.ReplaceAll(strings.TrimPrefix(options, prefix), `\ `, " "), true
}

// Redact returns the connection string with the password replaced,
// for logging.
func Redact(config *pipekit.ConnectionConfig) string {
	c := *config
	if c.Password != "" {
		c.Password = "xxxxx"
	}
	return BuildConnectionString(&c)
}
