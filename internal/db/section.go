package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// Section keys read by ConfigFromSection.
const (
	KeyURL               = "url"
	KeyUser              = "user"
	KeyPassword          = "pwd"
	KeyHost              = "host"
	KeyPort              = "port"
	KeyDatabase          = "dbname"
	KeySchema            = "schema"
	KeySSLMode           = "sslmode"
	KeyAppName           = "application_name"
	KeyConnectTimeout    = "connect_timeout"
	KeyAuthMethod        = "auth_method"
	KeyAWSRegion         = "aws_region"
	KeyGoogleInstance    = "google_instance"
	KeyAzureTenantID     = "azure_tenant_id"
	KeyAzureClientID     = "azure_client_id"
	KeyAzureClientSecret = "azure_client_secret"
)

// requiredKeys must be present and non-empty in every connection section
// without a url key. The password may be absent: pgx then falls back to
// $PGPASSWORD and ~/.pgpass, and token-based methods never use it.
var requiredKeys = []string{KeyUser, KeyHost, KeyPort, KeyDatabase, KeySchema}

// ConfigFromSection builds a ConnectionConfig from a connection section.
// It returns a multi-error naming every missing or malformed key.
//
// A section may carry a url key (postgresql://...) instead of the individual
// keys; keys given alongside it override the URL's parts. The schema then
// comes from the schema key or from the URL's search_path option.
func ConfigFromSection(section pipekit.ConfigSection) (*pipekit.ConnectionConfig, error) {
	var errs []error

	config := &pipekit.ConnectionConfig{}
	if raw := strings.TrimSpace(section[KeyURL]); raw != "" {
		parsed, err := ParseConnectionString(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w: %w", KeyURL, err, pipekit.ErrInvalidConfig)
		}
		config = parsed
		if config.Schema == "" && strings.TrimSpace(section[KeySchema]) == "" {
			errs = append(errs, fmt.Errorf("missing key %q (or search_path in %q): %w", KeySchema, KeyURL, pipekit.ErrInvalidConfig))
		}
	} else {
		for _, k := range requiredKeys {
			if strings.TrimSpace(section[k]) == "" {
				errs = append(errs, fmt.Errorf("missing key %q: %w", k, pipekit.ErrInvalidConfig))
			}
		}
	}

	override := func(dst *string, key string) {
		if v, ok := section[key]; ok && v != "" {
			*dst = v
		}
	}
	override(&config.Host, KeyHost)
	override(&config.Database, KeyDatabase)
	override(&config.Username, KeyUser)
	override(&config.Password, KeyPassword)
	override(&config.Schema, KeySchema)
	override(&config.SSLMode, KeySSLMode)
	override(&config.AppName, KeyAppName)
	override(&config.AWSRegion, KeyAWSRegion)
	override(&config.GoogleInstance, KeyGoogleInstance)
	override(&config.AzureTenantID, KeyAzureTenantID)
	override(&config.AzureClientID, KeyAzureClientID)
	override(&config.AzureClientSecret, KeyAzureClientSecret)

	if raw := strings.TrimSpace(section[KeyPort]); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("invalid port %q: %w", raw, pipekit.ErrInvalidConfig))
		}
		config.Port = port
	}

	if raw := strings.TrimSpace(section[KeyConnectTimeout]); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			errs = append(errs, fmt.Errorf("invalid connect_timeout %q: %w", raw, pipekit.ErrInvalidConfig))
		}
		config.ConnectTimeout = time.Duration(secs) * time.Second
	}

	method, err := pipekit.ParseAuthMethod(section[KeyAuthMethod])
	if err != nil {
		errs = append(errs, err)
	}
	config.AuthMethod = method

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return config, nil
}
