package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vvka-141/pipekit/pkg/pipekit"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when the project file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("project file not found")

// NotificationConfig is the notification block of the project file.
type NotificationConfig struct {
	SMTPHost      string `yaml:"smtp_host"`
	SMTPPort      int    `yaml:"smtp_port"`
	Sender        string `yaml:"sender"`
	Recipient     string `yaml:"recipient,omitempty"`
	SecretKey     string `yaml:"secret_key,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// SecretsConfig selects where notification secrets are looked up.
// The environment is always consulted first; dotenv files and the scheduler
// metadata database follow when configured.
type SecretsConfig struct {
	EnvFiles []string `yaml:"env_files,omitempty"`

	// MetadataINI and MetadataSection point at a connection section for the
	// scheduler's metadata database.
	MetadataINI     string `yaml:"metadata_ini,omitempty"`
	MetadataSection string `yaml:"metadata_section,omitempty"`
}

// MetricsConfig enables Pushgateway reporting when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url,omitempty"`
	Job            string `yaml:"job,omitempty"`
}

type ProjectConfig struct {
	Notification NotificationConfig `yaml:"notification"`
	Secrets      SecretsConfig      `yaml:"secrets"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Timeout      string             `yaml:"timeout"`
}

const ConfigFileName = "pipekit.yaml"

// Load reads ConfigFileName from dir.
func Load(dir string) (*ProjectConfig, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads a project file from an explicit path.
func LoadFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %w", path, err, pipekit.ErrInvalidConfig)
	}
	return &cfg, nil
}

// NotificationSettings converts the notification block. Empty fields are
// left for pipekit.NotificationConfig.WithDefaults.
func (c *ProjectConfig) NotificationSettings() pipekit.NotificationConfig {
	n := c.Notification
	return pipekit.NotificationConfig{
		SMTPHost:      n.SMTPHost,
		SMTPPort:      n.SMTPPort,
		Sender:        n.Sender,
		Recipient:     n.Recipient,
		SecretKey:     n.SecretKey,
		SubjectPrefix: n.SubjectPrefix,
	}
}

// TimeoutDuration parses Timeout, falling back to def when it is empty.
func (c *ProjectConfig) TimeoutDuration(def time.Duration) (time.Duration, error) {
	if c.Timeout == "" {
		return def, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout %q: %w", c.Timeout, pipekit.ErrInvalidConfig)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout %q must be positive: %w", c.Timeout, pipekit.ErrInvalidConfig)
	}
	return d, nil
}
