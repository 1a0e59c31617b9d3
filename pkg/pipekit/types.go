package pipekit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// ConfigSection holds the key/value pairs of one INI section.
// Keys are lowercased; values are raw strings interpreted by callers.
type ConfigSection map[string]string

// Get returns the value for key and whether it was present.
func (s ConfigSection) Get(key string) (string, bool) {
	v, ok := s[strings.ToLower(key)]
	return v, ok
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// Schema is applied as the session search_path.
	Schema string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is required for AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name
	// (project:region:instance), required for AuthMethodGoogleIAM.
	GoogleInstance string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps the auth_method section value onto an AuthMethod.
// An empty value selects standard authentication.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return AuthMethodStandard, nil
	case "aws", "aws_iam", "aws-iam":
		return AuthMethodAWSIAM, nil
	case "google", "google_iam", "google-iam", "gcp":
		return AuthMethodGoogleIAM, nil
	case "azure", "azure_entra_id", "entra", "entra_id":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("%q: %w", s, ErrUnsupportedAuthMethod)
	}
}

// IfExists selects what a load does when the destination table already exists.
type IfExists string

const (
	IfExistsReplace IfExists = "replace" // drop and recreate with the dataset's columns
	IfExistsAppend  IfExists = "append"  // insert into the existing table
	IfExistsFail    IfExists = "fail"    // refuse to touch an existing table
)

// ParseIfExists validates a load mode string. Case and surrounding space are
// ignored; an empty string selects replace.
func ParseIfExists(s string) (IfExists, error) {
	switch m := IfExists(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return IfExistsReplace, nil
	case IfExistsReplace, IfExistsAppend, IfExistsFail:
		return m, nil
	default:
		return "", fmt.Errorf("%q (want replace, append or fail): %w", s, ErrInvalidIfExists)
	}
}

// Row maps column names to values. Absent columns are written as NULL.
type Row map[string]any

// Dataset is an in-memory table with a stable, ordered column set.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// NewDataset creates an empty dataset with the given columns.
func NewDataset(columns ...string) *Dataset {
	return &Dataset{Columns: columns}
}

// Append adds a row to the dataset.
func (d *Dataset) Append(row Row) {
	d.Rows = append(d.Rows, row)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Validate checks that column names are non-empty and unique and that no row
// carries a key outside the column set.
func (d *Dataset) Validate() error {
	if d == nil {
		return fmt.Errorf("dataset is nil: %w", ErrInvalidDataset)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("dataset has no columns: %w", ErrInvalidDataset)
	}

	var errs []error
	seen := make(map[string]bool, len(d.Columns))
	for i, c := range d.Columns {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, fmt.Errorf("column %d has an empty name: %w", i, ErrInvalidDataset))
			continue
		}
		if seen[c] {
			errs = append(errs, fmt.Errorf("duplicate column %q: %w", c, ErrInvalidDataset))
		}
		seen[c] = true
	}
	for i, row := range d.Rows {
		for k := range row {
			if !seen[k] {
				errs = append(errs, fmt.Errorf("row %d has unknown column %q: %w", i, k, ErrInvalidDataset))
			}
		}
	}
	return errors.Join(errs...)
}

// TaskState is the terminal state reported by the scheduler.
type TaskState string

const (
	TaskStateSuccess TaskState = "success"
	TaskStateFailed  TaskState = "failed"
)

// TaskContext describes a completed scheduled task.
type TaskContext struct {
	TaskID        string
	DagID         string
	State         TaskState
	ExecutionDate time.Time
}

// Succeeded reports whether the task finished in the success state.
func (t TaskContext) Succeeded() bool {
	return t.State == TaskStateSuccess
}

// taskCallback mirrors the context object a scheduler passes to its
// completion callbacks.
type taskCallback struct {
	TaskInstance struct {
		State  string `json:"state"`
		TaskID string `json:"task_id"`
		DagID  string `json:"dag_id"`
	} `json:"task_instance"`
	ExecutionDate string `json:"execution_date"`
}

// executionDateLayouts are tried in order when decoding a callback context.
var executionDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTaskContext decodes a scheduler callback context of the form
//
//	{"task_instance": {"state": "success", "task_id": "t", "dag_id": "d"},
//	 "execution_date": "2024-05-01T00:00:00+00:00"}
func ParseTaskContext(data []byte) (TaskContext, error) {
	var raw taskCallback
	if err := json.Unmarshal(data, &raw); err != nil {
		return TaskContext{}, fmt.Errorf("invalid task context: %w", err)
	}
	if raw.TaskInstance.TaskID == "" {
		return TaskContext{}, fmt.Errorf("task context is missing task_instance.task_id: %w", ErrInvalidConfig)
	}

	tc := TaskContext{
		TaskID: raw.TaskInstance.TaskID,
		DagID:  raw.TaskInstance.DagID,
		State:  TaskState(strings.ToLower(raw.TaskInstance.State)),
	}
	if raw.ExecutionDate != "" {
		ts, err := ParseExecutionDate(raw.ExecutionDate)
		if err != nil {
			return TaskContext{}, err
		}
		tc.ExecutionDate = ts
	}
	return tc, nil
}

// ParseExecutionDate accepts RFC 3339 and Python isoformat/str renderings.
func ParseExecutionDate(s string) (time.Time, error) {
	for _, layout := range executionDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized execution date %q: %w", s, ErrInvalidConfig)
}

// NotificationConfig configures the notification sender.
type NotificationConfig struct {
	SMTPHost      string
	SMTPPort      int
	Sender        string
	Recipient     string
	SecretKey     string
	SubjectPrefix string
}

// WithDefaults fills unset fields with the package defaults.
// The recipient defaults to the sender.
func (c NotificationConfig) WithDefaults() NotificationConfig {
	if c.SMTPHost == "" {
		c.SMTPHost = DefaultSMTPHost
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = DefaultSMTPPort
	}
	if c.SecretKey == "" {
		c.SecretKey = DefaultSecretKey
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.Recipient == "" {
		c.Recipient = c.Sender
	}
	return c
}

// Validate checks if the NotificationConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c NotificationConfig) Validate() error {
	var errs []error

	if c.SMTPHost == "" {
		errs = append(errs, fmt.Errorf("smtp_host is required: %w", ErrInvalidConfig))
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		errs = append(errs, fmt.Errorf("smtp_port %d is out of range: %w", c.SMTPPort, ErrInvalidConfig))
	}
	if c.Sender == "" {
		errs = append(errs, fmt.Errorf("sender is required: %w", ErrInvalidConfig))
	} else if _, err := mail.ParseAddress(c.Sender); err != nil {
		errs = append(errs, fmt.Errorf("sender %q: %v: %w", c.Sender, err, ErrInvalidConfig))
	}
	if c.Recipient != "" {
		if _, err := mail.ParseAddress(c.Recipient); err != nil {
			errs = append(errs, fmt.Errorf("recipient %q: %v: %w", c.Recipient, err, ErrInvalidConfig))
		}
	}
	if c.SecretKey == "" {
		errs = append(errs, fmt.Errorf("secret_key is required: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}
