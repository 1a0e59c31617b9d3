package pipekit

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess            = 0  // Operation completed successfully
	ExitGeneralError       = 1  // Unknown or unclassified error
	ExitUsageError         = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic              = 3  // Internal panic (unexpected crash)
	ExitConfigError        = 10 // Missing config file or section, invalid values
	ExitConnectionError    = 11 // Failed to connect to database
	ExitLoadFailed         = 12 // Table load failed
	ExitNotificationFailed = 13 // Notification e-mail was not sent
	ExitApprovalDenied     = 14 // User denied table replacement
)

const (
	// DefaultSMTPHost is the mail-submission host used when none is configured.
	DefaultSMTPHost = "smtp.gmail.com"

	// DefaultSMTPPort is the STARTTLS submission port.
	DefaultSMTPPort = 587

	// DefaultSecretKey names the mail account secret in the secret store.
	DefaultSecretKey = "GMAIL_SECRET"

	// DefaultSubjectPrefix starts every notification subject line.
	DefaultSubjectPrefix = "Airflow Report"

	// DefaultPostgresPort is used when a section omits the port.
	DefaultPostgresPort = 5432

	// DefaultTimeout bounds a single CLI invocation.
	DefaultTimeout = 5 * time.Minute

	// DefaultForceApprovalCountdown is the countdown duration before force approval proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// MaxBindParameters is PostgreSQL's limit on parameters in one statement.
	MaxBindParameters = 65535
)
