package pipekit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	handle, err := db.Connect(ctx, "config.ini", "warehouse", logger)
//	if errors.Is(err, pipekit.ErrSectionNotFound) {
//	    // Handle a missing configuration section
//	}
var (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrSectionNotFound indicates the requested INI section is absent.
	ErrSectionNotFound = errors.New("section not found")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrLoadFailed indicates a table load did not complete.
	ErrLoadFailed = errors.New("load failed")

	// ErrTableExists indicates the destination table exists and the load mode is fail.
	ErrTableExists = errors.New("table already exists")

	// ErrInvalidDataset indicates the dataset cannot be written as given.
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrInvalidIfExists indicates an unrecognized load mode.
	ErrInvalidIfExists = errors.New("invalid if_exists value")

	// ErrNotificationFailed indicates the notification e-mail was not sent.
	ErrNotificationFailed = errors.New("notification failed")

	// ErrSecretNotFound indicates the secret store has no value for a key.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrSecretEncrypted indicates the stored secret is encrypted and cannot be read.
	ErrSecretEncrypted = errors.New("secret is encrypted")

	// ErrApprovalDenied indicates the user denied approval for the operation.
	ErrApprovalDenied = errors.New("approval denied")
)

// ErrorKind classifies failures the same way for every operation.
type ErrorKind int

const (
	KindUnknown      ErrorKind = iota
	KindConfig                 // missing file or section, bad values
	KindConnection             // database or mail server unreachable, auth failure
	KindData                   // schema mismatch, constraint violation, bad dataset
	KindNotification           // mail composition or delivery failure
)

// String returns a human-readable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindConnection:
		return "connection"
	case KindData:
		return "data"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// sentinel returns the sentinel error that stands for the kind as a whole.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrInvalidConfig
	case KindConnection:
		return ErrConnectionFailed
	case KindData:
		return ErrLoadFailed
	case KindNotification:
		return ErrNotificationFailed
	default:
		return nil
	}
}

// Error is the typed failure returned by the connector, loader and notifier.
// It carries the operation name, the failure kind and the underlying cause.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

// NewError wraps err as a typed failure. A nil err yields nil.
func NewError(op string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind, so that
// errors.Is(err, ErrConnectionFailed) holds for every connection-kind failure.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the ErrorKind from err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrApprovalDenied):
		return ExitApprovalDenied
	case errors.Is(err, ErrConfigNotFound),
		errors.Is(err, ErrSectionNotFound),
		errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrInvalidIfExists),
		errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrLoadFailed),
		errors.Is(err, ErrTableExists),
		errors.Is(err, ErrInvalidDataset):
		return ExitLoadFailed
	case errors.Is(err, ErrNotificationFailed),
		errors.Is(err, ErrSecretNotFound),
		errors.Is(err, ErrSecretEncrypted):
		return ExitNotificationFailed
	}

	errStr := err.Error()
	if isUsageError(errStr) {
		return ExitUsageError
	}
	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}

// isUsageError matches the messages cobra produces for bad invocations.
func isUsageError(msg string) bool {
	for _, p := range []string{"unknown flag", "unknown shorthand flag", "unknown command", "accepts ", "requires at least", "required flag", "invalid argument"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
