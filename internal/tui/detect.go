package tui

import (
	"os"

	"golang.org/x/term"
)

// Mode represents the interaction mode for pipekit.
type Mode int

const (
	// ModeNonInteractive is used for schedulers, CI/CD pipelines and piped input.
	ModeNonInteractive Mode = iota
	// ModeInteractive is used when a human is at the terminal.
	ModeInteractive
)

// DetectMode determines whether pipekit should run in interactive or non-interactive mode.
//
// Returns ModeNonInteractive if:
//   - PIPEKIT_NON_INTERACTIVE=1 is set
//   - AIRFLOW_CTX_DAG_ID is set (running inside a scheduler task)
//   - CI=true is set (common CI/CD convention)
//   - NO_COLOR is set (accessibility/automation indicator)
//   - stdin or stdout is not a terminal
//
// Returns ModeInteractive otherwise.
func DetectMode() Mode {
	if os.Getenv("PIPEKIT_NON_INTERACTIVE") == "1" {
		return ModeNonInteractive
	}
	if os.Getenv("AIRFLOW_CTX_DAG_ID") != "" {
		return ModeNonInteractive
	}
	if os.Getenv("CI") != "" {
		return ModeNonInteractive
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModeNonInteractive
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ModeNonInteractive
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ModeNonInteractive
	}

	return ModeInteractive
}

// IsInteractive is a convenience function that returns true if running in interactive mode.
func IsInteractive() bool {
	return DetectMode() == ModeInteractive
}
