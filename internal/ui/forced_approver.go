package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vvka-141/pipekit/internal/tui"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// ForcedApprover implements the Approver interface for --force runs. It
// shows a countdown the operator can interrupt, then approves.
type ForcedApprover struct {
	verbose   bool
	countdown time.Duration
	output    io.Writer
	sleepFn   func(time.Duration)
}

// NewForcedApprover creates a ForcedApprover writing to stderr.
func NewForcedApprover(verbose bool) pipekit.Approver {
	return &ForcedApprover{
		verbose:   verbose,
		countdown: pipekit.DefaultForceApprovalCountdown,
		output:    os.Stderr,
		sleepFn:   time.Sleep,
	}
}

// NewImmediateApprover approves without a countdown. Used when nobody is
// at the terminal to cancel.
func NewImmediateApprover() pipekit.Approver {
	return &ForcedApprover{output: io.Discard, sleepFn: func(time.Duration) {}}
}

// RequestApproval displays a countdown and automatically approves after it.
func (a *ForcedApprover) RequestApproval(ctx context.Context, tableName string) (bool, error) {
	if a.countdown > 0 {
		fmt.Fprintln(a.output)
		fmt.Fprintln(a.output, tui.BoxStyle.Render(tui.ErrorStyle.Render("DANGER")+
			fmt.Sprintf("\nForced replace: table '%s' will be DROPPED and recreated.", tableName)))
	}

	countdownSeconds := int(a.countdown.Seconds())
	for i := countdownSeconds; i > 0; i-- {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
			fmt.Fprintf(a.output, "\rDropping in: %d seconds... (Press Ctrl+C to cancel)", i)
			a.sleepFn(1 * time.Second)
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if a.countdown > 0 {
		fmt.Fprintf(a.output, "\r%s Proceeding with table replace...                              \n", tui.SymbolCheck)
	}
	return true, nil
}

// Verify ForcedApprover implements the Approver interface at compile time
var _ pipekit.Approver = (*ForcedApprover)(nil)
