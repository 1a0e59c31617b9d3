package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/pipekit/internal/tui"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// InteractiveApprover implements the Approver interface for console-based
// interactive confirmation. It prompts the user to type the table name
// before a replace load drops the table.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer
}

// NewInteractiveApprover creates an approver reading stdin and writing stderr.
func NewInteractiveApprover(verbose bool) pipekit.Approver {
	return &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
}

// RequestApproval prompts the user to type the table name to confirm.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, tableName string) (bool, error) {
	fmt.Fprintln(a.output)
	fmt.Fprintln(a.output, tui.WarningStyle.Render(fmt.Sprintf("WARNING: the table '%s' will be DROPPED and recreated", tableName)))
	fmt.Fprintln(a.output, "This will permanently delete all rows currently in the table!")
	fmt.Fprintf(a.output, "\nTo confirm, type the table name '%s' and press Enter: ", tableName)

	// Read user input with context cancellation support
	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(a.input)
		input, err := reader.ReadString('\n')
		if err != nil {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(input)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input == tableName {
			fmt.Fprintln(a.output, tui.SuccessStyle.Render(tui.SymbolCheck+" Confirmed. Replacing table..."))
			return true, nil
		}
		fmt.Fprintln(a.output, tui.ErrorStyle.Render(fmt.Sprintf("%s Input '%s' does not match table name '%s'. Load cancelled.", tui.SymbolCross, input, tableName)))
		return false, nil
	}
}

// Verify InteractiveApprover implements the Approver interface at compile time
var _ pipekit.Approver = (*InteractiveApprover)(nil)
