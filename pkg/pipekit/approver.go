package pipekit

import "context"

// Approver handles confirmation of destructive operations, such as a
// replace-mode load that drops an existing table.
//
// Implementations:
//   - ForcedApprover: Shows countdown and automatically approves
//   - InteractiveApprover: Prompts user to type the table name for confirmation
type Approver interface {
	// RequestApproval asks for confirmation before dropping and recreating a table.
	// Returns true if approved, false if denied.
	RequestApproval(ctx context.Context, tableName string) (bool, error)
}
