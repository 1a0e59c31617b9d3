// Package logging provides concrete implementations of the pipekit.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes timestamped "time - LEVEL - message" lines to a writer
//   - NullLogger: Discards all messages (useful for testing)
//
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
