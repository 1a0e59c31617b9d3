package notify

import (
	"fmt"
	"time"

	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// Status labels used in subjects and bodies.
const (
	StatusSucceeded = "executed successfully"
	StatusFailed    = "failed"
)

// Message is a composed plain-text e-mail.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Status returns the label describing the task's terminal state. Every state
// other than success counts as a failure.
func Status(task pipekit.TaskContext) string {
	if task.Succeeded() {
		return StatusSucceeded
	}
	return StatusFailed
}

// Compose builds the report for task.
func Compose(config pipekit.NotificationConfig, task pipekit.TaskContext) Message {
	status := Status(task)
	return Message{
		From:    config.Sender,
		To:      config.Recipient,
		Subject: fmt.Sprintf("%s: Task %s %s", config.SubjectPrefix, task.TaskID, status),
		Body: fmt.Sprintf("The task %s on DAG %s scheduled at %s has %s.",
			task.TaskID, task.DagID, FormatExecutionDate(task.ExecutionDate), status),
	}
}

// FormatExecutionDate renders t the way the scheduler prints timestamps:
// "2024-05-01 00:00:00+00:00", with microseconds only when non-zero.
// The zero time renders as "None".
func FormatExecutionDate(t time.Time) string {
	if t.IsZero() {
		return "None"
	}
	layout := "2006-01-02 15:04:05"
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		layout += ".000000"
	}
	return t.Format(layout + "-07:00")
}
