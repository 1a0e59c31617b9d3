package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/vvka-141/pipekit/pkg/pipekit"
)

const notifyOp = "notify"

// Console messages printed after each attempt.
const (
	sentMessage   = "Email sent successfully!"
	failedMessage = "An error occurred while sending email: %v"
)

// Notifier sends task outcome reports.
type Notifier struct {
	config  pipekit.NotificationConfig
	mailer  Mailer
	secrets pipekit.SecretStore
	out     io.Writer
	logger  pipekit.Logger
}

// New creates a Notifier. Defaults are applied to config before it is
// validated. The outcome of every send is printed to out.
func New(config pipekit.NotificationConfig, mailer Mailer, secrets pipekit.SecretStore, out io.Writer, logger pipekit.Logger) (*Notifier, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, pipekit.NewError(notifyOp, pipekit.KindConfig, err)
	}
	return &Notifier{
		config:  config,
		mailer:  mailer,
		secrets: secrets,
		out:     out,
		logger:  logger,
	}, nil
}

// Notify e-mails the outcome of task. The secret is looked up on every call
// so rotated credentials take effect without a restart.
func (n *Notifier) Notify(ctx context.Context, task pipekit.TaskContext) error {
	msg := Compose(n.config, task)
	n.logger.Verbose("Sending %q to %s via %s:%d", msg.Subject, msg.To, n.config.SMTPHost, n.config.SMTPPort)

	secret, err := n.secrets.Get(ctx, n.config.SecretKey)
	if err != nil {
		fmt.Fprintf(n.out, failedMessage+"\n", err)
		return pipekit.NewError(notifyOp, pipekit.KindNotification, fmt.Errorf("secret %s: %w", n.config.SecretKey, err))
	}

	if err := n.mailer.Send(ctx, msg, secret); err != nil {
		fmt.Fprintf(n.out, failedMessage+"\n", err)
		return pipekit.NewError(notifyOp, pipekit.KindNotification, err)
	}

	fmt.Fprintln(n.out, sentMessage)
	n.logger.Verbose("Notification for task %s delivered to %s", task.TaskID, msg.To)
	return nil
}
