// Package notify reports the outcome of a scheduled task by e-mail.
//
// A Notifier composes the report from a pipekit.TaskContext, fetches the
// mail account secret from a pipekit.SecretStore at send time and hands the
// message to a Mailer. SMTPMailer delivers over STARTTLS with PLAIN auth;
// WriterMailer renders the message for dry runs.
package notify
