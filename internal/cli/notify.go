package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pipekit/internal/config"
	"github.com/vvka-141/pipekit/internal/logging"
	"github.com/vvka-141/pipekit/internal/notify"
	"github.com/vvka-141/pipekit/internal/secrets"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "E-mail the outcome of a scheduled task",
	Long: `Notify sends a task report e-mail:

  Subject: Airflow Report: Task <task_id> executed successfully|failed
  Body:    The task <task_id> on DAG <dag_id> scheduled at <execution_date>
           has executed successfully|failed.

The task is described either by a callback context JSON file (--context-file,
"-" for stdin) or by --task-id, --dag-id, --state and --execution-date.

Mail goes through SMTP with STARTTLS and PLAIN authentication as the sender.
The password is looked up by --secret-key (default GMAIL_SECRET) in the
environment (AIRFLOW_VAR_<KEY>, then <KEY>), in --env-file files and, when the
project file configures one, in the scheduler's variable table.

SMTP settings come from the notification block of pipekit.yaml; flags
override it.

Examples:
  # From a callback context
  pipekit notify --context-file ./context.json --sender reports@example.com

  # From explicit values
  pipekit notify --task-id extract --dag-id nightly --state failed \
    --execution-date 2024-05-01T00:00:00+00:00 --sender reports@example.com

  # Print the message instead of sending it
  pipekit notify --task-id extract --dag-id nightly --sender reports@example.com --dry-run`,
	Args: cobra.NoArgs,
	RunE: runNotify,
}

type notifyFlagValues struct {
	contextFile   string
	taskID        string
	dagID         string
	state         string
	executionDate string

	smtpHost      string
	smtpPort      int
	sender        string
	recipient     string
	secretKey     string
	subjectPrefix string

	envFiles []string
	dryRun   bool
	timeout  time.Duration
}

var notifyFlags notifyFlagValues

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringVar(&notifyFlags.contextFile, "context-file", "",
		"Callback context JSON file (\"-\" reads stdin)")
	notifyCmd.Flags().StringVar(&notifyFlags.taskID, "task-id", "",
		"Task identifier (required without --context-file)")
	notifyCmd.Flags().StringVar(&notifyFlags.dagID, "dag-id", "",
		"DAG identifier")
	notifyCmd.Flags().StringVar(&notifyFlags.state, "state", string(pipekit.TaskStateSuccess),
		"Task state; anything other than success is reported as failed")
	notifyCmd.Flags().StringVar(&notifyFlags.executionDate, "execution-date", "",
		"Scheduled time, RFC 3339 or \"2006-01-02 15:04:05\"")

	notifyCmd.Flags().StringVar(&notifyFlags.smtpHost, "smtp-host", "",
		"SMTP server (default: smtp.gmail.com)")
	notifyCmd.Flags().IntVar(&notifyFlags.smtpPort, "smtp-port", 0,
		"SMTP submission port (default: 587)")
	notifyCmd.Flags().StringVar(&notifyFlags.sender, "sender", "",
		"Sender address, also the SMTP login")
	notifyCmd.Flags().StringVar(&notifyFlags.recipient, "recipient", "",
		"Recipient address (default: the sender)")
	notifyCmd.Flags().StringVar(&notifyFlags.secretKey, "secret-key", "",
		"Name of the secret holding the SMTP password (default: GMAIL_SECRET)")
	notifyCmd.Flags().StringVar(&notifyFlags.subjectPrefix, "subject-prefix", "",
		"Subject prefix (default: Airflow Report)")

	notifyCmd.Flags().StringSliceVar(&notifyFlags.envFiles, "env-file", nil,
		"Dotenv files searched for the secret (can be specified multiple times)")
	notifyCmd.Flags().BoolVar(&notifyFlags.dryRun, "dry-run", false,
		"Print the message to stdout instead of sending it")
	notifyCmd.Flags().DurationVar(&notifyFlags.timeout, "timeout", defaultTimeout,
		"Overall timeout for the command")
}

// resolveTask builds the task description from the context file or flags.
func resolveTask(stdin io.Reader) (pipekit.TaskContext, error) {
	if notifyFlags.contextFile != "" {
		var (
			data []byte
			err  error
		)
		if notifyFlags.contextFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(notifyFlags.contextFile)
		}
		if err != nil {
			return pipekit.TaskContext{}, fmt.Errorf("failed to read context file: %w: %w", err, pipekit.ErrConfigNotFound)
		}
		return pipekit.ParseTaskContext(data)
	}

	if notifyFlags.taskID == "" {
		return pipekit.TaskContext{}, fmt.Errorf("--task-id is required when --context-file is not given: %w", pipekit.ErrInvalidConfig)
	}
	task := pipekit.TaskContext{
		TaskID: notifyFlags.taskID,
		DagID:  notifyFlags.dagID,
		State:  pipekit.TaskState(notifyFlags.state),
	}
	if notifyFlags.executionDate != "" {
		ts, err := pipekit.ParseExecutionDate(notifyFlags.executionDate)
		if err != nil {
			return pipekit.TaskContext{}, err
		}
		task.ExecutionDate = ts
	}
	return task, nil
}

// resolveNotificationConfig layers explicitly set flags over the project file.
func resolveNotificationConfig(cmd *cobra.Command, projectCfg *config.ProjectConfig) pipekit.NotificationConfig {
	var settings pipekit.NotificationConfig
	if projectCfg != nil {
		settings = projectCfg.NotificationSettings()
	}

	flags := cmd.Flags()
	if flags.Changed("smtp-host") {
		settings.SMTPHost = notifyFlags.smtpHost
	}
	if flags.Changed("smtp-port") {
		settings.SMTPPort = notifyFlags.smtpPort
	}
	if flags.Changed("sender") {
		settings.Sender = notifyFlags.sender
	}
	if flags.Changed("recipient") {
		settings.Recipient = notifyFlags.recipient
	}
	if flags.Changed("secret-key") {
		settings.SecretKey = notifyFlags.secretKey
	}
	if flags.Changed("subject-prefix") {
		settings.SubjectPrefix = notifyFlags.subjectPrefix
	}
	return settings.WithDefaults()
}

// placeholderSecret answers every lookup so dry runs work without a password.
type placeholderSecret struct{}

func (placeholderSecret) Get(context.Context, string) (string, error) {
	return "", nil
}

func runNotify(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	task, err := resolveTask(cmd.InOrStdin())
	if err != nil {
		return err
	}

	projectCfg, err := loadProjectConfig(getProjectFileFlag(cmd))
	if err != nil {
		return err
	}
	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, notifyFlags.timeout)
	if err != nil {
		return err
	}
	rec, err := newRecorder(projectCfg)
	if err != nil {
		return err
	}
	defer flushMetrics(rec, logger)

	settings := resolveNotificationConfig(cmd, projectCfg)

	ctx, cancel := commandContext(timeout)
	defer cancel()

	store, closeStore, err := buildSecretStore(ctx, projectCfg, notifyFlags.envFiles, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var mailer notify.Mailer = notify.NewSMTPMailer(settings)
	if notifyFlags.dryRun {
		mailer = &notify.WriterMailer{W: cmd.OutOrStdout()}
		store = secrets.NewChainStore(store, placeholderSecret{})
	}

	notifier, err := notify.New(settings, mailer, store, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	started := time.Now()
	err = notifier.Notify(ctx, task)
	observe(rec, "notify", started, err)
	return err
}
