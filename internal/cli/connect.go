package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pipekit/internal/db"
	"github.com/vvka-141/pipekit/internal/logging"
)

var connectCmd = &cobra.Command{
	Use:   "connect <file> <section>",
	Short: "Open a database session from an INI section and report on it",
	Long: `Connect reads the connection section from the INI file, opens a session with
the section's schema as search_path and prints the server version and the
effective search_path. Use it to check credentials before scheduling a load.

Section keys:
  user, pwd, host, port, dbname, schema   connection and search_path
  sslmode, application_name               optional session settings
  connect_timeout                         dial timeout in seconds
  auth_method                             standard|aws_iam|google_iam|azure_entra_id

Examples:
  pipekit connect ./database.ini warehouse
  pipekit connect ./database.ini warehouse --timeout 30s`,
	Args: cobra.ExactArgs(2),
	RunE: runConnect,
}

type connectFlagValues struct {
	timeout time.Duration
}

var connectFlags connectFlagValues

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().DurationVar(&connectFlags.timeout, "timeout", defaultTimeout,
		"Overall timeout for the command\n"+
			"Examples: 30s, 5m")
}

func runConnect(cmd *cobra.Command, args []string) error {
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	projectCfg, err := loadProjectConfig(getProjectFileFlag(cmd))
	if err != nil {
		return err
	}
	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, connectFlags.timeout)
	if err != nil {
		return err
	}
	rec, err := newRecorder(projectCfg)
	if err != nil {
		return err
	}
	defer flushMetrics(rec, logger)

	ctx, cancel := commandContext(timeout)
	defer cancel()

	started := time.Now()
	err = describeConnection(ctx, cmd, args[0], args[1], logger)
	observe(rec, "connect", started, err)
	return err
}

func describeConnection(ctx context.Context, cmd *cobra.Command, file, section string, logger *logging.ConsoleLogger) error {
	handle, err := db.Connect(ctx, file, section, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := handle.Close(context.Background()); cerr != nil {
			logger.Error("Failed to close connection: %v", cerr)
		}
	}()

	serverVersion, err := handle.ServerVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to query server version: %w", err)
	}
	searchPath, err := handle.SearchPath(ctx)
	if err != nil {
		return fmt.Errorf("failed to query search_path: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server:      %s\n", serverVersion)
	fmt.Fprintf(out, "Schema:      %s\n", handle.Schema())
	fmt.Fprintf(out, "Search path: %s\n", searchPath)
	return nil
}
