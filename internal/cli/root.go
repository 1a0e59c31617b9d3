package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pipekit",
	Short: "Pipeline steps for PostgreSQL: credentials, table loads, notifications",
	Long: asciiLogo + `

pipekit runs the individual steps of a scheduled data pipeline: it reads
connection credentials from INI files, opens PostgreSQL sessions with the
configured search_path, loads CSV data into tables and e-mails task outcome
reports.

Project settings are read from pipekit.yaml in the working directory (or the
file given with --project-file). A .env file in the working directory is
loaded into the environment first.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration (missing file, section or key)
  11 - Database connection failed
  12 - Table load failed
  13 - Notification e-mail was not sent
  14 - User denied table replacement`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout, os.Stderr)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("help", false, "Help for pipekit")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for all commands")
	rootCmd.PersistentFlags().String("project-file", "",
		"Path to the project file (default: ./pipekit.yaml when present)")
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}

func getProjectFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("project-file")
	if err != nil {
		return ""
	}
	return path
}
