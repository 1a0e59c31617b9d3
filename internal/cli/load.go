package cli

import (
	"context"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/vvka-141/pipekit/internal/dataset"
	"github.com/vvka-141/pipekit/internal/db"
	"github.com/vvka-141/pipekit/internal/loader"
	"github.com/vvka-141/pipekit/internal/logging"
	"github.com/vvka-141/pipekit/internal/metrics"
	"github.com/vvka-141/pipekit/internal/tui"
	"github.com/vvka-141/pipekit/internal/ui"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

var loadCmd = &cobra.Command{
	Use:   "load <csv_file>",
	Short: "Load a CSV file into a database table",
	Long: `Load reads a CSV file (header row first) and writes its rows into a table in
the schema named by the connection section.

The load runs in one transaction:
1. Connects using the INI section given by --config and --section
2. Checks whether the table exists in the session's schema
3. Drops it (replace), keeps it (append) or stops (fail)
4. Creates a missing table with column types inferred from the data
5. Inserts all rows with multi-row INSERT statements

Replacing an existing table asks for confirmation on an interactive terminal:
type the table name to proceed. A missing table is created without asking. --force replaces after a short countdown instead.
Scheduler runs (non-interactive) replace without asking.

Column types are inferred per column: integers, floats, booleans, otherwise
text. Empty cells and NA markers are written as NULL.

Examples:
  # Replace the table with the file's contents
  pipekit load ./sales.csv --config ./database.ini --section warehouse --table sales

  # Append to an existing table
  pipekit load ./sales.csv --config ./database.ini --section warehouse \
    --table sales --if-exists append

  # Semicolon-separated Windows-1250 export
  pipekit load ./export.csv --config ./database.ini --section warehouse \
    --table export --delimiter ';' --encoding windows-1250`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

type loadFlagValues struct {
	configFile string
	section    string
	table      string
	ifExists   string
	delimiter  string
	encoding   string
	noInfer    bool
	force      bool
	timeout    time.Duration
}

var loadFlags loadFlagValues

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadFlags.configFile, "config", "",
		"INI file holding the connection section")
	loadCmd.Flags().StringVar(&loadFlags.section, "section", "",
		"Connection section within --config")
	loadCmd.Flags().StringVar(&loadFlags.table, "table", "",
		"Destination table in the section's schema")
	loadCmd.Flags().StringVar(&loadFlags.ifExists, "if-exists", string(pipekit.IfExistsReplace),
		"What to do when the table exists: replace|append|fail")
	loadCmd.Flags().StringVar(&loadFlags.delimiter, "delimiter", ",",
		"Field delimiter (a single character, or \\t for tab)")
	loadCmd.Flags().StringVar(&loadFlags.encoding, "encoding", "utf-8",
		"Source file encoding, e.g. utf-8, windows-1250, latin1")
	loadCmd.Flags().BoolVar(&loadFlags.noInfer, "no-infer", false,
		"Load every column as text")
	loadCmd.Flags().BoolVar(&loadFlags.force, "force", false,
		"Skip the interactive confirmation before replacing a table")
	loadCmd.Flags().DurationVar(&loadFlags.timeout, "timeout", defaultTimeout,
		"Overall timeout for the command\n"+
			"Examples: 30s, 5m, 1h30m")

	_ = loadCmd.MarkFlagRequired("config")
	_ = loadCmd.MarkFlagRequired("section")
	_ = loadCmd.MarkFlagRequired("table")
}

// parseDelimiter accepts a single character or the escape \t.
func parseDelimiter(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("invalid argument %q for --delimiter: want a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '\r' || r == '\n' || r == '"' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid argument %q for --delimiter", s)
	}
	return r, nil
}

// selectApprover picks how a replace load is confirmed.
func selectApprover(force, interactive, verbose bool) pipekit.Approver {
	switch {
	case !interactive:
		return ui.NewImmediateApprover()
	case force:
		return ui.NewForcedApprover(verbose)
	default:
		return ui.NewInteractiveApprover(verbose)
	}
}

func readDataset(path string, opts dataset.Options) (*pipekit.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := dataset.ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	csvPath := args[0]
	verbose := getVerboseFlag(cmd)
	logger := logging.NewConsoleLogger(verbose)

	mode, err := pipekit.ParseIfExists(loadFlags.ifExists)
	if err != nil {
		return err
	}
	delim, err := parseDelimiter(loadFlags.delimiter)
	if err != nil {
		return err
	}

	projectCfg, err := loadProjectConfig(getProjectFileFlag(cmd))
	if err != nil {
		return err
	}
	timeout, err := resolveEffectiveTimeout(cmd, projectCfg, loadFlags.timeout)
	if err != nil {
		return err
	}
	rec, err := newRecorder(projectCfg)
	if err != nil {
		return err
	}
	defer flushMetrics(rec, logger)

	ds, err := readDataset(csvPath, dataset.Options{
		Delimiter:   delim,
		Encoding:    loadFlags.encoding,
		NoInference: loadFlags.noInfer,
	})
	if err != nil {
		return err
	}
	logger.Verbose("Read %d rows with columns %v from %s", ds.Len(), ds.Columns, csvPath)

	ctx, cancel := commandContext(timeout)
	defer cancel()

	handle, err := db.Connect(ctx, loadFlags.configFile, loadFlags.section, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := handle.Close(context.Background()); cerr != nil {
			logger.Error("Failed to close connection: %v", cerr)
		}
	}()

	interactive := tui.IsInteractive()
	if mode == pipekit.IfExistsReplace {
		approver := selectApprover(loadFlags.force, interactive, verbose)
		if err := confirmReplace(ctx, handle, loadFlags.table, approver); err != nil {
			return err
		}
	}

	started := time.Now()
	n, err := loadDataset(ctx, handle, ds, mode, interactive && !verbose, logger, rec)
	observe(rec, "load", started, err)
	if err != nil {
		return err
	}

	if !interactive || verbose {
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d rows into %s\n", n, loadFlags.table)
	}
	return nil
}

// confirmReplace asks approver before an existing table is dropped. A table
// that does not exist yet needs no confirmation.
func confirmReplace(ctx context.Context, q pipekit.Querier, table string, approver pipekit.Approver) error {
	exists, err := loader.TableExists(ctx, q, table)
	if err != nil {
		return pipekit.NewError("load", pipekit.KindConnection, err)
	}
	if !exists {
		return nil
	}

	approved, err := approver.RequestApproval(ctx, table)
	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	if !approved {
		return fmt.Errorf("replace of table %s: %w", table, pipekit.ErrApprovalDenied)
	}
	return nil
}

// loadDataset loads ds over conn, drawing a spinner when spin is set.
func loadDataset(ctx context.Context, conn pipekit.DBConnection, ds *pipekit.Dataset, mode pipekit.IfExists, spin bool, logger pipekit.Logger, rec metrics.Recorder) (int64, error) {
	var rows int64
	work := func(ctx context.Context) (string, error) {
		n, err := loader.New(logger).Load(ctx, ds, loadFlags.table, conn, mode)
		if err != nil {
			return "", err
		}
		rows = n
		rec.AddRowsLoaded(n)
		return fmt.Sprintf("Loaded %d rows into %s", n, loadFlags.table), nil
	}

	if !spin {
		_, err := work(ctx)
		return rows, err
	}
	err := tui.RunWithSpinner(ctx, os.Stderr, fmt.Sprintf("Loading %s...", loadFlags.table), work)
	return rows, err
}
