package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vvka-141/pipekit/internal/credentials"
	"github.com/vvka-141/pipekit/internal/db"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

var sectionCmd = &cobra.Command{
	Use:   "section <file> [section]",
	Short: "Print the key/value pairs of an INI section",
	Long: `Section reads an INI credentials file and prints every key/value pair of
the named section, including keys inherited from [DEFAULT]. Keys are printed
lowercased. Without a section name the sections of the file are listed.

Secret values (pwd, azure_client_secret) are masked unless --show-secrets is
given.

Examples:
  # List the sections of a file
  pipekit section ./database.ini

  # Print a section as dotenv lines
  pipekit section ./database.ini warehouse

  # Print a section as YAML
  pipekit section ./database.ini warehouse --format yaml`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSection,
}

type sectionFlagValues struct {
	format      string
	showSecrets bool
}

var sectionFlags sectionFlagValues

// secretKeys are masked in section output.
var secretKeys = []string{db.KeyPassword, db.KeyAzureClientSecret}

const maskedValue = "xxxxx"

func init() {
	rootCmd.AddCommand(sectionCmd)

	sectionCmd.Flags().StringVar(&sectionFlags.format, "format", "env",
		"Output format: env|yaml")
	sectionCmd.Flags().BoolVar(&sectionFlags.showSecrets, "show-secrets", false,
		"Print secret values instead of masking them")
}

func runSection(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	f, err := credentials.Load(path)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		for _, name := range credentials.SectionNames(f) {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	section, err := credentials.SectionOf(f, args[1], path)
	if err != nil {
		return err
	}
	if !sectionFlags.showSecrets {
		section = maskSecrets(section)
	}
	return writeSection(out, section, sectionFlags.format)
}

func maskSecrets(section pipekit.ConfigSection) pipekit.ConfigSection {
	masked := make(pipekit.ConfigSection, len(section))
	for k, v := range section {
		masked[k] = v
	}
	for _, k := range secretKeys {
		if v, ok := masked[k]; ok && v != "" {
			masked[k] = maskedValue
		}
	}
	return masked
}

func writeSection(w io.Writer, section pipekit.ConfigSection, format string) error {
	switch strings.ToLower(format) {
	case "env":
		content, err := godotenv.Marshal(section)
		if err != nil {
			return fmt.Errorf("failed to render section: %w", err)
		}
		_, err = fmt.Fprintln(w, content)
		return err
	case "yaml":
		data, err := yaml.Marshal(map[string]string(section))
		if err != nil {
			return fmt.Errorf("failed to render section: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("invalid argument %q for --format (want env or yaml)", format)
	}
}
