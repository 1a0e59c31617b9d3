package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/pipekit/internal/config"
	"github.com/vvka-141/pipekit/internal/metrics"
	"github.com/vvka-141/pipekit/internal/ui"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

const testINI = `[DEFAULT]
port = 5432

[warehouse]
user = etl
pwd = s3cret
host = db.example.com
dbname = dwh
schema = staging

[reporting]
user = reader
host = db.example.com
dbname = dwh
schema = reports
`

// resetFlags restores every command's flag values and Changed state, since
// cobra keeps both across Execute calls.
func resetFlags(t *testing.T) {
	t.Helper()

	sectionFlags = sectionFlagValues{format: "env"}
	connectFlags = connectFlagValues{timeout: defaultTimeout}
	loadFlags = loadFlagValues{
		ifExists:  string(pipekit.IfExistsReplace),
		delimiter: ",",
		encoding:  "utf-8",
		timeout:   defaultTimeout,
	}
	notifyFlags = notifyFlagValues{state: string(pipekit.TaskStateSuccess), timeout: defaultTimeout}

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	})
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) {
			f.Changed = false
		})
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestSectionCmd_ListsSections(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "database.ini", testINI)

	out, err := runRoot(t, "section", path)
	require.NoError(t, err)
	assert.Equal(t, "warehouse\nreporting\n", out)
}

func TestSectionCmd_EnvFormatMasksPassword(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "database.ini", testINI)

	out, err := runRoot(t, "section", path, "warehouse")
	require.NoError(t, err)

	assert.Contains(t, out, `host="db.example.com"`)
	assert.Contains(t, out, "port=5432")
	assert.Contains(t, out, `pwd="xxxxx"`)
	assert.NotContains(t, out, "s3cret")
}

func TestSectionCmd_ShowSecrets(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "database.ini", testINI)

	out, err := runRoot(t, "section", path, "warehouse", "--show-secrets")
	require.NoError(t, err)
	assert.Contains(t, out, `pwd="s3cret"`)
}

func TestSectionCmd_YAMLFormat(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "database.ini", testINI)

	out, err := runRoot(t, "section", path, "reporting", "--format", "yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "schema: reports\n")
	assert.Contains(t, out, `port: "5432"`)
	assert.NotContains(t, out, "pwd")
}

func TestSectionCmd_Errors(t *testing.T) {
	path := writeFile(t, "database.ini", testINI)

	tests := []struct {
		name     string
		args     []string
		exitCode int
	}{
		{"missing section", []string{"section", path, "nope"}, pipekit.ExitConfigError},
		{"missing file", []string{"section", filepath.Join(t.TempDir(), "absent.ini"), "warehouse"}, pipekit.ExitConfigError},
		{"bad format", []string{"section", path, "warehouse", "--format", "toml"}, pipekit.ExitUsageError},
		{"no args", []string{"section"}, pipekit.ExitUsageError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			_, err := runRoot(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, pipekit.ExitCodeForError(err), "error: %v", err)
		})
	}
}

func TestConnectCmd_ArgsValidation(t *testing.T) {
	err := connectCmd.Args(connectCmd, []string{"only-file"})
	require.Error(t, err)
	assert.Equal(t, pipekit.ExitUsageError, pipekit.ExitCodeForError(err))
}

func TestConnectCmd_MissingSection(t *testing.T) {
	resetFlags(t)
	path := writeFile(t, "database.ini", testINI)

	_, err := runRoot(t, "connect", path, "absent")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipekit.ErrSectionNotFound)
	assert.Equal(t, pipekit.ExitConfigError, pipekit.ExitCodeForError(err))
}

func TestConnectCmd_Unreachable(t *testing.T) {
	resetFlags(t)
	ini := `[local]
user = etl
pwd = x
host = 127.0.0.1
port = 1
dbname = dwh
schema = staging
sslmode = disable
connect_timeout = 2
`
	path := writeFile(t, "database.ini", ini)

	_, err := runRoot(t, "connect", path, "local", "--timeout", "10s")
	require.Error(t, err)
	assert.Equal(t, pipekit.ExitConnectionError, pipekit.ExitCodeForError(err))
}

func TestLoadCmd_RequiredFlags(t *testing.T) {
	resetFlags(t)
	csvPath := writeFile(t, "data.csv", "a,b\n1,2\n")

	_, err := runRoot(t, "load", csvPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Equal(t, pipekit.ExitUsageError, pipekit.ExitCodeForError(err))
}

func TestLoadCmd_InvalidIfExists(t *testing.T) {
	resetFlags(t)
	csvPath := writeFile(t, "data.csv", "a,b\n1,2\n")
	iniPath := writeFile(t, "database.ini", testINI)

	_, err := runRoot(t, "load", csvPath, "--config", iniPath, "--section", "warehouse",
		"--table", "t", "--if-exists", "truncate")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipekit.ErrInvalidIfExists)
	assert.Equal(t, pipekit.ExitConfigError, pipekit.ExitCodeForError(err))
}

func TestLoadCmd_MissingCSV(t *testing.T) {
	resetFlags(t)
	iniPath := writeFile(t, "database.ini", testINI)

	_, err := runRoot(t, "load", filepath.Join(t.TempDir(), "absent.csv"), "--config", iniPath,
		"--section", "warehouse", "--table", "t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{",", ',', false},
		{";", ';', false},
		{"|", '|', false},
		{`\t`, '\t', false},
		{"tab", '\t', false},
		{"", 0, true},
		{";;", 0, true},
		{`"`, 0, true},
		{"\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDelimiter(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, pipekit.ExitUsageError, pipekit.ExitCodeForError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectApprover(t *testing.T) {
	assert.IsType(t, &ui.ForcedApprover{}, selectApprover(false, false, false))
	assert.IsType(t, &ui.ForcedApprover{}, selectApprover(true, true, false))
	assert.IsType(t, &ui.InteractiveApprover{}, selectApprover(false, true, false))
}

func TestResolveTask_FromFlags(t *testing.T) {
	resetFlags(t)
	notifyFlags.taskID = "extract"
	notifyFlags.dagID = "nightly"
	notifyFlags.state = "failed"
	notifyFlags.executionDate = "2024-05-01T06:30:00+02:00"

	task, err := resolveTask(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "extract", task.TaskID)
	assert.Equal(t, "nightly", task.DagID)
	assert.False(t, task.Succeeded())
	assert.True(t, task.ExecutionDate.Equal(time.Date(2024, 5, 1, 4, 30, 0, 0, time.UTC)))
}

func TestResolveTask_MissingTaskID(t *testing.T) {
	resetFlags(t)

	_, err := resolveTask(strings.NewReader(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipekit.ErrInvalidConfig)
}

func TestResolveTask_FromStdin(t *testing.T) {
	resetFlags(t)
	notifyFlags.contextFile = "-"
	ctxJSON := `{"task_instance": {"state": "success", "task_id": "load", "dag_id": "daily"},
		"execution_date": "2024-05-01T00:00:00+00:00"}`

	task, err := resolveTask(strings.NewReader(ctxJSON))
	require.NoError(t, err)
	assert.Equal(t, "load", task.TaskID)
	assert.True(t, task.Succeeded())
}

func TestResolveTask_MissingContextFile(t *testing.T) {
	resetFlags(t)
	notifyFlags.contextFile = filepath.Join(t.TempDir(), "absent.json")

	_, err := resolveTask(strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, pipekit.ExitConfigError, pipekit.ExitCodeForError(err))
}

func TestNotifyCmd_DryRun(t *testing.T) {
	resetFlags(t)
	t.Setenv("GMAIL_SECRET", "")
	t.Setenv("AIRFLOW_VAR_GMAIL_SECRET", "")

	out, err := runRoot(t, "notify", "--task-id", "extract", "--dag-id", "daily",
		"--state", "failed", "--sender", "etl@example.com", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Subject: Airflow Report: Task extract failed")
	assert.Contains(t, out, "To: <etl@example.com>")
	assert.Contains(t, out, "The task extract on DAG daily")
	assert.Contains(t, out, "Email sent successfully!")
}

func TestNotifyCmd_ProjectFileAndMetrics(t *testing.T) {
	resetFlags(t)

	var pushes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/metrics/job/nightly") {
			pushes.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	project := writeFile(t, "pipekit.yaml", `notification:
  sender: etl@example.com
  recipient: ops@example.com
  subject_prefix: Nightly
metrics:
  pushgateway_url: `+srv.URL+`
  job: nightly
timeout: 30s
`)

	out, err := runRoot(t, "notify", "--project-file", project, "--task-id", "extract",
		"--recipient", "oncall@example.com", "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Subject: Nightly: Task extract executed successfully")
	assert.Contains(t, out, "To: <oncall@example.com>")
	assert.Equal(t, int32(1), pushes.Load())
}

func TestNotifyCmd_InvalidSender(t *testing.T) {
	resetFlags(t)

	_, err := runRoot(t, "notify", "--task-id", "extract", "--sender", "not an address", "--dry-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipekit.ErrInvalidConfig)
	assert.Equal(t, pipekit.ExitConfigError, pipekit.ExitCodeForError(err))
}

func TestNotifyCmd_MissingProjectFile(t *testing.T) {
	resetFlags(t)

	_, err := runRoot(t, "notify", "--project-file", filepath.Join(t.TempDir(), "absent.yaml"),
		"--task-id", "extract", "--dry-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipekit.ErrConfigNotFound)
}

func TestResolveEffectiveTimeout(t *testing.T) {
	resetFlags(t)

	cfg := &config.ProjectConfig{Timeout: "45s"}
	got, err := resolveEffectiveTimeout(connectCmd, cfg, defaultTimeout)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, got)

	require.NoError(t, connectCmd.Flags().Set("timeout", "5s"))
	got, err = resolveEffectiveTimeout(connectCmd, cfg, connectFlags.timeout)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, got)
}

func TestNewRecorder(t *testing.T) {
	rec, err := newRecorder(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NullRecorder{}, rec)

	cfg := &config.ProjectConfig{Metrics: config.MetricsConfig{PushgatewayURL: "http://gateway:9091"}}
	rec, err = newRecorder(cfg)
	require.NoError(t, err)
	assert.IsType(t, &metrics.PushRecorder{}, rec)
}

func TestVersionCmd(t *testing.T) {
	resetFlags(t)

	out, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "pipekit "), out)
}
