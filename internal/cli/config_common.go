package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vvka-141/pipekit/internal/config"
	"github.com/vvka-141/pipekit/internal/db"
	"github.com/vvka-141/pipekit/internal/metrics"
	"github.com/vvka-141/pipekit/internal/secrets"
	"github.com/vvka-141/pipekit/pkg/pipekit"
)

// defaultTimeout bounds every command unless --timeout or the project file
// says otherwise.
const defaultTimeout = 3 * time.Minute

// metricsFlushTimeout bounds the final Pushgateway push, which runs after the
// command context may already have expired.
const metricsFlushTimeout = 10 * time.Second

// loadProjectConfig loads godotenv and project configuration.
// A missing ./pipekit.yaml yields an empty config; a missing explicit
// --project-file is a configuration error.
func loadProjectConfig(path string) (*config.ProjectConfig, error) {
	_ = godotenv.Load()

	var (
		projectCfg *config.ProjectConfig
		err        error
	)
	if path != "" {
		projectCfg, err = config.LoadFile(path)
	} else {
		projectCfg, err = config.Load(".")
	}
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			if path == "" {
				return &config.ProjectConfig{}, nil
			}
			return nil, fmt.Errorf("project file %s: %w", path, pipekit.ErrConfigNotFound)
		}
		return nil, fmt.Errorf("failed to load project file: %w", err)
	}
	return projectCfg, nil
}

// resolveEffectiveTimeout returns the effective timeout, preferring the
// project file if the flag wasn't set.
func resolveEffectiveTimeout(
	cmd *cobra.Command,
	projectCfg *config.ProjectConfig,
	flagTimeout time.Duration,
) (time.Duration, error) {
	if cmd.Flags().Changed("timeout") || projectCfg == nil {
		return flagTimeout, nil
	}
	return projectCfg.TimeoutDuration(flagTimeout)
}

// commandContext returns a context bounded by timeout that is also cancelled
// on SIGINT or SIGTERM.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\n[INTERRUPT] Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// newRecorder returns a Pushgateway recorder when the project file configures
// one, and a no-op recorder otherwise.
func newRecorder(projectCfg *config.ProjectConfig) (metrics.Recorder, error) {
	if projectCfg == nil || projectCfg.Metrics.PushgatewayURL == "" {
		return metrics.NullRecorder{}, nil
	}
	job := projectCfg.Metrics.Job
	if job == "" {
		job = metrics.DefaultJob
	}
	rec, err := metrics.NewPushRecorder(projectCfg.Metrics.PushgatewayURL, job)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return rec, nil
}

// flushMetrics pushes recorded metrics. A failed push is logged and never
// changes the command's outcome.
func flushMetrics(rec metrics.Recorder, logger pipekit.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsFlushTimeout)
	defer cancel()
	if err := rec.Flush(ctx); err != nil {
		logger.Error("Failed to push metrics: %v", err)
	}
}

// observe records the duration and outcome of one step.
func observe(rec metrics.Recorder, step string, started time.Time, err error) {
	rec.ObserveStep(step, metrics.StatusOf(err), time.Since(started))
}

// buildSecretStore assembles the notification secret lookup chain: the
// process environment and dotenv files first, then the scheduler metadata
// database when the project file names one. The returned closer releases the
// metadata connection.
func buildSecretStore(
	ctx context.Context,
	projectCfg *config.ProjectConfig,
	extraEnvFiles []string,
	logger pipekit.Logger,
) (pipekit.SecretStore, func(), error) {
	noop := func() {}

	var envFiles []string
	if projectCfg != nil {
		envFiles = append(envFiles, projectCfg.Secrets.EnvFiles...)
	}
	envFiles = append(envFiles, extraEnvFiles...)

	envStore, err := secrets.NewEnvStore(envFiles...)
	if err != nil {
		return nil, noop, err
	}
	if projectCfg == nil || projectCfg.Secrets.MetadataINI == "" {
		return envStore, noop, nil
	}

	section := projectCfg.Secrets.MetadataSection
	if section == "" {
		return nil, noop, fmt.Errorf("secrets.metadata_section is required with secrets.metadata_ini: %w", pipekit.ErrInvalidConfig)
	}

	logger.Verbose("Secrets fall back to the variable table via [%s] in %s", section, projectCfg.Secrets.MetadataINI)
	handle, err := db.Connect(ctx, projectCfg.Secrets.MetadataINI, section, logger)
	if err != nil {
		return nil, noop, err
	}
	closer := func() {
		if cerr := handle.Close(context.Background()); cerr != nil {
			logger.Error("Failed to close metadata connection: %v", cerr)
		}
	}
	return secrets.NewChainStore(envStore, secrets.NewPostgresStore(handle)), closer, nil
}
