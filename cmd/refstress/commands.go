package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rnkv/refbase-go"
	"github.com/rnkv/refbase-go/internal/stress"
	"github.com/rnkv/refbase-go/internal/telemetry"
)

// errGuaranteesViolated makes the process exit non-zero when a scenario fails.
var errGuaranteesViolated = errors.New("one or more scenarios violated lifetime guarantees")

type rootOptions struct {
	logLevel  string
	logFormat string
}

type runOptions struct {
	configPath      string
	scenarios       []string
	metricsExporter string
	traceExporter   string
	metricsAddr     string
	reportPath      string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:           "refstress",
		Short:         "Torture-test refbase strong and weak handles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(
		newRunCmd(&opts),
		newScenariosCmd(),
		newConfigCmd(),
	)

	return rootCmd
}

func newRunCmd(root *rootOptions) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured scenarios and print a YAML report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), root.logLevel, root.logFormat)
			if err != nil {
				return err
			}
			return runStress(cmd, opts, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file (defaults to the built-in configuration)")
	cmd.Flags().StringSliceVarP(&opts.scenarios, "scenario", "s", nil, "Run only the named scenarios")
	cmd.Flags().StringVar(&opts.metricsExporter, "metrics-exporter", "", "Metric exporter: prometheus, stdout or none")
	cmd.Flags().StringVar(&opts.traceExporter, "trace-exporter", "", "Trace exporter: otlp, stdout or none")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics on this address while running (prometheus exporter only)")
	cmd.Flags().StringVarP(&opts.reportPath, "report", "o", "", "Write the report to this file instead of stdout")

	return cmd
}

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range stress.Scenarios() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the built-in configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := stress.DefaultConfig().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func runStress(cmd *cobra.Command, opts runOptions, logger *slog.Logger) error {
	cfg := stress.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = stress.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}

	if len(opts.scenarios) > 0 {
		cfg.Scenarios = slices.DeleteFunc(cfg.Scenarios, func(sc stress.ScenarioConfig) bool {
			return !slices.Contains(opts.scenarios, sc.Name)
		})
	}
	if opts.metricsExporter != "" {
		cfg.Telemetry.MetricExporter = opts.metricsExporter
	}
	if opts.traceExporter != "" {
		cfg.Telemetry.TraceExporter = opts.traceExporter
	}

	runner, err := stress.NewRunner(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	providers, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	refbase.SetLogger(logger)
	defer refbase.SetLogger(nil)

	if opts.metricsAddr != "" {
		stop, err := serveMetrics(opts.metricsAddr, providers.MetricsHandler(), logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	report, runErr := runner.Run(ctx)

	out := cmd.OutOrStdout()
	if opts.reportPath != "" {
		f, err := os.Create(opts.reportPath)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	if !report.Passed() {
		return errGuaranteesViolated
	}
	return nil
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (stop func(), err error) {
	if handler == nil {
		return nil, errors.New("--metrics-addr requires the prometheus metric exporter")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}
