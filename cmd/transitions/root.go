package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"transitions/internal/config"
	"transitions/internal/observability"
	"transitions/internal/source"
	"transitions/pkg/datasetapi"
	"transitions/pkg/frame"
	"transitions/pkg/transition"
)

type rootOptions struct {
	configPath  string
	input       string
	subject     string
	timepoint   string
	result      string
	lookup      string
	format      string
	metricsFile string
	verbose     bool
}

// app carries the state shared by every subcommand once flags are parsed.
type app struct {
	opts     rootOptions
	cfg      config.Config
	format   datasetapi.Format
	logger   *slog.Logger
	registry *prometheus.Registry
	stats    *observability.Expvar
	recorder observability.Recorder
	stdin    io.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "transitions",
		Short:         "Derive result transitions from longitudinal observations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "job file (YAML)")
	flags.StringVarP(&a.opts.input, "input", "i", "", "observation CSV path, '-' for stdin")
	flags.StringVar(&a.opts.subject, "subject", "", "subject column name")
	flags.StringVar(&a.opts.timepoint, "timepoint", "", "timepoint column name")
	flags.StringVar(&a.opts.result, "result", "", "result column name")
	flags.StringVar(&a.opts.lookup, "lookup", "", "predecessor lookup strategy (indexed|scan)")
	flags.StringVarP(&a.opts.format, "format", "f", "csv", "output format (csv|json)")
	flags.StringVar(&a.opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "log operation statistics")

	root.AddCommand(
		newGetCmd(a),
		newPrevDateCmd(a),
		newPrevResultCmd(a),
		newUniquesCmd(a),
		newTemplatesCmd(a),
		newExportCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.opts.verbose {
		level = slog.LevelInfo
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	a.stdin = cmd.InOrStdin()

	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return a.fail(err)
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return a.fail(err)
	}
	a.cfg = cfg

	switch strings.ToLower(a.opts.format) {
	case string(datasetapi.FormatCSV):
		a.format = datasetapi.FormatCSV
	case string(datasetapi.FormatJSON):
		a.format = datasetapi.FormatJSON
	default:
		return a.fail(fmt.Errorf("unsupported output format %q", a.opts.format))
	}

	a.registry = prometheus.NewRegistry()
	prom, err := observability.NewPrometheus(a.registry)
	if err != nil {
		return a.fail(err)
	}
	a.stats = observability.NewExpvar("")
	a.recorder = observability.Multi{prom, a.stats}
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if a.opts.input != "" {
		cfg.Source.Driver = source.DriverCSV
		cfg.Source.Path = a.opts.input
	}
	if changed("subject") {
		cfg.Columns.Subject = a.opts.subject
	}
	if changed("timepoint") {
		cfg.Columns.Timepoint = a.opts.timepoint
	}
	if changed("result") {
		cfg.Columns.Result = a.opts.result
	}
	if changed("lookup") {
		cfg.Lookup = a.opts.lookup
	}
}

func (a *app) teardown() error {
	if a.opts.verbose && a.stats != nil {
		snap := a.stats.Snapshot()
		for op, counts := range snap.Results {
			a.logger.Info("operation", "name", op, "success", counts["success"], "error", counts["error"], "duration_ms", snap.DurationsMS[op])
		}
	}
	if a.opts.metricsFile == "" || a.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.opts.metricsFile, a.registry); err != nil {
		return a.fail(fmt.Errorf("write metrics: %w", err))
	}
	return nil
}

// fail logs err once and hands it back to cobra for the exit status.
func (a *app) fail(err error) error {
	if a.logger != nil {
		a.logger.Error(err.Error())
	}
	return err
}

func (a *app) loadFrame(ctx context.Context) (*frame.Frame, error) {
	spec := a.cfg.SourceSpec()
	if spec.Driver == source.DriverCSV && spec.Path == "-" {
		spec.Path = ""
		spec.Reader = a.stdin
	}
	var f *frame.Frame
	err := observability.Time(ctx, a.recorder, "source_load", func() error {
		src, closer, err := source.Open(ctx, spec)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		f, err = src.Load(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// loader adapts the configured source for the dataset catalog.
func (a *app) loader() datasetapi.FrameLoader {
	return datasetapi.FrameLoaderFunc(a.loadFrame)
}

func (a *app) options(output string) []transition.Option {
	return []transition.Option{
		transition.WithColumns(a.cfg.TransitionColumns()),
		transition.WithLookup(a.cfg.Strategy()),
		transition.WithOutput(output),
	}
}

func (a *app) warn(op string, warnings []transition.Warning) {
	for _, w := range warnings {
		a.logger.Warn(w.Message, "op", op, "role", w.Role.String(), "column", w.Column)
	}
}

// wrap logs any error returned by run before cobra sees it.
func (a *app) wrap(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := run(cmd, args); err != nil {
			return a.fail(err)
		}
		return nil
	}
}
