package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"transitions/internal/blob"
	"transitions/internal/dataset"
	"transitions/internal/export"
	"transitions/internal/observability"
	"transitions/pkg/datasetapi"
	"transitions/pkg/frame"
	"transitions/pkg/transition"
)

// outputFlags are shared by the commands that derive one column.
type outputFlags struct {
	output string
	add    bool
}

func (o *outputFlags) register(cmd *cobra.Command, def string) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "", fmt.Sprintf("name of the derived column (default %q)", def))
	cmd.Flags().BoolVar(&o.add, "add", false, "append the derived column to the observations")
}

func (a *app) outputName(flag, def string) string {
	switch {
	case flag != "":
		return flag
	case a.cfg.Output != "":
		return a.cfg.Output
	default:
		return def
	}
}

func newGetCmd(a *app) *cobra.Command {
	var (
		out      outputFlags
		maxStep  int
		modulate int
	)
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Compute the signed result transition for every observation",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f, err := a.loadFrame(ctx)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("cap") {
			maxStep = a.cfg.Cap
		}
		if !cmd.Flags().Changed("modulate") {
			modulate = a.cfg.Modulate
		}
		name := a.outputName(out.output, transition.DefaultTransitionColumn)
		opts := append(a.options(name), transition.WithCap(maxStep), transition.WithModulate(modulate))

		var result *frame.Frame
		if out.add {
			err = a.time(ctx, transition.OpAddTransitions, func() (warnings []transition.Warning, err error) {
				result, warnings, err = transition.AddTransitions(f, opts...)
				return warnings, err
			})
		} else {
			err = a.time(ctx, transition.OpGetTransitions, func() ([]transition.Warning, error) {
				values, warnings, err := transition.GetTransitions(f, opts...)
				if err != nil {
					return warnings, err
				}
				result, err = frame.New(frame.NullIntegers(name, values))
				return warnings, err
			})
		}
		if err != nil {
			return err
		}
		return a.writeFrame(cmd.OutOrStdout(), result)
	})
	out.register(cmd, transition.DefaultTransitionColumn)
	cmd.Flags().IntVar(&maxStep, "cap", 0, "maximum transition magnitude (0 disables)")
	cmd.Flags().IntVar(&modulate, "modulate", 0, "divide magnitudes by this, rounding up (0 or 1 disables)")
	return cmd
}

func newPrevDateCmd(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "prev-date",
		Short: "Find each observation's previous timepoint for the same subject",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f, err := a.loadFrame(ctx)
		if err != nil {
			return err
		}
		name := a.outputName(out.output, transition.DefaultPrevDateColumn)
		opts := a.options(name)
		var result *frame.Frame
		if out.add {
			err = a.time(ctx, transition.OpAddPrevDate, func() (warnings []transition.Warning, err error) {
				result, warnings, err = transition.AddPrevDate(f, opts...)
				return warnings, err
			})
		} else {
			err = a.time(ctx, transition.OpGetPrevDate, func() ([]transition.Warning, error) {
				values, warnings, err := transition.GetPrevDate(f, opts...)
				if err != nil {
					return warnings, err
				}
				result, err = frame.New(frame.NullDates(name, values))
				return warnings, err
			})
		}
		if err != nil {
			return err
		}
		return a.writeFrame(cmd.OutOrStdout(), result)
	})
	out.register(cmd, transition.DefaultPrevDateColumn)
	return cmd
}

func newPrevResultCmd(a *app) *cobra.Command {
	var out outputFlags
	cmd := &cobra.Command{
		Use:   "prev-result",
		Short: "Find the result recorded at each observation's previous timepoint",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f, err := a.loadFrame(ctx)
		if err != nil {
			return err
		}
		name := a.outputName(out.output, transition.DefaultPrevResultColumn)
		opts := a.options(name)
		var result *frame.Frame
		if out.add {
			err = a.time(ctx, transition.OpAddPrevResult, func() (warnings []transition.Warning, err error) {
				result, warnings, err = transition.AddPrevResult(f, opts...)
				return warnings, err
			})
		} else {
			err = a.time(ctx, transition.OpGetPrevResult, func() ([]transition.Warning, error) {
				col, warnings, err := transition.GetPrevResult(f, opts...)
				if err != nil {
					return warnings, err
				}
				result, err = frame.New(col.WithName(name))
				return warnings, err
			})
		}
		if err != nil {
			return err
		}
		return a.writeFrame(cmd.OutOrStdout(), result)
	})
	out.register(cmd, transition.DefaultPrevResultColumn)
	return cmd
}

func newUniquesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uniques",
		Short: "List the distinct subjects, timepoints and results",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f, err := a.loadFrame(ctx)
		if err != nil {
			return err
		}
		var u transition.Uniques
		err = a.time(ctx, transition.OpUniques, func() (warnings []transition.Warning, err error) {
			u, warnings, err = transition.GetUniques(f, a.options("")...)
			return warnings, err
		})
		if err != nil {
			return err
		}
		return a.writeResult(cmd.OutOrStdout(), "Unique values", dataset.UniquesResult(u))
	})
	return cmd
}

func newTemplatesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List the dataset templates",
		Args:  cobra.NoArgs,
		RunE: a.wrap(func(cmd *cobra.Command, _ []string) error {
			catalog, err := dataset.NewCatalog(datasetapi.Environment{Observations: a.loader()}, a.recorder)
			if err != nil {
				return err
			}
			descriptors := catalog.Templates()
			w := cmd.OutOrStdout()
			if a.format == datasetapi.FormatJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(descriptors)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tTITLE\tFORMATS")
			for _, d := range descriptors {
				formats := make([]string, len(d.OutputFormats))
				for i, f := range d.OutputFormats {
					formats[i] = string(f)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Slug, d.Title, strings.Join(formats, ","))
			}
			return tw.Flush()
		}),
	}
}

func newExportCmd(a *app) *cobra.Command {
	var (
		template string
		formats  []string
		params   map[string]string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a dataset template and store the rendered artifacts",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.wrap(func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		catalog, err := dataset.NewCatalog(datasetapi.Environment{Observations: a.loader()}, a.recorder)
		if err != nil {
			return err
		}
		store, err := blob.New(ctx, a.cfg.BlobConfig())
		if err != nil {
			return err
		}
		requested := a.cfg.ExportFormats()
		if cmd.Flags().Changed("formats") {
			requested = requested[:0]
			for _, f := range formats {
				parsed, err := datasetapi.ParseFormat(strings.TrimSpace(f))
				if err != nil {
					return err
				}
				requested = append(requested, parsed)
			}
		}
		record, err := export.New(catalog, store, a.recorder).Export(ctx, export.Request{
			TemplateSlug: template,
			Parameters:   a.templateParams(params),
			Formats:      requested,
		})
		if err != nil {
			return err
		}
		a.logger.Info("export stored", "id", record.ID, "template", record.Template.Slug, "artifacts", len(record.Artifacts), "driver", string(store.Driver()))
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	})
	cmd.Flags().StringVarP(&template, "template", "t", dataset.KeyTransitions, "template slug or key")
	cmd.Flags().StringSliceVar(&formats, "formats", nil, "artifact formats (json,csv,html)")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "extra template parameter key=value")
	return cmd
}

// templateParams maps the configured columns and adjustments onto template
// parameters; explicit --param values win.
func (a *app) templateParams(extra map[string]string) map[string]any {
	params := map[string]any{
		"subject":   a.cfg.Columns.Subject,
		"timepoint": a.cfg.Columns.Timepoint,
		"result":    a.cfg.Columns.Result,
		"lookup":    a.cfg.Strategy().String(),
	}
	if a.cfg.Cap != 0 {
		params["cap"] = a.cfg.Cap
	}
	if a.cfg.Modulate != 0 {
		params["modulate"] = a.cfg.Modulate
	}
	if a.cfg.Output != "" {
		params["output"] = a.cfg.Output
	}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "transitions %s\n", version)
		},
	}
	// version needs no configuration
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }
	cmd.PersistentPostRunE = cmd.PersistentPreRunE
	return cmd
}

// time runs a core operation, logs its warnings and records the outcome.
func (a *app) time(ctx context.Context, op string, fn func() ([]transition.Warning, error)) error {
	var warnings []transition.Warning
	err := observability.Time(ctx, a.recorder, op, func() error {
		var err error
		warnings, err = fn()
		return err
	})
	a.warn(op, warnings)
	return err
}

func (a *app) writeFrame(w io.Writer, f *frame.Frame) error {
	return a.writeResult(w, "Observations", datasetapi.ResultFromFrame(f))
}

func (a *app) writeResult(w io.Writer, title string, result datasetapi.RunResult) error {
	rendered, err := export.Render(a.format, title, result)
	if err != nil {
		return err
	}
	if _, err := w.Write(rendered.Payload); err != nil {
		return err
	}
	if a.format == datasetapi.FormatJSON {
		_, err = io.WriteString(w, "\n")
	}
	return err
}
