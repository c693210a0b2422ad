package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"transitions/pkg/datasetapi"
	"transitions/pkg/frame"
	"transitions/pkg/transition"
)

const (
	// Plugin identifies the templates in slugs.
	Plugin = "transitions"
	// Version is the template version shared by the catalog.
	Version = "1.0.0"
)

// Template keys.
const (
	KeyTransitions     = "transitions"
	KeyPreviousDates   = "previous_dates"
	KeyPreviousResults = "previous_results"
	KeyUniques         = "uniques"
)

var errNoObservations = errors.New("dataset: observations loader not configured")

var formats = []datasetapi.Format{datasetapi.FormatJSON, datasetapi.FormatCSV, datasetapi.FormatHTML}

func stringParam(name, description, def string) datasetapi.Parameter {
	raw, _ := json.Marshal(def)
	return datasetapi.Parameter{Name: name, Type: datasetapi.TypeString, Description: description, Default: raw}
}

func roleParams() []datasetapi.Parameter {
	return []datasetapi.Parameter{
		stringParam("subject", "Subject identifier column.", "subject"),
		stringParam("timepoint", "Observation date column.", "timepoint"),
		stringParam("result", "Binary or ordered categorical result column.", "result"),
		{
			Name:        "lookup",
			Type:        datasetapi.TypeString,
			Description: "Predecessor lookup strategy.",
			Enum:        []string{"indexed", "scan"},
			Default:     json.RawMessage(`"indexed"`),
		},
	}
}

// roleColumns describes the role columns as they appear before the source is
// bound. Names follow the subject, timepoint and result parameters; run
// results carry the exact schema.
func roleColumns() []datasetapi.Column {
	return []datasetapi.Column{
		{Name: "subject", Type: datasetapi.TypeAny, Description: "Column named by the subject parameter: integer ids or factor labels."},
		{Name: "timepoint", Type: datasetapi.TypeString, Format: "date", Description: "Column named by the timepoint parameter, as a date."},
		{Name: "result", Type: datasetapi.TypeAny, Description: "Column named by the result parameter: 0/1 integers or ordered factor labels."},
	}
}

// Templates returns the transition dataset templates, unbound.
func Templates() []datasetapi.Template {
	transitionParams := append(roleParams(),
		stringParam("output", "Name of the appended transition column.", transition.DefaultTransitionColumn),
		datasetapi.Parameter{Name: "cap", Type: datasetapi.TypeInteger, Description: "Maximum transition magnitude; 0 disables.", Default: json.RawMessage(`0`)},
		datasetapi.Parameter{Name: "modulate", Type: datasetapi.TypeInteger, Description: "Divisor applied to the magnitude, rounding up; 0 or 1 disables.", Default: json.RawMessage(`0`)},
	)
	return []datasetapi.Template{
		{
			Key:           KeyTransitions,
			Version:       Version,
			Title:         "Result transitions",
			Description:   "Observations with the signed change from each subject's previous result.",
			Parameters:    transitionParams,
			Columns:       append(roleColumns(), datasetapi.Column{Name: transition.DefaultTransitionColumn, Type: datasetapi.TypeInteger, Description: "Column named by the output parameter."}),
			Metadata:      datasetapi.Metadata{Source: "observations", Tags: []string{"longitudinal", "transition"}},
			OutputFormats: formats,
			Binder:        bindFrame(transition.AddTransitions, true),
		},
		{
			Key:           KeyPreviousDates,
			Version:       Version,
			Title:         "Previous observation dates",
			Description:   "Observations with the date of each subject's preceding observation.",
			Parameters:    append(roleParams(), stringParam("output", "Name of the appended date column.", transition.DefaultPrevDateColumn)),
			Columns:       append(roleColumns(), datasetapi.Column{Name: transition.DefaultPrevDateColumn, Type: datasetapi.TypeString, Format: "date", Description: "Column named by the output parameter."}),
			Metadata:      datasetapi.Metadata{Source: "observations", Tags: []string{"longitudinal"}},
			OutputFormats: formats,
			Binder:        bindFrame(transition.AddPrevDate, false),
		},
		{
			Key:           KeyPreviousResults,
			Version:       Version,
			Title:         "Previous results",
			Description:   "Observations with the result at each subject's preceding observation.",
			Parameters:    append(roleParams(), stringParam("output", "Name of the appended result column.", transition.DefaultPrevResultColumn)),
			Columns:       append(roleColumns(), datasetapi.Column{Name: transition.DefaultPrevResultColumn, Type: datasetapi.TypeAny, Description: "Column named by the output parameter, typed like the result column."}),
			Metadata:      datasetapi.Metadata{Source: "observations", Tags: []string{"longitudinal"}},
			OutputFormats: formats,
			Binder:        bindFrame(transition.AddPrevResult, false),
		},
		{
			Key:           KeyUniques,
			Version:       Version,
			Title:         "Unique values",
			Description:   "Distinct subjects, timepoints and results, each sorted ascending.",
			Parameters:    roleParams(),
			Columns:       roleColumns(),
			Metadata:      datasetapi.Metadata{Source: "observations", Tags: []string{"inspection"}},
			OutputFormats: formats,
			Binder:        bindUniques,
		},
	}
}

type addFunc func(*frame.Frame, ...transition.Option) (*frame.Frame, []transition.Warning, error)

func bindFrame(add addFunc, adjustable bool) datasetapi.Binder {
	return func(env datasetapi.Environment) (datasetapi.Runner, error) {
		now := clock(env)
		return func(ctx context.Context, req datasetapi.RunRequest) (datasetapi.RunResult, error) {
			f, err := load(ctx, env)
			if err != nil {
				return datasetapi.RunResult{}, err
			}
			opts, err := options(req.Parameters, adjustable)
			if err != nil {
				return datasetapi.RunResult{}, err
			}
			out, warnings, err := add(f, opts...)
			if err != nil {
				return datasetapi.RunResult{}, err
			}
			result := datasetapi.ResultFromFrame(out)
			result.Metadata = runMetadata(out.NRows(), warnings)
			result.GeneratedAt = now()
			return result, nil
		}, nil
	}
}

func bindUniques(env datasetapi.Environment) (datasetapi.Runner, error) {
	now := clock(env)
	return func(ctx context.Context, req datasetapi.RunRequest) (datasetapi.RunResult, error) {
		f, err := load(ctx, env)
		if err != nil {
			return datasetapi.RunResult{}, err
		}
		opts, err := options(req.Parameters, false)
		if err != nil {
			return datasetapi.RunResult{}, err
		}
		u, warnings, err := transition.GetUniques(f, opts...)
		if err != nil {
			return datasetapi.RunResult{}, err
		}
		result := UniquesResult(u)
		result.Metadata = runMetadata(f.NRows(), warnings)
		result.GeneratedAt = now()
		return result, nil
	}, nil
}

// UniquesResult lays the three distinct-value columns side by side, one row
// per position; shorter columns are padded with nil.
func UniquesResult(u transition.Uniques) datasetapi.RunResult {
	cols := []frame.Column{u.Subjects, u.Timepoints, u.Results}
	n := 0
	for _, col := range cols {
		n = max(n, col.Len())
	}
	rows := make([]map[string]any, n)
	for i := range rows {
		row := make(map[string]any, len(cols))
		for _, col := range cols {
			if i < col.Len() {
				row[col.Name()] = col.Value(i)
			} else {
				row[col.Name()] = nil
			}
		}
		rows[i] = row
	}
	schema := make([]datasetapi.Column, len(cols))
	for i, col := range cols {
		schema[i] = datasetapi.ColumnFor(col)
	}
	return datasetapi.RunResult{Schema: schema, Rows: rows}
}

func clock(env datasetapi.Environment) func() time.Time {
	if env.Now != nil {
		return env.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

func load(ctx context.Context, env datasetapi.Environment) (*frame.Frame, error) {
	if env.Observations == nil {
		return nil, errNoObservations
	}
	f, err := env.Observations.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("dataset: load observations: %w", err)
	}
	return f, nil
}

func runMetadata(rows int, warnings []transition.Warning) map[string]any {
	meta := map[string]any{"source_rows": rows}
	if len(warnings) > 0 {
		msgs := make([]string, len(warnings))
		for i, w := range warnings {
			msgs[i] = w.String()
		}
		meta["warnings"] = msgs
	}
	return meta
}

// options maps validated template parameters onto transition options.
func options(params map[string]any, adjustable bool) ([]transition.Option, error) {
	cols := transition.DefaultColumns()
	if v, ok := params["subject"].(string); ok {
		cols.Subject = v
	}
	if v, ok := params["timepoint"].(string); ok {
		cols.Timepoint = v
	}
	if v, ok := params["result"].(string); ok {
		cols.Result = v
	}
	opts := []transition.Option{transition.WithColumns(cols)}
	if v, ok := params["lookup"].(string); ok {
		strategy, err := transition.ParseStrategy(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transition.WithLookup(strategy))
	}
	if v, ok := params["output"].(string); ok {
		opts = append(opts, transition.WithOutput(v))
	}
	if adjustable {
		if v, ok := params["cap"].(int); ok {
			opts = append(opts, transition.WithCap(v))
		}
		if v, ok := params["modulate"].(int); ok {
			opts = append(opts, transition.WithModulate(v))
		}
	}
	return opts, nil
}
