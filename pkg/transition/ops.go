package transition

import (
	"fmt"

	"transitions/pkg/frame"
)

// Operation names carried by OpError.
const (
	OpGetTransitions = "get_transitions"
	OpAddTransitions = "add_transitions"
	OpGetPrevDate    = "get_prev_date"
	OpAddPrevDate    = "add_prev_date"
	OpGetPrevResult  = "get_prev_result"
	OpAddPrevResult  = "add_prev_result"
	OpUniques        = "uniques"
)

// Default output column names.
const (
	DefaultTransitionColumn = "transition"
	DefaultPrevDateColumn   = "prev_date"
	DefaultPrevResultColumn = "prev_result"
)

type options struct {
	columns  Columns
	output   string
	cap      int
	modulate int
	strategy Strategy
}

// Option customises an operation.
type Option func(*options)

// WithColumns sets all three role column names at once.
func WithColumns(cols Columns) Option {
	return func(o *options) { o.columns = cols }
}

// WithSubject sets the subject column name.
func WithSubject(name string) Option {
	return func(o *options) { o.columns.Subject = name }
}

// WithTimepoint sets the timepoint column name.
func WithTimepoint(name string) Option {
	return func(o *options) { o.columns.Timepoint = name }
}

// WithResult sets the result column name.
func WithResult(name string) Option {
	return func(o *options) { o.columns.Result = name }
}

// WithOutput sets the name of the column produced by the Add operations and
// by GetPrevResult.
func WithOutput(name string) Option {
	return func(o *options) { o.output = name }
}

// WithCap limits transition magnitudes; zero disables the cap.
func WithCap(cap int) Option {
	return func(o *options) { o.cap = cap }
}

// WithModulate divides transition magnitudes (rounding up); zero and one
// disable modulation.
func WithModulate(modulate int) Option {
	return func(o *options) { o.modulate = modulate }
}

// WithLookup selects the predecessor lookup strategy.
func WithLookup(strategy Strategy) Option {
	return func(o *options) { o.strategy = strategy }
}

func buildOptions(defaultOutput string, opts []Option) options {
	o := options{columns: DefaultColumns(), output: defaultOutput}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func opErr(op string, err error) error {
	return &OpError{Op: op, Err: err}
}

// GetTransitions returns one transition per row of f, in row order. The
// earliest row of every subject has a missing transition.
func GetTransitions(f *frame.Frame, opts ...Option) ([]frame.NullInt, []Warning, error) {
	o := buildOptions(DefaultTransitionColumn, opts)
	ds, warnings, err := NewDataset(f, o.columns, o.strategy)
	if err != nil {
		return nil, nil, opErr(OpGetTransitions, err)
	}
	out, err := ds.Transitions(o.cap, o.modulate)
	if err != nil {
		return nil, nil, opErr(OpGetTransitions, err)
	}
	return out, warnings, nil
}

// AddTransitions returns a copy of f with the transitions appended as an
// integer column.
func AddTransitions(f *frame.Frame, opts ...Option) (*frame.Frame, []Warning, error) {
	o := buildOptions(DefaultTransitionColumn, opts)
	ds, warnings, err := prepareAdd(f, o)
	if err != nil {
		return nil, nil, opErr(OpAddTransitions, err)
	}
	values, err := ds.Transitions(o.cap, o.modulate)
	if err != nil {
		return nil, nil, opErr(OpAddTransitions, err)
	}
	out, err := appendTo(f, ds, frame.NullIntegers(o.output, values))
	if err != nil {
		return nil, nil, opErr(OpAddTransitions, err)
	}
	return out, warnings, nil
}

// GetPrevDate returns, per row, the preceding timepoint of the row's subject.
func GetPrevDate(f *frame.Frame, opts ...Option) ([]frame.NullDate, []Warning, error) {
	o := buildOptions(DefaultPrevDateColumn, opts)
	ds, warnings, err := NewDataset(f, o.columns, o.strategy)
	if err != nil {
		return nil, nil, opErr(OpGetPrevDate, err)
	}
	out, err := ds.PreviousDates()
	if err != nil {
		return nil, nil, opErr(OpGetPrevDate, err)
	}
	return out, warnings, nil
}

// AddPrevDate returns a copy of f with the previous dates appended.
func AddPrevDate(f *frame.Frame, opts ...Option) (*frame.Frame, []Warning, error) {
	o := buildOptions(DefaultPrevDateColumn, opts)
	ds, warnings, err := prepareAdd(f, o)
	if err != nil {
		return nil, nil, opErr(OpAddPrevDate, err)
	}
	values, err := ds.PreviousDates()
	if err != nil {
		return nil, nil, opErr(OpAddPrevDate, err)
	}
	out, err := appendTo(f, ds, frame.NullDates(o.output, values))
	if err != nil {
		return nil, nil, opErr(OpAddPrevDate, err)
	}
	return out, warnings, nil
}

// GetPrevResult returns, per row, the result at the preceding timepoint of
// the row's subject. The column has the result column's type.
func GetPrevResult(f *frame.Frame, opts ...Option) (frame.Column, []Warning, error) {
	o := buildOptions(DefaultPrevResultColumn, opts)
	ds, warnings, err := NewDataset(f, o.columns, o.strategy)
	if err != nil {
		return frame.Column{}, nil, opErr(OpGetPrevResult, err)
	}
	col, err := ds.PreviousResultColumn(o.output)
	if err != nil {
		return frame.Column{}, nil, opErr(OpGetPrevResult, err)
	}
	return col, warnings, nil
}

// AddPrevResult returns a copy of f with the previous results appended.
func AddPrevResult(f *frame.Frame, opts ...Option) (*frame.Frame, []Warning, error) {
	o := buildOptions(DefaultPrevResultColumn, opts)
	ds, warnings, err := prepareAdd(f, o)
	if err != nil {
		return nil, nil, opErr(OpAddPrevResult, err)
	}
	col, err := ds.PreviousResultColumn(o.output)
	if err != nil {
		return nil, nil, opErr(OpAddPrevResult, err)
	}
	out, err := appendTo(f, ds, col)
	if err != nil {
		return nil, nil, opErr(OpAddPrevResult, err)
	}
	return out, warnings, nil
}

// GetUniques returns the distinct subjects, timepoints and results of f.
func GetUniques(f *frame.Frame, opts ...Option) (Uniques, []Warning, error) {
	o := buildOptions("", opts)
	ds, warnings, err := NewDataset(f, o.columns, o.strategy)
	if err != nil {
		return Uniques{}, nil, opErr(OpUniques, err)
	}
	u, err := ds.Uniques()
	if err != nil {
		return Uniques{}, nil, opErr(OpUniques, err)
	}
	return u, warnings, nil
}

// prepareAdd validates the role columns and rejects an output name that is
// already taken before any computation runs.
func prepareAdd(f *frame.Frame, o options) (*Dataset, []Warning, error) {
	ds, warnings, err := NewDataset(f, o.columns, o.strategy)
	if err != nil {
		return nil, nil, err
	}
	if f.Has(o.output) {
		return nil, nil, fmt.Errorf("%w: output column `%s` already exists", ErrDuplicateColumnName, o.output)
	}
	return ds, warnings, nil
}

// appendTo swaps the coerced role columns into a copy of f and appends col.
func appendTo(f *frame.Frame, ds *Dataset, col frame.Column) (*frame.Frame, error) {
	out := f
	for _, role := range []frame.Column{ds.subject, ds.timepoint, ds.result} {
		var err error
		if out, err = out.Replace(role); err != nil {
			return nil, err
		}
	}
	return out.WithColumn(col)
}
