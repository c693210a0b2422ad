package dataset

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"transitions/internal/observability"
	"transitions/pkg/datasetapi"
	"transitions/pkg/frame"
	"transitions/pkg/transition"
)

type recorded struct {
	op      string
	success bool
}

type memoryRecorder struct{ entries []recorded }

func (m *memoryRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.entries = append(m.entries, recorded{op, success})
}

func observations(t *testing.T) datasetapi.FrameLoader {
	t.Helper()
	f, err := frame.New(
		frame.Integers("patient", 2, 1, 1, 2),
		frame.Integers("visit", 20, 10, 20, 10),
		frame.Integers("positive", 0, 0, 1, 1),
	)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	return datasetapi.FrameLoaderFunc(func(context.Context) (*frame.Frame, error) { return f, nil })
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCatalog(t *testing.T, loader datasetapi.FrameLoader, rec *memoryRecorder) *Catalog {
	t.Helper()
	var r observability.Recorder
	if rec != nil {
		r = rec
	}
	c, err := NewCatalog(datasetapi.Environment{Observations: loader, Now: func() time.Time { return fixedNow }}, r)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

var patientParams = map[string]any{"subject": "patient", "timepoint": "visit", "result": "positive"}

func withParams(extra map[string]any) map[string]any {
	out := make(map[string]any, len(patientParams)+len(extra))
	for k, v := range patientParams {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func TestCatalogTemplates(t *testing.T) {
	c := newCatalog(t, observations(t), nil)
	var slugs []string
	for _, d := range c.Templates() {
		slugs = append(slugs, d.Slug)
	}
	want := []string{
		"transitions/previous_dates@1.0.0",
		"transitions/previous_results@1.0.0",
		"transitions/transitions@1.0.0",
		"transitions/uniques@1.0.0",
	}
	if !slices.Equal(slugs, want) {
		t.Fatalf("unexpected slugs %v", slugs)
	}
	if _, ok := c.Resolve("uniques"); !ok {
		t.Fatalf("expected bare key to resolve")
	}
	if _, ok := c.Resolve("other/uniques@1.0.0"); ok {
		t.Fatalf("expected foreign slug to miss")
	}
}

func TestRunTransitions(t *testing.T) {
	rec := &memoryRecorder{}
	c := newCatalog(t, observations(t), rec)
	result, err := c.Run(context.Background(), "transitions", withParams(map[string]any{"cap": "1"}), datasetapi.FormatCSV)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Format != datasetapi.FormatCSV || !result.GeneratedAt.Equal(fixedNow) {
		t.Fatalf("unexpected result envelope %s %v", result.Format, result.GeneratedAt)
	}
	if len(result.Rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(result.Rows))
	}
	got := make([]any, len(result.Rows))
	for i, row := range result.Rows {
		got[i] = row["transition"]
	}
	if got[0] != -1 || got[1] != nil || got[2] != 1 || got[3] != nil {
		t.Fatalf("unexpected transitions %v", got)
	}
	if result.Rows[1]["visit"] != "1970-01-11" {
		t.Fatalf("expected coerced date, got %v", result.Rows[1]["visit"])
	}
	warnings, _ := result.Metadata["warnings"].([]string)
	if len(warnings) != 1 || !strings.Contains(warnings[0], "integer to date") {
		t.Fatalf("expected coercion warning, got %v", result.Metadata)
	}
	last := result.Schema[len(result.Schema)-1]
	if last.Name != "transition" || last.Type != datasetapi.TypeInteger {
		t.Fatalf("unexpected schema tail %+v", last)
	}
	if len(rec.entries) != 1 || rec.entries[0] != (recorded{"dataset_run:transitions", true}) {
		t.Fatalf("unexpected recorder entries %+v", rec.entries)
	}
}

func TestRunPreviousValues(t *testing.T) {
	c := newCatalog(t, observations(t), nil)
	result, err := c.Run(context.Background(), "previous_dates", withParams(map[string]any{"lookup": "scan", "output": "before"}), "")
	if err != nil {
		t.Fatalf("Run previous_dates: %v", err)
	}
	if result.Rows[0]["before"] != "1970-01-11" || result.Rows[1]["before"] != nil {
		t.Fatalf("unexpected previous dates %v", result.Rows)
	}
	result, err = c.Run(context.Background(), "transitions/previous_results@1.0.0", withParams(nil), datasetapi.FormatJSON)
	if err != nil {
		t.Fatalf("Run previous_results: %v", err)
	}
	if result.Rows[0]["prev_result"] != 1 || result.Rows[2]["prev_result"] != 0 || result.Rows[3]["prev_result"] != nil {
		t.Fatalf("unexpected previous results %v", result.Rows)
	}
}

func TestRenamedFactorResultSchema(t *testing.T) {
	grade, err := frame.FactorOf("grade", []string{"none", "mild", "severe"}, true, "none", "severe", "mild")
	if err != nil {
		t.Fatalf("FactorOf: %v", err)
	}
	f, err := frame.New(frame.Integers("id", 1, 1, 1), frame.Dates("seen", 1, 2, 3), grade)
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	loader := datasetapi.FrameLoaderFunc(func(context.Context) (*frame.Frame, error) { return f, nil })
	c := newCatalog(t, loader, nil)

	host, _ := c.Resolve(KeyPreviousResults)
	for _, col := range host.Descriptor().Columns {
		if col.Name == "subject" || col.Name == "result" || col.Name == transition.DefaultPrevResultColumn {
			if col.Type != datasetapi.TypeAny {
				t.Fatalf("expected source-dependent type for %s, got %s", col.Name, col.Type)
			}
		}
	}

	result, err := c.Run(context.Background(), KeyPreviousResults, map[string]any{"subject": "id", "timepoint": "seen", "result": "grade"}, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var names []string
	for _, col := range result.Schema {
		names = append(names, col.Name)
	}
	if !slices.Equal(names, []string{"id", "seen", "grade", "prev_result"}) {
		t.Fatalf("unexpected schema names %v", names)
	}
	if last := result.Schema[3]; last.Format != "ordered_factor" || result.Rows[1]["prev_result"] != "none" {
		t.Fatalf("unexpected previous result %+v %v", last, result.Rows)
	}
}

func TestRunUniquesPadsRows(t *testing.T) {
	c := newCatalog(t, observations(t), nil)
	result, err := c.Run(context.Background(), "uniques", withParams(nil), datasetapi.FormatJSON)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Rows[0]["patient"] != 1 || result.Rows[1]["patient"] != 2 {
		t.Fatalf("unexpected subjects %v", result.Rows)
	}
	if len(result.Schema) != 3 || result.Schema[1].Format != "date" {
		t.Fatalf("unexpected schema %+v", result.Schema)
	}

	u := transition.Uniques{
		Subjects:   frame.Integers("s", 1, 2, 3),
		Timepoints: frame.Dates("t", 5),
		Results:    frame.Integers("r", 0, 1),
	}
	padded := UniquesResult(u)
	if len(padded.Rows) != 3 || padded.Rows[2]["t"] != nil || padded.Rows[2]["r"] != nil || padded.Rows[2]["s"] != 3 {
		t.Fatalf("unexpected padding %v", padded.Rows)
	}
	if _, ok := padded.Rows[1]["t"]; !ok {
		t.Fatalf("expected padded key present")
	}
}

func TestRunErrors(t *testing.T) {
	rec := &memoryRecorder{}
	c := newCatalog(t, observations(t), rec)
	ctx := context.Background()

	if _, err := c.Run(ctx, "missing", nil, ""); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err := c.Run(ctx, "transitions", withParams(map[string]any{"cap": "x", "bogus": 1}), "")
	var paramErrs ParameterErrors
	if !errors.As(err, &paramErrs) || len(paramErrs) != 2 {
		t.Fatalf("expected parameter errors, got %v", err)
	}

	_, err = c.Run(ctx, "transitions", withParams(map[string]any{"modulate": -1}), "")
	if !errors.Is(err, transition.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	_, err = c.Run(ctx, "transitions", withParams(map[string]any{"output": "visit"}), "")
	if !errors.Is(err, transition.ErrDuplicateColumnName) {
		t.Fatalf("expected duplicate column, got %v", err)
	}
	_, err = c.Run(ctx, "uniques", nil, "")
	if !errors.Is(err, transition.ErrColumnNotFound) {
		t.Fatalf("expected column not found with default names, got %v", err)
	}
	for _, e := range rec.entries {
		if e.success {
			t.Fatalf("expected only failures recorded, got %+v", rec.entries)
		}
	}
	if len(rec.entries) != 4 {
		t.Fatalf("expected 4 recorded runs, got %d", len(rec.entries))
	}
}

func TestRunWithoutObservations(t *testing.T) {
	c := newCatalog(t, nil, nil)
	if _, err := c.Run(context.Background(), "uniques", nil, ""); !errors.Is(err, errNoObservations) {
		t.Fatalf("expected missing loader error, got %v", err)
	}
	boom := errors.New("boom")
	c = newCatalog(t, datasetapi.FrameLoaderFunc(func(context.Context) (*frame.Frame, error) { return nil, boom }), nil)
	if _, err := c.Run(context.Background(), "uniques", nil, ""); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
}
