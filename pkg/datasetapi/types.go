// Package datasetapi describes parameterised dataset templates: their
// parameters, output schema, supported formats and the runner bound to them
// at startup.
package datasetapi

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"transitions/pkg/frame"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
)

// ParseFormat resolves a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatCSV, FormatHTML:
		return f, nil
	default:
		return "", fmt.Errorf("datasetapi: unsupported format %q", s)
	}
}

// Parameter types accepted by templates.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// TypeAny marks a template column whose cell type follows the source column
// bound at run time.
const TypeAny = "any"

type Parameter struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Required    bool            `json:"required"`
	Description string          `json:"description,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

type Column struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Format      string   `json:"format,omitempty"`
	Levels      []string `json:"levels,omitempty"`
}

type Metadata struct {
	Source        string            `json:"source,omitempty"`
	Documentation string            `json:"documentation,omitempty"`
	Tags          []string          `json:"tags,omitempty"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// ParameterError reports a single parameter that failed validation.
type ParameterError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e ParameterError) Error() string {
	return fmt.Sprintf("parameter %s: %s", e.Name, e.Message)
}

// FrameLoader supplies the observation table a template runs against.
type FrameLoader interface {
	Load(ctx context.Context) (*frame.Frame, error)
}

// FrameLoaderFunc adapts a function to FrameLoader.
type FrameLoaderFunc func(ctx context.Context) (*frame.Frame, error)

func (fn FrameLoaderFunc) Load(ctx context.Context) (*frame.Frame, error) { return fn(ctx) }

type Environment struct {
	Observations FrameLoader
	Now          func() time.Time
}

type Template struct {
	Key           string
	Version       string
	Title         string
	Description   string
	Parameters    []Parameter
	Columns       []Column
	Metadata      Metadata
	OutputFormats []Format
	Binder        Binder
}

type TemplateDescriptor struct {
	Plugin        string      `json:"plugin"`
	Key           string      `json:"key"`
	Version       string      `json:"version"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Parameters    []Parameter `json:"parameters"`
	Columns       []Column    `json:"columns"`
	Metadata      Metadata    `json:"metadata"`
	OutputFormats []Format    `json:"output_formats"`
	Slug          string      `json:"slug"`
}

type RunRequest struct {
	Template   TemplateDescriptor
	Parameters map[string]any
}

type RunResult struct {
	Schema      []Column         `json:"schema"`
	Rows        []map[string]any `json:"rows"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
	Format      Format           `json:"format"`
}

type Runner func(context.Context, RunRequest) (RunResult, error)

type Binder func(Environment) (Runner, error)
