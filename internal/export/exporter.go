// Package export renders dataset template runs and stores the results as
// blob artifacts.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"transitions/internal/blob"
	"transitions/internal/observability"
	"transitions/pkg/datasetapi"
)

// Status describes the outcome of an export.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// DefaultFormats are exported when a request names none.
var DefaultFormats = []datasetapi.Format{datasetapi.FormatJSON, datasetapi.FormatCSV}

// Artifact captures a stored rendering.
type Artifact struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Format      datasetapi.Format `json:"format"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	ETag        string            `json:"etag,omitempty"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Record summarises one export request.
type Record struct {
	ID          string                        `json:"id"`
	Template    datasetapi.TemplateDescriptor `json:"template"`
	Parameters  map[string]any                `json:"parameters,omitempty"`
	Formats     []datasetapi.Format           `json:"formats"`
	Status      Status                        `json:"status"`
	Error       string                        `json:"error,omitempty"`
	Rows        int                           `json:"rows"`
	Artifacts   []Artifact                    `json:"artifacts,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
	CompletedAt time.Time                     `json:"completed_at"`
}

// Request names the template run to export.
type Request struct {
	TemplateSlug string
	Parameters   map[string]any
	Formats      []datasetapi.Format
}

// Catalog resolves and runs templates. *dataset.Catalog satisfies it.
type Catalog interface {
	Resolve(slug string) (datasetapi.HostTemplate, bool)
	Run(ctx context.Context, slug string, params map[string]any, format datasetapi.Format) (datasetapi.RunResult, error)
}

// Exporter runs templates synchronously and writes each requested format to
// the blob store.
type Exporter struct {
	catalog  Catalog
	store    blob.Store
	recorder observability.Recorder
	now      func() time.Time
	newID    func() string
}

// New constructs an exporter. A nil recorder disables metrics.
func New(catalog Catalog, store blob.Store, recorder observability.Recorder) *Exporter {
	if recorder == nil {
		recorder = observability.Nop{}
	}
	return &Exporter{
		catalog:  catalog,
		store:    store,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// ArtifactKey is the blob key for an artifact.
func ArtifactKey(plugin, key, id, ext string) string {
	return path.Join("exports", plugin, key, id+"."+ext)
}

// Export validates req, runs the template and stores every format. Request
// errors return no record; failures after the run starts return a failed
// record alongside the error.
func (e *Exporter) Export(ctx context.Context, req Request) (Record, error) {
	if e.catalog == nil || e.store == nil {
		return Record{}, errors.New("export: catalog and store required")
	}
	slug := strings.TrimSpace(req.TemplateSlug)
	if slug == "" {
		return Record{}, errors.New("export: template slug required")
	}
	host, ok := e.catalog.Resolve(slug)
	if !ok {
		return Record{}, fmt.Errorf("export: dataset template %s not found", slug)
	}
	formats, err := uniqueFormats(host, req.Formats)
	if err != nil {
		return Record{}, err
	}

	start := e.now()
	record := Record{
		ID:         e.newID(),
		Template:   host.Descriptor(),
		Parameters: cloneParams(req.Parameters),
		Formats:    formats,
		CreatedAt:  start,
	}
	err = e.run(ctx, host, &record)
	record.CompletedAt = e.now()
	e.recorder.Observe(ctx, "export:"+host.Template().Key, err == nil, record.CompletedAt.Sub(start))
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return record, err
	}
	record.Status = StatusSucceeded
	return record, nil
}

func (e *Exporter) run(ctx context.Context, host datasetapi.HostTemplate, record *Record) error {
	result, err := e.catalog.Run(ctx, host.Slug(), record.Parameters, record.Formats[0])
	if err != nil {
		return fmt.Errorf("export: dataset run failed: %w", err)
	}
	record.Rows = len(result.Rows)
	tpl := host.Template()
	for _, format := range record.Formats {
		rendered, err := Render(format, tpl.Title, result)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		id := e.newID()
		key := ArtifactKey(host.Plugin(), tpl.Key, id, rendered.Extension)
		meta := map[string]string{
			"template": host.Slug(),
			"export":   record.ID,
			"rows":     strconv.Itoa(len(result.Rows)),
		}
		info, err := e.store.Put(ctx, key, bytes.NewReader(rendered.Payload), blob.PutOptions{ContentType: rendered.ContentType, Metadata: meta})
		if err != nil {
			return fmt.Errorf("export: store artifact: %w", err)
		}
		url := info.URL
		if signed, err := e.store.PresignURL(ctx, key, blob.SignedURLOptions{}); err == nil {
			url = signed
		}
		record.Artifacts = append(record.Artifacts, Artifact{
			ID:          id,
			Key:         info.Key,
			Format:      format,
			ContentType: rendered.ContentType,
			SizeBytes:   int64(len(rendered.Payload)),
			ETag:        info.ETag,
			URL:         url,
			Metadata:    meta,
			CreatedAt:   e.now(),
		})
	}
	return nil
}

func uniqueFormats(host datasetapi.HostTemplate, requested []datasetapi.Format) ([]datasetapi.Format, error) {
	if len(requested) == 0 {
		requested = DefaultFormats
	}
	out := make([]datasetapi.Format, 0, len(requested))
	seen := make(map[datasetapi.Format]struct{}, len(requested))
	for _, format := range requested {
		if _, dup := seen[format]; dup {
			continue
		}
		if !host.SupportsFormat(format) {
			return nil, fmt.Errorf("export: format %s not supported by template %s", format, host.Slug())
		}
		seen[format] = struct{}{}
		out = append(out, format)
	}
	return out, nil
}

func cloneParams(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
