// Package dataset exposes the transition operations as parameterised dataset
// templates bound against an observation source.
package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transitions/internal/observability"
	"transitions/pkg/datasetapi"
)

// Catalog holds the bound transition templates keyed by slug.
type Catalog struct {
	templates map[string]datasetapi.HostTemplate
	recorder  observability.Recorder
}

// NewCatalog binds every template in Templates against env. A nil recorder
// disables metrics.
func NewCatalog(env datasetapi.Environment, recorder observability.Recorder) (*Catalog, error) {
	if recorder == nil {
		recorder = observability.Nop{}
	}
	c := &Catalog{templates: make(map[string]datasetapi.HostTemplate), recorder: recorder}
	for _, tpl := range Templates() {
		host, err := datasetapi.NewHostTemplate(Plugin, tpl)
		if err != nil {
			return nil, fmt.Errorf("dataset: template %s: %w", tpl.Key, err)
		}
		if err := host.Bind(env); err != nil {
			return nil, fmt.Errorf("dataset: bind %s: %w", host.Slug(), err)
		}
		if _, dup := c.templates[host.Slug()]; dup {
			return nil, fmt.Errorf("dataset: duplicate template %s", host.Slug())
		}
		c.templates[host.Slug()] = host
	}
	return c, nil
}

// Templates returns the template descriptors in plugin/key/version order.
func (c *Catalog) Templates() []datasetapi.TemplateDescriptor {
	out := make([]datasetapi.TemplateDescriptor, 0, len(c.templates))
	for _, host := range c.templates {
		out = append(out, host.Descriptor())
	}
	datasetapi.SortTemplateDescriptors(out)
	return out
}

// Resolve finds a template by slug. A bare key resolves against the
// catalog's own plugin and version.
func (c *Catalog) Resolve(slug string) (datasetapi.HostTemplate, bool) {
	slug = strings.TrimSpace(slug)
	if host, ok := c.templates[slug]; ok {
		return host, true
	}
	if !strings.ContainsAny(slug, "/@") {
		host, ok := c.templates[fmt.Sprintf("%s/%s@%s", Plugin, slug, Version)]
		return host, ok
	}
	return datasetapi.HostTemplate{}, false
}

// ParameterErrors reports template parameters that failed validation.
type ParameterErrors []datasetapi.ParameterError

func (e ParameterErrors) Error() string {
	msgs := make([]string, len(e))
	for i, pe := range e {
		msgs[i] = pe.Error()
	}
	return "dataset: invalid parameters: " + strings.Join(msgs, "; ")
}

// Run executes the template named by slug. Parameter validation failures are
// returned as ParameterErrors.
func (c *Catalog) Run(ctx context.Context, slug string, params map[string]any, format datasetapi.Format) (datasetapi.RunResult, error) {
	host, ok := c.Resolve(slug)
	if !ok {
		return datasetapi.RunResult{}, fmt.Errorf("dataset: template %s not found", slug)
	}
	start := time.Now()
	result, paramErrs, err := host.Run(ctx, params, format)
	if err == nil && len(paramErrs) > 0 {
		err = ParameterErrors(paramErrs)
	}
	c.recorder.Observe(ctx, "dataset_run:"+host.Template().Key, err == nil, time.Since(start))
	if err != nil {
		return datasetapi.RunResult{}, err
	}
	return result, nil
}
