package datasetapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// HostTemplate pairs a Template with the plugin that provides it and the
// runner bound at startup.
type HostTemplate struct {
	plugin  string
	tpl     Template
	runtime Runner
}

// NewHostTemplate constructs a HostTemplate after structural validation. The
// result has no bound runner; callers must Bind before Run.
func NewHostTemplate(plugin string, tpl Template) (HostTemplate, error) {
	if err := validateTemplate(tpl); err != nil {
		return HostTemplate{}, err
	}
	return HostTemplate{plugin: strings.TrimSpace(plugin), tpl: cloneTemplate(tpl)}, nil
}

// Plugin returns the plugin identifier associated with the template.
func (h HostTemplate) Plugin() string { return h.plugin }

// Template returns a copy of the underlying template metadata.
func (h HostTemplate) Template() Template { return cloneTemplate(h.tpl) }

// Descriptor produces a TemplateDescriptor snapshot including the slug.
func (h HostTemplate) Descriptor() TemplateDescriptor {
	return TemplateDescriptor{
		Plugin:        h.plugin,
		Key:           h.tpl.Key,
		Version:       h.tpl.Version,
		Title:         h.tpl.Title,
		Description:   h.tpl.Description,
		Parameters:    cloneParameters(h.tpl.Parameters),
		Columns:       cloneColumns(h.tpl.Columns),
		Metadata:      cloneMetadata(h.tpl.Metadata),
		OutputFormats: cloneFormats(h.tpl.OutputFormats),
		Slug:          h.Slug(),
	}
}

// Slug returns the canonical identifier for the template (plugin/key@version).
func (h HostTemplate) Slug() string {
	return slugFor(h.plugin, h.tpl.Key, h.tpl.Version)
}

// SupportsFormat reports whether the template declares the requested format.
func (h HostTemplate) SupportsFormat(format Format) bool {
	for _, candidate := range h.tpl.OutputFormats {
		if candidate == format {
			return true
		}
	}
	return false
}

// ValidateParameters validates supplied parameters against the template
// definition, returning normalized values plus any validation errors.
func (h HostTemplate) ValidateParameters(params map[string]any) (map[string]any, []ParameterError) {
	return validateParameters(h.tpl.Parameters, params)
}

// Bind attaches a runner produced by the template binder for env.
func (h *HostTemplate) Bind(env Environment) error {
	if h == nil {
		return errors.New("datasetapi: host template nil")
	}
	if h.tpl.Binder == nil {
		return errors.New("datasetapi: template binder missing")
	}
	runner, err := h.tpl.Binder(env)
	if err != nil {
		return err
	}
	if runner == nil {
		return errors.New("datasetapi: template binder returned nil runner")
	}
	h.runtime = runner
	return nil
}

// Run executes the bound template after validating parameters.
func (h HostTemplate) Run(ctx context.Context, params map[string]any, format Format) (RunResult, []ParameterError, error) {
	if h.runtime == nil {
		return RunResult{}, nil, errors.New("datasetapi: template not bound")
	}
	if format == "" {
		format = h.tpl.OutputFormats[0]
	}
	if !h.SupportsFormat(format) {
		return RunResult{}, nil, fmt.Errorf("datasetapi: template %s does not support format %q", h.Slug(), format)
	}
	cleaned, errs := validateParameters(h.tpl.Parameters, params)
	if len(errs) > 0 {
		return RunResult{}, errs, nil
	}
	result, err := h.runtime(ctx, RunRequest{
		Template:   h.Descriptor(),
		Parameters: cleaned,
	})
	if err != nil {
		return RunResult{}, nil, err
	}
	if len(result.Schema) == 0 {
		result.Schema = cloneColumns(h.tpl.Columns)
	}
	result.GeneratedAt = result.GeneratedAt.UTC()
	result.Format = format
	return result, nil, nil
}

// SortTemplateDescriptors sorts the slice in place by plugin, key, version.
func SortTemplateDescriptors(descriptors []TemplateDescriptor) {
	sort.Slice(descriptors, func(i, j int) bool {
		a, b := descriptors[i], descriptors[j]
		if a.Plugin == b.Plugin {
			if a.Key == b.Key {
				return a.Version < b.Version
			}
			return a.Key < b.Key
		}
		return a.Plugin < b.Plugin
	})
}

func validateTemplate(tpl Template) error {
	if strings.TrimSpace(tpl.Key) == "" {
		return errors.New("datasetapi: dataset template key required")
	}
	if strings.TrimSpace(tpl.Version) == "" {
		return errors.New("datasetapi: dataset template version required")
	}
	if strings.TrimSpace(tpl.Title) == "" {
		return errors.New("datasetapi: dataset template title required")
	}
	if len(tpl.Columns) == 0 {
		return errors.New("datasetapi: dataset template requires at least one column")
	}
	if len(tpl.OutputFormats) == 0 {
		return errors.New("datasetapi: dataset template must declare output formats")
	}
	for _, format := range tpl.OutputFormats {
		if _, err := ParseFormat(string(format)); err != nil {
			return err
		}
	}
	if tpl.Binder == nil {
		return errors.New("datasetapi: dataset template binder required")
	}
	seen := make(map[string]struct{}, len(tpl.Parameters))
	for _, param := range tpl.Parameters {
		key := strings.ToLower(strings.TrimSpace(param.Name))
		if key == "" {
			return errors.New("datasetapi: dataset template parameter name required")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("datasetapi: duplicate parameter %q", param.Name)
		}
		seen[key] = struct{}{}
		switch param.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		default:
			return fmt.Errorf("datasetapi: parameter %s has unsupported type %q", param.Name, param.Type)
		}
	}
	return nil
}

func validateParameters(definitions []Parameter, supplied map[string]any) (map[string]any, []ParameterError) {
	cleaned := make(map[string]any)
	var errs []ParameterError
	provided := make(map[string]string, len(supplied))
	spellings := make(map[string][]string, len(supplied))
	for k := range supplied {
		lower := strings.ToLower(k)
		provided[lower] = k
		spellings[lower] = append(spellings[lower], k)
	}
	for _, names := range spellings {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		for _, dup := range names[1:] {
			errs = append(errs, ParameterError{Name: dup, Message: fmt.Sprintf("duplicate of parameter %s", names[0])})
		}
	}
	for _, param := range definitions {
		key := strings.ToLower(param.Name)
		val, ok := findParamValue(param.Name, supplied)
		if !ok {
			if param.Required {
				errs = append(errs, ParameterError{Name: param.Name, Message: "required parameter missing"})
				continue
			}
			if len(param.Default) > 0 {
				coerced, err := coerceDefaultParameter(param)
				if err != nil {
					errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
					continue
				}
				cleaned[param.Name] = coerced
			}
			continue
		}
		delete(provided, key)
		coerced, err := coerceParameter(param, val)
		if err != nil {
			errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
			continue
		}
		cleaned[param.Name] = coerced
	}
	for _, leftover := range provided {
		errs = append(errs, ParameterError{Name: leftover, Message: "parameter not declared"})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
	return cleaned, errs
}

func coerceDefaultParameter(param Parameter) (any, error) {
	var raw any
	if err := json.Unmarshal(param.Default, &raw); err != nil {
		return nil, fmt.Errorf("parameter %s default is invalid JSON: %w", param.Name, err)
	}
	return coerceParameter(param, raw)
}

func findParamValue(name string, supplied map[string]any) (any, bool) {
	if supplied == nil {
		return nil, false
	}
	if val, ok := supplied[name]; ok {
		return val, true
	}
	lower := strings.ToLower(name)
	for k, v := range supplied {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func coerceParameter(param Parameter, raw any) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("parameter %s cannot be null", param.Name)
	}
	switch param.Type {
	case TypeString:
		var val string
		switch v := raw.(type) {
		case string:
			val = v
		case fmt.Stringer:
			val = v.String()
		default:
			return nil, fmt.Errorf("parameter %s expects string", param.Name)
		}
		if len(param.Enum) > 0 && !containsString(param.Enum, val) {
			return nil, enumError(param.Enum)
		}
		return val, nil
	case TypeInteger:
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if math.IsInf(v, 0) || v != math.Trunc(v) {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return int(v), nil
		case json.Number:
			parsed, err := strconv.Atoi(v.String())
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return parsed, nil
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects integer", param.Name)
		}
	case TypeNumber:
		switch v := raw.(type) {
		case float32:
			return float64(v), nil
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects number", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects number", param.Name)
		}
	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
		}
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", param.Type)
	}
}

func containsString(list []string, target string) bool {
	for _, candidate := range list {
		if candidate == target {
			return true
		}
	}
	return false
}

func enumError(options []string) error {
	return fmt.Errorf("value must be one of: %s", strings.Join(options, ", "))
}

// ParseSlug splits plugin/key@version into its parts.
func ParseSlug(slug string) (plugin, key, version string, err error) {
	rest, version, ok := strings.Cut(strings.TrimSpace(slug), "@")
	if !ok || version == "" {
		return "", "", "", fmt.Errorf("datasetapi: slug %q missing version", slug)
	}
	plugin, key, ok = strings.Cut(rest, "/")
	if !ok {
		key, plugin = plugin, ""
	}
	if key == "" {
		return "", "", "", fmt.Errorf("datasetapi: slug %q missing key", slug)
	}
	return plugin, key, version, nil
}

func slugFor(plugin, key, version string) string {
	keyPart := strings.TrimSpace(key)
	versionPart := strings.TrimSpace(version)
	if plugin = strings.TrimSpace(plugin); plugin == "" {
		return fmt.Sprintf("%s@%s", keyPart, versionPart)
	}
	return fmt.Sprintf("%s/%s@%s", plugin, keyPart, versionPart)
}

func cloneTemplate(t Template) Template {
	cloned := t
	cloned.Parameters = cloneParameters(t.Parameters)
	cloned.Columns = cloneColumns(t.Columns)
	cloned.Metadata = cloneMetadata(t.Metadata)
	cloned.OutputFormats = cloneFormats(t.OutputFormats)
	return cloned
}

func cloneParameters(params []Parameter) []Parameter {
	if len(params) == 0 {
		return nil
	}
	cloned := make([]Parameter, len(params))
	copy(cloned, params)
	for i := range cloned {
		if len(cloned[i].Default) > 0 {
			cloned[i].Default = append(json.RawMessage(nil), cloned[i].Default...)
		}
		if len(cloned[i].Enum) > 0 {
			cloned[i].Enum = append([]string(nil), cloned[i].Enum...)
		}
	}
	return cloned
}

func cloneColumns(columns []Column) []Column {
	if len(columns) == 0 {
		return nil
	}
	cloned := make([]Column, len(columns))
	copy(cloned, columns)
	for i := range cloned {
		if len(cloned[i].Levels) > 0 {
			cloned[i].Levels = append([]string(nil), cloned[i].Levels...)
		}
	}
	return cloned
}

func cloneFormats(formats []Format) []Format {
	if len(formats) == 0 {
		return nil
	}
	return append([]Format(nil), formats...)
}

func cloneMetadata(metadata Metadata) Metadata {
	cloned := metadata
	if len(metadata.Tags) > 0 {
		cloned.Tags = append([]string(nil), metadata.Tags...)
	}
	if len(metadata.Annotations) > 0 {
		cloned.Annotations = make(map[string]string, len(metadata.Annotations))
		for k, v := range metadata.Annotations {
			cloned.Annotations[k] = v
		}
	}
	return cloned
}
