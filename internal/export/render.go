package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"transitions/pkg/datasetapi"
)

// Rendered is one encoded copy of a run result.
type Rendered struct {
	Format      datasetapi.Format
	ContentType string
	Extension   string
	Payload     []byte
}

// Render encodes result in format. The title heads HTML documents.
func Render(format datasetapi.Format, title string, result datasetapi.RunResult) (Rendered, error) {
	switch format {
	case datasetapi.FormatJSON:
		payload, err := json.Marshal(result)
		if err != nil {
			return Rendered{}, fmt.Errorf("marshal json: %w", err)
		}
		return Rendered{Format: format, ContentType: "application/json", Extension: "json", Payload: payload}, nil
	case datasetapi.FormatCSV:
		payload, err := renderCSV(result)
		if err != nil {
			return Rendered{}, err
		}
		return Rendered{Format: format, ContentType: "text/csv", Extension: "csv", Payload: payload}, nil
	case datasetapi.FormatHTML:
		return Rendered{Format: format, ContentType: "text/html", Extension: "html", Payload: renderHTML(title, result)}, nil
	default:
		return Rendered{}, fmt.Errorf("unsupported export format %s", format)
	}
}

func renderCSV(result datasetapi.RunResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	headers := make([]string, len(result.Schema))
	for i, column := range result.Schema {
		headers[i] = column.Name
	}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, row := range result.Rows {
		record := make([]string, len(result.Schema))
		for i, column := range result.Schema {
			record[i] = formatValue(row[column.Name])
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderHTML(title string, result datasetapi.RunResult) []byte {
	buf := &strings.Builder{}
	buf.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>`)
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</title></head><body><table><thead><tr>")
	for _, column := range result.Schema {
		buf.WriteString("<th>")
		buf.WriteString(html.EscapeString(column.Name))
		buf.WriteString("</th>")
	}
	buf.WriteString("</tr></thead><tbody>")
	for _, row := range result.Rows {
		buf.WriteString("<tr>")
		for _, column := range result.Schema {
			buf.WriteString("<td>")
			buf.WriteString(html.EscapeString(formatValue(row[column.Name])))
			buf.WriteString("</td>")
		}
		buf.WriteString("</tr>")
	}
	buf.WriteString("</tbody></table></body></html>")
	return []byte(buf.String())
}

// MissingText marks a missing cell in text formats.
const MissingText = "NA"

// formatValue renders a cell for text formats.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return MissingText
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float32, float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}
