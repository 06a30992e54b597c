package writers

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/waftester/vulnprobe/pkg/defaults"
	"github.com/waftester/vulnprobe/pkg/finding"
	"github.com/waftester/vulnprobe/pkg/jsonutil"
	"github.com/waftester/vulnprobe/pkg/report"
)

// TemplateConfig configures the template writer. Exactly one source is
// used, in the order TemplatePath, TemplateString, BuiltIn.
type TemplateConfig struct {
	// TemplatePath is the path to a custom template file.
	TemplatePath string

	// TemplateString is an inline template.
	TemplateString string

	// BuiltIn names a built-in template: "markdown" or "text-summary".
	BuiltIn string
}

// builtInTemplates are the bundled report layouts.
var builtInTemplates = map[string]string{
	"markdown": `# Security Scan Report

| Metric | Value |
|---|---|
| Target | {{ .Report.Target }} |
| Scan ID | {{ .Report.ScanID }} |
| Scan Date | {{ .Timestamp }} |
| Total Issues | {{ .Report.Summary.Total }} |
| Risk Level | **{{ .Report.Summary.RiskLevel }}** |
| Severity Score | {{ .Report.Summary.SeverityScore }} |

## Vulnerabilities by Severity

| Severity | Count |
|---|---|
{{- range .Severities }}
| {{ severityIcon .Severity }} {{ .Severity }} | {{ .Count }} |
{{- end }}
{{ with .Report.SecurityHeaders }}{{ if .Status }}
## Security Headers

Overall score: {{ mulf .OverallScore 100 | printf "%.0f" }}%
{{ range $name, $st := .Status }}
- {{ if $st.Present }}[x]{{ else }}[ ]{{ end }} {{ $name }}
{{- end }}
{{ end }}{{ end }}
{{- with .Report.Enrichment }}
## Risk Assessment ({{ .Source }})

**{{ .RiskAssessment }}**: {{ .Explanation }}
{{ range $i, $fix := .PrioritizedFixes }}
{{ add1 $i }}. {{ $fix }}
{{- end }}
{{ end }}
## Findings
{{ if not .Findings }}
No vulnerabilities found.
{{- end }}
{{- range .Findings }}

### {{ kindTitle .Kind }} ({{ .Severity }})

{{ .Description }}
{{ if .Endpoint }}
- Endpoint: ` + "`{{ .Endpoint }}`" + `
{{- end }}
{{- with kindCWE .Kind }}
- {{ . }}
{{- end }}
{{- if .Fix }}
- **Fix:** {{ .Fix }}
{{- end }}
{{- end }}
{{ if .Omitted }}
_{{ .Omitted }} more findings omitted._
{{ end }}`,

	"text-summary": `{{ .Tool }} Scan Summary
{{ repeat (len (print .Tool " Scan Summary")) "=" }}
Target: {{ .Report.Target }}
Scan ID: {{ .Report.ScanID }}
Generated: {{ .Timestamp }}
{{- if .Report.DurationMs }}
Duration: {{ divf .Report.DurationMs 1000 | printf "%.2f" }}s
{{- end }}

Risk Level: {{ .Report.Summary.RiskLevel }} (score {{ .Report.Summary.SeverityScore }})
Total Issues: {{ .Report.Summary.Total }}
{{ range .Severities }}
  {{ severityIcon .Severity }} {{ .Severity.String | lower | title }}: {{ .Count }}
{{- end }}
{{ if .Findings }}
Top findings:
{{- range .Findings }}
  - [{{ .Severity }}] {{ kindTitle .Kind }}{{ if .Endpoint }} @ {{ .Endpoint }}{{ end }}
{{- end }}
{{ end }}`,
}

// TemplateWriter renders a report with a Go text template. Sprig
// functions and report helpers are available to templates.
type TemplateWriter struct {
	config TemplateConfig
	tmpl   *template.Template
}

// NewTemplateWriter parses the configured template.
func NewTemplateWriter(config TemplateConfig) (*TemplateWriter, error) {
	tw := &TemplateWriter{config: config}
	if err := tw.parseTemplate(); err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	return tw, nil
}

func (tw *TemplateWriter) parseTemplate() error {
	var content string
	switch {
	case tw.config.TemplatePath != "":
		b, err := os.ReadFile(tw.config.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		content = string(b)
	case tw.config.TemplateString != "":
		content = tw.config.TemplateString
	case tw.config.BuiltIn != "":
		c, ok := builtInTemplates[tw.config.BuiltIn]
		if !ok {
			return fmt.Errorf("%w: built-in template %q (available: markdown, text-summary)", ErrUnknownFormat, tw.config.BuiltIn)
		}
		content = c
	default:
		return fmt.Errorf("no template specified: set TemplatePath, TemplateString, or BuiltIn")
	}

	funcMap := sprig.TxtFuncMap()
	funcMap["severityIcon"] = tmplSeverityIcon
	funcMap["kindTitle"] = kindTitle
	funcMap["kindCWE"] = kindCWE
	funcMap["json"] = tmplToJSON

	tmpl, err := template.New(defaults.ToolName).Funcs(funcMap).Parse(content)
	if err != nil {
		return fmt.Errorf("parse output template: %w", err)
	}
	tw.tmpl = tmpl
	return nil
}

// Render executes the template against r and writes the result to w.
// Nothing is written when execution fails.
func (tw *TemplateWriter) Render(w io.Writer, r *report.Report) error {
	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, buildTemplateData(r)); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

// tmplData is the root object templates see.
type tmplData struct {
	Tool       string
	Report     *report.Report
	Timestamp  string
	Findings   []finding.Finding // most severe first, capped
	Omitted    int
	Severities []tmplSeverityCount
}

type tmplSeverityCount struct {
	Severity finding.Severity
	Count    int
}

func buildTemplateData(r *report.Report) *tmplData {
	fs := r.SortedFindings()
	shown := min(len(fs), defaults.ReportMaxDetailedFindings)

	data := &tmplData{
		Tool:      defaults.ToolName,
		Report:    r,
		Timestamp: r.ScanTimestamp.UTC().Format("2006-01-02 15:04:05 MST"),
		Findings:  fs[:shown],
		Omitted:   len(fs) - shown,
	}
	for _, sev := range finding.Severities {
		if n, ok := r.Summary.CountBySeverity[sev]; ok {
			data.Severities = append(data.Severities, tmplSeverityCount{Severity: sev, Count: n})
		}
	}
	return data
}

func tmplSeverityIcon(s finding.Severity) string {
	switch s {
	case finding.Critical:
		return "🔴"
	case finding.High:
		return "🟠"
	case finding.Medium:
		return "🟡"
	case finding.Low:
		return "🔵"
	default:
		return "⚪"
	}
}

func tmplToJSON(v any) string {
	b, err := jsonutil.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
