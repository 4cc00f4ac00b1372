// Package formatter provides output formatters for locateval's aggregate
// reports: a JSONLFormatter for the authoritative machine-readable dump,
// and a MarkdownFormatter for pasting a run's summary into a PR
// description or wiki page. The terminal table report lives in
// cmd/locateval, built directly around summary's column semantics
// instead of a generic reusable table type.
package formatter

import (
	"fmt"
	"io"
	"text/template"

	"github.com/agentloc/locateval/internal/types"
)

// MarkdownFormatter renders an AggregateSummary as a markdown report:
// one section per variant plus the paired delta, suitable for pasting
// into a PR description or CI summary comment.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a markdown formatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Extension returns the file extension for markdown output.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

// Format writes summary as a markdown report.
func (mf *MarkdownFormatter) Format(w io.Writer, summary *types.AggregateSummary) error {
	tmpl, err := template.New("summary").Funcs(mf.templateFuncs()).Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse report template: %w", err)
	}
	return tmpl.Execute(w, summary)
}

func (mf *MarkdownFormatter) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"pct": func(v float64) string {
			return fmt.Sprintf("%.1f%%", v*100)
		},
		"f2": func(v float64) string {
			return fmt.Sprintf("%.2f", v)
		},
		"ms": func(v float64) string {
			return fmt.Sprintf("%.0fms", v)
		},
		"hasDelta": func(s *types.AggregateSummary) bool {
			return s.Delta != nil
		},
	}
}

const markdownTemplate = `# locateval run: {{ .RunID }}

**Split:** {{ .Split }}
**Instances:** {{ .InstanceCount }}
**Generated:** {{ .GeneratedAt.Format "2006-01-02T15:04:05Z07:00" }}

{{ range .Variants }}
## {{ .Variant }}

| Metric | Value |
|---|---|
| Instances | {{ .InstanceCount }} |
| Hit@1 | {{ pct .HitRateAt1 }} |
| Hit@3 | {{ pct .HitRateAt3 }} |
| Hit@5 | {{ pct .HitRateAt5 }} |
| Hit@10 | {{ pct .HitRateAt10 }} |
| Mean reciprocal rank | {{ f2 .MeanReciprocalRank }} |
| Mean coverage | {{ pct .MeanCoverage }} |
| Median duration | {{ ms .MedianDurationMS }} |
| p90 duration | {{ ms .P90DurationMS }} |
| Total tokens | {{ .TotalTokens }} |
| Total cost (USD) | {{ f2 .TotalCostUSD }} |
{{ end }}
{{- if hasDelta . }}
## Delta ({{ (index .Variants 1).Variant }} − {{ (index .Variants 0).Variant }})

| Axis | Δ |
|---|---|
| Hit@1 | {{ f2 .Delta.HitRateAt1Delta }} |
| Hit@3 | {{ f2 .Delta.HitRateAt3Delta }} |
| Hit@5 | {{ f2 .Delta.HitRateAt5Delta }} |
| Hit@10 | {{ f2 .Delta.HitRateAt10Delta }} |
| MRR | {{ f2 .Delta.MRRDelta }} |
| Total duration (ms) | {{ .Delta.TotalDurationMSDelta }} |
| Total tokens | {{ .Delta.TotalTokensDelta }} |
| Total cost (USD) | {{ f2 .Delta.TotalCostUSDDelta }} |
{{- end }}
`
