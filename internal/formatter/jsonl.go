package formatter

import (
	"encoding/json"
	"io"

	"github.com/agentloc/locateval/internal/types"
)

// JSONLFormatter writes a single record as one line of JSON. It backs the
// `--output json` report mode (§4.9: "JSON dump is authoritative") as well
// as the per-instance metrics.jsonl and summary.json writers, which marshal
// types.InstanceMetrics and types.AggregateSummary respectively.
type JSONLFormatter struct {
	// Pretty enables indented JSON. Left false for metrics.jsonl, where
	// one compact line per instance keeps the file streamable; a caller
	// rendering a single summary.json for human inspection may set it.
	Pretty bool
}

// NewJSONLFormatter creates a new JSONL formatter.
func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{Pretty: false}
}

// Extension returns the file extension for JSONL output.
func (jf *JSONLFormatter) Extension() string {
	return ".jsonl"
}

// FormatMetrics writes one InstanceMetrics record as a JSON line.
func (jf *JSONLFormatter) FormatMetrics(w io.Writer, m *types.InstanceMetrics) error {
	return jf.encode(w, m)
}

// FormatSummary writes an AggregateSummary as JSON.
func (jf *JSONLFormatter) FormatSummary(w io.Writer, s *types.AggregateSummary) error {
	return jf.encode(w, s)
}

func (jf *JSONLFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if jf.Pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(v)
}
