// Package eventlog writes the append-only, line-delimited event record for
// one (instance, variant) agent session. Each line is a self-describing
// JSON object carrying a "type" and "timestamp" field plus kind-specific
// fields.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kind discriminators, written as the "type" field of every record.
const (
	KindSessionStart   = "session-start"
	KindSessionEnd     = "session-end"
	KindToolCallStart  = "tool-call-start"
	KindToolCallEnd    = "tool-call-end"
	KindToolCallError  = "tool-call-error"
	KindUsage          = "usage"
)

// Writer appends event records to a single file. It is safe for
// concurrent use by a single goroutine driving one session; the on-disk
// file is not shared across variants, so no cross-writer locking is
// required.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	enc  *json.Encoder
	path string
}

// Open creates parent directories as needed and opens path for
// append-only writing, creating it if absent.
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create event log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &Writer{f: f, enc: enc, path: path}, nil
}

// Path returns the file path this writer appends to.
func (w *Writer) Path() string {
	return w.path
}

// Close flushes and releases the underlying file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

func (w *Writer) write(record map[string]any) error {
	record["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(record); err != nil {
		return fmt.Errorf("write event record: %w", err)
	}
	return nil
}

// SessionStart records the beginning of an agent session.
func (w *Writer) SessionStart(instanceID, variant, model, cwd string, allowedTools []string) error {
	return w.write(map[string]any{
		"type":          KindSessionStart,
		"instance_id":   instanceID,
		"agent_variant": variant,
		"model":         model,
		"cwd":           cwd,
		"allowed_tools": allowedTools,
	})
}

// SessionEndUsage mirrors the shape of the usage totals reported at
// session end.
type SessionEndUsage struct {
	Input     int `json:"input"`
	Output    int `json:"output"`
	CacheRead int `json:"cache_read"`
}

// SessionEnd records the terminal state of an agent session.
func (w *Writer) SessionEnd(instanceID, variant string, durationMS int64, totalCostUSD float64, usage SessionEndUsage, topFilesFinal, rankedFilesFromTools []string) error {
	return w.write(map[string]any{
		"type":                    KindSessionEnd,
		"instance_id":             instanceID,
		"agent_variant":           variant,
		"duration_ms":             durationMS,
		"total_cost_usd":          totalCostUSD,
		"usage":                   usage,
		"top_files_final":         topFilesFinal,
		"ranked_files_from_tools": rankedFilesFromTools,
	})
}

// ToolCallStart records that a tool invocation began.
func (w *Writer) ToolCallStart(toolName, toolUseID string, input json.RawMessage) error {
	return w.write(map[string]any{
		"type":        KindToolCallStart,
		"tool_name":   toolName,
		"tool_use_id": toolUseID,
		"input":       input,
	})
}

// ToolCallEnd records a successful tool invocation.
func (w *Writer) ToolCallEnd(toolName, toolUseID string, input json.RawMessage, output any, latencyMS int64, outputChars int) error {
	return w.write(map[string]any{
		"type":         KindToolCallEnd,
		"tool_name":    toolName,
		"tool_use_id":  toolUseID,
		"input":        input,
		"output":       output,
		"latency_ms":   latencyMS,
		"output_chars": outputChars,
	})
}

// ToolCallError records a failed tool invocation.
func (w *Writer) ToolCallError(toolName, toolUseID string, input json.RawMessage, errMsg string, latencyMS int64) error {
	return w.write(map[string]any{
		"type":        KindToolCallError,
		"tool_name":   toolName,
		"tool_use_id": toolUseID,
		"input":       input,
		"error":       errMsg,
		"latency_ms":  latencyMS,
	})
}

// Usage records the incremental usage folded in from one assistant
// message. cacheReadTokens and cacheCreationTokens are each omitted from
// the record when zero.
func (w *Writer) Usage(messageID string, inputTokens, outputTokens, cacheReadTokens, cacheCreationTokens int) error {
	record := map[string]any{
		"type":          KindUsage,
		"message_id":    messageID,
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
	}
	if cacheReadTokens != 0 {
		record["cache_read_input_tokens"] = cacheReadTokens
	}
	if cacheCreationTokens != 0 {
		record["cache_creation_input_tokens"] = cacheCreationTokens
	}
	return w.write(record)
}
