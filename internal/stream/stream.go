// Package stream interprets the line-delimited JSON message stream emitted
// by one agent session, dispatching on message type and driving the
// pre/post tool-use hooks that feed the run context and event log.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/agentloc/locateval/internal/eventlog"
	"github.com/agentloc/locateval/internal/extract"
	"github.com/agentloc/locateval/internal/obslog"
	"github.com/agentloc/locateval/internal/runctx"
	"github.com/agentloc/locateval/internal/types"
)

// Message type discriminators for the top-level envelope.
const (
	TypeSystem    = "system"
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeResult    = "result"
	TypeError     = "error"
)

// Content block type discriminators.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// envelope is the top-level shape of every line in the stream.
type envelope struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Model     string          `json:"model,omitempty"`
	CWD       string          `json:"cwd,omitempty"`
	Tools     []string        `json:"tools,omitempty"`
	Message   *rawMessage     `json:"message,omitempty"`
	Usage     *usage          `json:"usage,omitempty"`
	TotalCostUSD float64      `json:"total_cost_usd,omitempty"`
	DurationMS   int64        `json:"duration_ms,omitempty"`
	Error        string       `json:"error,omitempty"`
}

type rawMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Usage   *usage          `json:"usage,omitempty"`
}

type usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Result summarizes what an Interpreter observed over the whole stream.
type Result struct {
	FinalAnswer  string
	TotalCostUSD float64
	DurationMS   int64
}

// Interpreter drives one agent session: it owns no transport, only the
// dispatch logic and the side effects of the run (event log writes, run
// context mutation, candidate extraction).
type Interpreter struct {
	InstanceID string
	Variant    string

	rc        *runctx.RunContext
	log       *eventlog.Writer
	registry  extract.Registry

	// MaxToolCalls caps the number of tool invocations this interpreter
	// will process before it stops consuming the stream as if the agent
	// service had signaled a terminal result (0 = unlimited).
	MaxToolCalls int

	finalAnswer      string
	sessionStartSent bool
}

// New constructs an Interpreter for one session.
func New(instanceID, variant string, rc *runctx.RunContext, log *eventlog.Writer, registry extract.Registry) *Interpreter {
	return &Interpreter{
		InstanceID: instanceID,
		Variant:    variant,
		rc:         rc,
		log:        log,
		registry:   registry,
	}
}

// Run consumes newline-delimited JSON messages from r until EOF or a
// terminal result message, updating the run context and event log as it
// goes, and returns a summary of the terminal result. A malformed line is
// logged and skipped rather than aborting the session.
func (ip *Interpreter) Run(r io.Reader) (Result, error) {
	reader := newLineReader(r)
	var result Result

	for {
		line, readErr := reader.readLine()
		if len(line) > 0 {
			var env envelope
			if err := json.Unmarshal(line, &env); err != nil {
				obslog.Warnf("skipping malformed stream line: %v", err)
			} else if err := ip.dispatch(env, &result); err != nil {
				obslog.Warnf("stream dispatch error: %v", err)
			}
			if env.Type == TypeResult {
				break
			}
		}
		if ip.MaxToolCalls > 0 && ip.rc.ToolCallCount >= ip.MaxToolCalls {
			obslog.Warnf("agent session %s reached max tool calls (%d); stopping stream early", ip.InstanceID, ip.MaxToolCalls)
			break
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return result, fmt.Errorf("read stream: %w", readErr)
		}
	}

	return result, nil
}

// FinalAnswer returns the most recent assistant text block seen.
func (ip *Interpreter) FinalAnswer() string {
	return ip.finalAnswer
}

func (ip *Interpreter) dispatch(env envelope, result *Result) error {
	switch env.Type {
	case TypeSystem:
		return ip.handleSystem(env)
	case TypeAssistant:
		return ip.handleAssistant(env)
	case TypeUser:
		return ip.handleUser(env)
	case TypeResult:
		ip.handleResult(env, result)
		return nil
	case TypeError:
		obslog.Warnf("agent session %s reported error: %s", ip.InstanceID, env.Error)
		return nil
	default:
		return nil
	}
}

func (ip *Interpreter) handleSystem(env envelope) error {
	if ip.sessionStartSent {
		return nil
	}
	ip.sessionStartSent = true
	return ip.log.SessionStart(ip.InstanceID, ip.Variant, env.Model, env.CWD, env.Tools)
}

func (ip *Interpreter) handleAssistant(env envelope) error {
	if env.Message == nil {
		return nil
	}

	blocks := decodeBlocks(env.Message.Content)
	for _, block := range blocks {
		switch block.Type {
		case BlockText:
			if block.Text != "" {
				ip.finalAnswer = block.Text
			}
		case BlockToolUse:
			if err := ip.preToolUse(block.ID, block.Name, block.Input); err != nil {
				return err
			}
			ip.rc.LinkToolUse(block.ID, env.Message.ID)
		}
	}

	u := env.Message.Usage
	if u == nil {
		u = env.Usage
	}
	if u == nil {
		return nil
	}

	added := ip.rc.RecordUsage(env.Message.ID, toRunctxUsage(*u))
	if !added {
		return nil
	}
	return ip.log.Usage(env.Message.ID, u.InputTokens, u.OutputTokens, u.CacheReadInputTokens, u.CacheCreationInputTokens)
}

func (ip *Interpreter) handleUser(env envelope) error {
	if env.Message == nil {
		return nil
	}
	blocks := decodeBlocks(env.Message.Content)
	for _, block := range blocks {
		if block.Type != BlockToolResult {
			continue
		}
		output := decodeOutput(block.Content)
		if block.IsError {
			if err := ip.postToolFailure(block.ToolUseID, output); err != nil {
				return err
			}
			continue
		}
		if err := ip.postToolUse(block.ToolUseID, block.Input, output); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interpreter) handleResult(env envelope, result *Result) {
	result.TotalCostUSD = env.TotalCostUSD
	result.DurationMS = env.DurationMS
	result.FinalAnswer = ip.finalAnswer
	if env.Usage != nil {
		ip.rc.OverwriteUsage(toRunctxUsage(*env.Usage))
	}
}

func (ip *Interpreter) preToolUse(toolUseID, name string, input json.RawMessage) error {
	ip.rc.StartToolCall(toolUseID, name, input)
	return ip.log.ToolCallStart(name, toolUseID, input)
}

func (ip *Interpreter) postToolUse(toolUseID string, fallbackInput json.RawMessage, output any) error {
	call, found := ip.rc.EndToolCall(toolUseID)
	name := call.Name
	input := call.Input
	if !found {
		name = "unknown"
		input = fallbackInput
	}

	latencyMS := int64(0)
	if found {
		latencyMS = time.Since(call.Start).Milliseconds()
	}

	outputStr := stringifyOutput(output)
	ip.rc.RecordToolOutputChars(name, len(outputStr))

	if err := ip.log.ToolCallEnd(name, toolUseID, input, output, latencyMS, len(outputStr)); err != nil {
		return err
	}

	for _, candidate := range ip.registry.Candidates(name, input, output) {
		ip.rc.InsertCandidate(candidate)
	}
	return nil
}

func (ip *Interpreter) postToolFailure(toolUseID string, output any) error {
	call, found := ip.rc.EndToolCall(toolUseID)
	name := call.Name
	input := call.Input
	if !found {
		name = "unknown"
	}

	latencyMS := int64(0)
	if found {
		latencyMS = time.Since(call.Start).Milliseconds()
	}

	return ip.log.ToolCallError(name, toolUseID, input, stringifyOutput(output), latencyMS)
}

func toRunctxUsage(u usage) types.Usage {
	return types.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CacheTokens:  u.CacheReadInputTokens + u.CacheCreationInputTokens,
	}
}

func decodeBlocks(raw json.RawMessage) []contentBlock {
	if len(raw) == 0 {
		return nil
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err == nil {
		return blocks
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		return []contentBlock{{Type: BlockText, Text: text}}
	}
	return nil
}

func decodeOutput(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return string(raw)
	}
	return out
}

func stringifyOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// lineReader buffers arbitrarily long newline-delimited reads, since
// tool-output lines can exceed bufio.Scanner's default token size.
type lineReader struct {
	buf []byte
	r   io.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{buf: make([]byte, 0, 64*1024), r: r}
}

func (lr *lineReader) readLine() ([]byte, error) {
	for {
		if idx := bytes.IndexByte(lr.buf, '\n'); idx >= 0 {
			line := bytes.TrimSpace(lr.buf[:idx])
			lr.buf = lr.buf[idx+1:]
			return line, nil
		}

		chunk := make([]byte, 64*1024)
		n, err := lr.r.Read(chunk)
		if n > 0 {
			lr.buf = append(lr.buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				line := bytes.TrimSpace(lr.buf)
				lr.buf = lr.buf[:0]
				return line, io.EOF
			}
			return nil, err
		}
	}
}
