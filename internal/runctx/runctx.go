// Package runctx holds the mutable state accumulated while a single agent
// session runs: the behavioral ranking being built from tool output, usage
// and timing accumulators, and first-hit attribution. It is owned and
// mutated exclusively by the message-stream interpreter that drives one
// session; it is not safe for concurrent use by more than one goroutine.
package runctx

import (
	"net/url"
	"strings"
	"time"

	"github.com/agentloc/locateval/internal/normalize"
	"github.com/agentloc/locateval/internal/types"
)

// RunContext is constructed fresh for every agent session.
type RunContext struct {
	WorkspaceRoot string
	SessionStart  time.Time
	Oracle        map[string]struct{}

	BehavioralRanking types.Ranking
	seen              map[string]struct{}

	Usage types.Usage

	FirstHitTimeMS *int64
	FirstHitTokens *int

	ToolCallCount         int
	ToolOutputCharsByType map[string]int

	pending map[string]types.PendingToolCall

	seenMessageIDs        map[string]struct{}
	toolUseIDToMessageID  map[string]string
}

// New constructs a RunContext for a session rooted at workspaceRoot, scored
// against oracle (already normalized).
func New(workspaceRoot string, oracle map[string]struct{}, start time.Time) *RunContext {
	return &RunContext{
		WorkspaceRoot:         workspaceRoot,
		SessionStart:          start,
		Oracle:                oracle,
		seen:                  make(map[string]struct{}),
		ToolOutputCharsByType: make(map[string]int),
		pending:               make(map[string]types.PendingToolCall),
		seenMessageIDs:        make(map[string]struct{}),
		toolUseIDToMessageID:  make(map[string]string),
	}
}

// RecordUsage folds usage from messageID into the accumulator unless that
// message id has already been seen, per the stream's at-least-once delivery
// of assistant messages. It returns false when the usage was a duplicate
// and therefore ignored.
func (rc *RunContext) RecordUsage(messageID string, usage types.Usage) bool {
	if messageID != "" {
		if _, dup := rc.seenMessageIDs[messageID]; dup {
			return false
		}
		rc.seenMessageIDs[messageID] = struct{}{}
	}
	rc.Usage.InputTokens += usage.InputTokens
	rc.Usage.OutputTokens += usage.OutputTokens
	rc.Usage.CacheTokens += usage.CacheTokens
	return true
}

// LinkToolUse records which assistant message introduced a tool_use id, so
// that first-hit token attribution can be traced back to a usage snapshot.
func (rc *RunContext) LinkToolUse(toolUseID, messageID string) {
	if toolUseID == "" {
		return
	}
	rc.toolUseIDToMessageID[toolUseID] = messageID
}

// OverwriteUsage replaces the accumulated usage with the authoritative
// terminal totals carried by a result message.
func (rc *RunContext) OverwriteUsage(usage types.Usage) {
	rc.Usage = usage
}

// StartToolCall records the start of a tool invocation and increments the
// tool-call counter. Call this from the pre-tool-use hook.
func (rc *RunContext) StartToolCall(toolUseID, name string, input []byte) {
	rc.ToolCallCount++
	rc.pending[toolUseID] = types.PendingToolCall{
		Name:  name,
		Input: input,
		Start: time.Now(),
	}
}

// EndToolCall removes and returns the pending entry for toolUseID, if any.
func (rc *RunContext) EndToolCall(toolUseID string) (types.PendingToolCall, bool) {
	call, ok := rc.pending[toolUseID]
	if ok {
		delete(rc.pending, toolUseID)
	}
	return call, ok
}

// RecordToolOutputChars adds to the per-tool-name output size accounting.
func (rc *RunContext) RecordToolOutputChars(toolName string, chars int) {
	rc.ToolOutputCharsByType[toolName] += chars
}

// InsertCandidate applies the full candidate pipeline: workspace-root
// stripping, normalization, dedup insertion, and first-hit attribution. It
// reports whether the candidate was newly added to the ranking.
func (rc *RunContext) InsertCandidate(raw string) bool {
	stripped := rc.stripWorkspaceRoot(raw)
	path := normalize.Path(stripped)
	if path == "" {
		return false
	}
	if _, dup := rc.seen[path]; dup {
		return false
	}

	rc.seen[path] = struct{}{}
	rc.BehavioralRanking = append(rc.BehavioralRanking, path)

	if rc.FirstHitTimeMS == nil && normalize.MatchesOracle(rc.Oracle, path) {
		elapsed := time.Since(rc.SessionStart).Milliseconds()
		tokens := rc.Usage.Total()
		rc.FirstHitTimeMS = &elapsed
		rc.FirstHitTokens = &tokens
	}
	return true
}

// stripWorkspaceRoot removes a leading workspace-root prefix from raw,
// trying both the literal candidate and its URL-decoded form, since some
// tool outputs percent-encode path separators. The result is URL-decoded
// whenever it decodes cleanly.
func (rc *RunContext) stripWorkspaceRoot(raw string) string {
	if rc.WorkspaceRoot == "" {
		return raw
	}
	prefix := strings.TrimRight(rc.WorkspaceRoot, "/") + "/"

	if stripped, ok := cutPrefix(raw, prefix); ok {
		if decoded, err := url.PathUnescape(stripped); err == nil {
			return decoded
		}
		return stripped
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		if stripped, ok := cutPrefix(decoded, prefix); ok {
			return stripped
		}
		return decoded
	}
	return raw
}

func cutPrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}
