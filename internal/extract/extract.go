// Package extract lifts candidate file paths out of tool call inputs and
// outputs. Each tool gets its own extraction rule; dispatch is by tool name
// so that adding support for a new tool is a single new registry entry.
package extract

import (
	"encoding/json"
	"strings"
)

// Rule derives zero or more raw (not yet normalized or workspace-stripped)
// candidate paths from a tool's input and output.
type Rule func(input json.RawMessage, output any) []string

// Registry is the tool-name -> Rule table. Callers may copy DefaultRegistry
// and add entries for tools not covered here.
type Registry map[string]Rule

// Tool name constants matching the agent service's tool identifiers.
const (
	ToolRead           = "Read"
	ToolGrep           = "Grep"
	ToolGlob           = "Glob"
	ToolSemanticSearch = "mcp__semantic_search__search"
)

// DefaultRegistry implements the four tool rules from the capability
// contract: file-read, content-search, glob, and semantic-search.
var DefaultRegistry = Registry{
	ToolRead:           extractRead,
	ToolGrep:           extractGrep,
	ToolGlob:           extractGlob,
	ToolSemanticSearch: extractSemanticSearch,
}

// Candidates runs the rule registered for toolName, if any. Unregistered
// tool names yield no candidates rather than an error: per §7 a
// ToolExtractionParseError is swallowed, the candidate dropped, and the
// session continues.
func (r Registry) Candidates(toolName string, input json.RawMessage, output any) []string {
	rule, ok := r[toolName]
	if !ok {
		return nil
	}
	return safeCall(rule, input, output)
}

// safeCall recovers from a panicking rule (e.g. a malformed output shape)
// so a single bad tool call never aborts the session.
func safeCall(rule Rule, input json.RawMessage, output any) (candidates []string) {
	defer func() {
		if recover() != nil {
			candidates = nil
		}
	}()
	return rule(input, output)
}

// extractRead pulls the file_path field out of a Read tool's input.
func extractRead(input json.RawMessage, _ any) []string {
	var args struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &args); err != nil || args.FilePath == "" {
		return nil
	}
	return []string{args.FilePath}
}

// extractGrep parses content-search output line by line. For each line it
// takes the prefix before the first colon, discards all-digit prefixes
// (line numbers with no path, or just a bare number), and keeps prefixes
// that look path-like (contain a separator or a dot).
func extractGrep(_ json.RawMessage, output any) []string {
	text := outputText(output)
	if text == "" {
		return nil
	}

	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		prefix := line
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			prefix = line[:idx]
		}
		prefix = strings.TrimSpace(prefix)
		if prefix == "" || isAllDigits(prefix) {
			continue
		}
		if strings.ContainsAny(prefix, "/\\") || strings.Contains(prefix, ".") {
			candidates = append(candidates, prefix)
		}
	}
	return candidates
}

// extractGlob accepts either a newline-delimited string or a list of
// strings as output.
func extractGlob(_ json.RawMessage, output any) []string {
	switch v := output.(type) {
	case string:
		return splitNonEmpty(v)
	case []any:
		var candidates []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				candidates = append(candidates, s)
			}
		}
		return candidates
	case []string:
		return v
	default:
		return nil
	}
}

const (
	filesOpener = "__FILES__\n"
	filesCloser = "\n__END_FILES__"
)

// extractSemanticSearch looks for the __FILES__/__END_FILES__ delimited
// block in the tool's textual output and splits its payload on newlines.
func extractSemanticSearch(_ json.RawMessage, output any) []string {
	text := outputText(output)
	start := strings.Index(text, filesOpener)
	if start < 0 {
		return nil
	}
	payload := text[start+len(filesOpener):]
	end := strings.Index(payload, filesCloser)
	if end < 0 {
		return nil
	}
	return splitNonEmpty(payload[:end])
}

// outputText coerces a tool's output into its textual form, accepting a
// plain string, a list of {type:"text", text} blocks (concatenated), or an
// object with a "text" field.
func outputText(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := m["type"].(string); t != "text" && t != "" {
				continue
			}
			if text, ok := m["text"].(string); ok {
				b.WriteString(text)
			}
		}
		return b.String()
	case map[string]any:
		if text, ok := v["text"].(string); ok {
			return text
		}
	}
	return ""
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
