package score

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// fileTokenPattern matches file-like tokens: a run of non-whitespace
// containing a slash and a dot-extension.
var fileTokenPattern = regexp.MustCompile(`[A-Za-z0-9_\-./]+/[A-Za-z0-9_\-./]*\.[A-Za-z0-9]+`)

const maxDeclaredFallback = 10

// ParseDeclaredRanking extracts the agent's declared top-files list from its
// final textual answer, in order:
//  1. a fenced JSON code block whose parsed object has a "top_files" array;
//  2. the first JSON object appearing anywhere in the text that contains
//     the literal substring `"top_files"`;
//  3. a regex fallback that harvests file-like tokens (contain a slash and
//     a dot-extension, excluding URLs and ellipses) and returns at most the
//     first ten distinct ones.
func ParseDeclaredRanking(text string) []string {
	if files, ok := parseFencedJSON(text); ok {
		return files
	}
	if files, ok := parseInlineTopFiles(text); ok {
		return files
	}
	return parseFileTokens(text)
}

type topFilesPayload struct {
	TopFiles []string `json:"top_files"`
}

func parseFencedJSON(text string) ([]string, bool) {
	for _, m := range fencedJSONPattern.FindAllStringSubmatch(text, -1) {
		var payload topFilesPayload
		if err := json.Unmarshal([]byte(m[1]), &payload); err == nil && len(payload.TopFiles) > 0 {
			return payload.TopFiles, true
		}
	}
	return nil, false
}

// parseInlineTopFiles scans for the first `{...}` span containing the
// literal substring `"top_files"` and decodes it directly, without
// requiring a fence.
func parseInlineTopFiles(text string) ([]string, bool) {
	idx := strings.Index(text, `"top_files"`)
	if idx < 0 {
		return nil, false
	}

	start := strings.LastIndexByte(text[:idx], '{')
	if start < 0 {
		return nil, false
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				var payload topFilesPayload
				if err := json.Unmarshal([]byte(text[start:i+1]), &payload); err == nil && len(payload.TopFiles) > 0 {
					return payload.TopFiles, true
				}
				return nil, false
			}
		}
	}
	return nil, false
}

func parseFileTokens(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range fileTokenPattern.FindAllString(text, -1) {
		if len(out) >= maxDeclaredFallback {
			break
		}
		if looksLikeURL(tok) || strings.Contains(tok, "...") {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// looksLikeURL reports whether tok is URL-shaped. fileTokenPattern cannot
// match a scheme's colon, so a "https://host/x.py" URL surfaces as the
// scheme-relative token "//host/x.py".
func looksLikeURL(tok string) bool {
	lower := strings.ToLower(tok)
	return strings.Contains(lower, "http://") || strings.Contains(lower, "https://") || strings.HasPrefix(lower, "www.") || strings.HasPrefix(lower, "//")
}
