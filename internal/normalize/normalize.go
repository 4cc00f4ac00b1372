// Package normalize canonicalizes repo-relative file paths and extracts the
// oracle file set from a unified-diff reference patch. Every path that
// enters a ranking, an oracle, or a tool-output extraction passes through
// Path so that later equality comparisons are exact string equality.
package normalize

import "strings"

// Path canonicalizes a repo-relative path: it strips leading "./" segments
// repeatedly, strips leading slashes, collapses repeated slashes to one,
// and strips trailing slashes. Calling Path twice is equivalent to calling
// it once.
func Path(p string) string {
	for {
		if strings.HasPrefix(p, "./") {
			p = p[2:]
		} else if strings.HasPrefix(p, "/") {
			p = p[1:]
		} else {
			break
		}
	}

	var b strings.Builder
	b.Grow(len(p))
	lastSlash := false
	for _, r := range p {
		if r == '/' {
			if lastSlash {
				continue
			}
			lastSlash = true
		} else {
			lastSlash = false
		}
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), "/")
}

const diffHeaderPrefix = "diff --git a/"

// ExtractOracle scans patch for line-anchored "diff --git a/<X> b/<Y>"
// headers and returns the normalized set of <Y> paths, excluding the
// deleted-file sentinel ("/dev/null" or "dev/null"). When includeTestPatch
// is true, testPatch is scanned the same way and folded into the same set.
func ExtractOracle(patch, testPatch string, includeTestPatch bool) map[string]struct{} {
	oracle := make(map[string]struct{})
	extractInto(oracle, patch)
	if includeTestPatch {
		extractInto(oracle, testPatch)
	}
	return oracle
}

func extractInto(dst map[string]struct{}, patch string) {
	for _, line := range strings.Split(patch, "\n") {
		if !strings.HasPrefix(line, diffHeaderPrefix) {
			continue
		}
		bPath, ok := rightPath(line)
		if !ok {
			continue
		}
		if bPath == "/dev/null" || bPath == "dev/null" {
			continue
		}
		dst[Path(bPath)] = struct{}{}
	}
}

// rightPath extracts the "<Y>" component from a "diff --git a/<X> b/<Y>"
// header line. It looks for the last " b/" occurrence so that paths
// themselves containing " b/" (rare, but legal) don't confuse the split of
// the left-hand side.
func rightPath(line string) (string, bool) {
	idx := strings.LastIndex(line, " b/")
	if idx < 0 {
		return "", false
	}
	return line[idx+len(" b/"):], true
}

// MatchesOracle reports whether path, once normalized, is a member of
// oracle. oracle members are assumed already normalized.
func MatchesOracle(oracle map[string]struct{}, path string) bool {
	_, ok := oracle[Path(path)]
	return ok
}
