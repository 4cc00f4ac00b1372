// Package workspace manages the on-disk git state an agent session
// operates in: one shared bare mirror per repository, refreshed
// best-effort, and one detached working checkout per benchmark instance.
package workspace

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentloc/locateval/internal/obslog"
	"github.com/agentloc/locateval/internal/types"
)

// DefaultExtensions is the extension allowlist used by the filesystem-walk
// fallback in ListFiles when a workspace has no git index to query.
var DefaultExtensions = []string{
	".py", ".go", ".js", ".jsx", ".ts", ".tsx", ".java", ".kt", ".c", ".h",
	".cpp", ".hpp", ".cc", ".rb", ".rs", ".php", ".cs", ".scala", ".swift",
	".md", ".yaml", ".yml", ".json", ".toml",
}

// Manager owns the bare-mirror cache directory and the per-instance
// checkout directory.
type Manager struct {
	CacheDir string
	WorkDir  string
	Timeout  time.Duration
}

// New constructs a Manager. cacheDir holds one bare mirror per repository;
// workDir holds one detached checkout per instance.
func New(cacheDir, workDir string, timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Manager{CacheDir: cacheDir, WorkDir: workDir, Timeout: timeout}
}

// mirrorSlug turns an "owner/name" repository coordinate into a
// filesystem-safe bare-mirror directory name.
func mirrorSlug(repo string) string {
	return strings.ReplaceAll(repo, "/", "__") + ".git"
}

// instanceSlug replaces every non-alphanumeric rune in instanceID with an
// underscore, for use as a checkout directory name.
func instanceSlug(instanceID string) string {
	var b strings.Builder
	b.Grow(len(instanceID))
	for _, r := range instanceID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EnsureMirror returns the path to the bare mirror for repo (a
// "owner/name" coordinate cloned from cloneURL), cloning it if absent and
// refreshing its remote references if present. A refresh failure is
// logged and does not abort the run.
func (m *Manager) EnsureMirror(ctx context.Context, repo, cloneURL string) (string, error) {
	mirrorPath := filepath.Join(m.CacheDir, mirrorSlug(repo))

	if _, err := os.Stat(mirrorPath); err == nil {
		m.refreshMirror(ctx, mirrorPath)
		return mirrorPath, nil
	}

	if err := os.MkdirAll(m.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create mirror cache dir: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "clone", "--mirror", cloneURL, mirrorPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMirrorCloneFailed, strings.TrimSpace(string(out)))
	}
	return mirrorPath, nil
}

func (m *Manager) refreshMirror(ctx context.Context, mirrorPath string) {
	cctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "--git-dir", mirrorPath, "remote", "update", "--prune")
	if out, err := cmd.CombinedOutput(); err != nil {
		obslog.Warnf("mirror refresh failed for %s: %v (%s)", mirrorPath, err, strings.TrimSpace(string(out)))
	}
}

// Checkout creates a fresh detached worktree at revision for instanceID,
// replacing any existing checkout at the same path. It reports the
// resolved HEAD of the checkout, which may differ from revision when
// revision is a symbolic ref.
func (m *Manager) Checkout(ctx context.Context, mirrorPath, instanceID, revision string) (types.Workspace, error) {
	start := time.Now()
	workPath := filepath.Join(m.WorkDir, instanceSlug(instanceID))

	if _, err := os.Stat(workPath); err == nil {
		m.removeWorktree(ctx, mirrorPath, workPath)
	}

	if err := os.MkdirAll(m.WorkDir, 0o755); err != nil {
		return types.Workspace{}, fmt.Errorf("create work dir: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, m.Timeout)
	cmd := exec.CommandContext(cctx, "git", "--git-dir", mirrorPath, "worktree", "add", "--detach", "--force", workPath, revision)
	out, err := cmd.CombinedOutput()
	cancel()
	if err != nil {
		return types.Workspace{}, fmt.Errorf("%w: %s", ErrCheckoutFailed, strings.TrimSpace(string(out)))
	}

	resolved, err := m.resolveHead(ctx, workPath)
	if err != nil {
		return types.Workspace{}, err
	}

	return types.Workspace{
		Root:             workPath,
		ResolvedRevision: resolved,
		CheckoutDuration: time.Since(start),
	}, nil
}

func (m *Manager) resolveHead(ctx context.Context, workPath string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, "git", "-C", workPath, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: resolve checkout HEAD: %v", ErrInvalidRevision, err)
	}
	rev := strings.TrimSpace(string(out))
	if rev == "" {
		return "", ErrInvalidRevision
	}
	return rev, nil
}

// Remove tears down the checkout at root, using the orderly worktree
// removal path first and falling back to a forced directory delete.
func (m *Manager) Remove(ctx context.Context, mirrorPath, root string) error {
	m.removeWorktree(ctx, mirrorPath, root)
	return nil
}

func (m *Manager) removeWorktree(ctx context.Context, mirrorPath, workPath string) {
	cctx, cancel := context.WithTimeout(ctx, m.Timeout)
	cmd := exec.CommandContext(cctx, "git", "--git-dir", mirrorPath, "worktree", "remove", workPath, "--force")
	err := cmd.Run()
	cancel()
	if err != nil {
		if rmErr := os.RemoveAll(workPath); rmErr != nil {
			obslog.Warnf("failed to remove stale checkout %s: %v", workPath, rmErr)
		}
	}
}

// ListFiles enumerates the files in a checkout: git-tracked files when
// available, or a filesystem walk filtered by extensions otherwise.
func ListFiles(ctx context.Context, root string, extensions []string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	cmd := exec.CommandContext(cctx, "git", "-C", root, "ls-files")
	out, err := cmd.Output()
	cancel()
	if err == nil {
		var files []string
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				files = append(files, line)
			}
		}
		return files, nil
	}

	return walkFiles(root, extensions)
}

func walkFiles(root string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allow := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allow[ext] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := allow[filepath.Ext(path)]; !ok {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk workspace files: %w", err)
	}
	return files, nil
}
