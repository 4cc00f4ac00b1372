package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

func runGit(t *testing.T, cwd string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
}

func runGitOutput(t *testing.T, cwd string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("git %s output failed: %v", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out))
}

func TestMirrorSlugReplacesSlash(t *testing.T) {
	if got := mirrorSlug("owner/name"); got != "owner__name.git" {
		t.Errorf("mirrorSlug = %q, want owner__name.git", got)
	}
}

func TestInstanceSlugSanitizes(t *testing.T) {
	if got := instanceSlug("owner/name-123:fix"); got != "owner_name_123_fix" {
		t.Errorf("instanceSlug = %q", got)
	}
}

func TestEnsureMirrorClonesThenRefreshes(t *testing.T) {
	source := initGitRepo(t)
	base := t.TempDir()
	m := New(filepath.Join(base, "repos"), filepath.Join(base, "work"), 30*time.Second)

	mirrorPath, err := m.EnsureMirror(context.Background(), "owner/name", source)
	if err != nil {
		t.Fatalf("EnsureMirror: %v", err)
	}
	if _, err := os.Stat(mirrorPath); err != nil {
		t.Fatalf("expected mirror directory to exist: %v", err)
	}

	again, err := m.EnsureMirror(context.Background(), "owner/name", source)
	if err != nil {
		t.Fatalf("EnsureMirror (refresh path): %v", err)
	}
	if again != mirrorPath {
		t.Errorf("EnsureMirror returned different path on refresh: %q vs %q", again, mirrorPath)
	}
}

func TestCheckoutProducesDetachedWorktreeAtRevision(t *testing.T) {
	source := initGitRepo(t)
	headSHA := runGitOutput(t, source, "rev-parse", "HEAD")

	base := t.TempDir()
	m := New(filepath.Join(base, "repos"), filepath.Join(base, "work"), 30*time.Second)

	mirrorPath, err := m.EnsureMirror(context.Background(), "owner/name", source)
	if err != nil {
		t.Fatalf("EnsureMirror: %v", err)
	}

	ws, err := m.Checkout(context.Background(), mirrorPath, "inst-1", headSHA)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if ws.ResolvedRevision != headSHA {
		t.Errorf("ResolvedRevision = %q, want %q", ws.ResolvedRevision, headSHA)
	}
	if _, err := os.Stat(filepath.Join(ws.Root, "README.md")); err != nil {
		t.Errorf("expected checkout to contain README.md: %v", err)
	}
}

func TestCheckoutReplacesExistingDirectory(t *testing.T) {
	source := initGitRepo(t)
	headSHA := runGitOutput(t, source, "rev-parse", "HEAD")

	base := t.TempDir()
	m := New(filepath.Join(base, "repos"), filepath.Join(base, "work"), 30*time.Second)

	mirrorPath, err := m.EnsureMirror(context.Background(), "owner/name", source)
	if err != nil {
		t.Fatalf("EnsureMirror: %v", err)
	}

	if _, err := m.Checkout(context.Background(), mirrorPath, "inst-1", headSHA); err != nil {
		t.Fatalf("first Checkout: %v", err)
	}
	ws, err := m.Checkout(context.Background(), mirrorPath, "inst-1", headSHA)
	if err != nil {
		t.Fatalf("second Checkout: %v", err)
	}
	if ws.ResolvedRevision != headSHA {
		t.Errorf("ResolvedRevision = %q, want %q", ws.ResolvedRevision, headSHA)
	}
}

func TestListFilesPrefersGitLsFiles(t *testing.T) {
	repo := initGitRepo(t)
	files, err := ListFiles(context.Background(), repo, nil)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "README.md" {
		t.Errorf("files = %v, want [README.md]", files)
	}
}

func TestListFilesFallsBackToWalk(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.py"), []byte("pass"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	files, err := ListFiles(context.Background(), dir, []string{".py"})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "a.py" {
		t.Errorf("files = %v, want [a.py]", files)
	}
}
