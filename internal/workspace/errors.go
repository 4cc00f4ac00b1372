package workspace

import "errors"

var (
	// ErrNotGitRepo is returned when a path expected to be a git working
	// tree does not resolve to one.
	ErrNotGitRepo = errors.New("workspace: not a git repository")

	// ErrMirrorCloneFailed is returned when the initial bare-mirror clone
	// of a repository fails.
	ErrMirrorCloneFailed = errors.New("workspace: mirror clone failed")

	// ErrCheckoutFailed is returned when creating a detached worktree
	// checkout fails. The checkout is attempted once.
	ErrCheckoutFailed = errors.New("workspace: checkout failed")

	// ErrInvalidRevision is returned when the resolved HEAD of a checkout
	// is empty or cannot be determined.
	ErrInvalidRevision = errors.New("workspace: could not resolve revision")
)
