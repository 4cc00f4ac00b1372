package agentsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
)

// Request describes one agent session invocation, matching §6's abstract
// agent-service contract.
type Request struct {
	Prompt          string
	CWD             string
	Model           string
	SystemPrompt    string
	MaxTurns        int
	AllowedTools    []string
	DisallowedTools []string
	MCPServers      map[string]json.RawMessage
	PermissionMode  string
}

// DeniedTools must never appear in a Request's AllowedTools; the session
// package refuses to start a session that would grant them (§6).
var DeniedTools = []string{
	"write", "shell", "task-agent", "notebook", "multi-edit", "web-fetch", "web-search", "todo",
}

// Session drives the external agent-service process described by a
// Toolchain, producing the line-delimited JSON stream an
// internal/stream.Interpreter consumes.
type Session struct {
	Toolchain Toolchain
}

// NewSession constructs a Session bound to the resolved toolchain.
func NewSession(tc Toolchain) *Session {
	return &Session{Toolchain: tc}
}

// Start launches the agent-service process for req and returns its stdout
// for streaming consumption, along with a wait function the caller must
// invoke exactly once after it has finished reading the stream (mirroring
// the teacher's exec.CommandContext usage in internal/rpi/worktree.go,
// which always pairs Start with an explicit Wait).
func (s *Session) Start(ctx context.Context, req Request) (io.ReadCloser, func() error, error) {
	if denied := firstDeniedTool(req.AllowedTools); denied != "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrDeniedToolRequested, denied)
	}

	args := buildArgs(req)
	cmd := exec.CommandContext(ctx, s.Toolchain.RuntimeCommand, args...)
	cmd.Dir = req.CWD

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("attach agent-service stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrAgentServiceStart, err)
	}

	return stdout, cmd.Wait, nil
}

func firstDeniedTool(allowed []string) string {
	denied := make(map[string]struct{}, len(DeniedTools))
	for _, t := range DeniedTools {
		denied[t] = struct{}{}
	}
	for _, t := range allowed {
		if _, ok := denied[t]; ok {
			return t
		}
	}
	return ""
}

func buildArgs(req Request) []string {
	args := []string{
		"--output-format", "stream-json",
		"--print", req.Prompt,
	}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.SystemPrompt != "" {
		args = append(args, "--system-prompt", req.SystemPrompt)
	}
	if req.MaxTurns > 0 {
		args = append(args, "--max-turns", fmt.Sprintf("%d", req.MaxTurns))
	}
	if req.PermissionMode != "" {
		args = append(args, "--permission-mode", req.PermissionMode)
	}
	for _, tool := range req.AllowedTools {
		args = append(args, "--allowed-tool", tool)
	}
	for _, tool := range req.DisallowedTools {
		args = append(args, "--disallowed-tool", tool)
	}
	return args
}
