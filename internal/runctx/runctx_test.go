package runctx

import (
	"testing"
	"time"

	"github.com/agentloc/locateval/internal/types"
)

func newTestContext() *RunContext {
	oracle := map[string]struct{}{"src/target.py": {}}
	return New("/workspace/repo", oracle, time.Now())
}

func TestInsertCandidateNormalizesAndDedups(t *testing.T) {
	rc := newTestContext()

	if !rc.InsertCandidate("/workspace/repo/src/a.py") {
		t.Fatal("expected first insert to succeed")
	}
	if rc.InsertCandidate("/workspace/repo/src/a.py") {
		t.Fatal("expected duplicate insert to be rejected")
	}
	if len(rc.BehavioralRanking) != 1 || rc.BehavioralRanking[0] != "src/a.py" {
		t.Errorf("ranking = %v, want [src/a.py]", rc.BehavioralRanking)
	}
}

func TestInsertCandidateStripsWorkspaceRoot(t *testing.T) {
	rc := newTestContext()
	rc.InsertCandidate("/workspace/repo/src/b.py")
	if rc.BehavioralRanking[0] != "src/b.py" {
		t.Errorf("got %q, want src/b.py", rc.BehavioralRanking[0])
	}
}

func TestInsertCandidateURLDecodes(t *testing.T) {
	rc := newTestContext()
	rc.InsertCandidate("/workspace/repo/src%2Fc.py")
	if len(rc.BehavioralRanking) != 1 || rc.BehavioralRanking[0] != "src/c.py" {
		t.Errorf("got %v, want [src/c.py]", rc.BehavioralRanking)
	}
}

func TestFirstHitSetOnce(t *testing.T) {
	rc := newTestContext()
	rc.RecordUsage("msg-1", types.Usage{InputTokens: 100, OutputTokens: 20})

	rc.InsertCandidate("/workspace/repo/src/target.py")
	if rc.FirstHitTimeMS == nil || rc.FirstHitTokens == nil {
		t.Fatal("expected first-hit to be set")
	}
	if *rc.FirstHitTokens != 120 {
		t.Errorf("FirstHitTokens = %d, want 120", *rc.FirstHitTokens)
	}

	firstTime := *rc.FirstHitTimeMS
	rc.RecordUsage("msg-2", types.Usage{InputTokens: 500})
	rc.InsertCandidate("/workspace/repo/src/other-target.py")

	if *rc.FirstHitTimeMS != firstTime {
		t.Error("first-hit time should not be overwritten")
	}
	if *rc.FirstHitTokens != 120 {
		t.Error("first-hit tokens should not be overwritten")
	}
}

func TestRecordUsageDeduplicatesByMessageID(t *testing.T) {
	rc := newTestContext()
	if !rc.RecordUsage("msg-1", types.Usage{InputTokens: 10}) {
		t.Fatal("expected first usage record to be accepted")
	}
	if rc.RecordUsage("msg-1", types.Usage{InputTokens: 10}) {
		t.Fatal("expected duplicate message id to be ignored")
	}
	if rc.Usage.InputTokens != 10 {
		t.Errorf("Usage.InputTokens = %d, want 10", rc.Usage.InputTokens)
	}
}

func TestStartAndEndToolCall(t *testing.T) {
	rc := newTestContext()
	rc.StartToolCall("tool-1", "Read", []byte(`{"file_path":"a.py"}`))
	if rc.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d, want 1", rc.ToolCallCount)
	}

	call, ok := rc.EndToolCall("tool-1")
	if !ok {
		t.Fatal("expected pending call to be found")
	}
	if call.Name != "Read" {
		t.Errorf("call.Name = %q, want Read", call.Name)
	}

	if _, ok := rc.EndToolCall("tool-1"); ok {
		t.Error("expected second EndToolCall to find nothing")
	}
}

func TestOverwriteUsageReplacesAccumulator(t *testing.T) {
	rc := newTestContext()
	rc.RecordUsage("msg-1", types.Usage{InputTokens: 10, OutputTokens: 5})
	rc.OverwriteUsage(types.Usage{InputTokens: 999, OutputTokens: 999})

	if rc.Usage.InputTokens != 999 {
		t.Errorf("Usage.InputTokens = %d, want 999 after overwrite", rc.Usage.InputTokens)
	}
}
