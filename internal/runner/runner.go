// Package runner wires the evaluation pipeline end to end: for each bug
// instance, materialize a workspace, extract the oracle, then for each
// enabled agent variant drive a session, score its rankings, and append
// the result to the run's metrics log. It owns the top-level control loop;
// every component it calls owns its own error-isolation policy (§7).
package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentloc/locateval/internal/agentsvc"
	"github.com/agentloc/locateval/internal/config"
	"github.com/agentloc/locateval/internal/embedding"
	"github.com/agentloc/locateval/internal/eventlog"
	"github.com/agentloc/locateval/internal/extract"
	"github.com/agentloc/locateval/internal/formatter"
	"github.com/agentloc/locateval/internal/normalize"
	"github.com/agentloc/locateval/internal/obslog"
	"github.com/agentloc/locateval/internal/runctx"
	"github.com/agentloc/locateval/internal/score"
	"github.com/agentloc/locateval/internal/stream"
	"github.com/agentloc/locateval/internal/types"
	"github.com/agentloc/locateval/internal/workspace"
)

// opsOnlyTools and opsPlusSearchTools are the allowed-tool sets for each
// variant (§2/§6): read, content-search, and glob for every variant, plus
// semantic search for the richer arm.
var (
	opsOnlyTools       = []string{extract.ToolRead, extract.ToolGrep, extract.ToolGlob}
	opsPlusSearchTools = append(append([]string{}, opsOnlyTools...), extract.ToolSemanticSearch)
)

const systemPromptTemplate = `You are investigating a bug report in a checked-out repository at %s.
Use the available tools to locate the files that must change to fix the issue.
When you are done, answer with a JSON object of the shape {"top_files": ["path/one.py", "path/two.py"]}
listing the files you believe are most relevant, most relevant first.`

// Runner drives one evaluation run across a set of bug instances.
type Runner struct {
	Config    *config.Config
	Dataset   DatasetLoader
	Workspace *workspace.Manager
	Starter   SessionStarter
	Registry  extract.Registry
	Pricer    *embedding.Pricer

	EventsDir        string
	MetricsWriter    io.Writer
	includeTestPatch bool

	// InstanceFilter, when non-empty, restricts Run to these instance ids
	// (the CLI's repeatable --instance flag).
	InstanceFilter []string
}

// DatasetLoader is the subset of dataset.Loader the runner depends on,
// narrowed to an interface so tests can supply a fixed instance list
// without standing up an HTTP server.
type DatasetLoader interface {
	Load(ctx context.Context, split string, maxInstances int) ([]types.BugInstance, error)
}

// SessionStarter is the subset of agentsvc.Session the runner depends on,
// narrowed to an interface so tests can supply a canned message stream
// without shelling out to a real agent-service binary.
type SessionStarter interface {
	Start(ctx context.Context, req agentsvc.Request) (io.ReadCloser, func() error, error)
}

// New constructs a Runner. eventsDir is the run's events/ subdirectory;
// metricsWriter receives one JSON line per (instance, variant) result.
func New(cfg *config.Config, ds DatasetLoader, ws *workspace.Manager, tc agentsvc.Toolchain, eventsDir string, metricsWriter io.Writer) *Runner {
	pricer := embedding.NewPricer(toEmbeddingPriceTable(cfg.Embedding.Pricing))
	return &Runner{
		Config:        cfg,
		Dataset:       ds,
		Workspace:     ws,
		Starter:       agentsvc.NewSession(tc),
		Registry:      extract.DefaultRegistry,
		Pricer:        pricer,
		EventsDir:     eventsDir,
		MetricsWriter: metricsWriter,
	}
}

func toEmbeddingPriceTable(raw map[string]map[int]float64) embedding.PriceTable {
	table := make(embedding.PriceTable, len(raw))
	for provider, byDims := range raw {
		table[embedding.Provider(provider)] = byDims
	}
	return table
}

// Run evaluates every instance in split (bounded by Config.MaxInstances)
// across every enabled variant, returning the collected metrics.
func (r *Runner) Run(ctx context.Context) ([]types.InstanceMetrics, error) {
	instances, err := r.Dataset.Load(ctx, r.Config.Split, r.Config.MaxInstances)
	if err != nil {
		return nil, err
	}
	instances = filterInstances(instances, r.InstanceFilter)

	var all []types.InstanceMetrics
	for _, inst := range instances {
		metrics, err := r.runInstance(ctx, inst)
		if err != nil {
			obslog.Warnf("skipping instance %s: %v", inst.InstanceID, err)
			continue
		}
		all = append(all, metrics...)
	}
	return all, nil
}

func (r *Runner) runInstance(ctx context.Context, inst types.BugInstance) ([]types.InstanceMetrics, error) {
	cloneURL := fmt.Sprintf("https://github.com/%s.git", inst.Repo)
	mirrorPath, err := r.Workspace.EnsureMirror(ctx, inst.Repo, cloneURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkspaceUnavailable, err)
	}

	ws, err := r.Workspace.Checkout(ctx, mirrorPath, inst.InstanceID, inst.BaseCommit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkspaceUnavailable, err)
	}
	defer func() {
		if rmErr := r.Workspace.Remove(ctx, mirrorPath, ws.Root); rmErr != nil {
			obslog.Warnf("failed to clean up workspace %s: %v", ws.Root, rmErr)
		}
	}()

	oracleSet := normalize.ExtractOracle(inst.Patch, inst.TestPatch, r.includeTestPatch)
	oracle := types.NewOracle()
	for p := range oracleSet {
		oracle[p] = struct{}{}
	}

	var results []types.InstanceMetrics
	for _, variantName := range r.Config.Variants {
		variant := types.Variant(variantName)
		m := r.runVariant(ctx, inst, ws, oracleSet, oracle, variant)
		results = append(results, m)
	}
	return results, nil
}

func (r *Runner) runVariant(ctx context.Context, inst types.BugInstance, ws types.Workspace, oracleSet map[string]struct{}, oracle types.Oracle, variant types.Variant) types.InstanceMetrics {
	metrics := types.InstanceMetrics{
		InstanceID: inst.InstanceID,
		Variant:    variant,
		Oracle:     oracle.Paths(),
	}

	logPath := filepath.Join(r.EventsDir, fmt.Sprintf("%s_%s.jsonl", sanitizeInstanceID(inst.InstanceID), variant))
	logWriter, err := eventlog.Open(logPath)
	if err != nil {
		metrics.Error = err.Error()
		return metrics
	}
	defer logWriter.Close()

	rc := runctx.New(ws.Root, oracleSet, time.Now())

	req := agentsvc.Request{
		Prompt:         inst.ProblemStatement,
		CWD:            ws.Root,
		Model:          r.Config.Model,
		SystemPrompt:   fmt.Sprintf(systemPromptTemplate, ws.Root),
		MaxTurns:       r.Config.MaxTurns,
		AllowedTools:   allowedToolsFor(variant),
		PermissionMode: "plan",
	}

	stdout, wait, err := r.Starter.Start(ctx, req)
	if err != nil {
		metrics.Error = fmt.Errorf("%w: %v", ErrAgentStream, err).Error()
		return metrics
	}

	interp := stream.New(inst.InstanceID, string(variant), rc, logWriter, r.Registry)
	interp.MaxToolCalls = r.Config.MaxToolCalls
	streamResult, runErr := interp.Run(stdout)
	waitErr := wait()

	if runErr != nil {
		metrics.Error = fmt.Errorf("%w: %v", ErrAgentStream, runErr).Error()
	} else if waitErr != nil {
		obslog.Warnf("agent session %s/%s exited with error: %v", inst.InstanceID, variant, waitErr)
	}

	behavioral := score.Score(rc.BehavioralRanking, oracleSet)
	declaredRanking := types.Ranking(score.ParseDeclaredRanking(interp.FinalAnswer()))
	for i, p := range declaredRanking {
		declaredRanking[i] = normalize.Path(p)
	}
	declared := score.Score(declaredRanking, oracleSet)

	metrics.BehavioralRanking = rc.BehavioralRanking
	metrics.DeclaredRanking = declaredRanking
	metrics.Behavioral = behavioral
	metrics.Declared = declared
	metrics.FirstHitTimeMS = rc.FirstHitTimeMS
	metrics.FirstHitTokens = rc.FirstHitTokens
	metrics.Usage = rc.Usage
	metrics.TotalCostUSD = streamResult.TotalCostUSD
	metrics.DurationMS = streamResult.DurationMS
	metrics.ToolCallCount = rc.ToolCallCount
	metrics.ToolOutputCharsByType = rc.ToolOutputCharsByType

	usage := eventlog.SessionEndUsage{Input: rc.Usage.InputTokens, Output: rc.Usage.OutputTokens, CacheRead: rc.Usage.CacheTokens}
	if err := logWriter.SessionEnd(inst.InstanceID, string(variant), streamResult.DurationMS, streamResult.TotalCostUSD, usage, declaredRanking, rc.BehavioralRanking); err != nil {
		obslog.Warnf("failed to write session-end for %s/%s: %v", inst.InstanceID, variant, err)
	}

	if r.MetricsWriter != nil {
		if err := formatter.NewJSONLFormatter().FormatMetrics(r.MetricsWriter, &metrics); err != nil {
			obslog.Warnf("failed to write metrics record for %s/%s: %v", inst.InstanceID, variant, err)
		}
	}

	return metrics
}

// filterInstances restricts instances to those whose InstanceID appears in
// ids. An empty ids leaves the set unrestricted.
func filterInstances(instances []types.BugInstance, ids []string) []types.BugInstance {
	if len(ids) == 0 {
		return instances
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []types.BugInstance
	for _, inst := range instances {
		if _, ok := want[inst.InstanceID]; ok {
			out = append(out, inst)
		}
	}
	return out
}

func allowedToolsFor(variant types.Variant) []string {
	if variant == types.VariantOpsPlusSearch {
		return opsPlusSearchTools
	}
	return opsOnlyTools
}

// sanitizeInstanceID returns a filesystem-safe slug for instanceID, with
// every character outside [A-Za-z0-9_-] replaced by '_', falling back to a
// fresh UUID when the identifier is empty (§6 cache/output layout).
func sanitizeInstanceID(instanceID string) string {
	var b strings.Builder
	for _, r := range instanceID {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return uuid.NewString()
	}
	return b.String()
}
