// Package types defines the data model shared across locateval's evaluation
// pipeline: bug instances pulled from the dataset, the oracle and rankings
// scored against them, and the records written to the run's event and
// metrics logs.
package types

import "time"

// Variant identifies one of the two agent configurations under evaluation.
type Variant string

const (
	// VariantOpsOnly grants file-read, content-search, and glob tools.
	VariantOpsOnly Variant = "ops-only"

	// VariantOpsPlusSearch additionally grants the semantic-search tool.
	VariantOpsPlusSearch Variant = "ops-plus-search"
)

// BugInstance is a single ground-truth record from the bug-fix corpus.
type BugInstance struct {
	InstanceID       string `json:"instance_id"`
	Repo             string `json:"repo"`
	BaseCommit       string `json:"base_commit"`
	ProblemStatement string `json:"problem_statement"`
	Patch            string `json:"patch"`
	TestPatch        string `json:"test_patch,omitempty"`
}

// Oracle is the set of normalized repo-relative paths touched by an
// instance's reference patch. Every member has already passed through the
// path normalizer, so membership tests are exact string equality.
type Oracle map[string]struct{}

// NewOracle builds an Oracle from already-normalized paths.
func NewOracle(paths ...string) Oracle {
	o := make(Oracle, len(paths))
	for _, p := range paths {
		o[p] = struct{}{}
	}
	return o
}

// Has reports whether path is a member. The caller is responsible for
// normalizing path first; Has never normalizes on the caller's behalf.
func (o Oracle) Has(path string) bool {
	_, ok := o[path]
	return ok
}

// Paths returns the oracle's members. Order is unspecified.
func (o Oracle) Paths() []string {
	paths := make([]string, 0, len(o))
	for p := range o {
		paths = append(paths, p)
	}
	return paths
}

// Workspace is a detached checkout dedicated to one instance.
type Workspace struct {
	Root             string        `json:"root"`
	ResolvedRevision string        `json:"resolved_revision"`
	CheckoutDuration time.Duration `json:"checkout_duration"`
}

// Usage accumulates token counts reported by the agent service.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CacheTokens  int `json:"cache_tokens"`
}

// Total returns input+output tokens, the figure first-hit attribution and
// cost reporting key off.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// PendingToolCall records a tool invocation between its start and end event.
type PendingToolCall struct {
	Name  string
	Input []byte
	Start time.Time
}

// FirstHit records the earliest moment an oracle-matching path entered the
// behavioral ranking, in both elapsed time and accumulated tokens.
type FirstHit struct {
	TimeMS *int64 `json:"time_ms,omitempty"`
	Tokens *int   `json:"tokens,omitempty"`
}

// Set reports whether the first-hit has been recorded.
func (f FirstHit) Set() bool {
	return f.TimeMS != nil && f.Tokens != nil
}

// Ranking is an ordered, deduplicated sequence of normalized candidate
// paths, in first-observation order.
type Ranking []string

// InstanceMetrics is the scored record for one (instance, variant) run.
type InstanceMetrics struct {
	InstanceID string  `json:"instance_id"`
	Variant    Variant `json:"variant"`

	Oracle []string `json:"oracle"`

	BehavioralRanking Ranking `json:"behavioral_ranking"`
	DeclaredRanking   Ranking `json:"declared_ranking"`

	Behavioral RankScore `json:"behavioral_score"`
	Declared   RankScore `json:"declared_score"`

	FirstHitTimeMS *int64 `json:"first_hit_time_ms,omitempty"`
	FirstHitTokens *int   `json:"first_hit_tokens,omitempty"`

	Usage         Usage   `json:"usage"`
	TotalCostUSD  float64 `json:"total_cost_usd"`
	DurationMS    int64   `json:"duration_ms"`
	ToolCallCount int     `json:"tool_call_count"`

	ToolOutputCharsByType map[string]int `json:"tool_output_chars_by_type,omitempty"`

	Error string `json:"error,omitempty"`
}

// RankScore holds the quality metrics computed for one ranking against one
// oracle.
type RankScore struct {
	HitAt1          bool    `json:"hit_at_1"`
	HitAt3          bool    `json:"hit_at_3"`
	HitAt5          bool    `json:"hit_at_5"`
	HitAt10         bool    `json:"hit_at_10"`
	ReciprocalRank  float64 `json:"reciprocal_rank"`
	CoverageAt1     float64 `json:"coverage_at_1"`
	CoverageAt3     float64 `json:"coverage_at_3"`
	CoverageAt5     float64 `json:"coverage_at_5"`
	CoverageAt10    float64 `json:"coverage_at_10"`
}

// VariantSummary is the per-variant slice of an AggregateSummary.
type VariantSummary struct {
	Variant Variant `json:"variant"`

	InstanceCount int `json:"instance_count"`

	HitRateAt1  float64 `json:"hit_rate_at_1"`
	HitRateAt3  float64 `json:"hit_rate_at_3"`
	HitRateAt5  float64 `json:"hit_rate_at_5"`
	HitRateAt10 float64 `json:"hit_rate_at_10"`

	MeanReciprocalRank float64 `json:"mean_reciprocal_rank"`
	MeanCoverage       float64 `json:"mean_coverage"`

	TotalDurationMS  int64   `json:"total_duration_ms"`
	MedianDurationMS float64 `json:"median_duration_ms"`
	P90DurationMS    float64 `json:"p90_duration_ms"`

	TotalTokens  int     `json:"total_tokens"`
	MedianTokens float64 `json:"median_tokens"`
	P90Tokens    float64 `json:"p90_tokens"`

	TotalCostUSD float64 `json:"total_cost_usd"`

	MedianFirstHitTimeMS *float64 `json:"median_first_hit_time_ms,omitempty"`
	MedianFirstHitTokens *float64 `json:"median_first_hit_tokens,omitempty"`
}

// VariantDelta is the paired difference variantB-variantA on the quality
// and cost axes.
type VariantDelta struct {
	HitRateAt1Delta  float64 `json:"hit_rate_at_1_delta"`
	HitRateAt3Delta  float64 `json:"hit_rate_at_3_delta"`
	HitRateAt5Delta  float64 `json:"hit_rate_at_5_delta"`
	HitRateAt10Delta float64 `json:"hit_rate_at_10_delta"`
	MRRDelta         float64 `json:"mrr_delta"`

	TotalDurationMSDelta int64   `json:"total_duration_ms_delta"`
	TotalTokensDelta     int     `json:"total_tokens_delta"`
	TotalCostUSDDelta    float64 `json:"total_cost_usd_delta"`
}

// AggregateSummary is the cross-instance record written to summary.json.
type AggregateSummary struct {
	RunID         string    `json:"run_id"`
	Split         string    `json:"split"`
	GeneratedAt   time.Time `json:"generated_at"`
	InstanceCount int       `json:"instance_count"`

	Variants []VariantSummary `json:"variants"`
	Delta    *VariantDelta    `json:"delta,omitempty"`
}
