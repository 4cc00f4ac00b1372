// Package aggregate rolls up per-instance scored metrics into the
// cross-instance summary written once per run: per-variant hit rates,
// reciprocal rank, coverage, duration/token/cost statistics, and the
// paired delta between two variants.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/agentloc/locateval/internal/types"
)

// ErrAggregateWrite is returned when the summary could not be serialized
// or written; per §7 this is fatal to the whole run.
var ErrAggregateWrite = errors.New("aggregate: failed to write summary")

// Summarize rolls up metrics (one record per (instance, variant) run, the
// behavioral score used for the quality axes) into an AggregateSummary.
// Records with a non-empty Error are excluded from the quality statistics
// (hit rates, reciprocal rank, coverage, first-hit medians) but still
// contribute to the duration, token and cost statistics and count toward
// InstanceCount of their variant. The summary's own InstanceCount is the
// number of distinct instance ids across all records.
func Summarize(runID, split string, generatedAt time.Time, metrics []types.InstanceMetrics) types.AggregateSummary {
	byVariant := make(map[types.Variant][]types.InstanceMetrics)
	var order []types.Variant
	instances := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		instances[m.InstanceID] = struct{}{}
		if _, seen := byVariant[m.Variant]; !seen {
			order = append(order, m.Variant)
		}
		byVariant[m.Variant] = append(byVariant[m.Variant], m)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	summary := types.AggregateSummary{
		RunID:         runID,
		Split:         split,
		InstanceCount: len(instances),
		GeneratedAt:   generatedAt,
	}

	for _, v := range order {
		summary.Variants = append(summary.Variants, summarizeVariant(v, byVariant[v]))
	}

	if len(summary.Variants) == 2 {
		delta := computeDelta(summary.Variants[0], summary.Variants[1])
		summary.Delta = &delta
	}

	return summary
}

func summarizeVariant(variant types.Variant, records []types.InstanceMetrics) types.VariantSummary {
	vs := types.VariantSummary{
		Variant:       variant,
		InstanceCount: len(records),
	}
	if len(records) == 0 {
		return vs
	}

	var (
		hit1, hit3, hit5, hit10 int
		sumRR, sumCoverage      float64
		durations, tokenCounts  []float64
		firstHitTimes           []float64
		firstHitTokens          []float64
		scored                  int
	)

	for _, m := range records {
		vs.TotalDurationMS += m.DurationMS
		vs.TotalTokens += m.Usage.Total()
		vs.TotalCostUSD += m.TotalCostUSD
		durations = append(durations, float64(m.DurationMS))
		tokenCounts = append(tokenCounts, float64(m.Usage.Total()))

		if m.Error != "" {
			continue
		}
		scored++
		if m.Behavioral.HitAt1 {
			hit1++
		}
		if m.Behavioral.HitAt3 {
			hit3++
		}
		if m.Behavioral.HitAt5 {
			hit5++
		}
		if m.Behavioral.HitAt10 {
			hit10++
		}
		sumRR += m.Behavioral.ReciprocalRank
		sumCoverage += m.Behavioral.CoverageAt10

		if m.FirstHitTimeMS != nil {
			firstHitTimes = append(firstHitTimes, float64(*m.FirstHitTimeMS))
		}
		if m.FirstHitTokens != nil {
			firstHitTokens = append(firstHitTokens, float64(*m.FirstHitTokens))
		}
	}

	if scored > 0 {
		vs.HitRateAt1 = float64(hit1) / float64(scored)
		vs.HitRateAt3 = float64(hit3) / float64(scored)
		vs.HitRateAt5 = float64(hit5) / float64(scored)
		vs.HitRateAt10 = float64(hit10) / float64(scored)
		vs.MeanReciprocalRank = sumRR / float64(scored)
		vs.MeanCoverage = sumCoverage / float64(scored)
	}

	vs.MedianDurationMS = median(durations)
	vs.P90DurationMS = percentile(durations, 0.9)
	vs.MedianTokens = median(tokenCounts)
	vs.P90Tokens = percentile(tokenCounts, 0.9)

	if len(firstHitTimes) > 0 {
		v := median(firstHitTimes)
		vs.MedianFirstHitTimeMS = &v
	}
	if len(firstHitTokens) > 0 {
		v := median(firstHitTokens)
		vs.MedianFirstHitTokens = &v
	}

	return vs
}

func computeDelta(a, b types.VariantSummary) types.VariantDelta {
	return types.VariantDelta{
		HitRateAt1Delta:      b.HitRateAt1 - a.HitRateAt1,
		HitRateAt3Delta:      b.HitRateAt3 - a.HitRateAt3,
		HitRateAt5Delta:      b.HitRateAt5 - a.HitRateAt5,
		HitRateAt10Delta:     b.HitRateAt10 - a.HitRateAt10,
		MRRDelta:             b.MeanReciprocalRank - a.MeanReciprocalRank,
		TotalDurationMSDelta: b.TotalDurationMS - a.TotalDurationMS,
		TotalTokensDelta:     b.TotalTokens - a.TotalTokens,
		TotalCostUSDDelta:    b.TotalCostUSD - a.TotalCostUSD,
	}
}

func median(values []float64) float64 {
	return percentile(values, 0.5)
}

// percentile computes the nearest-rank percentile p (0..1) over values,
// which need not be pre-sorted. Returns 0 for an empty slice.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// WrapWriteError wraps a failure writing the summary as ErrAggregateWrite,
// per §7 the one fatal-to-the-run error kind this package surfaces.
func WrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrAggregateWrite, err)
}
