// Package score computes retrieval-quality metrics for a ranked sequence of
// candidate file paths against an oracle set: hit@k, reciprocal rank, and
// coverage@k.
package score

import "github.com/agentloc/locateval/internal/types"

// Depths are the fixed prefix lengths every ranking is scored at.
var Depths = []int{1, 3, 5, 10}

// Score computes all quality metrics for ranking against oracle. ranking
// members are assumed already normalized; oracle members too.
func Score(ranking types.Ranking, oracle map[string]struct{}) types.RankScore {
	firstHitIdx := firstHitIndex(ranking, oracle)

	var rr float64
	if firstHitIdx >= 0 {
		rr = 1.0 / float64(firstHitIdx+1)
	}

	return types.RankScore{
		HitAt1:         hitAtK(ranking, oracle, 1),
		HitAt3:         hitAtK(ranking, oracle, 3),
		HitAt5:         hitAtK(ranking, oracle, 5),
		HitAt10:        hitAtK(ranking, oracle, 10),
		ReciprocalRank: rr,
		CoverageAt1:    coverageAtK(ranking, oracle, 1),
		CoverageAt3:    coverageAtK(ranking, oracle, 3),
		CoverageAt5:    coverageAtK(ranking, oracle, 5),
		CoverageAt10:   coverageAtK(ranking, oracle, 10),
	}
}

// firstHitIndex returns the smallest index in ranking whose path is a
// member of oracle, or -1 if none match.
func firstHitIndex(ranking types.Ranking, oracle map[string]struct{}) int {
	for i, p := range ranking {
		if _, ok := oracle[p]; ok {
			return i
		}
	}
	return -1
}

// hitAtK reports whether any of the first k entries of ranking (or fewer,
// if ranking is shorter than k) matches oracle.
func hitAtK(ranking types.Ranking, oracle map[string]struct{}, k int) bool {
	top := topK(ranking, k)
	for _, p := range top {
		if _, ok := oracle[p]; ok {
			return true
		}
	}
	return false
}

// coverageAtK returns |topK ∩ oracle| / |oracle|, defined as 1 when oracle
// is empty.
func coverageAtK(ranking types.Ranking, oracle map[string]struct{}, k int) float64 {
	if len(oracle) == 0 {
		return 1
	}
	top := topK(ranking, k)
	matched := make(map[string]struct{})
	for _, p := range top {
		if _, ok := oracle[p]; ok {
			matched[p] = struct{}{}
		}
	}
	return float64(len(matched)) / float64(len(oracle))
}

func topK(ranking types.Ranking, k int) types.Ranking {
	if k > len(ranking) {
		k = len(ranking)
	}
	return ranking[:k]
}
