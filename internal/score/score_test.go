package score

import (
	"testing"

	"github.com/agentloc/locateval/internal/types"
)

func TestScoreBasicHitAndMRR(t *testing.T) {
	oracle := map[string]struct{}{"src/b.py": {}}
	ranking := types.Ranking{"src/a.py", "src/b.py"}

	s := Score(ranking, oracle)

	if s.HitAt1 {
		t.Error("HitAt1 should be false")
	}
	if !s.HitAt3 {
		t.Error("HitAt3 should be true")
	}
	if s.ReciprocalRank != 0.5 {
		t.Errorf("ReciprocalRank = %v, want 0.5", s.ReciprocalRank)
	}
	if s.CoverageAt5 != 1 {
		t.Errorf("CoverageAt5 = %v, want 1", s.CoverageAt5)
	}
}

func TestScoreEmptyOracle(t *testing.T) {
	oracle := map[string]struct{}{}
	ranking := types.Ranking{"a.py", "b.py"}

	s := Score(ranking, oracle)

	if s.HitAt1 || s.HitAt3 || s.HitAt5 || s.HitAt10 {
		t.Error("no hit@k should be true with empty oracle")
	}
	if s.ReciprocalRank != 0 {
		t.Errorf("ReciprocalRank = %v, want 0", s.ReciprocalRank)
	}
	if s.CoverageAt1 != 1 || s.CoverageAt10 != 1 {
		t.Error("coverage should be 1 for an empty oracle at every depth")
	}
}

func TestScoreShortRanking(t *testing.T) {
	oracle := map[string]struct{}{"x.py": {}}
	ranking := types.Ranking{"x.py"}

	s := Score(ranking, oracle)
	if !s.HitAt10 {
		t.Error("HitAt10 should be true even though ranking has only 1 entry")
	}
}

func TestHitMonotone(t *testing.T) {
	oracle := map[string]struct{}{"e.py": {}}
	ranking := types.Ranking{"a.py", "b.py", "c.py", "d.py", "e.py", "f.py"}
	s := Score(ranking, oracle)

	if s.HitAt1 && !s.HitAt3 {
		t.Error("hit@1 implies hit@3")
	}
	if s.HitAt3 && !s.HitAt5 {
		t.Error("hit@3 implies hit@5")
	}
	if s.HitAt5 && !s.HitAt10 {
		t.Error("hit@5 implies hit@10")
	}
}

func TestCoverageMonotone(t *testing.T) {
	oracle := map[string]struct{}{"a.py": {}, "b.py": {}, "c.py": {}}
	ranking := types.Ranking{"a.py", "x.py", "b.py", "y.py", "c.py"}
	s := Score(ranking, oracle)

	if s.CoverageAt1 > s.CoverageAt3 || s.CoverageAt3 > s.CoverageAt5 || s.CoverageAt5 > s.CoverageAt10 {
		t.Errorf("coverage not monotone: %+v", s)
	}
}

func TestReciprocalRankNoMatch(t *testing.T) {
	oracle := map[string]struct{}{"z.py": {}}
	ranking := types.Ranking{"a.py", "b.py"}
	s := Score(ranking, oracle)
	if s.ReciprocalRank != 0 {
		t.Errorf("ReciprocalRank = %v, want 0 for no match", s.ReciprocalRank)
	}
}
