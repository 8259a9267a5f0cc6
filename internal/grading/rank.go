package grading

import (
	"sort"
	"strings"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// RankBasis selects the aggregate value a cohort is ordered by.
type RankBasis string

const (
	RankByMeanPoints  RankBasis = "mean_points"
	RankByTotalPoints RankBasis = "total_points"
	RankByTotalMarks  RankBasis = "total_marks"
)

// ParseRankBasis accepts the basis names case-insensitively.
func ParseRankBasis(raw string) (RankBasis, bool) {
	switch RankBasis(strings.ToLower(strings.TrimSpace(raw))) {
	case RankByMeanPoints:
		return RankByMeanPoints, true
	case RankByTotalPoints:
		return RankByTotalPoints, true
	case RankByTotalMarks:
		return RankByTotalMarks, true
	default:
		return "", false
	}
}

func (b RankBasis) value(r models.AggregateResult) float64 {
	switch b {
	case RankByTotalPoints:
		return float64(r.TotalPoints)
	case RankByTotalMarks:
		return r.TotalMarks
	default:
		return r.MeanPoints
	}
}

// Rank orders a cohort best first and assigns dense ranks: equal values share
// a rank and the next lower value is exactly one rank further down, so
// 10,10,10,8,5 ranks as 1,1,1,2,3. The input slice is not modified.
func Rank(results []models.AggregateResult, basis RankBasis) []models.AggregateResult {
	ranked := make([]models.AggregateResult, len(results))
	copy(ranked, results)
	sort.SliceStable(ranked, func(i, j int) bool {
		vi, vj := basis.value(ranked[i]), basis.value(ranked[j])
		if vi != vj {
			return vi > vj
		}
		return ranked[i].StudentID < ranked[j].StudentID
	})

	rank := 1
	for i := range ranked {
		v := basis.value(ranked[i])
		if i > 0 && v < basis.value(ranked[i-1]) {
			rank++
		}
		ranked[i].Rank = rank
		ranked[i].CohortSize = len(ranked)
	}
	return ranked
}
