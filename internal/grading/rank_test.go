package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

func TestRankDenseTies(t *testing.T) {
	cohort := []models.AggregateResult{
		{StudentID: "e", MeanPoints: 5},
		{StudentID: "a", MeanPoints: 10},
		{StudentID: "d", MeanPoints: 8},
		{StudentID: "c", MeanPoints: 10},
		{StudentID: "b", MeanPoints: 10},
	}

	ranked := Rank(cohort, RankByMeanPoints)
	require.Len(t, ranked, 5)

	ranks := make([]int, 0, len(ranked))
	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ranks = append(ranks, r.Rank)
		ids = append(ids, r.StudentID)
		assert.Equal(t, 5, r.CohortSize)
	}
	assert.Equal(t, []int{1, 1, 1, 2, 3}, ranks)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
	assert.Equal(t, "e", cohort[0].StudentID)
	assert.Zero(t, cohort[0].Rank)
}

func TestRankByTotalPoints(t *testing.T) {
	cohort := []models.AggregateResult{
		{StudentID: "a", TotalPoints: 40, MeanPoints: 9},
		{StudentID: "b", TotalPoints: 70, MeanPoints: 1},
		{StudentID: "c", TotalPoints: 70, MeanPoints: 2},
	}

	ranked := Rank(cohort, RankByTotalPoints)
	assert.Equal(t, "b", ranked[0].StudentID)
	assert.Equal(t, 1, ranked[1].Rank)
	assert.Equal(t, 2, ranked[2].Rank)
}

func TestRankEmptyCohort(t *testing.T) {
	assert.Empty(t, Rank(nil, RankByMeanPoints))
}

func TestParseRankBasis(t *testing.T) {
	basis, ok := ParseRankBasis("TOTAL_POINTS")
	assert.True(t, ok)
	assert.Equal(t, RankByTotalPoints, basis)

	_, ok = ParseRankBasis("median")
	assert.False(t, ok)
}
