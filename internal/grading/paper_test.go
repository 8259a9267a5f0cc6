package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

func strPtr(s string) *string {
	return &s
}

func TestNormalizeWeightsSumsToHundred(t *testing.T) {
	cases := []struct {
		name          string
		contributions []float64
		expected      []float64
	}{
		{"already normalised", []float64{60, 40}, []float64{60, 40}},
		{"under hundred", []float64{30, 30}, []float64{50, 50}},
		{"over hundred", []float64{150, 50}, []float64{75, 25}},
		{"zero total splits equally", []float64{0, 0, 0, 0}, []float64{25, 25, 25, 25}},
		{"uneven", []float64{1, 2, 3, 4}, []float64{10, 20, 30, 40}},
		{"thirds", []float64{10, 10, 10}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			papers := make([]models.Paper, len(tc.contributions))
			for i, c := range tc.contributions {
				papers[i] = models.Paper{ID: string(rune('a' + i)), ContributionPercentage: c}
			}
			weights := NormalizeWeights(papers)
			require.Len(t, weights, len(papers))
			sum := 0.0
			for i, w := range weights {
				sum += w
				if tc.expected != nil {
					assert.InDelta(t, tc.expected[i], w, 1e-9)
				}
			}
			assert.InDelta(t, 100.0, sum, 1e-9)
		})
	}
	assert.Nil(t, NormalizeWeights(nil))
}

func TestResolveSubjectScoreWeightsPapers(t *testing.T) {
	subject := models.SubjectConfig{
		ID:        "eng",
		UsePapers: true,
		Papers: []models.Paper{
			{ID: "p1", SubjectID: "eng", MaxScore: 100, ContributionPercentage: 60},
			{ID: "p2", SubjectID: "eng", MaxScore: 100, ContributionPercentage: 40},
		},
	}
	rows := []models.ResultRow{
		{StudentID: "s1", SubjectID: "eng", PaperID: strPtr("p1"), Score: 80},
		{StudentID: "s1", SubjectID: "eng", PaperID: strPtr("p2"), Score: 60},
	}

	score, papers := ResolveSubjectScore(subject, rows)
	assert.Equal(t, 72.0, score)
	require.Len(t, papers, 2)
	assert.Equal(t, 48.0, papers[0].Contribution)
	assert.Equal(t, 24.0, papers[1].Contribution)
	assert.True(t, papers[0].Present)
}

func TestResolveSubjectScoreMissingPaperContributesNothing(t *testing.T) {
	subject := models.SubjectConfig{
		ID:        "chem",
		UsePapers: true,
		Papers: []models.Paper{
			{ID: "p1", MaxScore: 80, ContributionPercentage: 50},
			{ID: "p2", MaxScore: 80, ContributionPercentage: 50},
		},
	}
	rows := []models.ResultRow{{SubjectID: "chem", PaperID: strPtr("p1"), Score: 40}}

	score, papers := ResolveSubjectScore(subject, rows)
	assert.Equal(t, 25.0, score)
	assert.False(t, papers[1].Present)
	assert.Equal(t, 0.0, papers[1].Contribution)
}

func TestResolveSubjectScoreScalesWeights(t *testing.T) {
	subject := models.SubjectConfig{
		ID:        "phy",
		UsePapers: true,
		Papers: []models.Paper{
			{ID: "p1", MaxScore: 50, ContributionPercentage: 20},
			{ID: "p2", MaxScore: 50, ContributionPercentage: 20},
		},
	}
	rows := []models.ResultRow{
		{SubjectID: "phy", PaperID: strPtr("p1"), Score: 50},
		{SubjectID: "phy", PaperID: strPtr("p2"), Score: 25},
	}

	score, _ := ResolveSubjectScore(subject, rows)
	assert.Equal(t, 75.0, score)
}

func TestResolveSubjectScoreWithoutPapers(t *testing.T) {
	subject := models.SubjectConfig{ID: "mat"}

	score, papers := ResolveSubjectScore(subject, []models.ResultRow{{SubjectID: "mat", Score: 67.5}})
	assert.Equal(t, 67.5, score)
	require.Len(t, papers, 1)
	assert.Nil(t, papers[0].PaperID)

	score, papers = ResolveSubjectScore(subject, nil)
	assert.Equal(t, 0.0, score)
	assert.False(t, papers[0].Present)
}

func TestResolveSubjectScoreUsePapersWithoutDefinitions(t *testing.T) {
	subject := models.SubjectConfig{ID: "kis", UsePapers: true}

	score, papers := ResolveSubjectScore(subject, []models.ResultRow{{SubjectID: "kis", Score: 58}})
	assert.Equal(t, 58.0, score)
	require.Len(t, papers, 1)
	assert.Equal(t, 100.0, papers[0].MaxScore)

	score, papers = ResolveSubjectScore(subject, []models.ResultRow{{SubjectID: "kis", PaperID: strPtr("kis-old"), Score: 58}})
	assert.Equal(t, 0.0, score)
	assert.False(t, papers[0].Present)
}

func TestResolveSubjectScoreGuardsInvalidInput(t *testing.T) {
	subject := models.SubjectConfig{
		ID:        "geo",
		UsePapers: true,
		Papers: []models.Paper{
			{ID: "p1", MaxScore: 0, ContributionPercentage: 50},
			{ID: "p2", MaxScore: 100, ContributionPercentage: 50},
		},
	}
	rows := []models.ResultRow{
		{SubjectID: "geo", PaperID: strPtr("p1"), Score: 90},
		{SubjectID: "geo", PaperID: strPtr("p2"), Score: -20},
	}

	score, _ := ResolveSubjectScore(subject, rows)
	assert.Equal(t, 0.0, score)
}
