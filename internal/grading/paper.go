package grading

import (
	"math"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// fullWeight is the total contribution every subject's papers add up to.
const fullWeight = 100.0

// NormalizeWeights returns one contribution weight per paper, summing to 100.
// A zero total splits the weight equally; any other total is scaled by 100/total.
func NormalizeWeights(papers []models.Paper) []float64 {
	if len(papers) == 0 {
		return nil
	}
	weights := make([]float64, len(papers))
	total := 0.0
	for i, paper := range papers {
		w := paper.ContributionPercentage
		if w < 0 || math.IsNaN(w) {
			w = 0
		}
		weights[i] = w
		total += w
	}
	switch {
	case total <= 0:
		equal := fullWeight / float64(len(papers))
		for i := range weights {
			weights[i] = equal
		}
	case total != fullWeight:
		scale := fullWeight / total
		for i := range weights {
			weights[i] *= scale
		}
	}
	return weights
}

// ResolveSubjectScore combines a student's rows for one subject into a 0-100 score.
// Rows belonging to other subjects are ignored.
func ResolveSubjectScore(subject models.SubjectConfig, rows []models.ResultRow) (float64, []models.PaperScore) {
	// Without configured papers the subject is one implicit paper scored out of
	// 100, and only its paper-less row counts. Rows naming a paper are ignored.
	if !subject.UsePapers || len(subject.Papers) == 0 {
		row, ok := noPaperRow(subject.ID, rows)
		raw := 0.0
		if ok {
			raw = clampScore(row.Score)
		}
		score := models.PaperScore{
			SubjectID:              subject.ID,
			RawScore:               raw,
			MaxScore:               fullWeight,
			ContributionPercentage: fullWeight,
			Contribution:           roundScore(raw),
			Present:                ok,
		}
		return score.Contribution, []models.PaperScore{score}
	}

	byPaper := make(map[string]models.ResultRow, len(rows))
	for _, row := range rows {
		if row.SubjectID != subject.ID || row.PaperID == nil {
			continue
		}
		if _, seen := byPaper[*row.PaperID]; !seen {
			byPaper[*row.PaperID] = row
		}
	}

	weights := NormalizeWeights(subject.Papers)
	scores := make([]models.PaperScore, 0, len(subject.Papers))
	total := 0.0
	for i, paper := range subject.Papers {
		paperID := paper.ID
		ps := models.PaperScore{
			SubjectID:              subject.ID,
			PaperID:                &paperID,
			MaxScore:               paper.MaxScore,
			ContributionPercentage: weights[i],
		}
		if row, ok := byPaper[paper.ID]; ok {
			ps.Present = true
			ps.RawScore = clampScore(row.Score)
			if paper.MaxScore > 0 {
				ps.Contribution = ps.RawScore / paper.MaxScore * weights[i]
			}
		}
		total += ps.Contribution
		ps.Contribution = roundScore(ps.Contribution)
		scores = append(scores, ps)
	}
	return roundScore(total), scores
}

func noPaperRow(subjectID string, rows []models.ResultRow) (models.ResultRow, bool) {
	for _, row := range rows {
		if row.SubjectID == subjectID && row.PaperID == nil {
			return row, true
		}
	}
	return models.ResultRow{}, false
}

func clampScore(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func roundScore(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
