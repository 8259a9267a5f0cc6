package grading

import "github.com/noah-isme/sma-grading-api/internal/models"

// Aggregate sums the selected subjects and divides by minSubjects, not by the
// number of subjects selected. A student short of minSubjects is penalised.
func Aggregate(studentID string, selected []models.SubjectResult, minSubjects int, grades *GradeResolver) models.AggregateResult {
	result := models.AggregateResult{StudentID: studentID, SubjectsSelected: len(selected)}
	for _, s := range selected {
		result.TotalMarks += s.Score
		result.TotalPoints += s.Points
	}
	if minSubjects > 0 {
		result.MeanMarks = result.TotalMarks / float64(minSubjects)
		result.MeanPoints = float64(result.TotalPoints) / float64(minSubjects)
	}

	if len(selected) == 0 {
		result.NoData = true
		result.Grade = models.GradeNotAvailable
		return result
	}
	final := grades.ByPoints(result.MeanPoints)
	result.Grade = final.Grade
	result.GradePoints = final.Points
	return result
}
