package grading

import (
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// Frame is the curriculum grid of class levels and terms a trend is plotted on.
type Frame struct {
	Levels []int
	Terms  []int
}

// ExamSubjects is one exam's resolved subjects for a single student.
type ExamSubjects struct {
	Exam     models.ExamConfig
	Subjects []models.SubjectResult
}

type sliceKey struct {
	level, term, year int
}

// Slices groups exams into (class level, term, year) slices. A subject's slice
// score is its average over the exams it was sat in, regraded with the grading
// system of the slice's last exam.
func (e *Engine) Slices(exams []ExamSubjects, resolvers map[string]*GradeResolver) []models.TrendSlice {
	var order []sliceKey
	groups := make(map[sliceKey][]ExamSubjects)
	for _, exam := range exams {
		k := sliceKey{exam.Exam.ClassLevel, exam.Exam.Term, exam.Exam.Year}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], exam)
	}

	slices := make([]models.TrendSlice, 0, len(order))
	for _, k := range order {
		group := groups[k]
		latest := group[len(group)-1].Exam
		grades := resolvers[latest.GradingSystemID]
		slices = append(slices, models.TrendSlice{
			ClassLevel:      k.level,
			Term:            k.term,
			Year:            k.year,
			MinSubjects:     latest.MinSubjects,
			GradingSystemID: latest.GradingSystemID,
			Subjects:        mergeSubjects(group, grades),
		})
	}
	return slices
}

func mergeSubjects(group []ExamSubjects, grades *GradeResolver) []models.SubjectResult {
	type acc struct {
		result models.SubjectResult
		sum    float64
		count  int
	}
	var order []string
	merged := make(map[string]*acc)
	for _, exam := range group {
		for _, s := range exam.Subjects {
			a, ok := merged[s.SubjectID]
			if !ok {
				a = &acc{result: models.SubjectResult{
					SubjectID:   s.SubjectID,
					SubjectName: s.SubjectName,
					SubjectType: s.SubjectType,
					UsesPapers:  s.UsesPapers,
				}}
				merged[s.SubjectID] = a
				order = append(order, s.SubjectID)
			}
			// a zero resolved score is an exam the subject was not sat in
			if s.Sat && s.Score > 0 {
				a.sum += s.Score
				a.count++
			}
		}
	}

	out := make([]models.SubjectResult, 0, len(order))
	for _, id := range order {
		a := merged[id]
		r := a.result
		gp := notAvailable()
		if a.count > 0 {
			r.Sat = true
			r.Score = roundScore(a.sum / float64(a.count))
			gp = grades.ByScore(r.Score)
		}
		r.Grade, r.Points = gp.Grade, gp.Points
		out = append(out, r)
	}
	return out
}

// Trend aggregates each slice and orders the series chronologically: by class
// level, then year, then term. Frame cells with no slice are emitted with
// HasData=false and placed in the level's latest year. Slices sharing a level
// and term get the year appended when the label format has no {year}.
func (e *Engine) Trend(studentID string, slices []models.TrendSlice, resolvers map[string]*GradeResolver) models.TrendSeries {
	type entry struct {
		point models.TrendPoint
		year  int
	}

	entries := make([]entry, 0, len(slices))
	covered := make(map[[2]int]int, len(slices))
	latestYear := make(map[int]int)
	for _, slice := range slices {
		covered[[2]int{slice.ClassLevel, slice.Term}]++
		if slice.Year > latestYear[slice.ClassLevel] {
			latestYear[slice.ClassLevel] = slice.Year
		}
	}

	for _, slice := range slices {
		selected := SelectSubjects(slice.Subjects, e.policy)
		agg := Aggregate(studentID, selected, slice.MinSubjects, resolvers[slice.GradingSystemID])
		label := slice.Label
		if label == "" {
			label = e.label(slice.ClassLevel, slice.Term, slice.Year)
			if covered[[2]int{slice.ClassLevel, slice.Term}] > 1 && !strings.Contains(e.labelFormat, "{year}") && slice.Year > 0 {
				label += " " + strconv.Itoa(slice.Year)
			}
		}
		entries = append(entries, entry{
			point: models.TrendPoint{
				Label:      label,
				ClassLevel: slice.ClassLevel,
				Term:       slice.Term,
				Year:       slice.Year,
				MeanPoints: agg.MeanPoints,
				Grade:      agg.Grade,
				HasData:    !agg.NoData,
			},
			year: slice.Year,
		})
	}

	for _, level := range e.frame.Levels {
		for _, term := range e.frame.Terms {
			if covered[[2]int{level, term}] > 0 {
				continue
			}
			entries = append(entries, entry{
				point: models.TrendPoint{
					Label:      e.label(level, term, 0),
					ClassLevel: level,
					Term:       term,
					Grade:      models.GradeNotAvailable,
				},
				year: latestYear[level],
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.point.ClassLevel != b.point.ClassLevel {
			return a.point.ClassLevel < b.point.ClassLevel
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.point.Term < b.point.Term
	})

	points := make([]models.TrendPoint, len(entries))
	for i, en := range entries {
		points[i] = en.point
	}
	return models.TrendSeries{StudentID: studentID, Points: points}
}

func (e *Engine) label(level, term, year int) string {
	yearText := ""
	if year > 0 {
		yearText = strconv.Itoa(year)
	}
	r := strings.NewReplacer(
		"{level}", strconv.Itoa(level),
		"{term}", strconv.Itoa(term),
		"{year}", yearText,
	)
	return strings.TrimSpace(r.Replace(e.labelFormat))
}
