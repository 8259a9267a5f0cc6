// Package grading turns raw paper scores into subject grades, aggregates,
// cohort ranks and per-student trends. It performs no I/O: callers batch-load
// rules, subject configuration and result rows and pass them in.
package grading

import (
	"sort"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// DefaultLabelFormat renders trend labels such as "Form 2 T3".
const DefaultLabelFormat = "Form {level} T{term}"

// Engine bundles the school-specific knobs shared by every computation.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	policy      Policy
	rounding    Rounding
	labelFormat string
	frame       Frame
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides the subject selection caps.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithRounding sets how mean points are rounded for points lookups.
func WithRounding(r Rounding) Option {
	return func(e *Engine) {
		if r != "" {
			e.rounding = r
		}
	}
}

// WithLabelFormat sets the trend label template ({level}, {term}, {year}).
func WithLabelFormat(format string) Option {
	return func(e *Engine) {
		if format != "" {
			e.labelFormat = format
		}
	}
}

// WithFrame sets the curriculum frame used to pad trends.
func WithFrame(f Frame) Option {
	return func(e *Engine) { e.frame = f }
}

// New builds an Engine with the default policy and rounding.
func New(opts ...Option) *Engine {
	e := &Engine{
		policy:      DefaultPolicy(),
		rounding:    RoundNearest,
		labelFormat: DefaultLabelFormat,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the selection policy in use.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Rounding returns the points rounding rule in use.
func (e *Engine) Rounding() Rounding {
	return e.rounding
}

// GradeResolver builds a resolver using the engine's rounding rule.
func (e *Engine) GradeResolver(systemID string, rules []models.GradingRule) (*GradeResolver, error) {
	return NewGradeResolver(systemID, rules, e.rounding)
}

// ResolveSubjects scores and grades every configured subject for one student.
// Subjects without any row, or whose resolved score is 0, are kept in the
// breakdown as N/A and not marked sat.
func (e *Engine) ResolveSubjects(subjects []models.SubjectConfig, rows []models.ResultRow, grades *GradeResolver) []models.SubjectResult {
	bySubject := make(map[string][]models.ResultRow, len(subjects))
	for _, row := range rows {
		bySubject[row.SubjectID] = append(bySubject[row.SubjectID], row)
	}

	results := make([]models.SubjectResult, 0, len(subjects))
	for _, subject := range subjects {
		subjectRows := bySubject[subject.ID]
		score, papers := ResolveSubjectScore(subject, subjectRows)
		result := models.SubjectResult{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			SubjectType: subject.Type,
			UsesPapers:  subject.UsePapers,
			Score:       score,
			Sat:         len(subjectRows) > 0 && score > 0,
			Papers:      papers,
		}
		gp := notAvailable()
		if result.Sat {
			gp = grades.ByScore(score)
		}
		result.Grade, result.Points = gp.Grade, gp.Points
		results = append(results, result)
	}
	return results
}

// Evaluate selects and aggregates one student's subjects. The returned
// aggregate carries the full breakdown with counted subjects flagged.
func (e *Engine) Evaluate(studentID string, results []models.SubjectResult, minSubjects int, grades *GradeResolver) models.AggregateResult {
	selected := SelectSubjects(results, e.policy)
	agg := Aggregate(studentID, selected, minSubjects, grades)

	counted := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		counted[s.SubjectID] = struct{}{}
	}
	breakdown := make([]models.SubjectResult, len(results))
	for i, r := range results {
		_, r.Counted = counted[r.SubjectID]
		breakdown[i] = r
	}
	agg.Subjects = breakdown
	return agg
}

// CohortInput is everything needed to rank one exam cohort.
type CohortInput struct {
	StudentIDs  []string
	Subjects    []models.SubjectConfig
	Rows        []models.ResultRow
	MinSubjects int
	Grades      *GradeResolver
	RankBy      RankBasis
}

// Cohort evaluates and ranks every student in the cohort. When no student ids
// are given the cohort is every student present in the rows.
func (e *Engine) Cohort(in CohortInput) []models.AggregateResult {
	rowsByStudent := make(map[string][]models.ResultRow)
	for _, row := range in.Rows {
		rowsByStudent[row.StudentID] = append(rowsByStudent[row.StudentID], row)
	}

	ids := uniqueIDs(in.StudentIDs)
	if len(ids) == 0 {
		for id := range rowsByStudent {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	results := make([]models.AggregateResult, 0, len(ids))
	for _, id := range ids {
		subjects := e.ResolveSubjects(in.Subjects, rowsByStudent[id], in.Grades)
		results = append(results, e.Evaluate(id, subjects, in.MinSubjects, in.Grades))
	}

	basis := in.RankBy
	if basis == "" {
		basis = RankByMeanPoints
	}
	return Rank(results, basis)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
