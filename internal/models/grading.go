package models

// SubjectType controls how a subject counts toward the aggregate.
type SubjectType string

const (
	// SubjectTypeCompulsory subjects are always candidates for selection.
	SubjectTypeCompulsory SubjectType = "compulsory"
	// SubjectTypeElective subjects compete on points for the elective slots.
	SubjectTypeElective SubjectType = "elective"
)

const (
	// GradeNotAvailable marks a value with no data behind it.
	GradeNotAvailable = "N/A"
	// GradeFallback is used when a positive value matches no rule and no usable rule exists.
	GradeFallback = "E"
	// PointsFallback pairs with GradeFallback.
	PointsFallback = 1
)

// Paper is one examinable component of a subject.
type Paper struct {
	ID                     string  `db:"id" json:"id"`
	SubjectID              string  `db:"subject_id" json:"subject_id"`
	Name                   string  `db:"name" json:"name"`
	MaxScore               float64 `db:"max_score" json:"max_score"`
	ContributionPercentage float64 `db:"contribution_percentage" json:"contribution_percentage"`
}

// SubjectConfig describes how a subject is examined.
type SubjectConfig struct {
	ID        string      `db:"id" json:"id"`
	Code      string      `db:"code" json:"code"`
	Name      string      `db:"name" json:"name"`
	Type      SubjectType `db:"subject_type" json:"subject_type"`
	UsePapers bool        `db:"use_papers" json:"use_papers"`
	Papers    []Paper     `json:"papers,omitempty"`
}

// ResultRow is a confirmed score as stored by the results module.
type ResultRow struct {
	ExamID    string  `db:"exam_id" json:"exam_id"`
	StudentID string  `db:"student_id" json:"student_id"`
	SubjectID string  `db:"subject_id" json:"subject_id"`
	PaperID   *string `db:"paper_id" json:"paper_id,omitempty"`
	Score     float64 `db:"score" json:"score"`
}

// PaperScore is a result row joined with its paper definition.
type PaperScore struct {
	SubjectID              string  `json:"subject_id"`
	PaperID                *string `json:"paper_id,omitempty"`
	RawScore               float64 `json:"raw_score"`
	MaxScore               float64 `json:"max_score"`
	ContributionPercentage float64 `json:"contribution_percentage"`
	Contribution           float64 `json:"contribution"`
	Present                bool    `json:"present"`
}

// GradePoints is a resolved (grade, points) pair.
type GradePoints struct {
	Grade  string `json:"grade"`
	Points int    `json:"points"`
}

// NotAvailable reports whether the pair is the N/A sentinel.
func (g GradePoints) NotAvailable() bool {
	return g.Grade == GradeNotAvailable
}

// SubjectResult is a student's resolved performance in one subject.
type SubjectResult struct {
	SubjectID   string       `json:"subject_id"`
	SubjectName string       `json:"subject_name,omitempty"`
	SubjectType SubjectType  `json:"subject_type"`
	UsesPapers  bool         `json:"uses_papers"`
	Score       float64      `json:"score"`
	Grade       string       `json:"grade"`
	Points      int          `json:"points"`
	Sat         bool         `json:"sat"`
	Counted     bool         `json:"counted"`
	Papers      []PaperScore `json:"papers,omitempty"`
}

// GradingRule maps a score range (or a points value) to a grade.
type GradingRule struct {
	ID              string  `db:"id" json:"id"`
	GradingSystemID string  `db:"grading_system_id" json:"grading_system_id"`
	MinScore        float64 `db:"min_score" json:"min_score"`
	MaxScore        float64 `db:"max_score" json:"max_score"`
	Grade           string  `db:"grade" json:"grade"`
	Points          int     `db:"points" json:"points"`
}

// ExamConfig carries per-exam aggregation settings.
type ExamConfig struct {
	ExamID          string `db:"id" json:"exam_id"`
	Name            string `db:"name" json:"name"`
	GradingSystemID string `db:"grading_system_id" json:"grading_system_id"`
	MinSubjects     int    `db:"min_subjects" json:"min_subjects"`
	ClassLevel      int    `db:"class_level" json:"class_level"`
	Term            int    `db:"term" json:"term"`
	Year            int    `db:"year" json:"year"`
}

// AggregateResult is a student's overall standing for one exam or slice.
type AggregateResult struct {
	StudentID        string          `json:"student_id"`
	TotalMarks       float64         `json:"total_marks"`
	TotalPoints      int             `json:"total_points"`
	MeanMarks        float64         `json:"mean_marks"`
	MeanPoints       float64         `json:"mean_points"`
	Grade            string          `json:"grade"`
	GradePoints      int             `json:"grade_points"`
	Rank             int             `json:"rank,omitempty"`
	CohortSize       int             `json:"cohort_size,omitempty"`
	SubjectsSelected int             `json:"subjects_selected"`
	NoData           bool            `json:"no_data"`
	Subjects         []SubjectResult `json:"subjects,omitempty"`
}

// TrendSlice is the set of subject results for one (class level, term, year).
type TrendSlice struct {
	ClassLevel      int             `json:"class_level"`
	Term            int             `json:"term"`
	Year            int             `json:"year"`
	Label           string          `json:"label,omitempty"`
	MinSubjects     int             `json:"min_subjects"`
	GradingSystemID string          `json:"grading_system_id"`
	Subjects        []SubjectResult `json:"subjects"`
}

// TrendPoint is one plotted value of a progress chart.
type TrendPoint struct {
	Label      string  `json:"label"`
	ClassLevel int     `json:"class_level"`
	Term       int     `json:"term"`
	Year       int     `json:"year,omitempty"`
	MeanPoints float64 `json:"mean_points"`
	Grade      string  `json:"grade"`
	HasData    bool    `json:"has_data"`
}

// TrendSeries is a student's ordered progress series.
type TrendSeries struct {
	StudentID string       `json:"student_id"`
	Points    []TrendPoint `json:"points"`
}

// Labels returns the x-axis labels in order.
func (s TrendSeries) Labels() []string {
	labels := make([]string, 0, len(s.Points))
	for _, p := range s.Points {
		labels = append(labels, p.Label)
	}
	return labels
}

// Values returns the mean points in label order.
func (s TrendSeries) Values() []float64 {
	values := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		values = append(values, p.MeanPoints)
	}
	return values
}

// CohortFilter scopes the students ranked together.
type CohortFilter struct {
	ExamID   string
	ClassID  string
	StreamID string
}

// CohortRanking is the ranked output for one exam and cohort.
type CohortRanking struct {
	ExamID     string            `json:"exam_id"`
	ClassID    string            `json:"class_id,omitempty"`
	StreamID   string            `json:"stream_id,omitempty"`
	RankBy     string            `json:"rank_by"`
	CohortSize int               `json:"cohort_size"`
	NoData     bool              `json:"no_data"`
	Results    []AggregateResult `json:"results"`
}

// StudentReport is one student's report-card view of an exam.
type StudentReport struct {
	ExamID    string          `json:"exam_id"`
	StudentID string          `json:"student_id"`
	NoData    bool            `json:"no_data"`
	Aggregate AggregateResult `json:"aggregate"`
}
