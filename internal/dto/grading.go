package dto

import "time"

// CohortRankingRequest selects the exam cohort to rank.
type CohortRankingRequest struct {
	ExamID   string `json:"exam_id" validate:"required"`
	ClassID  string `json:"class_id,omitempty"`
	StreamID string `json:"stream_id,omitempty"`
	RankBy   string `json:"rank_by,omitempty" validate:"omitempty,oneof=mean_points total_points total_marks"`
	// Refresh bypasses the cache and overwrites the cached entry.
	Refresh bool `json:"refresh,omitempty"`
}

// StudentReportRequest identifies one student's report within a cohort.
type StudentReportRequest struct {
	ExamID    string `json:"exam_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id,omitempty"`
	StreamID  string `json:"stream_id,omitempty"`
	RankBy    string `json:"rank_by,omitempty" validate:"omitempty,oneof=mean_points total_points total_marks"`
}

// ExportRankingRequest renders a cohort ranking as a file.
type ExportRankingRequest struct {
	CohortRankingRequest
	Format string `json:"format"`
}

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// CohortScope is one class/stream combination to precompute.
type CohortScope struct {
	ClassID  string `json:"class_id,omitempty"`
	StreamID string `json:"stream_id,omitempty"`
}

// PrecomputeRequest asks for rankings to be computed and cached in the background.
type PrecomputeRequest struct {
	ExamID  string        `json:"exam_id" validate:"required"`
	RankBy  string        `json:"rank_by,omitempty" validate:"omitempty,oneof=mean_points total_points total_marks"`
	Cohorts []CohortScope `json:"cohorts,omitempty" validate:"omitempty,max=200,dive"`
}

// PrecomputeStatus values.
const (
	PrecomputeQueued    = "queued"
	PrecomputeRunning   = "running"
	PrecomputeCompleted = "completed"
	PrecomputeFailed    = "failed"
)

// PrecomputeJob reports a background precompute job.
type PrecomputeJob struct {
	JobID      string     `json:"job_id"`
	ExamID     string     `json:"exam_id"`
	Status     string     `json:"status"`
	Cohorts    int        `json:"cohorts"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// InvalidateResponse reports how many cached entries were dropped.
type InvalidateResponse struct {
	ExamID  string `json:"exam_id"`
	Deleted int    `json:"deleted"`
}
