package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// CohortRepository resolves which students are ranked together.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository creates a new repository instance.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// ListStudentIDs returns the students enrolled in the filtered class or
// stream. Without a class or stream the cohort is everyone with a confirmed
// result in the exam.
func (r *CohortRepository) ListStudentIDs(ctx context.Context, filter models.CohortFilter) ([]string, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		conditions = append(conditions, fmt.Sprintf("class_id = $%d", len(args)))
	}
	if filter.StreamID != "" {
		args = append(args, filter.StreamID)
		conditions = append(conditions, fmt.Sprintf("stream_id = $%d", len(args)))
	}

	var query string
	if len(conditions) > 0 {
		query = `SELECT DISTINCT student_id FROM student_enrollments WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY student_id`
	} else {
		args = append(args, filter.ExamID)
		query = `SELECT DISTINCT student_id FROM results WHERE exam_id = $1 AND confirmed = TRUE ORDER BY student_id`
	}

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list cohort students: %w", err)
	}
	return ids, nil
}
