package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// ResultRepository reads confirmed result rows. Drafts are never returned.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new repository instance.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `exam_id, student_id, subject_id, paper_id, score`

// ListConfirmedByExam returns every confirmed row of an exam, optionally
// restricted to a set of students.
func (r *ResultRepository) ListConfirmedByExam(ctx context.Context, examID string, studentIDs []string) ([]models.ResultRow, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE exam_id = $1 AND confirmed = TRUE`
	args := []interface{}{examID}
	if len(studentIDs) > 0 {
		query += ` AND student_id = ANY($2)`
		args = append(args, pq.Array(studentIDs))
	}
	query += ` ORDER BY student_id, subject_id, paper_id NULLS FIRST`

	var rows []models.ResultRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return rows, nil
}

// ListConfirmedByStudent returns a student's confirmed rows across all exams.
func (r *ResultRepository) ListConfirmedByStudent(ctx context.Context, studentID string) ([]models.ResultRow, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE student_id = $1 AND confirmed = TRUE ORDER BY exam_id, subject_id, paper_id NULLS FIRST`
	var rows []models.ResultRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	return rows, nil
}
