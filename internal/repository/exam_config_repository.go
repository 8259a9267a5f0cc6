package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// ExamConfigRepository reads per-exam aggregation settings.
type ExamConfigRepository struct {
	db *sqlx.DB
}

// NewExamConfigRepository creates a new repository instance.
func NewExamConfigRepository(db *sqlx.DB) *ExamConfigRepository {
	return &ExamConfigRepository{db: db}
}

const examConfigColumns = `id, name, grading_system_id, min_subjects, class_level, term, year`

// FindByID returns the exam settings. A missing exam wraps sql.ErrNoRows.
func (r *ExamConfigRepository) FindByID(ctx context.Context, examID string) (*models.ExamConfig, error) {
	query := `SELECT ` + examConfigColumns + ` FROM exams WHERE id = $1`
	var exam models.ExamConfig
	if err := r.db.GetContext(ctx, &exam, query, examID); err != nil {
		return nil, fmt.Errorf("get exam %s: %w", examID, err)
	}
	return &exam, nil
}

// ListByIDs loads several exams ordered by year, class level and term.
func (r *ExamConfigRepository) ListByIDs(ctx context.Context, examIDs []string) ([]models.ExamConfig, error) {
	if len(examIDs) == 0 {
		return []models.ExamConfig{}, nil
	}
	query := `SELECT ` + examConfigColumns + ` FROM exams WHERE id = ANY($1) ORDER BY class_level, year, term, created_at, id`
	var exams []models.ExamConfig
	if err := r.db.SelectContext(ctx, &exams, query, pq.Array(examIDs)); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}
