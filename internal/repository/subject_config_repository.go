package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// SubjectConfigRepository loads subjects together with their paper definitions.
type SubjectConfigRepository struct {
	db *sqlx.DB
}

// NewSubjectConfigRepository creates a new repository instance.
func NewSubjectConfigRepository(db *sqlx.DB) *SubjectConfigRepository {
	return &SubjectConfigRepository{db: db}
}

type examSubjectRow struct {
	ExamID string `db:"exam_id"`
	models.SubjectConfig
}

// ListByExam returns the subjects offered in an exam in their configured order.
func (r *SubjectConfigRepository) ListByExam(ctx context.Context, examID string) ([]models.SubjectConfig, error) {
	byExam, err := r.ListByExams(ctx, []string{examID})
	if err != nil {
		return nil, err
	}
	return byExam[examID], nil
}

// ListByExams loads subjects for several exams with two queries in total.
func (r *SubjectConfigRepository) ListByExams(ctx context.Context, examIDs []string) (map[string][]models.SubjectConfig, error) {
	result := make(map[string][]models.SubjectConfig, len(examIDs))
	if len(examIDs) == 0 {
		return result, nil
	}
	const query = `SELECT es.exam_id, s.id, s.code, s.name, s.subject_type, s.use_papers
        FROM exam_subjects es JOIN subjects s ON s.id = es.subject_id
        WHERE es.exam_id = ANY($1) ORDER BY es.exam_id, es.position, s.id`
	var rows []examSubjectRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(examIDs)); err != nil {
		return nil, fmt.Errorf("list exam subjects: %w", err)
	}

	subjectIDs := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		subjectIDs = append(subjectIDs, row.ID)
	}
	papers, err := r.papersBySubject(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		subject := row.SubjectConfig
		subject.Papers = papers[subject.ID]
		result[row.ExamID] = append(result[row.ExamID], subject)
	}
	return result, nil
}

func (r *SubjectConfigRepository) papersBySubject(ctx context.Context, subjectIDs []string) (map[string][]models.Paper, error) {
	result := make(map[string][]models.Paper, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return result, nil
	}
	const query = `SELECT id, subject_id, name, max_score, contribution_percentage
        FROM papers WHERE subject_id = ANY($1) ORDER BY subject_id, position, id`
	var papers []models.Paper
	if err := r.db.SelectContext(ctx, &papers, query, pq.Array(subjectIDs)); err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	for _, paper := range papers {
		result[paper.SubjectID] = append(result[paper.SubjectID], paper)
	}
	return result, nil
}
