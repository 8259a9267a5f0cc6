package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-api/internal/models"
)

// GradingRuleRepository loads grading rule tables.
type GradingRuleRepository struct {
	db *sqlx.DB
}

// NewGradingRuleRepository creates a new repository instance.
func NewGradingRuleRepository(db *sqlx.DB) *GradingRuleRepository {
	return &GradingRuleRepository{db: db}
}

const gradingRuleColumns = `id, grading_system_id, min_score, max_score, grade, points`

// ListBySystem returns every rule of a grading system ordered by min_score.
func (r *GradingRuleRepository) ListBySystem(ctx context.Context, systemID string) ([]models.GradingRule, error) {
	query := `SELECT ` + gradingRuleColumns + ` FROM grading_rules WHERE grading_system_id = $1 ORDER BY min_score, id`
	var rules []models.GradingRule
	if err := r.db.SelectContext(ctx, &rules, query, systemID); err != nil {
		return nil, fmt.Errorf("list grading rules: %w", err)
	}
	return rules, nil
}

// ListBySystems loads several grading systems at once, keyed by system id.
func (r *GradingRuleRepository) ListBySystems(ctx context.Context, systemIDs []string) (map[string][]models.GradingRule, error) {
	result := make(map[string][]models.GradingRule, len(systemIDs))
	if len(systemIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + gradingRuleColumns + ` FROM grading_rules WHERE grading_system_id = ANY($1) ORDER BY grading_system_id, min_score, id`
	var rules []models.GradingRule
	if err := r.db.SelectContext(ctx, &rules, query, pq.Array(systemIDs)); err != nil {
		return nil, fmt.Errorf("list grading rules by systems: %w", err)
	}
	for _, rule := range rules {
		result[rule.GradingSystemID] = append(result[rule.GradingSystemID], rule)
	}
	return result, nil
}
