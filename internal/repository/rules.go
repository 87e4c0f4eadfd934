package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// RuleRepository reads alert rules. Rules are managed by the alert
// administration UI and are read-only here.
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

// ListActive returns all rules with active = true.
func (r *RuleRepository) ListActive(ctx context.Context) ([]models.AlertRule, error) {
	query := `
		SELECT id, parameter, threshold, operator, active
		FROM alert_rules
		WHERE active = TRUE
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AlertRule
	for rows.Next() {
		var rule models.AlertRule
		if err := rows.Scan(
			&rule.ID,
			&rule.Parameter,
			&rule.Threshold,
			&rule.Operator,
			&rule.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}
