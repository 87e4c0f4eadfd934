package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// AlertEventRepository persists alert events. The table is append-only and
// doubles as the notification dedup ledger.
type AlertEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventRepository creates a new alert event repository
func NewAlertEventRepository(db *sql.DB, logger *zap.Logger) *AlertEventRepository {
	return &AlertEventRepository{
		db:     db,
		logger: logger,
	}
}

// Create records one alert event.
func (r *AlertEventRepository) Create(ctx context.Context, event *models.AlertEvent) error {
	if event == nil {
		return fmt.Errorf("event is required")
	}
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.PlotID == "" {
		return fmt.Errorf("plot_id is required")
	}

	query := `
		INSERT INTO alert_events (
			event_id, rule_id, owner_id, agronomist_id,
			plot_id, sensor_value, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.RuleID,
		event.OwnerID,
		event.AgronomistID,
		event.PlotID,
		event.SensorValue,
		event.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert event: %w", err)
	}

	return nil
}

// LastTriggeredAt returns the timestamp of the most recent event for the
// (rule, owner) pair, or nil when the pair has never triggered.
func (r *AlertEventRepository) LastTriggeredAt(ctx context.Context, ruleID, ownerID int64) (*time.Time, error) {
	query := `
		SELECT triggered_at
		FROM alert_events
		WHERE rule_id = $1 AND owner_id = $2
		ORDER BY triggered_at DESC
		LIMIT 1
	`

	var triggeredAt time.Time
	err := r.db.QueryRowContext(ctx, query, ruleID, ownerID).Scan(&triggeredAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last trigger time: %w", err)
	}

	return &triggeredAt, nil
}

// ListByPlot returns the most recent limit events for the plot, newest
// first.
func (r *AlertEventRepository) ListByPlot(ctx context.Context, plotID string, limit int) ([]models.AlertEvent, error) {
	if plotID == "" {
		return nil, fmt.Errorf("plot_id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	query := `
		SELECT event_id, rule_id, owner_id, agronomist_id,
		       plot_id, sensor_value, triggered_at
		FROM alert_events
		WHERE plot_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, plotID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var event models.AlertEvent
		var agronomistID sql.NullInt64
		if err := rows.Scan(
			&event.EventID,
			&event.RuleID,
			&event.OwnerID,
			&agronomistID,
			&event.PlotID,
			&event.SensorValue,
			&event.TriggeredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		if agronomistID.Valid {
			event.AgronomistID = &agronomistID.Int64
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, nil
}
