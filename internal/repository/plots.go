package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// PlotRepository reads plot records. Plot CRUD belongs to the management
// layer; the monitoring core only needs lookups and authorization checks.
type PlotRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPlotRepository creates a new plot repository
func NewPlotRepository(db *sql.DB, logger *zap.Logger) *PlotRepository {
	return &PlotRepository{
		db:     db,
		logger: logger,
	}
}

// GetPlot returns the plot with the given id, or an error wrapping
// sql.ErrNoRows when it does not exist.
func (r *PlotRepository) GetPlot(ctx context.Context, plotID string) (*models.Plot, error) {
	if plotID == "" {
		return nil, fmt.Errorf("plot_id is required")
	}

	query := `
		SELECT plot_id, owner_id, agronomist_id, latitude, longitude
		FROM plots
		WHERE plot_id = $1
	`

	var plot models.Plot
	var agronomistID sql.NullInt64
	var latitude, longitude sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, plotID).Scan(
		&plot.PlotID,
		&plot.OwnerID,
		&agronomistID,
		&latitude,
		&longitude,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plot not found: %s: %w", plotID, err)
		}
		return nil, fmt.Errorf("failed to get plot: %w", err)
	}

	if agronomistID.Valid {
		plot.AgronomistID = &agronomistID.Int64
	}
	if latitude.Valid {
		plot.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		plot.Longitude = &longitude.Float64
	}

	return &plot, nil
}

// IsAuthorized reports whether the actor may control the plot: admins
// always, farmers when they own it, agronomists when they are assigned
// to it. Unknown actors are never authorized.
func (r *PlotRepository) IsAuthorized(ctx context.Context, actorID int64, plotID string) (bool, error) {
	if plotID == "" {
		return false, fmt.Errorf("plot_id is required")
	}

	var userType string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_type FROM users WHERE id = $1`, actorID,
	).Scan(&userType)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user type: %w", err)
	}

	if userType == "admin" {
		return true, nil
	}

	var query string
	switch userType {
	case "farmer":
		query = `SELECT 1 FROM plots WHERE plot_id = $1 AND owner_id = $2`
	case "agronomist":
		query = `SELECT 1 FROM plots WHERE plot_id = $1 AND agronomist_id = $2`
	default:
		return false, nil
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, plotID, actorID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check plot authorization: %w", err)
	}

	return true, nil
}
