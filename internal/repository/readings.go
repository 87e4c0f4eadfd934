package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// parameterColumns maps canonical parameter names to sensor_readings
// columns. Only names present here ever reach a query string.
var parameterColumns = map[string]string{
	models.ParamSoilMoisture: "soil_moisture",
	models.ParamSoilPH:       "soil_ph",
	models.ParamTemperature:  "temperature",
	models.ParamNitrogen:     "nitrogen",
	models.ParamPhosphorus:   "phosphorus",
	models.ParamPotassium:    "potassium",
}

// ReadingRepository persists sensor readings (append-only).
type ReadingRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingRepository creates a new reading repository
func NewReadingRepository(db *sql.DB, logger *zap.Logger) *ReadingRepository {
	return &ReadingRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one reading and fills in its generated id.
func (r *ReadingRepository) Append(ctx context.Context, reading *models.SensorReading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	if reading.PlotID == "" {
		return fmt.Errorf("plot_id is required")
	}

	query := `
		INSERT INTO sensor_readings (
			plot_id, soil_moisture, soil_ph, temperature,
			nitrogen, phosphorus, potassium, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		reading.PlotID,
		reading.SoilMoisture,
		reading.SoilPH,
		reading.Temperature,
		reading.Nitrogen,
		reading.Phosphorus,
		reading.Potassium,
		reading.Timestamp,
	).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// Latest returns the most recent reading for the plot, or nil when the plot
// has none yet.
func (r *ReadingRepository) Latest(ctx context.Context, plotID string) (*models.SensorReading, error) {
	if plotID == "" {
		return nil, fmt.Errorf("plot_id is required")
	}

	query := `
		SELECT id, plot_id, soil_moisture, soil_ph, temperature,
		       nitrogen, phosphorus, potassium, timestamp
		FROM sensor_readings
		WHERE plot_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	var reading models.SensorReading
	err := r.db.QueryRowContext(ctx, query, plotID).Scan(
		&reading.ID,
		&reading.PlotID,
		&reading.SoilMoisture,
		&reading.SoilPH,
		&reading.Temperature,
		&reading.Nitrogen,
		&reading.Phosphorus,
		&reading.Potassium,
		&reading.Timestamp,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}

	return &reading, nil
}

// History returns the most recent limit readings for the plot, ordered
// oldest to newest.
func (r *ReadingRepository) History(ctx context.Context, plotID string, limit int) ([]models.SensorReading, error) {
	if plotID == "" {
		return nil, fmt.Errorf("plot_id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	query := `
		SELECT id, plot_id, soil_moisture, soil_ph, temperature,
		       nitrogen, phosphorus, potassium, timestamp
		FROM sensor_readings
		WHERE plot_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, plotID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reading history: %w", err)
	}
	defer rows.Close()

	var readings []models.SensorReading
	for rows.Next() {
		var reading models.SensorReading
		if err := rows.Scan(
			&reading.ID,
			&reading.PlotID,
			&reading.SoilMoisture,
			&reading.SoilPH,
			&reading.Temperature,
			&reading.Nitrogen,
			&reading.Phosphorus,
			&reading.Potassium,
			&reading.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	// Rows come back newest first; reverse into time order.
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}

	return readings, nil
}

// LastValues returns the most recent limit values of one parameter for the
// plot, ordered oldest to newest. Used by the statistics engine.
func (r *ReadingRepository) LastValues(ctx context.Context, plotID, parameter string, limit int) ([]float64, error) {
	if plotID == "" {
		return nil, fmt.Errorf("plot_id is required")
	}
	column, ok := parameterColumns[parameter]
	if !ok {
		return nil, fmt.Errorf("unknown parameter: %s", parameter)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sensor_readings
		WHERE plot_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`, column)

	rows, err := r.db.QueryContext(ctx, query, plotID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate values: %w", err)
	}

	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}

	return values, nil
}
