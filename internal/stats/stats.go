package stats

import (
	"context"
	"fmt"
	"math"

	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// ValueReader fetches the recent values of one parameter for a plot,
// ordered oldest to newest (implemented by repository.ReadingRepository).
type ValueReader interface {
	LastValues(ctx context.Context, plotID, parameter string, limit int) ([]float64, error)
}

// Engine computes rolling statistics and anomaly flags over stored sensor
// readings. Snapshots are recomputed on every call and never cached.
type Engine struct {
	reader     ValueReader
	logger     *zap.Logger
	window     int     // readings per snapshot
	minSamples int     // baseline readings required before anomaly detection
	threshold  float64 // anomaly threshold in standard deviations
}

// NewEngine creates a statistics engine.
func NewEngine(reader ValueReader, logger *zap.Logger, window, minSamples int, threshold float64) *Engine {
	return &Engine{
		reader:     reader,
		logger:     logger,
		window:     window,
		minSamples: minSamples,
		threshold:  threshold,
	}
}

// Summarize builds a snapshot of the last window values of parameter for
// the plot. With no stored values at all, the numeric fields are nil and
// anomaly is 0.
func (e *Engine) Summarize(ctx context.Context, plotID, parameter string) (*models.StatSnapshot, error) {
	if !models.IsValidParameter(parameter) {
		return nil, fmt.Errorf("unknown parameter: %s", parameter)
	}

	values, err := e.reader.LastValues(ctx, plotID, parameter, e.window)
	if err != nil {
		e.logger.Error("Failed to load values for snapshot",
			zap.String("plot_id", plotID),
			zap.String("parameter", parameter),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load values: %w", err)
	}

	snapshot := &models.StatSnapshot{
		PlotID:    plotID,
		Parameter: parameter,
	}

	if len(values) == 0 {
		return snapshot, nil
	}

	last, max, min, mean, stddev := Describe(values)
	snapshot.Last = &last
	snapshot.Max = &max
	snapshot.Min = &min
	snapshot.Mean = &mean
	snapshot.StdDev = &stddev
	snapshot.Anomaly = e.DetectAnomaly(last, values[:len(values)-1])

	return snapshot, nil
}

// Describe returns last, max, min, mean and population standard deviation
// of values. values must be non-empty and ordered oldest to newest.
func Describe(values []float64) (last, max, min, mean, stddev float64) {
	n := float64(len(values))
	last = values[len(values)-1]
	max = values[0]
	min = values[0]

	var sum float64
	for _, v := range values {
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	mean = sum / n

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= n
	stddev = math.Sqrt(variance)

	return last, max, min, mean, stddev
}

// DetectAnomaly flags current as anomalous when it deviates from the
// baseline mean by more than threshold standard deviations. Returns 0 when
// the baseline is too small or has zero variance.
func (e *Engine) DetectAnomaly(current float64, baseline []float64) int {
	if len(baseline) < e.minSamples {
		return 0
	}

	_, _, _, mean, stddev := Describe(baseline)
	if stddev == 0 {
		return 0
	}

	if math.Abs(current-mean) > e.threshold*stddev {
		return 1
	}
	return 0
}
