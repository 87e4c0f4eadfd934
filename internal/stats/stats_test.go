package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ecosmart-monitor/internal/models"
)

type fakeValueReader struct {
	values []float64
	err    error
}

func (f *fakeValueReader) LastValues(ctx context.Context, plotID, parameter string, limit int) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.values) > limit {
		return f.values[len(f.values)-limit:], nil
	}
	return f.values, nil
}

func newTestEngine(values []float64) *Engine {
	return NewEngine(&fakeValueReader{values: values}, zap.NewNop(), 30, 5, 2.0)
}

func TestDescribe(t *testing.T) {
	last, max, min, mean, stddev := Describe([]float64{8, 9, 10, 11, 12})

	assert.Equal(t, 12.0, last)
	assert.Equal(t, 12.0, max)
	assert.Equal(t, 8.0, min)
	assert.Equal(t, 10.0, mean)
	assert.InDelta(t, 1.41421, stddev, 0.0001) // population stddev
}

func TestSummarize_Empty(t *testing.T) {
	engine := newTestEngine(nil)

	snapshot, err := engine.Summarize(context.Background(), "AGRO-2-1", models.ParamTemperature)

	require.NoError(t, err)
	assert.Nil(t, snapshot.Last)
	assert.Nil(t, snapshot.Max)
	assert.Nil(t, snapshot.Min)
	assert.Nil(t, snapshot.Mean)
	assert.Nil(t, snapshot.StdDev)
	assert.Equal(t, 0, snapshot.Anomaly)
}

func TestSummarize_UnknownParameter(t *testing.T) {
	engine := newTestEngine([]float64{1, 2, 3})

	_, err := engine.Summarize(context.Background(), "AGRO-2-1", "wind_speed")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown parameter")
}

func TestSummarize_ReadFailureLoggedAndReturned(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	engine := NewEngine(&fakeValueReader{err: errors.New("db down")}, zap.New(core), 30, 5, 2.0)

	_, err := engine.Summarize(context.Background(), "AGRO-2-1", models.ParamTemperature)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load values")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Failed to load values for snapshot", logs.All()[0].Message)
}

func TestSummarize_PopulationStats(t *testing.T) {
	engine := newTestEngine([]float64{8, 9, 10, 11, 12, 10})

	snapshot, err := engine.Summarize(context.Background(), "AGRO-2-1", models.ParamSoilMoisture)

	require.NoError(t, err)
	require.NotNil(t, snapshot.Last)
	assert.Equal(t, 10.0, *snapshot.Last)
	assert.Equal(t, 12.0, *snapshot.Max)
	assert.Equal(t, 8.0, *snapshot.Min)
	assert.Equal(t, 10.0, *snapshot.Mean)
	assert.InDelta(t, 1.29099, *snapshot.StdDev, 0.0001)
	assert.Equal(t, 0, snapshot.Anomaly)
}

func TestDetectAnomaly_TooFewBaselineSamples(t *testing.T) {
	engine := newTestEngine(nil)

	// Any deviation is ignored until the baseline has 5 values.
	assert.Equal(t, 0, engine.DetectAnomaly(1000, []float64{10, 10, 10, 10}))
}

func TestDetectAnomaly_ZeroVarianceBaseline(t *testing.T) {
	engine := newTestEngine(nil)

	assert.Equal(t, 0, engine.DetectAnomaly(30, []float64{10, 10, 10, 10, 10}))
}

func TestDetectAnomaly_Exceeds(t *testing.T) {
	engine := newTestEngine(nil)

	// Baseline mean 10, population stddev ~1.414; |14-10| = 4 > 2.828.
	assert.Equal(t, 1, engine.DetectAnomaly(14, []float64{8, 9, 10, 11, 12}))
}

func TestDetectAnomaly_WithinThreshold(t *testing.T) {
	engine := newTestEngine(nil)

	// |12-10| = 2 < 2.828.
	assert.Equal(t, 0, engine.DetectAnomaly(12, []float64{8, 9, 10, 11, 12}))
}

func TestSummarize_AnomalyExcludesLast(t *testing.T) {
	// Last value 14 against baseline {8,9,10,11,12}: anomalous.
	engine := newTestEngine([]float64{8, 9, 10, 11, 12, 14})

	snapshot, err := engine.Summarize(context.Background(), "AGRO-2-1", models.ParamTemperature)

	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Anomaly)
}

func TestSummarize_Idempotent(t *testing.T) {
	engine := newTestEngine([]float64{8, 9, 10, 11, 12, 14})

	first, err := engine.Summarize(context.Background(), "AGRO-2-1", models.ParamTemperature)
	require.NoError(t, err)
	second, err := engine.Summarize(context.Background(), "AGRO-2-1", models.ParamTemperature)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
