package generator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"ecosmart-monitor/internal/metrics"
	"ecosmart-monitor/internal/models"
	"ecosmart-monitor/internal/weather"

	"go.uber.org/zap"
)

// Synthetic fallback ranges, used for any parameter the weather provider
// could not supply.
const (
	SyntheticTempMin     = 15.0
	SyntheticTempMax     = 35.0
	SyntheticHumidityMin = 30.0
	SyntheticHumidityMax = 80.0
	SyntheticRainMin     = 0.0
	SyntheticRainMax     = 50.0
)

// PlotGetter resolves plot records (implemented by
// repository.PlotRepository).
type PlotGetter interface {
	GetPlot(ctx context.Context, plotID string) (*models.Plot, error)
}

// WeatherProvider fetches current conditions for a location (implemented by
// weather.Client).
type WeatherProvider interface {
	FetchCurrentConditions(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// Generator produces sensor readings for plots: real weather data when the
// plot has coordinates and the provider answers, bounded synthetic values
// otherwise. It never fails on missing external data.
type Generator struct {
	plots   PlotGetter
	weather WeatherProvider
	logger  *zap.Logger

	// rand.Rand is not goroutine-safe and one generator serves every plot
	// worker, so fallback draws take the lock.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a generator.
func New(plots PlotGetter, weatherProvider WeatherProvider, logger *zap.Logger) *Generator {
	return &Generator{
		plots:   plots,
		weather: weatherProvider,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate produces one complete reading for the plot. External failures
// (unknown coordinates, weather provider down) degrade to synthetic values
// and are only logged.
func (g *Generator) Generate(ctx context.Context, plotID string) *models.SensorReading {
	var conditions *weather.Conditions

	plot, err := g.plots.GetPlot(ctx, plotID)
	if err != nil {
		g.logger.Warn("Plot lookup failed, using synthetic values",
			zap.String("plot_id", plotID),
			zap.Error(err),
		)
	} else if plot.HasCoordinates() {
		conditions, err = g.weather.FetchCurrentConditions(ctx, *plot.Latitude, *plot.Longitude)
		if err != nil {
			g.logger.Warn("Weather lookup failed, using synthetic values",
				zap.String("plot_id", plotID),
				zap.Error(err),
			)
		}
	}

	source := "weather"
	if conditions == nil {
		conditions = &weather.Conditions{
			Temperature: round2(g.uniform(SyntheticTempMin, SyntheticTempMax)),
			Humidity:    round2(g.uniform(SyntheticHumidityMin, SyntheticHumidityMax)),
			Rainfall:    round2(g.uniform(SyntheticRainMin, SyntheticRainMax)),
		}
		source = "synthetic"
		metrics.WeatherFallbackTotal.Inc()
	}

	reading := Derive(plotID, conditions, time.Now())
	metrics.ReadingsGeneratedTotal.WithLabelValues(plotID, source).Inc()

	return reading
}

// Derive builds a reading from ambient conditions. Soil pH and N/P/K follow
// the agronomic approximations of the legacy system:
//
//	pH = 7.0 - 0.05*rain + 0.02*temp
//	N  = 50 + 0.5*humidity - 0.3*temp
//	P  = 30 + 0.2*temp - 0.1*rain
//	K  = 100 - 0.4*rain + 0.2*humidity
func Derive(plotID string, c *weather.Conditions, ts time.Time) *models.SensorReading {
	return &models.SensorReading{
		PlotID:       plotID,
		SoilMoisture: c.Humidity,
		SoilPH:       round2(7.0 - 0.05*c.Rainfall + 0.02*c.Temperature),
		Temperature:  c.Temperature,
		Nitrogen:     round1(50 + 0.5*c.Humidity - 0.3*c.Temperature),
		Phosphorus:   round1(30 + 0.2*c.Temperature - 0.1*c.Rainfall),
		Potassium:    round1(100 - 0.4*c.Rainfall + 0.2*c.Humidity),
		Timestamp:    ts,
	}
}

func (g *Generator) uniform(min, max float64) float64 {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return min + g.rng.Float64()*(max-min)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
