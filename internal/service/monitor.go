package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecosmart-monitor/internal/cache"
	"ecosmart-monitor/internal/models"
	"ecosmart-monitor/internal/scheduler"

	"go.uber.org/zap"
)

// ErrNotAuthorized is returned when the acting user may not control the plot.
var ErrNotAuthorized = errors.New("actor is not authorized for plot")

// ReadingStore is the persistence surface the service needs (implemented by
// repository.ReadingRepository).
type ReadingStore interface {
	Append(ctx context.Context, reading *models.SensorReading) error
	Latest(ctx context.Context, plotID string) (*models.SensorReading, error)
	History(ctx context.Context, plotID string, limit int) ([]models.SensorReading, error)
}

// RealtimeCache keeps the latest reading per plot (implemented by
// cache.RealtimeCache).
type RealtimeCache interface {
	StoreLatest(ctx context.Context, reading *models.SensorReading) error
	GetLatest(ctx context.Context, plotID string) (*models.SensorReading, error)
}

// StatEngine computes rolling statistics (implemented by stats.Engine).
type StatEngine interface {
	Summarize(ctx context.Context, plotID, parameter string) (*models.StatSnapshot, error)
}

// AlertEvaluator checks a reading against the active rules (implemented by
// evaluator.Evaluator).
type AlertEvaluator interface {
	Evaluate(ctx context.Context, plotID string, reading *models.SensorReading) bool
}

// GenerationControl is the per-plot worker lifecycle (implemented by
// scheduler.Scheduler).
type GenerationControl interface {
	Start(plotID string, actorID int64) (alreadyRunning bool)
	Stop(plotID string) (alreadyStopped bool)
	Status(plotID string) scheduler.State
	Close()
}

// PlotAuthorizer re-validates plot access (implemented by
// repository.PlotRepository).
type PlotAuthorizer interface {
	IsAuthorized(ctx context.Context, actorID int64, plotID string) (bool, error)
}

// RuleLister loads the active alert rules (implemented by
// repository.RuleRepository).
type RuleLister interface {
	ListActive(ctx context.Context) ([]models.AlertRule, error)
}

// EventLister reads triggered alert history (implemented by
// repository.AlertEventRepository).
type EventLister interface {
	ListByPlot(ctx context.Context, plotID string, limit int) ([]models.AlertEvent, error)
}

// ReadingPipeline stores a fresh reading: durable append first, then a
// best-effort refresh of the realtime cache. It is the sink the scheduler
// pushes generated readings through.
type ReadingPipeline struct {
	readings ReadingStore
	cache    RealtimeCache
	logger   *zap.Logger
}

// NewReadingPipeline creates the storing pipeline. cache may be nil when no
// Redis is configured.
func NewReadingPipeline(readings ReadingStore, cache RealtimeCache, logger *zap.Logger) *ReadingPipeline {
	return &ReadingPipeline{
		readings: readings,
		cache:    cache,
		logger:   logger,
	}
}

// Append persists the reading. A cache write failure is logged and absorbed,
// the durable write is what matters.
func (p *ReadingPipeline) Append(ctx context.Context, reading *models.SensorReading) error {
	if err := p.readings.Append(ctx, reading); err != nil {
		return fmt.Errorf("failed to append reading: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.StoreLatest(ctx, reading); err != nil {
			p.logger.Warn("Failed to refresh realtime cache",
				zap.String("plot_id", reading.PlotID),
				zap.Error(err))
		}
	}

	return nil
}

// Monitor is the application facade: generation lifecycle, reading queries,
// statistics and alert history behind one surface the HTTP server calls.
type Monitor struct {
	control    GenerationControl
	pipeline   *ReadingPipeline
	readings   ReadingStore
	cache      RealtimeCache
	stats      StatEngine
	evaluator  AlertEvaluator
	authorizer PlotAuthorizer
	rules      RuleLister
	events     EventLister
	logger     *zap.Logger
}

// NewMonitor wires the monitor facade. cache may be nil.
func NewMonitor(
	control GenerationControl,
	pipeline *ReadingPipeline,
	readings ReadingStore,
	rtCache RealtimeCache,
	statEngine StatEngine,
	alertEvaluator AlertEvaluator,
	authorizer PlotAuthorizer,
	rules RuleLister,
	events EventLister,
	logger *zap.Logger,
) *Monitor {
	return &Monitor{
		control:    control,
		pipeline:   pipeline,
		readings:   readings,
		cache:      rtCache,
		stats:      statEngine,
		evaluator:  alertEvaluator,
		authorizer: authorizer,
		rules:      rules,
		events:     events,
		logger:     logger,
	}
}

// StartGeneration begins periodic generation for the plot on behalf of the
// actor. Returns whether a worker was already running.
func (m *Monitor) StartGeneration(ctx context.Context, plotID string, actorID int64) (alreadyRunning bool, err error) {
	if plotID == "" {
		return false, fmt.Errorf("plotID is required")
	}

	authorized, err := m.authorizer.IsAuthorized(ctx, actorID, plotID)
	if err != nil {
		return false, fmt.Errorf("failed to check authorization: %w", err)
	}
	if !authorized {
		return false, ErrNotAuthorized
	}

	return m.control.Start(plotID, actorID), nil
}

// StopGeneration requests the plot's worker to stop. Returns whether it was
// already stopped.
func (m *Monitor) StopGeneration(plotID string) (alreadyStopped bool) {
	return m.control.Stop(plotID)
}

// GenerationStatus reports the plot's current generation state.
func (m *Monitor) GenerationStatus(plotID string) scheduler.State {
	return m.control.Status(plotID)
}

// LatestReading returns the plot's most recent reading, cache first with a
// database fallback. Returns (nil, nil) when the plot has no readings.
func (m *Monitor) LatestReading(ctx context.Context, plotID string) (*models.SensorReading, error) {
	if m.cache != nil {
		reading, err := m.cache.GetLatest(ctx, plotID)
		if err == nil {
			return reading, nil
		}
		if err != cache.ErrCacheMiss {
			m.logger.Warn("Realtime cache lookup failed, falling back to database",
				zap.String("plot_id", plotID),
				zap.Error(err))
		}
	}

	reading, err := m.readings.Latest(ctx, plotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest reading: %w", err)
	}
	if reading == nil {
		return nil, nil
	}

	if m.cache != nil {
		if err := m.cache.StoreLatest(ctx, reading); err != nil {
			m.logger.Warn("Failed to backfill realtime cache",
				zap.String("plot_id", plotID),
				zap.Error(err))
		}
	}

	return reading, nil
}

// History returns the plot's most recent readings, oldest first.
func (m *Monitor) History(ctx context.Context, plotID string, limit int) ([]models.SensorReading, error) {
	return m.readings.History(ctx, plotID, limit)
}

// StatSnapshot computes the rolling statistics of one parameter for the plot.
func (m *Monitor) StatSnapshot(ctx context.Context, plotID, parameter string) (*models.StatSnapshot, error) {
	return m.stats.Summarize(ctx, plotID, parameter)
}

// SubmitReading stores a manually submitted reading and runs alert
// evaluation on it. Returns whether any alert fired.
func (m *Monitor) SubmitReading(ctx context.Context, reading *models.SensorReading) (triggered bool, err error) {
	if reading == nil {
		return false, fmt.Errorf("reading is required")
	}
	if reading.PlotID == "" {
		return false, fmt.Errorf("plotID is required")
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	if err := m.pipeline.Append(ctx, reading); err != nil {
		return false, err
	}

	return m.evaluator.Evaluate(ctx, reading.PlotID, reading), nil
}

// ListAlertRules returns the active alert rules.
func (m *Monitor) ListAlertRules(ctx context.Context) ([]models.AlertRule, error) {
	return m.rules.ListActive(ctx)
}

// AlertHistory returns the plot's triggered alerts, newest first.
func (m *Monitor) AlertHistory(ctx context.Context, plotID string, limit int) ([]models.AlertEvent, error) {
	return m.events.ListByPlot(ctx, plotID, limit)
}

// Close stops all generation workers and waits for them to exit.
func (m *Monitor) Close() {
	m.control.Close()
}
