package scheduler

import (
	"context"
	"sync"
	"time"

	"ecosmart-monitor/internal/metrics"
	"ecosmart-monitor/internal/models"

	"go.uber.org/zap"
)

// State is the generation state of a plot.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Generator produces one reading per cycle (implemented by
// generator.Generator).
type Generator interface {
	Generate(ctx context.Context, plotID string) *models.SensorReading
}

// ReadingSink persists readings (implemented by the service's storing
// pipeline: repository append plus realtime cache).
type ReadingSink interface {
	Append(ctx context.Context, reading *models.SensorReading) error
}

// Evaluator checks a fresh reading against alert rules (implemented by
// evaluator.Evaluator).
type Evaluator interface {
	Evaluate(ctx context.Context, plotID string, reading *models.SensorReading) bool
}

// Authorizer re-validates that the actor may still control the plot
// (implemented by repository.PlotRepository).
type Authorizer interface {
	IsAuthorized(ctx context.Context, actorID int64, plotID string) (bool, error)
}

// plotState tracks one plot's generation state. stop belongs to the worker
// spawned with it; a later Start creates a fresh channel, so a stale worker
// that is still draining its sleep can never be confused with the live one.
type plotState struct {
	status State
	stop   chan struct{}
}

// Scheduler owns the per-plot generation lifecycle: at most one live
// background worker per plot, cooperative stop with at most one cycle of
// latency, and a forced stop when the starting actor loses authorization.
type Scheduler struct {
	generator  Generator
	sink       ReadingSink
	evaluator  Evaluator
	authorizer Authorizer
	logger     *zap.Logger
	interval   time.Duration

	mu     sync.Mutex
	states map[string]*plotState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. interval is the delay between worker cycles.
func New(
	generator Generator,
	sink ReadingSink,
	evaluator Evaluator,
	authorizer Authorizer,
	logger *zap.Logger,
	interval time.Duration,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		generator:  generator,
		sink:       sink,
		evaluator:  evaluator,
		authorizer: authorizer,
		logger:     logger,
		interval:   interval,
		states:     make(map[string]*plotState),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start transitions the plot to running and spawns its worker. Returns
// alreadyRunning = true (and spawns nothing) when a worker is already live:
// starting twice is a no-op, not an error. The check-and-spawn step holds
// the state lock, so concurrent Start calls cannot double-spawn.
func (s *Scheduler) Start(plotID string, actorID int64) (alreadyRunning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[plotID]; ok && st.status == StateRunning {
		return true
	}

	st := &plotState{
		status: StateRunning,
		stop:   make(chan struct{}),
	}
	s.states[plotID] = st

	s.wg.Add(1)
	metrics.GenerationWorkers.Inc()
	go s.worker(plotID, actorID, st.stop)

	s.logger.Info("Generation started",
		zap.String("plot_id", plotID),
		zap.Int64("actor_id", actorID),
	)
	return false
}

// Stop transitions the plot to stopped. Returns alreadyStopped = true when
// no worker is running. The worker observes the stop on its next polling
// point, at most one cycle later.
func (s *Scheduler) Stop(plotID string) (alreadyStopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[plotID]
	if !ok || st.status != StateRunning {
		return true
	}

	st.status = StateStopped
	close(st.stop)

	s.logger.Info("Generation stopped",
		zap.String("plot_id", plotID),
	)
	return false
}

// Status returns the plot's generation state; unseen plots are stopped.
func (s *Scheduler) Status(plotID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[plotID]; ok {
		return st.status
	}
	return StateStopped
}

// Close stops every worker and waits for them to exit. Used on service
// shutdown.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
}

// worker runs the generation loop for one plot until its stop channel
// closes, the actor loses authorization or the scheduler shuts down. A
// failed cycle is logged and absorbed; the loop always reaches its next
// cycle.
func (s *Scheduler) worker(plotID string, actorID int64, stop <-chan struct{}) {
	defer s.wg.Done()
	defer metrics.GenerationWorkers.Dec()

	log := s.logger.With(
		zap.String("plot_id", plotID),
		zap.Int64("actor_id", actorID),
	)
	log.Debug("Generation worker started")
	defer log.Debug("Generation worker exited")

	for {
		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		default:
		}

		s.runCycle(plotID, actorID, stop, log)

		select {
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

// runCycle executes one generate-store-evaluate cycle.
func (s *Scheduler) runCycle(plotID string, actorID int64, stop <-chan struct{}, log *zap.Logger) {
	authorized, err := s.authorizer.IsAuthorized(s.ctx, actorID, plotID)
	if err != nil {
		// A failed check is a recoverable error, not an authorization
		// loss; skip the cycle and try again next time.
		log.Error("Authorization check failed, skipping cycle", zap.Error(err))
		metrics.GenerationCycleErrors.Inc()
		return
	}
	if !authorized {
		log.Warn("Actor no longer authorized, stopping generation")
		s.forceStop(plotID, stop)
		return
	}

	reading := s.generator.Generate(s.ctx, plotID)
	if err := s.sink.Append(s.ctx, reading); err != nil {
		log.Error("Failed to store reading, skipping cycle", zap.Error(err))
		metrics.GenerationCycleErrors.Inc()
		return
	}

	s.evaluator.Evaluate(s.ctx, plotID, reading)
}

// forceStop transitions the plot to stopped from inside its own worker
// (authorization loss). The stop channel comparison keeps a stale worker
// from knocking out a successor started in the meantime.
func (s *Scheduler) forceStop(plotID string, stop <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[plotID]
	if !ok || st.status != StateRunning {
		return
	}
	if (<-chan struct{})(st.stop) != stop {
		return
	}

	st.status = StateStopped
	close(st.stop)
}
