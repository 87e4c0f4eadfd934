package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecosmart-monitor/internal/models"
)

type countingGenerator struct {
	calls atomic.Int64
}

func (g *countingGenerator) Generate(ctx context.Context, plotID string) *models.SensorReading {
	g.calls.Add(1)
	return &models.SensorReading{PlotID: plotID, Temperature: 20, Timestamp: time.Now()}
}

type recordingSink struct {
	mu       sync.Mutex
	readings []*models.SensorReading
	err      error
}

func (s *recordingSink) Append(ctx context.Context, reading *models.SensorReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.readings = append(s.readings, reading)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.readings)
}

type countingEvaluator struct {
	calls atomic.Int64
}

func (e *countingEvaluator) Evaluate(ctx context.Context, plotID string, reading *models.SensorReading) bool {
	e.calls.Add(1)
	return false
}

type stubAuthorizer struct {
	authorized atomic.Bool
	err        error
}

func (a *stubAuthorizer) IsAuthorized(ctx context.Context, actorID int64, plotID string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	return a.authorized.Load(), nil
}

type fixture struct {
	scheduler  *Scheduler
	generator  *countingGenerator
	sink       *recordingSink
	evaluator  *countingEvaluator
	authorizer *stubAuthorizer
}

func newFixture(t *testing.T, interval time.Duration) *fixture {
	f := &fixture{
		generator:  &countingGenerator{},
		sink:       &recordingSink{},
		evaluator:  &countingEvaluator{},
		authorizer: &stubAuthorizer{},
	}
	f.authorizer.authorized.Store(true)
	f.scheduler = New(f.generator, f.sink, f.evaluator, f.authorizer, zap.NewNop(), interval)
	t.Cleanup(f.scheduler.Close)
	return f
}

func TestStatus_UnseenPlotIsStopped(t *testing.T) {
	f := newFixture(t, time.Minute)

	assert.Equal(t, StateStopped, f.scheduler.Status("AGRO-1-1"))
}

func TestStart_Idempotent(t *testing.T) {
	f := newFixture(t, time.Minute)

	assert.False(t, f.scheduler.Start("AGRO-1-1", 5))
	assert.True(t, f.scheduler.Start("AGRO-1-1", 5))
	assert.Equal(t, StateRunning, f.scheduler.Status("AGRO-1-1"))
}

func TestStart_ConcurrentCallsSpawnOneWorker(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)

	var spawned atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !f.scheduler.Start("AGRO-1-1", 5) {
				spawned.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), spawned.Load())

	// With a single worker the generator runs at most once per cycle.
	time.Sleep(120 * time.Millisecond)
	f.scheduler.Stop("AGRO-1-1")
	assert.LessOrEqual(t, f.generator.calls.Load(), int64(4))
	assert.GreaterOrEqual(t, f.generator.calls.Load(), int64(1))
}

func TestWorker_GeneratesStoresEvaluates(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	f.scheduler.Start("AGRO-1-1", 5)

	require.Eventually(t, func() bool {
		return f.sink.count() >= 2
	}, time.Second, 5*time.Millisecond)

	f.scheduler.Stop("AGRO-1-1")

	assert.GreaterOrEqual(t, f.evaluator.calls.Load(), int64(2))
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, "AGRO-1-1", f.sink.readings[0].PlotID)
}

func TestStop_WorkerPerformsNoFurtherGeneration(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	f.scheduler.Start("AGRO-1-1", 5)
	require.Eventually(t, func() bool {
		return f.generator.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, f.scheduler.Stop("AGRO-1-1"))
	assert.Equal(t, StateStopped, f.scheduler.Status("AGRO-1-1"))

	// Give the worker time to observe the stop, then verify the count
	// froze.
	time.Sleep(60 * time.Millisecond)
	frozen := f.generator.calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, frozen, f.generator.calls.Load())
}

func TestStop_AlreadyStopped(t *testing.T) {
	f := newFixture(t, time.Minute)

	assert.True(t, f.scheduler.Stop("AGRO-1-1"))
}

func TestWorker_AuthorizationLossForcesStop(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	f.scheduler.Start("AGRO-1-1", 5)
	require.Eventually(t, func() bool {
		return f.generator.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)

	f.authorizer.authorized.Store(false)

	require.Eventually(t, func() bool {
		return f.scheduler.Status("AGRO-1-1") == StateStopped
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	frozen := f.generator.calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, frozen, f.generator.calls.Load())
}

func TestWorker_AuthorizationCheckErrorSkipsCycleOnly(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.authorizer.err = fmt.Errorf("db blip")

	f.scheduler.Start("AGRO-1-1", 5)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateRunning, f.scheduler.Status("AGRO-1-1"))
	assert.Equal(t, int64(0), f.generator.calls.Load())
	f.scheduler.Stop("AGRO-1-1")
}

func TestWorker_StoreFailureDoesNotStopLoop(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)
	f.sink.err = fmt.Errorf("insert failed")

	f.scheduler.Start("AGRO-1-1", 5)

	require.Eventually(t, func() bool {
		return f.generator.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, StateRunning, f.scheduler.Status("AGRO-1-1"))
	assert.Equal(t, int64(0), f.evaluator.calls.Load())
	f.scheduler.Stop("AGRO-1-1")
}

func TestRestart_AfterStopSpawnsFreshWorker(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	f.scheduler.Start("AGRO-1-1", 5)
	f.scheduler.Stop("AGRO-1-1")

	assert.False(t, f.scheduler.Start("AGRO-1-1", 5))
	assert.Equal(t, StateRunning, f.scheduler.Status("AGRO-1-1"))

	require.Eventually(t, func() bool {
		return f.generator.calls.Load() >= 1
	}, time.Second, 5*time.Millisecond)
	f.scheduler.Stop("AGRO-1-1")
}

func TestClose_StopsAllWorkers(t *testing.T) {
	f := newFixture(t, 20*time.Millisecond)

	f.scheduler.Start("AGRO-1-1", 5)
	f.scheduler.Start("AGRO-1-2", 5)

	done := make(chan struct{})
	go func() {
		f.scheduler.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
