package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/adapters/queue"
	"github.com/giicoo/Dorsia-Electro/internal/adapters/wal"
	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

func TestWaitForWALCapacityBlockThenSucceed(t *testing.T) {
	w := &mockWAL{
		sizes: []int64{150, 50},
	}
	pol := ports.Policy{
		MaxWALSizeBytes: 100,
		OnWALFull:       "block",
		IdleSleep:       time.Millisecond,
	}
	obs := &mockObs{}

	if ok := WaitForWALCapacity(context.Background(), w, pol, obs); !ok {
		t.Fatalf("expected WaitForWALCapacity to eventually succeed")
	}
	if w.calls < 2 {
		t.Fatalf("expected multiple stats calls, got %d", w.calls)
	}
}

func TestWaitForWALCapacityDrop(t *testing.T) {
	w := &mockWAL{
		sizes: []int64{200, 200},
	}
	pol := ports.Policy{
		MaxWALSizeBytes: 100,
		OnWALFull:       "drop",
	}
	obs := &mockObs{}

	if ok := WaitForWALCapacity(context.Background(), w, pol, obs); ok {
		t.Fatalf("expected WaitForWALCapacity to drop and return false")
	}
	if len(obs.errors) == 0 {
		t.Fatalf("expected error to be logged")
	}
}

func TestWaitForWALCapacityStopsOnCancel(t *testing.T) {
	w := &mockWAL{sizes: []int64{200}}
	pol := ports.Policy{MaxWALSizeBytes: 100, OnWALFull: "block", IdleSleep: time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ok := WaitForWALCapacity(ctx, w, pol, &mockObs{}); ok {
		t.Fatalf("expected cancelled wait to give up")
	}
}

func TestEnqueueWithPolicyBlock(t *testing.T) {
	q := &mockQueue{}
	q.failures = 1

	pol := ports.Policy{
		OnQueueFull: "block",
		IdleSleep:   time.Millisecond,
	}
	obs := &mockObs{}

	if ok := EnqueueWithPolicy(context.Background(), q, 1, &domain.Frame{}, pol, obs); !ok {
		t.Fatalf("expected enqueue to eventually succeed")
	}
	if q.calls != 2 {
		t.Fatalf("expected two enqueue attempts, got %d", q.calls)
	}
}

func TestEnqueueWithPolicyDrop(t *testing.T) {
	q := &mockQueue{failAlways: true}
	pol := ports.Policy{
		OnQueueFull: "drop",
	}
	obs := &mockObs{}

	if ok := EnqueueWithPolicy(context.Background(), q, 1, &domain.Frame{}, pol, obs); ok {
		t.Fatalf("expected EnqueueWithPolicy to fail")
	}
	if len(obs.errors) == 0 {
		t.Fatalf("expected drop to log an error")
	}
}

func TestRunEdgePipelineWritesFramesToWALAndQueue(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	q := queue.NewMemQueue(4)
	asm, err := NewAssembler(3, 1000)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	col := &fakeCollector{}
	for i := 0; i < 7; i++ {
		v := float64(i)
		col.samples = append(col.samples, &domain.Sample{
			MotorID:  "m1",
			Currents: map[domain.Phase]float64{domain.PhaseR: v, domain.PhaseS: v, domain.PhaseT: v},
		})
	}
	obs := &mockObs{}

	ctx, cancel := context.WithCancel(context.Background())
	done, err := RunEdgePipeline(ctx, col, asm, w, q, ports.Policy{OnQueueFull: "drop", OnWALFull: "block"}, obs)
	if err != nil {
		t.Fatalf("run edge: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !col.stopped.Load() {
		t.Fatalf("collector not stopped on cancel")
	}
	batch := q.DequeueBatch(10)
	if len(batch) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(batch))
	}
	if batch[1].Frame.Seq != 2 || batch[1].Frame.Waveform.R[0] != 3 {
		t.Fatalf("unexpected second frame: %+v", batch[1].Frame)
	}
	if got := w.Stats().LatestAppended; got != batch[1].ID {
		t.Fatalf("expected WAL head %d, got %d", batch[1].ID, got)
	}
	if n := obs.counter(ports.MetricSamplesCollected); n != 7 {
		t.Fatalf("expected 7 samples counted, got %v", n)
	}
}

func TestRunEdgePipelineCountsDiscardedReadings(t *testing.T) {
	asm, err := NewAssembler(2, 1000)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	col := &fakeCollector{}
	for i := 0; i < 5; i++ {
		col.samples = append(col.samples, &domain.Sample{
			MotorID:  "m1",
			Currents: map[domain.Phase]float64{domain.PhaseR: float64(i)},
		})
	}
	obs := &mockObs{}

	ctx, cancel := context.WithCancel(context.Background())
	done, err := RunEdgePipeline(ctx, col, asm, nil, nil, ports.Policy{}, obs)
	if err != nil {
		t.Fatalf("run edge: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for obs.counter(ports.MetricSamplesCollected) < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	// Five R readings against a frame of two: the fifth trims R to two values.
	if n := obs.counter(ports.MetricSamplesDiscarded); n != 3 {
		t.Fatalf("expected 3 discarded readings, got %v", n)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.errors) != 1 {
		t.Fatalf("expected one skew error logged, got %v", obs.errors)
	}
}

func TestRunEdgePipelineStartError(t *testing.T) {
	col := &fakeCollector{startErr: errors.New("boom")}
	if _, err := RunEdgePipeline(context.Background(), col, nil, nil, nil, ports.Policy{}, &mockObs{}); err == nil {
		t.Fatalf("expected start error")
	}
}

type fakeCollector struct {
	samples  []*domain.Sample
	startErr error
	stopped  atomic.Bool
}

func (c *fakeCollector) Start(out chan<- *domain.Sample) error {
	if c.startErr != nil {
		return c.startErr
	}
	go func() {
		for _, s := range c.samples {
			out <- s
		}
	}()
	return nil
}

func (c *fakeCollector) Stop() error {
	c.stopped.Store(true)
	return nil
}

type mockWAL struct {
	ports.WAL
	sizes []int64
	calls int
}

func (m *mockWAL) Stats() ports.WALStats {
	idx := m.calls
	if idx >= len(m.sizes) {
		idx = len(m.sizes) - 1
	}
	m.calls++
	return ports.WALStats{
		SizeBytes: m.sizes[idx],
	}
}

type mockQueue struct {
	failures   int32
	failAlways bool
	calls      int
}

func (m *mockQueue) Enqueue(id ports.WALEntryID, f *domain.Frame) bool {
	m.calls++
	if m.failAlways {
		return false
	}
	if atomic.LoadInt32(&m.failures) > 0 {
		atomic.AddInt32(&m.failures, -1)
		return false
	}
	return true
}

func (m *mockQueue) DequeueBatch(int) []ports.QueuedFrame { return nil }
func (m *mockQueue) Len() int                             { return 0 }

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	dlq      []ports.WALEntryID
	reports  []*domain.DiagnosisReport
	counters map[string]float64
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]float64)
	}
	m.counters[name] += v
}
func (m *mockObs) ObserveLatency(string, float64) {}
func (m *mockObs) SetGauge(string, float64)       {}
func (m *mockObs) ObserveReport(r *domain.DiagnosisReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
}
func (m *mockObs) RecordDLQ(id ports.WALEntryID, _ *domain.Frame, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, id)
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func TestPersistFrameQueueFullKeepsWALEntry(t *testing.T) {
	w, err := wal.NewFileWAL(t.TempDir())
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()
	obs := &mockObs{}

	err = PersistFrame(context.Background(), &domain.Frame{MotorID: "m"}, w, &mockQueue{failAlways: true}, ports.Policy{OnQueueFull: "reject"}, obs)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if w.Stats().LatestAppended != 1 {
		t.Fatalf("expected frame to stay in the WAL")
	}
	if obs.counter(ports.MetricFramesDropped) != 1 {
		t.Fatalf("expected dropped frame counted")
	}
}
