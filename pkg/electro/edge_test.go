package electro

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewEdgeRuntimeWithCustomAdapters(t *testing.T) {
	cfg := testConfig(t.TempDir())

	queueStub := &stubQueue{}
	collectorStub := &stubCollector{}
	sinkStub := &stubSink{}
	diagnoserStub := &stubDiagnoser{}
	walStub := &stubWAL{}
	obsStub := &stubObservability{}

	rt, err := NewEdgeRuntime(
		cfg,
		WithCollector(collectorStub),
		WithSink(sinkStub),
		WithDiagnoser(diagnoserStub),
		WithWAL(walStub),
		WithFrameQueue(queueStub),
		WithObservability(obsStub),
		WithLogger(zaptest.NewLogger(t)),
	)
	if err != nil {
		t.Fatalf("NewEdgeRuntime returned error: %v", err)
	}

	if rt.collector != collectorStub {
		t.Fatalf("expected custom collector to be used")
	}
	if rt.sink != sinkStub {
		t.Fatalf("expected custom sink to be used")
	}
	if rt.diagnoser != diagnoserStub {
		t.Fatalf("expected custom diagnoser to be used")
	}
	if rt.wal != walStub {
		t.Fatalf("expected custom WAL to be used")
	}
	if rt.queue != queueStub {
		t.Fatalf("expected custom queue to be used")
	}
	if rt.obs != obsStub {
		t.Fatalf("expected custom observability to be used")
	}
	if rt.db != nil {
		t.Fatalf("expected db to be nil when custom sink is provided")
	}
	require.NoError(t, rt.Shutdown(context.Background()))
}

func TestNewEdgeRuntimeRequiresCollectorAndSink(t *testing.T) {
	cfg := testConfig(t.TempDir())

	_, err := NewEdgeRuntime(cfg, WithSink(&stubSink{}), WithLogger(zaptest.NewLogger(t)))
	require.ErrorContains(t, err, "no collector configured")

	_, err = NewEdgeRuntime(cfg, WithCollector(&stubCollector{}), WithLogger(zaptest.NewLogger(t)))
	require.ErrorContains(t, err, "no report sink configured")

	_, err = NewEdgeRuntime(nil)
	require.Error(t, err)
}

func TestEdgeRuntimeDiagnosesCollectedFrames(t *testing.T) {
	cfg := testConfig(t.TempDir())
	sink, reports, closeSink := NewChannelSink("test", 4)
	defer closeSink()

	rt, err := NewEdgeRuntime(cfg,
		WithCollector(newWaveCollector("pump-1", synthetic(cfg.Analysis.FrameSize))),
		WithSink(sink),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	require.NoError(t, rt.Start())

	select {
	case batch := <-reports:
		require.Len(t, batch, 1)
		r := batch[0]
		require.Equal(t, "pump-1", r.MotorID)
		require.Equal(t, uint64(1), r.Seq)
		require.Equal(t, cfg.Analysis.FrameSize, r.Samples)
		require.InDelta(t, 10/1.4142135623730951, r.PhaseRMS.R, 0.05)
		require.Less(t, r.PhaseAsymmetry, 0.01)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for report")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.Shutdown(ctx))

	// the committed frame is not replayed
	require.Equal(t, rt.wal.Stats().LatestAppended+1, rt.wal.Stats().OldestUncommitted)
}

func TestEdgeRuntimeReplaysUncommittedFrames(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	failing := NewCallbackSink("down", func([]*Report) error { return errors.New("sink down") })
	rt, err := NewEdgeRuntime(cfg,
		WithCollector(newWaveCollector("pump-2", synthetic(cfg.Analysis.FrameSize))),
		WithSink(failing),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	require.NoError(t, rt.Start())
	require.Eventually(t, func() bool {
		return rt.wal.Stats().LatestAppended == 1
	}, 30*time.Second, 10*time.Millisecond)
	require.NoError(t, rt.Shutdown(context.Background()))

	sink, reports, closeSink := NewChannelSink("up", 1)
	defer closeSink()
	rt, err = NewEdgeRuntime(cfg,
		WithCollector(&stubCollector{}),
		WithSink(sink),
		WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	require.NoError(t, rt.Start())
	defer func() { _ = rt.Shutdown(context.Background()) }()

	select {
	case batch := <-reports:
		require.Len(t, batch, 1)
		require.Equal(t, "pump-2", batch[0].MotorID)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for replayed report")
	}
}
