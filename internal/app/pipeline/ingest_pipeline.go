package pipeline

import (
	"context"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// readySignaler is implemented by queues that can wake an idle consumer.
type readySignaler interface {
	Ready() <-chan struct{}
}

// RunIngestPipeline diagnoses queued frames in batches until ctx is
// cancelled. Reports go to the sink; the WAL is committed only after a
// successful write so a failing sink leaves the frames for replay.
func RunIngestPipeline(ctx context.Context, wal ports.WAL, q ports.FrameQueue, d ports.Diagnoser, sink ports.Sink, pol ports.Policy, obs ports.Observability) {
	var ready <-chan struct{}
	if rs, ok := q.(readySignaler); ok {
		ready = rs.Ready()
	}

	for {
		if ctx.Err() != nil {
			return
		}
		batch := q.DequeueBatch(pol.MaxBatchSize)
		if len(batch) == 0 {
			t := time.NewTimer(idleSleep(pol))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-ready:
			case <-t.C:
			}
			t.Stop()
			continue
		}
		obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
		ProcessBatch(batch, wal, d, sink, obs)
	}
}

// ProcessBatch diagnoses one batch, writes the reports and commits the WAL.
// It reports whether the batch was committed.
func ProcessBatch(batch []ports.QueuedFrame, wal ports.WAL, d ports.Diagnoser, sink ports.Sink, obs ports.Observability) bool {
	var (
		out   = make([]*domain.DiagnosisReport, 0, len(batch))
		maxID ports.WALEntryID
	)

	for _, item := range batch {
		if item.ID > maxID {
			maxID = item.ID
		}
		start := time.Now()
		r, err := d.DiagnoseFrame(item.Frame)
		if err != nil {
			obs.RecordDLQ(item.ID, item.Frame, err)
			continue
		}
		obs.ObserveLatency(ports.MetricDiagnosisLatency, time.Since(start).Seconds())
		obs.ObserveReport(r)
		out = append(out, r)
	}

	if len(out) > 0 {
		start := time.Now()
		if err := sink.WriteBatch(out); err != nil {
			obs.LogError("sink_write_failed", err, ports.Field{Key: "sink", Value: sink.Name()})
			// keep WAL; replays later
			return false
		}
		obs.ObserveLatency(ports.MetricSinkLatency, time.Since(start).Seconds())
		obs.IncCounter(ports.MetricFramesDiagnosed, float64(len(out)))
	}

	if err := wal.Commit(maxID); err != nil {
		obs.LogError("wal_commit_failed", err)
		return false
	}
	obs.SetGauge(ports.MetricWALSizeBytes, float64(wal.Stats().SizeBytes))
	return true
}
