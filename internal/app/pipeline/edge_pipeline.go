package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// RunEdgePipeline starts the collector and, until ctx is cancelled, turns its
// samples into frames that are appended to the WAL and queued for diagnosis.
// The returned channel is closed after the collector has been stopped.
func RunEdgePipeline(ctx context.Context, col ports.Collector, asm *Assembler, wal ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) (<-chan struct{}, error) {
	ch := make(chan *domain.Sample, 1024)

	if err := col.Start(ch); err != nil {
		return nil, err
	}
	asm.OnOverflow(func(motorID string, phase domain.Phase, dropped int) {
		obs.IncCounter(ports.MetricSamplesDiscarded, float64(dropped))
		obs.LogError("phase_skew_overflow", fmt.Errorf("phase %s ran ahead of its partners, %d values discarded", phase, dropped),
			ports.Field{Key: "motor", Value: motorID})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if err := col.Stop(); err != nil {
				obs.LogError("collector_stop_failed", err)
			}
		}()

		for {
			var (
				s  *domain.Sample
				ok bool
			)
			select {
			case <-ctx.Done():
				return
			case s, ok = <-ch:
				if !ok {
					return
				}
			}
			obs.IncCounter(ports.MetricSamplesCollected, 1)

			f := asm.Add(s)
			if f == nil {
				continue
			}
			obs.IncCounter(ports.MetricFramesAssembled, 1)
			_ = PersistFrame(ctx, f, wal, q, pol, obs)
		}
	}()

	return done, nil
}

// Persist errors.
var (
	ErrWALFull   = errors.New("wal full")
	ErrQueueFull = errors.New("queue full")
)

// PersistFrame appends f to the WAL and queues it, honouring the full-WAL and
// full-queue policies. A frame rejected by the queue stays in the WAL and is
// replayed on the next start.
func PersistFrame(ctx context.Context, f *domain.Frame, wal ports.WAL, q ports.FrameQueue, pol ports.Policy, obs ports.Observability) error {
	if !WaitForWALCapacity(ctx, wal, pol, obs) {
		obs.IncCounter(ports.MetricFramesDropped, 1)
		return ErrWALFull
	}

	id, err := wal.Append(f)
	if err != nil {
		obs.LogCritical("wal_append_failed", err, ports.Field{Key: "motor", Value: f.MotorID})
		obs.IncCounter(ports.MetricFramesDropped, 1)
		return err
	}
	obs.SetGauge(ports.MetricWALSizeBytes, float64(wal.Stats().SizeBytes))

	if !EnqueueWithPolicy(ctx, q, id, f, pol, obs) {
		obs.IncCounter(ports.MetricFramesDropped, 1)
		return ErrQueueFull
	}
	obs.SetGauge(ports.MetricQueueLength, float64(q.Len()))
	return nil
}

func idleSleep(pol ports.Policy) time.Duration {
	if pol.IdleSleep <= 0 {
		return 5 * time.Millisecond
	}
	return pol.IdleSleep
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func WaitForWALCapacity(ctx context.Context, wal ports.WAL, pol ports.Policy, obs ports.Observability) bool {
	if pol.MaxWALSizeBytes <= 0 {
		return true
	}
	sleep := idleSleep(pol)

	for {
		stats := wal.Stats()
		if stats.SizeBytes < pol.MaxWALSizeBytes {
			return true
		}

		switch pol.OnWALFull {
		case "block":
			if !sleepCtx(ctx, sleep) {
				return false
			}
		case "drop":
			obs.LogError("wal_full_drop", fmt.Errorf("size=%d limit=%d", stats.SizeBytes, pol.MaxWALSizeBytes))
			return false
		default:
			obs.LogError("wal_policy_invalid", fmt.Errorf("policy=%s", pol.OnWALFull))
			return false
		}
	}
}

func EnqueueWithPolicy(ctx context.Context, q ports.FrameQueue, id ports.WALEntryID, f *domain.Frame, pol ports.Policy, obs ports.Observability) bool {
	sleep := idleSleep(pol)

	for {
		if ok := q.Enqueue(id, f); ok {
			return true
		}

		switch pol.OnQueueFull {
		case "block":
			if !sleepCtx(ctx, sleep) {
				return false
			}
		case "drop", "reject":
			obs.LogError("queue_full_drop", fmt.Errorf("queue length exceeded capacity %d", pol.MaxQueueLen),
				ports.Field{Key: "motor", Value: f.MotorID}, ports.Field{Key: "seq", Value: f.Seq})
			return false
		default:
			obs.LogError("queue_policy_invalid", fmt.Errorf("policy=%s", pol.OnQueueFull))
			return false
		}
	}
}
