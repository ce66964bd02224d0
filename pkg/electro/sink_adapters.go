package electro

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("electro: channel sink closed")

// ReportBatchSink is invoked with the reports of each diagnosed batch, in
// queue order.
type ReportBatchSink func([]*Report) error

// NewCallbackSink adapts a ReportBatchSink into a full Sink implementation so callers
// can plug arbitrary functions without defining structs.
func NewCallbackSink(name string, fn ReportBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes batches via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan []*Report, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan []*Report, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   ReportBatchSink
}

func (s *callbackSink) WriteBatch(reports []*Report) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(reports) == 0 {
		return nil
	}
	return s.fn(copyBatch(reports))
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name   string
	ch     chan []*Report
	closed chan struct{}
	once   sync.Once
	// held while sending so close cannot close ch under a blocked writer
	mu sync.RWMutex
}

func (s *channelSink) WriteBatch(reports []*Report) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	if len(reports) == 0 {
		return nil
	}

	batch := copyBatch(reports)

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case s.ch <- batch:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// copyBatch detaches the slice handed out from the pipeline's own.
func copyBatch(reports []*Report) []*Report {
	out := make([]*Report, len(reports))
	copy(out, reports)
	return out
}
