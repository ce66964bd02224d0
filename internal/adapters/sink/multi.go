package sink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// Multi fans one batch out to several sinks. Every sink is attempted; a
// failure in any of them fails the batch so the WAL replays it, which
// requires the members to tolerate duplicates.
type Multi struct {
	sinks []ports.Sink
}

func NewMulti(sinks ...ports.Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

func (m *Multi) WriteBatch(reports []*domain.DiagnosisReport) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.WriteBatch(reports); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Len is the number of member sinks.
func (m *Multi) Len() int { return len(m.sinks) }

var _ ports.Sink = (*Multi)(nil)
