package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

// snapshot holds the runtime counters and the worst per-motor condition level.
type snapshot struct {
	At         time.Time
	Diagnosed  float64
	Dropped    float64
	DLQ        float64
	Queue      float64
	WALBytes   float64
	WorstLevel map[string]float64
}

func (s snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] diagnosed=%.0f dropped=%.0f dlq=%.0f queue=%.0f wal_bytes=%.0f",
		s.At.Format(time.RFC3339), s.Diagnosed, s.Dropped, s.DLQ, s.Queue, s.WALBytes)

	motors := make([]string, 0, len(s.WorstLevel))
	for m := range s.WorstLevel {
		motors = append(motors, m)
	}
	sort.Strings(motors)
	for _, m := range motors {
		fmt.Fprintf(&b, " %s=%s", m, levelName(s.WorstLevel[m]))
	}
	return b.String()
}

func levelName(v float64) string {
	for _, c := range []domain.Condition{domain.ConditionNormal, domain.ConditionEarly, domain.ConditionAdvanced, domain.ConditionCritical} {
		if c.Level() == int(v) {
			return string(c)
		}
	}
	return "unknown"
}

func fetchSnapshot(ctx context.Context, url string) (snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snapshot{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return snapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snapshot{}, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return parseSnapshot(resp.Body, time.Now())
}

// parseSnapshot reads the Prometheus text exposition format.
func parseSnapshot(r io.Reader, at time.Time) (snapshot, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	families, err := parser.TextToMetricFamilies(r)
	if err != nil {
		return snapshot{}, err
	}

	sum := func(name string) float64 {
		mf, ok := families[name]
		if !ok {
			return 0
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
		return total
	}

	s := snapshot{
		At:         at,
		Diagnosed:  sum(ports.MetricFramesDiagnosed),
		Dropped:    sum(ports.MetricFramesDropped),
		DLQ:        sum(ports.MetricDLQ),
		Queue:      sum(ports.MetricQueueLength),
		WALBytes:   sum(ports.MetricWALSizeBytes),
		WorstLevel: map[string]float64{},
	}
	if mf, ok := families[ports.MetricConditionLevel]; ok {
		for _, m := range mf.GetMetric() {
			motor := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "motor" {
					motor = lp.GetValue()
				}
			}
			if v := m.GetGauge().GetValue(); v >= s.WorstLevel[motor] {
				s.WorstLevel[motor] = v
			}
		}
	}
	return s, nil
}
