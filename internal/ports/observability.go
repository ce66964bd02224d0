package ports

import "github.com/giicoo/Dorsia-Electro/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	// ObserveReport exports the per-motor condition gauges of a report.
	ObserveReport(r *domain.DiagnosisReport)
	RecordDLQ(id WALEntryID, f *domain.Frame, err error)
}

type Field struct {
	Key   string
	Value any
}
