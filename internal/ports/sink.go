package ports

import "github.com/giicoo/Dorsia-Electro/internal/domain"

// Sink persists or forwards diagnosis reports.
type Sink interface {
	WriteBatch(reports []*domain.DiagnosisReport) error
	Name() string
}
