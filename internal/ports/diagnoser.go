package ports

import "github.com/giicoo/Dorsia-Electro/internal/domain"

// Diagnoser turns a complete frame into a report.
type Diagnoser interface {
	DiagnoseFrame(*domain.Frame) (*domain.DiagnosisReport, error)
	Version() string
}
