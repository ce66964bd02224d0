package ports

import "github.com/giicoo/Dorsia-Electro/internal/domain"

// Collector streams phase-current readings into the edge pipeline.
type Collector interface {
	Start(out chan<- *domain.Sample) error
	Stop() error
}
