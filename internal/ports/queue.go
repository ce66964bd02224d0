package ports

import "github.com/giicoo/Dorsia-Electro/internal/domain"

type QueuedFrame struct {
	ID    WALEntryID
	Frame *domain.Frame
}

// FrameQueue is the bounded hand-off between the edge and ingest loops.
type FrameQueue interface {
	Enqueue(id WALEntryID, f *domain.Frame) bool
	DequeueBatch(max int) []QueuedFrame
	Len() int
}
