package ports

import "github.com/giicoo/Dorsia-Electro/internal/domain"

type WALEntryID uint64

type WAL interface {
	Append(f *domain.Frame) (WALEntryID, error)
	Iterate(from WALEntryID, fn func(id WALEntryID, f *domain.Frame) error) error
	Commit(upto WALEntryID) error
	TruncateCommitted() error
	Stats() WALStats
}

type WALStats struct {
	OldestUncommitted WALEntryID
	LatestAppended    WALEntryID
	SizeBytes         int64
}
