package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/giicoo/Dorsia-Electro/internal/domain"
	"github.com/giicoo/Dorsia-Electro/internal/ports"
)

func frame(motor string, seq uint64) *domain.Frame {
	return &domain.Frame{
		MotorID:    motor,
		Seq:        seq,
		CapturedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Waveform: domain.Waveform{
			R:          []float64{1, 2, 3},
			S:          []float64{4, 5, 6},
			T:          []float64{7, 8, 9},
			SampleRate: 25600,
		},
	}
}

func collect(t *testing.T, w *FileWAL, from ports.WALEntryID) []*domain.Frame {
	t.Helper()
	var out []*domain.Frame
	if err := w.Iterate(from, func(id ports.WALEntryID, f *domain.Frame) error {
		out = append(out, f)
		return nil
	}); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	return out
}

func TestFileWALAppendIterateAndReplay(t *testing.T) {
	dir := t.TempDir()

	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}

	id1, err := w.Append(frame("motor-1", 1))
	if err != nil || id1 == 0 {
		t.Fatalf("append frame 1: %v id=%d", err, id1)
	}
	id2, err := w.Append(frame("motor-2", 1))
	if err != nil || id2 == 0 {
		t.Fatalf("append frame 2: %v id=%d", err, id2)
	}

	frames := collect(t, w, 1)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[1].MotorID != "motor-2" || frames[0].Waveform.T[2] != 9 || frames[0].Waveform.SampleRate != 25600 {
		t.Fatalf("frame did not round-trip: %+v", frames[0])
	}
	if got := collect(t, w, id2); len(got) != 1 || got[0].MotorID != "motor-2" {
		t.Fatalf("expected iterate from id2 to yield motor-2 only, got %+v", got)
	}

	if err := w.Commit(id1); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close wal: %v", err)
	}
	if _, err := w.Append(frame("late", 1)); err != ErrClosed {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}

	// Reopen and ensure committed metadata was persisted.
	w2, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen wal: %v", err)
	}

	stats := w2.Stats()
	if stats.LatestAppended != id2 {
		t.Fatalf("expected latest appended %d, got %d", id2, stats.LatestAppended)
	}
	if stats.OldestUncommitted != id1+1 {
		t.Fatalf("expected oldest uncommitted %d, got %d", id1+1, stats.OldestUncommitted)
	}

	// A torn tail is cut off on the next open.
	if err := appendGarbage(filepath.Join(dir, "frames.wal")); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	if err := w2.Close(); err != nil {
		t.Fatalf("close wal2: %v", err)
	}

	w3, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("reopen after garbage: %v", err)
	}
	defer w3.Close()
	if got := w3.Stats(); got.SizeBytes != stats.SizeBytes || got.LatestAppended != id2 {
		t.Fatalf("expected garbage truncated, got %+v want size %d", got, stats.SizeBytes)
	}
	id3, err := w3.Append(frame("motor-3", 1))
	if err != nil || id3 != id2+1 {
		t.Fatalf("append after recovery: %v id=%d", err, id3)
	}
}

func TestFileWALTruncateCommitted(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWAL(dir)
	if err != nil {
		t.Fatalf("new wal: %v", err)
	}
	defer w.Close()

	var last ports.WALEntryID
	for i := uint64(1); i <= 4; i++ {
		if last, err = w.Append(frame("m", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	before := w.Stats().SizeBytes
	if err := w.Commit(2); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := w.TruncateCommitted(); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	stats := w.Stats()
	if stats.SizeBytes >= before || stats.LatestAppended != last {
		t.Fatalf("unexpected stats after compaction: %+v (before %d)", stats, before)
	}
	frames := collect(t, w, 0)
	if len(frames) != 2 || frames[0].Seq != 3 || frames[1].Seq != 4 {
		t.Fatalf("expected seq 3 and 4 to survive, got %+v", frames)
	}

	id, err := w.Append(frame("m", 5))
	if err != nil || id != last+1 {
		t.Fatalf("append after compaction: %v id=%d", err, id)
	}
	if got := collect(t, w, 0); len(got) != 3 {
		t.Fatalf("expected 3 frames after append, got %d", len(got))
	}
}

func appendGarbage(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte{0xFF, 0xAA})
	return err
}
