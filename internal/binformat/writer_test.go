package binformat

import (
	"testing"

	"github.com/banshee-data/proteusgo/internal/fsutil"
)

// TestNewWriterUsesMemoryFileSystem confirms Writer.Append/Close never
// touch an *os.File directly: swapping in a MemoryFileSystem is enough
// to drive a full append/flush/close cycle without touching disk.
func TestNewWriterUsesMemoryFileSystem(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	prev := fs
	fs = mfs
	t.Cleanup(func() { fs = prev })

	sensorIDs := []int32{0, 1}
	w, err := NewWriter("/events.ptbin", sensorIDs)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if err := w.Append(buildSampleEvent()); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !mfs.Exists("/events.ptbin") {
		t.Fatal("expected /events.ptbin to exist in the memory filesystem")
	}
}
