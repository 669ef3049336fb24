package state

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadMissingFile(t *testing.T) {
	store := NewCursorStore(filepath.Join(t.TempDir(), "cursor.json"))
	if id, ok := store.Read(); ok || id != 0 {
		t.Fatalf("missing file should read as no cursor, got id=%d ok=%v", id, ok)
	}
}

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cursor.json")
	store := NewCursorStore(path)

	if err := store.Write(1308); err != nil {
		t.Fatalf("write: %v", err)
	}
	id, ok := store.Read()
	if !ok || id != 1308 {
		t.Fatalf("read = (%d, %v), want (1308, true)", id, ok)
	}

	// Overwrite with a larger id.
	if err := store.Write(1310); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if id, _ := store.Read(); id != 1310 {
		t.Fatalf("read after rewrite = %d, want 1310", id)
	}
}

func TestReadCorruptFileDegradesToFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	if id, ok := NewCursorStore(path).Read(); ok || id != 0 {
		t.Fatalf("corrupt file should read as no cursor, got id=%d ok=%v", id, ok)
	}
}

func TestReadNonPositiveCursor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.json")
	if err := os.WriteFile(path, []byte(`{"last_order_id": 0}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, ok := NewCursorStore(path).Read(); ok {
		t.Fatalf("zero cursor should read as no cursor")
	}
}

// A crash between temp-file write and rename must leave the previous
// value intact. Simulated by dropping a half-written temp file next to a
// valid cursor.
func TestCrashMidWriteKeepsPreviousValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor.json")
	store := NewCursorStore(path)

	if err := store.Write(103); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cursor.json.tmp-crash"), []byte(`{"last_or`), 0o644); err != nil {
		t.Fatalf("seed temp file: %v", err)
	}

	id, ok := store.Read()
	if !ok || id != 103 {
		t.Fatalf("read = (%d, %v), want (103, true)", id, ok)
	}
}

func TestWriteFailureSurfacesStateWriteError(t *testing.T) {
	dir := t.TempDir()
	// The cursor path points into a file, not a directory, so MkdirAll
	// and CreateTemp cannot succeed.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed blocker: %v", err)
	}
	store := NewCursorStore(filepath.Join(blocker, "cursor.json"))

	err := store.Write(42)
	var writeErr *StateWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected StateWriteError, got %v", err)
	}
	if !strings.Contains(writeErr.Error(), "cursor.json") {
		t.Fatalf("error should name the path, got %q", writeErr.Error())
	}
}
