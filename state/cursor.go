// Package state persists the extraction cursor: the highest order id
// successfully processed by a completed run.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// StateWriteError reports a failed cursor write. The caller must treat
// the run's progress as not committed.
type StateWriteError struct {
	Path string
	Err  error
}

func (e *StateWriteError) Error() string {
	return fmt.Sprintf("state write %s: %v", e.Path, e.Err)
}

func (e *StateWriteError) Unwrap() error {
	return e.Err
}

type cursorFile struct {
	LastOrderID int    `json:"last_order_id"`
	UpdatedAt   string `json:"updated_at"`
}

// CursorStore reads and writes the cursor file. It assumes at most one
// writer at a time; overlapping runs risk a lost update on the file.
type CursorStore struct {
	path string
}

// NewCursorStore returns a store backed by the file at path.
func NewCursorStore(path string) *CursorStore {
	return &CursorStore{path: path}
}

// Read returns the persisted cursor. A missing, empty, or corrupt file
// degrades to "no cursor" so a damaged state file means "start over"
// instead of a crash.
func (s *CursorStore) Read() (int, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cursor file unreadable, starting fresh",
				slog.String("path", s.path), slog.Any("error", err))
		}
		return 0, false
	}

	var cursor cursorFile
	if err := json.Unmarshal(data, &cursor); err != nil {
		slog.Warn("cursor file corrupt, starting fresh",
			slog.String("path", s.path), slog.Any("error", err))
		return 0, false
	}
	if cursor.LastOrderID <= 0 {
		return 0, false
	}
	return cursor.LastOrderID, true
}

// Write durably persists id. The value is written to a temp file,
// synced, and renamed into place so a crash mid-write never leaves a
// truncated cursor behind.
func (s *CursorStore) Write(id int) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &StateWriteError{Path: s.path, Err: err}
	}

	payload, err := json.MarshalIndent(cursorFile{
		LastOrderID: id,
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return &StateWriteError{Path: s.path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &StateWriteError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StateWriteError{Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &StateWriteError{Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &StateWriteError{Path: s.path, Err: err}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &StateWriteError{Path: s.path, Err: err}
	}

	slog.Info("cursor saved", slog.Int("last_order_id", id), slog.String("path", s.path))
	return nil
}
