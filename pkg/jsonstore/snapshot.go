package jsonstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// timeNow is a hook for testing.
var timeNow = time.Now

// MakeSnapshot writes a timestamped full copy of the store's live
// in-memory data to targetDir, creating the directory as needed.
//
// The snapshot reflects the current memory state, not the backing file:
// pending local mutations are included. The generated filename
// (snapshot-<base>-<epochMillis>.json) is returned so callers can record
// it; the store itself is not mutated.
func (s *Store) MakeSnapshot(targetDir string, indented bool) (string, error) {
	if strings.TrimSpace(targetDir) == "" {
		return "", ErrInvalidSnapshotDir
	}
	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return "", fmt.Errorf("jsonstore: create snapshot directory %s: %w", targetDir, err)
	}

	s.mu.RLock()
	b, err := encodeDocument(s.keys, s.data, indented)
	s.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("jsonstore: encode snapshot of %s: %w", s.path, err)
	}

	name := snapshotName(filepath.Base(s.path), timeNow())
	if err := os.WriteFile(filepath.Join(targetDir, name), b, 0o644); err != nil {
		return "", fmt.Errorf("jsonstore: write snapshot %s: %w", name, err)
	}
	return name, nil
}

// snapshotName builds the snapshot filename from the store file's
// basename (extension stripped) and a millisecond timestamp.
func snapshotName(base string, t time.Time) string {
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("snapshot-%s-%d.json", base, t.UnixMilli())
}
