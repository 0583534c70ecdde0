package jsonstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// TrackingFileName is the name of the retention bookkeeping file inside
// the snapshot directory.
const TrackingFileName = "snapshot-tracking.json"

const (
	trackingKey  = "snapshots"
	trackingNote = "Maintained by jsonkeep. Lists snapshot files in creation order; the oldest entry is evicted once the retention cap is exceeded."
)

// Tracker enforces a fixed-capacity FIFO retention policy over snapshot
// filenames.
//
// Bookkeeping lives in an auxiliary Store at
// <dir>/snapshot-tracking.json, holding a note string and the ordered
// snapshots list. The list is advisory, not authoritative: snapshot files
// removed out of band desynchronize it, and eviction of an already-missing
// file is a silent no-op.
type Tracker struct {
	dir   string
	max   int
	store *Store
}

// NewTracker opens (or seeds) the tracking store in dir with the given
// retention cap.
func NewTracker(dir string, max int) (*Tracker, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, ErrInvalidSnapshotDir
	}
	if max <= 0 {
		return nil, ErrInvalidRetention
	}

	st, err := New(filepath.Join(dir, TrackingFileName))
	if err != nil {
		return nil, err
	}
	if !st.Has(trackingKey) {
		if err := st.SetLocal("note", trackingNote); err != nil {
			return nil, err
		}
		if err := st.SetLocal(trackingKey, []any{}); err != nil {
			return nil, err
		}
		if err := st.Persist(); err != nil {
			return nil, err
		}
	}

	return &Tracker{dir: dir, max: max, store: st}, nil
}

// Record appends name to the tracked list, evicts the oldest entries while
// the list exceeds the cap (deleting their files), and persists the list.
func (t *Tracker) Record(name string) error {
	if err := t.store.UpdateLocal(trackingKey, func(current any, _ bool) any {
		list, _ := current.([]any)
		return append(list, name)
	}); err != nil {
		return err
	}

	for {
		v, _ := t.store.Get(trackingKey)
		list, _ := v.([]any)
		if len(list) <= t.max {
			break
		}
		oldest, _ := list[0].(string)
		if err := t.store.SetLocal(trackingKey, list[1:]); err != nil {
			return err
		}
		if oldest == "" {
			continue
		}
		if err := os.Remove(filepath.Join(t.dir, oldest)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("jsonstore: evict snapshot %s: %w", oldest, err)
		}
	}

	return t.store.Persist()
}

// List returns the tracked snapshot filenames, oldest first.
func (t *Tracker) List() []string {
	v, _ := t.store.Get(trackingKey)
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Max returns the retention cap.
func (t *Tracker) Max() int { return t.max }

// Dir returns the snapshot directory.
func (t *Tracker) Dir() string { return t.dir }
