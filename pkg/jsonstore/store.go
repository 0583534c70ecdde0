package jsonstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Entry is a single key-value pair in enumeration order.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Transform computes the next value for a key from its current value.
// present reports whether the key exists; current is nil when it does not.
// The function must be total over (value, absence) and must not call back
// into the Store, since it runs under the store lock.
type Transform func(current any, present bool) any

// Store is an in-memory JSON object mirrored to a single file.
//
// Write-through operations (Set, Update, Delete, DeleteAll) rewrite the
// whole backing file on every call. Local variants mutate memory only and
// defer the disk write to an explicit Persist. All methods are safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	path string
	opts Options

	keys []string
	data map[string]any

	sched  *Scheduler
	logger *slog.Logger
	closed bool
}

// New constructs a Store backed by the file at path.
//
// If no file exists, parent directories are created and an empty {}
// document is written; otherwise the file is loaded. When snapshots are
// enabled in the options, the snapshot scheduler is validated and started
// before New returns, and validation failures are fatal.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	o := buildOptions(opts)

	s := &Store{
		path:   path,
		opts:   o,
		data:   make(map[string]any),
		logger: o.Logger,
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("jsonstore: stat %s: %w", path, err)
		}
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("jsonstore: create directory %s: %w", dir, err)
			}
		}
		if err := s.Persist(); err != nil {
			return nil, err
		}
	} else {
		if err := s.Reload(); err != nil {
			return nil, err
		}
	}

	if o.Snapshots.Enabled {
		if o.Snapshots.Max < 0 {
			return nil, ErrInvalidRetention
		}
		var tracker *Tracker
		if o.Snapshots.Max > 0 {
			t, err := NewTracker(o.Snapshots.Dir, o.Snapshots.Max)
			if err != nil {
				return nil, err
			}
			tracker = t
		}
		sched, err := NewScheduler(s, o.Snapshots, tracker, s.logger)
		if err != nil {
			return nil, err
		}
		sched.Start()
		s.sched = sched
	}

	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Scheduler returns the snapshot scheduler, or nil when snapshots are
// disabled.
func (s *Store) Scheduler() *Scheduler { return s.sched }

// Get returns the value stored at key and whether the key is present.
// Containers are deep-copied so the caller cannot alias internal state.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Has reports whether key is present. Presence is distinct from value: a
// key explicitly set to nil still reads as present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Set stores value at key and persists the whole document.
// A value that cannot be serialized fails before the mapping is touched.
func (s *Store) Set(key string, value any) error {
	norm, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("jsonstore: set %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, norm)
	return s.persistLocked()
}

// SetLocal stores value at key in memory only. The caller is responsible
// for a later Persist; batching several local mutations into one disk
// write is the intended use.
func (s *Store) SetLocal(key string, value any) error {
	norm, err := normalizeValue(value)
	if err != nil {
		return fmt.Errorf("jsonstore: set %q: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, norm)
	return nil
}

// Update applies fn to the current value at key (or nil/absent) and
// persists the result.
func (s *Store) Update(key string, fn Transform) error {
	return s.update(key, fn, true)
}

// UpdateLocal applies fn like Update but mutates memory only.
func (s *Store) UpdateLocal(key string, fn Transform) error {
	return s.update(key, fn, false)
}

func (s *Store) update(key string, fn Transform, persist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	next := fn(cloneValue(cur), ok)
	norm, err := normalizeValue(next)
	if err != nil {
		return fmt.Errorf("jsonstore: update %q: %w", key, err)
	}
	s.setLocked(key, norm)
	if !persist {
		return nil
	}
	return s.persistLocked()
}

// Delete removes key and persists the document. Deleting an absent key
// still rewrites the file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(key)
	return s.persistLocked()
}

// DeleteLocal removes key from memory only.
func (s *Store) DeleteLocal(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(key)
}

// DeleteAll replaces the mapping with an empty one and persists.
func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	return s.persistLocked()
}

// DeleteAllLocal replaces the mapping with an empty one in memory only.
func (s *Store) DeleteAllLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Entries returns all key-value pairs in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, Entry{Key: k, Value: cloneValue(s.data[k])})
	}
	return out
}

// Keys returns all keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Values returns all values in key insertion order.
func (s *Store) Values() []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]any, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, cloneValue(s.data[k]))
	}
	return out
}

// Persist serializes the full document to the backing file, 4-space
// indented when configured. The file is rewritten in place with no atomic
// rename or partial-write protection; a crash mid-write can leave a
// truncated document.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

// Reload re-reads the backing file into memory, discarding unsaved local
// mutations. Fails with ErrDataShape when the file does not hold a JSON
// object.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("jsonstore: read %s: %w", s.path, err)
	}
	keys, data, err := decodeDocument(b)
	if err != nil {
		if errors.Is(err, ErrDataShape) {
			return fmt.Errorf("jsonstore: load %s: %w", s.path, ErrDataShape)
		}
		return fmt.Errorf("jsonstore: load %s: %w", s.path, err)
	}
	s.keys, s.data = keys, data
	return nil
}

// Close stops the snapshot scheduler, if one is running. The store itself
// stays usable; Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sched := s.sched
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	return nil
}

func (s *Store) setLocked(key string, v any) {
	if _, ok := s.data[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.data[key] = v
}

func (s *Store) deleteLocked(key string) {
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

func (s *Store) clearLocked() {
	s.keys = nil
	s.data = make(map[string]any)
}

func (s *Store) persistLocked() error {
	b, err := encodeDocument(s.keys, s.data, s.opts.Indented)
	if err != nil {
		return fmt.Errorf("jsonstore: encode %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", s.path, err)
	}
	return nil
}
