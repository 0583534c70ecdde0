package jsonstore

import (
	"path/filepath"
	"sort"
	"sync"
)

// Registry is an explicit path-keyed identity cache for Store instances.
//
// Open returns the shared instance for an already-open path, so every call
// site using the same path observes one in-memory mapping. Paths are
// cleaned (not resolved to absolute) before keying, matching the raw-path
// sharing of the original behavior while tolerating "./x" vs "x".
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// Open returns the shared Store for path, constructing and registering one
// on first use. With WithForceNew the registry is bypassed entirely: a
// fresh, unregistered instance is returned and any shared instance stays
// untouched.
func (r *Registry) Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if buildOptions(opts).ForceNew {
		return New(path, opts...)
	}

	key := filepath.Clean(path)

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.stores[key]; ok {
		return st, nil
	}
	st, err := New(path, opts...)
	if err != nil {
		return nil, err
	}
	r.stores[key] = st
	return st, nil
}

// Get returns the registered Store for path, if any.
func (r *Registry) Get(path string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stores[filepath.Clean(path)]
	return st, ok
}

// Paths returns the registered paths, sorted.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.stores))
	for p := range r.stores {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Close closes and deregisters the store for path. Unknown paths are a
// no-op.
func (r *Registry) Close(path string) error {
	key := filepath.Clean(path)
	r.mu.Lock()
	st, ok := r.stores[key]
	delete(r.stores, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return st.Close()
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

// CloseAll closes every registered store, stopping their schedulers, and
// empties the registry. The first error is returned; all stores are still
// closed.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	stores := make([]*Store, 0, len(r.stores))
	for _, st := range r.stores {
		stores = append(stores, st)
	}
	r.stores = make(map[string]*Store)
	r.mu.Unlock()

	var firstErr error
	for _, st := range stores {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
