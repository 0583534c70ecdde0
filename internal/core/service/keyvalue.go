package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
	"github.com/yndnr/jsonkeep-go/internal/telemetry/metric"
	"github.com/yndnr/jsonkeep-go/pkg/cmap"
	"github.com/yndnr/jsonkeep-go/pkg/jsonstore"
)

// catalogStoreName is the reserved name under which the catalog file
// itself would collide. Attaching a store with this name is rejected.
const catalogStoreName = "catalog"

// attachedStore pairs a store descriptor with its live instance.
type attachedStore struct {
	info  *domain.StoreInfo
	store *jsonstore.Store
}

// storeCounters accumulates per-store operation counts.
type storeCounters struct {
	reads     atomic.Uint64
	writes    atomic.Uint64
	deletes   atomic.Uint64
	snapshots atomic.Uint64
}

// StoreServiceConfig configures a StoreService.
//
// @design DS-0103
type StoreServiceConfig struct {
	// Registry shares store instances across the process. A private
	// registry is created when nil.
	Registry *jsonstore.Registry

	// CatalogPath is the file that persists attached-store descriptors
	// across restarts. Leaving it empty keeps attachments in memory only.
	CatalogPath string

	// Logger for service diagnostics. Defaults to logger.Default().
	Logger logger.Logger

	// Metrics receives the attached-store gauge and per-store operation
	// counters. Optional; counting is skipped when nil.
	Metrics *metric.Registry
}

// StoreService manages named stores and their key-value data.
//
// Every store is backed by one JSON file. Attaching registers the file
// under a name, and all data operations address stores by that name.
//
// @req RQ-0102
// @design DS-0103
type StoreService struct {
	registry *jsonstore.Registry
	catalog  *jsonstore.Store
	log      logger.Logger
	metrics  *metric.Registry

	mu     sync.RWMutex
	stores map[string]*attachedStore

	counters *cmap.Map[string, *storeCounters]
}

// NewStoreService creates a StoreService and, when a catalog path is
// configured, re-attaches every store recorded in the catalog.
//
// @design DS-0103
func NewStoreService(cfg *StoreServiceConfig) (*StoreService, error) {
	if cfg == nil {
		cfg = &StoreServiceConfig{}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = jsonstore.NewRegistry()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	s := &StoreService{
		registry: registry,
		log:      log,
		metrics:  cfg.Metrics,
		stores:   make(map[string]*attachedStore),
		counters: cmap.New[string, *storeCounters](),
	}

	if cfg.CatalogPath != "" {
		// The catalog is a store of its own, opened outside the shared
		// registry so it never shows up next to user data.
		catalog, err := jsonstore.New(cfg.CatalogPath)
		if err != nil {
			return nil, domain.ErrStorageError.WithDetails("open store catalog").WithCause(err)
		}
		s.catalog = catalog
		s.restoreFromCatalog()
	}

	return s, nil
}

// restoreFromCatalog re-attaches every store the catalog recorded. A
// descriptor that no longer opens is skipped with a warning so one bad
// entry cannot keep the service from starting.
func (s *StoreService) restoreFromCatalog() {
	for _, entry := range s.catalog.Entries() {
		info, err := storeInfoFromCatalogValue(entry.Value)
		if err != nil {
			s.log.Warn("skipping malformed catalog entry", "store", entry.Key, "error", err)
			continue
		}
		if _, err := s.attach(info, false); err != nil {
			s.log.Warn("failed to re-attach store from catalog", "store", info.Name, "path", info.Path, "error", err)
			continue
		}
		s.log.Info("re-attached store from catalog", "store", info.Name, "path", info.Path)
	}
}

// storeInfoFromCatalogValue decodes a catalog value back into a store
// descriptor. Catalog values are plain JSON objects, so the round trip
// goes through encoding/json.
func storeInfoFromCatalogValue(v any) (*domain.StoreInfo, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var info domain.StoreInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, err
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	return &info, nil
}

// ============================================================================
// Store Attach / Detach Operations
// ============================================================================

// AttachStoreRequest contains parameters for attaching a store.
//
// @design DS-0103
type AttachStoreRequest struct {
	Name       string                // Required, normalized to lowercase
	Path       string                // Required, backing JSON file
	Indented   bool                  // Pretty-print the backing file
	Snapshots  domain.SnapshotPolicy // Optional periodic snapshot policy
	AttachedBy string                // API Key ID that attached this store
}

// AttachStoreResponse contains the result of attaching a store.
//
// @design DS-0103
type AttachStoreResponse struct {
	Store *domain.StoreInfo
}

// Attach opens the backing file (creating it when missing) and registers
// the store under its name.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Attach(ctx context.Context, req *AttachStoreRequest) (*AttachStoreResponse, error) {
	// 1. Validate required fields
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.ErrMissingArgument.WithDetails("name is required")
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, domain.ErrMissingArgument.WithDetails("path is required")
	}

	// 2. Build and validate the descriptor; an invalid name reaches
	// Validate in lowered form so the violation names the pattern
	info := domain.NewStoreInfo(strings.ToLower(strings.TrimSpace(req.Name)), req.Path)
	info.Indented = req.Indented
	info.Snapshots = req.Snapshots
	info.AttachedBy = req.AttachedBy
	if err := info.Validate(); err != nil {
		return nil, err
	}
	if info.Name == catalogStoreName {
		return nil, domain.ErrStoreNameInvalid.WithDetails("name is reserved: catalog")
	}

	// 3. Attach and persist the descriptor
	attached, err := s.attach(info, true)
	if err != nil {
		return nil, err
	}

	s.log.Info("store attached", "store", attached.Name, "path", attached.Path, "snapshots", attached.Snapshots.Enabled)
	return &AttachStoreResponse{Store: attached}, nil
}

// attach opens the store and inserts it into the live set. The catalog
// write is rolled back together with the registry entry on failure, so a
// half-attached store is never observable.
func (s *StoreService) attach(info *domain.StoreInfo, record bool) (*domain.StoreInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Name and path conflicts: a shared registry instance must never be
	// reachable under two names, or detaching one would close the other.
	if _, exists := s.stores[info.Name]; exists {
		return nil, domain.ErrStoreConflict.WithDetails(fmt.Sprintf("store already attached: %s", info.Name))
	}
	cleaned := filepath.Clean(info.Path)
	for name, existing := range s.stores {
		if filepath.Clean(existing.info.Path) == cleaned {
			return nil, domain.ErrStoreConflict.WithDetails(fmt.Sprintf("path already attached as store %q", name))
		}
	}

	opts := storeOptions(info)
	st, err := s.registry.Open(info.Path, opts...)
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("open store %s", info.Name)).WithCause(err)
	}

	if record && s.catalog != nil {
		if err := s.catalog.Set(info.Name, info); err != nil {
			_ = s.registry.Close(info.Path)
			return nil, domain.ErrStorageError.WithDetails("persist store catalog").WithCause(err)
		}
	}

	s.stores[info.Name] = &attachedStore{info: info, store: st}
	if s.metrics != nil {
		s.metrics.StoresAttached.Set(float64(len(s.stores)))
	}
	return info, nil
}

// storeOptions translates a descriptor into store construction options.
func storeOptions(info *domain.StoreInfo) []jsonstore.Option {
	var opts []jsonstore.Option
	if info.Indented {
		opts = append(opts, jsonstore.WithIndented())
	}
	if info.Snapshots.Enabled {
		opts = append(opts, jsonstore.WithSnapshots(jsonstore.SnapshotOptions{
			Dir:      info.Snapshots.Dir,
			Interval: info.Snapshots.Interval(),
			Indented: info.Snapshots.Indented,
			Max:      info.Snapshots.Max,
		}))
	}
	return opts
}

// DetachStoreRequest contains parameters for detaching a store.
//
// @design DS-0103
type DetachStoreRequest struct {
	Name string
}

// Detach closes the store, stops its snapshot scheduler, and removes
// it from the catalog. Data operations write through, so the backing
// file already holds the final state and stays on disk.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Detach(ctx context.Context, req *DetachStoreRequest) error {
	// 1. Validate input
	name := domain.NormalizeStoreName(req.Name)
	if name == "" {
		return domain.ErrMissingArgument.WithDetails("name is required")
	}

	// 2. Remove from the live set
	s.mu.Lock()
	attached, ok := s.stores[name]
	if !ok {
		s.mu.Unlock()
		return domain.ErrStoreNotFound.WithDetails(fmt.Sprintf("store: %s", name))
	}
	delete(s.stores, name)
	if s.metrics != nil {
		s.metrics.StoresAttached.Set(float64(len(s.stores)))
	}
	s.mu.Unlock()
	s.counters.Delete(name)

	// 3. Drop the catalog record before closing, so a crash between the
	// two steps forgets the store instead of resurrecting a closed one
	if s.catalog != nil {
		if err := s.catalog.Delete(name); err != nil {
			s.log.Warn("failed to remove store from catalog", "store", name, "error", err)
		}
	}

	// 4. Close the store and stop its snapshot scheduler
	if err := s.registry.Close(attached.info.Path); err != nil {
		return domain.ErrStorageError.WithDetails(fmt.Sprintf("close store %s", name)).WithCause(err)
	}

	s.log.Info("store detached", "store", name, "path", attached.info.Path)
	return nil
}

// ============================================================================
// Store Query Operations
// ============================================================================

// ListStoresResponse contains the attached stores sorted by name.
//
// @design DS-0103
type ListStoresResponse struct {
	Items []*domain.StoreInfo
	Total int
}

// ListStores returns descriptors for every attached store.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) ListStores(ctx context.Context) (*ListStoresResponse, error) {
	s.mu.RLock()
	items := make([]*domain.StoreInfo, 0, len(s.stores))
	for _, attached := range s.stores {
		items = append(items, attached.info.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return &ListStoresResponse{Items: items, Total: len(items)}, nil
}

// StoreStats carries live usage numbers for one store.
//
// @design DS-0103
type StoreStats struct {
	Keys      int    `json:"keys"`
	Reads     uint64 `json:"reads"`
	Writes    uint64 `json:"writes"`
	Deletes   uint64 `json:"deletes"`
	Snapshots uint64 `json:"snapshots"`
}

// DescribeStoreRequest contains parameters for store inspection.
//
// @design DS-0103
type DescribeStoreRequest struct {
	Name string
}

// DescribeStoreResponse contains the descriptor plus live state.
//
// @design DS-0103
type DescribeStoreResponse struct {
	Store       *domain.StoreInfo
	Stats       StoreStats
	Fingerprint string
	// SchedulerHalted reports a snapshot scheduler that stopped after a
	// tick failure. SchedulerError carries the failure text.
	SchedulerHalted bool
	SchedulerError  string
}

// Describe returns the descriptor, usage counters, content fingerprint,
// and snapshot scheduler health for one store.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Describe(ctx context.Context, req *DescribeStoreRequest) (*DescribeStoreResponse, error) {
	attached, err := s.lookup(req.Name)
	if err != nil {
		return nil, err
	}

	counters := s.countersFor(attached.info.Name)
	resp := &DescribeStoreResponse{
		Store: attached.info.Clone(),
		Stats: StoreStats{
			Keys:      attached.store.Len(),
			Reads:     counters.reads.Load(),
			Writes:    counters.writes.Load(),
			Deletes:   counters.deletes.Load(),
			Snapshots: counters.snapshots.Load(),
		},
		Fingerprint: storeFingerprint(attached.store),
	}

	if sched := attached.store.Scheduler(); sched != nil {
		if err := sched.Err(); err != nil {
			resp.SchedulerHalted = true
			resp.SchedulerError = err.Error()
		}
	}
	return resp, nil
}

// ============================================================================
// Key-Value Operations
// ============================================================================

// GetValueRequest contains parameters for a key read.
//
// @design DS-0103
type GetValueRequest struct {
	Store string
	Key   string
}

// GetValueResponse contains the value and its content fingerprint.
//
// @design DS-0103
type GetValueResponse struct {
	Value       any
	Fingerprint string
}

// Get reads one key.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Get(ctx context.Context, req *GetValueRequest) (*GetValueResponse, error) {
	// 1. Resolve store and validate key
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, domain.ErrMissingArgument.WithDetails("key is required")
	}

	// 2. Read
	value, ok := attached.store.Get(req.Key)
	if !ok {
		return nil, domain.ErrKeyNotFound.WithDetails(fmt.Sprintf("store %s, key: %s", attached.info.Name, req.Key))
	}
	s.countersFor(attached.info.Name).reads.Add(1)
	s.countOp(attached.info.Name, "get")

	return &GetValueResponse{Value: value, Fingerprint: valueFingerprint(value)}, nil
}

// HasValue reports whether a key exists without counting a read.
//
// @design DS-0103
func (s *StoreService) HasValue(ctx context.Context, storeName, key string) (bool, error) {
	attached, err := s.lookup(storeName)
	if err != nil {
		return false, err
	}
	if key == "" {
		return false, domain.ErrMissingArgument.WithDetails("key is required")
	}
	return attached.store.Has(key), nil
}

// SetValueRequest contains parameters for a key write.
//
// @design DS-0103
type SetValueRequest struct {
	Store string
	Key   string
	Value any
}

// SetValueResponse contains the result of a key write.
//
// @design DS-0103
type SetValueResponse struct {
	Created     bool
	Fingerprint string
}

// Set writes one key and persists the store.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Set(ctx context.Context, req *SetValueRequest) (*SetValueResponse, error) {
	// 1. Resolve store and validate key
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, domain.ErrMissingArgument.WithDetails("key is required")
	}

	// 2. Write through to disk
	created := !attached.store.Has(req.Key)
	if err := attached.store.Set(req.Key, req.Value); err != nil {
		if errors.Is(err, jsonstore.ErrNotSerializable) {
			return nil, domain.ErrValueNotSerializable.WithDetails(fmt.Sprintf("store %s, key: %s", attached.info.Name, req.Key)).WithCause(err)
		}
		return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("store %s, key: %s", attached.info.Name, req.Key)).WithCause(err)
	}
	s.countersFor(attached.info.Name).writes.Add(1)
	s.countOp(attached.info.Name, "set")

	// 3. Fingerprint the normalized value as stored, not the input
	value, _ := attached.store.Get(req.Key)
	return &SetValueResponse{Created: created, Fingerprint: valueFingerprint(value)}, nil
}

// DeleteValueRequest contains parameters for a key delete.
//
// @design DS-0103
type DeleteValueRequest struct {
	Store string
	Key   string
}

// DeleteValueResponse reports whether the key existed.
//
// @design DS-0103
type DeleteValueResponse struct {
	Deleted bool
}

// Delete removes one key and persists the store. Deleting an absent key
// is not an error; callers that need one check Deleted.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Delete(ctx context.Context, req *DeleteValueRequest) (*DeleteValueResponse, error) {
	// 1. Resolve store and validate key
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}
	if req.Key == "" {
		return nil, domain.ErrMissingArgument.WithDetails("key is required")
	}

	// 2. Delete and persist
	existed := attached.store.Has(req.Key)
	if existed {
		if err := attached.store.Delete(req.Key); err != nil {
			return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("store %s, key: %s", attached.info.Name, req.Key)).WithCause(err)
		}
		s.countersFor(attached.info.Name).deletes.Add(1)
		s.countOp(attached.info.Name, "delete")
	}

	return &DeleteValueResponse{Deleted: existed}, nil
}

// ListEntriesRequest contains parameters for entry listing.
//
// @design DS-0103
type ListEntriesRequest struct {
	Store    string
	Prefix   string // Optional key prefix filter
	KeysOnly bool   // Omit values from the response items
	Page     int    // 1-indexed
	PageSize int    // default 20, max 100
}

// ListEntriesResponse contains one page of entries in insertion order.
//
// @design DS-0103
type ListEntriesResponse struct {
	Items    []jsonstore.Entry
	Total    int
	Page     int
	PageSize int
}

// ListEntries returns a page of the store's entries.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) ListEntries(ctx context.Context, req *ListEntriesRequest) (*ListEntriesResponse, error) {
	// 1. Resolve store
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}

	// 2. Set pagination defaults
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, domain.ErrInvalidArgument.WithDetails("page must be >= 1")
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	if pageSize < 1 {
		return nil, domain.ErrInvalidArgument.WithDetails("page_size must be >= 1")
	}

	// 3. Filter
	entries := attached.store.Entries()
	if req.Prefix != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.HasPrefix(e.Key, req.Prefix) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	total := len(entries)

	// 4. Page
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	items := make([]jsonstore.Entry, end-start)
	copy(items, entries[start:end])
	if req.KeysOnly {
		for i := range items {
			items[i].Value = nil
		}
	}

	return &ListEntriesResponse{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Keys returns every key of a store in insertion order.
//
// @design DS-0103
func (s *StoreService) Keys(ctx context.Context, storeName string) ([]string, error) {
	attached, err := s.lookup(storeName)
	if err != nil {
		return nil, err
	}
	return attached.store.Keys(), nil
}

// KeyCount returns the number of keys in a store.
//
// @design DS-0103
func (s *StoreService) KeyCount(ctx context.Context, storeName string) (int, error) {
	attached, err := s.lookup(storeName)
	if err != nil {
		return 0, err
	}
	return attached.store.Len(), nil
}

// FlushStoreRequest contains parameters for clearing a store.
//
// @design DS-0103
type FlushStoreRequest struct {
	Store string
}

// FlushStoreResponse reports how many keys were removed.
//
// @design DS-0103
type FlushStoreResponse struct {
	Removed int
}

// Flush removes every key from the store and persists the empty state.
//
// @req RQ-0102
// @design DS-0103
func (s *StoreService) Flush(ctx context.Context, req *FlushStoreRequest) (*FlushStoreResponse, error) {
	// 1. Resolve store
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}

	// 2. Clear and persist
	removed := attached.store.Len()
	if err := attached.store.DeleteAll(); err != nil {
		return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("flush store %s", attached.info.Name)).WithCause(err)
	}
	s.countersFor(attached.info.Name).deletes.Add(uint64(removed))
	s.countOp(attached.info.Name, "flush")

	s.log.Info("store flushed", "store", attached.info.Name, "removed", removed)
	return &FlushStoreResponse{Removed: removed}, nil
}

// Persist rewrites the store's backing file from the in-memory state.
//
// @design DS-0103
func (s *StoreService) Persist(ctx context.Context, storeName string) error {
	attached, err := s.lookup(storeName)
	if err != nil {
		return err
	}
	if err := attached.store.Persist(); err != nil {
		return domain.ErrStorageError.WithDetails(fmt.Sprintf("persist store %s", attached.info.Name)).WithCause(err)
	}
	return nil
}

// Reload replaces the in-memory state with the backing file's current
// content, discarding unpersisted local changes.
//
// @design DS-0103
func (s *StoreService) Reload(ctx context.Context, storeName string) error {
	attached, err := s.lookup(storeName)
	if err != nil {
		return err
	}
	if err := attached.store.Reload(); err != nil {
		if errors.Is(err, jsonstore.ErrDataShape) {
			return domain.ErrDataShape.WithDetails(fmt.Sprintf("store %s", attached.info.Name)).WithCause(err)
		}
		return domain.ErrStorageError.WithDetails(fmt.Sprintf("reload store %s", attached.info.Name)).WithCause(err)
	}
	return nil
}

// ============================================================================
// Snapshot Operations
// ============================================================================

// CreateSnapshotRequest contains parameters for an on-demand snapshot.
//
// @design DS-0103
type CreateSnapshotRequest struct {
	Store string
	// Dir overrides the target directory. When empty, the store's
	// snapshot policy directory is used and the snapshot counts against
	// the retention cap.
	Dir      string
	Indented bool
}

// CreateSnapshotResponse contains the result of an on-demand snapshot.
//
// @design DS-0103
type CreateSnapshotResponse struct {
	File string
	Dir  string
	// Retained reports whether the snapshot was recorded in the
	// retention tracker.
	Retained bool
}

// CreateSnapshot writes a snapshot of the store's live state.
//
// @req RQ-0202
// @design DS-0103
func (s *StoreService) CreateSnapshot(ctx context.Context, req *CreateSnapshotRequest) (*CreateSnapshotResponse, error) {
	// 1. Resolve store and target directory
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(req.Dir)
	indented := req.Indented
	if dir == "" {
		if !attached.info.Snapshots.Enabled {
			return nil, domain.ErrSnapshotDirInvalid.WithDetails(
				fmt.Sprintf("store %s has no snapshot policy, a target dir is required", attached.info.Name))
		}
		dir = attached.info.Snapshots.Dir
		indented = attached.info.Snapshots.Indented
	}

	// 2. Write the snapshot
	name, err := attached.store.MakeSnapshot(dir, indented)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SnapshotFailures.Inc()
		}
		return nil, domain.ErrSnapshotFailed.WithDetails(fmt.Sprintf("store %s", attached.info.Name)).WithCause(err)
	}
	s.countersFor(attached.info.Name).snapshots.Add(1)
	if s.metrics != nil {
		s.metrics.SnapshotsTotal.WithLabelValues(attached.info.Name).Inc()
	}

	// 3. Record in the retention tracker when it landed in the policy dir
	resp := &CreateSnapshotResponse{File: name, Dir: dir}
	if sched := attached.store.Scheduler(); sched != nil && sched.Tracker() != nil {
		if filepath.Clean(dir) == filepath.Clean(sched.Dir()) {
			if err := sched.Tracker().Record(name); err != nil {
				s.log.Warn("snapshot written but not recorded for retention", "store", attached.info.Name, "file", name, "error", err)
			} else {
				resp.Retained = true
			}
		}
	}

	s.log.Info("snapshot created", "store", attached.info.Name, "file", name, "dir", dir)
	return resp, nil
}

// SnapshotInfo describes one snapshot file on disk.
//
// @design DS-0103
type SnapshotInfo struct {
	File       string `json:"file"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modified_at"` // Unix MS
}

// ListSnapshotsRequest contains parameters for snapshot listing.
//
// @design DS-0103
type ListSnapshotsRequest struct {
	Store string
	// Dir overrides the directory to scan. Defaults to the store's
	// snapshot policy directory.
	Dir string
}

// ListSnapshotsResponse contains snapshots ordered oldest first.
//
// @design DS-0103
type ListSnapshotsResponse struct {
	Items []SnapshotInfo
	Total int
}

// ListSnapshots returns the snapshot files of a store. Files evicted or
// removed out of band are omitted.
//
// @req RQ-0202
// @design DS-0103
func (s *StoreService) ListSnapshots(ctx context.Context, req *ListSnapshotsRequest) (*ListSnapshotsResponse, error) {
	// 1. Resolve store and directory
	attached, err := s.lookup(req.Store)
	if err != nil {
		return nil, err
	}
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		if !attached.info.Snapshots.Enabled {
			return &ListSnapshotsResponse{Items: []SnapshotInfo{}}, nil
		}
		dir = attached.info.Snapshots.Dir
	}

	// 2. Prefer the tracker's ordered list, fall back to a directory scan
	var names []string
	if sched := attached.store.Scheduler(); sched != nil && sched.Tracker() != nil &&
		filepath.Clean(dir) == filepath.Clean(sched.Dir()) {
		names = sched.Tracker().List()
	} else {
		names, err = scanSnapshotDir(dir, attached.info.Path)
		if err != nil {
			return nil, domain.ErrStorageError.WithDetails(fmt.Sprintf("list snapshots of store %s", attached.info.Name)).WithCause(err)
		}
	}

	// 3. Stat each file
	items := make([]SnapshotInfo, 0, len(names))
	for _, name := range names {
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		items = append(items, SnapshotInfo{
			File:       name,
			Size:       fi.Size(),
			ModifiedAt: fi.ModTime().UnixMilli(),
		})
	}

	return &ListSnapshotsResponse{Items: items, Total: len(items)}, nil
}

// scanSnapshotDir lists snapshot files for the given source file, sorted
// by name. Snapshot names embed a millisecond timestamp, but the prefix
// is shared, so name order is creation order.
func scanSnapshotDir(dir, sourcePath string) ([]string, error) {
	base := filepath.Base(sourcePath)
	prefix := "snapshot-" + strings.TrimSuffix(base, filepath.Ext(base)) + "-"

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ============================================================================
// Internal Helpers
// ============================================================================

// lookup resolves a store by name.
func (s *StoreService) lookup(name string) (*attachedStore, error) {
	normalized := domain.NormalizeStoreName(name)
	if normalized == "" {
		return nil, domain.ErrMissingArgument.WithDetails("store name is required")
	}
	s.mu.RLock()
	attached, ok := s.stores[normalized]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrStoreNotFound.WithDetails(fmt.Sprintf("store: %s", normalized))
	}
	return attached, nil
}

// countersFor returns the counter block for a store, creating it on
// first use.
func (s *StoreService) countersFor(name string) *storeCounters {
	counters, _ := s.counters.GetOrSet(name, &storeCounters{})
	return counters
}

// countOp mirrors one data operation into the Prometheus registry when
// one is configured.
func (s *StoreService) countOp(name, op string) {
	if s.metrics != nil {
		s.metrics.StoreOpsTotal.WithLabelValues(name, op).Inc()
	}
}

// valueFingerprint hashes one value's JSON form for change detection.
func valueFingerprint(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", murmur3.Sum64(raw))
}

// storeFingerprint hashes the store's full entry list. Two stores with
// the same keys in the same order and the same values share a
// fingerprint.
func storeFingerprint(st *jsonstore.Store) string {
	raw, err := json.Marshal(st.Entries())
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", murmur3.Sum64(raw))
}

// Close closes every attached store plus the catalog, stopping their
// snapshot schedulers.
func (s *StoreService) Close() error {
	s.mu.Lock()
	s.stores = make(map[string]*attachedStore)
	s.mu.Unlock()
	s.counters.Clear()

	var firstErr error
	if err := s.registry.CloseAll(); err != nil {
		firstErr = err
	}
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
