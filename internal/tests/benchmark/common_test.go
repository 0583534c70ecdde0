package benchmark

import (
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/yndnr/jsonkeep-go/pkg/jsonstore"
)

// KeyCounts defines the store sizes for benchmarking.
var KeyCounts = []int{1000, 5000, 10000, 50000, 100000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{100, 1000, 5000}

// newBenchStore creates a store backed by a file in a temp dir.
func newBenchStore(b *testing.B) *jsonstore.Store {
	b.Helper()
	store, err := jsonstore.New(filepath.Join(b.TempDir(), "bench.json"))
	if err != nil {
		b.Fatalf("open store: %v", err)
	}
	return store
}

// prefillStore fills a store with count keys, hitting disk once.
func prefillStore(b *testing.B, store *jsonstore.Store, count int) {
	b.Helper()
	for i := 0; i < count; i++ {
		if err := store.SetLocal(benchKey(i), benchValue(i)); err != nil {
			b.Fatalf("prefill: %v", err)
		}
	}
	if err := store.Persist(); err != nil {
		b.Fatalf("persist prefill: %v", err)
	}
}

// benchKey returns a deterministic key for index i.
func benchKey(i int) string {
	return fmt.Sprintf("user:%d", i)
}

// benchValue returns a small JSON object payload for index i.
func benchValue(i int) map[string]any {
	return map[string]any{
		"id":     i,
		"name":   fmt.Sprintf("name-%d", i),
		"active": i%2 == 0,
	}
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}
