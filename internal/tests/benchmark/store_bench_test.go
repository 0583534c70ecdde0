package benchmark

import (
	"fmt"
	"testing"
)

// BenchmarkStoreGet measures key lookup at different store sizes.
func BenchmarkStoreGet(b *testing.B) {
	for _, n := range KeyCounts {
		b.Run(fmt.Sprintf("preload_%d", n), func(b *testing.B) {
			store := newBenchStore(b)
			defer store.Close()
			prefillStore(b, store, n)

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, ok := store.Get(benchKey(i % n)); !ok {
					b.Fatalf("key %s not found", benchKey(i%n))
				}
			}
			b.StopTimer()
			reportMemory(b, "mem")
		})
	}
}

// BenchmarkStoreSetLocal measures deferred writes that never touch disk.
func BenchmarkStoreSetLocal(b *testing.B) {
	b.ReportAllocs()
	store := newBenchStore(b)
	defer store.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.SetLocal(benchKey(i), benchValue(i)); err != nil {
			b.Fatalf("set local: %v", err)
		}
	}
}

// BenchmarkStoreSet measures write-through sets, where every call rewrites
// the backing file. Store size dominates, so only small preloads are used.
func BenchmarkStoreSet(b *testing.B) {
	for _, n := range SmallKeyCounts {
		b.Run(fmt.Sprintf("preload_%d", n), func(b *testing.B) {
			store := newBenchStore(b)
			defer store.Close()
			prefillStore(b, store, n)

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := store.Set(benchKey(i%n), benchValue(i)); err != nil {
					b.Fatalf("set: %v", err)
				}
			}
		})
	}
}

// BenchmarkStoreKeys measures ordered key snapshots.
func BenchmarkStoreKeys(b *testing.B) {
	for _, n := range KeyCounts {
		b.Run(fmt.Sprintf("preload_%d", n), func(b *testing.B) {
			store := newBenchStore(b)
			defer store.Close()
			prefillStore(b, store, n)

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				keys := store.Keys()
				if len(keys) != n {
					b.Fatalf("got %d keys, want %d", len(keys), n)
				}
			}
			b.StopTimer()
			reportMemory(b, "mem")
		})
	}
}

// BenchmarkStorePersist measures a full serialize-and-write cycle.
func BenchmarkStorePersist(b *testing.B) {
	for _, n := range SmallKeyCounts {
		b.Run(fmt.Sprintf("preload_%d", n), func(b *testing.B) {
			store := newBenchStore(b)
			defer store.Close()
			prefillStore(b, store, n)

			b.ResetTimer()
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := store.Persist(); err != nil {
					b.Fatalf("persist: %v", err)
				}
			}
		})
	}
}
