package jsonstore

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestRegistry_OpenSharesInstance(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "db.json")

	first, err := reg.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	second, err := reg.Open(path)
	if err != nil {
		t.Fatalf("Open again: %v", err)
	}
	if first != second {
		t.Fatal("same path should return the same instance")
	}

	if err := first.Set("a", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok := second.Get("a"); !ok || v != float64(1) {
		t.Fatalf("shared instance Get = %v, %v", v, ok)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistry_OpenCleansPathForKeying(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()

	plain, err := reg.Open(filepath.Join(dir, "db.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	dotted, err := reg.Open(dir + "/./db.json")
	if err != nil {
		t.Fatalf("Open dotted: %v", err)
	}
	if plain != dotted {
		t.Fatal("equivalent paths should share one instance")
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistry_ForceNewBypassesRegistry(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "db.json")

	shared, err := reg.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	fresh, err := reg.Open(path, WithForceNew())
	if err != nil {
		t.Fatalf("Open force-new: %v", err)
	}
	if fresh == shared {
		t.Fatal("force-new should construct a distinct instance")
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (fresh instance unregistered)", reg.Len())
	}
	if got, ok := reg.Get(path); !ok || got != shared {
		t.Fatal("shared instance should remain registered")
	}
}

func TestRegistry_ForceNewReadsCurrentFile(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "db.json")

	shared, err := reg.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := shared.Set("a", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	fresh, err := reg.Open(path, WithForceNew())
	if err != nil {
		t.Fatalf("Open force-new: %v", err)
	}
	if v, ok := fresh.Get("a"); !ok || v != float64(1) {
		t.Fatalf("fresh instance Get = %v, %v, want persisted value", v, ok)
	}
}

func TestRegistry_OpenEmptyPath(t *testing.T) {
	if _, err := NewRegistry().Open(""); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidPath)
	}
}

func TestRegistry_Paths(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()

	b := filepath.Join(dir, "b.json")
	a := filepath.Join(dir, "a.json")
	for _, p := range []string{b, a} {
		if _, err := reg.Open(p); err != nil {
			t.Fatalf("Open(%s): %v", p, err)
		}
	}

	if got, want := reg.Paths(), []string{a, b}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Paths = %v, want %v", got, want)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := NewRegistry()
	dir := t.TempDir()

	plain, err := reg.Open(filepath.Join(dir, "plain.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	scheduled, err := reg.Open(filepath.Join(dir, "scheduled.json"),
		WithSnapshots(SnapshotOptions{Dir: t.TempDir(), Interval: time.Hour}))
	if err != nil {
		t.Fatalf("Open with snapshots: %v", err)
	}

	if err := reg.CloseAll(); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("Len = %d after CloseAll, want 0", reg.Len())
	}
	select {
	case <-scheduled.Scheduler().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler still running after CloseAll")
	}
	// Closing an already-closed store stays a no-op.
	if err := plain.Close(); err != nil {
		t.Fatalf("Close after CloseAll: %v", err)
	}
}
