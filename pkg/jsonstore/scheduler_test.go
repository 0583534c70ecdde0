package jsonstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// sequenceTime makes each snapshot timestamp one millisecond later than the
// previous, starting from base, so filenames are distinct and predictable.
func sequenceTime(t *testing.T, base time.Time) {
	t.Helper()
	orig := timeNow
	var n int64
	timeNow = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
	t.Cleanup(func() { timeNow = orig })
}

func countSnapshotFiles(t *testing.T, dir, prefix string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			n++
		}
	}
	return n
}

func TestNewScheduler_Validation(t *testing.T) {
	st, _ := newTestStore(t)

	_, err := NewScheduler(st, SnapshotOptions{Dir: " ", Interval: time.Second}, nil, nil)
	if !errors.Is(err, ErrInvalidSnapshotDir) {
		t.Fatalf("blank dir err = %v, want %v", err, ErrInvalidSnapshotDir)
	}
	_, err = NewScheduler(st, SnapshotOptions{Dir: t.TempDir()}, nil, nil)
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero interval err = %v, want %v", err, ErrInvalidInterval)
	}
	_, err = NewScheduler(st, SnapshotOptions{Dir: t.TempDir(), Interval: -time.Second}, nil, nil)
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("negative interval err = %v, want %v", err, ErrInvalidInterval)
	}
}

// Drives tick directly so the retention outcome is deterministic: after three
// ticks with a cap of two, the directory holds exactly the two newest
// snapshots and the tracking list matches them in creation order.
func TestScheduler_TickHonorsRetentionCap(t *testing.T) {
	base := time.UnixMilli(1700000000000)
	sequenceTime(t, base)

	st, _ := newTestStore(t)
	if err := st.Set("a", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	dir := t.TempDir()
	tracker, err := NewTracker(dir, 2)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	sched, err := NewScheduler(st, SnapshotOptions{Dir: dir, Interval: time.Hour}, tracker, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := sched.tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	want := []string{
		fmt.Sprintf("snapshot-db-%d.json", base.UnixMilli()+2),
		fmt.Sprintf("snapshot-db-%d.json", base.UnixMilli()+3),
	}
	if got := tracker.List(); !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	if n := countSnapshotFiles(t, dir, "snapshot-db-"); n != 2 {
		t.Fatalf("snapshot files = %d, want 2", n)
	}
	if _, err := os.Stat(filepath.Join(dir, TrackingFileName)); err != nil {
		t.Fatalf("tracking file: %v", err)
	}
}

func TestScheduler_TickWithoutTracker(t *testing.T) {
	sequenceTime(t, time.UnixMilli(1000))

	st, _ := newTestStore(t)
	dir := t.TempDir()
	sched, err := NewScheduler(st, SnapshotOptions{Dir: dir, Interval: time.Hour}, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := sched.tick(); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	// No cap without a tracker: everything accumulates.
	if n := countSnapshotFiles(t, dir, "snapshot-db-"); n != 3 {
		t.Fatalf("snapshot files = %d, want 3", n)
	}
}

func TestScheduler_LoopProducesSnapshots(t *testing.T) {
	st, _ := newTestStore(t)
	dir := t.TempDir()
	sched, err := NewScheduler(st, SnapshotOptions{Dir: dir, Interval: 10 * time.Millisecond}, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for countSnapshotFiles(t, dir, "snapshot-db-") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no snapshot produced within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScheduler_HaltsOnTickFailure(t *testing.T) {
	st, _ := newTestStore(t)

	// The target directory path is occupied by a regular file, so every
	// snapshot attempt fails.
	blocked := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sched, err := NewScheduler(st, SnapshotOptions{Dir: blocked, Interval: 5 * time.Millisecond}, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.Start()

	select {
	case <-sched.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not halt on tick failure")
	}
	if sched.Err() == nil {
		t.Fatal("Err() = nil after halt, want tick error")
	}
	// Stop after a self-halt must not block.
	sched.Stop()
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	st, _ := newTestStore(t)
	sched, err := NewScheduler(st, SnapshotOptions{Dir: t.TempDir(), Interval: time.Hour}, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	sched.Start()

	done := make(chan struct{})
	go func() {
		sched.Stop()
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	if sched.Err() != nil {
		t.Fatalf("Err() = %v after clean stop, want nil", sched.Err())
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	st, _ := newTestStore(t)
	sched, err := NewScheduler(st, SnapshotOptions{Dir: t.TempDir(), Interval: time.Hour}, nil, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop on a never-started scheduler did not return")
	}

	// A Start after Stop sees the closed stop channel and exits at once.
	sched.Start()
	select {
	case <-sched.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop kept running after a prior Stop")
	}
}

func TestNew_SnapshotOptionValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")

	_, err := New(path, WithSnapshots(SnapshotOptions{Dir: "", Interval: time.Second}))
	if !errors.Is(err, ErrInvalidSnapshotDir) {
		t.Fatalf("empty dir err = %v, want %v", err, ErrInvalidSnapshotDir)
	}
	_, err = New(path, WithSnapshots(SnapshotOptions{Dir: t.TempDir(), Interval: 0}))
	if !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("zero interval err = %v, want %v", err, ErrInvalidInterval)
	}
	_, err = New(path, WithSnapshots(SnapshotOptions{Dir: t.TempDir(), Interval: time.Second, Max: -2}))
	if !errors.Is(err, ErrInvalidRetention) {
		t.Fatalf("negative cap err = %v, want %v", err, ErrInvalidRetention)
	}
}

func TestNew_SnapshotLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	dir := t.TempDir()

	st, err := New(path, WithSnapshots(SnapshotOptions{
		Dir:      dir,
		Interval: 10 * time.Millisecond,
		Max:      2,
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Set("a", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if st.Scheduler() == nil {
		t.Fatal("Scheduler() = nil, want running scheduler")
	}

	deadline := time.Now().Add(2 * time.Second)
	for countSnapshotFiles(t, dir, "snapshot-db-") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no snapshot produced within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-st.Scheduler().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler still running after Close")
	}
	if n := countSnapshotFiles(t, dir, "snapshot-db-"); n > 2 {
		t.Fatalf("snapshot files = %d, want at most 2", n)
	}
}
