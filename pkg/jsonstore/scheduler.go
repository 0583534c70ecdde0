package jsonstore

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler drives periodic snapshots of a Store.
//
// Each tick writes a snapshot and, when retention is configured, records
// it with the Tracker. A failing tick is not retried or skipped: the
// error is logged, the loop stops permanently, and Err reports it.
type Scheduler struct {
	store    *Store
	dir      string
	indented bool
	interval time.Duration
	tracker  *Tracker
	logger   *slog.Logger

	started  atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewScheduler validates the snapshot settings and builds a stopped
// scheduler. The snapshot directory must be non-empty and the interval
// positive; both violations are fatal.
func NewScheduler(store *Store, opts SnapshotOptions, tracker *Tracker, logger *slog.Logger) (*Scheduler, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, ErrInvalidSnapshotDir
	}
	if opts.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		dir:      opts.Dir,
		indented: opts.Indented,
		interval: opts.Interval,
		tracker:  tracker,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start launches the ticker loop. A second Start is a no-op.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.tick(); err != nil {
				s.setErr(err)
				s.logger.Error("snapshot tick failed, scheduler halted",
					"store", s.store.Path(),
					"dir", s.dir,
					"error", err,
				)
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

// tick produces one snapshot and updates retention bookkeeping.
func (s *Scheduler) tick() error {
	name, err := s.store.MakeSnapshot(s.dir, s.indented)
	if err != nil {
		return err
	}
	if s.tracker != nil {
		return s.tracker.Record(name)
	}
	return nil
}

// Stop terminates the loop and waits for it to exit. Idempotent; safe to
// call after the loop halted on its own, or on a scheduler that was
// never started.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if !s.started.Load() {
		return
	}
	<-s.doneCh
}

// Done is closed once the loop has exited, whether stopped or halted by a
// failed tick.
func (s *Scheduler) Done() <-chan struct{} { return s.doneCh }

// Err returns the tick error that halted the scheduler, or nil.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Dir returns the directory snapshots are written to.
func (s *Scheduler) Dir() string { return s.dir }

// Tracker returns the retention tracker, or nil when retention is
// unbounded.
func (s *Scheduler) Tracker() *Tracker { return s.tracker }

func (s *Scheduler) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
