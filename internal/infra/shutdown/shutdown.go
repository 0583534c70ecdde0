package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yndnr/jsonkeep-go/internal/telemetry/logger"
)

// Handler handles graceful shutdown.
//
// Hooks carry a name so the shutdown sequence shows up in the logs and
// a failing component can be identified without guessing.
type Handler struct {
	timeout time.Duration
	log     logger.Logger
	hooks   []hook
	mu      sync.Mutex
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

type hook struct {
	name string
	fn   func(context.Context) error
}

// NewHandler creates a new shutdown handler. A nil log falls back to
// the process default logger.
func NewHandler(timeout time.Duration, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		timeout: timeout,
		log:     log,
		hooks:   make([]hook, 0),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a named shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Trigger initiates shutdown without an OS signal, e.g. when a listener
// fails fatally. Calling it more than once is safe; only the first call
// takes effect.
func (h *Handler) Trigger(reason string) {
	h.once.Do(func() {
		h.log.Info("shutdown triggered", "reason", reason)
		close(h.stop)
	})
}

// Wait blocks until a termination signal arrives or Trigger is called,
// then executes the registered hooks.
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		h.log.Info("shutdown signal received", "signal", sig.String())
	case <-h.stop:
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	// Execute hooks in reverse order
	h.mu.Lock()
	hooks := make([]hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		start := time.Now()
		if err := hooks[i].fn(ctx); err != nil {
			h.log.Error("shutdown hook failed",
				"hook", hooks[i].name,
				"error", err,
			)
			lastErr = err
			continue
		}
		h.log.Debug("shutdown hook finished",
			"hook", hooks[i].name,
			"elapsed", time.Since(start),
		)
	}

	close(h.done)
	return lastErr
}

// Done returns a channel that closes when shutdown is complete.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
