package jsonstore

import (
	"log/slog"
	"time"
)

// Options configures a Store.
type Options struct {
	// Indented pretty-prints the main data file with 4-space indentation.
	Indented bool

	// ForceNew bypasses the registry's shared-instance lookup in
	// Registry.Open, always constructing a fresh, unregistered Store.
	ForceNew bool

	// Snapshots configures periodic snapshot backups.
	Snapshots SnapshotOptions

	// Logger receives scheduler diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// SnapshotOptions configures the snapshot scheduler and retention policy.
type SnapshotOptions struct {
	// Enabled starts the snapshot scheduler at store construction.
	Enabled bool

	// Dir is the snapshot output directory. Required when Enabled.
	Dir string

	// Interval is the tick period. Required positive when Enabled.
	Interval time.Duration

	// Indented pretty-prints snapshot files.
	Indented bool

	// Max is the retention cap. A value above zero enables the retention
	// tracker, which evicts the oldest snapshot beyond the cap.
	Max int
}

// Option mutates Options.
type Option func(*Options)

// WithIndented enables pretty-printing of the main data file.
func WithIndented() Option {
	return func(o *Options) { o.Indented = true }
}

// WithForceNew makes Registry.Open construct a fresh instance instead of
// returning a shared one.
func WithForceNew() Option {
	return func(o *Options) { o.ForceNew = true }
}

// WithSnapshots enables periodic snapshots with the given settings.
func WithSnapshots(s SnapshotOptions) Option {
	return func(o *Options) {
		o.Snapshots = s
		o.Snapshots.Enabled = true
	}
}

// WithLogger sets the logger used by the snapshot scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func buildOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
