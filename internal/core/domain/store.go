package domain

import (
	"regexp"
	"strings"
	"time"
)

// Store constraints (based on RQ-0101 and DS-0101).
const (
	MaxStoreNameLength   = 64
	MaxStorePathLength   = 4096
	MinSnapshotInterval  = time.Second
	DefaultSnapshotMax   = 5
	DefaultStoreFileName = "db.json"
)

// storeNamePattern matches valid store names: lowercase alphanumerics,
// hyphens and underscores, starting with an alphanumeric.
var storeNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// StoreInfo describes a named store attached to the server: the mapping
// from a public store name to its backing file and persistence policy.
//
// @req RQ-0102
// @design DS-0102
type StoreInfo struct {
	// Name is the public identifier used in API paths and commands.
	Name string `json:"name"`

	// Path is the backing JSON file path.
	Path string `json:"path"`

	// Indented controls pretty-printing of the backing file.
	Indented bool `json:"indented"`

	// Snapshots is the periodic snapshot policy for this store.
	Snapshots SnapshotPolicy `json:"snapshots"`

	// AttachedAt is the attachment timestamp (Unix milliseconds).
	AttachedAt int64 `json:"attached_at"`

	// AttachedBy is the API Key ID that attached the store, or "config"
	// for stores declared in the server configuration.
	AttachedBy string `json:"attached_by"`
}

// SnapshotPolicy describes periodic snapshotting for a store.
type SnapshotPolicy struct {
	// Enabled turns the snapshot scheduler on.
	Enabled bool `json:"enabled"`

	// Dir is the directory snapshots are written to.
	Dir string `json:"dir,omitempty"`

	// IntervalMS is the tick interval in milliseconds.
	IntervalMS int64 `json:"interval_ms,omitempty"`

	// Indented controls pretty-printing of snapshot files.
	Indented bool `json:"indented,omitempty"`

	// Max is the retention cap; 0 keeps every snapshot.
	Max int `json:"max,omitempty"`
}

// Interval returns the tick interval as a duration.
func (p SnapshotPolicy) Interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// Validate validates the snapshot policy. Disabled policies always pass.
func (p SnapshotPolicy) Validate() error {
	if !p.Enabled {
		return nil
	}

	var violations []string
	if strings.TrimSpace(p.Dir) == "" {
		violations = append(violations, "snapshot dir is required")
	}
	if p.IntervalMS <= 0 {
		violations = append(violations, "snapshot interval must be positive")
	} else if p.Interval() < MinSnapshotInterval {
		violations = append(violations, "snapshot interval below 1s")
	}
	if p.Max < 0 {
		violations = append(violations, "snapshot max must not be negative")
	}

	if len(violations) > 0 {
		return ErrInvalidArgument.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// NewStoreInfo creates a StoreInfo with the attachment timestamp set.
func NewStoreInfo(name, path string) *StoreInfo {
	return &StoreInfo{
		Name:       name,
		Path:       path,
		AttachedAt: currentTimeMillis(),
	}
}

// IsValidStoreName checks if a string is a valid store name.
func IsValidStoreName(name string) bool {
	if name == "" || len(name) > MaxStoreNameLength {
		return false
	}
	return storeNamePattern.MatchString(name)
}

// NormalizeStoreName lowercases and trims a store name. Returns empty
// string if the result is invalid.
func NormalizeStoreName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if !IsValidStoreName(normalized) {
		return ""
	}
	return normalized
}

// Validate validates the store descriptor fields against constraints.
// Returns a DomainError with code JK-STOR-4001 if validation fails.
func (s *StoreInfo) Validate() error {
	var violations []string

	if s.Name == "" {
		violations = append(violations, "name is required")
	} else if !IsValidStoreName(s.Name) {
		violations = append(violations, "name must match [a-z0-9][a-z0-9_-]* and be at most 64 characters")
	}

	if s.Path == "" {
		violations = append(violations, "path is required")
	} else if len(s.Path) > MaxStorePathLength {
		violations = append(violations, "path exceeds 4096 characters")
	}

	if err := s.Snapshots.Validate(); err != nil {
		violations = append(violations, err.Error())
	}

	if len(violations) > 0 {
		return ErrStoreNameInvalid.WithDetails(strings.Join(violations, "; "))
	}

	return nil
}

// Clone creates a copy of the store descriptor.
func (s *StoreInfo) Clone() *StoreInfo {
	clone := *s
	return &clone
}

// AttachedAtTime returns AttachedAt as time.Time.
func (s *StoreInfo) AttachedAtTime() time.Time {
	return time.UnixMilli(s.AttachedAt)
}
