package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Get() left defaults blank: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestString(t *testing.T) {
	s := String()

	if !strings.HasPrefix(s, Version) {
		t.Errorf("String() = %q, should start with version %q", s, Version)
	}
	if !strings.Contains(s, "built at "+BuildTime) {
		t.Errorf("String() = %q, missing build time", s)
	}
}

func TestCommitFallback(t *testing.T) {
	// With the ldflag set, the injected value wins over any embedded
	// VCS revision.
	orig := Commit
	defer func() { Commit = orig }()

	Commit = "abc1234"
	if got := Get().Commit; got != "abc1234" {
		t.Errorf("Commit = %q, want abc1234", got)
	}
}
