package repl

import (
	"os"
	"path/filepath"
	"testing"
)

func tempHistory(t *testing.T, maxSize int) *History {
	t.Helper()
	return &History{
		maxSize: maxSize,
		file:    filepath.Join(t.TempDir(), ".jsonkeep", "history"),
	}
}

func TestHistoryDefaults(t *testing.T) {
	h := NewHistory()
	if h.maxSize != defaultHistoryLimit {
		t.Errorf("maxSize = %d, want %d", h.maxSize, defaultHistoryLimit)
	}
	if !filepath.IsAbs(h.file) || filepath.Base(h.file) != "history" {
		t.Errorf("unexpected history path %q", h.file)
	}
}

func TestHistoryAdd(t *testing.T) {
	h := tempHistory(t, 1000)

	h.Add("store list")
	h.Add("store get db0 user:1")
	h.Add("store get db0 user:1") // immediate repeat, dropped
	h.Add("   ")                  // blank, dropped
	h.Add("store list")           // non-adjacent repeat, kept

	want := []string{"store list", "store get db0 user:1", "store list"}
	if len(h.entries) != len(want) {
		t.Fatalf("entries = %v, want %v", h.entries, want)
	}
	for i := range want {
		if h.entries[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, h.entries[i], want[i])
		}
	}
}

func TestHistoryEviction(t *testing.T) {
	h := tempHistory(t, 3)

	for _, cmd := range []string{"cmd1", "cmd2", "cmd3", "cmd4"} {
		h.Add(cmd)
	}

	if len(h.entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(h.entries))
	}
	if h.entries[0] != "cmd2" {
		t.Errorf("oldest surviving entry = %q, want cmd2", h.entries[0])
	}
}

func TestHistoryGet(t *testing.T) {
	h := tempHistory(t, 1000)
	h.Add("first")
	h.Add("second")
	h.Add("third")

	cases := []struct {
		index int
		want  string
	}{
		{0, "third"},
		{1, "second"},
		{2, "first"},
		{3, ""},
		{-1, ""},
		{100, ""},
	}
	for _, tc := range cases {
		if got := h.Get(tc.index); got != tc.want {
			t.Errorf("Get(%d) = %q, want %q", tc.index, got, tc.want)
		}
	}

	if got := tempHistory(t, 1000).Get(0); got != "" {
		t.Errorf("Get on empty history = %q, want empty", got)
	}
}

func TestHistorySaveLoadRoundTrip(t *testing.T) {
	h := tempHistory(t, 1000)
	h.Add("command1")
	h.Add("command2")
	h.Add("command3")

	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(h.file); err != nil {
		t.Fatalf("history file missing after Save: %v", err)
	}

	h2 := &History{maxSize: 1000, file: h.file}
	if err := h2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(h2.entries) != 3 || h2.entries[0] != "command1" {
		t.Errorf("loaded entries = %v", h2.entries)
	}
}

func TestHistoryLoadMissingFile(t *testing.T) {
	h := tempHistory(t, 1000)

	if err := h.Load(); err != nil {
		t.Errorf("Load of missing file returned %v", err)
	}
	if len(h.entries) != 0 {
		t.Errorf("entries = %v, want empty", h.entries)
	}
}

func TestHistorySaveCreatesDirectory(t *testing.T) {
	h := &History{
		entries: []string{"cmd"},
		maxSize: 1000,
		file:    filepath.Join(t.TempDir(), "nested", "dir", "history"),
	}

	if err := h.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(h.file); err != nil {
		t.Errorf("history file missing: %v", err)
	}
}
