package repl

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const defaultHistoryLimit = 1000

// History holds the commands typed in a session and persists them to
// ~/.jsonkeep/history between runs.
type History struct {
	entries []string
	maxSize int
	file    string
}

// NewHistory returns an empty history bound to the default file.
func NewHistory() *History {
	home, _ := os.UserHomeDir()
	return &History{
		maxSize: defaultHistoryLimit,
		file:    filepath.Join(home, ".jsonkeep", "history"),
	}
}

// Add appends cmd. Blank lines and immediate repeats are dropped, and
// the oldest entries roll off once the limit is reached.
func (h *History) Add(cmd string) {
	if strings.TrimSpace(cmd) == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[len(h.entries)-h.maxSize:]
	}
}

// Get returns the entry index steps back from the most recent, or ""
// when index is out of range.
func (h *History) Get(index int) string {
	if index < 0 || index >= len(h.entries) {
		return ""
	}
	return h.entries[len(h.entries)-1-index]
}

// Load reads the history file. A missing file is not an error; the
// session just starts with empty history.
func (h *History) Load() error {
	f, err := os.Open(h.file)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		h.entries = append(h.entries, sc.Text())
	}
	return sc.Err()
}

// Save writes all entries back to the history file, creating the
// ~/.jsonkeep directory if needed.
func (h *History) Save() error {
	if err := os.MkdirAll(filepath.Dir(h.file), 0700); err != nil {
		return err
	}

	var b strings.Builder
	for _, entry := range h.entries {
		b.WriteString(entry)
		b.WriteByte('\n')
	}
	return os.WriteFile(h.file, []byte(b.String()), 0600)
}
