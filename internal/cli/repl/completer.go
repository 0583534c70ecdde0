package repl

import "strings"

// commandTree mirrors the CLI command groups exposed at the prompt.
// Order matters: suggestions are offered in this order.
var commandTree = []struct {
	name string
	subs []string
}{
	{"store", []string{
		"list", "attach", "detach", "describe",
		"get", "set", "del", "has", "keys",
		"entries", "clear", "persist", "reload", "snapshot",
	}},
	{"snapshot", []string{"create", "list"}},
	{"apikey", []string{"list", "create", "disable", "enable", "rotate"}},
	{"system", []string{"status", "health", "version"}},
	{"config", []string{"show", "path", "init"}},
	{"connect", nil},
	{"disconnect", nil},
	{"use", nil},
	{"help", nil},
	{"exit", nil},
	{"quit", nil},
}

// Completer suggests commands matching what has been typed so far.
type Completer struct {
	commands []string
}

// NewCompleter flattens the command tree into prefix-matchable entries.
func NewCompleter() *Completer {
	var cmds []string
	for _, group := range commandTree {
		cmds = append(cmds, group.name)
		for _, sub := range group.subs {
			cmds = append(cmds, group.name+" "+sub)
		}
	}
	return &Completer{commands: cmds}
}

// Complete returns every command starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var matches []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			matches = append(matches, cmd)
		}
	}
	return matches
}
