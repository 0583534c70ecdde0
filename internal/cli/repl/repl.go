package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Executor runs one parsed command line. The command layer supplies it
// so the loop stays free of CLI wiring.
type Executor func(args []string) error

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	input     io.Reader
	output    io.Writer
	completer *Completer
	history   *History
	execute   Executor
}

// New creates a new REPL instance.
func New(execute Executor) *REPL {
	return &REPL{
		input:     os.Stdin,
		output:    os.Stdout,
		completer: NewCompleter(),
		history:   NewHistory(),
		execute:   execute,
	}
}

// Run starts the REPL loop. History is loaded at start and persisted
// when the loop ends.
func (r *REPL) Run() error {
	_ = r.history.Load()
	defer r.history.Save()

	reader := bufio.NewReader(r.input)

	for {
		// Print prompt
		fmt.Fprint(r.output, "jsonkeep> ")

		// Read line
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			fmt.Fprintln(r.output)
			return nil
		}
		if err != nil {
			return err
		}

		// Trim and skip empty lines
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		// Add to history
		r.history.Add(line)

		// Handle special commands
		switch line {
		case "exit", "quit":
			return nil
		case "help":
			r.printHelp()
			continue
		}

		if r.execute == nil {
			continue
		}
		if err := r.execute(splitArgs(line)); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

// printHelp lists the top-level commands.
func (r *REPL) printHelp() {
	fmt.Fprintln(r.output, "Commands:")
	for _, cmd := range r.completer.commands {
		if !strings.Contains(cmd, " ") {
			fmt.Fprintf(r.output, "  %s\n", cmd)
		}
	}
	fmt.Fprintln(r.output, "Append --help to any command for details.")
}

// splitArgs splits a command line into fields, honoring single and
// double quotes. Wrapping a JSON value in single quotes keeps its
// spaces and inner double quotes intact.
func splitArgs(line string) []string {
	var args []string
	var cur strings.Builder
	var quote rune

	for _, r := range line {
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
		case quote != 0 && r == quote:
			quote = 0
		case (r == ' ' || r == '\t') && quote == 0:
			if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}
