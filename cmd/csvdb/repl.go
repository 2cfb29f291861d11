package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cabewaldrop/csvdb/internal/sql/executor"
)

// dotCommands are special commands starting with '.'
var dotCommands = []struct {
	name, desc string
}{
	{".help", "Show this help message"},
	{".tables", "List all tables"},
	{".schema", "Show the columns of all tables or a specific table"},
	{".stats", "Show pages, next key and lock state of a table"},
	{".mode", "Switch output between 'csv' and 'box'"},
}

// repl implements the Read-Eval-Print Loop. One line is one command.
type repl struct {
	exec  *executor.Executor
	in    io.Reader
	out   io.Writer
	ui    *styles
	boxed bool
}

func newREPL(exec *executor.Executor, in io.Reader, out io.Writer, ui *styles) *repl {
	return &repl{exec: exec, in: in, out: out, ui: ui}
}

// Run reads commands until `exit`, end of input or ctx is cancelled.
// Command errors are reported and the loop continues.
func (r *repl) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	// The reader goroutine may stay blocked on stdin after Run returns; it
	// ends with the process.
	go func() {
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	for {
		r.ui.prompt()

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(r.ui.w)
			if err := <-readErr; err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			return nil
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit":
			return nil
		case strings.HasPrefix(line, "."):
			r.dotCommand(line)
		default:
			r.execute(line)
		}
	}
}

// execute runs one command and prints its result.
func (r *repl) execute(line string) {
	result, err := r.exec.ExecuteCommand(line)
	if err != nil {
		r.ui.report(err)
		return
	}

	out := result.String()
	if r.boxed {
		out = strings.TrimSuffix(result.Table(), "\n")
	}
	fmt.Fprintln(r.out, out)
}

// dotCommand processes special dot commands.
func (r *repl) dotCommand(line string) {
	parts := strings.Fields(line)

	switch parts[0] {
	case ".help":
		fmt.Fprintln(r.out, "Available commands:")
		for _, c := range dotCommands {
			fmt.Fprintf(r.out, "  %-10s %s\n", c.name, c.desc)
		}
		fmt.Fprintf(r.out, "  %-10s %s\n", "exit", "Exit the program")
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, "Commands:")
		fmt.Fprintln(r.out, "  INSERT INTO table [(columns)] VALUES (values)")
		fmt.Fprintln(r.out, "  SELECT columns FROM table[, table2] [WHERE condition]")
		fmt.Fprintln(r.out, "  conditions: col = v, col > n, col < n, col startsWith 'p', AND, OR, ( )")

	case ".tables":
		for _, name := range r.exec.Tables() {
			fmt.Fprintln(r.out, name)
		}

	case ".schema":
		names := parts[1:]
		if len(names) == 0 {
			names = r.exec.Tables()
		}
		for _, name := range names {
			tbl, ok := r.exec.Table(name)
			if !ok {
				r.ui.report(fmt.Errorf("table %q not found", name))
				continue
			}
			fmt.Fprintf(r.out, "%s(%s)\n", name, strings.Join(tbl.Header(), ", "))
		}

	case ".stats":
		if len(parts) != 2 {
			r.ui.report(fmt.Errorf("usage: .stats <table>"))
			return
		}
		stats, err := r.exec.Stats(parts[1])
		if err != nil {
			r.ui.report(err)
			return
		}
		fmt.Fprintf(r.out, "%s: pages=%d next_key=%d lock=%s\n", parts[1], stats.Pages, stats.NextKey, stats.LockState)

	case ".mode":
		if len(parts) != 2 || (parts[1] != "csv" && parts[1] != "box") {
			r.ui.report(fmt.Errorf("usage: .mode csv|box"))
			return
		}
		r.boxed = parts[1] == "box"

	default:
		r.ui.report(fmt.Errorf("unknown command %s; type '.help' for available commands", parts[0]))
	}
}
