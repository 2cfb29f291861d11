// Package main implements the command line interface for csvdb.
//
// EDUCATIONAL NOTES:
// ------------------
// Startup runs in a fixed order and stops at the first failure:
// 1. Parse flags into a config.Config
// 2. Install the process logger
// 3. Load the schema definition (a bad schema exits with status 1)
// 4. Instantiate the catalog, creating table directories and files
// 5. Open every table behind one executor
//
// After that the process runs a REPL (Read-Eval-Print Loop) on stdin and,
// when -http is set, an HTTP server next to it. Both share the executor,
// which runs one command at a time. The REPL ends on `exit`, end of input
// or an interrupt signal; the server is shut down when it does.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/cabewaldrop/csvdb/internal/catalog"
	"github.com/cabewaldrop/csvdb/internal/config"
	"github.com/cabewaldrop/csvdb/internal/logging"
	"github.com/cabewaldrop/csvdb/internal/schema"
	"github.com/cabewaldrop/csvdb/internal/sql/executor"
	"github.com/cabewaldrop/csvdb/internal/web"
)

var (
	errorColor  = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF6B6B"}
	accentColor = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C79FF"}
	mutedColor  = lipgloss.AdaptiveColor{Light: "#6C6C6C", Dark: "#9B9B9B"}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run starts csvdb and returns the process exit status.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ui := newStyles(stderr)

	cfg, err := config.Parse(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		ui.fatal(err)
		return 1
	}

	if cfg.ShowVersion {
		fmt.Fprintf(stdout, "csvdb version %s\n", config.Version)
		return 0
	}

	if err := logging.Init(cfg.Log); err != nil {
		ui.fatal(err)
		return 1
	}
	defer logging.Close()

	def, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		ui.fatal(err)
		return 1
	}

	cat, err := catalog.Create(cfg.DataDir, def, cfg.OnExisting)
	if err != nil {
		ui.fatal(err)
		return 1
	}

	exec, err := executor.New(cat)
	if err != nil {
		ui.fatal(err)
		return 1
	}

	ui.banner(cat)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		srv := web.NewServer(cfg.HTTPAddr, exec)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	g.Go(func() error {
		// Ending the REPL stops the HTTP server too.
		defer cancel()
		return newREPL(exec, stdin, stdout, ui).Run(gctx)
	})

	if err := g.Wait(); err != nil {
		ui.fatal(err)
		return 1
	}
	return 0
}

// styles renders diagnostics for the terminal on stderr.
type styles struct {
	w      io.Writer
	err    lipgloss.Style
	accent lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(w io.Writer) *styles {
	r := lipgloss.NewRenderer(w)
	return &styles{
		w:      w,
		err:    r.NewStyle().Foreground(errorColor).Bold(true),
		accent: r.NewStyle().Foreground(accentColor).Bold(true),
		muted:  r.NewStyle().Foreground(mutedColor),
	}
}

func (s *styles) fatal(err error) {
	fmt.Fprintln(s.w, s.err.Render("fatal:")+" "+err.Error())
}

func (s *styles) report(err error) {
	fmt.Fprintln(s.w, s.err.Render("error:")+" "+err.Error())
}

func (s *styles) banner(cat *catalog.Catalog) {
	fmt.Fprintln(s.w, s.accent.Render("csvdb "+config.Version)+
		s.muted.Render(fmt.Sprintf("  schema %s, %d table(s), data in %s", cat.SchemaName(), cat.Len(), cat.Root())))
	fmt.Fprintln(s.w, s.muted.Render("Type '.help' for usage hints or 'exit' to quit."))
}

func (s *styles) prompt() {
	fmt.Fprint(s.w, s.accent.Render("csvdb> "))
}
