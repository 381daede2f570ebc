// Command winnow is an interactive fuzzy picker. It spawns a winnowd worker
// for the session, streams the pattern to it as you type, and prints the
// selected candidate to stdout.
//
// Usage:
//
//	winnow                    # pick a file under the current directory
//	winnow -mode grep         # pick a grep hit
//	winnow -dir /some/where   # pick against another directory
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/winnow-sh/winnow"
	"github.com/winnow-sh/winnow/filter"
	"github.com/winnow-sh/winnow/finder"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	mode := flag.String("mode", "find", "picker mode: find or grep")
	dir := flag.String("dir", "", "directory to pick in (default: current directory)")
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log session events to stderr")
	flag.Parse()

	if *showVersion {
		fmt.Println("winnow", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "winnow: stdin is not a terminal")
		os.Exit(2)
	}

	cfg, err := winnow.LoadConfig()
	if err != nil {
		slog.Warn("config load failed, using defaults", "error", err)
		cfg = winnow.DefaultConfig()
	}
	for _, warning := range winnow.ValidateConfig(cfg) {
		slog.Warn("config", "warning", warning)
	}

	if *dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "winnow: cannot determine cwd: %v\n", err)
			os.Exit(1)
		}
		*dir = cwd
	}

	src, err := winnow.SourceFor(cfg, *mode, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "winnow: %v\n", err)
		os.Exit(2)
	}

	socketPath := winnow.SocketPath(cfg)
	events := make(chan finder.Event, 256)

	sess, err := finder.NewSession(finder.Params{
		Source:     src,
		SocketPath: socketPath,
		Transform:  filter.Transform,
		Sink:       func(e finder.Event) { events <- e },
		Control:    finder.NewSupervisor(cfg),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "winnow: %v\n", err)
		os.Exit(1)
	}

	// When stdout is redirected the UI moves to stderr so only the selection
	// lands in the pipe.
	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		opts = append(opts, tea.WithOutput(os.Stderr))
	}
	p := tea.NewProgram(newModel(sess, events, *mode, *dir, src.Matcher), opts...)

	go func() {
		if err := sess.Setup(context.Background()); err != nil {
			p.Send(setupErrMsg{err: err})
			return
		}
		p.Send(setupDoneMsg{})
	}()

	finalModel, err := p.Run()
	sess.Destroy()
	if err != nil {
		fmt.Fprintf(os.Stderr, "winnow: %v\n", err)
		os.Exit(1)
	}

	m := finalModel.(model)
	if m.setupErr != nil {
		fmt.Fprintf(os.Stderr, "winnow: %v\n", m.setupErr)
		os.Exit(1)
	}
	if m.selected == "" {
		os.Exit(1)
	}
	fmt.Println(m.selected)
}
