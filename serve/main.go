// Command winnowd is the winnow filter worker.
// It listens on a Unix domain socket for requests from the picker, runs the
// backing source command, and answers filter requests with matching
// candidates.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/winnow-sh/winnow"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	socketPath := flag.String("socket", "", "unix socket path to listen on")
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and response")
	flag.Parse()

	if *showVersion {
		fmt.Println("winnowd", Version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if *socketPath == "" {
		fmt.Fprintln(os.Stderr, "winnowd: -socket is required")
		os.Exit(2)
	}

	cfg, err := winnow.LoadConfig()
	if err != nil {
		slog.Warn("config load failed, using defaults", "error", err)
		cfg = winnow.DefaultConfig()
	}

	slog.Info("starting", "socket", *socketPath)

	srv, err := NewServer(*socketPath, cfg)
	if err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down")
		srv.Close()
		os.Exit(0)
	}()

	slog.Info("ready")
	if err := srv.Serve(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}
