package filter

import (
	"bufio"
	"context"
	"log/slog"
	"os/exec"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/winnow-sh/winnow"
)

// sourceBatchLines is how many scanned lines are appended per generation
// bump while the source command is still producing output.
const sourceBatchLines = 256

// Run executes the source command with `sh -c` in src.Dir, streaming its
// stdout lines into eng. It returns when the command exits or ctx is done.
// A failing or unparsable command is not an error; the engine is left with
// whatever lines arrived.
func Run(ctx context.Context, eng *Engine, src winnow.Source) {
	eng.Replace(nil)

	if src.Command == "" {
		slog.Debug("empty source command")
		return
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(src.Command), ""); err != nil {
		slog.Warn("source command does not parse as shell", "command", src.Command, "error", err)
		return
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", src.Command)
	if src.Dir != "" {
		cmd.Dir = src.Dir
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		slog.Debug("source command pipe error", "error", err)
		return
	}
	if err := cmd.Start(); err != nil {
		slog.Debug("source command failed to start", "command", src.Command, "error", err)
		return
	}

	total := 0
	scanner := bufio.NewScanner(stdout)
	// grep lines can be long
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	batch := make([]string, 0, sourceBatchLines)
	for scanner.Scan() {
		batch = append(batch, scanner.Text())
		if len(batch) >= sourceBatchLines {
			eng.Append(batch...)
			total += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		eng.Append(batch...)
		total += len(batch)
	}

	if err := cmd.Wait(); err != nil {
		slog.Debug("source command exited with error", "command", src.Command, "error", err)
	}
	slog.Debug("source scan complete", "command", src.Command, "lines", total)
}
