package finder

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/winnow-sh/winnow"
)

// WorkerControl manages the lifecycle of one background worker process. The
// session uses it for spawning, readiness, and the two fire-and-forget
// instructions; tests substitute a stub.
type WorkerControl interface {
	Spawn(ctx context.Context, socketPath string) error
	WaitReachable(ctx context.Context, socketPath string) error
	Initialize(socketPath string, src winnow.Source)
	Terminate(socketPath string)
}

const reachPollInterval = 100 * time.Millisecond

// Supervisor runs winnowd workers as detached background processes.
type Supervisor struct {
	// WorkerPath is the winnowd executable to spawn.
	WorkerPath string
	// SpawnTimeout bounds WaitReachable.
	SpawnTimeout time.Duration
}

// NewSupervisor builds a Supervisor from config.
func NewSupervisor(cfg *winnow.Config) *Supervisor {
	return &Supervisor{
		WorkerPath:   winnow.ResolveWorkerPath(cfg),
		SpawnTimeout: winnow.SpawnTimeout(cfg),
	}
}

// Spawn starts a detached worker bound to socketPath. Worker stdout and
// stderr go to a log file next to the socket. The process runs
// independently; waiting for the socket to appear is WaitReachable's job.
func (s *Supervisor) Spawn(ctx context.Context, socketPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	logFile, err := os.OpenFile(workerLogPath(socketPath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open worker log: %w", err)
	}

	cmd := exec.Command(s.WorkerPath, "-socket", socketPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // new session, no controlling terminal
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("start worker %s: %w", s.WorkerPath, err)
	}
	logFile.Close()

	slog.Debug("worker spawned", "pid", cmd.Process.Pid, "socket", socketPath)
	return nil
}

// WaitReachable dial-polls socketPath until a connection succeeds or the
// spawn timeout expires. A successful dial is the only readiness signal;
// there is no protocol handshake.
func (s *Supervisor) WaitReachable(ctx context.Context, socketPath string) error {
	timeout := s.SpawnTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return fmt.Errorf("worker not reachable: %w", lastErr)
		}
		time.Sleep(reachPollInterval)
	}
}

// Initialize sends the one-shot source instruction. Best effort: until a
// source arrives the worker just serves an empty snapshot, so failures are
// logged and dropped.
func (s *Supervisor) Initialize(socketPath string, src winnow.Source) {
	if err := fireAndForget(socketPath, src.Expr()); err != nil {
		slog.Debug("source instruction failed", "socket", socketPath, "error", err)
	}
}

// Terminate asks the worker to exit. Best effort. A delivered shutdown also
// retires the worker log; an unreachable worker keeps its log so the failure
// can be diagnosed.
func (s *Supervisor) Terminate(socketPath string) {
	if err := fireAndForget(socketPath, &winnow.Expr{Op: winnow.OpShutdown}); err != nil {
		slog.Debug("shutdown instruction failed", "socket", socketPath, "error", err)
		return
	}
	if err := os.Remove(workerLogPath(socketPath)); err != nil && !os.IsNotExist(err) {
		slog.Debug("worker log not removed", "path", workerLogPath(socketPath), "error", err)
	}
}

// fireAndForget writes one request and closes without reading a response.
func fireAndForget(socketPath string, expr *winnow.Expr) error {
	line, err := winnow.EncodeRequest(expr)
	if err != nil {
		return err
	}
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(line)
	return err
}

// workerLogPath derives the worker log file from its socket path.
func workerLogPath(socketPath string) string {
	return strings.TrimSuffix(socketPath, ".sock") + ".log"
}
