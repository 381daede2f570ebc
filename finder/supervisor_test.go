package finder

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/winnow-sh/winnow"
)

func TestWaitReachable(t *testing.T) {
	path := testSocketPath()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ln.Close()
		os.Remove(path)
	})

	s := &Supervisor{SpawnTimeout: time.Second}
	if err := s.WaitReachable(context.Background(), path); err != nil {
		t.Fatalf("listener is up, got %v", err)
	}
}

func TestWaitReachableExpires(t *testing.T) {
	s := &Supervisor{SpawnTimeout: 200 * time.Millisecond}
	err := s.WaitReachable(context.Background(), testSocketPath())
	if err == nil {
		t.Fatal("expected timeout for missing socket")
	}
}

func TestWaitReachablePollsUntilListenerAppears(t *testing.T) {
	path := testSocketPath()
	lnCh := make(chan net.Listener, 1)
	go func() {
		time.Sleep(250 * time.Millisecond)
		ln, err := net.Listen("unix", path)
		if err == nil {
			lnCh <- ln
		}
	}()

	s := &Supervisor{SpawnTimeout: 2 * time.Second}
	if err := s.WaitReachable(context.Background(), path); err != nil {
		t.Fatalf("listener appeared within the timeout, got %v", err)
	}

	ln := <-lnCh
	ln.Close()
	os.Remove(path)
}

func TestWaitReachableHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Supervisor{SpawnTimeout: 5 * time.Second}
	start := time.Now()
	if err := s.WaitReachable(ctx, testSocketPath()); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("canceled wait took %v", elapsed)
	}
}

func TestInitializeSendsSourceInstruction(t *testing.T) {
	w := newFakeWorker(t, nil)

	s := &Supervisor{}
	s.Initialize(w.path, winnow.Source{Command: "find .", Dir: "/work", Matcher: winnow.MatchFuzzy})

	waitFor(t, func() bool { return len(w.requests()) == 1 })
	req := w.requests()[0]
	if req.Op != winnow.OpSource {
		t.Fatalf("expected source op, got %q", req.Op)
	}
	if req.Command != "find ." || req.Dir != "/work" || req.Matcher != winnow.MatchFuzzy {
		t.Errorf("unexpected source instruction %+v", req)
	}
}

func TestTerminateSendsShutdown(t *testing.T) {
	w := newFakeWorker(t, nil)

	s := &Supervisor{}
	s.Terminate(w.path)

	waitFor(t, func() bool { return len(w.requests()) == 1 })
	if op := w.requests()[0].Op; op != winnow.OpShutdown {
		t.Errorf("expected shutdown op, got %q", op)
	}
}

func TestTerminateSwallowsDialFailure(t *testing.T) {
	s := &Supervisor{}
	s.Terminate(testSocketPath()) // nothing listening; must not panic
}

func TestTerminateRemovesWorkerLog(t *testing.T) {
	w := newFakeWorker(t, nil)
	logPath := workerLogPath(w.path)
	if err := os.WriteFile(logPath, []byte("worker output\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := &Supervisor{}
	s.Terminate(w.path)

	if _, err := os.Stat(logPath); !os.IsNotExist(err) {
		os.Remove(logPath)
		t.Errorf("expected log gone after a delivered shutdown, stat err %v", err)
	}
}

func TestTerminateKeepsLogForUnreachableWorker(t *testing.T) {
	path := testSocketPath() // nothing listening
	logPath := workerLogPath(path)
	if err := os.WriteFile(logPath, []byte("crash trace\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(logPath) })

	s := &Supervisor{}
	s.Terminate(path)

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("expected log kept for diagnosis, got %v", err)
	}
}

func TestSpawnStartsWorkerAndOpensLog(t *testing.T) {
	path := testSocketPath()
	s := &Supervisor{WorkerPath: "true"} // any runnable binary will do
	if err := s.Spawn(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove(workerLogPath(path)) })

	if _, err := os.Stat(workerLogPath(path)); err != nil {
		t.Errorf("expected worker log next to the socket: %v", err)
	}
}

func TestSpawnMissingWorker(t *testing.T) {
	path := testSocketPath()
	s := &Supervisor{WorkerPath: "/nonexistent/winnowd-missing"}
	if err := s.Spawn(context.Background(), path); err == nil {
		t.Fatal("expected error for missing worker binary")
	}
	os.Remove(workerLogPath(path))
}

func TestSpawnHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Supervisor{WorkerPath: "true"}
	if err := s.Spawn(ctx, testSocketPath()); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestWorkerLogPath(t *testing.T) {
	if got := workerLogPath("/tmp/winnow-9-aa.sock"); got != "/tmp/winnow-9-aa.log" {
		t.Errorf("unexpected log path %q", got)
	}
}

func TestNewSupervisorDefaults(t *testing.T) {
	t.Setenv("WINNOW_WORKER", "/opt/bin/winnowd")

	s := NewSupervisor(nil)
	if s.WorkerPath != "/opt/bin/winnowd" {
		t.Errorf("expected worker path from environment, got %q", s.WorkerPath)
	}
	if s.SpawnTimeout != 5*time.Second {
		t.Errorf("expected default spawn timeout, got %v", s.SpawnTimeout)
	}
}
