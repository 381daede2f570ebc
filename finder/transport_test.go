package finder

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/winnow-sh/winnow"
)

var testSocketCounter atomic.Int64

func testSocketPath() string {
	// Use /tmp directly to stay under the unix socket path length limit
	return fmt.Sprintf("/tmp/winnow-t%d-%d.sock", os.Getpid(), testSocketCounter.Add(1))
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

// fakeWorker listens on a real unix socket, records each decoded request,
// and hands the connection to handle.
type fakeWorker struct {
	path     string
	listener net.Listener

	mu    sync.Mutex
	exprs []*winnow.Expr
}

func newFakeWorker(t *testing.T, handle func(conn net.Conn, expr *winnow.Expr)) *fakeWorker {
	t.Helper()
	path := testSocketPath()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	w := &fakeWorker{path: path, listener: ln}
	t.Cleanup(func() {
		ln.Close()
		os.Remove(path)
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				scanner := bufio.NewScanner(conn)
				if !scanner.Scan() {
					return
				}
				expr, err := winnow.DecodeRequest(scanner.Bytes())
				if err != nil {
					return
				}
				w.mu.Lock()
				w.exprs = append(w.exprs, expr)
				w.mu.Unlock()
				if handle != nil {
					handle(conn, expr)
				}
			}()
		}
	}()
	return w
}

func (w *fakeWorker) requests() []*winnow.Expr {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*winnow.Expr(nil), w.exprs...)
}

// answer writes the candidate list as a single -print line.
func answer(conn net.Conn, candidates []string) {
	conn.Write(winnow.EncodeFragment(winnow.EncodeCandidates(candidates), false))
}

func TestSendExprRoundTrip(t *testing.T) {
	w := newFakeWorker(t, func(conn net.Conn, _ *winnow.Expr) {
		answer(conn, []string{"result"})
	})

	done := make(chan []byte, 1)
	_, err := sendExpr(w.path, &winnow.Expr{Op: winnow.OpFilter, Terms: []string{"a b"}}, func(_ *request, payload []byte) {
		done <- payload
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-done:
		got := winnow.DecodeCandidates(payload)
		if len(got) != 1 || got[0] != "result" {
			t.Errorf("unexpected candidates %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}

	reqs := w.requests()
	if len(reqs) != 1 || reqs[0].Op != winnow.OpFilter {
		t.Fatalf("unexpected requests %+v", reqs)
	}
	if len(reqs[0].Terms) != 1 || reqs[0].Terms[0] != "a b" {
		t.Errorf("term with space must survive the wire, got %v", reqs[0].Terms)
	}
}

func TestRequestAccumulatesFragments(t *testing.T) {
	w := newFakeWorker(t, func(conn net.Conn, _ *winnow.Expr) {
		// one payload split mid-token across print and print-nonl
		conn.Write(winnow.EncodeFragment([]byte(`["alpha","be`), false))
		conn.Write(winnow.EncodeFragment([]byte(`ta"]`), true))
	})

	done := make(chan []byte, 1)
	if _, err := sendExpr(w.path, &winnow.Expr{Op: winnow.OpFilter}, func(_ *request, payload []byte) {
		done <- payload
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-done:
		got := winnow.DecodeCandidates(payload)
		if len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
			t.Errorf("expected [alpha beta], got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestRequestPrintReplacesAccumulator(t *testing.T) {
	w := newFakeWorker(t, func(conn net.Conn, _ *winnow.Expr) {
		conn.Write(winnow.EncodeFragment([]byte(`["stale"]`), false))
		conn.Write(winnow.EncodeFragment([]byte(`["fresh"]`), false))
	})

	done := make(chan []byte, 1)
	if _, err := sendExpr(w.path, &winnow.Expr{Op: winnow.OpFilter}, func(_ *request, payload []byte) {
		done <- payload
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-done:
		got := winnow.DecodeCandidates(payload)
		if len(got) != 1 || got[0] != "fresh" {
			t.Errorf("-print must replace the accumulator, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestRequestIgnoresUnknownLines(t *testing.T) {
	w := newFakeWorker(t, func(conn net.Conn, _ *winnow.Expr) {
		conn.Write([]byte("# warming up\n"))
		answer(conn, []string{"ok"})
	})

	done := make(chan []byte, 1)
	if _, err := sendExpr(w.path, &winnow.Expr{Op: winnow.OpFilter}, func(_ *request, payload []byte) {
		done <- payload
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-done:
		got := winnow.DecodeCandidates(payload)
		if len(got) != 1 || got[0] != "ok" {
			t.Errorf("unexpected candidates %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestRequestCloseWithoutResponse(t *testing.T) {
	w := newFakeWorker(t, nil) // request is recorded, connection closed silently

	done := make(chan []byte, 1)
	if _, err := sendExpr(w.path, &winnow.Expr{Op: winnow.OpFilter}, func(_ *request, payload []byte) {
		done <- payload
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-done:
		if got := winnow.DecodeCandidates(payload); len(got) != 0 {
			t.Errorf("expected no candidates, got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("a silent close must still complete the request")
	}
}

func TestRequestAbortSuppressesCompletion(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	w := newFakeWorker(t, func(net.Conn, *winnow.Expr) { <-gate })

	fired := make(chan struct{}, 1)
	req, err := sendExpr(w.path, &winnow.Expr{Op: winnow.OpFilter}, func(*request, []byte) {
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatal(err)
	}

	req.abort()
	req.abort() // idempotent

	select {
	case <-fired:
		t.Fatal("aborted request must not complete")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSendExprDialFailure(t *testing.T) {
	_, err := sendExpr(testSocketPath(), &winnow.Expr{Op: winnow.OpFilter}, nil)
	if err == nil {
		t.Fatal("expected dial error for missing socket")
	}
}

func TestSendExprRejectsEmptyExpr(t *testing.T) {
	if _, err := sendExpr(testSocketPath(), nil, nil); err == nil {
		t.Fatal("expected encode error for nil expression")
	}
}
