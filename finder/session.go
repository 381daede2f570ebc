package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/winnow-sh/winnow"
)

type sessionState int

const (
	stateUninitialized sessionState = iota
	stateReady
	stateQuerying
	stateDestroyed
)

func (st sessionState) String() string {
	switch st {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateQuerying:
		return "querying"
	case stateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// TransformFunc turns pattern text into query terms.
type TransformFunc func(pattern string) []string

// Params configures a Session.
type Params struct {
	// Source is the backing command the worker will run.
	Source winnow.Source
	// SocketPath is the unix socket the worker binds. Required.
	SocketPath string
	// Transform turns pattern text into query terms. Defaults to
	// whitespace splitting.
	Transform TransformFunc
	// Sink receives lifecycle events. Required.
	Sink Sink
	// Control spawns and tears down the worker. Required.
	Control WorkerControl
}

// Session coordinates queries for one picker invocation. It owns one
// worker, keeps at most one request in flight as the pattern changes, and
// delivers results to the sink in a fixed order per answered query.
//
// States: uninitialized, ready, querying, destroyed. Setup moves the
// session to ready, Input bounces it between ready and querying, Destroy is
// terminal from anywhere.
type Session struct {
	source     winnow.Source
	socketPath string
	transform  TransformFunc
	sink       Sink
	control    WorkerControl

	mu          sync.Mutex
	state       sessionState
	lastPattern string
	cur         *request
}

// NewSession validates params and returns a session in the uninitialized
// state. Call Setup before Input.
func NewSession(p Params) (*Session, error) {
	if p.Sink == nil {
		return nil, errors.New("finder: nil sink")
	}
	if p.Control == nil {
		return nil, errors.New("finder: nil worker control")
	}
	if p.SocketPath == "" {
		return nil, errors.New("finder: empty socket path")
	}
	if p.Transform == nil {
		p.Transform = func(pattern string) []string { return strings.Fields(pattern) }
	}
	return &Session{
		source:     p.Source,
		socketPath: p.SocketPath,
		transform:  p.Transform,
		sink:       p.Sink,
		control:    p.Control,
	}, nil
}

// Setup spawns the worker, waits for its socket to become reachable, and
// sends the source instruction. EventBegin is emitted first. On spawn or
// reachability failure the session is unusable, though Destroy stays safe.
func (s *Session) Setup(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateUninitialized {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("finder: setup in %s state", st)
	}
	s.sink(EventBegin{})
	s.mu.Unlock()

	if err := s.control.Spawn(ctx, s.socketPath); err != nil {
		return fmt.Errorf("spawn worker: %w", err)
	}
	if err := s.control.WaitReachable(ctx, s.socketPath); err != nil {
		return fmt.Errorf("wait for worker: %w", err)
	}
	s.control.Initialize(s.socketPath, s.source)

	s.mu.Lock()
	if s.state == stateDestroyed {
		s.mu.Unlock()
		s.control.Terminate(s.socketPath)
		return errors.New("finder: session destroyed during setup")
	}
	s.state = stateReady
	s.mu.Unlock()
	return nil
}

// Input reacts to new pattern text. Empty patterns, repeats of the last
// dispatched pattern, and input outside the ready/querying states are
// ignored. Otherwise any in-flight request is aborted and the new pattern
// dispatched; its term list may legitimately be empty, which asks the
// worker for its unfiltered snapshot.
func (s *Session) Input(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateReady && s.state != stateQuerying {
		return
	}
	if pattern == "" || pattern == s.lastPattern {
		return
	}

	if s.cur != nil {
		s.cur.abort()
		s.cur = nil
		s.state = stateReady
	}

	terms := s.transform(pattern)
	req, err := sendExpr(s.socketPath, &winnow.Expr{Op: winnow.OpFilter, Terms: terms}, s.complete)
	if err != nil {
		slog.Debug("query dispatch failed", "pattern", pattern, "error", err)
		return
	}
	s.cur = req
	s.lastPattern = pattern
	s.state = stateQuerying
}

// complete runs on the transport reader goroutine when a request finishes.
// Superseded requests are dropped twice over: abort suppresses their
// callback, and the identity check here covers a completion already in
// flight when the abort landed.
func (s *Session) complete(req *request, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateQuerying || s.cur != req {
		return
	}
	s.cur = nil
	s.state = stateReady

	s.sink(EventFlush{})
	s.sink(EventAppend{Candidates: winnow.DecodeCandidates(payload)})
	s.sink(EventRefresh{})
}

// Destroy tears the session down from any state: the in-flight request is
// aborted, the worker is asked to exit, and EventDestroyed is emitted as
// the final event. Calling Destroy again is a no-op.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.state == stateDestroyed {
		s.mu.Unlock()
		return
	}
	if s.cur != nil {
		s.cur.abort()
		s.cur = nil
	}
	s.state = stateDestroyed
	s.sink(EventDestroyed{})
	s.mu.Unlock()

	s.control.Terminate(s.socketPath)
}
