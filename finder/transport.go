package finder

import (
	"bufio"
	"net"
	"sync/atomic"

	"github.com/winnow-sh/winnow"
)

const (
	reqPending int32 = iota
	reqCompleted
	reqAborted
)

// request is one in-flight query carried over its own connection.
type request struct {
	conn  net.Conn
	done  func(*request, []byte)
	state atomic.Int32
}

// sendExpr opens one connection to the worker, writes a single framed
// request, and consumes response fragments until the worker closes the
// connection. done then receives the request and its accumulated payload
// exactly once; abort suppresses the callback entirely.
func sendExpr(socketPath string, expr *winnow.Expr, done func(*request, []byte)) (*request, error) {
	line, err := winnow.EncodeRequest(expr)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(line); err != nil {
		conn.Close()
		return nil, err
	}

	r := &request{conn: conn, done: done}
	go r.read()
	return r, nil
}

// read accumulates response fragments: -print replaces the payload,
// -print-nonl extends it, anything else is skipped. Connection close is the
// only completion signal, so a mid-stream drop simply completes with
// whatever accumulated.
func (r *request) read() {
	var payload []byte
	scanner := bufio.NewScanner(r.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		frag, ok := winnow.DecodeFragment(scanner.Bytes())
		if !ok {
			continue
		}
		if frag.Append {
			payload = append(payload, frag.Payload...)
		} else {
			payload = frag.Payload
		}
	}
	r.conn.Close()

	if r.state.CompareAndSwap(reqPending, reqCompleted) && r.done != nil {
		r.done(r, payload)
	}
}

// abort closes the connection and suppresses the completion callback. Safe
// to call repeatedly and concurrently with completion; exactly one side
// wins.
func (r *request) abort() {
	r.state.CompareAndSwap(reqPending, reqAborted)
	r.conn.Close()
}
