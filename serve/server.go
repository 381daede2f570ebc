package main

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/winnow-sh/winnow"
)

// defaultChunkBytes bounds one response line's payload when the config does
// not say otherwise.
const defaultChunkBytes = 4096

// Filterer owns the candidate snapshot for one picker session: it ingests a
// source instruction and answers filter requests against the latest snapshot.
type Filterer interface {
	Source(ctx context.Context, src winnow.Source)
	Filter(terms []string) []string
	Close()
}

// Server listens on a Unix domain socket for picker requests. Each request
// arrives as one line on a fresh connection; the connection closing is the
// client's only completion signal.
type Server struct {
	listener   net.Listener
	sockPath   string
	engine     Filterer
	chunkBytes int

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates an IPC server bound to the given socket path, backed by
// the streaming filter pipeline.
func NewServer(sockPath string, cfg *winnow.Config) (*Server, error) {
	return NewServerWithFilterer(sockPath, cfg, newPipeline(cfg))
}

// NewServerWithFilterer creates an IPC server with a custom Filterer.
func NewServerWithFilterer(sockPath string, cfg *winnow.Config, engine Filterer) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	chunk := defaultChunkBytes
	if cfg != nil && cfg.Filter.ChunkBytes > 0 {
		chunk = cfg.Filter.ChunkBytes
	}

	return &Server{
		listener:   listener,
		sockPath:   sockPath,
		engine:     engine,
		chunkBytes: chunk,
		done:       make(chan struct{}),
	}, nil
}

// Serve accepts connections and handles requests. It returns nil after a
// shutdown request or Close, and the accept error otherwise.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the server, the filter pipeline, and removes the socket
// file. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.engine.Close()
		s.listener.Close()
		os.Remove(s.sockPath)
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	raw := scanner.Bytes()
	slog.Debug("request", "data", string(raw))

	expr, err := winnow.DecodeRequest(raw)
	if err != nil {
		slog.Warn("invalid request", "error", err)
		return
	}

	switch expr.Op {
	case winnow.OpSource:
		s.handleSource(expr)
	case winnow.OpFilter:
		s.handleFilter(conn, expr.Terms)
	case winnow.OpShutdown:
		slog.Info("shutdown requested")
		conn.Close()
		s.Close()
	default:
		slog.Warn("unknown operation", "op", expr.Op)
	}
}

// handleSource installs the backing command. The scan runs in the background;
// the empty response tells the picker the instruction was accepted.
func (s *Server) handleSource(expr *winnow.Expr) {
	src := winnow.Source{Command: expr.Command, Dir: expr.Dir, Matcher: expr.Matcher}
	go s.engine.Source(context.Background(), src)
}

func (s *Server) handleFilter(conn net.Conn, terms []string) {
	candidates := s.engine.Filter(terms)
	payload := winnow.EncodeCandidates(candidates)

	slog.Debug("response", "candidates", len(candidates), "bytes", len(payload))

	if err := writeChunked(conn, payload, s.chunkBytes); err != nil {
		slog.Debug("client went away", "error", err)
	}
}

// writeChunked splits payload across response lines: the first chunk replaces
// the client's accumulator, the rest append to it.
func writeChunked(conn net.Conn, payload []byte, chunkBytes int) error {
	for off := 0; off < len(payload); off += chunkBytes {
		end := off + chunkBytes
		if end > len(payload) {
			end = len(payload)
		}
		if _, err := conn.Write(winnow.EncodeFragment(payload[off:end], off > 0)); err != nil {
			return err
		}
	}
	return nil
}
