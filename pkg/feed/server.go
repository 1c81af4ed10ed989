package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/errdeck/errdeck/internal/errx"
	"github.com/errdeck/errdeck/pkg/sink"
)

// Server accepts viewer-socket connections and applies incoming frames to
// a local notifier (typically a surface source or a printer). The
// optional raise callback services OpRaise frames.
type Server struct {
	notifier sink.Notifier
	raise    func() error
	logger   *slog.Logger
}

// NewServer creates a feed server applying frames to n. raise may be nil,
// in which case OpRaise frames are ignored.
func NewServer(n sink.Notifier, raise func() error, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		notifier: n,
		raise:    raise,
		logger:   logger.With("component", "feed"),
	}
}

// Serve listens on the unix socket at socketPath until ctx is done. A
// stale socket file from a previous run is removed before listening.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return errx.Wrap(ErrListen, err)
	}

	var (
		wg      sync.WaitGroup
		connsMu sync.Mutex
		conns   = make(map[net.Conn]struct{})
	)
	go func() {
		<-ctx.Done()
		ln.Close()
		connsMu.Lock()
		for conn := range conns {
			conn.Close()
		}
		connsMu.Unlock()
	}()

	s.logger.Info("feed listening", "socket", socketPath)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		connsMu.Lock()
		conns[conn] = struct{}{}
		connsMu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handle(conn)
			connsMu.Lock()
			delete(conns, conn)
			connsMu.Unlock()
		}()
	}
	wg.Wait()
	return nil
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	for {
		f, err := readFrame(conn)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.logger.Warn("dropping connection", "error", err)
			return
		}
		if err := s.apply(f); err != nil {
			s.logger.Warn("frame apply failed", "op", f.Op, "error", err)
		}
	}
}

func (s *Server) apply(f *Frame) error {
	switch f.Op {
	case OpAdd:
		return s.notifier.AddEntries(f.Entries)
	case OpRemove:
		return s.notifier.RemoveEntries(f.Entries)
	case OpRaise:
		if s.raise != nil {
			return s.raise()
		}
		return nil
	default:
		return errx.With(ErrDecodeFrame, ": unknown op %d", f.Op)
	}
}
