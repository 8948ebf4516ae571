package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eternalApril/minikv/internal/resp"
)

// Server accepts client connections and serves each of them on its own goroutine
type Server struct {
	engine   *Engine
	logger   *zap.Logger
	listener net.Listener
	closing  atomic.Bool

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a server that dispatches every request to engine
func NewServer(engine *Engine, logger *zap.Logger) *Server {
	return &Server{
		engine: engine,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on ln until Shutdown is called.
// It returns nil after a shutdown and the accept error otherwise
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	if s.closing.Load() {
		return ln.Close()
	}
	s.logger.Info("listening on", zap.Stringer("address", ln.Addr()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("Accept error", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !s.track(conn) {
			conn.Close() //nolint:errcheck
			return nil
		}

		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

// track registers a live connection, it refuses new ones once shutdown started
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing.Load() {
		return false
	}

	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConnection handles a connection for a single user
func (s *Server) handleConnection(conn net.Conn) {
	log := s.logger
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", conn.RemoteAddr().String()))
	}

	peer := NewPeer(conn)
	defer func() {
		peer.Close() //nolint:errcheck
		// log connection close
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected", zap.String("addr", conn.RemoteAddr().String()))
		}
	}()

	for {
		req, err := peer.ReadCommand()
		if err != nil {
			switch {
			case errors.Is(err, resp.ErrProtocol):
				log.Warn("protocol error, closing connection",
					zap.String("addr", conn.RemoteAddr().String()),
					zap.Error(err),
				)
				// best effort, the connection is dropped either way
				if peer.Send(resp.MakeError(err.Error())) == nil {
					peer.Flush() //nolint:errcheck
				}
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), s.closing.Load():
			default:
				log.Warn("read command failed", zap.Error(err))
			}
			return
		}

		result := s.engine.Handle(req)

		if err = peer.Send(result); err != nil {
			log.Error("error writing response", zap.Error(err))
			return
		}
	}
}

// Shutdown stops accepting, closes every client connection and waits for
// their handlers to return or for ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	if s.listener != nil {
		s.listener.Close() //nolint:errcheck
	}
	for conn := range s.conns {
		conn.Close() //nolint:errcheck
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
