// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"go.uber.org/atomic"
)

// DefaultPort is the TCP port the server listens on unless told otherwise.
const DefaultPort = 24689

// A Server accepts debugger connections for a Stub. Only one debugger may
// be connected at a time; additional connections are closed as soon as
// they are accepted.
type Server struct {
	stub *Stub
	log  *slog.Logger

	enabled   *atomic.Bool
	connected *atomic.Bool
	sessions  *atomic.Uint64
	rejected  *atomic.Uint64

	mu      sync.Mutex
	port    int
	ln      net.Listener
	active  net.Conn
	changed chan struct{}
	addr    chan net.Addr
}

// NewServer creates a server for stub. The server is enabled and will
// listen on port once Serve is called.
func NewServer(stub *Stub, port int) *Server {
	return &Server{
		stub:      stub,
		log:       stub.log,
		enabled:   atomic.NewBool(true),
		connected: atomic.NewBool(false),
		sessions:  atomic.NewUint64(0),
		rejected:  atomic.NewUint64(0),
		port:      port,
		changed:   make(chan struct{}, 1),
		addr:      make(chan net.Addr, 1),
	}
}

// SetPort changes the port the server listens on. A running listener is
// restarted on the new port; a connected debugger is not disturbed.
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	if s.port == port {
		s.mu.Unlock()
		return
	}
	s.port = port
	s.mu.Unlock()
	s.restart()
}

// Port returns the configured port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Toggle enables or disables the server. Disabling the server closes the
// listener and disconnects the active debugger.
func (s *Server) Toggle(enabled bool) {
	if s.enabled.Swap(enabled) == enabled {
		return
	}
	if !enabled {
		s.mu.Lock()
		if s.active != nil {
			s.active.Close()
		}
		s.mu.Unlock()
	}
	s.restart()
}

// Enabled returns true if the server is enabled.
func (s *Server) Enabled() bool {
	return s.enabled.Load()
}

// Connected returns true if a debugger is connected.
func (s *Server) Connected() bool {
	return s.connected.Load()
}

// Sessions returns the number of debugger sessions served so far.
func (s *Server) Sessions() uint64 {
	return s.sessions.Load()
}

// Rejected returns the number of connections closed because a debugger
// was already connected.
func (s *Server) Rejected() uint64 {
	return s.rejected.Load()
}

// Addr returns the address of the active listener, or nil if the server is
// not listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listening returns a channel that receives the listener's address each
// time the server starts listening.
func (s *Server) Listening() <-chan net.Addr {
	return s.addr
}

// restart closes the current listener so that Serve picks up the new
// configuration.
func (s *Server) restart() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
	s.mu.Lock()
	if s.ln != nil {
		s.ln.Close()
	}
	s.mu.Unlock()
}

// Serve listens for debugger connections until ctx is done. Configuration
// changes made with SetPort and Toggle take effect while Serve runs.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ln != nil {
			s.ln.Close()
		}
		if s.active != nil {
			s.active.Close()
		}
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if s.enabled.Load() {
			ln, err := s.listen(ctx)
			if err != nil {
				s.log.Error("gdb server listen failed", "port", s.Port(), "err", err)
			} else {
				s.accept(ctx, ln, &wg)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.changed:
		}
	}
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	lc := net.ListenConfig{Control: setReuseAddr}
	addr := net.JoinHostPort("", strconv.Itoa(s.Port()))
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.log.Info("gdb server listening", "addr", ln.Addr())
	select {
	case s.addr <- ln.Addr():
	default:
	}
	return ln, nil
}

// accept accepts connections on ln until it is closed.
func (s *Server) accept(ctx context.Context, ln net.Listener, wg *sync.WaitGroup) {
	defer func() {
		s.mu.Lock()
		if s.ln == ln {
			s.ln = nil
		}
		s.mu.Unlock()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("gdb server accept failed", "err", err)
			}
			return
		}

		if !s.connected.CompareAndSwap(false, true) {
			s.rejected.Inc()
			s.log.Warn("debugger already connected; closing connection", "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}

		s.mu.Lock()
		s.active = conn
		s.mu.Unlock()
		s.sessions.Inc()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.stub.ServeConn(ctx, conn)

			s.mu.Lock()
			if s.active == conn {
				s.active = nil
			}
			s.mu.Unlock()
			s.connected.Store(false)
		}()
	}
}

// Close disables the server, closing its listener and any active
// connection.
func (s *Server) Close() error {
	s.Toggle(false)
	return nil
}
