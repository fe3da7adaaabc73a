// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub_test

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/beevik/gdbstub/stub"
)

func waitListening(t *testing.T, srv *stub.Server) net.Addr {
	t.Helper()
	select {
	case addr := <-srv.Listening():
		return addr
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start listening")
		return nil
	}
}

func dial(t *testing.T, addr net.Addr) *client {
	t.Helper()
	_, port, _ := net.SplitHostPort(addr.String())
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", port), 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return newClient(t, conn)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startServer(t *testing.T) (*stub.Server, *machine, *stub.Stub) {
	t.Helper()
	m := newMachine()
	s := stub.New(m.target(), nil)
	srv := stub.NewServer(s, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go m.run(ctx, s)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})
	return srv, m, s
}

func TestServerSingleClient(t *testing.T) {
	srv, _, _ := startServer(t)
	addr := waitListening(t, srv)

	first := dial(t, addr)
	if reply := first.exchange("?"); reply == "" || reply[0] != 'T' {
		t.Fatalf("stop reply incorrect. got: %q", reply)
	}
	if !srv.Connected() {
		t.Errorf("server not connected")
	}

	// A second debugger is turned away.
	second := dial(t, addr)
	second.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.r.ReadByte(); err != io.EOF {
		t.Errorf("second connection not closed. got err: %v", err)
	}
	eventually(t, "rejection count", func() bool { return srv.Rejected() == 1 })

	// The first debugger is unaffected.
	expectReply(t, first, "qC", "QC1")

	first.conn.Close()
	eventually(t, "disconnect", func() bool { return !srv.Connected() })
	if n := srv.Sessions(); n != 1 {
		t.Errorf("session count incorrect. exp: 1, got: %d", n)
	}
}

func TestServerToggle(t *testing.T) {
	srv, _, s := startServer(t)
	addr := waitListening(t, srv)

	c := dial(t, addr)
	c.exchange("?")
	eventually(t, "halt", s.Halted)

	// Disabling the server disconnects the debugger, which resumes the
	// CPU.
	srv.Toggle(false)
	if srv.Enabled() {
		t.Errorf("server still enabled")
	}
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	io.Copy(io.Discard, c.r)
	eventually(t, "disconnect", func() bool { return !srv.Connected() })
	eventually(t, "resume", func() bool { return !s.Halted() })

	srv.Toggle(true)
	addr = waitListening(t, srv)
	c = dial(t, addr)
	if reply := c.exchange("?"); reply == "" || reply[0] != 'T' {
		t.Errorf("stop reply incorrect. got: %q", reply)
	}
}

func TestServerSetPort(t *testing.T) {
	srv, _, _ := startServer(t)
	waitListening(t, srv)

	// Find a free port to move to.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	srv.SetPort(port)
	if srv.Port() != port {
		t.Errorf("port incorrect. exp: %d, got: %d", port, srv.Port())
	}
	addr := waitListening(t, srv)
	if got := addr.(*net.TCPAddr).Port; got != port {
		t.Errorf("listening port incorrect. exp: %d, got: %d", port, got)
	}
	c := dial(t, addr)
	expectReply(t, c, "qC", "QC1")
}
