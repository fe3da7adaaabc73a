// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stub implements a GDB remote stub for an emulated CPU.
//
// A Stub sits between two contexts. The CPU context runs the emulator's
// instruction loop and calls BeginInstruction and EndInstruction around
// every instruction it executes, consulting the stub's breakpoint registry
// and halting when asked. The session context services a debugger
// connection, decoding packets and dispatching them against the registry,
// the execution control state and the target's registers and memory.
//
// Both contexts share a single lock, which guards the breakpoint registry
// and the execution control state. Stop replies produced in the CPU context
// reach the session over a bounded channel.
package stub

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/beevik/gdbstub/breakpoint"
	"github.com/beevik/gdbstub/rsp"
)

// trapQueueSize bounds the number of stop replies waiting to be sent.
const trapQueueSize = 8

// A MonitorFunc runs a monitor command received in a qRcmd packet and
// returns the text it produced.
type MonitorFunc func(cmd string) (string, error)

// Options customize a Stub. The zero value selects defaults.
type Options struct {
	Logger        *slog.Logger // defaults to slog.Default()
	MaxPacketSize int          // defaults to rsp.DefaultMaxPacketSize
	Monitor       MonitorFunc  // handles qRcmd; nil disables monitor commands

	// HaltOnDisconnect keeps a halted CPU halted after the debugger
	// disconnects. By default the CPU resumes.
	HaltOnDisconnect bool
}

// A Stub holds the debugger state shared between the emulated CPU and a
// debugger session.
type Stub struct {
	target        Target
	log           *slog.Logger
	maxPacketSize int
	monitor       MonitorFunc
	haltOnDetach  bool

	mu       sync.RWMutex
	registry *breakpoint.Registry
	ctl      control
	resumed  chan struct{} // closed when the CPU leaves the halted state
	halted   chan struct{} // closed when the CPU enters the halted state
	lastStop string        // most recent stop reply

	traps chan string
}

// New creates a stub for the target. The CPU starts out running.
func New(target Target, opts *Options) *Stub {
	if opts == nil {
		opts = &Options{}
	}
	s := &Stub{
		target:        target,
		log:           opts.Logger,
		maxPacketSize: opts.MaxPacketSize,
		monitor:       opts.Monitor,
		haltOnDetach:  opts.HaltOnDisconnect,
		registry:      breakpoint.NewRegistry(),
		resumed:       make(chan struct{}),
		halted:        make(chan struct{}),
		traps:         make(chan string, trapQueueSize),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.maxPacketSize <= 0 {
		s.maxPacketSize = rsp.DefaultMaxPacketSize
	}
	close(s.resumed)
	return s
}

// Arch returns the architecture description of the target.
func (s *Stub) Arch() Arch {
	return s.target.Arch
}

// SetMonitor replaces the handler for qRcmd monitor commands.
func (s *Stub) SetMonitor(fn MonitorFunc) {
	s.mu.Lock()
	s.monitor = fn
	s.mu.Unlock()
}

// InsertBreakpoint adds a breakpoint to the registry.
func (s *Stub) InsertBreakpoint(addr uint64, kind breakpoint.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.InsertBreakpoint(addr, kind)
}

// RemoveBreakpoint removes a breakpoint from the registry.
func (s *Stub) RemoveBreakpoint(addr uint64, kind breakpoint.Kind) {
	s.mu.Lock()
	s.registry.RemoveBreakpoint(addr, kind)
	s.mu.Unlock()
}

// InsertWatchpoint adds a watchpoint to the registry. The watched base
// address is also added to the address set for the watchpoint's kind.
func (s *Stub) InsertWatchpoint(base, length uint64, kind breakpoint.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertWatchpointLocked(base, length, kind)
}

func (s *Stub) insertWatchpointLocked(base, length uint64, kind breakpoint.Kind) error {
	if err := s.registry.InsertWatchpoint(base, length, kind); err != nil {
		return err
	}
	return s.registry.InsertBreakpoint(base, kind)
}

// RemoveWatchpoint removes a watchpoint from the registry.
func (s *Stub) RemoveWatchpoint(base, length uint64, kind breakpoint.Kind) {
	s.mu.Lock()
	s.removeWatchpointLocked(base, length, kind)
	s.mu.Unlock()
}

func (s *Stub) removeWatchpointLocked(base, length uint64, kind breakpoint.Kind) {
	s.registry.RemoveWatchpoint(base, length, kind)
	for _, w := range s.registry.Watchpoints() {
		if w.Base == base && w.Kind == kind {
			return
		}
	}
	s.registry.RemoveBreakpoint(base, kind)
}

// Breakpoints returns the addresses of all breakpoints of a kind, in
// ascending order.
func (s *Stub) Breakpoints(kind breakpoint.Kind) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Breakpoints(kind)
}

// Watchpoints returns all registered watchpoints.
func (s *Stub) Watchpoints() []breakpoint.Watchpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Watchpoints()
}

// ClearBreakpoints removes every breakpoint and watchpoint. The registry is
// otherwise never cleared; breakpoints survive a debugger disconnecting so
// that a client may reattach to them.
func (s *Stub) ClearBreakpoints() {
	s.mu.Lock()
	s.registry.Clear()
	s.mu.Unlock()
}

// LastStop returns the most recent stop reply, or an empty string if the
// CPU has never halted.
func (s *Stub) LastStop() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStop
}

func (s *Stub) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("%s %s", s.target.Arch.Name, s.ctl.state)
}
