// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"context"

	"github.com/beevik/gdbstub/breakpoint"
)

// State is the execution state of the emulated CPU.
type State byte

const (
	Running State = iota
	Halted
)

func (s State) String() string {
	if s == Halted {
		return "halted"
	}
	return "running"
}

// control is the execution control state shared by the CPU and the
// session. It is guarded by Stub.mu.
type control struct {
	state         State
	haltRequested bool
	stepRequested bool
	lastSignal    int
	hasSignal     bool

	// The breakpoint at the address the CPU resumed from is skipped once.
	skipValid bool
	skipPC    uint64

	// A watchpoint hit during the current instruction halts the CPU once
	// the instruction completes.
	watchPending bool
	watch        trap
}

// BeginInstruction is called by the CPU before it executes the instruction
// at pc. It returns false if the CPU must not execute the instruction,
// either because the CPU is halted or because it has just halted on a halt
// request or an execute breakpoint at pc. Once BeginInstruction returns
// false, the CPU should call WaitWhileHalted before polling again.
func (s *Stub) BeginInstruction(pc uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctl.state == Halted {
		return false
	}
	if s.ctl.haltRequested {
		s.haltLocked(DefaultThread, trap{signal: SignalInt})
		return false
	}

	skip := s.ctl.skipValid && s.ctl.skipPC == pc
	s.ctl.skipValid = false
	if !skip && s.registry.Has(pc, breakpoint.Execute) {
		s.haltLocked(DefaultThread, trap{signal: SignalTrap})
		return false
	}
	return true
}

// EndInstruction is called by the CPU after it finishes executing an
// instruction. It halts the CPU if a watchpoint was hit during the
// instruction or if the instruction was a single step.
func (s *Stub) EndInstruction() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctl.state == Halted {
		return
	}
	switch {
	case s.ctl.watchPending:
		s.haltLocked(DefaultThread, s.ctl.watch)
	case s.ctl.stepRequested:
		s.haltLocked(DefaultThread, trap{signal: SignalTrap})
	}
}

// WaitWhileHalted blocks until the CPU is resumed or ctx is done. It
// returns immediately if the CPU is running.
func (s *Stub) WaitWhileHalted(ctx context.Context) error {
	s.mu.RLock()
	resumed := s.resumed
	s.mu.RUnlock()

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitHalted blocks until the CPU halts or ctx is done. It returns
// immediately if the CPU is halted.
func (s *Stub) WaitHalted(ctx context.Context) error {
	s.mu.RLock()
	halted := s.halted
	s.mu.RUnlock()

	select {
	case <-halted:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NearestBreakpoint returns the breakpoint of the given kind with the
// smallest address at or after addr. Hosts use it to scan forward through
// code, for example to mark breakpoints in a disassembly.
func (s *Stub) NearestBreakpoint(addr uint64, kind breakpoint.Kind) (breakpoint.Breakpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.NearestAtOrAfter(addr, kind)
}

// CheckWatchpoint returns the base address of the first watchpoint
// overlapping the access [addr, addr+length) of the given kind.
func (s *Stub) CheckWatchpoint(addr, length uint64, kind breakpoint.Kind) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.CheckWatchpoint(addr, length, kind)
}

// WatchpointHit records that the current instruction triggered the
// watchpoint registered at addr with an access of the given kind. The CPU
// halts when the instruction completes. The address reported to the client
// is addr itself, so callers should pass the base address returned by
// CheckWatchpoint rather than the address of the access.
func (s *Stub) WatchpointHit(addr uint64, kind breakpoint.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctl.state == Halted || s.ctl.watchPending {
		return
	}
	if w, ok := s.registry.Watchpoint(addr, 1, kind); ok && w.Base == addr {
		kind = w.Kind
	}
	s.ctl.watchPending = true
	s.ctl.watch = trap{signal: SignalTrap, watchKind: kind, watchAddr: addr}
}

// SendTrap halts the CPU and reports signal to the debugger. The emulator
// calls it when the emulated program traps on its own, for example on an
// illegal instruction.
func (s *Stub) SendTrap(thread, signal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctl.state == Halted {
		return
	}
	s.haltLocked(thread, trap{signal: signal})
}

// SendExit halts the CPU and reports that the emulated program exited with
// the given code. Only the low 8 bits of the code reach the debugger. The
// last signal reads as SIGTRAP.
func (s *Stub) SendExit(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctl.state == Halted {
		return
	}
	s.haltLocked(DefaultThread, trap{signal: SignalTrap, exited: true, code: byte(code)})
}

// Break requests a halt on behalf of the emulator's user interface. The CPU
// halts the next time it calls BeginInstruction. It returns false if the
// CPU was already halted.
func (s *Stub) Break() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestHaltLocked()
}

func (s *Stub) requestHaltLocked() bool {
	if s.ctl.state == Halted {
		return false
	}
	s.ctl.haltRequested = true
	return true
}

// Continue resumes a halted CPU.
func (s *Stub) Continue() {
	s.mu.Lock()
	s.resumeLocked(false)
	s.mu.Unlock()
}

// Step resumes a halted CPU for exactly one instruction.
func (s *Stub) Step() {
	s.mu.Lock()
	s.resumeLocked(true)
	s.mu.Unlock()
}

func (s *Stub) resumeLocked(step bool) {
	if s.ctl.state != Halted {
		return
	}
	if pc, err := s.target.Registers.ReadRegister(s.target.Arch.PCRegister); err == nil {
		s.ctl.skipValid = true
		s.ctl.skipPC = pc
	}
	s.ctl.state = Running
	s.ctl.haltRequested = false
	s.ctl.stepRequested = step
	s.ctl.watchPending = false
	s.drainTraps()
	s.halted = make(chan struct{})
	close(s.resumed)
}

// haltLocked moves the CPU into the halted state and publishes a stop
// reply describing why.
func (s *Stub) haltLocked(thread int, t trap) {
	if s.ctl.state != Halted {
		close(s.halted)
	}
	s.ctl.state = Halted
	s.ctl.haltRequested = false
	s.ctl.stepRequested = false
	s.ctl.watchPending = false
	s.ctl.skipValid = false
	s.ctl.lastSignal = t.signal
	s.ctl.hasSignal = true
	s.resumed = make(chan struct{})

	reply := s.report(thread, t)
	s.lastStop = reply
	s.publish(reply)
}

// publish queues a stop reply for the session, discarding the oldest
// queued reply if the queue is full.
func (s *Stub) publish(reply string) {
	for {
		select {
		case s.traps <- reply:
			return
		default:
		}
		select {
		case <-s.traps:
		default:
		}
	}
}

// Halted returns true if the CPU is halted.
func (s *Stub) Halted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctl.state == Halted
}

// Stepping returns true if the CPU is executing a single step.
func (s *Stub) Stepping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctl.stepRequested
}

// HaltRequested returns true if a halt has been requested but not yet
// observed by the CPU.
func (s *Stub) HaltRequested() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctl.haltRequested
}

// LastSignal returns the signal reported when the CPU last halted. The
// second return value is false if the CPU has never halted.
func (s *Stub) LastSignal() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctl.lastSignal, s.ctl.hasSignal
}

// Reset clears the halt and step requests and discards queued stop
// replies. It is called whenever a debugger connects or disconnects. The
// breakpoint registry and the halted state itself are left alone.
func (s *Stub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctl.haltRequested = false
	s.ctl.stepRequested = false
	s.ctl.watchPending = false
	s.drainTraps()
}

// drainTraps discards stop replies that no session has consumed.
func (s *Stub) drainTraps() {
	for {
		select {
		case <-s.traps:
		default:
			return
		}
	}
}
