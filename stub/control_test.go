// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beevik/gdbstub/breakpoint"
	"github.com/beevik/gdbstub/stub"
)

func newHaltedStub(t *testing.T) (*machine, *stub.Stub) {
	t.Helper()
	m := newMachine()
	s := stub.New(m.target(), nil)
	s.Break()
	if s.BeginInstruction(m.pc()) {
		t.Fatal("instruction executed after a halt request")
	}
	return m, s
}

func expectHalted(t *testing.T, s *stub.Stub, exp bool) {
	t.Helper()
	if got := s.Halted(); got != exp {
		t.Errorf("halted incorrect. exp: %v, got: %v", exp, got)
	}
}

func expectSignal(t *testing.T, s *stub.Stub, exp int) {
	t.Helper()
	got, ok := s.LastSignal()
	if !ok || got != exp {
		t.Errorf("last signal incorrect. exp: %d, got: %d (ok=%v)", exp, got, ok)
	}
}

func TestInitiallyRunning(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	expectHalted(t, s, false)
	if _, ok := s.LastSignal(); ok {
		t.Errorf("last signal set before any halt")
	}
	if !s.BeginInstruction(codeStart) {
		t.Errorf("running CPU refused to execute")
	}
	if err := s.WaitWhileHalted(context.Background()); err != nil {
		t.Errorf("WaitWhileHalted failed on a running CPU: %v", err)
	}
}

func TestBreakHalts(t *testing.T) {
	_, s := newHaltedStub(t)
	expectHalted(t, s, true)
	expectSignal(t, s, stub.SignalInt)
	if !strings.HasPrefix(s.LastStop(), "T02") {
		t.Errorf("stop reply incorrect. got: %q", s.LastStop())
	}
	if s.Break() {
		t.Errorf("Break on a halted CPU returned true")
	}
	if s.HaltRequested() {
		t.Errorf("halt request not cleared by the halt")
	}
}

func TestStepHaltsAfterOneInstruction(t *testing.T) {
	m, s := newHaltedStub(t)

	s.Step()
	expectHalted(t, s, false)
	if !s.Stepping() {
		t.Errorf("step not requested")
	}

	pc := m.pc()
	if !s.BeginInstruction(pc) {
		t.Fatal("stepping CPU refused to execute")
	}
	m.execute(s, pc)
	s.EndInstruction()

	expectHalted(t, s, true)
	expectSignal(t, s, stub.SignalTrap)
	if s.BeginInstruction(m.pc()) {
		t.Errorf("second instruction executed after a step")
	}
	if s.Stepping() {
		t.Errorf("step still requested after halting")
	}
}

func TestStepWhileRunningIgnored(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	s.Step()
	if s.Stepping() {
		t.Errorf("step requested on a running CPU")
	}
}

func TestResumeSkipsBreakpoint(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	s.InsertBreakpoint(codeStart, breakpoint.Execute)

	if s.BeginInstruction(codeStart) {
		t.Fatal("breakpoint not hit")
	}
	expectSignal(t, s, stub.SignalTrap)

	s.Continue()
	if !s.BeginInstruction(codeStart) {
		t.Fatal("breakpoint hit again at the resume address")
	}
	m.execute(s, codeStart)
	s.EndInstruction()

	if !s.BeginInstruction(codeStart + 4) {
		t.Fatal("CPU halted without a breakpoint")
	}
	s.EndInstruction()

	// Returning to the breakpoint later hits it.
	if s.BeginInstruction(codeStart) {
		t.Errorf("breakpoint not hit on the second pass")
	}
}

func TestWatchpointHit(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	if err := s.InsertWatchpoint(storeAddr, 4, breakpoint.Write); err != nil {
		t.Fatal(err)
	}

	if !s.BeginInstruction(storePC) {
		t.Fatal("CPU refused to execute")
	}
	if base, ok := s.CheckWatchpoint(storeAddr+2, 2, breakpoint.Write); !ok || base != storeAddr {
		t.Fatalf("watchpoint check incorrect. exp: %#x, got: %#x (ok=%v)", storeAddr, base, ok)
	}
	s.WatchpointHit(storeAddr, breakpoint.Write)
	expectHalted(t, s, false)

	s.EndInstruction()
	expectHalted(t, s, true)
	if !strings.Contains(s.LastStop(), "watch:2000;") {
		t.Errorf("stop reply incorrect. got: %q", s.LastStop())
	}

	// The watched base address also lands in the write address set.
	if bp, ok := s.NearestBreakpoint(0, breakpoint.Write); !ok || bp.Address != storeAddr {
		t.Errorf("nearest write breakpoint incorrect. got: %v", bp)
	}
	s.RemoveWatchpoint(storeAddr, 4, breakpoint.Write)
	if _, ok := s.NearestBreakpoint(0, breakpoint.Write); ok {
		t.Errorf("write breakpoint left behind after removing the watchpoint")
	}
}

func TestSendTrap(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	s.SendTrap(stub.DefaultThread, stub.SignalIll)
	expectHalted(t, s, true)
	expectSignal(t, s, stub.SignalIll)

	exp := "T04" + stopPC(codeStart) + "02:f03f0000;thread:1;"
	if got := s.LastStop(); got != exp {
		t.Errorf("stop reply incorrect. exp: %q, got: %q", exp, got)
	}
}

func TestSendExit(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	s.SendExit(0x107)
	expectHalted(t, s, true)
	expectSignal(t, s, stub.SignalTrap)
	if got := s.LastStop(); got != "W07" {
		t.Errorf("stop reply incorrect. exp: %q, got: %q", "W07", got)
	}

	// An exit while halted is ignored.
	s.SendExit(1)
	if got := s.LastStop(); got != "W07" {
		t.Errorf("stop reply incorrect. exp: %q, got: %q", "W07", got)
	}
}

func TestWaitWhileHalted(t *testing.T) {
	_, s := newHaltedStub(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.WaitWhileHalted(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error incorrect. exp: %v, got: %v", context.DeadlineExceeded, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.WaitWhileHalted(context.Background())
	}()
	s.Continue()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitWhileHalted failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitWhileHalted did not return after resume")
	}
}

func TestWaitHalted(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.WaitHalted(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error incorrect. exp: %v, got: %v", context.DeadlineExceeded, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.WaitHalted(context.Background())
	}()
	s.SendTrap(stub.DefaultThread, stub.SignalTrap)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitHalted failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitHalted did not return after a halt")
	}

	// A halted CPU does not block, and resuming rearms the wait.
	if err := s.WaitHalted(context.Background()); err != nil {
		t.Errorf("WaitHalted failed on a halted CPU: %v", err)
	}
	s.Continue()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if err := s.WaitHalted(ctx2); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error after resume incorrect. exp: %v, got: %v", context.DeadlineExceeded, err)
	}
}

func TestResetClearsRequests(t *testing.T) {
	m := newMachine()
	s := stub.New(m.target(), nil)
	s.InsertBreakpoint(0x1010, breakpoint.Execute)
	s.Break()
	s.Reset()

	if s.HaltRequested() {
		t.Errorf("halt request survived reset")
	}
	if !s.BeginInstruction(codeStart) {
		t.Errorf("CPU halted after reset")
	}
	if bps := s.Breakpoints(breakpoint.Execute); len(bps) != 1 {
		t.Errorf("breakpoints lost on reset")
	}

	s.ClearBreakpoints()
	if bps := s.Breakpoints(breakpoint.Execute); len(bps) != 0 {
		t.Errorf("breakpoints survived clear")
	}
}
