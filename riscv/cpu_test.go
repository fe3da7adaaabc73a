// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package riscv_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/beevik/gdbstub/asm"
	"github.com/beevik/gdbstub/breakpoint"
	"github.com/beevik/gdbstub/riscv"
	"github.com/beevik/gdbstub/stub"
)

const (
	memBase = 0x1000
	memSize = 0x1000
)

func load(t *testing.T, code string) (*riscv.CPU, *asm.Assembly) {
	t.Helper()
	assembly, err := asm.Assemble(strings.NewReader(code), "test", memBase)
	if err != nil {
		t.Fatalf("%v: %v", err, assembly.Errors)
	}
	mem := riscv.NewFlatMemory(memBase, memSize)
	if err := mem.Store(memBase, assembly.Code); err != nil {
		t.Fatal(err)
	}
	cpu := riscv.NewCPU(mem)
	cpu.Reset(memBase)
	cpu.Reg.X[riscv.RegSP] = memBase + memSize - 16
	return cpu, assembly
}

func expectReg(t *testing.T, cpu *riscv.CPU, name string, exp uint32) {
	t.Helper()
	n, _ := riscv.LookupRegister(name)
	if got := cpu.Reg.Get(n); got != exp {
		t.Errorf("%s incorrect. exp: %08x, got: %08x", name, exp, got)
	}
}

func expectCause(t *testing.T, err error, exp riscv.Cause) *riscv.Exception {
	t.Helper()
	var exc *riscv.Exception
	if !errors.As(err, &exc) {
		t.Fatalf("expected an exception, got: %v", err)
	}
	if exc.Cause != exp {
		t.Errorf("cause incorrect. exp: %v, got: %v", exp, exc.Cause)
	}
	return exc
}

func TestSumLoop(t *testing.T) {
	cpu, _ := load(t, `
	li a0, 10
	li a1, 0
loop:
	add a1, a1, a0
	addi a0, a0, -1
	bnez a0, loop
	mv a0, a1
	li a7, 93
	ecall`)

	err := cpu.Run(context.Background())
	if err != riscv.ErrExited {
		t.Fatalf("expected ErrExited, got: %v", err)
	}
	if !cpu.Exited || cpu.ExitCode != 55 {
		t.Errorf("exit incorrect. exp: 55, got: %v %d", cpu.Exited, cpu.ExitCode)
	}
	if got := cpu.Retired(); got != 35 {
		t.Errorf("retired incorrect. exp: %d, got: %d", 35, got)
	}
}

func TestLoadStore(t *testing.T) {
	cpu, _ := load(t, `
	la t0, data
	li t1, -2
	sb t1, 0(t0)
	lb a0, 0(t0)
	lbu a1, 0(t0)
	li t1, 0x8001
	sh t1, 4(t0)
	lh a2, 4(t0)
	lhu a3, 4(t0)
	lw a4, 8(t0)
	ebreak
data:
	.word 0, 0, 0x12345678`)

	expectCause(t, cpu.Run(context.Background()), riscv.CauseBreakpoint)
	expectReg(t, cpu, "a0", 0xfffffffe)
	expectReg(t, cpu, "a1", 0x000000fe)
	expectReg(t, cpu, "a2", 0xffff8001)
	expectReg(t, cpu, "a3", 0x00008001)
	expectReg(t, cpu, "a4", 0x12345678)
}

func TestShiftsAndCompares(t *testing.T) {
	cpu, _ := load(t, `
	li t0, -16
	srai a0, t0, 2
	srli a1, t0, 28
	slli a2, t0, 1
	slti a3, t0, 0
	sltiu a4, t0, 1
	li t1, 3
	sltu a5, t1, t0
	sub a6, t1, t0
	ebreak`)

	expectCause(t, cpu.Run(context.Background()), riscv.CauseBreakpoint)
	expectReg(t, cpu, "a0", 0xfffffffc)
	expectReg(t, cpu, "a1", 0x0000000f)
	expectReg(t, cpu, "a2", 0xffffffe0)
	expectReg(t, cpu, "a3", 1)
	expectReg(t, cpu, "a4", 0)
	expectReg(t, cpu, "a5", 1)
	expectReg(t, cpu, "a6", 19)
}

func TestCallReturn(t *testing.T) {
	cpu, _ := load(t, `
	call double
	ebreak
double:
	li a0, 21
	add a0, a0, a0
	ret`)

	exc := expectCause(t, cpu.Run(context.Background()), riscv.CauseBreakpoint)
	expectReg(t, cpu, "a0", 42)
	if exc.PC != memBase+4 {
		t.Errorf("pc incorrect. exp: %x, got: %x", memBase+4, exc.PC)
	}
	if cpu.Reg.PC != memBase+8 {
		t.Errorf("pc incorrect. exp: %x, got: %x", memBase+8, cpu.Reg.PC)
	}
}

func TestZeroRegister(t *testing.T) {
	cpu, _ := load(t, `
	addi zero, zero, 5
	ebreak`)

	expectCause(t, cpu.Run(context.Background()), riscv.CauseBreakpoint)
	expectReg(t, cpu, "zero", 0)
}

func TestConsoleWrite(t *testing.T) {
	cpu, _ := load(t, `
	li a0, 1
	la a1, msg
	li a2, 5
	li a7, 64
	ecall
	mv s1, a0
	li a0, 0
	li a7, 93
	ecall
msg:
	.ascii "hello"`)

	var out strings.Builder
	cpu.AttachConsole(func(b []byte) { out.Write(b) })

	if err := cpu.Run(context.Background()); err != riscv.ErrExited {
		t.Fatalf("expected ErrExited, got: %v", err)
	}
	if out.String() != "hello" {
		t.Errorf("console incorrect. exp: %q, got: %q", "hello", out.String())
	}
	expectReg(t, cpu, "s1", 5)
}

func TestIllegalInstruction(t *testing.T) {
	cpu, _ := load(t, `
	nop
	.word 0xffffffff`)

	exc := expectCause(t, cpu.Run(context.Background()), riscv.CauseIllegalInstruction)
	if exc.Signal() != stub.SignalIll {
		t.Errorf("signal incorrect. exp: %d, got: %d", stub.SignalIll, exc.Signal())
	}
	if cpu.Reg.PC != memBase+4 {
		t.Errorf("pc incorrect. exp: %x, got: %x", memBase+4, cpu.Reg.PC)
	}
}

func TestLoadFault(t *testing.T) {
	cpu, _ := load(t, `
	lw a0, 0(zero)`)

	exc := expectCause(t, cpu.Run(context.Background()), riscv.CauseLoadFault)
	if exc.Signal() != stub.SignalSegv {
		t.Errorf("signal incorrect. exp: %d, got: %d", stub.SignalSegv, exc.Signal())
	}
}

func TestUnknownSyscall(t *testing.T) {
	cpu, _ := load(t, `
	li a7, 1000
	ecall`)

	exc := expectCause(t, cpu.Run(context.Background()), riscv.CauseEcall)
	if exc.Value != 1000 {
		t.Errorf("value incorrect. exp: %d, got: %d", 1000, exc.Value)
	}
}

// debugged runs the CPU under a stub until the test ends.
func debugged(t *testing.T, cpu *riscv.CPU, setup func(s *stub.Stub)) *stub.Stub {
	t.Helper()
	s := stub.New(cpu.Target(), nil)
	cpu.AttachDebugger(s)
	if setup != nil {
		setup(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cpu.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("run incorrect. exp: %v, got: %v", context.Canceled, err)
			}
		case <-time.After(2 * time.Second):
			t.Error("cpu did not stop")
		}
	})
	return s
}

func waitHalted(t *testing.T, s *stub.Stub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Halted() {
		if time.Now().After(deadline) {
			t.Fatal("cpu did not halt")
		}
		time.Sleep(time.Millisecond)
	}
}

func expectSignal(t *testing.T, s *stub.Stub, exp int) {
	t.Helper()
	if sig, ok := s.LastSignal(); !ok || sig != exp {
		t.Errorf("signal incorrect. exp: %d, got: %d", exp, sig)
	}
}

func TestDebuggerEbreak(t *testing.T) {
	cpu, _ := load(t, `
	nop
	ebreak
spin:
	j spin`)

	s := debugged(t, cpu, nil)
	waitHalted(t, s)
	expectSignal(t, s, stub.SignalTrap)
	if cpu.Reg.PC != memBase+8 {
		t.Errorf("pc incorrect. exp: %x, got: %x", memBase+8, cpu.Reg.PC)
	}
}

func TestDebuggerIllegal(t *testing.T) {
	cpu, _ := load(t, `
	.word 0`)

	s := debugged(t, cpu, nil)
	waitHalted(t, s)
	expectSignal(t, s, stub.SignalIll)
	if cpu.Reg.PC != memBase {
		t.Errorf("pc incorrect. exp: %x, got: %x", memBase, cpu.Reg.PC)
	}
}

func TestDebuggerExit(t *testing.T) {
	cpu, _ := load(t, `
	li a0, 3
	li a7, 93
	ecall`)

	s := debugged(t, cpu, nil)
	waitHalted(t, s)
	expectSignal(t, s, stub.SignalTrap)
	if !cpu.Exited || cpu.ExitCode != 3 {
		t.Errorf("exit incorrect. exp: 3, got: %v %d", cpu.Exited, cpu.ExitCode)
	}
	if got := s.LastStop(); got != "W03" {
		t.Errorf("stop reply incorrect. exp: %q, got: %q", "W03", got)
	}

	// Resuming an exited program reports the exit again without executing
	// past it.
	retired := cpu.Retired()
	s.Continue()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitHalted(ctx); err != nil {
		t.Fatalf("cpu did not halt after exit: %v", err)
	}
	if got := s.LastStop(); got != "W03" {
		t.Errorf("stop reply incorrect. exp: %q, got: %q", "W03", got)
	}
	if cpu.Retired() != retired || cpu.Reg.PC != memBase+12 {
		t.Errorf("cpu ran past exit. pc: %x, retired: %d -> %d", cpu.Reg.PC, retired, cpu.Retired())
	}
}

func TestDebuggerBreakpoint(t *testing.T) {
	cpu, assembly := load(t, `
	li a0, 0
target:
	addi a0, a0, 1
	ebreak
spin:
	j spin`)

	addr := assembly.Labels["target"]
	s := debugged(t, cpu, func(s *stub.Stub) {
		if err := s.InsertBreakpoint(uint64(addr), breakpoint.Execute); err != nil {
			t.Fatal(err)
		}
	})

	waitHalted(t, s)
	expectSignal(t, s, stub.SignalTrap)
	if cpu.Reg.PC != addr {
		t.Errorf("pc incorrect. exp: %x, got: %x", addr, cpu.Reg.PC)
	}
	expectReg(t, cpu, "a0", 0)

	s.Continue()
	waitHalted(t, s)
	if cpu.Reg.PC != addr+8 {
		t.Errorf("pc incorrect. exp: %x, got: %x", addr+8, cpu.Reg.PC)
	}
	expectReg(t, cpu, "a0", 1)
}

func TestDebuggerWatchpoint(t *testing.T) {
	cpu, assembly := load(t, `
	la t0, data
	li t1, 7
loop:
	sw t1, 2(t0)
after:
	j loop
data:
	.word 0, 0`)

	data := assembly.Labels["data"]
	s := debugged(t, cpu, func(s *stub.Stub) {
		if err := s.InsertWatchpoint(uint64(data), 4, breakpoint.Write); err != nil {
			t.Fatal(err)
		}
	})

	waitHalted(t, s)
	if cpu.Reg.PC != assembly.Labels["after"] {
		t.Errorf("pc incorrect. exp: %x, got: %x", assembly.Labels["after"], cpu.Reg.PC)
	}
	exp := fmt.Sprintf("watch:%x;", data)
	if stop := s.LastStop(); !strings.HasSuffix(stop, exp) {
		t.Errorf("stop reply incorrect. exp suffix: %s, got: %s", exp, stop)
	}

	var b [4]byte
	if err := cpu.Mem.Load(data+2, b[:]); err != nil || b[0] != 7 {
		t.Errorf("store incorrect. exp: 7, got: %d (%v)", b[0], err)
	}
}

func TestDebuggerStep(t *testing.T) {
	cpu, _ := load(t, `
	ebreak
	li a0, 1
	li a0, 2
spin:
	j spin`)

	s := debugged(t, cpu, nil)
	waitHalted(t, s)

	s.Step()
	waitHalted(t, s)
	expectReg(t, cpu, "a0", 1)
	if cpu.Reg.PC != memBase+8 {
		t.Errorf("pc incorrect. exp: %x, got: %x", memBase+8, cpu.Reg.PC)
	}
}
