// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package riscv implements an RV32I CPU emulator that can be driven by a
// GDB remote stub.
package riscv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/beevik/gdbstub/breakpoint"
	"github.com/beevik/gdbstub/stub"
	"go.uber.org/atomic"
)

// The Debugger interface is implemented by the GDB stub. The CPU consults
// it around every instruction and on every data access.
type Debugger interface {
	BeginInstruction(pc uint64) bool
	EndInstruction()
	WaitWhileHalted(ctx context.Context) error
	CheckWatchpoint(addr, length uint64, kind breakpoint.Kind) (uint64, bool)
	WatchpointHit(addr uint64, kind breakpoint.Kind)
	SendTrap(thread, signal int)
	SendExit(code int)
}

// Cause identifies the reason for a CPU exception.
type Cause byte

const (
	CauseMisalignedFetch Cause = iota
	CauseIllegalInstruction
	CauseBreakpoint
	CauseLoadFault
	CauseStoreFault
	CauseEcall
	CauseExit
)

var causeNames = []string{
	CauseMisalignedFetch:    "misaligned instruction fetch",
	CauseIllegalInstruction: "illegal instruction",
	CauseBreakpoint:         "breakpoint",
	CauseLoadFault:          "load access fault",
	CauseStoreFault:         "store access fault",
	CauseEcall:              "environment call",
	CauseExit:               "program exit",
}

func (c Cause) String() string {
	if int(c) < len(causeNames) {
		return causeNames[c]
	}
	return fmt.Sprintf("cause(%d)", c)
}

// An Exception is returned by Step when an instruction cannot complete
// normally.
type Exception struct {
	Cause Cause
	PC    uint32 // address of the faulting instruction
	Value uint32 // faulting address, instruction word or exit code
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s at pc=%08x (%08x)", e.Cause, e.PC, e.Value)
}

// Signal returns the debugger signal that reports the exception.
func (e *Exception) Signal() int {
	switch e.Cause {
	case CauseIllegalInstruction:
		return stub.SignalIll
	case CauseLoadFault, CauseStoreFault:
		return stub.SignalSegv
	case CauseMisalignedFetch:
		return stub.SignalBus
	default:
		return stub.SignalTrap
	}
}

// ErrExited is returned by Run when the emulated program exits and no
// debugger is attached.
var ErrExited = errors.New("program exited")

// System calls recognized by ecall, selected by register a7.
const (
	sysWrite = 64
	sysExit  = 93
)

// CPU represents a single RV32I hart.
type CPU struct {
	Reg      Registers // CPU registers
	Mem      Memory    // assigned memory
	Exited   bool      // the program made an exit system call
	ExitCode uint32    // exit code passed to the exit system call

	retired  *atomic.Uint64
	next     uint32
	debugger Debugger
	console  func([]byte)
}

// NewCPU creates an emulated RV32I CPU bound to the specified memory.
func NewCPU(m Memory) *CPU {
	return &CPU{
		Mem:     m,
		retired: atomic.NewUint64(0),
	}
}

// AttachDebugger attaches a debugger to the CPU. The debugger receives
// notifications whenever the CPU executes an instruction or accesses data
// memory.
func (cpu *CPU) AttachDebugger(d Debugger) {
	cpu.debugger = d
}

// DetachDebugger detaches the current debugger from the CPU.
func (cpu *CPU) DetachDebugger() {
	cpu.debugger = nil
}

// AttachConsole sets the function that receives bytes the program writes
// to file descriptors 1 and 2.
func (cpu *CPU) AttachConsole(fn func([]byte)) {
	cpu.console = fn
}

// SetPC updates the CPU program counter to addr.
func (cpu *CPU) SetPC(addr uint32) {
	cpu.Reg.PC = addr
}

// Retired returns the number of instructions the CPU has completed. It may
// be called while the CPU runs.
func (cpu *CPU) Retired() uint64 {
	return cpu.retired.Load()
}

// Reset clears the registers and the exit state. Memory is untouched.
func (cpu *CPU) Reset(pc uint32) {
	cpu.Reg = Registers{PC: pc}
	cpu.Exited = false
	cpu.ExitCode = 0
}

// Fetch returns the instruction word at addr.
func (cpu *CPU) Fetch(addr uint32) (uint32, error) {
	var b [4]byte
	if err := cpu.Mem.Load(addr, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Step executes one instruction. If the instruction raises an exception,
// the program counter is left pointing at it, except for ebreak and ecall,
// which complete before their exception is reported.
func (cpu *CPU) Step() error {
	pc := cpu.Reg.PC
	if pc&3 != 0 {
		return cpu.exception(CauseMisalignedFetch, pc)
	}
	w, err := cpu.Fetch(pc)
	if err != nil {
		return &Exception{Cause: CauseLoadFault, PC: pc, Value: pc}
	}

	err = cpu.execute(Decode(w))
	var exc *Exception
	if errors.As(err, &exc) && (exc.Cause == CauseBreakpoint || exc.Cause == CauseEcall) {
		cpu.Reg.PC = cpu.next
		cpu.retired.Inc()
		if exc.Cause == CauseEcall {
			return cpu.syscall()
		}
		return err
	}
	if err != nil {
		return err
	}

	cpu.Reg.PC = cpu.next
	cpu.retired.Inc()
	return nil
}

// syscall services an ecall. It returns an exception for calls that need
// the attention of the code running the CPU.
func (cpu *CPU) syscall() error {
	r := &cpu.Reg
	switch r.X[RegA7] {
	case sysExit:
		cpu.Exited = true
		cpu.ExitCode = r.X[RegA0]
		return &Exception{Cause: CauseExit, PC: r.PC - 4, Value: r.X[RegA0]}
	case sysWrite:
		fd, addr, n := r.X[RegA0], r.X[RegA0+1], r.X[RegA0+2]
		if fd != 1 && fd != 2 {
			r.X[RegA0] = ^uint32(0)
			return nil
		}
		buf := make([]byte, n)
		if err := cpu.Mem.Load(addr, buf); err != nil {
			r.X[RegA0] = ^uint32(0)
			return nil
		}
		if cpu.console != nil {
			cpu.console(buf)
		}
		r.X[RegA0] = n
		return nil
	default:
		return &Exception{Cause: CauseEcall, PC: r.PC - 4, Value: r.X[RegA7]}
	}
}

// Run executes instructions until ctx is done. With a debugger attached,
// the CPU halts and resumes under the debugger's control, exceptions halt
// the CPU with the matching signal, and an exited program halts and is
// reported as exited each time it is resumed. Without a debugger, Run
// returns the first exception, or ErrExited when the program exits.
func (cpu *CPU) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		d := cpu.debugger
		if d == nil {
			if err := cpu.Step(); err != nil {
				var exc *Exception
				if errors.As(err, &exc) && exc.Cause == CauseExit {
					return ErrExited
				}
				return err
			}
			continue
		}

		if err := d.WaitWhileHalted(ctx); err != nil {
			return err
		}
		if cpu.Exited {
			// The program stays at its exit until the CPU is reset.
			d.SendExit(int(cpu.ExitCode))
			continue
		}
		if !d.BeginInstruction(uint64(cpu.Reg.PC)) {
			continue
		}
		err := cpu.Step()
		var exc *Exception
		switch {
		case errors.As(err, &exc) && exc.Cause == CauseExit:
			d.SendExit(int(exc.Value))
		case errors.As(err, &exc):
			d.SendTrap(stub.DefaultThread, exc.Signal())
		case err != nil:
			return err
		}
		d.EndInstruction()
	}
	return ctx.Err()
}

func (cpu *CPU) exception(c Cause, v uint32) error {
	return &Exception{Cause: c, PC: cpu.Reg.PC, Value: v}
}

func (cpu *CPU) illegal(in Instruction) error {
	return cpu.exception(CauseIllegalInstruction, in.Word)
}

// load reads a little-endian value of the given size from data memory.
func (cpu *CPU) load(addr uint32, size int) (uint32, error) {
	cpu.watch(addr, size, breakpoint.Read)

	var b [4]byte
	if err := cpu.Mem.Load(addr, b[:size]); err != nil {
		return 0, cpu.exception(CauseLoadFault, addr)
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// store writes the low size bytes of v to data memory.
func (cpu *CPU) store(addr uint32, size int, v uint32) error {
	cpu.watch(addr, size, breakpoint.Write)

	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	if err := cpu.Mem.Store(addr, b[:size]); err != nil {
		return cpu.exception(CauseStoreFault, addr)
	}
	return nil
}

func (cpu *CPU) watch(addr uint32, size int, kind breakpoint.Kind) {
	if cpu.debugger == nil {
		return
	}
	if base, ok := cpu.debugger.CheckWatchpoint(uint64(addr), uint64(size), kind); ok {
		cpu.debugger.WatchpointHit(base, kind)
	}
}
