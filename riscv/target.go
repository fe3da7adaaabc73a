// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package riscv

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/beevik/gdbstub/stub"
)

// Arch describes the RV32I register file to a debugger.
var Arch = stub.Arch{
	Name:         "riscv:rv32",
	RegisterSize: 4,
	NumRegisters: NumRegisters,
	PCRegister:   RegPC,
	SPRegister:   RegSP,
	ByteOrder:    binary.LittleEndian,
	TargetXML:    targetXML(),
}

func targetXML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?>`)
	b.WriteString(`<!DOCTYPE target SYSTEM "gdb-target.dtd">`)
	b.WriteString(`<target version="1.0">`)
	b.WriteString(`<architecture>riscv:rv32</architecture>`)
	b.WriteString(`<feature name="org.gnu.gdb.riscv.cpu">`)
	for i := 0; i < 32; i++ {
		typ := "int"
		switch i {
		case RegRA:
			typ = "code_ptr"
		case RegSP, RegGP, 8:
			typ = "data_ptr"
		}
		fmt.Fprintf(&b, `<reg name="%s" bitsize="32" type="%s" regnum="%d"/>`, abiNames[i], typ, i)
	}
	fmt.Fprintf(&b, `<reg name="pc" bitsize="32" type="code_ptr" regnum="%d"/>`, RegPC)
	b.WriteString(`</feature></target>`)
	return b.String()
}

// Target returns the pieces of the CPU a debugger stub needs.
func (cpu *CPU) Target() stub.Target {
	return stub.Target{Arch: Arch, Registers: cpu, Memory: cpu}
}

// ReadRegister implements stub.Registers.
func (cpu *CPU) ReadRegister(n int) (uint64, error) {
	if n < 0 || n >= NumRegisters {
		return 0, fmt.Errorf("%w: %d", stub.ErrBadRegister, n)
	}
	return uint64(cpu.Reg.Get(n)), nil
}

// WriteRegister implements stub.Registers.
func (cpu *CPU) WriteRegister(n int, v uint64) error {
	if n < 0 || n >= NumRegisters {
		return fmt.Errorf("%w: %d", stub.ErrBadRegister, n)
	}
	cpu.Reg.Set(n, uint32(v))
	return nil
}

// ReadMemory implements stub.Memory.
func (cpu *CPU) ReadMemory(addr uint64, b []byte) error {
	if addr > math.MaxUint32 {
		return fmt.Errorf("%w: %#x", stub.ErrMemoryFault, addr)
	}
	return cpu.Mem.Load(uint32(addr), b)
}

// WriteMemory implements stub.Memory.
func (cpu *CPU) WriteMemory(addr uint64, b []byte) error {
	if addr > math.MaxUint32 {
		return fmt.Errorf("%w: %#x", stub.ErrMemoryFault, addr)
	}
	return cpu.Mem.Store(uint32(addr), b)
}
