// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package riscv

import (
	"fmt"
	"strconv"
	"strings"
)

// Registers contains the state of all RV32I registers.
type Registers struct {
	X  [32]uint32 // integer registers; X[0] always reads as zero
	PC uint32     // program counter
}

// Register numbers as the debugger numbers them. The program counter
// follows the 32 integer registers.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegGP   = 3
	RegA0   = 10
	RegA7   = 17
	RegPC   = 32

	NumRegisters = 33
)

var abiNames = [NumRegisters]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
	"pc",
}

// RegisterName returns the ABI name of register n.
func RegisterName(n int) string {
	if n < 0 || n >= NumRegisters {
		return fmt.Sprintf("r%d", n)
	}
	return abiNames[n]
}

// LookupRegister returns the number of the register with the given name.
// Both ABI names (a0, sp) and architectural names (x10, x2) are accepted,
// as is fp for s0.
func LookupRegister(name string) (int, bool) {
	name = strings.ToLower(name)
	if name == "fp" {
		return 8, true
	}
	for i, n := range abiNames {
		if n == name {
			return i, true
		}
	}
	if len(name) > 1 && name[0] == 'x' {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 0 && n < 32 {
			return n, true
		}
	}
	return 0, false
}

// Get returns the value of register n, where n is a debugger register
// number.
func (r *Registers) Get(n int) uint32 {
	switch {
	case n == RegPC:
		return r.PC
	case n > RegZero && n < 32:
		return r.X[n]
	default:
		return 0
	}
}

// Set updates register n. Writes to the zero register are ignored.
func (r *Registers) Set(n int, v uint32) {
	switch {
	case n == RegPC:
		r.PC = v
	case n > RegZero && n < 32:
		r.X[n] = v
	}
}

func (r *Registers) String() string {
	var b strings.Builder
	for i := 0; i < 32; i++ {
		fmt.Fprintf(&b, "%-4s %08x", abiNames[i], r.X[i])
		if i%4 == 3 {
			b.WriteByte('\n')
		} else {
			b.WriteString("  ")
		}
	}
	fmt.Fprintf(&b, "pc   %08x", r.PC)
	return b.String()
}
