// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"encoding/binary"
	"errors"
)

// ErrMemoryFault should be returned by a Memory implementation when an
// access touches an address with no backing storage.
var ErrMemoryFault = errors.New("memory fault")

// ErrBadRegister should be returned by a Registers implementation when a
// register number is out of range.
var ErrBadRegister = errors.New("bad register number")

// An Arch describes the register layout of the emulated CPU as the debugger
// client sees it.
type Arch struct {
	Name         string           // architecture name reported to the client
	RegisterSize int              // size of each register in bytes (1, 2, 4 or 8)
	NumRegisters int              // number of registers in a 'g' packet
	PCRegister   int              // register number of the program counter
	SPRegister   int              // register number of the stack pointer
	ByteOrder    binary.ByteOrder // target byte order
	TargetXML    string           // target description served over qXfer
}

// The Registers interface is implemented by the emulated CPU's register
// file. Registers are numbered the way the debugger client numbers them.
type Registers interface {
	ReadRegister(n int) (uint64, error)
	WriteRegister(n int, v uint64) error
}

// The Memory interface is implemented by the emulated CPU's address space.
// Implementations return ErrMemoryFault (possibly wrapped) when an access
// touches unmapped memory.
type Memory interface {
	ReadMemory(addr uint64, b []byte) error
	WriteMemory(addr uint64, b []byte) error
}

// A Target bundles the pieces of an emulated machine the stub needs.
type Target struct {
	Arch      Arch
	Registers Registers
	Memory    Memory
}

// Signal numbers reported in stop replies. These follow the numbering the
// debugger client uses, not necessarily the host's.
const (
	SignalNone = 0
	SignalInt  = 2
	SignalIll  = 4
	SignalTrap = 5
	SignalBus  = 7
	SignalSegv = 11
)

// DefaultThread is the thread id of the single emulated CPU.
const DefaultThread = 1
