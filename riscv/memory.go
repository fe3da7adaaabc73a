// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package riscv

import (
	"fmt"
	"sync"

	"github.com/beevik/gdbstub/stub"
)

// The Memory interface presents an interface to the CPU through which all
// memory accesses occur. Implementations return an error wrapping
// stub.ErrMemoryFault when an access falls outside mapped memory.
type Memory interface {
	// Load copies len(b) bytes starting at addr into b.
	Load(addr uint32, b []byte) error

	// Store copies b into memory starting at addr.
	Store(addr uint32, b []byte) error
}

// FlatMemory is a single contiguous block of RAM starting at a base
// address. It is safe for concurrent use, so the debugger may read it
// while the CPU runs.
type FlatMemory struct {
	mu   sync.RWMutex
	base uint32
	b    []byte
}

// NewFlatMemory creates size bytes of zeroed memory mapped at base.
func NewFlatMemory(base, size uint32) *FlatMemory {
	return &FlatMemory{base: base, b: make([]byte, size)}
}

// Base returns the first mapped address.
func (m *FlatMemory) Base() uint32 {
	return m.base
}

// Size returns the number of mapped bytes.
func (m *FlatMemory) Size() uint32 {
	return uint32(len(m.b))
}

func (m *FlatMemory) offset(addr uint64, n int) (int, error) {
	size := uint64(len(m.b))
	if addr < uint64(m.base) {
		return 0, fmt.Errorf("%w: %#x+%d", stub.ErrMemoryFault, addr, n)
	}
	off := addr - uint64(m.base)
	if off > size || uint64(n) > size-off {
		return 0, fmt.Errorf("%w: %#x+%d", stub.ErrMemoryFault, addr, n)
	}
	return int(off), nil
}

// Load copies memory starting at addr into b.
func (m *FlatMemory) Load(addr uint32, b []byte) error {
	return m.ReadMemory(uint64(addr), b)
}

// Store copies b into memory starting at addr.
func (m *FlatMemory) Store(addr uint32, b []byte) error {
	return m.WriteMemory(uint64(addr), b)
}

// ReadMemory implements stub.Memory.
func (m *FlatMemory) ReadMemory(addr uint64, b []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	off, err := m.offset(addr, len(b))
	if err != nil {
		return err
	}
	copy(b, m.b[off:])
	return nil
}

// WriteMemory implements stub.Memory.
func (m *FlatMemory) WriteMemory(addr uint64, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, err := m.offset(addr, len(b))
	if err != nil {
		return err
	}
	copy(m.b[off:], b)
	return nil
}
