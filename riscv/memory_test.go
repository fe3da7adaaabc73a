// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package riscv_test

import (
	"errors"
	"testing"

	"github.com/beevik/gdbstub/riscv"
	"github.com/beevik/gdbstub/stub"
)

func TestFlatMemoryBounds(t *testing.T) {
	mem := riscv.NewFlatMemory(0x1000, 0x100)

	var b [4]byte
	tests := []struct {
		addr uint64
		ok   bool
	}{
		{0x1000, true},
		{0x10fc, true},
		{0x10fd, false},
		{0x0ffc, false},
		{0x1100, false},
		{0xffffffffffffffff, false},
		{0xfffffffffffffffe, false},
	}
	for _, test := range tests {
		err := mem.ReadMemory(test.addr, b[:])
		if test.ok && err != nil {
			t.Errorf("read at %#x failed: %v", test.addr, err)
		}
		if !test.ok && !errors.Is(err, stub.ErrMemoryFault) {
			t.Errorf("read at %#x incorrect. exp: %v, got: %v", test.addr, stub.ErrMemoryFault, err)
		}
		err = mem.WriteMemory(test.addr, b[:])
		if !test.ok && !errors.Is(err, stub.ErrMemoryFault) {
			t.Errorf("write at %#x incorrect. exp: %v, got: %v", test.addr, stub.ErrMemoryFault, err)
		}
	}
}
