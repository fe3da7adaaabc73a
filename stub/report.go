// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"github.com/beevik/gdbstub/breakpoint"
)

// A trap describes why the CPU halted.
type trap struct {
	signal    int
	watchKind breakpoint.Kind // None unless a watchpoint was hit
	watchAddr uint64          // registered base address of the watchpoint
	exited    bool            // the program exited with code
	code      byte
}

var watchReasons = [...]string{
	breakpoint.Read:   "rwatch",
	breakpoint.Write:  "watch",
	breakpoint.Access: "awatch",
}

// report builds the stop reply for a trap:
//
//	T<sig><pc#>:<pc>;<sp#>:<sp>;thread:<tid>;[watch:<addr>;]
//
// or W<code> when the program exited. Registers that cannot be read are
// left out of the reply.
func (s *Stub) report(thread int, t trap) string {
	if t.exited {
		return string(appendByteHex([]byte{'W'}, t.code))
	}
	arch := &s.target.Arch

	b := make([]byte, 0, 64)
	b = append(b, 'T')
	b = appendByteHex(b, byte(t.signal))
	for _, n := range [...]int{arch.PCRegister, arch.SPRegister} {
		v, err := s.target.Registers.ReadRegister(n)
		if err != nil {
			continue
		}
		b = appendByteHex(b, byte(n))
		b = append(b, ':')
		b = appendRegister(b, v, arch.RegisterSize, arch.ByteOrder)
		b = append(b, ';')
	}
	b = append(b, "thread:"...)
	b = appendHex(b, uint(thread))
	b = append(b, ';')

	if t.watchKind.IsData() {
		b = append(b, watchReasons[t.watchKind]...)
		b = append(b, ':')
		b = appendHex(b, t.watchAddr)
		b = append(b, ';')
	}
	return string(b)
}

func appendByteHex(dst []byte, v byte) []byte {
	const digits = "0123456789abcdef"
	return append(dst, digits[v>>4], digits[v&0xf])
}
