// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"
	"strconv"

	"golang.org/x/exp/constraints"
)

// parseHex parses a hexadecimal protocol field into an unsigned integer of
// type T, failing if the value does not fit.
func parseHex[T constraints.Unsigned](s string) (T, error) {
	if s == "" {
		return 0, errMalformed
	}
	v, err := strconv.ParseUint(s, 16, bits.Len64(uint64(^T(0))))
	if err != nil {
		return 0, errMalformed
	}
	return T(v), nil
}

// appendHex appends v in lowercase hexadecimal with no leading zeros.
func appendHex[T constraints.Unsigned](dst []byte, v T) []byte {
	return strconv.AppendUint(dst, uint64(v), 16)
}

// appendRegister appends the hex encoding of a register value as it is laid
// out in target memory.
func appendRegister(dst []byte, v uint64, size int, order binary.ByteOrder) []byte {
	var b [8]byte
	putRegister(b[:size], v, order)
	return hex.AppendEncode(dst, b[:size])
}

// decodeRegister parses a fixed-width register field laid out in target
// byte order.
func decodeRegister(field string, size int, order binary.ByteOrder) (uint64, error) {
	if len(field) != size*2 {
		return 0, errMalformed
	}
	var b [8]byte
	if _, err := hex.Decode(b[:size], []byte(field)); err != nil {
		return 0, errMalformed
	}
	return getRegister(b[:size], order), nil
}

func putRegister(b []byte, v uint64, order binary.ByteOrder) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	}
}

func getRegister(b []byte, order binary.ByteOrder) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	return 0
}
