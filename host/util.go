// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"fmt"
	"strconv"
	"strings"
)

// codeString formats little-endian instruction bytes as a word.
func codeString(b []byte) string {
	return fmt.Sprintf("%02x%02x%02x%02x", b[3], b[2], b[1], b[0])
}

func stringToBool(s string) (bool, error) {
	s = strings.ToLower(s)
	switch s {
	case "0", "false", "off":
		return false, nil
	case "1", "true", "on":
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value '%s'", s)
	}
}

func parseNumber(s string) (uint32, error) {
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 32)
		return uint32(int32(v)), err
	}
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

const hexString = "0123456789abcdef"

func appendAddr(b []byte, addr uint32) []byte {
	for shift := 28; shift >= 0; shift -= 4 {
		b = append(b, hexString[(addr>>uint(shift))&0xf])
	}
	return b
}

func appendByte(b []byte, v byte) []byte {
	return append(b, hexString[v>>4], hexString[v&0xf])
}

func toPrintableChar(v byte) byte {
	if v >= 32 && v < 127 {
		return v
	}
	return '.'
}

// indentWrap wraps text at 80 columns, indenting each line.
func indentWrap(indent int, s string) string {
	const width = 80
	pad := strings.Repeat(" ", indent)

	var b strings.Builder
	col := 0
	for _, word := range strings.Fields(s) {
		if col > 0 && col+1+len(word) > width {
			b.WriteByte('\n')
			col = 0
		}
		if col == 0 {
			b.WriteString(pad)
			col = indent
		} else {
			b.WriteByte(' ')
			col++
		}
		b.WriteString(word)
		col += len(word)
	}
	return b.String()
}
