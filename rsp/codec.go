// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rsp implements the framing layer of the GDB Remote Serial
// Protocol. It turns a raw byte stream into validated command payloads and
// turns reply payloads into framed, checksummed bytes. Payloads are opaque
// to this package.
package rsp

import (
	"errors"
	"fmt"
)

// Framing bytes.
const (
	StartMarker   = '$'
	EndMarker     = '#'
	EscapeByte    = '}'
	RepeatByte    = '*'
	AckByte       = '+'
	NackByte      = '-'
	InterruptByte = 0x03
)

// DefaultMaxPacketSize is the largest frame the decoder will buffer while
// waiting for an end marker.
const DefaultMaxPacketSize = 0x4000

// Errors attached to malformed packets.
var (
	ErrChecksum  = errors.New("packet checksum mismatch")
	ErrTruncated = errors.New("packet frame truncated")
	ErrNoise     = errors.New("bytes outside of a packet frame")
	ErrOverflow  = errors.New("packet exceeds maximum size")
)

// Kind identifies the result of decoding the front of a byte stream.
type Kind byte

const (
	NeedMoreData Kind = iota
	Ack
	Nack
	Interrupt
	Command
	Malformed
)

var kindNames = []string{
	NeedMoreData: "need-more-data",
	Ack:          "ack",
	Nack:         "nack",
	Interrupt:    "interrupt",
	Command:      "command",
	Malformed:    "malformed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// A Packet is the result of a single decode step. Payload is set only for
// Command packets and holds the unescaped payload bytes. Err is set only for
// Malformed packets.
type Packet struct {
	Kind    Kind
	Payload []byte
	Err     error
}

// Checksum returns the modulo-256 sum of the bytes in b.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// Decode examines the front of buf and returns the first packet it holds,
// along with the number of bytes of buf the packet occupies. A NeedMoreData
// result always consumes zero bytes; the caller should retain buf and call
// Decode again once more bytes are available.
func Decode(buf []byte) (Packet, int) {
	return decode(buf, DefaultMaxPacketSize)
}

func decode(buf []byte, maxSize int) (Packet, int) {
	if len(buf) == 0 {
		return Packet{Kind: NeedMoreData}, 0
	}

	switch buf[0] {
	case AckByte:
		return Packet{Kind: Ack}, 1
	case NackByte:
		return Packet{Kind: Nack}, 1
	case InterruptByte:
		return Packet{Kind: Interrupt}, 1
	case StartMarker:
		return decodeFrame(buf, maxSize)
	default:
		n := nextBoundary(buf, 1)
		return Packet{Kind: Malformed, Err: ErrNoise}, n
	}
}

func decodeFrame(buf []byte, maxSize int) (Packet, int) {
	end := -1
	for i := 1; i < len(buf); i++ {
		if buf[i] == EndMarker {
			end = i
			break
		}
		if buf[i] == StartMarker {
			// A new frame started before this one ended. Drop the
			// truncated frame so the new one can be decoded.
			return Packet{Kind: Malformed, Err: ErrTruncated}, i
		}
	}

	if end < 0 {
		if len(buf) > maxSize {
			return Packet{Kind: Malformed, Err: ErrOverflow}, nextStart(buf, 1)
		}
		return Packet{Kind: NeedMoreData}, 0
	}
	if len(buf) < end+3 {
		return Packet{Kind: NeedMoreData}, 0
	}

	frameLen := end + 3
	wire := buf[1:end]
	want, ok := parseHexByte(buf[end+1], buf[end+2])
	if !ok || Checksum(wire) != want {
		return Packet{Kind: Malformed, Err: ErrChecksum}, frameLen
	}

	payload, ok := unescape(wire)
	if !ok {
		return Packet{Kind: Malformed, Err: ErrTruncated}, frameLen
	}
	return Packet{Kind: Command, Payload: payload}, frameLen
}

// Encode wraps payload in a frame with a trailing checksum.
func Encode(payload []byte) []byte {
	return AppendEncode(make([]byte, 0, len(payload)+4), payload)
}

// AppendEncode appends the framed form of payload to dst and returns the
// extended buffer.
func AppendEncode(dst, payload []byte) []byte {
	dst = append(dst, StartMarker)
	start := len(dst)
	for _, c := range payload {
		if needsEscape(c) {
			dst = append(dst, EscapeByte, c^0x20)
		} else {
			dst = append(dst, c)
		}
	}
	sum := Checksum(dst[start:])
	return append(dst, EndMarker, hexDigits[sum>>4], hexDigits[sum&0xf])
}

func needsEscape(c byte) bool {
	switch c {
	case StartMarker, EndMarker, EscapeByte, RepeatByte:
		return true
	default:
		return false
	}
}

func unescape(wire []byte) ([]byte, bool) {
	payload := make([]byte, 0, len(wire))
	for i := 0; i < len(wire); i++ {
		c := wire[i]
		if c == EscapeByte {
			i++
			if i == len(wire) {
				return nil, false
			}
			c = wire[i] ^ 0x20
		}
		payload = append(payload, c)
	}
	return payload, true
}

// nextBoundary returns the index of the first byte at or after i that could
// begin a new packet.
func nextBoundary(buf []byte, i int) int {
	for ; i < len(buf); i++ {
		switch buf[i] {
		case StartMarker, AckByte, NackByte, InterruptByte:
			return i
		}
	}
	return len(buf)
}

func nextStart(buf []byte, i int) int {
	for ; i < len(buf); i++ {
		if buf[i] == StartMarker {
			return i
		}
	}
	return len(buf)
}

const hexDigits = "0123456789abcdef"

func parseHexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexValue(hi)
	l, ok2 := hexValue(lo)
	return h<<4 | l, ok1 && ok2
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
