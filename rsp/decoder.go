// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rsp

// A Decoder accumulates bytes received from a stream and yields packets as
// they become complete. A Decoder belongs to a single connection.
type Decoder struct {
	buf     []byte
	maxSize int
}

// NewDecoder creates a decoder that refuses to buffer frames longer than
// maxSize bytes. A maxSize of zero selects DefaultMaxPacketSize.
func NewDecoder(maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxPacketSize
	}
	return &Decoder{maxSize: maxSize}
}

// Feed appends received bytes to the decoder's buffer.
func (d *Decoder) Feed(b []byte) {
	d.buf = append(d.buf, b...)
}

// Next returns the next packet in the buffer and discards the bytes it
// occupied. It returns a NeedMoreData packet when the buffer holds no
// complete packet.
func (d *Decoder) Next() Packet {
	p, n := decode(d.buf, d.maxSize)
	if n > 0 {
		d.buf = d.buf[n:]
		if len(d.buf) == 0 {
			d.buf = d.buf[:0:0]
		}
	}
	return p
}

// Buffered returns the number of bytes waiting to be decoded.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any partially received packet.
func (d *Decoder) Reset() {
	d.buf = nil
}
