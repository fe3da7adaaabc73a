// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/gdbstub/breakpoint"
)

var errMalformed = errors.New("malformed packet")

// Error replies.
const (
	replyOK          = "OK"
	replyMalformed   = "E01"
	replyBadRegister = "E02"
	replyMemoryFault = "E14"
	replyInvalid     = "E22"
)

// A result is the outcome of dispatching one command packet.
type result struct {
	reply    string // reply payload; empty means unsupported
	deferred bool   // no reply now; a stop reply follows when the CPU halts
	detach   bool   // close the session after sending the reply
	kill     bool   // close the session without replying
	noAck    bool   // stop acknowledging packets after this reply
}

func reply(s string) result {
	return result{reply: s}
}

func (s *Stub) features() string {
	return fmt.Sprintf("PacketSize=%x;QStartNoAckMode+;qXfer:features:read+;vContSupported+", s.maxPacketSize)
}

// dispatch executes a command packet and returns its reply.
func (s *Stub) dispatch(payload []byte) result {
	if len(payload) == 0 {
		return reply("")
	}
	cmd := string(payload)
	args := cmd[1:]

	switch cmd[0] {
	case '?':
		return s.haltStatus()
	case 'q':
		return s.query(cmd)
	case 'Q':
		if cmd == "QStartNoAckMode" {
			return result{reply: replyOK, noAck: true}
		}
	case 'v':
		return s.verbose(cmd)
	case 'H':
		return reply(replyOK)
	case 'T':
		if tid, err := parseThread(args); err == nil && (tid == DefaultThread || tid <= 0) {
			return reply(replyOK)
		}
		return reply(replyMalformed)
	case 'g', 'G', 'p', 'P':
		return reply(s.registerPacket(cmd[0], args))
	case 'm':
		return reply(s.readMemory(args))
	case 'M':
		return reply(s.writeMemoryHex(args))
	case 'X':
		return reply(s.writeMemoryBinary(payload[1:]))
	case 'Z', 'z':
		return reply(s.breakpointPacket(cmd[0] == 'Z', args))
	case 'c', 's':
		return s.resume(cmd[0] == 's', args)
	case 'C', 'S':
		// The signal is not delivered to the emulated program.
		_, addr, _ := strings.Cut(args, ";")
		return s.resume(cmd[0] == 'S', addr)
	case 'D':
		return result{reply: replyOK, detach: true}
	case 'k':
		return result{kill: true}
	}
	return reply("")
}

func (s *Stub) haltStatus() result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctl.state == Halted {
		return reply(s.lastStop)
	}
	s.requestHaltLocked()
	return result{deferred: true}
}

func (s *Stub) query(cmd string) result {
	switch {
	case strings.HasPrefix(cmd, "qSupported"):
		return reply(s.features())
	case cmd == "qAttached" || strings.HasPrefix(cmd, "qAttached:"):
		return reply("1")
	case cmd == "qC":
		return reply("QC" + strconv.FormatUint(DefaultThread, 16))
	case cmd == "qfThreadInfo":
		return reply("m" + strconv.FormatUint(DefaultThread, 16))
	case cmd == "qsThreadInfo":
		return reply("l")
	case cmd == "qOffsets":
		return reply("Text=0;Data=0;Bss=0")
	case strings.HasPrefix(cmd, "qSymbol"):
		return reply(replyOK)
	case strings.HasPrefix(cmd, "qXfer:features:read:"):
		return reply(s.readFeatures(strings.TrimPrefix(cmd, "qXfer:features:read:")))
	case strings.HasPrefix(cmd, "qRcmd,"):
		return reply(s.monitorCommand(strings.TrimPrefix(cmd, "qRcmd,")))
	}
	return reply("")
}

// readFeatures serves a chunk of the target description. The request has
// the form annex:offset,length.
func (s *Stub) readFeatures(req string) string {
	annex, span, ok := strings.Cut(req, ":")
	if !ok {
		return replyMalformed
	}
	offset, length, err := parseAddrLen(span)
	if err != nil {
		return replyMalformed
	}
	doc := s.target.Arch.TargetXML
	if annex != "target.xml" || doc == "" {
		return replyMalformed
	}
	if offset >= uint64(len(doc)) {
		return "l"
	}
	// One character of the reply is taken by the m or l prefix.
	length = min(length, uint64(s.maxPacketSize-1))
	end := uint64(len(doc))
	if length < end-offset {
		end = offset + length
	}
	if end == uint64(len(doc)) {
		return "l" + doc[offset:end]
	}
	return "m" + doc[offset:end]
}

func (s *Stub) monitorCommand(arg string) string {
	s.mu.RLock()
	monitor := s.monitor
	s.mu.RUnlock()
	if monitor == nil {
		return ""
	}

	line, err := hex.DecodeString(arg)
	if err != nil {
		return replyMalformed
	}
	out, err := monitor(string(line))
	if err != nil {
		out += err.Error() + "\n"
	}
	if out == "" {
		return replyOK
	}
	return hex.EncodeToString([]byte(out))
}

func (s *Stub) verbose(cmd string) result {
	switch {
	case cmd == "vCont?":
		return reply("vCont;c;C;s;S")
	case strings.HasPrefix(cmd, "vCont;"):
		return s.vCont(strings.TrimPrefix(cmd, "vCont;"))
	}
	return reply("")
}

// vCont applies the first action that names this thread or all threads.
func (s *Stub) vCont(actions string) result {
	for _, action := range strings.Split(actions, ";") {
		verb, thread, hasThread := strings.Cut(action, ":")
		if hasThread {
			tid, err := parseThread(thread)
			if err != nil {
				return reply(replyMalformed)
			}
			if tid != DefaultThread && tid != -1 {
				continue
			}
		}
		if verb == "" {
			return reply(replyMalformed)
		}
		switch verb[0] {
		case 'c', 'C':
			return s.resume(false, "")
		case 's', 'S':
			return s.resume(true, "")
		default:
			return reply(replyMalformed)
		}
	}
	return reply(replyMalformed)
}

// resume continues or single-steps the CPU, optionally from a new address.
func (s *Stub) resume(step bool, addrArg string) result {
	var addr uint64
	if addrArg != "" {
		var err error
		if addr, err = parseHex[uint64](addrArg); err != nil {
			return reply(replyMalformed)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctl.state != Halted {
		// A stop reply will be sent when the running CPU halts.
		return result{deferred: true}
	}
	if addrArg != "" {
		if err := s.target.Registers.WriteRegister(s.target.Arch.PCRegister, addr); err != nil {
			return reply(replyBadRegister)
		}
	}
	s.resumeLocked(step)
	return result{deferred: true}
}

// registerPacket serves the register access packets. Registers belong to
// the CPU goroutine while it runs, so they are only accessed while the CPU
// is halted, and the lock keeps it halted until the access completes.
func (s *Stub) registerPacket(op byte, args string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ctl.state != Halted {
		return replyMalformed
	}
	switch op {
	case 'g':
		return s.readRegisters()
	case 'G':
		return s.writeRegisters(args)
	case 'p':
		return s.readRegister(args)
	default:
		return s.writeRegister(args)
	}
}

func (s *Stub) readRegisters() string {
	arch := &s.target.Arch
	b := make([]byte, 0, arch.NumRegisters*arch.RegisterSize*2)
	for n := 0; n < arch.NumRegisters; n++ {
		v, err := s.target.Registers.ReadRegister(n)
		if err != nil {
			return replyBadRegister
		}
		b = appendRegister(b, v, arch.RegisterSize, arch.ByteOrder)
	}
	return string(b)
}

func (s *Stub) writeRegisters(args string) string {
	arch := &s.target.Arch
	width := arch.RegisterSize * 2
	if len(args) != arch.NumRegisters*width {
		return replyMalformed
	}

	values := make([]uint64, arch.NumRegisters)
	for n := range values {
		v, err := decodeRegister(args[n*width:(n+1)*width], arch.RegisterSize, arch.ByteOrder)
		if err != nil {
			return replyMalformed
		}
		values[n] = v
	}
	for n, v := range values {
		if err := s.target.Registers.WriteRegister(n, v); err != nil {
			return replyBadRegister
		}
	}
	return replyOK
}

func (s *Stub) readRegister(args string) string {
	n, err := parseHex[uint](args)
	if err != nil {
		return replyMalformed
	}
	arch := &s.target.Arch
	if n >= uint(arch.NumRegisters) {
		return replyBadRegister
	}
	v, err := s.target.Registers.ReadRegister(int(n))
	if err != nil {
		return replyBadRegister
	}
	return string(appendRegister(nil, v, arch.RegisterSize, arch.ByteOrder))
}

func (s *Stub) writeRegister(args string) string {
	num, value, ok := strings.Cut(args, "=")
	if !ok {
		return replyMalformed
	}
	n, err := parseHex[uint](num)
	if err != nil {
		return replyMalformed
	}
	arch := &s.target.Arch
	if n >= uint(arch.NumRegisters) {
		return replyBadRegister
	}
	v, err := decodeRegister(value, arch.RegisterSize, arch.ByteOrder)
	if err != nil {
		return replyMalformed
	}
	if err := s.target.Registers.WriteRegister(int(n), v); err != nil {
		return replyBadRegister
	}
	return replyOK
}

func (s *Stub) readMemory(args string) string {
	addr, length, err := parseAddrLen(args)
	if err != nil {
		return replyMalformed
	}
	// Each byte takes two characters in the reply.
	if length > uint64(s.maxPacketSize/2) {
		length = uint64(s.maxPacketSize / 2)
	}
	buf := make([]byte, length)
	if err := s.target.Memory.ReadMemory(addr, buf); err != nil {
		s.log.Debug("memory read failed", "addr", addr, "len", length, "err", err)
		return replyMemoryFault
	}
	return hex.EncodeToString(buf)
}

func (s *Stub) writeMemoryHex(args string) string {
	span, data, ok := strings.Cut(args, ":")
	if !ok {
		return replyMalformed
	}
	addr, length, err := parseAddrLen(span)
	if err != nil || uint64(len(data)) != length*2 {
		return replyMalformed
	}
	buf, err := hex.DecodeString(data)
	if err != nil {
		return replyMalformed
	}
	return s.writeMemory(addr, buf)
}

func (s *Stub) writeMemoryBinary(args []byte) string {
	span, data, ok := strings.Cut(string(args), ":")
	if !ok {
		return replyMalformed
	}
	addr, length, err := parseAddrLen(span)
	if err != nil || uint64(len(data)) != length {
		return replyMalformed
	}
	if length == 0 {
		return replyOK
	}
	return s.writeMemory(addr, []byte(data))
}

func (s *Stub) writeMemory(addr uint64, buf []byte) string {
	if err := s.target.Memory.WriteMemory(addr, buf); err != nil {
		s.log.Debug("memory write failed", "addr", addr, "len", len(buf), "err", err)
		return replyMemoryFault
	}
	return replyOK
}

// breakpointPacket handles Z (insert) and z (remove) packets of the form
// type,addr,kind[;cond...].
func (s *Stub) breakpointPacket(insert bool, args string) string {
	args, _, _ = strings.Cut(args, ";")
	fields := strings.Split(args, ",")
	if len(fields) != 3 {
		return replyMalformed
	}
	ztype, err := strconv.Atoi(fields[0])
	if err != nil {
		return replyMalformed
	}
	addr, err1 := parseHex[uint64](fields[1])
	length, err2 := parseHex[uint64](fields[2])
	if err1 != nil || err2 != nil {
		return replyMalformed
	}
	kind, err := breakpoint.KindFromZType(ztype)
	if err != nil {
		return replyInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case kind == breakpoint.Execute && insert:
		err = s.registry.InsertBreakpoint(addr, kind)
	case kind == breakpoint.Execute:
		s.registry.RemoveBreakpoint(addr, kind)
	case insert:
		err = s.insertWatchpointLocked(addr, length, kind)
	default:
		s.removeWatchpointLocked(addr, length, kind)
	}
	if err != nil {
		return replyInvalid
	}
	return replyOK
}

func parseAddrLen(s string) (addr, length uint64, err error) {
	a, l, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, errMalformed
	}
	if addr, err = parseHex[uint64](a); err != nil {
		return 0, 0, err
	}
	if length, err = parseHex[uint64](l); err != nil {
		return 0, 0, err
	}
	return addr, length, nil
}

// parseThread parses a thread id, where -1 means all threads and 0 means
// any thread.
func parseThread(s string) (int, error) {
	if s == "-1" {
		return -1, nil
	}
	tid, err := parseHex[uint32](s)
	return int(tid), err
}
