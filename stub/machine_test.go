// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stub_test

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/beevik/gdbstub/breakpoint"
	"github.com/beevik/gdbstub/rsp"
	"github.com/beevik/gdbstub/stub"
)

const (
	numRegs   = 33
	pcReg     = 32
	spReg     = 2
	codeStart = 0x1000
	codeSize  = 0x100
	memSize   = 0x4000
	storePC   = 0x1040 // instruction that stores a word to storeAddr
	storeAddr = 0x2000
)

var testArch = stub.Arch{
	Name:         "test32",
	RegisterSize: 4,
	NumRegisters: numRegs,
	PCRegister:   pcReg,
	SPRegister:   spReg,
	ByteOrder:    binary.LittleEndian,
	TargetXML:    `<?xml version="1.0"?><target><architecture>test32</architecture></target>`,
}

// machine is a toy CPU whose instructions are all four bytes long. It
// loops over the code region forever, and the instruction at storePC
// writes a word to storeAddr.
type machine struct {
	mu       sync.Mutex
	regs     [numRegs]uint64
	mem      [memSize]byte
	executed int
}

func newMachine() *machine {
	m := &machine{}
	m.regs[pcReg] = codeStart
	m.regs[spReg] = 0x3ff0
	return m
}

func (m *machine) ReadRegister(n int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= numRegs {
		return 0, stub.ErrBadRegister
	}
	return m.regs[n], nil
}

func (m *machine) WriteRegister(n int, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 || n >= numRegs {
		return stub.ErrBadRegister
	}
	m.regs[n] = v & 0xffffffff
	return nil
}

func (m *machine) ReadMemory(addr uint64, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr+uint64(len(b)) > memSize || addr+uint64(len(b)) < addr {
		return stub.ErrMemoryFault
	}
	copy(b, m.mem[addr:])
	return nil
}

func (m *machine) WriteMemory(addr uint64, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr+uint64(len(b)) > memSize || addr+uint64(len(b)) < addr {
		return stub.ErrMemoryFault
	}
	copy(m.mem[addr:], b)
	return nil
}

func (m *machine) pc() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[pcReg]
}

func (m *machine) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executed
}

func (m *machine) execute(s *stub.Stub, pc uint64) {
	if pc == storePC {
		if base, ok := s.CheckWatchpoint(storeAddr, 4, breakpoint.Write); ok {
			s.WatchpointHit(base, breakpoint.Write)
		}
		m.WriteMemory(storeAddr, []byte{1, 2, 3, 4})
	}

	m.mu.Lock()
	m.executed++
	next := pc + 4
	if next >= codeStart+codeSize || next < codeStart {
		next = codeStart
	}
	m.regs[pcReg] = next
	m.mu.Unlock()
}

func (m *machine) run(ctx context.Context, s *stub.Stub) {
	for ctx.Err() == nil {
		if err := s.WaitWhileHalted(ctx); err != nil {
			return
		}
		pc := m.pc()
		if !s.BeginInstruction(pc) {
			continue
		}
		m.execute(s, pc)
		s.EndInstruction()
		runtime.Gosched()
	}
}

func (m *machine) target() stub.Target {
	return stub.Target{Arch: testArch, Registers: m, Memory: m}
}

// rig wires a machine, a stub and a debugger session over a pipe.
type rig struct {
	t       *testing.T
	m       *machine
	stub    *stub.Stub
	ctx     context.Context
	cancel  context.CancelFunc
	client  *client
	session chan error
}

func newRig(t *testing.T, opts *stub.Options) *rig {
	t.Helper()
	m := newMachine()
	s := stub.New(m.target(), opts)
	ctx, cancel := context.WithCancel(context.Background())

	r := &rig{t: t, m: m, stub: s, ctx: ctx, cancel: cancel}
	go m.run(ctx, s)
	r.connect()
	t.Cleanup(r.close)
	return r
}

func (r *rig) connect() {
	local, remote := net.Pipe()
	r.client = newClient(r.t, remote)
	r.session = make(chan error, 1)
	go func() {
		r.session <- r.stub.ServeConn(r.ctx, local)
	}()
}

// disconnect closes the client side of the pipe and waits for the session
// to end.
func (r *rig) disconnect() {
	r.t.Helper()
	r.client.conn.Close()
	r.waitSession()
}

func (r *rig) waitSession() error {
	r.t.Helper()
	select {
	case err := <-r.session:
		return err
	case <-time.After(2 * time.Second):
		r.t.Fatal("session did not end")
		return nil
	}
}

func (r *rig) close() {
	r.cancel()
	r.client.conn.Close()
}

// halt stops the running machine and returns the stop reply.
func (r *rig) halt() string {
	r.t.Helper()
	reply := r.client.exchange("?")
	if len(reply) < 3 || reply[0] != 'T' {
		r.t.Fatalf("halt reply incorrect. got: %q", reply)
	}
	return reply
}

// client is a minimal debugger client.
type client struct {
	t     *testing.T
	conn  net.Conn
	r     *bufio.Reader
	noAck bool
}

func newClient(t *testing.T, conn net.Conn) *client {
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) write(b []byte) {
	c.t.Helper()
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write(b); err != nil {
		c.t.Fatalf("write failed: %v", err)
	}
}

func (c *client) send(payload string) {
	c.t.Helper()
	c.write(rsp.Encode([]byte(payload)))
}

// readByte returns the next byte the stub sent.
func (c *client) readByte() byte {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	b, err := c.r.ReadByte()
	if err != nil {
		c.t.Fatalf("read failed: %v", err)
	}
	return b
}

// recv returns the payload of the next frame, skipping acknowledgments.
func (c *client) recv() string {
	c.t.Helper()
	var frame []byte
	for {
		b := c.readByte()
		if b == rsp.StartMarker {
			frame = append(frame, b)
			break
		}
	}
	for {
		b := c.readByte()
		frame = append(frame, b)
		if b == rsp.EndMarker {
			break
		}
	}
	frame = append(frame, c.readByte(), c.readByte())

	p, _ := rsp.Decode(frame)
	if p.Kind != rsp.Command {
		c.t.Fatalf("bad frame %q: %v", frame, p.Err)
	}
	if !c.noAck {
		c.write([]byte{rsp.AckByte})
	}
	return string(p.Payload)
}

func (c *client) exchange(payload string) string {
	c.t.Helper()
	c.send(payload)
	return c.recv()
}

func expectReply(t *testing.T, c *client, payload, exp string) {
	t.Helper()
	got := c.exchange(payload)
	if got != exp {
		t.Errorf("reply to %q incorrect. exp: %q, got: %q", payload, exp, got)
	}
}

// stopPC formats the pc field of a stop reply for a 32-bit little-endian
// target.
func stopPC(pc uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], pc)
	return fmt.Sprintf("20:%x;", b)
}
