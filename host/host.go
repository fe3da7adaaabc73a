// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host provides an interactive console for an emulated RV32I
// machine that is also exposed to GDB through a remote stub.
//
// Within the host it is possible to assemble and load machine code into
// memory, run and step the CPU, set breakpoints and watchpoints, dump and
// modify memory and registers, disassemble code, and control the debugger
// server. The same commands are available to a connected debugger through
// its monitor command.
package host

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/beevik/cmd"
	"github.com/beevik/gdbstub/asm"
	"github.com/beevik/gdbstub/breakpoint"
	"github.com/beevik/gdbstub/disasm"
	"github.com/beevik/gdbstub/riscv"
	"github.com/beevik/gdbstub/stub"
	"golang.org/x/exp/slices"
)

var (
	errQuit    = errors.New("quit")
	errRunning = errors.New("the CPU is running; use break to halt it")
)

// A Host represents an emulated RV32I system together with its debugger
// stub and server.
type Host struct {
	cpu      *riscv.CPU
	stub     *stub.Stub
	server   *stub.Server
	settings *settings
	labels   map[string]uint32

	// cmdMu serializes commands from the console and from the debugger.
	cmdMu   sync.Mutex
	lastCmd *cmd.Selection
	resumed bool // the last command resumed the CPU

	outMu       sync.Mutex
	out         io.Writer // command output
	console     io.Writer // output of the emulated program
	input       *bufio.Scanner
	interactive bool
}

// New creates a host for the CPU. The stub must already be attached to the
// CPU. The server may be nil if the machine is not exposed to debuggers.
func New(cpu *riscv.CPU, s *stub.Stub, srv *stub.Server) *Host {
	return &Host{
		cpu:      cpu,
		stub:     s,
		server:   srv,
		settings: newSettings(),
		labels:   make(map[string]uint32),
		out:      os.Stdout,
		console:  os.Stdout,
	}
}

// LoadAddress returns the default address used by load and assemble.
func (h *Host) LoadAddress() uint32 {
	return h.settings.LoadAddress
}

// SetLoadAddress changes the default address used by load and assemble.
func (h *Host) SetLoadAddress(addr uint32) {
	h.settings.LoadAddress = addr
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.interactive = interactive
	h.outMu.Lock()
	h.out, h.console = w, w
	h.outMu.Unlock()

	if interactive {
		h.println()
		if h.stub.Halted() {
			h.displayPC()
		}
	}

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		}

		if err := h.execute(&c); err != nil {
			break
		}
		if h.resumed {
			h.waitHalted()
			h.displayStop()
		}
	}
}

// execute runs the selected command. An empty selection repeats the
// previous command.
func (h *Host) execute(c *cmd.Selection) error {
	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()
	h.resumed = false

	if c.Command == nil {
		if h.lastCmd == nil {
			return nil
		}
		*c = *h.lastCmd
	}
	h.lastCmd = c
	return c.Command.Data.(*command).run(h, *c)
}

// MonitorCommand runs a console command on behalf of a debugger and
// returns the output it produced. It is installed as the stub's monitor
// handler.
func (h *Host) MonitorCommand(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	c, err := cmds.Lookup(line)
	switch {
	case err == cmd.ErrNotFound:
		return "", fmt.Errorf("command '%s' not found", line)
	case err == cmd.ErrAmbiguous:
		return "", fmt.Errorf("command '%s' is ambiguous", line)
	case err != nil:
		return "", err
	}
	if c.Command == nil {
		return "", nil
	}
	cm := c.Command.Data.(*command)
	if cm.local {
		return "", fmt.Errorf("'%s' is not available from the debugger", cm.path)
	}

	h.cmdMu.Lock()
	defer h.cmdMu.Unlock()

	// Monitor commands must not alter what an empty console line repeats.
	lastCmd := h.lastCmd
	h.lastCmd = nil

	var buf bytes.Buffer
	h.outMu.Lock()
	saved := h.out
	h.out = &buf
	h.outMu.Unlock()
	defer func() {
		h.outMu.Lock()
		h.out = saved
		h.outMu.Unlock()
		h.lastCmd = lastCmd
	}()

	err = cm.run(h, c)
	return buf.String(), err
}

// Break interrupts a running CPU. It is called when the user types Ctrl-C.
func (h *Host) Break() {
	if !h.stub.Break() {
		h.println()
		h.prompt()
	}
}

// WriteConsole displays output produced by the emulated program. It is
// attached to the CPU as its console.
func (h *Host) WriteConsole(b []byte) {
	h.outMu.Lock()
	h.console.Write(b)
	h.outMu.Unlock()
}

// Load copies the contents of a binary file into memory at addr and
// returns the number of bytes loaded.
func (h *Host) Load(filename string, addr uint32) (int, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return 0, err
	}
	if err := h.cpu.Mem.Store(addr, data); err != nil {
		return 0, err
	}
	h.settings.NextDisasmAddr = addr
	h.settings.NextMemDumpAddr = addr
	return len(data), nil
}

func (h *Host) print(args ...any) {
	h.outMu.Lock()
	fmt.Fprint(h.out, args...)
	h.outMu.Unlock()
}

func (h *Host) printf(format string, args ...any) {
	h.outMu.Lock()
	fmt.Fprintf(h.out, format, args...)
	h.outMu.Unlock()
}

func (h *Host) println(args ...any) {
	h.outMu.Lock()
	fmt.Fprintln(h.out, args...)
	h.outMu.Unlock()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.print("* ")
	}
}

// waitHalted blocks until the CPU halts, whether on its own, because the
// user typed Ctrl-C or because a debugger halted it.
func (h *Host) waitHalted() {
	h.stub.WaitHalted(context.Background())
}

func (h *Host) requireHalted() error {
	if !h.stub.Halted() {
		return errRunning
	}
	return nil
}

func (h *Host) displayPC() {
	line, _ := h.disassemble(h.cpu.Reg.PC)
	h.println(line)
}

// displayStop reports why the CPU last halted.
func (h *Host) displayStop() {
	if h.cpu.Exited {
		h.printf("Program exited with code %d.\n", h.cpu.ExitCode)
	} else if sig, ok := h.stub.LastSignal(); ok {
		h.printf("Stopped (%s).\n", signalName(sig))
	}
	h.displayPC()
	h.settings.NextDisasmAddr = h.cpu.Reg.PC
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	if len(c.Args) == 0 {
		h.println("Commands:")
		for _, cm := range commands {
			h.printf("    %-20s %s\n", cm.path, cm.brief)
		}
		return nil
	}

	s, err := cmds.Lookup(strings.Join(c.Args, " "))
	switch {
	case err != nil:
		h.printf("%v\n", err)
	case s.Command == nil:
		h.println("Command not found.")
	default:
		cm := s.Command.Data.(*command)
		h.printf("Syntax: %s\n\n", cm.usage)
		h.printf("Description:\n%s\n\n", indentWrap(3, cm.description))
	}
	return nil
}

func (h *Host) cmdAssembleFile(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".s"
	}

	var buf bytes.Buffer
	err := asm.AssembleFile(filename, h.settings.LoadAddress, &buf)
	h.print(buf.String())
	if err != nil {
		h.printf("Failed to assemble '%s': %v\n", filepath.Base(filename), err)
	}
	return nil
}

func (h *Host) cmdAssembleLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".s"
	}

	addr := h.settings.LoadAddress
	if len(c.Args) > 1 {
		var err error
		if addr, err = h.parseAddr(c.Args[1]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	file, err := os.Open(filename)
	if err != nil {
		h.printf("Failed to open '%s': %v\n", filepath.Base(filename), err)
		return nil
	}
	defer file.Close()

	assembly, err := asm.Assemble(file, filename, addr)
	if err != nil {
		h.printf("Failed to assemble '%s'.\n", filepath.Base(filename))
		for _, e := range assembly.Errors {
			h.println(e)
		}
		return nil
	}

	if err := h.cpu.Mem.Store(addr, assembly.Code); err != nil {
		h.printf("Failed to store code: %v\n", err)
		return nil
	}
	for label, a := range assembly.Labels {
		h.labels[label] = a
	}
	h.settings.NextDisasmAddr = addr

	h.printf("Assembled '%s' to %08x-%08x (%d labels).\n", filepath.Base(filename),
		addr, addr+uint32(len(assembly.Code)), len(assembly.Labels))
	return nil
}

func (h *Host) cmdBreakpointList(c cmd.Selection) error {
	addrs := h.stub.Breakpoints(breakpoint.Execute)
	if len(addrs) == 0 {
		h.println("No breakpoints.")
		return nil
	}
	h.println("Address")
	h.println("--------")
	for _, a := range addrs {
		h.printf("%08x\n", a)
	}
	return nil
}

func (h *Host) cmdBreakpointAdd(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if err := h.stub.InsertBreakpoint(uint64(addr), breakpoint.Execute); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Breakpoint added at %08x.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointRemove(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if !slices.Contains(h.stub.Breakpoints(breakpoint.Execute), uint64(addr)) {
		h.printf("No breakpoint was set on %08x.\n", addr)
		return nil
	}

	h.stub.RemoveBreakpoint(uint64(addr), breakpoint.Execute)
	h.printf("Breakpoint at %08x removed.\n", addr)
	return nil
}

func (h *Host) cmdBreakpointClear(c cmd.Selection) error {
	h.stub.ClearBreakpoints()
	h.println("All breakpoints and watchpoints removed.")
	return nil
}

func (h *Host) cmdWatchpointList(c cmd.Selection) error {
	watches := h.stub.Watchpoints()
	if len(watches) == 0 {
		h.println("No watchpoints.")
		return nil
	}
	h.println("Address  Length Kind")
	h.println("-------- ------ ------")
	for _, w := range watches {
		h.printf("%08x %-6d %s\n", w.Base, w.Length, w.Kind)
	}
	return nil
}

func (h *Host) parseWatchpoint(c cmd.Selection) (addr, length uint32, kind breakpoint.Kind, err error) {
	if addr, err = h.parseAddr(c.Args[0]); err != nil {
		return
	}
	if length, err = h.parseAddr(c.Args[1]); err != nil {
		return
	}
	kind = breakpoint.Write
	if len(c.Args) > 2 {
		if kind, err = parseKind(c.Args[2]); err != nil {
			return
		}
	}
	return
}

func (h *Host) cmdWatchpointAdd(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayUsage(c)
		return nil
	}

	addr, length, kind, err := h.parseWatchpoint(c)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if err := h.stub.InsertWatchpoint(uint64(addr), uint64(length), kind); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.printf("Watchpoint (%s) added at %08x+%d.\n", kind, addr, length)
	return nil
}

func (h *Host) cmdWatchpointRemove(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayUsage(c)
		return nil
	}

	addr, length, kind, err := h.parseWatchpoint(c)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	want := breakpoint.Watchpoint{Base: uint64(addr), Length: uint64(length), Kind: kind}
	for _, w := range h.stub.Watchpoints() {
		if w == want {
			h.stub.RemoveWatchpoint(w.Base, w.Length, w.Kind)
			h.printf("Watchpoint (%s) at %08x+%d removed.\n", kind, addr, length)
			return nil
		}
	}
	h.printf("No %s watchpoint was set on %08x+%d.\n", kind, addr, length)
	return nil
}

func (h *Host) cmdBreak(c cmd.Selection) error {
	if !h.stub.Break() {
		h.println("The CPU is already halted.")
		return nil
	}
	h.resumed = true
	return nil
}

func (h *Host) cmdDisassemble(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint32
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextDisasmAddr
	default:
		a, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	lines := h.settings.DisasmLines
	if len(c.Args) > 1 {
		l, err := h.parseAddr(c.Args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		line, next := h.disassemble(addr)
		h.println(line)
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	if h.lastCmd != nil {
		h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", lines)}
	}
	return nil
}

func (h *Host) cmdLoad(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}
	if err := h.requireHalted(); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	filename := c.Args[0]
	if filepath.Ext(filename) == "" {
		filename += ".bin"
	}

	addr := h.settings.LoadAddress
	if len(c.Args) > 1 {
		var err error
		if addr, err = h.parseAddr(c.Args[1]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	n, err := h.Load(filename, addr)
	if err != nil {
		h.printf("Failed to load '%s': %v\n", filepath.Base(filename), err)
		return nil
	}
	h.cpu.SetPC(addr)
	h.printf("Loaded '%s' to %08x-%08x.\n", filepath.Base(filename), addr, addr+uint32(n))
	return nil
}

func (h *Host) cmdMemoryDump(c cmd.Selection) error {
	if len(c.Args) == 0 {
		c.Args = []string{"$"}
	}

	var addr uint32
	switch c.Args[0] {
	case "$":
		addr = h.settings.NextMemDumpAddr
	default:
		a, err := h.parseAddr(c.Args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	n := uint32(h.settings.MemDumpBytes)
	if len(c.Args) > 1 {
		var err error
		if n, err = h.parseAddr(c.Args[1]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.dumpMemory(addr, n)

	h.settings.NextMemDumpAddr = addr + n
	if h.lastCmd != nil {
		h.lastCmd.Args = []string{"$", fmt.Sprintf("%d", n)}
	}
	return nil
}

func (h *Host) cmdMemorySet(c cmd.Selection) error {
	if len(c.Args) < 2 {
		h.displayUsage(c)
		return nil
	}

	addr, err := h.parseAddr(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	b := make([]byte, 0, len(c.Args)-1)
	for _, s := range c.Args[1:] {
		v, err := h.parseAddr(s)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		if v > 0xff {
			h.printf("Value %s is not a byte.\n", s)
			return nil
		}
		b = append(b, byte(v))
	}

	if err := h.cpu.Mem.Store(addr, b); err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.dumpMemory(addr, uint32(len(b)))
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errQuit
}

func (h *Host) cmdRegister(c cmd.Selection) error {
	if err := h.requireHalted(); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	if len(c.Args) == 0 {
		h.println(h.cpu.Reg.String())
		h.displayPC()
		return nil
	}
	if len(c.Args) < 2 {
		h.displayUsage(c)
		return nil
	}

	n, ok := riscv.LookupRegister(c.Args[0])
	if !ok {
		h.printf("Unknown register '%s'.\n", c.Args[0])
		return nil
	}
	v, err := h.parseAddr(c.Args[1])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.cpu.Reg.Set(n, v)
	h.printf("Register %s set to %08x.\n", riscv.RegisterName(n), h.cpu.Reg.Get(n))
	return nil
}

func (h *Host) cmdReset(c cmd.Selection) error {
	if err := h.requireHalted(); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	addr := h.settings.LoadAddress
	if len(c.Args) > 0 {
		var err error
		if addr, err = h.parseAddr(c.Args[0]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	h.cpu.Reset(addr)
	h.settings.NextDisasmAddr = addr
	h.printf("CPU reset to %08x.\n", addr)
	return nil
}

func (h *Host) cmdRun(c cmd.Selection) error {
	if err := h.requireHalted(); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	h.printf("Running from %08x. Press ctrl-C to break.\n", h.cpu.Reg.PC)
	h.stub.Continue()
	h.resumed = true
	return nil
}

func (h *Host) cmdServerStatus(c cmd.Selection) error {
	if h.server == nil {
		h.println("No debugger server.")
		return nil
	}

	switch addr := h.server.Addr(); {
	case !h.server.Enabled():
		h.printf("Server disabled (port %d).\n", h.server.Port())
	case addr != nil:
		h.printf("Server listening on %s.\n", addr)
	default:
		h.printf("Server enabled on port %d.\n", h.server.Port())
	}
	h.printf("Debugger connected: %v\n", h.server.Connected())
	h.printf("Sessions: %d  Rejected: %d\n", h.server.Sessions(), h.server.Rejected())
	h.printf("CPU: %s\n", h.stub)
	return nil
}

func (h *Host) cmdServerEnable(c cmd.Selection) error {
	if h.server == nil {
		h.println("No debugger server.")
		return nil
	}
	h.server.Toggle(true)
	h.printf("Server enabled on port %d.\n", h.server.Port())
	return nil
}

func (h *Host) cmdServerDisable(c cmd.Selection) error {
	if h.server == nil {
		h.println("No debugger server.")
		return nil
	}
	h.server.Toggle(false)
	h.println("Server disabled.")
	return nil
}

func (h *Host) cmdServerPort(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayUsage(c)
		return nil
	}
	if h.server == nil {
		h.println("No debugger server.")
		return nil
	}

	port, err := h.parseAddr(c.Args[0])
	if err != nil || port > 0xffff {
		h.printf("Invalid port '%s'.\n", c.Args[0])
		return nil
	}
	h.server.SetPort(int(port))
	h.printf("Server port set to %d.\n", port)
	return nil
}

func (h *Host) cmdSet(c cmd.Selection) error {
	switch len(c.Args) {
	case 0:
		h.println("Variables:")
		h.outMu.Lock()
		h.settings.Display(h.out)
		h.outMu.Unlock()

	case 1:
		h.displayUsage(c)

	default:
		key, value := c.Args[0], strings.Join(c.Args[1:], " ")
		if err := h.settings.Set(key, value, h.parseAddr); err != nil {
			h.printf("%v\n", err)
			return nil
		}
		h.println("Setting updated.")
	}
	return nil
}

func (h *Host) cmdStep(c cmd.Selection) error {
	if err := h.requireHalted(); err != nil {
		h.printf("%v\n", err)
		return nil
	}

	count := uint32(1)
	if len(c.Args) > 0 {
		var err error
		if count, err = h.parseAddr(c.Args[0]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	for i := uint32(0); i < count; i++ {
		h.stub.Step()
		h.waitHalted()
		if sig, _ := h.stub.LastSignal(); sig != stub.SignalTrap || h.cpu.Exited {
			h.displayStop()
			return nil
		}
		if h.settings.ShowRegisters {
			h.println(h.cpu.Reg.String())
		}
		h.displayPC()
	}
	h.settings.NextDisasmAddr = h.cpu.Reg.PC
	return nil
}

// parseAddr evaluates a number, a register name or a label defined by an
// assembled file.
func (h *Host) parseAddr(s string) (uint32, error) {
	if v, err := parseNumber(s); err == nil {
		return v, nil
	}
	if s == "." {
		s = "pc"
	}
	if n, ok := riscv.LookupRegister(s); ok {
		if err := h.requireHalted(); err != nil {
			return 0, err
		}
		return h.cpu.Reg.Get(n), nil
	}
	if a, ok := h.labels[s]; ok {
		return a, nil
	}
	return 0, fmt.Errorf("invalid value '%s'", s)
}

func (h *Host) disassemble(addr uint32) (str string, next uint32) {
	var line string
	line, next = disasm.Disassemble(h.cpu.Mem, addr)

	var b [4]byte
	code := "????????"
	if err := h.cpu.Mem.Load(addr, b[:]); err == nil {
		code = codeString(b[:])
	}

	marker := ' '
	switch bp, ok := h.stub.NearestBreakpoint(uint64(addr), breakpoint.Execute); {
	case h.stub.Halted() && addr == h.cpu.Reg.PC:
		marker = '>'
	case ok && bp.Address == uint64(addr):
		marker = '*'
	}
	return fmt.Sprintf("%c %08x-  %s  %s", marker, addr, code, line), next
}

func (h *Host) dumpMemory(addr0, n uint32) {
	if n == 0 {
		return
	}

	addr1 := addr0 + n - 1
	if addr1 < addr0 {
		addr1 = 0xffffffff
	}

	// Align the display to 16-byte rows.
	buf := make([]byte, 0, 80)
	for row := addr0 &^ 0xf; ; row += 16 {
		buf = buf[:0]
		buf = appendAddr(buf, row)
		buf = append(buf, "- "...)
		var chars [16]byte
		for i := uint32(0); i < 16; i++ {
			a := row + i
			var m [1]byte
			if a < addr0 || a > addr1 || h.cpu.Mem.Load(a, m[:]) != nil {
				buf = append(buf, "   "...)
				chars[i] = ' '
			} else {
				buf = appendByte(buf, m[0])
				buf = append(buf, ' ')
				chars[i] = toPrintableChar(m[0])
			}
			if i == 7 {
				buf = append(buf, ' ')
			}
		}
		buf = append(buf, ' ')
		buf = append(buf, chars[:]...)
		h.println(string(buf))

		if addr1-row < 16 {
			break
		}
	}
}

func (h *Host) displayUsage(c cmd.Selection) {
	if cm, ok := c.Command.Data.(*command); ok && cm.usage != "" {
		h.printf("Syntax: %s\n", cm.usage)
	} else {
		h.println("<no help text>")
	}
}

func parseKind(s string) (breakpoint.Kind, error) {
	switch strings.ToLower(s) {
	case "read", "r", "rwatch":
		return breakpoint.Read, nil
	case "write", "w", "watch":
		return breakpoint.Write, nil
	case "access", "a", "awatch":
		return breakpoint.Access, nil
	default:
		return breakpoint.None, fmt.Errorf("invalid watchpoint kind '%s'", s)
	}
}

func signalName(sig int) string {
	switch sig {
	case stub.SignalInt:
		return "SIGINT"
	case stub.SignalIll:
		return "SIGILL"
	case stub.SignalTrap:
		return "SIGTRAP"
	case stub.SignalBus:
		return "SIGBUS"
	case stub.SignalSegv:
		return "SIGSEGV"
	default:
		return fmt.Sprintf("signal %d", sig)
	}
}
