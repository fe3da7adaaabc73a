// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"strings"

	"github.com/beevik/cmd"
)

// A command is the data stored with each entry of the command tree.
type command struct {
	path        string
	brief       string
	description string
	usage       string
	run         func(h *Host, c cmd.Selection) error

	// local commands drive the CPU on their own and are refused when they
	// arrive as debugger monitor commands.
	local bool
}

var (
	cmds     *cmd.Tree
	commands []*command
)

func add(t *cmd.Tree, prefix string, c *command) {
	name := c.path
	c.path = strings.TrimSpace(prefix + " " + name)
	t.AddCommand(cmd.CommandDescriptor{
		Name:        name,
		Brief:       c.brief,
		Description: c.description,
		Usage:       c.usage,
		Data:        c,
	})
	commands = append(commands, c)
}

func init() {
	root := cmd.NewTree(cmd.TreeDescriptor{Name: "gdbstub"})
	add(root, "", &command{
		path:        "help",
		brief:       "Display help for a command",
		description: "Display help for a command.",
		usage:       "help [<command>]",
		run:         (*Host).cmdHelp,
	})

	// Assemble commands
	as := root.AddSubtree(cmd.TreeDescriptor{Name: "assemble", Brief: "Assemble commands"})
	add(as, "assemble", &command{
		path:  "file",
		brief: "Assemble a file and save the binary to disk",
		description: "Run the assembler on the specified file, producing a" +
			" binary file if successful. The code is assembled at the" +
			" current load address.",
		usage: "assemble file <filename>",
		run:   (*Host).cmdAssembleFile,
	})
	add(as, "assemble", &command{
		path:  "load",
		brief: "Assemble a file into memory",
		description: "Run the assembler on the specified file and store the" +
			" machine code in memory at the specified address. Labels" +
			" defined by the file may be used as addresses afterward.",
		usage: "assemble load <filename> [<address>]",
		run:   (*Host).cmdAssembleLoad,
	})

	// Breakpoint commands
	bp := root.AddSubtree(cmd.TreeDescriptor{Name: "breakpoint", Brief: "Breakpoint commands"})
	add(bp, "breakpoint", &command{
		path:        "list",
		brief:       "List breakpoints",
		description: "List all current breakpoints.",
		usage:       "breakpoint list",
		run:         (*Host).cmdBreakpointList,
	})
	add(bp, "breakpoint", &command{
		path:        "add",
		brief:       "Add a breakpoint",
		description: "Add an execution breakpoint at the specified address.",
		usage:       "breakpoint add <address>",
		run:         (*Host).cmdBreakpointAdd,
	})
	add(bp, "breakpoint", &command{
		path:        "remove",
		brief:       "Remove a breakpoint",
		description: "Remove the breakpoint at the specified address.",
		usage:       "breakpoint remove <address>",
		run:         (*Host).cmdBreakpointRemove,
	})
	add(bp, "breakpoint", &command{
		path:  "clear",
		brief: "Remove all breakpoints",
		description: "Remove every breakpoint and watchpoint, including" +
			" those set by a debugger.",
		usage: "breakpoint clear",
		run:   (*Host).cmdBreakpointClear,
	})

	// Watchpoint commands
	wp := root.AddSubtree(cmd.TreeDescriptor{Name: "watchpoint", Brief: "Watchpoint commands"})
	add(wp, "watchpoint", &command{
		path:        "list",
		brief:       "List watchpoints",
		description: "List all current watchpoints.",
		usage:       "watchpoint list",
		run:         (*Host).cmdWatchpointList,
	})
	add(wp, "watchpoint", &command{
		path:  "add",
		brief: "Add a watchpoint",
		description: "Add a watchpoint covering length bytes starting at the" +
			" specified address. The CPU stops after an instruction reads," +
			" writes or accesses the watched bytes. The kind may be read," +
			" write or access, and defaults to write.",
		usage: "watchpoint add <address> <length> [<kind>]",
		run:   (*Host).cmdWatchpointAdd,
	})
	add(wp, "watchpoint", &command{
		path:        "remove",
		brief:       "Remove a watchpoint",
		description: "Remove the watchpoint with the specified address, length and kind.",
		usage:       "watchpoint remove <address> <length> [<kind>]",
		run:         (*Host).cmdWatchpointRemove,
	})

	add(root, "", &command{
		path:  "break",
		brief: "Halt the CPU",
		description: "Halt the running CPU. A connected debugger is told" +
			" that the CPU stopped with SIGINT.",
		usage: "break",
		run:   (*Host).cmdBreak,
		local: true,
	})
	add(root, "", &command{
		path:  "disassemble",
		brief: "Disassemble code",
		description: "Disassemble machine code starting at the requested" +
			" address. The number of instruction lines to disassemble may be" +
			" specified as an option. If no address is specified, the" +
			" disassembly continues from where the last disassembly left off.",
		usage: "disassemble [<address>] [<lines>]",
		run:   (*Host).cmdDisassemble,
	})
	add(root, "", &command{
		path:  "load",
		brief: "Load a binary file",
		description: "Load the contents of a binary file into the emulated" +
			" system's memory and point the program counter at it. If no" +
			" address is specified, the current load address is used.",
		usage: "load <filename> [<address>]",
		run:   (*Host).cmdLoad,
	})

	// Memory commands
	me := root.AddSubtree(cmd.TreeDescriptor{Name: "memory", Brief: "Memory commands"})
	add(me, "memory", &command{
		path:  "dump",
		brief: "Dump memory at address",
		description: "Dump the contents of memory starting from the" +
			" specified address. The number of bytes to dump may be" +
			" specified as an option. If no address is specified, the" +
			" memory dump continues from where the last dump left off.",
		usage: "memory dump [<address>] [<bytes>]",
		run:   (*Host).cmdMemoryDump,
	})
	add(me, "memory", &command{
		path:  "set",
		brief: "Set memory at address",
		description: "Set the contents of memory starting from the specified" +
			" address. The values to assign should be a series of" +
			" space-separated byte values.",
		usage: "memory set <address> <byte> [<byte> ...]",
		run:   (*Host).cmdMemorySet,
	})

	add(root, "", &command{
		path:        "quit",
		brief:       "Quit the program",
		description: "Quit the program.",
		usage:       "quit",
		run:         (*Host).cmdQuit,
		local:       true,
	})
	add(root, "", &command{
		path:  "register",
		brief: "View or change register values",
		description: "When used without arguments, this command displays the" +
			" current contents of the CPU registers. When used with arguments," +
			" this command changes the value of a register. Registers may be" +
			" named by ABI name (a0, sp) or number (x10, x2), and pc names the" +
			" program counter. The CPU must be halted.",
		usage: "register [<name> <value>]",
		run:   (*Host).cmdRegister,
	})
	add(root, "", &command{
		path:  "reset",
		brief: "Reset the CPU",
		description: "Clear all registers and point the program counter at" +
			" the specified address, or at the load address if none is given." +
			" Memory is left untouched. The CPU must be halted.",
		usage: "reset [<address>]",
		run:   (*Host).cmdReset,
	})
	add(root, "", &command{
		path:  "run",
		brief: "Run the CPU",
		description: "Resume the CPU until it hits a breakpoint or a" +
			" watchpoint, traps, or until the user types Ctrl-C.",
		usage: "run",
		run:   (*Host).cmdRun,
		local: true,
	})

	// Server commands
	sv := root.AddSubtree(cmd.TreeDescriptor{Name: "server", Brief: "Debugger server commands"})
	add(sv, "server", &command{
		path:        "status",
		brief:       "Display the server status",
		description: "Display whether the debugger server is listening and connected.",
		usage:       "server status",
		run:         (*Host).cmdServerStatus,
	})
	add(sv, "server", &command{
		path:        "enable",
		brief:       "Enable the server",
		description: "Start listening for debugger connections.",
		usage:       "server enable",
		run:         (*Host).cmdServerEnable,
	})
	add(sv, "server", &command{
		path:  "disable",
		brief: "Disable the server",
		description: "Stop listening for debugger connections and disconnect" +
			" the active debugger.",
		usage: "server disable",
		run:   (*Host).cmdServerDisable,
		local: true,
	})
	add(sv, "server", &command{
		path:        "port",
		brief:       "Change the server port",
		description: "Listen for debugger connections on a different TCP port.",
		usage:       "server port <port>",
		run:         (*Host).cmdServerPort,
	})

	add(root, "", &command{
		path:  "set",
		brief: "Set a configuration variable",
		description: "Set the value of a configuration variable. To see the" +
			" current values of all configuration variables, type set" +
			" without any arguments.",
		usage: "set [<var> <value>]",
		run:   (*Host).cmdSet,
	})
	add(root, "", &command{
		path:  "step",
		brief: "Step the CPU",
		description: "Step the CPU by a single instruction. The number of" +
			" steps may be specified as an option.",
		usage: "step [<count>]",
		run:   (*Host).cmdStep,
		local: true,
	})

	// Add command shortcuts.
	root.AddShortcut("a", "assemble load")
	root.AddShortcut("af", "assemble file")
	root.AddShortcut("b", "breakpoint")
	root.AddShortcut("bp", "breakpoint")
	root.AddShortcut("ba", "breakpoint add")
	root.AddShortcut("br", "breakpoint remove")
	root.AddShortcut("bl", "breakpoint list")
	root.AddShortcut("bc", "breakpoint clear")
	root.AddShortcut("c", "run")
	root.AddShortcut("d", "disassemble")
	root.AddShortcut("m", "memory dump")
	root.AddShortcut("ms", "memory set")
	root.AddShortcut("r", "register")
	root.AddShortcut("s", "step")
	root.AddShortcut("wp", "watchpoint")
	root.AddShortcut("wa", "watchpoint add")
	root.AddShortcut("wr", "watchpoint remove")
	root.AddShortcut("wl", "watchpoint list")
	root.AddShortcut("?", "help")
	root.AddShortcut(".", "register")

	cmds = root
}
