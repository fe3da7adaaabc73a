// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements an RV32I instruction set
// disassembler.
package disasm

import (
	"fmt"

	"github.com/beevik/gdbstub/riscv"
)

var branchNames = [8]string{"beq", "bne", "", "", "blt", "bge", "bltu", "bgeu"}
var loadNames = [8]string{"lb", "lh", "lw", "", "lbu", "lhu", "", ""}
var storeNames = [8]string{"sb", "sh", "sw", "", "", "", "", ""}
var immNames = [8]string{"addi", "slli", "slti", "sltiu", "xori", "srli", "ori", "andi"}
var regNames = [8]string{"add", "sll", "slt", "sltu", "xor", "srl", "or", "and"}

func reg(n int) string {
	return riscv.RegisterName(n)
}

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code.
func Disassemble(m riscv.Memory, addr uint32) (line string, next uint32) {
	next = addr + 4

	var b [4]byte
	if err := m.Load(addr, b[:]); err != nil {
		return "??", next
	}
	w := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return Instruction(w, addr), next
}

// Instruction returns the assembly language form of the instruction word
// w located at address pc.
func Instruction(w uint32, pc uint32) string {
	in := riscv.Decode(w)

	switch in.Opcode {
	case 0x37:
		return fmt.Sprintf("lui %s, 0x%x", reg(in.Rd), uint32(in.Imm)>>12)
	case 0x17:
		return fmt.Sprintf("auipc %s, 0x%x", reg(in.Rd), uint32(in.Imm)>>12)
	case 0x6f:
		target := pc + uint32(in.Imm)
		if in.Rd == 0 {
			return fmt.Sprintf("j 0x%x", target)
		}
		return fmt.Sprintf("jal %s, 0x%x", reg(in.Rd), target)
	case 0x67:
		if in.Rd == 0 && in.Rs1 == riscv.RegRA && in.Imm == 0 {
			return "ret"
		}
		return fmt.Sprintf("jalr %s, %d(%s)", reg(in.Rd), in.Imm, reg(in.Rs1))
	case 0x63:
		if name := branchNames[in.Funct3]; name != "" {
			return fmt.Sprintf("%s %s, %s, 0x%x", name, reg(in.Rs1), reg(in.Rs2), pc+uint32(in.Imm))
		}
	case 0x03:
		if name := loadNames[in.Funct3]; name != "" {
			return fmt.Sprintf("%s %s, %d(%s)", name, reg(in.Rd), in.Imm, reg(in.Rs1))
		}
	case 0x23:
		if name := storeNames[in.Funct3]; name != "" {
			return fmt.Sprintf("%s %s, %d(%s)", name, reg(in.Rs2), in.Imm, reg(in.Rs1))
		}
	case 0x13:
		name := immNames[in.Funct3]
		switch in.Funct3 {
		case 0:
			if in.Rd == 0 && in.Rs1 == 0 && in.Imm == 0 {
				return "nop"
			}
			if in.Rs1 == 0 {
				return fmt.Sprintf("li %s, %d", reg(in.Rd), in.Imm)
			}
		case 1, 5:
			if in.Funct3 == 5 && in.Funct7 == 0x20 {
				name = "srai"
			}
			return fmt.Sprintf("%s %s, %s, %d", name, reg(in.Rd), reg(in.Rs1), in.Imm&0x1f)
		}
		return fmt.Sprintf("%s %s, %s, %d", name, reg(in.Rd), reg(in.Rs1), in.Imm)
	case 0x33:
		name := regNames[in.Funct3]
		switch {
		case in.Funct7 == 0x20 && in.Funct3 == 0:
			name = "sub"
		case in.Funct7 == 0x20 && in.Funct3 == 5:
			name = "sra"
		case in.Funct7 != 0:
			name = ""
		}
		if name != "" {
			return fmt.Sprintf("%s %s, %s, %s", name, reg(in.Rd), reg(in.Rs1), reg(in.Rs2))
		}
	case 0x0f:
		return "fence"
	case 0x73:
		switch w {
		case 0x00000073:
			return "ecall"
		case 0x00100073:
			return "ebreak"
		}
	}
	return fmt.Sprintf(".word 0x%08x", w)
}
