// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package riscv

// Major opcodes of the RV32I base instruction set.
const (
	opLoad   = 0x03
	opFence  = 0x0f
	opImm    = 0x13
	opAuipc  = 0x17
	opStore  = 0x23
	opReg    = 0x33
	opLui    = 0x37
	opBranch = 0x63
	opJalr   = 0x67
	opJal    = 0x6f
	opSystem = 0x73
)

// An Instruction is a decoded 32-bit instruction word. Only the fields
// used by the instruction's format are meaningful.
type Instruction struct {
	Word   uint32
	Opcode uint32
	Rd     int
	Rs1    int
	Rs2    int
	Funct3 uint32
	Funct7 uint32
	Imm    int32
}

// Decode splits an instruction word into its fields and sign-extends its
// immediate according to the instruction's format.
func Decode(w uint32) Instruction {
	in := Instruction{
		Word:   w,
		Opcode: w & 0x7f,
		Rd:     int(w>>7) & 0x1f,
		Funct3: (w >> 12) & 7,
		Rs1:    int(w>>15) & 0x1f,
		Rs2:    int(w>>20) & 0x1f,
		Funct7: w >> 25,
	}

	switch in.Opcode {
	case opLoad, opImm, opJalr, opSystem, opFence:
		in.Imm = int32(w) >> 20
	case opStore:
		in.Imm = int32(w)>>25<<5 | int32(w>>7)&0x1f
	case opBranch:
		in.Imm = int32(w)>>31<<12 |
			int32(w>>7)&1<<11 |
			int32(w>>25)&0x3f<<5 |
			int32(w>>8)&0xf<<1
	case opLui, opAuipc:
		in.Imm = int32(w & 0xfffff000)
	case opJal:
		in.Imm = int32(w)>>31<<20 |
			int32(w>>12)&0xff<<12 |
			int32(w>>20)&1<<11 |
			int32(w>>21)&0x3ff<<1
	}
	return in
}

// execute runs a decoded instruction. The program counter has not yet been
// advanced; execute sets cpu.next to the address of the next instruction.
func (cpu *CPU) execute(in Instruction) error {
	r := &cpu.Reg
	pc := r.PC
	cpu.next = pc + 4

	switch in.Opcode {
	case opLui:
		cpu.setReg(in.Rd, uint32(in.Imm))

	case opAuipc:
		cpu.setReg(in.Rd, pc+uint32(in.Imm))

	case opJal:
		target := pc + uint32(in.Imm)
		if target&3 != 0 {
			return cpu.exception(CauseMisalignedFetch, target)
		}
		cpu.setReg(in.Rd, pc+4)
		cpu.next = target

	case opJalr:
		if in.Funct3 != 0 {
			return cpu.illegal(in)
		}
		target := (r.Get(in.Rs1) + uint32(in.Imm)) &^ 1
		if target&3 != 0 {
			return cpu.exception(CauseMisalignedFetch, target)
		}
		cpu.setReg(in.Rd, pc+4)
		cpu.next = target

	case opBranch:
		a, b := r.Get(in.Rs1), r.Get(in.Rs2)
		var taken bool
		switch in.Funct3 {
		case 0: // beq
			taken = a == b
		case 1: // bne
			taken = a != b
		case 4: // blt
			taken = int32(a) < int32(b)
		case 5: // bge
			taken = int32(a) >= int32(b)
		case 6: // bltu
			taken = a < b
		case 7: // bgeu
			taken = a >= b
		default:
			return cpu.illegal(in)
		}
		if taken {
			target := pc + uint32(in.Imm)
			if target&3 != 0 {
				return cpu.exception(CauseMisalignedFetch, target)
			}
			cpu.next = target
		}

	case opLoad:
		return cpu.executeLoad(in)

	case opStore:
		return cpu.executeStore(in)

	case opImm:
		return cpu.executeImm(in)

	case opReg:
		return cpu.executeReg(in)

	case opFence:
		// Memory is always coherent.

	case opSystem:
		switch in.Word {
		case 0x00000073:
			return cpu.exception(CauseEcall, 0)
		case 0x00100073:
			return cpu.exception(CauseBreakpoint, pc)
		default:
			return cpu.illegal(in)
		}

	default:
		return cpu.illegal(in)
	}
	return nil
}

func (cpu *CPU) executeLoad(in Instruction) error {
	addr := cpu.Reg.Get(in.Rs1) + uint32(in.Imm)

	var size int
	switch in.Funct3 {
	case 0, 4: // lb, lbu
		size = 1
	case 1, 5: // lh, lhu
		size = 2
	case 2: // lw
		size = 4
	default:
		return cpu.illegal(in)
	}

	v, err := cpu.load(addr, size)
	if err != nil {
		return err
	}
	switch in.Funct3 {
	case 0:
		v = uint32(int32(int8(v)))
	case 1:
		v = uint32(int32(int16(v)))
	}
	cpu.setReg(in.Rd, v)
	return nil
}

func (cpu *CPU) executeStore(in Instruction) error {
	addr := cpu.Reg.Get(in.Rs1) + uint32(in.Imm)
	v := cpu.Reg.Get(in.Rs2)

	switch in.Funct3 {
	case 0: // sb
		return cpu.store(addr, 1, v)
	case 1: // sh
		return cpu.store(addr, 2, v)
	case 2: // sw
		return cpu.store(addr, 4, v)
	default:
		return cpu.illegal(in)
	}
}

func (cpu *CPU) executeImm(in Instruction) error {
	a := cpu.Reg.Get(in.Rs1)
	imm := uint32(in.Imm)
	shamt := imm & 0x1f

	var v uint32
	switch in.Funct3 {
	case 0: // addi
		v = a + imm
	case 1: // slli
		if in.Funct7 != 0 {
			return cpu.illegal(in)
		}
		v = a << shamt
	case 2: // slti
		v = boolToUint32(int32(a) < in.Imm)
	case 3: // sltiu
		v = boolToUint32(a < imm)
	case 4: // xori
		v = a ^ imm
	case 5: // srli, srai
		switch in.Funct7 {
		case 0x00:
			v = a >> shamt
		case 0x20:
			v = uint32(int32(a) >> shamt)
		default:
			return cpu.illegal(in)
		}
	case 6: // ori
		v = a | imm
	case 7: // andi
		v = a & imm
	}
	cpu.setReg(in.Rd, v)
	return nil
}

func (cpu *CPU) executeReg(in Instruction) error {
	a, b := cpu.Reg.Get(in.Rs1), cpu.Reg.Get(in.Rs2)
	shamt := b & 0x1f

	var v uint32
	switch in.Funct7<<3 | in.Funct3 {
	case 0x000: // add
		v = a + b
	case 0x100: // sub
		v = a - b
	case 0x001: // sll
		v = a << shamt
	case 0x002: // slt
		v = boolToUint32(int32(a) < int32(b))
	case 0x003: // sltu
		v = boolToUint32(a < b)
	case 0x004: // xor
		v = a ^ b
	case 0x005: // srl
		v = a >> shamt
	case 0x105: // sra
		v = uint32(int32(a) >> shamt)
	case 0x006: // or
		v = a | b
	case 0x007: // and
		v = a & b
	default:
		return cpu.illegal(in)
	}
	cpu.setReg(in.Rd, v)
	return nil
}

func (cpu *CPU) setReg(n int, v uint32) {
	cpu.Reg.Set(n, v)
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
