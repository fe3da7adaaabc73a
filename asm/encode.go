// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"
	"strings"
)

type encoder func(a *assembler, st *statement) ([]uint32, error)

var encoders map[string]encoder

func init() {
	encoders = map[string]encoder{
		"lui":    encodeUpper(0x37),
		"auipc":  encodeUpper(0x17),
		"jal":    encodeJal,
		"jalr":   encodeJalr,
		"beq":    encodeBranch(0, false),
		"bne":    encodeBranch(1, false),
		"blt":    encodeBranch(4, false),
		"bge":    encodeBranch(5, false),
		"bltu":   encodeBranch(6, false),
		"bgeu":   encodeBranch(7, false),
		"bgt":    encodeBranch(4, true),
		"ble":    encodeBranch(5, true),
		"bgtu":   encodeBranch(6, true),
		"bleu":   encodeBranch(7, true),
		"beqz":   encodeBranchZero(0, false),
		"bnez":   encodeBranchZero(1, false),
		"bltz":   encodeBranchZero(4, false),
		"bgez":   encodeBranchZero(5, false),
		"bgtz":   encodeBranchZero(4, true),
		"blez":   encodeBranchZero(5, true),
		"lb":     encodeLoad(0),
		"lh":     encodeLoad(1),
		"lw":     encodeLoad(2),
		"lbu":    encodeLoad(4),
		"lhu":    encodeLoad(5),
		"sb":     encodeStore(0),
		"sh":     encodeStore(1),
		"sw":     encodeStore(2),
		"addi":   encodeImm(0),
		"slti":   encodeImm(2),
		"sltiu":  encodeImm(3),
		"xori":   encodeImm(4),
		"ori":    encodeImm(6),
		"andi":   encodeImm(7),
		"slli":   encodeShift(1, 0x00),
		"srli":   encodeShift(5, 0x00),
		"srai":   encodeShift(5, 0x20),
		"add":    encodeReg(0, 0x00),
		"sub":    encodeReg(0, 0x20),
		"sll":    encodeReg(1, 0x00),
		"slt":    encodeReg(2, 0x00),
		"sltu":   encodeReg(3, 0x00),
		"xor":    encodeReg(4, 0x00),
		"srl":    encodeReg(5, 0x00),
		"sra":    encodeReg(5, 0x20),
		"or":     encodeReg(6, 0x00),
		"and":    encodeReg(7, 0x00),
		"fence":  encodeFixed(0x0ff0000f),
		"ecall":  encodeFixed(0x00000073),
		"ebreak": encodeFixed(0x00100073),
		"nop":    encodeFixed(0x00000013),
		"ret":    encodeFixed(0x00008067),
		"li":     encodeLi,
		"la":     encodeLa,
		"mv":     encodeMv,
		"not":    encodeNot,
		"neg":    encodeNeg,
		"j":      encodeJ,
		"jr":     encodeJr,
		"call":   encodeCall,
	}
}

func typeR(f7 uint32, rs2, rs1 int, f3 uint32, rd int, op uint32) uint32 {
	return f7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | op
}

func typeI(imm int64, rs1 int, f3 uint32, rd int, op uint32) uint32 {
	return uint32(imm&0xfff)<<20 | uint32(rs1)<<15 | f3<<12 | uint32(rd)<<7 | op
}

func typeS(imm int64, rs2, rs1 int, f3 uint32, op uint32) uint32 {
	u := uint32(imm)
	return (u>>5&0x7f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | f3<<12 | (u&0x1f)<<7 | op
}

func typeB(off int64, rs2, rs1 int, f3 uint32) uint32 {
	u := uint32(off)
	return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		f3<<12 | (u>>1&0xf)<<8 | (u>>11&1)<<7 | 0x63
}

func typeU(imm20 uint32, rd int, op uint32) uint32 {
	return (imm20&0xfffff)<<12 | uint32(rd)<<7 | op
}

func typeJ(off int64, rd int) uint32 {
	u := uint32(off)
	return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 |
		uint32(rd)<<7 | 0x6f
}

// split divides a 32-bit value into the upper 20 bits and the sign-extended
// lower 12 bits that lui/auipc + addi reassemble.
func split(v int64) (hi uint32, lo int64) {
	u := uint32(v)
	hi = (u + 0x800) >> 12
	lo = int64(int32(u-hi<<12))
	return hi & 0xfffff, lo
}

func expect(st *statement, n int) error {
	if len(st.operands) != n {
		return fmt.Errorf("'%s' requires %d operand(s)", st.op, n)
	}
	return nil
}

func (a *assembler) registers(st *statement, idx ...int) ([]int, error) {
	regs := make([]int, len(idx))
	for i, j := range idx {
		r, err := parseRegister(st.operands[j])
		if err != nil {
			return nil, err
		}
		regs[i] = r
	}
	return regs, nil
}

func (a *assembler) immediate(s string, bits uint) (int64, error) {
	v, err := a.value(s)
	if err != nil {
		return 0, err
	}
	if !fitsSigned(v, bits) {
		return 0, fmt.Errorf("immediate '%s' out of range", s)
	}
	return v, nil
}

// offset returns the pc-relative distance from st to the target label or
// address, validated against the encoding's range.
func (a *assembler) offset(st *statement, s string, bits uint) (int64, error) {
	target, err := a.value(s)
	if err != nil {
		return 0, err
	}
	off := int64(int32(uint32(target) - st.addr))
	if off&1 != 0 || !fitsSigned(off, bits) {
		return 0, fmt.Errorf("branch target '%s' out of range", s)
	}
	return off, nil
}

// memOperand parses an operand of the form "imm(reg)".
func (a *assembler) memOperand(s string) (int64, int, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return 0, 0, fmt.Errorf("invalid memory operand '%s'", s)
	}
	base, err := parseRegister(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil {
		return 0, 0, err
	}
	var imm int64
	if disp := strings.TrimSpace(s[:open]); disp != "" {
		imm, err = a.immediate(disp, 12)
		if err != nil {
			return 0, 0, err
		}
	}
	return imm, base, nil
}

func encodeFixed(w uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 0); err != nil {
			return nil, err
		}
		return []uint32{w}, nil
	}
}

func encodeUpper(op uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 2); err != nil {
			return nil, err
		}
		rd, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		v, err := a.value(st.operands[1])
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 0xfffff {
			return nil, fmt.Errorf("immediate '%s' out of range", st.operands[1])
		}
		return []uint32{typeU(uint32(v), rd, op)}, nil
	}
}

func encodeJal(a *assembler, st *statement) ([]uint32, error) {
	rd, target := 1, ""
	switch len(st.operands) {
	case 1:
		target = st.operands[0]
	case 2:
		r, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		rd, target = r, st.operands[1]
	default:
		return nil, fmt.Errorf("'jal' requires 1 or 2 operands")
	}
	off, err := a.offset(st, target, 21)
	if err != nil {
		return nil, err
	}
	return []uint32{typeJ(off, rd)}, nil
}

func encodeJalr(a *assembler, st *statement) ([]uint32, error) {
	switch len(st.operands) {
	case 1:
		rs1, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		return []uint32{typeI(0, rs1, 0, 1, 0x67)}, nil
	case 2:
		rd, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		imm, rs1, err := a.memOperand(st.operands[1])
		if err != nil {
			return nil, err
		}
		return []uint32{typeI(imm, rs1, 0, rd, 0x67)}, nil
	}
	return nil, fmt.Errorf("'jalr' requires 1 or 2 operands")
}

func encodeBranch(f3 uint32, swap bool) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 3); err != nil {
			return nil, err
		}
		regs, err := a.registers(st, 0, 1)
		if err != nil {
			return nil, err
		}
		off, err := a.offset(st, st.operands[2], 13)
		if err != nil {
			return nil, err
		}
		rs1, rs2 := regs[0], regs[1]
		if swap {
			rs1, rs2 = rs2, rs1
		}
		return []uint32{typeB(off, rs2, rs1, f3)}, nil
	}
}

func encodeBranchZero(f3 uint32, swap bool) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 2); err != nil {
			return nil, err
		}
		rs, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		off, err := a.offset(st, st.operands[1], 13)
		if err != nil {
			return nil, err
		}
		rs1, rs2 := rs, 0
		if swap {
			rs1, rs2 = 0, rs
		}
		return []uint32{typeB(off, rs2, rs1, f3)}, nil
	}
}

func encodeLoad(f3 uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 2); err != nil {
			return nil, err
		}
		rd, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		imm, rs1, err := a.memOperand(st.operands[1])
		if err != nil {
			return nil, err
		}
		return []uint32{typeI(imm, rs1, f3, rd, 0x03)}, nil
	}
}

func encodeStore(f3 uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 2); err != nil {
			return nil, err
		}
		rs2, err := parseRegister(st.operands[0])
		if err != nil {
			return nil, err
		}
		imm, rs1, err := a.memOperand(st.operands[1])
		if err != nil {
			return nil, err
		}
		return []uint32{typeS(imm, rs2, rs1, f3, 0x23)}, nil
	}
}

func encodeImm(f3 uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 3); err != nil {
			return nil, err
		}
		regs, err := a.registers(st, 0, 1)
		if err != nil {
			return nil, err
		}
		imm, err := a.immediate(st.operands[2], 12)
		if err != nil {
			return nil, err
		}
		return []uint32{typeI(imm, regs[1], f3, regs[0], 0x13)}, nil
	}
}

func encodeShift(f3, f7 uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 3); err != nil {
			return nil, err
		}
		regs, err := a.registers(st, 0, 1)
		if err != nil {
			return nil, err
		}
		sh, err := a.value(st.operands[2])
		if err != nil {
			return nil, err
		}
		if sh < 0 || sh > 31 {
			return nil, fmt.Errorf("shift amount '%s' out of range", st.operands[2])
		}
		return []uint32{typeR(f7, int(sh), regs[1], f3, regs[0], 0x13)}, nil
	}
}

func encodeReg(f3, f7 uint32) encoder {
	return func(a *assembler, st *statement) ([]uint32, error) {
		if err := expect(st, 3); err != nil {
			return nil, err
		}
		regs, err := a.registers(st, 0, 1, 2)
		if err != nil {
			return nil, err
		}
		return []uint32{typeR(f7, regs[2], regs[1], f3, regs[0], 0x33)}, nil
	}
}

func encodeLi(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 2); err != nil {
		return nil, err
	}
	rd, err := parseRegister(st.operands[0])
	if err != nil {
		return nil, err
	}
	v, err := a.value(st.operands[1])
	if err != nil {
		return nil, err
	}
	if st.size == 4 {
		return []uint32{typeI(v, 0, 0, rd, 0x13)}, nil
	}
	if !fitsSigned(v, 33) {
		return nil, fmt.Errorf("immediate '%s' out of range", st.operands[1])
	}
	hi, lo := split(v)
	return []uint32{typeU(hi, rd, 0x37), typeI(lo, rd, 0, rd, 0x13)}, nil
}

func encodeLa(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 2); err != nil {
		return nil, err
	}
	rd, err := parseRegister(st.operands[0])
	if err != nil {
		return nil, err
	}
	target, err := a.value(st.operands[1])
	if err != nil {
		return nil, err
	}
	hi, lo := split(int64(uint32(target) - st.addr))
	return []uint32{typeU(hi, rd, 0x17), typeI(lo, rd, 0, rd, 0x13)}, nil
}

func encodeMv(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 2); err != nil {
		return nil, err
	}
	regs, err := a.registers(st, 0, 1)
	if err != nil {
		return nil, err
	}
	return []uint32{typeI(0, regs[1], 0, regs[0], 0x13)}, nil
}

func encodeNot(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 2); err != nil {
		return nil, err
	}
	regs, err := a.registers(st, 0, 1)
	if err != nil {
		return nil, err
	}
	return []uint32{typeI(-1, regs[1], 4, regs[0], 0x13)}, nil
}

func encodeNeg(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 2); err != nil {
		return nil, err
	}
	regs, err := a.registers(st, 0, 1)
	if err != nil {
		return nil, err
	}
	return []uint32{typeR(0x20, regs[1], 0, 0, regs[0], 0x33)}, nil
}

func encodeJ(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 1); err != nil {
		return nil, err
	}
	off, err := a.offset(st, st.operands[0], 21)
	if err != nil {
		return nil, err
	}
	return []uint32{typeJ(off, 0)}, nil
}

func encodeJr(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 1); err != nil {
		return nil, err
	}
	rs1, err := parseRegister(st.operands[0])
	if err != nil {
		return nil, err
	}
	return []uint32{typeI(0, rs1, 0, 0, 0x67)}, nil
}

func encodeCall(a *assembler, st *statement) ([]uint32, error) {
	if err := expect(st, 1); err != nil {
		return nil, err
	}
	off, err := a.offset(st, st.operands[0], 21)
	if err != nil {
		return nil, err
	}
	return []uint32{typeJ(off, 1)}, nil
}
