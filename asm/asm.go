// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm implements a small RV32I assembler.
//
// The assembler accepts one statement per line. A statement is an optional
// label followed by an instruction, a pseudo-instruction or a directive.
// Comments begin with '#' or ';'. Supported directives are .word, .half,
// .byte, .ascii, .asciz and .align.
package asm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beevik/gdbstub/riscv"
)

var (
	errParse = errors.New("parse error")
)

// Assembly contains the machine code generated by the assembler, along with
// any errors encountered during assembly.
type Assembly struct {
	Origin uint32            // address of the first byte of code
	Code   []byte            // generated machine code
	Labels map[string]uint32 // label addresses
	Errors []string          // errors encountered during assembly
}

// WriteTo writes the machine code to w.
func (a *Assembly) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Code)
	return int64(n), err
}

// A statement is one parsed line of source that produces bytes.
type statement struct {
	row      int
	op       string
	operands []string
	addr     uint32
	size     uint32
}

type asmerror struct {
	row int
	msg string
}

type assembler struct {
	origin     uint32
	filename   string
	r          io.Reader
	pc         uint32
	statements []*statement
	labels     map[string]uint32
	code       []byte
	errors     []asmerror
}

// AssembleFile reads a file containing RV32I assembly code, assembles it
// at origin, and writes the machine code to a .bin file next to it.
func AssembleFile(path string, origin uint32, out io.Writer) error {
	inFile, err := os.Open(path)
	if err != nil {
		return err
	}
	defer inFile.Close()

	assembly, err := Assemble(inFile, path, origin)
	if err != nil {
		for _, e := range assembly.Errors {
			fmt.Fprintln(out, e)
		}
		return err
	}

	binPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".bin"
	binFile, err := os.OpenFile(binPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer binFile.Close()

	if _, err := assembly.WriteTo(binFile); err != nil {
		return err
	}

	fmt.Fprintf(out, "Assembled '%s' to produce '%s'.\n",
		filepath.Base(path), filepath.Base(binPath))
	return nil
}

// Assemble reads source from r and assembles it into RV32I machine code
// located at origin.
func Assemble(r io.Reader, filename string, origin uint32) (*Assembly, error) {
	a := &assembler{
		origin:   origin,
		filename: filename,
		r:        r,
		pc:       origin,
		labels:   make(map[string]uint32),
	}

	// Assembly consists of the following steps
	steps := []func(a *assembler) error{
		(*assembler).parse,        // Parse statements and assign addresses
		(*assembler).generateCode, // Generate the machine code
	}

	var err error
	for _, step := range steps {
		err = step(a)
		if err != nil {
			break
		}
		if len(a.errors) > 0 {
			err = errParse
			break
		}
	}

	errs := make([]string, 0, len(a.errors))
	for _, e := range a.errors {
		errs = append(errs, fmt.Sprintf("Syntax error in '%s' line %d: %s", a.filename, e.row, e.msg))
	}

	return &Assembly{
		Origin: a.origin,
		Code:   a.code,
		Labels: a.labels,
		Errors: errs,
	}, err
}

func (a *assembler) addError(row int, format string, args ...any) {
	a.errors = append(a.errors, asmerror{row: row, msg: fmt.Sprintf(format, args...)})
}

// parse reads every line of source, records label addresses and sizes each
// statement.
func (a *assembler) parse() error {
	scanner := bufio.NewScanner(a.r)
	row := 0
	for scanner.Scan() {
		row++
		line := stripComment(scanner.Text())

		// Peel off any labels.
		for {
			line = strings.TrimSpace(line)
			i := strings.IndexByte(line, ':')
			if i < 0 || !isIdentifier(line[:i]) {
				break
			}
			label := line[:i]
			if _, ok := a.labels[label]; ok {
				a.addError(row, "label '%s' defined more than once", label)
			}
			a.labels[label] = a.pc
			line = line[i+1:]
		}
		if line == "" {
			continue
		}

		op, rest, _ := strings.Cut(line, " ")
		if j := strings.IndexByte(op, '\t'); j >= 0 {
			op, rest = op[:j], op[j+1:]+" "+rest
		}
		st := &statement{
			row:      row,
			op:       strings.ToLower(op),
			operands: splitOperands(rest),
			addr:     a.pc,
		}

		size, err := a.sizeOf(st)
		if err != nil {
			a.addError(row, "%v", err)
			continue
		}
		st.size = size
		a.pc += size
		a.statements = append(a.statements, st)
	}
	return scanner.Err()
}

// sizeOf returns the number of bytes a statement occupies.
func (a *assembler) sizeOf(st *statement) (uint32, error) {
	switch st.op {
	case ".word":
		return 4 * uint32(len(st.operands)), nil
	case ".half":
		return 2 * uint32(len(st.operands)), nil
	case ".byte":
		return uint32(len(st.operands)), nil
	case ".ascii", ".asciz":
		s, err := parseString(strings.Join(st.operands, ", "))
		if err != nil {
			return 0, err
		}
		if st.op == ".asciz" {
			return uint32(len(s)) + 1, nil
		}
		return uint32(len(s)), nil
	case ".align":
		if len(st.operands) != 1 {
			return 0, errors.New(".align requires one operand")
		}
		n, err := parseNumber(st.operands[0])
		if err != nil || n < 0 || n > 12 {
			return 0, fmt.Errorf("invalid alignment '%s'", st.operands[0])
		}
		align := uint32(1) << n
		return (align - st.addr%align) % align, nil
	case "li":
		if len(st.operands) == 2 {
			if v, err := parseNumber(st.operands[1]); err == nil && fitsSigned(v, 12) {
				return 4, nil
			}
		}
		return 8, nil
	case "la":
		return 8, nil
	}
	if _, ok := encoders[st.op]; !ok {
		return 0, fmt.Errorf("unknown instruction '%s'", st.op)
	}
	return 4, nil
}

// generateCode encodes every statement now that all labels are known.
func (a *assembler) generateCode() error {
	a.code = make([]byte, 0, a.pc-a.origin)
	for _, st := range a.statements {
		b, err := a.encode(st)
		if err != nil {
			a.addError(st.row, "%v", err)
			continue
		}
		if uint32(len(b)) != st.size {
			a.addError(st.row, "internal size mismatch for '%s'", st.op)
			continue
		}
		a.code = append(a.code, b...)
	}
	return nil
}

func (a *assembler) encode(st *statement) ([]byte, error) {
	switch st.op {
	case ".word", ".half", ".byte":
		return a.encodeData(st)
	case ".ascii", ".asciz":
		s, _ := parseString(strings.Join(st.operands, ", "))
		b := []byte(s)
		if st.op == ".asciz" {
			b = append(b, 0)
		}
		return b, nil
	case ".align":
		return make([]byte, st.size), nil
	}

	enc := encoders[st.op]
	words, err := enc(a, st)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 0, 4*len(words))
	for _, w := range words {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return b, nil
}

func (a *assembler) encodeData(st *statement) ([]byte, error) {
	var b []byte
	for _, s := range st.operands {
		v, err := a.value(s)
		if err != nil {
			return nil, err
		}
		switch st.op {
		case ".word":
			b = binary.LittleEndian.AppendUint32(b, uint32(v))
		case ".half":
			b = binary.LittleEndian.AppendUint16(b, uint16(v))
		case ".byte":
			b = append(b, byte(v))
		}
	}
	return b, nil
}

// value evaluates a numeric literal or a label.
func (a *assembler) value(s string) (int64, error) {
	if v, err := parseNumber(s); err == nil {
		return v, nil
	}
	if addr, ok := a.labels[s]; ok {
		return int64(addr), nil
	}
	return 0, fmt.Errorf("invalid value '%s'", s)
}

func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			inString = !inString
		case (c == '#' || c == ';') && !inString:
			return line[:i]
		}
	}
	return line
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		return []string{s}
	}
	fields := strings.Split(s, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func parseNumber(s string) (int64, error) {
	if len(s) == 3 && s[0] == '\'' && s[2] == '\'' {
		return int64(s[1]), nil
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 32)
		if uerr != nil {
			return 0, err
		}
		return int64(int32(uint32(u))), nil
	}
	return v, nil
}

func parseString(s string) (string, error) {
	v, err := strconv.Unquote(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid string %s", s)
	}
	return v, nil
}

func parseRegister(s string) (int, error) {
	n, ok := riscv.LookupRegister(s)
	if !ok || n >= 32 {
		return 0, fmt.Errorf("invalid register '%s'", s)
	}
	return n, nil
}

func fitsSigned(v int64, bits uint) bool {
	limit := int64(1) << (bits - 1)
	return v >= -limit && v < limit
}
