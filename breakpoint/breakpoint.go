// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package breakpoint implements the registry of breakpoints and watchpoints
// consulted by an emulated CPU while it executes.
//
// Breakpoints are kept in four ordered address sets, one per breakpoint
// kind, so the CPU can ask for the nearest breakpoint at or after its
// program counter. Watchpoints are kept separately as address intervals and
// are matched against memory accesses by overlap.
//
// A Registry is not safe for concurrent use. The stub package guards it
// with the same lock that protects the CPU's execution control state.
package breakpoint

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// Errors returned by registry operations.
var (
	ErrInvalidKind   = errors.New("invalid breakpoint kind")
	ErrInvalidLength = errors.New("invalid watchpoint length")
)

// Kind selects the type of access a breakpoint responds to.
type Kind byte

const (
	None    Kind = iota // not a breakpoint; returned when a lookup fails
	Execute             // instruction fetch
	Read                // data read
	Write               // data write
	Access              // data read or write

	numKinds = int(Access) + 1
)

var kindNames = [...]string{
	None:    "none",
	Execute: "execute",
	Read:    "read",
	Write:   "write",
	Access:  "access",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Valid returns true if k may be stored in a registry.
func (k Kind) Valid() bool {
	return k > None && int(k) < numKinds
}

// IsData returns true if k describes a data access rather than an
// instruction fetch.
func (k Kind) IsData() bool {
	return k == Read || k == Write || k == Access
}

// KindFromZType converts the type field of an RSP Z/z packet into a Kind.
// Types 0 (software) and 1 (hardware) breakpoints both map to Execute.
func KindFromZType(z int) (Kind, error) {
	switch z {
	case 0, 1:
		return Execute, nil
	case 2:
		return Write, nil
	case 3:
		return Read, nil
	case 4:
		return Access, nil
	default:
		return None, ErrInvalidKind
	}
}

// A Breakpoint is an address paired with the kind of access that triggers
// it. The zero value, {0, None}, means "no breakpoint".
type Breakpoint struct {
	Address uint64
	Kind    Kind
}

func (b Breakpoint) String() string {
	return fmt.Sprintf("%s@%#x", b.Kind, b.Address)
}

// A Watchpoint covers the half-open address interval [Base, Base+Length).
type Watchpoint struct {
	Base   uint64
	Length uint64
	Kind   Kind
}

// End returns the first address past the end of the watched interval.
func (w Watchpoint) End() uint64 {
	return w.Base + w.Length
}

// Contains returns true if addr lies within the watched interval.
func (w Watchpoint) Contains(addr uint64) bool {
	return addr >= w.Base && addr-w.Base < w.Length
}

// Overlaps returns true if the interval [addr, addr+length) shares at least
// one address with the watched interval. A zero-length interval overlaps
// nothing.
func (w Watchpoint) Overlaps(addr, length uint64) bool {
	if length == 0 || w.Length == 0 {
		return false
	}
	return addr < w.End() && w.Base < saturatingEnd(addr, length)
}

func (w Watchpoint) String() string {
	return fmt.Sprintf("%s@%#x+%d", w.Kind, w.Base, w.Length)
}

func saturatingEnd(addr, length uint64) uint64 {
	if addr > math.MaxUint64-length {
		return math.MaxUint64
	}
	return addr + length
}

// A Registry holds breakpoints and watchpoints.
type Registry struct {
	sets    [numKinds][]uint64
	watches []Watchpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// InsertBreakpoint adds a breakpoint. Inserting a breakpoint that already
// exists has no effect.
func (r *Registry) InsertBreakpoint(addr uint64, kind Kind) error {
	if !kind.Valid() {
		return ErrInvalidKind
	}
	set := r.sets[kind]
	i, found := slices.BinarySearch(set, addr)
	if !found {
		r.sets[kind] = slices.Insert(set, i, addr)
	}
	return nil
}

// RemoveBreakpoint removes a breakpoint. Removing a breakpoint that does not
// exist has no effect.
func (r *Registry) RemoveBreakpoint(addr uint64, kind Kind) {
	if !kind.Valid() {
		return
	}
	set := r.sets[kind]
	if i, found := slices.BinarySearch(set, addr); found {
		r.sets[kind] = slices.Delete(set, i, i+1)
	}
}

// Has returns true if a breakpoint of the given kind exists at addr.
func (r *Registry) Has(addr uint64, kind Kind) bool {
	if !kind.Valid() {
		return false
	}
	_, found := slices.BinarySearch(r.sets[kind], addr)
	return found
}

// NearestAtOrAfter returns the breakpoint of the requested kind with the
// smallest address greater than or equal to addr. If there is no such
// breakpoint, it returns the zero Breakpoint and false. The search only
// moves forward from addr.
func (r *Registry) NearestAtOrAfter(addr uint64, kind Kind) (Breakpoint, bool) {
	if !kind.Valid() {
		return Breakpoint{}, false
	}
	set := r.sets[kind]
	i, _ := slices.BinarySearch(set, addr)
	if i == len(set) {
		return Breakpoint{}, false
	}
	return Breakpoint{Address: set[i], Kind: kind}, true
}

// Breakpoints returns the addresses of all breakpoints of the requested
// kind in ascending order.
func (r *Registry) Breakpoints(kind Kind) []uint64 {
	if !kind.Valid() {
		return nil
	}
	return slices.Clone(r.sets[kind])
}

// Len returns the number of breakpoints of the requested kind.
func (r *Registry) Len(kind Kind) int {
	if !kind.Valid() {
		return 0
	}
	return len(r.sets[kind])
}

// InsertWatchpoint adds a watchpoint covering [base, base+length). The kind
// must be Read, Write or Access, and the interval must be non-empty and must
// not wrap around the end of the address space. Inserting a watchpoint that
// already exists has no effect.
func (r *Registry) InsertWatchpoint(base, length uint64, kind Kind) error {
	if !kind.IsData() {
		return ErrInvalidKind
	}
	if length == 0 || base > math.MaxUint64-length {
		return ErrInvalidLength
	}
	w := Watchpoint{Base: base, Length: length, Kind: kind}
	if !slices.Contains(r.watches, w) {
		r.watches = append(r.watches, w)
	}
	return nil
}

// RemoveWatchpoint removes the watchpoint with exactly the given base,
// length and kind. Removing a watchpoint that does not exist has no effect.
func (r *Registry) RemoveWatchpoint(base, length uint64, kind Kind) {
	w := Watchpoint{Base: base, Length: length, Kind: kind}
	if i := slices.Index(r.watches, w); i >= 0 {
		r.watches = slices.Delete(r.watches, i, i+1)
	}
}

// CheckWatchpoint looks for a watchpoint overlapping the memory access
// [addr, addr+length) of the given kind. If one is found, the base address
// of the first such watchpoint is returned, since a debugger client matches
// reported hits against the address it originally asked to watch.
//
// Read and Write accesses match watchpoints of the same kind and Access
// watchpoints. An Access query matches every watchpoint.
func (r *Registry) CheckWatchpoint(addr, length uint64, kind Kind) (uint64, bool) {
	if length == 0 || !kind.IsData() {
		return 0, false
	}
	for _, w := range r.watches {
		if w.Overlaps(addr, length) && watchMatches(w.Kind, kind) {
			return w.Base, true
		}
	}
	return 0, false
}

// Watchpoint returns the first watchpoint overlapping the access, with the
// same matching rules as CheckWatchpoint.
func (r *Registry) Watchpoint(addr, length uint64, kind Kind) (Watchpoint, bool) {
	if length == 0 || !kind.IsData() {
		return Watchpoint{}, false
	}
	for _, w := range r.watches {
		if w.Overlaps(addr, length) && watchMatches(w.Kind, kind) {
			return w, true
		}
	}
	return Watchpoint{}, false
}

func watchMatches(watch, access Kind) bool {
	return watch == access || watch == Access || access == Access
}

// Watchpoints returns a copy of all watchpoints in insertion order.
func (r *Registry) Watchpoints() []Watchpoint {
	return slices.Clone(r.watches)
}

// Clear removes every breakpoint and watchpoint.
func (r *Registry) Clear() {
	for i := range r.sets {
		r.sets[i] = nil
	}
	r.watches = nil
}
