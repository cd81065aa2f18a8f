// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package firmware models the real-mode BIOS environment an INT 13h
// emulator is hooked into: the BIOS data area, the interrupt vector table,
// and the segment:offset addressing used to pass buffers across the
// interrupt boundary. None of it is a raw pointer; every access goes
// through the narrow Firmware interface so the rest of the module never
// touches memory directly.
package firmware

import "fmt"

// FarPointer is the segment:offset carrier used throughout INT 13h. It is
// a value type, never a real pointer; ToPhysical mirrors the real-mode
// address computation `(segment << 4) + offset`.
type FarPointer struct {
	Segment uint16
	Offset  uint16
}

// SentinelBufferPhys is the well-known FFFF:FFFF marker meaning "ignore
// this far pointer, use the 64-bit physical buffer address carried
// elsewhere in the request instead" (EDD extended read/write, §4.4).
var SentinelBufferPhys = FarPointer{Segment: 0xFFFF, Offset: 0xFFFF}

// ToPhysical computes the 20-bit real-mode physical address a far pointer
// resolves to.
func (p FarPointer) ToPhysical() uint32 {
	return uint32(p.Segment)<<4 + uint32(p.Offset)
}

func (p FarPointer) IsSentinel() bool {
	return p == SentinelBufferPhys
}

func (p FarPointer) String() string {
	return fmt.Sprintf("%04X:%04X", p.Segment, p.Offset)
}

// RegisterFrame is the captured CPU state at interrupt entry: the
// registers a caller loads before INT 13h and the ones handlers write
// back. AH/AL are tracked separately from the rest of AX so that handlers
// matching the source's bit-for-bit behavior don't need to mask.
type RegisterFrame struct {
	AH, AL     uint8
	BX, CX, DX uint16
	SI, DI     uint16
	ES, DS     uint16

	// Carry and Overflow mirror the two flags bits the dispatcher and
	// trampoline communicate through: Carry is the legacy INT 13h status
	// convention, Overflow is the out-of-band "handled, do not chain"
	// signal described in spec.md §4.5.
	Carry    bool
	Overflow bool
}

// AX returns the combined 16-bit accumulator.
func (f *RegisterFrame) AX() uint16 { return uint16(f.AH)<<8 | uint16(f.AL) }

// SetAX writes both halves of the accumulator at once.
func (f *RegisterFrame) SetAX(ax uint16) {
	f.AH = uint8(ax >> 8)
	f.AL = uint8(ax)
}

// DH/DL accessors: DL carries the drive number, DH carries the head in
// CHS requests.
func (f *RegisterFrame) DH() uint8 { return uint8(f.DX >> 8) }
func (f *RegisterFrame) DL() uint8 { return uint8(f.DX) }

func (f *RegisterFrame) SetDH(v uint8) { f.DX = uint16(v)<<8 | uint16(f.DL()) }
func (f *RegisterFrame) SetDL(v uint8) { f.DX = uint16(f.DH())<<8 | uint16(v) }

// CH/CL accessors: CH holds the low 8 bits of the 10-bit cylinder, CL
// packs the high 2 cylinder bits (bits 7:6) with the 6-bit sector number.
func (f *RegisterFrame) CH() uint8 { return uint8(f.CX >> 8) }
func (f *RegisterFrame) CL() uint8 { return uint8(f.CX) }

// BDA is the subset of the BIOS Data Area the emulator mutates: the
// equipment word at 0040:0010 and the hard-disk count byte at 0040:0075.
type BDA interface {
	EquipmentWord() uint16
	SetEquipmentWord(uint16)
	HardDiskCount() uint8
	SetHardDiskCount(uint8)
}

// Firmware is the narrow interface the module's "global mutable state"
// note (spec.md §9) calls for: vector ownership, BDA access, and the
// copy-to/from-real helpers standing in for segment:offset memory access.
// A real firmware build backs this with actual real-mode memory; Sim (in
// sim.go) backs it with a plain Go byte arena for tests and the CLI.
type Firmware interface {
	BDA

	// Vector13 returns the far address currently installed at INT 13h.
	Vector13() FarPointer
	// SetVector13 installs a new handler address and returns the
	// previous one, mirroring "hook steals the vector, remembers the
	// original".
	SetVector13(FarPointer) FarPointer

	// CopyFromReal / CopyToReal move bytes across the segment:offset
	// boundary. They are the only primitives through which handler code
	// touches "real memory" — never an unsafe.Pointer.
	CopyFromReal(dst []byte, src FarPointer) error
	CopyToReal(dst FarPointer, src []byte) error

	// CopyFromPhys / CopyToPhys are the 64-bit physical-address
	// equivalents used when a disk address packet supplies buffer_phys
	// instead of a segment:offset (§4.4, subfunction 0x42/0x43).
	CopyFromPhys(dst []byte, phys uint64) error
	CopyToPhys(phys uint64, src []byte) error

	// FarJump simulates the boot-sector hand-off: transferring control
	// to loaded boot code with DL preloaded. It is the out-of-scope
	// external collaborator named in spec.md §1; the real build never
	// returns from it. FarJumpFunc lets tests and the CLI observe the
	// call instead of actually jumping.
	FarJump(addr FarPointer, dl uint8) error
}

// FarJumpFunc is the function-pointer binding spec.md §9 asks for:
// "bind it to a single function pointer the higher-level dispatcher
// provides." A real build wires this to the CPU control-transfer
// trampoline; Sim wires it to a recorder.
type FarJumpFunc func(addr FarPointer, dl uint8) error
