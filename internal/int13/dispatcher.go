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

package int13

import (
	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/firmware"
)

const (
	ahGetLastStatus  = 0x01
	ahCDROMTerminate = 0x4B
	dlNonDriveCDROM  = 0x7F
)

// handlerFunc implements one INT 13h subfunction. It mutates frame with
// whatever success-contract fields the subfunction promises, and
// returns a Result the dispatcher converts into the carry/AH
// convention.
type handlerFunc func(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result

// Dispatcher implements spec.md §4.4's Command Dispatcher. Its Dispatch
// method is bound as a firmware.Trampoline's DispatchFunc.
type Dispatcher struct {
	FW    firmware.Firmware
	State *drive.State

	// AllowVerify controls subfunction 0x44's contract: the source
	// returns Invalid unconditionally; this flag lets an embedder opt
	// into returning success instead, per spec.md §9's open question.
	AllowVerify bool

	// FloppyParamTable, if non-zero, is written into ES:DI by
	// subfunction 0x08 for floppy drives. Left unset, 0x08 simply
	// leaves ES:DI untouched.
	FloppyParamTable firmware.FarPointer

	handlers map[uint8]handlerFunc
}

// NewTrampoline builds a firmware.Trampoline fronted by d, with d's own
// FixupDL wired in so spec.md §4.5 step 4's DL rules actually take
// effect on return — a bare &firmware.Trampoline{Dispatch: d.Dispatch}
// would silently fall back to "always restore entryDL".
func NewTrampoline(fw firmware.Firmware, d *Dispatcher, chain firmware.ChainFunc) *firmware.Trampoline {
	return &firmware.Trampoline{
		FW:       fw,
		Dispatch: d.Dispatch,
		Chain:    chain,
		FixupDL:  d.FixupDL,
	}
}

func (d *Dispatcher) table() map[uint8]handlerFunc {
	if d.handlers == nil {
		d.handlers = map[uint8]handlerFunc{
			0x00: handleReset,
			0x01: handleGetLastStatus,
			0x02: handleReadCHS,
			0x03: handleWriteCHS,
			0x08: handleGetParams,
			0x15: handleGetDiskType,
			0x41: handleExtensionCheck,
			0x42: handleExtendedReadWrite,
			0x43: handleExtendedReadWrite,
			0x44: handleExtendedVerify,
			0x47: handleExtendedSeek,
			0x48: handleGetExtendedParams,
			0x4B: handleCDROMStatus,
			0x4D: handleReadBootCatalog,
		}
	}
	return d.handlers
}

// matchKind distinguishes how a drive matched the caller's DL, per
// spec.md §4.4 step 2.
type matchKind int

const (
	matchNone matchKind = iota
	matchExact
	matchRemap
	matchCDROMTerminate
)

func (d *Dispatcher) findDrive(frame *firmware.RegisterFrame) (*drive.EmulatedDrive, matchKind) {
	return d.findDriveByDL(frame.DL(), frame.AH)
}

func (d *Dispatcher) findDriveByDL(dl uint8, ah uint8) (*drive.EmulatedDrive, matchKind) {
	if drv, ok := d.State.Lookup(dl); ok {
		return drv, matchExact
	}
	if drv, ok := d.State.LookupNatural(dl); ok {
		return drv, matchRemap
	}
	if dl == dlNonDriveCDROM && ah == ahCDROMTerminate {
		if drv, ok := d.State.LookupCDROMTerminate(); ok {
			return drv, matchCDROMTerminate
		}
	}
	return nil, matchNone
}

// FixupDL implements firmware.DLFixupFunc, matching spec.md §4.5 step 4's
// per-subfunction return-DL rules. It is meant to be wired onto the
// firmware.Trampoline that fronts this dispatcher.
//
// AH=0x08 and AH=0x15 carry a universal output contract (the system-wide
// drive count, or "leave DL untouched") that real firmware honors
// regardless of whether the queried drive number happens to be one this
// dispatcher owns. So those two subfunctions are fixed up from entryDL's
// own floppy/non-floppy bit even on the chain-through (matchNone) path;
// every other subfunction keeps the "untouched on no match" shortcut.
func (d *Dispatcher) FixupDL(subfunction uint8, entryDL uint8, frame *firmware.RegisterFrame) uint8 {
	if subfunction != 0x08 && subfunction != 0x15 {
		return entryDL
	}

	isFloppy := drive.KindOf(entryDL, false).IsFloppy()

	switch subfunction {
	case 0x15:
		if isFloppy {
			return entryDL
		}
		// "leave DL untouched" on a hard disk: the handler's own DL, if
		// any, stands.
		return frame.DL()
	default: // 0x08
		if isFloppy {
			return d.State.NumFdds()
		}
		return d.State.NumDrives()
	}
}

// Dispatch implements firmware.DispatchFunc: it is bound directly as a
// Trampoline's Dispatch field.
func (d *Dispatcher) Dispatch(fw firmware.Firmware, frame *firmware.RegisterFrame) {
	d.State.Check()

	drv, kind := d.findDrive(frame)
	if kind == matchNone {
		// No drive claims this DL: leave the frame untouched and let
		// the trampoline chain to the original handler.
		return
	}

	if kind == matchRemap {
		// Rewrite DL to the emulated drive's own number and chain, so
		// the firmware's original handler continues to serve the
		// displaced device at its new natural number.
		frame.SetDL(drv.DriveNumber)
		return
	}

	handler, known := d.table()[frame.AH]
	if !known {
		d.finish(drv, frame, Fail(StatusInvalid))
		return
	}

	result := handler(d, drv, frame)
	d.finish(drv, frame, result)
}

// finish applies the carry/AH convention and the last_status update,
// per spec.md §4.4 steps 4-6, then signals "handled" to the trampoline.
func (d *Dispatcher) finish(drv *drive.EmulatedDrive, frame *firmware.RegisterFrame, result Result) {
	// Subfunction 0x01 reports the previously stored last_status; it
	// must not overwrite it with its own (successful) outcome.
	if frame.AH != ahGetLastStatus {
		if result.IsOK() {
			drv.LastStatus = 0
		} else {
			drv.LastStatus = uint8(result.Status())
		}
	}

	if result.IsOK() {
		frame.Carry = false
	} else {
		frame.Carry = true
		frame.AH = uint8(result.Status())
	}

	// Overflow is the out-of-band "handled, do not chain" signal the
	// trampoline expects (spec.md §4.5).
	frame.Overflow = true
}
