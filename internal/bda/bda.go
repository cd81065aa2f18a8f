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

// Package bda keeps the firmware's BIOS Data Area drive-count byte and
// equipment word consistent with the set of currently emulated drives,
// per spec.md §4.3. The firmware manages these counters independently
// (e.g. during a setup-screen device rescan); Sync and Check let the
// dispatcher survive that without losing its registered drives.
package bda

import "github.com/nettboot/sanboot13/internal/firmware"

const (
	equipmentFloppyPresent = 1 << 0
	equipmentFddCountShift = 6
	equipmentFddCountMask  = 0x3 << equipmentFddCountShift
)

// DriveCounter reports, for each registered drive, the low-7-bit ordinal
// that must be reflected in the firmware's counters, split by kind.
type DriveCounter struct {
	IsFloppy         bool
	DriveNumberLow7  uint8
	NaturalDriveLow7 uint8
}

// Reconciler mirrors and resyncs the firmware's equipment word and
// hard-disk count against a set of emulated drives.
type Reconciler struct {
	FW firmware.BDA

	numDrives uint8
	numFdds   uint8
}

// NewReconciler builds a Reconciler reading its initial cached counts
// from fw.
func NewReconciler(fw firmware.BDA) *Reconciler {
	r := &Reconciler{FW: fw}
	r.numDrives = fw.HardDiskCount()
	r.numFdds = floppyCountFromEquipment(fw.EquipmentWord())
	return r
}

func floppyCountFromEquipment(word uint16) uint8 {
	if word&equipmentFloppyPresent == 0 {
		return 0
	}
	return uint8((word&equipmentFddCountMask)>>equipmentFddCountShift) + 1
}

// NumDrives returns the cached hard-disk count.
func (r *Reconciler) NumDrives() uint8 { return r.numDrives }

// NumFdds returns the cached floppy count.
func (r *Reconciler) NumFdds() uint8 { return r.numFdds }

// Sync re-reads the firmware's equipment word and hard-disk count,
// recomputes the floppy count, then walks every drive in counters and
// bumps the matching counter up to at least (low7 + 1), for both its
// assigned drive number and its natural drive number. The result is
// written back to the firmware.
func (r *Reconciler) Sync(counters []DriveCounter) {
	r.numDrives = r.FW.HardDiskCount()
	r.numFdds = floppyCountFromEquipment(r.FW.EquipmentWord())

	for _, c := range counters {
		bump := func(low7 uint8) {
			if c.IsFloppy {
				if need := low7 + 1; need > r.numFdds {
					r.numFdds = need
				}
			} else {
				if need := low7 + 1; need > r.numDrives {
					r.numDrives = need
				}
			}
		}
		bump(c.DriveNumberLow7)
		bump(c.NaturalDriveLow7)
	}

	r.FW.SetHardDiskCount(r.numDrives)

	word := r.FW.EquipmentWord()
	word &^= equipmentFloppyPresent | equipmentFddCountMask
	if r.numFdds > 0 {
		word |= equipmentFloppyPresent
		fddBits := r.numFdds - 1
		if fddBits > 3 {
			fddBits = 3
		}
		word |= uint16(fddBits) << equipmentFddCountShift
	}
	r.FW.SetEquipmentWord(word)
}

// Check compares the cached counts against the live firmware values; if
// they diverge — the firmware rescanned devices behind our back — it
// runs Sync to restore consistency.
func (r *Reconciler) Check(counters []DriveCounter) {
	liveDrives := r.FW.HardDiskCount()
	liveFdds := floppyCountFromEquipment(r.FW.EquipmentWord())
	if liveDrives != r.numDrives || liveFdds != r.numFdds {
		r.Sync(counters)
	}
}
