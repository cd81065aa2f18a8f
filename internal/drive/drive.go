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

// Package drive holds the data model of spec.md §3: EmulatedDrive,
// GlobalEmulatorState, and the hook()/unhook() lifecycle that creates
// and tears down emulated drives, installing and restoring the
// interrupt trampoline as the registered set goes from empty to
// non-empty and back.
package drive

import (
	"fmt"
	"sync"

	"github.com/nettboot/sanboot13/internal/bda"
	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/eltorito"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/nettboot/sanboot13/internal/geometry"
)

// Kind is the tagged DriveKind variant from spec.md §9: "model
// DriveKind = Floppy | HardDisk | Cdrom as a tagged variant; the 'is
// FDD' predicate and the drive-count selector are case-matches."
type Kind int

const (
	KindFloppy Kind = iota
	KindHardDisk
	KindCdrom
)

func (k Kind) String() string {
	switch k {
	case KindFloppy:
		return "floppy"
	case KindHardDisk:
		return "hard-disk"
	case KindCdrom:
		return "cdrom"
	default:
		return "unknown"
	}
}

// IsFloppy is the "is FDD" predicate spec.md §9 calls for.
func (k Kind) IsFloppy() bool { return k == KindFloppy }

const (
	hardDiskBit   = 0x80
	nonDriveCDROM = 0x7F
)

// KindOf classifies a drive number per the bit-7 convention plus
// whether the caller has told us it is a CD-ROM (bit 7 alone cannot
// distinguish HardDisk from Cdrom, since optical emulation also sets
// it in the legacy numbering scheme). The 0x7F sentinel (non-drive-
// specific CD-ROM placeholder) always resolves into the hard-disk/
// cdrom numbering range, since BIOS CD-ROM emulation is conventionally
// assigned a drive number at or above 0x80.
func KindOf(driveNumber uint8, isCDROM bool) Kind {
	hiBit := driveNumber & hardDiskBit
	if driveNumber == nonDriveCDROM {
		hiBit = hardDiskBit
	}
	if hiBit == 0 {
		return KindFloppy
	}
	if isCDROM {
		return KindCdrom
	}
	return KindHardDisk
}

// EmulatedDrive is one registered SAN volume, per spec.md §3.
type EmulatedDrive struct {
	DriveNumber  uint8
	NaturalDrive uint8
	Kind         Kind

	Geometry geometry.CHS

	// BootCatalogLBA is present only for CD-ROMs carrying an El Torito
	// record.
	BootCatalogLBA uint32
	HasBootCatalog bool

	LastStatus uint8

	Device blockdev.Device
}

// Low7 returns the 7 low bits of the drive number (the ordinal within
// its kind), used by the reconciler's counting rules.
func (d *EmulatedDrive) Low7() uint8 { return d.DriveNumber &^ hardDiskBit }

// NaturalLow7 mirrors Low7 for the natural drive number.
func (d *EmulatedDrive) NaturalLow7() uint8 { return d.NaturalDrive &^ hardDiskBit }

// State is the process-wide GlobalEmulatorState of spec.md §3: the
// BDA reconciler, the registered drives, and whether vector 0x13 is
// hooked. The xBFT pool is not part of it (see xbft.Pool). NewState
// builds the reconciler eagerly; the vector is taken over on the first
// Hook call.
type State struct {
	mu sync.Mutex

	fw         firmware.Firmware
	reconciler *bda.Reconciler

	drives []*EmulatedDrive

	originalVector firmware.FarPointer
	hooked         bool

	trampolineAddr firmware.FarPointer
}

// NewState builds an empty GlobalEmulatorState bound to a Firmware
// abstraction. trampolineAddr is the far address the hook installs at
// vector 0x13 once at least one drive is registered — in a hosted build
// this is whatever function pointer the embedder's dispatch loop uses
// in place of a real assembly stub.
func NewState(fw firmware.Firmware, trampolineAddr firmware.FarPointer) *State {
	return &State{
		fw:             fw,
		reconciler:     bda.NewReconciler(fw),
		trampolineAddr: trampolineAddr,
	}
}

// Drives returns a copy of the currently registered drives; the slice
// does not change on later Hook/Unhook calls.
func (s *State) Drives() []*EmulatedDrive {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*EmulatedDrive, len(s.drives))
	copy(out, s.drives)
	return out
}

// Lookup finds the registered drive by exact drive number.
func (s *State) Lookup(driveNumber uint8) (*EmulatedDrive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drives {
		if d.DriveNumber == driveNumber {
			return d, true
		}
	}
	return nil, false
}

// LookupNatural finds the registered drive whose natural_drive equals
// the given number — the remap case of spec.md §4.4 step 2.
func (s *State) LookupNatural(naturalDrive uint8) (*EmulatedDrive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drives {
		if d.NaturalDrive == naturalDrive {
			return d, true
		}
	}
	return nil, false
}

// LookupCDROMTerminate finds a CD-ROM drive to answer the "non-drive-
// specific" 0x7F + CD-ROM-status-subfunction case of spec.md §4.4.
func (s *State) LookupCDROMTerminate() (*EmulatedDrive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.drives {
		if d.Kind == KindCdrom {
			return d, true
		}
	}
	return nil, false
}

func (s *State) counters() []bda.DriveCounter {
	out := make([]bda.DriveCounter, 0, len(s.drives))
	for _, d := range s.drives {
		out = append(out, bda.DriveCounter{
			IsFloppy:         d.Kind.IsFloppy(),
			DriveNumberLow7:  d.Low7(),
			NaturalDriveLow7: d.NaturalLow7(),
		})
	}
	return out
}

// Check runs the reconciler's Check operation (spec.md §4.3), called by
// the dispatcher on every interrupt entry.
func (s *State) Check() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconciler.Check(s.counters())
}

// NumDrives and NumFdds expose the reconciler's cached counts, used by
// the 0x08 and 0x15 handlers.
func (s *State) NumDrives() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.NumDrives()
}

func (s *State) NumFdds() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.NumFdds()
}

// hiBitFor returns the drive-number high bit (0x80) for every kind
// except Floppy.
func hiBitFor(kind Kind) uint8 {
	if kind.IsFloppy() {
		return 0
	}
	return hardDiskBit
}

// nextNaturalLocked returns the drive number an appended device of kind
// would receive if appended to the live BIOS drive list right now: the
// cached firmware count for that kind, translated into a low-7 ordinal,
// widened to account for any already-registered emulated drive of the
// same kind the firmware doesn't know about yet.
func (s *State) nextNaturalLocked(kind Kind) uint8 {
	var count uint8
	if kind.IsFloppy() {
		count = s.reconciler.NumFdds()
	} else {
		count = s.reconciler.NumDrives()
	}
	for _, d := range s.drives {
		if d.Kind.IsFloppy() == kind.IsFloppy() && d.Low7()+1 > count {
			count = d.Low7() + 1
		}
	}
	return hiBitFor(kind) | count
}

// naturalForLocked computes natural_drive for a hook() call at
// driveNumber: if driveNumber's low-7 ordinal falls within the range the
// firmware already counts as occupied, the emulated drive displaces a
// real one and natural_drive becomes the next free slot (spec.md §8
// scenario 4); otherwise the device is simply being appended and
// natural_drive equals driveNumber.
func (s *State) naturalForLocked(driveNumber uint8, kind Kind) uint8 {
	next := s.nextNaturalLocked(kind)
	if driveNumber&^hardDiskBit < next&^hardDiskBit {
		return next
	}
	return driveNumber
}

func (s *State) lookupLocked(driveNumber uint8) (*EmulatedDrive, bool) {
	for _, d := range s.drives {
		if d.DriveNumber == driveNumber {
			return d, true
		}
	}
	return nil, false
}

// Hook registers a new emulated drive backed by dev, synthesizing
// geometry and (for CD-ROMs) parsing El Torito, per spec.md §3's
// lifecycle. Drive number 0x7F is replaced by the natural drive number
// (spec.md §8 boundary case), since 0x7F is reserved as the
// non-drive-specific CD-ROM terminate address.
func (s *State) Hook(driveNumber uint8, dev blockdev.Device) (*EmulatedDrive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := KindOf(driveNumber, dev.IsCDROM())
	if driveNumber == nonDriveCDROM {
		driveNumber = s.nextNaturalLocked(kind)
	}

	if _, exists := s.lookupLocked(driveNumber); exists {
		return nil, fmt.Errorf("drive: drive number 0x%02X already registered", driveNumber)
	}

	natural := s.naturalForLocked(driveNumber, kind)

	var mbrScratch []byte
	if !kind.IsFloppy() {
		bufSize := int(dev.BlockSize())
		if bufSize < 512 {
			bufSize = 512
		}
		raw := make([]byte, bufSize)
		if err := dev.Read(0, 1, raw); err != nil {
			return nil, fmt.Errorf("drive: read sector 0 of 0x%02X for geometry inference: %w", driveNumber, err)
		}
		mbrScratch = raw[:512]
	}

	chs, err := geometry.Infer(kind.IsFloppy(), dev.Capacity(), mbrScratch)
	if err != nil {
		return nil, fmt.Errorf("drive: geometry inference for 0x%02X: %w", driveNumber, err)
	}

	d := &EmulatedDrive{
		DriveNumber:  driveNumber,
		NaturalDrive: natural,
		Kind:         kind,
		Geometry:     chs,
		Device:       dev,
	}

	if kind == KindCdrom {
		if rec, ok, err := eltorito.Detect(dev); err != nil {
			return nil, fmt.Errorf("drive: el torito detect for 0x%02X: %w", driveNumber, err)
		} else if ok {
			d.BootCatalogLBA = rec.BootCatalogLBA
			d.HasBootCatalog = true
		}
	}

	s.drives = append(s.drives, d)
	s.reconciler.Sync(s.counters())

	if !s.hooked {
		s.originalVector = s.fw.SetVector13(s.trampolineAddr)
		s.hooked = true
	}

	return d, nil
}

// Unhook de-registers a drive. If it was the last one, the original
// vector 0x13 is restored. Per spec.md §9's open question, the BIOS
// drive-count byte is intentionally left unadjusted: decrementing it
// reliably isn't possible once the firmware may have already observed
// the higher count, so this mirrors the source's documented choice.
func (s *State) Unhook(driveNumber uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, d := range s.drives {
		if d.DriveNumber == driveNumber {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("drive: drive number 0x%02X not registered", driveNumber)
	}

	s.drives = append(s.drives[:idx], s.drives[idx+1:]...)

	if len(s.drives) == 0 && s.hooked {
		s.fw.SetVector13(s.originalVector)
		s.hooked = false
	}
	return nil
}

// Hooked reports whether the trampoline currently owns vector 0x13.
func (s *State) Hooked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hooked
}
