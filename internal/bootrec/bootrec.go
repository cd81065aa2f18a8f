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

// Package bootrec implements the Boot Record Loader of spec.md §4.6:
// once a drive is hooked, load its MBR or El Torito boot image purely
// through the (now intercepted) INT 13h interface, then hand off with a
// far jump. Boot never returns success — a return always describes why
// the hand-off did not happen, or, in the rare case the far jump itself
// returned control, that very fact.
package bootrec

import (
	"encoding/binary"
	"fmt"

	"github.com/nettboot/sanboot13/internal/eltorito"
	"github.com/nettboot/sanboot13/internal/firmware"
)

// Caller is the narrow slice of the hooked interrupt vector a boot
// strategy drives through. *firmware.Trampoline satisfies it.
type Caller interface {
	Int13(frame *firmware.RegisterFrame) error
}

var (
	loadAddr      = firmware.FarPointer{Segment: 0x0000, Offset: 0x7C00}
	packetScratch = firmware.FarPointer{Segment: 0x0060, Offset: 0x0000}
)

const mbrSignatureOffset = 0x1FE

// Boot tries the MBR strategy, then the El Torito strategy, in the
// order spec.md §4.6 describes. Whichever strategy gets far enough to
// attempt the hand-off reports that attempt's outcome; if neither gets
// that far, both failures are combined into one error.
func Boot(fw firmware.Firmware, caller Caller, driveNumber uint8) error {
	if jumped, err := tryMBR(fw, caller, driveNumber); jumped {
		return err
	} else {
		mbrErr := err
		if jumped, err := tryElTorito(fw, caller, driveNumber); jumped {
			return err
		} else {
			return fmt.Errorf("bootrec: drive 0x%02X has no bootable record: mbr: %v; el torito: %v", driveNumber, mbrErr, err)
		}
	}
}

func farJumpAlwaysFails(fw firmware.Firmware, addr firmware.FarPointer, dl uint8) error {
	if err := fw.FarJump(addr, dl); err != nil {
		return err
	}
	return fmt.Errorf("bootrec: far jump to %s returned control unexpectedly", addr)
}

// tryMBR reads LBA 0 to 0000:7C00 via subfunction 0x02 and verifies the
// trailing 0xAA55 signature before handing off.
func tryMBR(fw firmware.Firmware, caller Caller, driveNumber uint8) (jumped bool, err error) {
	frame := &firmware.RegisterFrame{AH: 0x02, AL: 1}
	frame.SetDL(driveNumber)
	frame.SetDH(0)
	frame.CX = 0x0001 // cylinder 0, sector 1
	frame.ES = loadAddr.Segment
	frame.BX = loadAddr.Offset

	if err := caller.Int13(frame); err != nil {
		return false, fmt.Errorf("mbr read: %w", err)
	}
	if frame.Carry {
		return false, fmt.Errorf("mbr read returned status 0x%02X", frame.AH)
	}

	sig := make([]byte, 2)
	sigPtr := firmware.FarPointer{Segment: loadAddr.Segment, Offset: loadAddr.Offset + mbrSignatureOffset}
	if err := fw.CopyFromReal(sig, sigPtr); err != nil {
		return false, fmt.Errorf("read mbr signature: %w", err)
	}
	if sig[0] != 0x55 || sig[1] != 0xAA {
		return false, fmt.Errorf("not executable: missing 0xAA55 boot signature")
	}

	return true, farJumpAlwaysFails(fw, loadAddr, driveNumber)
}

// tryElTorito loads the boot catalog via subfunction 0x4D, validates its
// initial/default entry, loads the declared image via subfunction 0x42,
// and hands off to the resolved load segment.
func tryElTorito(fw firmware.Firmware, caller Caller, driveNumber uint8) (jumped bool, err error) {
	if err := readBootCatalog(fw, caller, driveNumber); err != nil {
		return false, fmt.Errorf("read boot catalog: %w", err)
	}

	catalog := make([]byte, 2048)
	if err := fw.CopyFromReal(catalog, loadAddr); err != nil {
		return false, fmt.Errorf("read boot catalog buffer: %w", err)
	}
	entry := eltorito.DecodeCatalog(catalog)

	if entry.Platform != eltorito.PlatformX86 {
		return false, fmt.Errorf("platform 0x%02X is not x86", entry.Platform)
	}
	if !entry.Bootable {
		return false, fmt.Errorf("initial boot catalog entry is not marked bootable")
	}
	if entry.Emulation != eltorito.EmulationNone {
		return false, fmt.Errorf("emulation 0x%02X is not \"no emulation\"", entry.Emulation)
	}

	target := firmware.FarPointer{Segment: entry.ResolvedLoadSegment(), Offset: 0}
	count := uint32(entry.SectorCount)
	if count == 0 {
		count = 1
	}

	if err := readExtended(fw, caller, driveNumber, uint64(entry.LoadRBA), count, target); err != nil {
		return false, fmt.Errorf("load image: %w", err)
	}

	return true, farJumpAlwaysFails(fw, target, driveNumber)
}

func readBootCatalog(fw firmware.Firmware, caller Caller, driveNumber uint8) error {
	if err := writeExtendedPacket(fw, packetScratch, loadAddr, 0, 1); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}

	frame := &firmware.RegisterFrame{AH: 0x4D, DS: packetScratch.Segment, SI: packetScratch.Offset}
	frame.SetDL(driveNumber)

	if err := caller.Int13(frame); err != nil {
		return err
	}
	if frame.Carry {
		return fmt.Errorf("returned status 0x%02X", frame.AH)
	}
	return nil
}

func readExtended(fw firmware.Firmware, caller Caller, driveNumber uint8, lba uint64, count uint32, buf firmware.FarPointer) error {
	if err := writeExtendedPacket(fw, packetScratch, buf, lba, count); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}

	frame := &firmware.RegisterFrame{AH: 0x42, DS: packetScratch.Segment, SI: packetScratch.Offset}
	frame.SetDL(driveNumber)

	if err := caller.Int13(frame); err != nil {
		return err
	}
	if frame.Carry {
		return fmt.Errorf("returned status 0x%02X", frame.AH)
	}
	return nil
}

// writeExtendedPacket packs an outgoing disk address packet, switching
// to the 0xFF "long count" form when count exceeds the 7-bit literal
// range, matching the layout internal/int13 decodes on the other side.
func writeExtendedPacket(fw firmware.Firmware, ptr firmware.FarPointer, buf firmware.FarPointer, startLBA uint64, count uint32) error {
	if count <= 0x7F {
		hdr := make([]byte, 16)
		hdr[0] = 16
		hdr[2] = byte(count)
		binary.LittleEndian.PutUint16(hdr[4:6], buf.Offset)
		binary.LittleEndian.PutUint16(hdr[6:8], buf.Segment)
		binary.LittleEndian.PutUint64(hdr[8:16], startLBA)
		return fw.CopyToReal(ptr, hdr)
	}

	hdr := make([]byte, 28)
	hdr[0] = 16
	hdr[2] = 0xFF
	binary.LittleEndian.PutUint16(hdr[4:6], buf.Offset)
	binary.LittleEndian.PutUint16(hdr[6:8], buf.Segment)
	binary.LittleEndian.PutUint64(hdr[8:16], startLBA)
	binary.LittleEndian.PutUint32(hdr[24:28], count)
	return fw.CopyToReal(ptr, hdr)
}
