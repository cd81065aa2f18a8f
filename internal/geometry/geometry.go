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

// Package geometry synthesizes plausible CHS geometry for volumes that
// carry none, per spec.md §4.1. CHS has no on-disk ground truth; the
// inference reconstructs the geometry the disk's original formatter
// almost certainly used, from the MBR partition table (hard disks) or a
// table of canonical sizes (floppies).
package geometry

import (
	"encoding/binary"
	"fmt"

	"github.com/nettboot/sanboot13/internal/sniff"
)

// CHS is a synthesized (cylinders, heads, sectors-per-track) triple,
// bounded per spec.md §3 invariant: cylinders ∈ [1,1024], heads ∈
// [1,255], sectors ∈ [1,63].
type CHS struct {
	Cylinders       uint16
	Heads           uint8
	SectorsPerTrack uint8
}

const (
	mbrSize           = 512
	mbrSignatureAt    = 0x1FE
	partitionTableAt  = 0x1BE
	partitionEntrySz  = 16
	maxPartitionCount = 4
)

// partitionEntry decodes the fields of one 16-byte MBR partition entry
// (grounded on internal/disk.MBRPartitionEntry).
type partitionEntry struct {
	bootIndicator uint8
	startCHS      [3]byte
	partType      uint8
	endCHS        [3]byte
	startLBA      uint32
	totalSectors  uint32
}

// decodeCHS unpacks the packed 3-byte CHS field used by MBR partition
// entries: head in byte 0, sector in the low 6 bits of byte 1, cylinder
// high bits in the top 2 bits of byte 1, cylinder low byte in byte 2.
func decodeCHS(b [3]byte) (cylinder uint16, head uint8, sector uint8) {
	head = b[0]
	sector = b[1] & 0x3F
	cylinder = uint16(b[1]&0xC0)<<2 | uint16(b[2])
	return
}

// InferHDD produces (heads, sectorsPerTrack) for a hard disk by reading
// its MBR and reconstructing geometry from the partition table, per
// spec.md §4.1.
//
// scratch must be exactly one 512-byte sector (sector 0 of the device).
func InferHDD(scratch []byte) (heads uint8, sectors uint8, err error) {
	if len(scratch) != mbrSize {
		return 0, 0, fmt.Errorf("geometry: MBR scratch buffer is %d bytes, want %d", len(scratch), mbrSize)
	}

	// A sector without the 0xAA55 boot signature is not treated as an
	// MBR: the partition table is not examined and the (255, 63)
	// default is returned straight away.
	if !sniff.IsMBR(scratch) {
		return 255, 63, nil
	}

	var guessHeads, guessSectors uint8

	for i := 0; i < maxPartitionCount; i++ {
		off := partitionTableAt + i*partitionEntrySz
		entry := decodePartitionEntry(scratch[off : off+partitionEntrySz])
		if entry.partType == 0 {
			continue
		}

		startCyl, startHead, startSector := decodeCHS(entry.startCHS)
		_, endHead, endSector := decodeCHS(entry.endCHS)

		if startCyl == 0 && startHead != 0 {
			// Unambiguous reconstruction: the partition starts on
			// cylinder 0, so start_lba directly yields sectors/track.
			sectors := uint32(entry.startLBA+1-uint32(startSector)) / uint32(startHead)
			if sectors >= 1 && sectors <= 63 {
				guessSectors = uint8(sectors)
				guessHeads = startHead
				continue
			}
		}

		if endHead+1 > guessHeads {
			guessHeads = endHead + 1
		}
		if endSector > guessSectors {
			guessSectors = endSector
		}
	}

	if guessHeads == 0 || guessSectors == 0 {
		return 255, 63, nil
	}
	return guessHeads, guessSectors, nil
}

func decodePartitionEntry(b []byte) partitionEntry {
	var e partitionEntry
	e.bootIndicator = b[0x00]
	copy(e.startCHS[:], b[0x01:0x04])
	e.partType = b[0x04]
	copy(e.endCHS[:], b[0x05:0x08])
	e.startLBA = binary.LittleEndian.Uint32(b[0x08:0x0C])
	e.totalSectors = binary.LittleEndian.Uint32(b[0x0C:0x10])
	return e
}

// floppyLayout is one row of the canonical-floppy-size table (spec.md
// §4.1: "20 canonical floppy sizes").
type floppyLayout struct {
	cylinders uint16
	heads     uint8
	sectors   uint8
}

func (l floppyLayout) totalSectors() uint64 {
	return uint64(l.cylinders) * uint64(l.heads) * uint64(l.sectors)
}

// floppyTable enumerates the canonical CHS layouts from 160 KiB
// (40×1×8) to 3.84 MiB (80×2×48), matching every geometry a real
// floppy controller could format.
var floppyTable = []floppyLayout{
	{40, 1, 8},   // 160 KiB
	{40, 1, 9},   // 180 KiB
	{40, 2, 8},   // 320 KiB
	{40, 2, 9},   // 360 KiB
	{80, 1, 8},   // 320 KiB (80-track single-sided)
	{80, 1, 9},   // 360 KiB
	{80, 1, 15},  // 600 KiB
	{80, 2, 8},   // 640 KiB
	{80, 2, 9},   // 720 KiB
	{80, 2, 10},  // 800 KiB
	{80, 2, 15},  // 1.2 MiB
	{80, 2, 18},  // 1.44 MiB
	{80, 2, 20},  // 1.6 MiB
	{80, 2, 21},  // 1.68 MiB
	{80, 2, 23},  // 1.84 MiB
	{82, 2, 18},  // 1.48 MiB
	{82, 2, 21},  // 1.72 MiB
	{83, 2, 21},  // 1.74 MiB
	{80, 2, 36},  // 2.88 MiB
	{80, 2, 48},  // 3.84 MiB
}

// InferFloppy produces (heads, sectorsPerTrack) for a floppy by matching
// totalSectors against the canonical size table; on miss it falls back
// to the 1.44 MiB layout (2, 18), per spec.md §4.1.
func InferFloppy(totalSectors uint64) (heads uint8, sectors uint8) {
	for _, layout := range floppyTable {
		if layout.totalSectors() == totalSectors {
			return layout.heads, layout.sectors
		}
	}
	return 2, 18
}

// Cylinders derives the cylinder count from capacity and the inferred
// heads/sectors, capped at 1024 per spec.md §3 invariant.
func Cylinders(capacitySectors uint64, heads, sectorsPerTrack uint8) uint16 {
	perCylinder := uint64(heads) * uint64(sectorsPerTrack)
	if perCylinder == 0 {
		return 1
	}
	cyl := capacitySectors / perCylinder
	if cyl > 1024 {
		cyl = 1024
	}
	if cyl == 0 {
		cyl = 1
	}
	return uint16(cyl)
}

// Infer produces a full CHS triple for a device, given whether it is a
// floppy and (for hard disks) a valid MBR scratch sector. capacitySectors
// is the device's total addressable sector count.
func Infer(isFloppy bool, capacitySectors uint64, mbrScratch []byte) (CHS, error) {
	var heads, sectors uint8
	if isFloppy {
		heads, sectors = InferFloppy(capacitySectors)
	} else {
		h, s, err := InferHDD(mbrScratch)
		if err != nil {
			// No usable partition table: fall back to the legacy
			// large-disk default rather than failing hook().
			h, s = 255, 63
		}
		heads, sectors = h, s
	}
	return CHS{
		Cylinders:       Cylinders(capacitySectors, heads, sectors),
		Heads:           heads,
		SectorsPerTrack: sectors,
	}, nil
}
