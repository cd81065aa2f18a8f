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

import "github.com/nettboot/sanboot13/internal/firmware"

// DecodeCHS extracts the legacy packed (cylinder, head, sector) triple
// from a register frame: cylinder's low 8 bits in CH, its high 2 bits
// in CL's top bits, 1-based sector in CL's low 6 bits, head in DH.
func DecodeCHS(frame *firmware.RegisterFrame) (cylinder uint16, head uint8, sector uint8) {
	cl := frame.CL()
	cylinder = uint16(frame.CH()) | uint16(cl&0xC0)<<2
	sector = cl & 0x3F
	head = frame.DH()
	return
}

// EncodeCHS packs a (cylinder, sector) pair back into CH/CL the way
// DecodeCHS reads it; the head goes in DH separately. Used by getParams
// (0x08) to report maximum addressable geometry, and by tests to build
// CHS request registers.
func EncodeCHS(cylinder uint16, sector uint8) (ch uint8, cl uint8) {
	ch = uint8(cylinder)
	cl = uint8(cylinder>>8&0x03)<<6 | (sector & 0x3F)
	return
}

// CHSToLBA applies spec.md §4.4's formula:
// lba = ((cylinder·heads) + head)·sectors_per_track + sector − 1.
func CHSToLBA(cylinder uint16, head uint8, sector uint8, heads uint8, sectorsPerTrack uint8) uint64 {
	return (uint64(cylinder)*uint64(heads)+uint64(head))*uint64(sectorsPerTrack) + uint64(sector) - 1
}

// LBAToCHS is the inverse of CHSToLBA, used only by tests asserting the
// round-trip invariant from spec.md §8.
func LBAToCHS(lba uint64, heads uint8, sectorsPerTrack uint8) (cylinder uint16, head uint8, sector uint8) {
	spt := uint64(sectorsPerTrack)
	hds := uint64(heads)
	sector = uint8(lba%spt) + 1
	tmp := lba / spt
	head = uint8(tmp % hds)
	cylinder = uint16(tmp / hds)
	return
}
