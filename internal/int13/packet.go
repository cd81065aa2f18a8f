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
	"encoding/binary"
	"fmt"

	"github.com/nettboot/sanboot13/internal/firmware"
)

const (
	packetBaseSize        = 16 // bytes 0-15: header + seg:off + LBA
	packetPhysBufferSize  = 24 // bytes 0-23: header + optional 64-bit buffer_phys
	packetLongCountOffset = 24 // extension slot for the 0xFF "long count" case

	sectorCountLegalZero = 0x00
	sectorCountMax7Bit   = 0x7F
	sectorCountLong      = 0xFF
)

// DiskAddressPacket is the decoded extended disk address packet read
// from DS:SI by subfunctions 0x42/0x43/0x4D, per spec.md §4.4.
type DiskAddressPacket struct {
	StructSize  uint8
	SectorCount uint8
	LongCount   uint32
	Buffer      firmware.FarPointer
	BufferPhys  uint64
	StartLBA    uint64
}

// UsesBufferPhys reports whether the packet's seg:off buffer is the
// FFFF:FFFF sentinel, meaning BufferPhys should be used instead.
func (p DiskAddressPacket) UsesBufferPhys() bool {
	return p.Buffer.IsSentinel()
}

// EffectiveCount resolves SectorCount/LongCount into the literal sector
// count a handler should transfer, per spec.md §4.4's table: 0x00 is a
// legal zero, 0x01-0x7F is literal, 0xFF defers to LongCount, anything
// else is invalid.
func (p DiskAddressPacket) EffectiveCount() (uint32, error) {
	switch {
	case p.SectorCount == sectorCountLegalZero:
		return 0, nil
	case p.SectorCount <= sectorCountMax7Bit:
		return uint32(p.SectorCount), nil
	case p.SectorCount == sectorCountLong:
		return p.LongCount, nil
	default:
		return 0, fmt.Errorf("int13: disk address packet sector count 0x%02X is invalid", p.SectorCount)
	}
}

// DecodePacket reads a DiskAddressPacket from ptr. The base 16-byte
// header is always read; the following 8-byte buffer_phys extension is
// read only when the buffer is the FFFF:FFFF sentinel, per spec.md
// §4.4's byte layout. When SectorCount is the 0xFF "long count"
// marker, a further 4-byte count is read at offset 24 — the base
// layout's documented size stops at byte 23, so this module treats
// byte 24 as the natural next slot for the wider count.
func DecodePacket(fw firmware.Firmware, ptr firmware.FarPointer) (DiskAddressPacket, error) {
	hdr := make([]byte, packetBaseSize)
	if err := fw.CopyFromReal(hdr, ptr); err != nil {
		return DiskAddressPacket{}, fmt.Errorf("int13: read disk address packet header: %w", err)
	}

	var p DiskAddressPacket
	p.StructSize = hdr[0]
	p.SectorCount = hdr[2]
	p.Buffer = firmware.FarPointer{
		Offset:  binary.LittleEndian.Uint16(hdr[4:6]),
		Segment: binary.LittleEndian.Uint16(hdr[6:8]),
	}
	p.StartLBA = binary.LittleEndian.Uint64(hdr[8:16])

	if p.Buffer.IsSentinel() {
		phys := make([]byte, 8)
		physPtr := ptr
		physPtr.Offset += packetBaseSize
		if err := fw.CopyFromReal(phys, physPtr); err != nil {
			return DiskAddressPacket{}, fmt.Errorf("int13: read disk address packet buffer_phys: %w", err)
		}
		p.BufferPhys = binary.LittleEndian.Uint64(phys)
	}

	if p.SectorCount == sectorCountLong {
		lc := make([]byte, 4)
		lcPtr := ptr
		lcPtr.Offset += packetLongCountOffset
		if err := fw.CopyFromReal(lc, lcPtr); err != nil {
			return DiskAddressPacket{}, fmt.Errorf("int13: read disk address packet long count: %w", err)
		}
		p.LongCount = binary.LittleEndian.Uint32(lc)
	}

	return p, nil
}

// ZeroCount writes 0 back into the packet's sector-count field at
// ptr+2, per spec.md §4.4: "On I/O failure during extended read/write,
// write 0 back into the packet's count field."
func ZeroCount(fw firmware.Firmware, ptr firmware.FarPointer) error {
	off := ptr
	off.Offset += 2
	return fw.CopyToReal(off, []byte{0})
}

// ReadBuffer copies count*blockSize bytes out of firmware memory at the
// packet's resolved buffer location (the real-mode seg:off, or the
// physical buffer when the sentinel is set).
func ReadBuffer(fw firmware.Firmware, p DiskAddressPacket, n int) ([]byte, error) {
	buf := make([]byte, n)
	var err error
	if p.UsesBufferPhys() {
		err = fw.CopyFromPhys(buf, p.BufferPhys)
	} else {
		err = fw.CopyFromReal(buf, p.Buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("int13: read transfer buffer: %w", err)
	}
	return buf, nil
}

// WriteBuffer copies data into firmware memory at the packet's resolved
// buffer location.
func WriteBuffer(fw firmware.Firmware, p DiskAddressPacket, data []byte) error {
	var err error
	if p.UsesBufferPhys() {
		err = fw.CopyToPhys(p.BufferPhys, data)
	} else {
		err = fw.CopyToReal(p.Buffer, data)
	}
	if err != nil {
		return fmt.Errorf("int13: write transfer buffer: %w", err)
	}
	return nil
}
