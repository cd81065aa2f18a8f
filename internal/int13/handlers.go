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

	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/firmware"
)

const (
	blockSize512 = 512

	mediaTypeFloppy144 = 0x04

	eddLinearAccess      = 0x0001
	eddEnhancedFunctions = 0x0004
	edd64BitLBA          = 0x0008
	eddAPIVersion30      = 0x30

	cdromSpecPacketSize = 0x13 // 19 bytes
)

func handleReset(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	if err := drv.Device.Reset(); err != nil {
		return Fail(StatusResetFailed)
	}
	frame.AH = 0x00
	return OK()
}

func handleGetLastStatus(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	frame.AH = drv.LastStatus
	return OK()
}

func transferCHS(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame, write bool) Result {
	if drv.Device.BlockSize() != blockSize512 {
		return Fail(StatusInvalid)
	}

	cylinder, head, sector := DecodeCHS(frame)
	if cylinder >= drv.Geometry.Cylinders || head >= drv.Geometry.Heads || sector == 0 || sector > drv.Geometry.SectorsPerTrack {
		return Fail(StatusInvalid)
	}

	lba := CHSToLBA(cylinder, head, sector, drv.Geometry.Heads, drv.Geometry.SectorsPerTrack)
	count := uint32(frame.AL)
	if count == 0 {
		count = 256 // AL=0 conventionally requests 256 sectors
	}

	buffer := firmware.FarPointer{Segment: frame.ES, Offset: frame.BX}

	if write {
		buf := make([]byte, int(count)*blockSize512)
		if err := d.FW.CopyFromReal(buf, buffer); err != nil {
			return Fail(StatusReadError)
		}
		if err := drv.Device.Write(lba, count, buf); err != nil {
			return Fail(StatusReadError)
		}
	} else {
		buf := make([]byte, int(count)*blockSize512)
		if err := drv.Device.Read(lba, count, buf); err != nil {
			return Fail(StatusReadError)
		}
		if err := d.FW.CopyToReal(buffer, buf); err != nil {
			return Fail(StatusReadError)
		}
	}

	frame.AH = 0x00
	return OK()
}

func handleReadCHS(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	return transferCHS(d, drv, frame, false)
}

func handleWriteCHS(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	return transferCHS(d, drv, frame, true)
}

func handleGetParams(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	maxCylinder := drv.Geometry.Cylinders - 1
	// Sectors-per-track is intentionally NOT decremented here (sic) —
	// spec.md §9 records this as a deliberate legacy-BIOS quirk.
	ch, cl := EncodeCHS(maxCylinder, drv.Geometry.SectorsPerTrack)
	frame.CX = uint16(ch)<<8 | uint16(cl)
	frame.SetDH(drv.Geometry.Heads - 1)

	// DL on return is not set here: it is the trampoline's FixupDL's
	// job (Dispatcher.FixupDL), which derives it from the entry DL's
	// bit 7 whether or not an emulated drive matched.
	if drv.Kind.IsFloppy() {
		frame.BX = mediaTypeFloppy144
		if !d.FloppyParamTable.IsSentinel() && (d.FloppyParamTable.Segment != 0 || d.FloppyParamTable.Offset != 0) {
			frame.ES = d.FloppyParamTable.Segment
			frame.DI = d.FloppyParamTable.Offset
		}
	} else {
		frame.BX = 0
	}

	frame.AH = 0x00
	return OK()
}

func handleGetDiskType(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	if drv.Kind.IsFloppy() {
		frame.AH = 0x01
		return OK()
	}
	frame.AH = 0x03
	capacity := drv.Device.Capacity()
	frame.CX = uint16(capacity >> 16)
	frame.DX = uint16(capacity)
	return OK()
}

func handleExtensionCheck(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	if frame.BX != 0x55AA || drv.Kind.IsFloppy() {
		return Fail(StatusInvalid)
	}
	frame.BX = 0xAA55
	frame.CX = eddLinearAccess | eddEnhancedFunctions | edd64BitLBA
	frame.AH = eddAPIVersion30
	return OK()
}

func handleExtendedReadWrite(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	ptr := firmware.FarPointer{Segment: frame.DS, Offset: frame.SI}
	packet, err := DecodePacket(d.FW, ptr)
	if err != nil {
		return Fail(StatusInvalid)
	}

	count, err := packet.EffectiveCount()
	if err != nil {
		return Fail(StatusInvalid)
	}
	if count == 0 {
		frame.AH = 0x00
		return OK()
	}

	write := frame.AH == 0x43
	n := int(count) * int(drv.Device.BlockSize())

	if write {
		buf, err := ReadBuffer(d.FW, packet, n)
		if err != nil {
			_ = ZeroCount(d.FW, ptr)
			return Fail(StatusReadError)
		}
		if err := drv.Device.Write(packet.StartLBA, count, buf); err != nil {
			_ = ZeroCount(d.FW, ptr)
			return Fail(StatusReadError)
		}
	} else {
		buf := make([]byte, n)
		if err := drv.Device.Read(packet.StartLBA, count, buf); err != nil {
			_ = ZeroCount(d.FW, ptr)
			return Fail(StatusReadError)
		}
		if err := WriteBuffer(d.FW, packet, buf); err != nil {
			_ = ZeroCount(d.FW, ptr)
			return Fail(StatusReadError)
		}
	}

	frame.AH = 0x00
	return OK()
}

func handleExtendedVerify(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	if !d.AllowVerify {
		return Fail(StatusInvalid)
	}
	frame.AH = 0x00
	return OK()
}

func handleExtendedSeek(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	frame.AH = 0x00
	return OK()
}

func handleGetExtendedParams(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	ptr := firmware.FarPointer{Segment: frame.DS, Offset: frame.SI}

	sizeBuf := make([]byte, 2)
	if err := d.FW.CopyFromReal(sizeBuf, ptr); err != nil {
		return Fail(StatusInvalid)
	}
	bufSize := binary.LittleEndian.Uint16(sizeBuf)
	if bufSize < 26 {
		return Fail(StatusInvalid)
	}

	out := make([]byte, 26)
	binary.LittleEndian.PutUint16(out[0:2], 26)
	binary.LittleEndian.PutUint16(out[2:4], 0x0002) // flags: CHS info valid
	binary.LittleEndian.PutUint32(out[4:8], uint32(drv.Geometry.Cylinders))
	binary.LittleEndian.PutUint32(out[8:12], uint32(drv.Geometry.Heads))
	binary.LittleEndian.PutUint32(out[12:16], uint32(drv.Geometry.SectorsPerTrack))
	binary.LittleEndian.PutUint64(out[16:24], drv.Device.Capacity())
	binary.LittleEndian.PutUint16(out[24:26], uint16(drv.Device.BlockSize()))

	if err := d.FW.CopyToReal(ptr, out); err != nil {
		return Fail(StatusInvalid)
	}

	frame.AH = 0x00
	return OK()
}

func handleCDROMStatus(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	if drv.Kind != drive.KindCdrom {
		return Fail(StatusInvalid)
	}

	ptr := firmware.FarPointer{Segment: frame.DS, Offset: frame.SI}
	out := make([]byte, cdromSpecPacketSize)
	out[0] = cdromSpecPacketSize
	out[1] = 0x00 // boot media type: no emulation
	out[2] = drv.DriveNumber
	out[3] = 0x00 // controller index
	binary.LittleEndian.PutUint32(out[4:8], drv.BootCatalogLBA)
	binary.LittleEndian.PutUint16(out[8:10], 0)       // device spec
	binary.LittleEndian.PutUint16(out[10:12], 0x07C0) // buffer segment
	binary.LittleEndian.PutUint16(out[12:14], 0)      // load segment
	binary.LittleEndian.PutUint16(out[14:16], 0)      // sector count
	out[16] = uint8(drv.Geometry.Cylinders)
	out[17] = drv.Geometry.SectorsPerTrack
	out[18] = drv.Geometry.Heads

	if err := d.FW.CopyToReal(ptr, out); err != nil {
		return Fail(StatusInvalid)
	}

	frame.AH = 0x00
	return OK()
}

func handleReadBootCatalog(d *Dispatcher, drv *drive.EmulatedDrive, frame *firmware.RegisterFrame) Result {
	if !drv.HasBootCatalog {
		return Fail(StatusInvalid)
	}

	ptr := firmware.FarPointer{Segment: frame.DS, Offset: frame.SI}
	packet, err := DecodePacket(d.FW, ptr)
	if err != nil {
		return Fail(StatusInvalid)
	}

	count, err := packet.EffectiveCount()
	if err != nil {
		return Fail(StatusInvalid)
	}
	if count == 0 {
		frame.AH = 0x00
		return OK()
	}

	lba := uint64(drv.BootCatalogLBA) + packet.StartLBA
	n := int(count) * int(drv.Device.BlockSize())

	buf := make([]byte, n)
	if err := drv.Device.Read(lba, count, buf); err != nil {
		_ = ZeroCount(d.FW, ptr)
		return Fail(StatusReadError)
	}
	if err := WriteBuffer(d.FW, packet, buf); err != nil {
		_ = ZeroCount(d.FW, ptr)
		return Fail(StatusReadError)
	}

	frame.AH = 0x00
	return OK()
}
