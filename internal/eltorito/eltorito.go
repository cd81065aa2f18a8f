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

// Package eltorito detects the El Torito boot catalog on an ISO 9660
// CD-ROM volume, per spec.md §4.2, and decodes the catalog's initial/
// default boot entry for the boot record loader (internal/bootrec).
package eltorito

import (
	"encoding/binary"
	"fmt"

	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/sniff"
)

// Platform identifies the target platform of a boot entry, per the El
// Torito specification's platform ID byte.
type Platform byte

const (
	PlatformX86 Platform = 0x00
	PlatformPPC Platform = 0x01
	PlatformMac Platform = 0x02
	PlatformEFI Platform = 0xEF
)

// Emulation identifies the media emulation type a boot entry requests.
type Emulation byte

const (
	EmulationNone      Emulation = 0x00
	EmulationFloppy120 Emulation = 0x01
	EmulationFloppy144 Emulation = 0x02
	EmulationFloppy288 Emulation = 0x03
	EmulationHDD       Emulation = 0x04
)

const (
	bootRecordLBA   = 17
	bootIndicatorOK = 0x88

	catalogEntrySize = 32
	validationEntry  = 0
	initialEntry     = 1
)

// BootRecord is the decoded content of the boot record volume descriptor
// at LBA 17: just enough to find the boot catalog.
type BootRecord struct {
	BootCatalogLBA uint32
}

// Detect reads the boot record descriptor at LBA 17 from dev and, if it
// carries a valid El Torito signature, returns its boot catalog LBA. ok
// is false (with a nil error) when the volume simply isn't El Torito
// bootable — that is not a failure, just the common case for data-only
// CD images.
func Detect(dev blockdev.Device) (rec BootRecord, ok bool, err error) {
	sector := make([]byte, dev.BlockSize())
	if err := dev.Read(bootRecordLBA, 1, sector); err != nil {
		return BootRecord{}, false, fmt.Errorf("eltorito: read boot record at LBA %d: %w", bootRecordLBA, err)
	}

	if !sniff.IsElToritoBootRecord(sector) {
		return BootRecord{}, false, nil
	}

	// Boot catalog pointer: 4 bytes at offset 0x47, little-endian.
	catalogLBA := binary.LittleEndian.Uint32(sector[0x47:0x4B])
	return BootRecord{BootCatalogLBA: catalogLBA}, true, nil
}

// Entry is one decoded boot catalog entry (the "initial/default" entry,
// the only one this module's dispatcher-level boot strategy consumes).
type Entry struct {
	Bootable     bool
	Platform     Platform
	Emulation    Emulation
	LoadSegment  uint16
	SectorCount  uint16
	LoadRBA      uint32
}

// ReadInitialEntry reads the boot catalog at catalogLBA and decodes the
// validation entry (platform ID) and the initial/default entry, per
// spec.md §4.6's El Torito boot strategy preconditions: platform x86,
// boot indicator 0x88, emulation "no emulation".
func ReadInitialEntry(dev blockdev.Device, catalogLBA uint32) (Entry, error) {
	sector := make([]byte, dev.BlockSize())
	if err := dev.Read(uint64(catalogLBA), 1, sector); err != nil {
		return Entry{}, fmt.Errorf("eltorito: read boot catalog at LBA %d: %w", catalogLBA, err)
	}
	return DecodeCatalog(sector), nil
}

// DecodeCatalog decodes the validation entry and the initial/default
// entry out of a raw boot catalog sector, regardless of how that sector
// was obtained — a direct block read (ReadInitialEntry) or a buffer
// filled by an INT 13h subfunction 0x4D call (internal/bootrec).
func DecodeCatalog(sector []byte) Entry {
	validation := sector[validationEntry*catalogEntrySize : (validationEntry+1)*catalogEntrySize]
	platform := Platform(validation[1])

	initial := sector[initialEntry*catalogEntrySize : (initialEntry+1)*catalogEntrySize]

	return Entry{
		Bootable:    initial[0] == bootIndicatorOK,
		Platform:    platform,
		Emulation:   Emulation(initial[1]),
		LoadSegment: binary.LittleEndian.Uint16(initial[2:4]),
		SectorCount: binary.LittleEndian.Uint16(initial[6:8]),
		LoadRBA:     binary.LittleEndian.Uint32(initial[8:12]),
	}
}

// ResolvedLoadSegment returns the entry's load segment, substituting the
// legacy default of 0x07C0 when the catalog specifies 0 (meaning "load
// at the conventional boot-sector address").
func (e Entry) ResolvedLoadSegment() uint16 {
	if e.LoadSegment == 0 {
		return 0x07C0
	}
	return e.LoadSegment
}
