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

// Package sniff recognizes disk-format signatures at fixed byte offsets:
// the MBR boot signature, the ISO 9660 "CD001" standard identifier, and
// the GPT protective-MBR marker. It reuses the same prefix-table
// machinery the file-carving scanner in this codebase's ancestry used
// to recognize embedded file headers, pointed instead at the small,
// fixed set of signatures a disk-format probe needs.
package sniff

import "github.com/nettboot/sanboot13/pkg/table"

// Kind identifies what a signature match corresponds to.
type Kind int

const (
	KindMBR Kind = iota
	KindISO9660PrimaryVolume
	KindElToritoBootRecord
	KindGPTProtectiveMBR
)

const (
	mbrSignatureOffset   = 0x1FE
	mbrSignatureLen      = 2
	isoIdentOffset       = 1
	isoIdentLen          = 5
	gptPartTypeOffset    = 0x1C2
	sectorSize           = 512
)

var signatures = buildSignatureTable()

func buildSignatureTable() *table.PrefixTable[Kind] {
	t := table.New[Kind]()
	t.Insert([]byte{0x55, 0xAA}, KindMBR)
	t.Insert([]byte("CD001"), KindISO9660PrimaryVolume)
	return t
}

// IsMBR reports whether sector carries the classic 0x55 0xAA MBR boot
// signature at offset 0x1FE. sector must be at least 512 bytes; shorter
// buffers are treated as "not an MBR" rather than an error, since a
// truncated read can never carry the signature anyway.
func IsMBR(sector []byte) bool {
	if len(sector) < mbrSignatureOffset+mbrSignatureLen {
		return false
	}
	kind, ok := signatures.Get(sector[mbrSignatureOffset : mbrSignatureOffset+mbrSignatureLen])
	return ok && kind == KindMBR
}

// IsISO9660 reports whether the descriptor sector carries the "CD001"
// standard identifier at byte offset 1, common to every ISO 9660 volume
// descriptor (primary, boot record, terminator, ...).
func IsISO9660(descriptorSector []byte) bool {
	if len(descriptorSector) < isoIdentOffset+isoIdentLen {
		return false
	}
	kind, ok := signatures.Get(descriptorSector[isoIdentOffset : isoIdentOffset+isoIdentLen])
	return ok && kind == KindISO9660PrimaryVolume
}

// IsElToritoBootRecord reports whether descriptorSector is a boot record
// volume descriptor (type 0) carrying the El Torito boot system
// identifier, per spec.md §4.2: type byte 0, "CD001", version byte 1,
// then "EL TORITO SPECIFICATION" padded with NULs to 32 bytes.
const elToritoIdent = "EL TORITO SPECIFICATION"

func IsElToritoBootRecord(descriptorSector []byte) bool {
	if len(descriptorSector) < 7+len(elToritoIdent) {
		return false
	}
	if descriptorSector[0] != 0x00 {
		return false
	}
	if !IsISO9660(descriptorSector) {
		return false
	}
	if descriptorSector[6] != 0x01 {
		return false
	}
	return string(descriptorSector[7:7+len(elToritoIdent)]) == elToritoIdent
}

// IsGPTProtectiveMBR reports whether an MBR sector looks like the
// protective MBR GPT disks carry: a valid MBR signature and a first
// partition entry of type 0xEE. The other entries and the entry's extent
// are not examined. This module does not implement GPT parsing (spec.md's
// Non-goals exclude it), and geometry and dispatch do not call this
// check.
func IsGPTProtectiveMBR(sector []byte) bool {
	if !IsMBR(sector) {
		return false
	}
	if len(sector) < gptPartTypeOffset+1 {
		return false
	}
	return sector[gptPartTypeOffset] == 0xEE
}

// SectorSize is the logical sector size assumed when slicing a raw read
// buffer into descriptor-sized windows.
const SectorSize = sectorSize
