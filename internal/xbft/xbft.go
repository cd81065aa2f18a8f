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

// Package xbft implements the Boot-Firmware Table Installer of spec.md
// §4.7: a fixed 768-byte low-memory pool that ACPI description headers
// are packed into at 16-byte-aligned offsets, with their OEM fields
// stamped to advertise the SAN origin of the boot volume.
package xbft

import (
	"fmt"
	"sync"
)

const (
	// PoolSize is the fixed size of the low-memory region the installer
	// packs headers into.
	PoolSize = 768

	alignment = 16

	// ACPI system description table header layout (rev 1+): signature(4)
	// length(4) revision(1) checksum(1) oem_id(6) oem_table_id(8) ...
	checksumOffset   = 9
	oemIDOffset      = 10
	oemIDLen         = 6
	oemTableIDOffset = 16
	oemTableIDLen    = 8
	minHeaderLen     = 36
)

var (
	oemID      = [oemIDLen]byte{'F', 'E', 'N', 'S', 'Y', 'S'}
	oemTableID = [oemTableIDLen]byte{'i', 'P', 'X', 'E', ' ', ' ', ' ', ' '}
)

// Pool is the xbftab region of spec.md §2's invariant list: a single
// contiguous low-memory buffer plus a high-water mark, xbftab_used,
// always a multiple of 16 and never exceeding PoolSize.
type Pool struct {
	mu   sync.Mutex
	buf  [PoolSize]byte
	used uint16
}

// NewPool returns an empty table pool.
func NewPool() *Pool {
	return &Pool{}
}

func align16(n uint16) uint16 {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Used returns the current high-water mark.
func (p *Pool) Used() uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used
}

// Install copies header into the pool at the next 16-byte-aligned
// offset, overwrites its OEM id and OEM table id fields, recomputes its
// checksum byte so the header sums to zero modulo 256, and advances the
// high-water mark. It rejects headers that would overflow the pool or
// that are too short to carry the fields this function overwrites.
func (p *Pool) Install(header []byte) (uint16, error) {
	if len(header) < minHeaderLen {
		return 0, fmt.Errorf("xbft: header is %d bytes, need at least %d", len(header), minHeaderLen)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	offset := p.used
	end := int(offset) + len(header)
	if end > PoolSize {
		return 0, fmt.Errorf("xbft: header of %d bytes at offset %d would overflow the %d-byte pool", len(header), offset, PoolSize)
	}

	dst := p.buf[offset:end]
	copy(dst, header)
	copy(dst[oemIDOffset:oemIDOffset+oemIDLen], oemID[:])
	copy(dst[oemTableIDOffset:oemTableIDOffset+oemTableIDLen], oemTableID[:])

	dst[checksumOffset] = 0
	var sum byte
	for _, b := range dst {
		sum += b
	}
	dst[checksumOffset] = -sum

	p.used = align16(uint16(end))
	return offset, nil
}

// Bytes returns a copy of the pool up to the high-water mark.
func (p *Pool) Bytes() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, p.used)
	copy(out, p.buf[:p.used])
	return out
}
