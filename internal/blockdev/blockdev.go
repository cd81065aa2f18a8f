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

// Package blockdev defines the opaque block I/O primitive the emulation
// core consumes (spec.md §6 "upstream interface") and provides one
// concrete, host-testable backing for it: a local file or raw device,
// grounded on the teacher's disk-access layer. Real transports (iSCSI,
// AoE, FCoE, HTTP) are external collaborators per spec.md §1 and are not
// implemented here; any type satisfying Device can be hooked as a drive.
package blockdev

import "errors"

// ErrNeedsReopen is the host-side name for the source's "needs_reopen"
// flag. No Device in this module returns it, and neither the dispatcher
// nor the handlers check for it or call Reopen in response.
var ErrNeedsReopen = errors.New("blockdev: device needs reopen")

// Device is the opaque I/O primitive named in spec.md §6. Handlers treat
// every call as a potential suspension point per §5 and hold no resource
// across it beyond the drive record itself.
type Device interface {
	// Read and Write transfer whole sectors at the device's BlockSize.
	// count is the number of sectors; buf must be exactly
	// count*BlockSize() bytes.
	Read(lba uint64, count uint32, buf []byte) error
	Write(lba uint64, count uint32, buf []byte) error

	// Reset re-initializes the device (INT 13h subfunction 0x00).
	Reset() error
	// Reopen re-establishes the underlying connection/handle. The
	// dispatcher and handlers never call it.
	Reopen() error

	Capacity() uint64 // total sectors
	BlockSize() uint32
	IsCDROM() bool
}
