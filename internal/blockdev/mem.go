package blockdev

import "fmt"

// Mem is an in-memory Device, used by tests throughout this module in
// place of a real SAN transport (which is out of scope per spec.md §1).
type Mem struct {
	data      []byte
	blockSize uint32
	cdrom     bool

	ReopenCount int
	ResetCount  int
}

// NewMem creates an in-memory device of the given capacity (in sectors)
// and block size, zero-filled.
func NewMem(sectors uint64, blockSize uint32, cdrom bool) *Mem {
	return &Mem{
		data:      make([]byte, sectors*uint64(blockSize)),
		blockSize: blockSize,
		cdrom:     cdrom,
	}
}

// NewMemFromImage wraps an existing byte slice (e.g. a loaded disk
// image) as a Mem device without copying.
func NewMemFromImage(image []byte, blockSize uint32, cdrom bool) *Mem {
	return &Mem{data: image, blockSize: blockSize, cdrom: cdrom}
}

func (m *Mem) Read(lba uint64, count uint32, buf []byte) error {
	want := int(uint64(count) * uint64(m.blockSize))
	if len(buf) != want {
		return fmt.Errorf("blockdev: read buffer is %d bytes, want %d", len(buf), want)
	}
	off := lba * uint64(m.blockSize)
	if off+uint64(want) > uint64(len(m.data)) {
		return fmt.Errorf("blockdev: read lba=%d count=%d out of range", lba, count)
	}
	copy(buf, m.data[off:off+uint64(want)])
	return nil
}

func (m *Mem) Write(lba uint64, count uint32, buf []byte) error {
	want := int(uint64(count) * uint64(m.blockSize))
	if len(buf) != want {
		return fmt.Errorf("blockdev: write buffer is %d bytes, want %d", len(buf), want)
	}
	off := lba * uint64(m.blockSize)
	if off+uint64(want) > uint64(len(m.data)) {
		return fmt.Errorf("blockdev: write lba=%d count=%d out of range", lba, count)
	}
	copy(m.data[off:off+uint64(want)], buf)
	return nil
}

func (m *Mem) Reset() error  { m.ResetCount++; return nil }
func (m *Mem) Reopen() error { m.ReopenCount++; return nil }

func (m *Mem) Capacity() uint64  { return uint64(len(m.data)) / uint64(m.blockSize) }
func (m *Mem) BlockSize() uint32 { return m.blockSize }
func (m *Mem) IsCDROM() bool     { return m.cdrom }
