package blockdev

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// DefaultBlockSize is used for regular disk-image files, and as the
// fallback when a raw device's real sector size cannot be determined.
const DefaultBlockSize = 512

// FileDevice backs Device with a local file or raw device path. It is
// grounded on the teacher's internal/disk.Stat/ReadFirstBlock: open
// read-write falling back to read-only, distinguish a block device from
// a regular image file via os.ModeDevice, and ask the platform for real
// geometry when it is a device.
type FileDevice struct {
	path string

	mu        sync.Mutex
	f         *os.File
	isDevice  bool
	readOnly  bool
	cdrom     bool
	blockSize uint32
	sectors   uint64
}

// OpenFile opens path as a block device backing. cdrom marks the volume
// as a CD-ROM (any probed or default block size below 2048 is raised
// to 2048) — the caller already knows this from how it is invoking
// hook(), per spec.md §3's `is_cdrom` field being supplied by the block
// layer rather than inferred here.
func OpenFile(path string, cdrom bool) (*FileDevice, error) {
	d := &FileDevice{path: path, cdrom: cdrom}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDevice) open() error {
	f, readOnly, err := openReadWriteFallback(d.path)
	if err != nil {
		return fmt.Errorf("blockdev: open %q: %w", d.path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("blockdev: stat %q: %w", d.path, err)
	}

	isDevice := fi.Mode()&os.ModeDevice != 0

	var sectorSize int64
	var size int64
	if isDevice {
		sectorSize, size, err = platformDeviceGeometry(f)
		if err != nil {
			sectorSize = DefaultBlockSize
			size, err = f.Seek(0, io.SeekEnd)
			if err != nil {
				f.Close()
				return fmt.Errorf("blockdev: determine size of %q: %w", d.path, err)
			}
		}
	} else {
		sectorSize = DefaultBlockSize
		size, err = f.Seek(0, io.SeekEnd)
		if err != nil {
			f.Close()
			return fmt.Errorf("blockdev: determine size of %q: %w", d.path, err)
		}
	}

	if d.cdrom && sectorSize < 2048 {
		sectorSize = 2048
	}

	d.mu.Lock()
	d.f = f
	d.isDevice = isDevice
	d.readOnly = readOnly
	d.blockSize = uint32(sectorSize)
	d.sectors = uint64(size) / uint64(sectorSize)
	d.mu.Unlock()
	return nil
}

func (d *FileDevice) Read(lba uint64, count uint32, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	want := int(uint64(count) * uint64(d.blockSize))
	if len(buf) != want {
		return fmt.Errorf("blockdev: read buffer is %d bytes, want %d", len(buf), want)
	}
	off := int64(lba) * int64(d.blockSize)
	_, err := d.f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return fmt.Errorf("blockdev: read lba=%d count=%d: %w", lba, count, err)
	}
	return nil
}

func (d *FileDevice) Write(lba uint64, count uint32, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.readOnly {
		return fmt.Errorf("blockdev: %q is read-only", d.path)
	}
	want := int(uint64(count) * uint64(d.blockSize))
	if len(buf) != want {
		return fmt.Errorf("blockdev: write buffer is %d bytes, want %d", len(buf), want)
	}
	off := int64(lba) * int64(d.blockSize)
	if _, err := d.f.WriteAt(buf, off); err != nil {
		return fmt.Errorf("blockdev: write lba=%d count=%d: %w", lba, count, err)
	}
	return nil
}

// Reset for a local file is a cheap no-op: there is no link to
// re-negotiate, only the file's read position, which ReadAt/WriteAt never
// depend on.
func (d *FileDevice) Reset() error { return nil }

// Reopen closes and reopens the underlying handle, standing in for the
// transport-level reconnect a real SAN device would perform.
func (d *FileDevice) Reopen() error {
	d.mu.Lock()
	f := d.f
	d.mu.Unlock()
	if f != nil {
		f.Close()
	}
	return d.open()
}

func (d *FileDevice) Capacity() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sectors
}

func (d *FileDevice) BlockSize() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.blockSize
}

func (d *FileDevice) IsCDROM() bool { return d.cdrom }

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f != nil {
		return d.f.Close()
	}
	return nil
}
