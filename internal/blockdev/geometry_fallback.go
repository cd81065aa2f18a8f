//go:build !linux && !windows

package blockdev

import (
	"fmt"
	"io"
	"os"
)

// platformDeviceGeometry has no portable ioctl on this platform; callers
// fall back to seeking for size and the default sector size, exactly as
// internal/disk.Stat does for non-Linux devices.
func platformDeviceGeometry(f *os.File) (sectorSize int64, size int64, err error) {
	size, err = f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("seek: %w", err)
	}
	return DefaultBlockSize, size, nil
}
