//go:build windows

package blockdev

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// diskGeometry mirrors the Win32 DISK_GEOMETRY structure (grounded on
// internal/fs/windows.go's DISK_GEOMETRY).
type diskGeometry struct {
	Cylinders         int64
	MediaType         uint32
	TracksPerCylinder uint32
	SectorsPerTrack   uint32
	BytesPerSector    uint32
}

const ioctlDiskGetDriveGeometry = 0x70000

// platformDeviceGeometry queries a raw Windows volume via
// IOCTL_DISK_GET_DRIVE_GEOMETRY, the same call internal/fs/windows.go
// uses to implement Stat() for WindowsDiskFile.
func platformDeviceGeometry(f *os.File) (sectorSize int64, size int64, err error) {
	handle := windows.Handle(f.Fd())

	var geometry diskGeometry
	var bytesReturned uint32
	err = windows.DeviceIoControl(
		handle,
		ioctlDiskGetDriveGeometry,
		nil,
		0,
		(*byte)(unsafe.Pointer(&geometry)),
		uint32(unsafe.Sizeof(geometry)),
		&bytesReturned,
		nil,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("DeviceIoControl(IOCTL_DISK_GET_DRIVE_GEOMETRY): %w", err)
	}

	total := geometry.Cylinders * int64(geometry.TracksPerCylinder) * int64(geometry.SectorsPerTrack) * int64(geometry.BytesPerSector)
	return int64(geometry.BytesPerSector), total, nil
}
