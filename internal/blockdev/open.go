package blockdev

import (
	"os"
	"strings"
)

// openReadWriteFallback grounds itself on internal/disk.Stat: try
// read-write with O_EXCL first (refusing a device already held open
// elsewhere), retry without O_EXCL on EBUSY/EINVAL, then fall back to
// read-only. Returns whether the file was ultimately opened read-only.
func openReadWriteFallback(path string) (*os.File, bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_EXCL, 0600)
	if err != nil && isBusyOrInvalid(err) {
		f, err = os.OpenFile(path, os.O_RDWR, 0600)
	}
	if err == nil {
		return f, false, nil
	}

	f, err = os.OpenFile(path, os.O_RDONLY|os.O_EXCL, 0600)
	if err != nil && isBusyOrInvalid(err) {
		f, err = os.OpenFile(path, os.O_RDONLY, 0600)
	}
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}

func isBusyOrInvalid(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "resource busy") || strings.Contains(msg, "invalid argument")
}
