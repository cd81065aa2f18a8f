//go:build !linux
// +build !linux

package fusedrive

import (
	"fmt"

	"github.com/nettboot/sanboot13/internal/drive"
)

// Mount is only supported on Linux; bazil.org/fuse has no non-Linux backend.
func Mount(mountpoint string, state *drive.State) error {
	return fmt.Errorf("fusedrive: mount is only supported on Linux")
}
