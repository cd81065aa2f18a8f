package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDriveSpec(t *testing.T) {
	spec, err := parseDriveSpec("0x80:/tmp/disk.img")
	require.NoError(t, err)
	require.EqualValues(t, 0x80, spec.driveNumber)
	require.Equal(t, "/tmp/disk.img", spec.path)
	require.False(t, spec.cdrom)

	spec, err = parseDriveSpec("0x80:/tmp/cd.iso:cdrom")
	require.NoError(t, err)
	require.True(t, spec.cdrom)

	_, err = parseDriveSpec("0x80:/tmp/cd.iso:bogus")
	require.Error(t, err)

	_, err = parseDriveSpec("not-a-number:/tmp/disk.img")
	require.Error(t, err)

	_, err = parseDriveSpec("0x80")
	require.Error(t, err)
}
