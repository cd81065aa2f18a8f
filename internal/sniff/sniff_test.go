package sniff_test

import (
	"testing"

	"github.com/nettboot/sanboot13/internal/sniff"
	"github.com/stretchr/testify/require"
)

func mbrSector(signature bool) []byte {
	sector := make([]byte, sniff.SectorSize)
	if signature {
		sector[0x1FE] = 0x55
		sector[0x1FF] = 0xAA
	}
	return sector
}

func TestIsMBR(t *testing.T) {
	require.True(t, sniff.IsMBR(mbrSector(true)))
	require.False(t, sniff.IsMBR(mbrSector(false)))
	require.False(t, sniff.IsMBR(make([]byte, 10)))
}

func TestIsISO9660(t *testing.T) {
	sector := make([]byte, sniff.SectorSize)
	copy(sector[1:], "CD001")
	require.True(t, sniff.IsISO9660(sector))

	require.False(t, sniff.IsISO9660(make([]byte, sniff.SectorSize)))
	require.False(t, sniff.IsISO9660(make([]byte, 3)))
}

func TestIsElToritoBootRecord(t *testing.T) {
	sector := make([]byte, sniff.SectorSize)
	sector[0] = 0x00
	copy(sector[1:], "CD001")
	sector[6] = 0x01
	copy(sector[7:], "EL TORITO SPECIFICATION")
	require.True(t, sniff.IsElToritoBootRecord(sector))

	wrongType := make([]byte, sniff.SectorSize)
	copy(wrongType, sector)
	wrongType[0] = 0x01
	require.False(t, sniff.IsElToritoBootRecord(wrongType))

	wrongIdent := make([]byte, sniff.SectorSize)
	copy(wrongIdent, sector)
	copy(wrongIdent[7:], "SOMETHING ELSE")
	require.False(t, sniff.IsElToritoBootRecord(wrongIdent))
}

func TestIsGPTProtectiveMBR(t *testing.T) {
	sector := mbrSector(true)
	sector[0x1C2] = 0xEE
	require.True(t, sniff.IsGPTProtectiveMBR(sector))

	sector[0x1C2] = 0x07
	require.False(t, sniff.IsGPTProtectiveMBR(sector))

	require.False(t, sniff.IsGPTProtectiveMBR(mbrSector(false)))
}
