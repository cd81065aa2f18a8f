package geometry_test

import (
	"encoding/binary"
	"testing"

	"github.com/nettboot/sanboot13/internal/geometry"
	"github.com/stretchr/testify/require"
)

func TestInferFloppy144MB(t *testing.T) {
	const totalSectors = 80 * 2 * 18 // 1.44 MiB image, 512-byte sectors
	heads, sectors := geometry.InferFloppy(totalSectors)
	require.EqualValues(t, 2, heads)
	require.EqualValues(t, 18, sectors)
}

func TestInferFloppyUnknownSizeFallsBackTo144MB(t *testing.T) {
	heads, sectors := geometry.InferFloppy(123456)
	require.EqualValues(t, 2, heads)
	require.EqualValues(t, 18, sectors)
}

// buildMBR constructs a 512-byte MBR scratch sector with a single
// partition entry, packing start/end CHS the way a real MBR does: head
// in byte 0, sector in the low 6 bits of byte 1, cylinder's top 2 bits
// in the high bits of byte 1, cylinder's low byte in byte 2.
func buildMBR(startHead, startSector uint8, startCyl uint16, endHead, endSector uint8, endCyl uint16, startLBA, totalSectors uint32) []byte {
	sector := make([]byte, 512)

	entry := sector[0x1BE : 0x1BE+16]
	entry[0x00] = 0x80 // boot indicator, arbitrary
	entry[0x01] = startHead
	entry[0x02] = byte(uint16(startCyl>>8)<<6) | (startSector & 0x3F)
	entry[0x03] = byte(startCyl)
	entry[0x04] = 0x83 // partition type, non-zero
	entry[0x05] = endHead
	entry[0x06] = byte(uint16(endCyl>>8)<<6) | (endSector & 0x3F)
	entry[0x07] = byte(endCyl)
	binary.LittleEndian.PutUint32(entry[0x08:0x0C], startLBA)
	binary.LittleEndian.PutUint32(entry[0x0C:0x10], totalSectors)

	sector[0x1FE] = 0x55
	sector[0x1FF] = 0xAA
	return sector
}

func TestInferHDDReconstructsFromMaxEndCHS(t *testing.T) {
	// Partition starts at CHS (head=0, sector=1, cylinder=1) — cylinder
	// non-zero, so the unambiguous-reconstruction shortcut does not
	// apply — and ends at (head=254, sector=63, cylinder=1023).
	mbr := buildMBR(0, 1, 1, 254, 63, 1023, 1, 1000)

	heads, sectors, err := geometry.InferHDD(mbr)
	require.NoError(t, err)
	require.EqualValues(t, 255, heads)
	require.EqualValues(t, 63, sectors)
}

func TestInferHDDUnambiguousReconstruction(t *testing.T) {
	// Partition starts on cylinder 0 with a non-zero head: sectors per
	// track is directly derivable from start_lba.
	// start_lba = 62, start_head = 1, start_sector = 1
	// sectors = (62 + 1 - 1) / 1 = 62
	mbr := buildMBR(1, 1, 0, 9, 62, 100, 62, 1000)

	heads, sectors, err := geometry.InferHDD(mbr)
	require.NoError(t, err)
	require.EqualValues(t, 1, heads)
	require.EqualValues(t, 62, sectors)
}

func TestInferHDDMissingSignatureFallsBackToDefault(t *testing.T) {
	mbr := buildMBR(0, 1, 1, 254, 63, 1023, 1, 1000)
	mbr[0x1FE], mbr[0x1FF] = 0, 0 // corrupt the boot signature

	heads, sectors, err := geometry.InferHDD(mbr)
	require.NoError(t, err)
	require.EqualValues(t, 255, heads)
	require.EqualValues(t, 63, sectors)
}

func TestInferHDDRejectsWrongSizedScratch(t *testing.T) {
	_, _, err := geometry.InferHDD(make([]byte, 100))
	require.Error(t, err)
}

func TestCylindersCapsAt1024(t *testing.T) {
	require.EqualValues(t, 1024, geometry.Cylinders(1<<40, 255, 63))
}

func TestInferFloppyEndToEnd(t *testing.T) {
	chs, err := geometry.Infer(true, 80*2*18, nil)
	require.NoError(t, err)
	require.Equal(t, geometry.CHS{Cylinders: 80, Heads: 2, SectorsPerTrack: 18}, chs)
}
