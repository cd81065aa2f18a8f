package bootrec_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/bootrec"
	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/eltorito"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/nettboot/sanboot13/internal/int13"
)

var trampolineAddr = firmware.FarPointer{Segment: 0xF000, Offset: 0x4000}

func newRig(t *testing.T) (*firmware.Sim, *drive.State, *firmware.Trampoline) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)
	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := &firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}
	return fw, st, tr
}

func TestBootMBRFarJumps(t *testing.T) {
	fw, st, tr := newRig(t)

	dev := blockdev.NewMem(2048, 512, false)
	sector := make([]byte, 512)
	sector[0x1FE], sector[0x1FF] = 0x55, 0xAA
	require.NoError(t, dev.Write(0, 1, sector))

	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	err = bootrec.Boot(fw, tr, 0x80)
	require.Error(t, err)
	require.Len(t, fw.FarJumps, 1)
	require.Equal(t, firmware.FarPointer{Segment: 0, Offset: 0x7C00}, fw.FarJumps[0].Addr)
	require.EqualValues(t, 0x80, fw.FarJumps[0].DL)
}

func TestBootRejectsBadMBRSignatureThenTriesElTorito(t *testing.T) {
	fw, st, tr := newRig(t)

	dev := blockdev.NewMem(2048, 512, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	err = bootrec.Boot(fw, tr, 0x80)
	require.Error(t, err)
	require.Empty(t, fw.FarJumps)
}

func cdImageWithCatalog(t *testing.T, catalogLBA uint32, imageLBA uint32, payload []byte) *blockdev.Mem {
	dev := blockdev.NewMem(4096, 2048, true)

	descriptor := make([]byte, 2048)
	descriptor[0] = 0x00
	copy(descriptor[1:], "CD001")
	descriptor[6] = 0x01
	copy(descriptor[7:], "EL TORITO SPECIFICATION")
	binary.LittleEndian.PutUint32(descriptor[0x47:0x4B], catalogLBA)
	require.NoError(t, dev.Write(17, 1, descriptor))

	catalog := make([]byte, 2048)
	catalog[1] = byte(eltorito.PlatformX86)
	initial := catalog[32:64]
	initial[0] = 0x88
	initial[1] = byte(eltorito.EmulationNone)
	binary.LittleEndian.PutUint16(initial[2:4], 0) // resolves to 0x07C0
	binary.LittleEndian.PutUint16(initial[6:8], 1)
	binary.LittleEndian.PutUint32(initial[8:12], imageLBA)
	require.NoError(t, dev.Write(uint64(catalogLBA), 1, catalog))

	image := make([]byte, 2048)
	copy(image, payload)
	require.NoError(t, dev.Write(uint64(imageLBA), 1, image))

	return dev
}

func TestBootElToritoLoadsAndFarJumps(t *testing.T) {
	fw, st, tr := newRig(t)

	dev := cdImageWithCatalog(t, 19, 30, []byte("BOOTIMG"))
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	err = bootrec.Boot(fw, tr, 0x80)
	require.Error(t, err)
	require.Len(t, fw.FarJumps, 1)
	require.Equal(t, firmware.FarPointer{Segment: 0x07C0, Offset: 0}, fw.FarJumps[0].Addr)

	got := make([]byte, 7)
	require.NoError(t, fw.CopyFromReal(got, firmware.FarPointer{Segment: 0x07C0, Offset: 0}))
	require.Equal(t, "BOOTIMG", string(got))
}

func TestBootFarJumpSucceedingStillReportsError(t *testing.T) {
	fw, st, tr := newRig(t)

	dev := blockdev.NewMem(2048, 512, false)
	sector := make([]byte, 512)
	sector[0x1FE], sector[0x1FF] = 0x55, 0xAA
	require.NoError(t, dev.Write(0, 1, sector))
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	fw.SetFarJump(func(addr firmware.FarPointer, dl uint8) error { return nil })

	err = bootrec.Boot(fw, tr, 0x80)
	require.Error(t, err)
	require.Contains(t, err.Error(), "returned control unexpectedly")
}
