package int13_test

import (
	"encoding/binary"
	"testing"

	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/nettboot/sanboot13/internal/int13"
	"github.com/stretchr/testify/require"
)

var trampolineAddr = firmware.FarPointer{Segment: 0xF000, Offset: 0x4000}

func newState(t *testing.T, mbr bool) (*firmware.Sim, *drive.State, *blockdev.Mem) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)

	dev := blockdev.NewMem(2048, 512, false)
	if mbr {
		sector := make([]byte, 512)
		sector[0x1FE], sector[0x1FF] = 0x55, 0xAA
		require.NoError(t, dev.Write(0, 1, sector))
	}
	return fw, st, dev
}

func TestCHSToLBAInverse(t *testing.T) {
	for cyl := uint16(0); cyl < 20; cyl++ {
		for head := uint8(0); head < 4; head++ {
			for sector := uint8(1); sector <= 18; sector++ {
				lba := int13.CHSToLBA(cyl, head, sector, 4, 18)
				gotCyl, gotHead, gotSector := int13.LBAToCHS(lba, 4, 18)
				require.Equal(t, cyl, gotCyl)
				require.Equal(t, head, gotHead)
				require.Equal(t, sector, gotSector)
			}
		}
	}
}

func TestHookHDDReadMBR(t *testing.T) {
	fw, st, dev := newState(t, true)
	d, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}

	_ = d
	frame := &firmware.RegisterFrame{AH: 0x02, AL: 1}
	frame.SetDL(0x80)
	frame.SetDH(0)
	frame.CX = 1 // cylinder 0, sector 1
	frame.ES = 0x0000
	frame.BX = 0x7C00

	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}
	require.NoError(t, tr.Int13(frame))

	require.False(t, frame.Carry)
	got := make([]byte, 512)
	require.NoError(t, fw.CopyFromReal(got, firmware.FarPointer{Segment: 0, Offset: 0x7C00}))
	require.EqualValues(t, 0x55, got[0x1FE])
	require.EqualValues(t, 0xAA, got[0x1FF])
}

func TestCHSOutOfRangeSetsLastStatus(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)
	dev := blockdev.NewMem(16*4*63, 512, false) // geometry defaults from capacity

	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	drv, _ := st.Lookup(0x80)
	drv.Geometry.Cylinders = 16
	drv.Geometry.Heads = 4
	drv.Geometry.SectorsPerTrack = 63

	frame := &firmware.RegisterFrame{AH: 0x02, AL: 1}
	frame.SetDL(0x80)
	frame.SetDH(0)
	ch, cl := int13.EncodeCHS(20, 1) // cylinder 20 is out of range
	frame.CX = uint16(ch)<<8 | uint16(cl)

	require.NoError(t, tr.Int13(frame))
	require.True(t, frame.Carry)
	require.EqualValues(t, 0x01, frame.AH)

	frame2 := &firmware.RegisterFrame{AH: 0x01}
	frame2.SetDL(0x80)
	require.NoError(t, tr.Int13(frame2))
	require.EqualValues(t, 0x01, frame2.AH)
}

func TestDisplacementRemapChains(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	fw.SetHardDiskCount(2)
	st := drive.NewState(fw, trampolineAddr)

	d, err := st.Hook(0x80, blockdev.NewMem(2048, 512, false))
	require.NoError(t, err)
	require.EqualValues(t, 0x82, d.NaturalDrive)

	disp := &int13.Dispatcher{FW: fw, State: st}

	var chainSawDL uint8
	tr := firmware.Trampoline{
		FW:       fw,
		Dispatch: disp.Dispatch,
		Chain: func(frame *firmware.RegisterFrame) error {
			chainSawDL = frame.DL()
			return nil
		},
	}

	frame := &firmware.RegisterFrame{AH: 0x02}
	frame.SetDL(0x82)
	require.NoError(t, tr.Int13(frame))
	require.EqualValues(t, 0x80, chainSawDL)
	require.EqualValues(t, 0x82, frame.DL())
}

func TestUnhookRestoresVector(t *testing.T) {
	fw := firmware.NewSim(0)
	original := firmware.FarPointer{Segment: 0x1234, Offset: 0x5678}
	fw.SetVector13(original)

	st := drive.NewState(fw, trampolineAddr)
	_, err := st.Hook(0x00, blockdev.NewMem(2880, 512, false))
	require.NoError(t, err)
	require.NoError(t, st.Unhook(0x00))

	require.Equal(t, original, fw.Vector13())
}

func TestExtensionCheckRequiresMagic(t *testing.T) {
	fw, st, dev := newState(t, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	frame := &firmware.RegisterFrame{AH: 0x41, BX: 0x1234}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.True(t, frame.Carry)
	require.EqualValues(t, 0x01, frame.AH)

	frame2 := &firmware.RegisterFrame{AH: 0x41, BX: 0x55AA}
	frame2.SetDL(0x80)
	require.NoError(t, tr.Int13(frame2))
	require.False(t, frame2.Carry)
	require.EqualValues(t, 0xAA55, frame2.BX)
	require.EqualValues(t, 0x30, frame2.AH)
}

func writePacket(fw firmware.Firmware, ptr firmware.FarPointer, count uint8, buf firmware.FarPointer, lba uint64) {
	hdr := make([]byte, 16)
	hdr[2] = count
	binary.LittleEndian.PutUint16(hdr[4:6], buf.Offset)
	binary.LittleEndian.PutUint16(hdr[6:8], buf.Segment)
	binary.LittleEndian.PutUint64(hdr[8:16], lba)
	if err := fw.CopyToReal(ptr, hdr); err != nil {
		panic(err)
	}
}

func TestExtendedReadZeroCountSkipsBlockLayer(t *testing.T) {
	fw, st, dev := newState(t, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	ptr := firmware.FarPointer{Segment: 0x1000, Offset: 0x0000}
	writePacket(fw, ptr, 0, firmware.FarPointer{Segment: 0x2000, Offset: 0x0000}, 5)

	frame := &firmware.RegisterFrame{AH: 0x42, DS: ptr.Segment, SI: ptr.Offset}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.False(t, frame.Carry)
}

func TestExtendedReadUsesBufferPhysSentinel(t *testing.T) {
	fw, st, dev := newState(t, false)
	require.NoError(t, dev.Write(10, 1, append([]byte("DATA"), make([]byte, 508)...)))
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	ptr := firmware.FarPointer{Segment: 0x1000, Offset: 0x0000}
	hdr := make([]byte, 24)
	hdr[2] = 1
	binary.LittleEndian.PutUint16(hdr[4:6], 0xFFFF)
	binary.LittleEndian.PutUint16(hdr[6:8], 0xFFFF)
	binary.LittleEndian.PutUint64(hdr[8:16], 10)
	binary.LittleEndian.PutUint64(hdr[16:24], 0x90000)
	require.NoError(t, fw.CopyToReal(ptr, hdr))

	frame := &firmware.RegisterFrame{AH: 0x42, DS: ptr.Segment, SI: ptr.Offset}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.False(t, frame.Carry)

	got := make([]byte, 4)
	require.NoError(t, fw.CopyFromPhys(got, 0x90000))
	require.Equal(t, "DATA", string(got))
}

func TestExtendedReadLongCountAndInvalidRange(t *testing.T) {
	fw, st, dev := newState(t, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	ptr := firmware.FarPointer{Segment: 0x1000, Offset: 0x0000}
	hdr := make([]byte, 28)
	hdr[2] = 0xFF
	binary.LittleEndian.PutUint16(hdr[4:6], 0x0000)
	binary.LittleEndian.PutUint16(hdr[6:8], 0x2000)
	binary.LittleEndian.PutUint64(hdr[8:16], 0)
	binary.LittleEndian.PutUint32(hdr[24:28], 2)
	require.NoError(t, fw.CopyToReal(ptr, hdr))

	frame := &firmware.RegisterFrame{AH: 0x42, DS: ptr.Segment, SI: ptr.Offset}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.False(t, frame.Carry)

	invalidPtr := firmware.FarPointer{Segment: 0x1000, Offset: 0x0100}
	hdr2 := make([]byte, 16)
	hdr2[2] = 0x80 // in [0x80, 0xFE]: invalid
	require.NoError(t, fw.CopyToReal(invalidPtr, hdr2))

	frame2 := &firmware.RegisterFrame{AH: 0x42, DS: invalidPtr.Segment, SI: invalidPtr.Offset}
	frame2.SetDL(0x80)
	require.NoError(t, tr.Int13(frame2))
	require.True(t, frame2.Carry)
	require.EqualValues(t, 0x01, frame2.AH)
}

func TestGetParamsDoesNotDecrementSectorsPerTrack(t *testing.T) {
	fw, st, dev := newState(t, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	drv, _ := st.Lookup(0x80)
	drv.Geometry.Cylinders = 100
	drv.Geometry.Heads = 4
	drv.Geometry.SectorsPerTrack = 63

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	frame := &firmware.RegisterFrame{AH: 0x08}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.False(t, frame.Carry)
	require.EqualValues(t, 63, frame.CL()&0x3F)
	require.EqualValues(t, 3, frame.DH()) // heads - 1
}

func TestFixupDLAppliesUniversalDriveCountEvenOnChain(t *testing.T) {
	fw, st, dev := newState(t, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}

	var chained bool
	tr := int13.NewTrampoline(fw, disp, func(frame *firmware.RegisterFrame) error {
		chained = true
		return nil
	})

	// Owned hard disk: AH=0x08 still reports the system-wide hard-disk
	// count in DL.
	frame := &firmware.RegisterFrame{AH: 0x08}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.False(t, chained)
	require.Equal(t, st.NumDrives(), frame.DL())

	// Unmatched hard-disk-range drive number: the call chains straight
	// through to the original handler, but AH=0x08's universal output
	// contract (system-wide drive count) still applies to DL on return,
	// not the stale entry DL.
	chained = false
	frame2 := &firmware.RegisterFrame{AH: 0x08}
	frame2.SetDL(0x81)
	require.NoError(t, tr.Int13(frame2))
	require.True(t, chained)
	require.Equal(t, st.NumDrives(), frame2.DL())
	require.NotEqual(t, uint8(0x81), frame2.DL())

	// Unmatched floppy-range drive number: same universal contract, but
	// the floppy count.
	chained = false
	frame3 := &firmware.RegisterFrame{AH: 0x08}
	frame3.SetDL(0x01)
	require.NoError(t, tr.Int13(frame3))
	require.True(t, chained)
	require.Equal(t, st.NumFdds(), frame3.DL())

	// AH=0x15 on the same unmatched hard-disk-range drive: chains
	// through, and DL is left exactly as the chained call set it (the
	// "leave DL untouched" contract), not reset to entryDL.
	chained = false
	frame4 := &firmware.RegisterFrame{AH: 0x15}
	frame4.SetDL(0x81)
	tr2 := int13.NewTrampoline(fw, disp, func(frame *firmware.RegisterFrame) error {
		chained = true
		frame.SetDL(0x42)
		return nil
	})
	require.NoError(t, tr2.Int13(frame4))
	require.True(t, chained)
	require.EqualValues(t, 0x42, frame4.DL())
}

func TestVerifyDefaultsToInvalidUnlessAllowed(t *testing.T) {
	fw, st, dev := newState(t, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	disp := &int13.Dispatcher{FW: fw, State: st}
	tr := firmware.Trampoline{FW: fw, Dispatch: disp.Dispatch}

	frame := &firmware.RegisterFrame{AH: 0x44}
	frame.SetDL(0x80)
	require.NoError(t, tr.Int13(frame))
	require.True(t, frame.Carry)

	disp.AllowVerify = true
	frame2 := &firmware.RegisterFrame{AH: 0x44}
	frame2.SetDL(0x80)
	require.NoError(t, tr.Int13(frame2))
	require.False(t, frame2.Carry)
}
