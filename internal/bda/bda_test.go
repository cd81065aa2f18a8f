package bda_test

import (
	"testing"

	"github.com/nettboot/sanboot13/internal/bda"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/stretchr/testify/require"
)

func TestSyncBumpsCountersAndEquipmentWord(t *testing.T) {
	fw := firmware.NewSim(0)
	r := bda.NewReconciler(fw)

	counters := []bda.DriveCounter{
		{IsFloppy: false, DriveNumberLow7: 0x00, NaturalDriveLow7: 0x02},
		{IsFloppy: true, DriveNumberLow7: 0x01, NaturalDriveLow7: 0x01},
	}
	r.Sync(counters)

	require.EqualValues(t, 3, r.NumDrives())
	require.EqualValues(t, 2, r.NumFdds())
	require.EqualValues(t, 3, fw.HardDiskCount())

	word := fw.EquipmentWord()
	require.NotZero(t, word&0x1)
	require.EqualValues(t, 1, (word>>6)&0x3)
}

func TestCheckResyncsAfterFirmwareRescan(t *testing.T) {
	fw := firmware.NewSim(0)
	r := bda.NewReconciler(fw)

	counters := []bda.DriveCounter{
		{IsFloppy: false, DriveNumberLow7: 0x00, NaturalDriveLow7: 0x00},
	}
	r.Sync(counters)
	require.EqualValues(t, 1, r.NumDrives())

	// Firmware "kills off" our drive behind our back.
	fw.SetHardDiskCount(0)

	r.Check(counters)
	require.EqualValues(t, 1, r.NumDrives())
	require.EqualValues(t, 1, fw.HardDiskCount())
}

func TestCheckNoOpWhenConsistent(t *testing.T) {
	fw := firmware.NewSim(0)
	r := bda.NewReconciler(fw)
	r.Sync(nil)
	before := fw.EquipmentWord()
	r.Check(nil)
	require.Equal(t, before, fw.EquipmentWord())
}
