package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/nettboot/sanboot13/internal/report"
	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/xbft"
)

var trampolineAddr = firmware.FarPointer{Segment: 0xF000, Offset: 0x5000}

func TestSnapshotIncludesHookedDrivesAndXBFTUsage(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)

	dev := blockdev.NewMem(2048, 512, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	pool := xbft.NewPool()
	_, err = pool.Install(make([]byte, 40))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Snapshot(&buf, st, pool))

	out := buf.String()
	require.Contains(t, out, "<sanbootreport")
	require.Contains(t, out, "</sanbootreport>")
	require.Contains(t, out, "<drive>")
	require.Contains(t, out, "0x80")
	require.Contains(t, out, "<used>48</used>")
	require.Contains(t, out, "<capacity>768</capacity>")
}

func TestSnapshotReflectsCDROMWithoutBootCatalog(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)

	dev := blockdev.NewMem(4096, 2048, true)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.Snapshot(&buf, st, nil))

	out := buf.String()
	require.Contains(t, out, "<kind>cdrom</kind>")
	require.Contains(t, out, "<has_boot_catalog>false</has_boot_catalog>")
}

func TestSnapshotWithNoDrivesStillEmitsValidHeader(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)

	var buf bytes.Buffer
	require.NoError(t, report.Snapshot(&buf, st, xbft.NewPool()))

	out := buf.String()
	require.Contains(t, out, "<sanbootreport")
	require.Contains(t, out, "</sanbootreport>")
	require.NotContains(t, out, "<drive>")
}
