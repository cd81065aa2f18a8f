package xbft_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nettboot/sanboot13/internal/xbft"
)

func makeHeader(sig string, n int) []byte {
	h := make([]byte, n)
	copy(h, sig)
	return h
}

func sumModulo256(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum += v
	}
	return sum
}

func TestInstallStampsOEMFieldsAndChecksum(t *testing.T) {
	pool := xbft.NewPool()
	header := makeHeader("XBFT", 40)

	offset, err := pool.Install(header)
	require.NoError(t, err)
	require.EqualValues(t, 0, offset)
	require.EqualValues(t, 48, pool.Used()) // 40 rounds up to 48

	out := pool.Bytes()
	require.Equal(t, "FENSYS", string(out[10:16]))
	require.Equal(t, "iPXE    ", string(out[16:24]))
	require.EqualValues(t, 0, sumModulo256(out[:40]))
}

func TestInstallAdvancesAlignedOffsets(t *testing.T) {
	pool := xbft.NewPool()

	off1, err := pool.Install(makeHeader("AAAA", 36))
	require.NoError(t, err)
	require.EqualValues(t, 0, off1)

	off2, err := pool.Install(makeHeader("BBBB", 36))
	require.NoError(t, err)
	require.EqualValues(t, 48, off2) // 36 -> aligned up to 48
}

func TestInstallRejectsOverflow(t *testing.T) {
	pool := xbft.NewPool()

	_, err := pool.Install(makeHeader("AAAA", 700))
	require.NoError(t, err)

	_, err = pool.Install(makeHeader("BBBB", 200))
	require.Error(t, err)
}

func TestInstallRejectsUndersizedHeader(t *testing.T) {
	pool := xbft.NewPool()
	_, err := pool.Install(make([]byte, 10))
	require.Error(t, err)
}
