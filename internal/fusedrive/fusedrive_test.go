//go:build linux
// +build linux

package fusedrive_test

import (
	"context"
	"testing"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/stretchr/testify/require"

	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/nettboot/sanboot13/internal/fusedrive"
)

type lister interface {
	ReadDirAll(ctx context.Context) ([]fuse.Dirent, error)
	Lookup(ctx context.Context, name string) (fusefs.Node, error)
}

type reader interface {
	Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error
	Attr(ctx context.Context, a *fuse.Attr) error
}

func TestDriveFSListsHookedDrives(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, firmware.FarPointer{Segment: 0xF000, Offset: 0x4000})

	dev := blockdev.NewMem(2048, 512, false)
	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	root, err := fusedrive.New(st).Root()
	require.NoError(t, err)

	dir, ok := root.(lister)
	require.True(t, ok)

	entries, err := dir.ReadDirAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "80.img", entries[0].Name)
}

func TestDriveFSReadsThroughToDevice(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, firmware.FarPointer{Segment: 0xF000, Offset: 0x4000})

	dev := blockdev.NewMem(4, 512, false)
	payload := append([]byte("HELLO"), make([]byte, 507)...)
	require.NoError(t, dev.Write(1, 1, payload))

	_, err := st.Hook(0x80, dev)
	require.NoError(t, err)

	root, err := fusedrive.New(st).Root()
	require.NoError(t, err)

	dir := root.(lister)
	node, err := dir.Lookup(context.Background(), "80.img")
	require.NoError(t, err)

	f := node.(reader)

	var attr fuse.Attr
	require.NoError(t, f.Attr(context.Background(), &attr))
	require.EqualValues(t, 4*512, attr.Size)

	req := &fuse.ReadRequest{Offset: 512, Size: 5}
	resp := &fuse.ReadResponse{}
	require.NoError(t, f.Read(context.Background(), req, resp))
	require.Equal(t, "HELLO", string(resp.Data))
}

func TestDriveFSLookupMissingReturnsENOENT(t *testing.T) {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, firmware.FarPointer{Segment: 0xF000, Offset: 0x4000})

	root, err := fusedrive.New(st).Root()
	require.NoError(t, err)

	dir := root.(lister)
	_, err = dir.Lookup(context.Background(), "80.img")
	require.ErrorIs(t, err, fuse.ENOENT)
}
