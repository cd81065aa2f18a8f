//go:build linux
// +build linux

// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package fusedrive exposes every currently-hooked EmulatedDrive as a
// single read-only raw file, so a developer can dd/cmp against exactly
// the bytes the BIOS would see without real firmware.
package fusedrive

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/nettboot/sanboot13/internal/drive"
)

// blockReaderAt adapts a blockdev.Device's sector-granular Read into the
// arbitrary-offset io.ReaderAt shape FUSE reads want.
type blockReaderAt struct {
	dev interface {
		Read(lba uint64, count uint32, buf []byte) error
		BlockSize() uint32
	}
}

func (r blockReaderAt) ReadAt(p []byte, off int64) (int, error) {
	bs := uint64(r.dev.BlockSize())
	startLBA := uint64(off) / bs
	end := uint64(off) + uint64(len(p))
	endLBA := (end + bs - 1) / bs
	count := endLBA - startLBA

	buf := make([]byte, count*bs)
	if err := r.dev.Read(startLBA, uint32(count), buf); err != nil {
		return 0, err
	}
	skip := uint64(off) - startLBA*bs
	return copy(p, buf[skip:]), nil
}

// DriveFS is the root FUSE filesystem: a flat directory of "<drive
// number>.img" files, one per drive registered in state at the time of
// each directory lookup or listing.
type DriveFS struct {
	state *drive.State
}

// New builds a DriveFS over state. The drive set is not snapshotted:
// every lookup and directory listing queries state, so drives hooked or
// unhooked after mounting are reflected.
func New(state *drive.State) *DriveFS {
	return &DriveFS{state: state}
}

func (d *DriveFS) Root() (fs.Node, error) {
	return &dir{fs: d}, nil
}

func fileName(d *drive.EmulatedDrive) string {
	return fmt.Sprintf("%02x.img", d.DriveNumber)
}

type dir struct {
	fs *DriveFS
}

func (*dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = os.ModeDir | 0555
	return nil
}

func (d *dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	for _, drv := range d.fs.state.Drives() {
		if fileName(drv) == name {
			return &file{drive: drv}, nil
		}
	}
	return nil, fuse.ENOENT
}

func (d *dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	drives := d.fs.state.Drives()
	dirents := make([]fuse.Dirent, 0, len(drives))
	for i, drv := range drives {
		dirents = append(dirents, fuse.Dirent{
			Inode: uint64(i + 1),
			Name:  fileName(drv),
			Type:  fuse.DT_File,
		})
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name < dirents[j].Name })
	return dirents, nil
}

// file implements fs.Node and fs.HandleReader for one emulated drive's
// raw image.
type file struct {
	drive *drive.EmulatedDrive
}

func (f *file) size() uint64 {
	return f.drive.Device.Capacity() * uint64(f.drive.Device.BlockSize())
}

func (f *file) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Mode = 0444
	a.Size = f.size()
	a.Mtime = time.Now()
	return nil
}

func (f *file) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	size := req.Size
	offset := req.Offset
	total := int64(f.size())

	if offset >= total {
		resp.Data = []byte{}
		return nil
	}
	if offset+int64(size) > total {
		size = int(total - offset)
	}

	buf := make([]byte, size)
	n, err := blockReaderAt{dev: f.drive.Device}.ReadAt(buf, offset)
	if err != nil {
		return err
	}
	resp.Data = buf[:n]
	return nil
}
