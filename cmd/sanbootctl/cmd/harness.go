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
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nettboot/sanboot13/internal/blockdev"
	"github.com/nettboot/sanboot13/internal/drive"
	"github.com/nettboot/sanboot13/internal/firmware"
	"github.com/nettboot/sanboot13/internal/int13"
	"github.com/nettboot/sanboot13/internal/logger"
	"github.com/nettboot/sanboot13/internal/xbft"
)

// trampolineAddr is the fixed far address the hosted harness pretends
// its assembly trampoline lives at. No real firmware reads it; it only
// has to be stable and distinct from the drive-image load addresses the
// boot strategies in internal/bootrec use.
var trampolineAddr = firmware.FarPointer{Segment: 0xF000, Offset: 0xE000}

// harness bundles the simulated firmware, the drive table, and the
// command dispatcher a CLI invocation needs — the hosted stand-in for
// "firmware has already booted and this module has installed itself."
type harness struct {
	fw   *firmware.Sim
	st   *drive.State
	disp *int13.Dispatcher
	tr   *firmware.Trampoline
	pool *xbft.Pool
	log  *logger.Logger
}

func newHarness(log *logger.Logger, allowVerify bool) *harness {
	fw := firmware.NewSim(1 << 20)
	st := drive.NewState(fw, trampolineAddr)
	disp := &int13.Dispatcher{FW: fw, State: st, AllowVerify: allowVerify}
	return &harness{
		fw:   fw,
		st:   st,
		disp: disp,
		tr:   int13.NewTrampoline(fw, disp, nil),
		pool: xbft.NewPool(),
		log:  log,
	}
}

// driveSpec is one "--drive" flag value: drive_number:path[:cdrom].
type driveSpec struct {
	driveNumber uint8
	path        string
	cdrom       bool
}

func parseDriveSpec(s string) (driveSpec, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return driveSpec{}, fmt.Errorf("drive spec %q: want drive_number:path[:cdrom]", s)
	}

	n, err := strconv.ParseUint(parts[0], 0, 8)
	if err != nil {
		return driveSpec{}, fmt.Errorf("drive spec %q: invalid drive number: %w", s, err)
	}

	spec := driveSpec{driveNumber: uint8(n), path: parts[1]}
	if len(parts) == 3 {
		if parts[2] != "cdrom" {
			return driveSpec{}, fmt.Errorf("drive spec %q: unknown qualifier %q", s, parts[2])
		}
		spec.cdrom = true
	}
	return spec, nil
}

// hookAll opens and hooks every drive spec in order, in the same order
// they were given on the command line.
func (h *harness) hookAll(specs []string) error {
	for _, raw := range specs {
		spec, err := parseDriveSpec(raw)
		if err != nil {
			return err
		}

		dev, err := blockdev.OpenFile(spec.path, spec.cdrom)
		if err != nil {
			return fmt.Errorf("open %q: %w", spec.path, err)
		}

		d, err := h.st.Hook(spec.driveNumber, dev)
		if err != nil {
			return fmt.Errorf("hook %q as 0x%02X: %w", spec.path, spec.driveNumber, err)
		}
		h.log.Infof("hooked %s as drive 0x%02X (natural 0x%02X, kind %s)", spec.path, d.DriveNumber, d.NaturalDrive, d.Kind)
	}
	return nil
}
