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
	"os"

	"github.com/spf13/cobra"

	"github.com/nettboot/sanboot13/internal/fusedrive"
	"github.com/nettboot/sanboot13/internal/logger"
)

func DefineMountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mount <mountpoint>",
		Short:        "Hook one or more drives and expose them as raw image files under a FUSE mountpoint",
		Long: `The 'mount' command hooks the given drives and serves each as a single
read-only "<drive_number>.img" file under mountpoint, sized to the drive's
reported capacity, so a developer can dd/cmp against exactly the bytes the
BIOS would see without real firmware. Blocks until interrupted or unmounted.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunMount,
	}

	cmd.Flags().StringSlice("drive", nil, "drive_number:path[:cdrom], repeatable")
	_ = cmd.MarkFlagRequired("drive")

	return cmd
}

func RunMount(cmd *cobra.Command, args []string) error {
	log := logger.New(os.Stderr, logger.InfoLevel)
	h := newHarness(log, false)

	specs, _ := cmd.Flags().GetStringSlice("drive")
	if err := h.hookAll(specs); err != nil {
		return err
	}

	return fusedrive.Mount(args[0], h.st)
}
