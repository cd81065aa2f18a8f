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
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nettboot/sanboot13/internal/bootrec"
	"github.com/nettboot/sanboot13/internal/logger"
)

func DefineBootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "boot <drive_number>",
		Short:        "Hook one or more drives and attempt to boot from one of them",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunBoot,
	}

	cmd.Flags().StringSlice("drive", nil, "drive_number:path[:cdrom], repeatable; the drive it should hook and boot from must be among them")
	cmd.Flags().String("log-level", "INFO", "log level: DEBUG, INFO, WARN, ERROR")
	cmd.Flags().Bool("allow-verify", false, "answer subfunction 0x44 (verify sectors) with success instead of the source's unconditional invalid")
	_ = cmd.MarkFlagRequired("drive")

	return cmd
}

func RunBoot(cmd *cobra.Command, args []string) error {
	driveNumber, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil {
		return fmt.Errorf("invalid drive number %q: %w", args[0], err)
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	allowVerify, _ := cmd.Flags().GetBool("allow-verify")
	log := logger.New(os.Stderr, logger.ParseLevel(logLevel))

	h := newHarness(log, allowVerify)

	specs, _ := cmd.Flags().GetStringSlice("drive")
	if err := h.hookAll(specs); err != nil {
		return err
	}

	err = bootrec.Boot(h.fw, h.tr, uint8(driveNumber))
	log.Infof("boot attempt on drive 0x%02X: %v", uint8(driveNumber), err)
	return err
}
