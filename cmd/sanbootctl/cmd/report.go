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

	"github.com/nettboot/sanboot13/internal/logger"
	"github.com/nettboot/sanboot13/internal/report"
)

func DefineReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "report",
		Short:        "Hook one or more drives and print a state report",
		SilenceUsage: true,
		RunE:         RunReport,
	}

	cmd.Flags().StringSlice("drive", nil, "drive_number:path[:cdrom], repeatable")
	cmd.Flags().String("output", "", "write the report here instead of stdout")
	_ = cmd.MarkFlagRequired("drive")

	return cmd
}

func RunReport(cmd *cobra.Command, args []string) error {
	log := logger.New(os.Stderr, logger.InfoLevel)
	h := newHarness(log, false)

	specs, _ := cmd.Flags().GetStringSlice("drive")
	if err := h.hookAll(specs); err != nil {
		return err
	}

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return report.Snapshot(f, h.st, h.pool)
	}
	return report.Snapshot(out, h.st, h.pool)
}
