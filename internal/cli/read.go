// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/usbarmory/fwselect/internal/hostimage"

	"zappem.net/pub/debug/xxd"
)

var errVerificationFailed = errors.New("verification found discrepancies")

func readCommand() *Command {
	flags := flag.NewFlagSet("read", flag.ContinueOnError)

	imageFile := flags.String("image-file", "", "path to a 2 MiB assembled image (required)")

	return &Command{
		Flags: flags,
		Usage: "read --image-file PATH",
		Short: "Print per-metadata and per-image verification results for an assembled image.",
		Exec: func(o *IO, _ []string) error {
			if *imageFile == "" {
				return fmt.Errorf("%w: --image-file", errMissingRequiredFlag)
			}

			buf, err := os.ReadFile(*imageFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", *imageFile, err)
			}

			report, err := hostimage.Verify(buf)
			if err != nil {
				return err
			}

			o.printf("%s", report.String())

			if report.Diff != nil {
				o.printf("\nmetadata copy A at offset %#x:\n", report.Diff.Offset)
				xxd.Print(report.Diff.Offset, report.Diff.A)
				o.printf("metadata copy B at offset %#x:\n", report.Diff.Offset)
				xxd.Print(report.Diff.Offset, report.Diff.B)
			}

			if !report.OK() {
				return errVerificationFailed
			}

			return nil
		},
	}
}
