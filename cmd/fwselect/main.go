// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Command fwselect is the host-side packaging and verification tool
// for the A/B/C firmware image format: it assembles a 2 MiB flash
// image from a bootloader and up to three firmware payloads (write),
// and re-validates one against the same on-flash checks the device
// bootloader applies (read).
package main

import (
	"os"

	"github.com/usbarmory/fwselect/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdout, os.Stderr, os.Args))
}
