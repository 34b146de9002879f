// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cli implements the fwselect host command: the write
// subcommand (spec.md §4.8) and the read subcommand (spec.md §4.10).
package cli

import (
	"fmt"
	"io"
)

// IO bundles the streams the subcommands write their reports and
// errors through, so they can be swapped for buffers in tests without
// touching os.Stdout/Stderr. The read subcommand's metadata hex dump is
// the exception: xxd.Print writes it straight to os.Stdout.
type IO struct {
	Out    io.Writer
	ErrOut io.Writer
}

func (o *IO) printf(format string, a ...any) {
	fmt.Fprintf(o.Out, format, a...)
}

func (o *IO) errPrintln(a ...any) {
	fmt.Fprintln(o.ErrOut, a...)
}
