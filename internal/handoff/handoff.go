// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// Package handoff implements the single non-returning primitive that
// transfers execution from the bootloader to a copied-to-RAM image
// (spec.md §4.6): vector-table relocation, stack-pointer load, and
// branch. spec.md §1 scopes the CPU-specific bootstrap out as "a
// single abstract hand-off primitive"; this package is that primitive
// and is deliberately not expanded further.
package handoff

import (
	"encoding/binary"

	"github.com/usbarmory/fwselect/internal/barrier"
	"github.com/usbarmory/fwselect/internal/layout"
	"github.com/usbarmory/fwselect/internal/mmio"
)

// VTOR is the vector-table-offset register address. Board init code
// must set this to match its part's memory map before Boot is called.
var VTOR uint32

// SetVTOR configures the vector-table-offset register address.
func SetVTOR(addr uint32) {
	VTOR = addr
}

// EntryPoint reads the entry-point address out of a RAM image, per
// spec.md §4.6: bytes 4..8 of the image (the second 32-bit word of the
// ARM Cortex-M vector table, conventionally the reset handler address).
func EntryPoint(image []byte) uint32 {
	return binary.LittleEndian.Uint32(image[4:8])
}

// branch is implemented in handoff_arm.s: it loads the stack pointer
// from layout.RAMStackTop and branches to entry, never returning.
func branch(entry uint32, stackTop uint32)

// Boot relocates the vector table to RAM, loads the stack pointer, and
// branches to the image's entry point. It does not return.
func Boot(image []byte) {
	if VTOR == 0 {
		panic("handoff: VTOR not configured")
	}

	barrier.DataMemoryBarrier()

	entry := EntryPoint(image)

	mmio.Write(VTOR, layout.RAMAddr)
	barrier.InstructionSyncBarrier()

	branch(entry, layout.RAMStackTop)
}
