// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// Package scratch provides access to the battery-backed scratch
// registers holding the soft-reboot hint (spec.md §6) and the
// panic-reset counter added in SPEC_FULL.md to bound bootloop retries
// (spec.md §9, Open Question 4).
package scratch

import "github.com/usbarmory/fwselect/internal/mmio"

// SoftRebootMagic is the sentinel that marks register 0 as holding a
// valid soft-reboot hint (spec.md §6).
const SoftRebootMagic = 0x5457

// MaxConsecutiveResets bounds the panic-reset counter before the boot
// orchestrator escalates to its failsafe hook instead of resetting
// again (SPEC_FULL.md, Open Question 4).
const MaxConsecutiveResets = 8

// Registers holds the addresses of the three battery-backed scratch
// words this module uses: soft-reboot magic, soft-reboot image index,
// and the panic-reset counter.
type Registers struct {
	Magic        uint32
	ImageIndex   uint32
	ResetCounter uint32
}

// ReadSoftReboot reads and clears the soft-reboot hint. ok is true only
// if the magic word matched; index is meaningful only when ok is true.
func ReadSoftReboot(r Registers) (index uint32, ok bool) {
	magic := mmio.Read(r.Magic)
	index = mmio.Read(r.ImageIndex)

	mmio.Write(r.Magic, 0)
	mmio.Write(r.ImageIndex, 0)

	return index, magic == SoftRebootMagic
}

// WriteSoftReboot arms the soft-reboot hint for the next boot.
func WriteSoftReboot(r Registers, index uint32) {
	mmio.Write(r.ImageIndex, index)
	mmio.Write(r.Magic, SoftRebootMagic)
}

// IncrementResetCounter increments and returns the panic-reset
// counter. It saturates at MaxConsecutiveResets+1 rather than
// wrapping, so repeated calls after the threshold keep reporting
// "exceeded".
func IncrementResetCounter(r Registers) uint32 {
	n := mmio.Read(r.ResetCounter)

	if n <= MaxConsecutiveResets {
		n++
		mmio.Write(r.ResetCounter, n)
	}

	return n
}

// ClearResetCounter resets the panic-reset counter, called after a
// successful hand-off.
func ClearResetCounter(r Registers) {
	mmio.Write(r.ResetCounter, 0)
}
