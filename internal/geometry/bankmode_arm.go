// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

package geometry

import "github.com/usbarmory/fwselect/internal/mmio"

// OptionRegister is the flash controller's option byte register
// address. Board packages override it at init time via SetOptionRegister
// to match their part's memory map.
var OptionRegister uint32

// dualBankBit is bit 22 of the option register (spec.md §4.2).
const dualBankBit = 22

// SetOptionRegister configures the address of the flash option
// register. Board init code must call this before BankMode.
func SetOptionRegister(addr uint32) {
	OptionRegister = addr
}

// BankMode reads the hardware option bit that selects single-bank vs.
// dual-bank flash geometry.
func BankMode() Mode {
	if OptionRegister == 0 {
		panic("geometry: option register not configured")
	}

	if mmio.Get(OptionRegister, dualBankBit, 1) != 0 {
		return DualBank
	}

	return SingleBank
}
