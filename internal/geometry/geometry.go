// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package geometry computes page size and page numbering for the
// flash controller's two bank modes (spec.md §4.2).
package geometry

import "github.com/usbarmory/fwselect/internal/layout"

// Mode selects the flash controller's bank configuration.
type Mode int

const (
	// SingleBank: 256 pages of 8 KiB in one bank.
	SingleBank Mode = iota
	// DualBank: 512 pages of 4 KiB split across two banks.
	DualBank
)

// PageSize returns the page size in bytes for the given bank mode.
func PageSize(mode Mode) uint32 {
	if mode == DualBank {
		return layout.DualBankPageSize
	}

	return layout.SingleBankPageSize
}

// PageCount returns the total number of pages addressable under mode.
func PageCount(mode Mode) int {
	return layout.FlashSize / int(PageSize(mode))
}

// PageNumber returns the page number containing flash address a under
// the given bank mode. The caller must ensure a < FlashSize.
func PageNumber(a uint32, mode Mode) uint32 {
	return a / PageSize(mode)
}

// BankAndOffset splits a page number into (bank index, page-within-bank)
// for dual-bank mode, where 512 pages are split 256/256 across two
// banks. In single-bank mode there is exactly one bank, and the
// within-bank index equals the page number.
func BankAndOffset(page uint32, mode Mode) (bank uint32, inBank uint32) {
	if mode != DualBank {
		return 0, page
	}

	return page / 256, page % 256
}

// PageSpan returns the minimum number of ps-sized pages needed to cover
// length bytes. PageSpan(0, ps) is 0.
func PageSpan(length uint32, ps uint32) uint32 {
	if length == 0 {
		return 0
	}

	return (length + ps - 1) / ps
}
