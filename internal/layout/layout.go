// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package layout holds the fixed, compile-time flash and RAM geometry
// shared by the device-side boot selector and the host-side image
// builder. Neither side may disagree on these offsets.
package layout

// Flash geometry constants (spec.md §3, §4.2).
const (
	SingleBankPageSize = 0x2000
	DualBankPageSize   = 0x1000
	MaxPageSize        = 0x2000
	MinPageSize        = 0x1000

	FlashSize = 2 * 1024 * 1024

	RAMAddr     = 0x2000_0000
	RAMSize     = 0xA_0000
	RAMStackTop = 0x2005_0000
)

// NumImages is the number of redundant firmware slots (A/B/C).
const NumImages = 3

// Flash region offsets, all derived from MaxPageSize so that a change
// to the page constant keeps the layout self-consistent.
const (
	BootloaderAddr = 0
	Metadata1Addr  = MaxPageSize
	Metadata2Addr  = 2 * MaxPageSize
	SlotSize       = 63 * MaxPageSize // 504 KiB
	Slot0Addr      = 3 * MaxPageSize
	Slot1Addr      = Slot0Addr + SlotSize
	Slot2Addr      = Slot1Addr + SlotSize
)

// SlotAddr returns the flash offset of the given slot index (0, 1, or
// 2). It panics on an out-of-range index; callers are expected to
// validate the index against NumImages first.
func SlotAddr(slot int) uint32 {
	switch slot {
	case 0:
		return Slot0Addr
	case 1:
		return Slot1Addr
	case 2:
		return Slot2Addr
	default:
		panic("layout: invalid slot index")
	}
}

// MetadataAddr returns the flash offset of metadata copy 0 ("A") or 1
// ("B").
func MetadataAddr(copy int) uint32 {
	switch copy {
	case 0:
		return Metadata1Addr
	case 1:
		return Metadata2Addr
	default:
		panic("layout: invalid metadata copy index")
	}
}
