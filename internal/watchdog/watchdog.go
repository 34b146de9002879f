// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// Package watchdog implements the shim driver for the independent
// hardware watchdog named in spec.md §4.7: initialization and a single
// Feed sink. Everything else about the watchdog (the actual timeout
// behavior) is an external collaborator per spec.md §1.
package watchdog

import (
	"errors"

	"github.com/usbarmory/fwselect/internal/mmio"
)

// Register offsets, relative to Base (generic IWDG-style independent
// watchdog register map: KR/PR/RLR/SR).
const (
	regKR  = 0x00
	regPR  = 0x04
	regRLR = 0x08
	regSR  = 0x0C
)

// Key register values.
const (
	keyReloadFeed   = 0xAAAA
	keyEnableAccess = 0x5555
	keyStart        = 0xCCCC
)

// Status register bits.
const (
	srPVU = 0 // prescaler value update
	srRVU = 1 // reload value update
	srWVU = 2 // window value update
)

// Prescaler /256 selector for PR.
const prescalerDiv256 = 0b110

// ReloadMax is the maximum reload value (spec.md §4.7).
const ReloadMax = 0xFFF

// UpdateSpinBudget bounds the PVU/RVU/WVU wait during Init so a
// hardware fault before the watchdog itself is running cannot hang the
// bootloader silently (spec.md §9, Open Question 5).
const UpdateSpinBudget = 100000

var ErrUpdateTimeout = errors.New("watchdog: register update did not settle")

// Watchdog drives the independent hardware watchdog.
type Watchdog struct {
	// Base is the watchdog peripheral's register base address.
	Base uint32

	kr  uint32
	pr  uint32
	rlr uint32
	sr  uint32
}

// Init starts the watchdog and configures its prescaler and reload
// value, following the sequence in spec.md §4.7.
func (w *Watchdog) Init() error {
	if w.Base == 0 {
		panic("watchdog: invalid base address")
	}

	w.kr = w.Base + regKR
	w.pr = w.Base + regPR
	w.rlr = w.Base + regRLR
	w.sr = w.Base + regSR

	mmio.Write(w.kr, keyStart)
	mmio.Write(w.kr, keyEnableAccess)
	mmio.Write(w.pr, prescalerDiv256)
	mmio.Write(w.rlr, ReloadMax)

	if err := w.waitUpdateClear(); err != nil {
		return err
	}

	mmio.Write(w.kr, keyReloadFeed)

	return nil
}

func (w *Watchdog) waitUpdateClear() error {
	for i := 0; i < UpdateSpinBudget; i++ {
		if mmio.Read(w.sr)&((1<<srPVU)|(1<<srRVU)|(1<<srWVU)) == 0 {
			return nil
		}
	}

	return ErrUpdateTimeout
}

// Feed services the watchdog, preventing a timeout-triggered reset.
// Feed interval budget is approximately 30 seconds (spec.md §4.7); the
// copy loop in the boot orchestrator feeds once per page copied.
func (w *Watchdog) Feed() {
	mmio.Write(w.kr, keyReloadFeed)
}
