// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// Package flash implements a driver for the on-chip flash controller
// (spec.md §4.3): unlock/lock, page erase, doubleword programming, and
// status surfacing, across the controller's single-bank and dual-bank
// geometry modes.
package flash

import (
	"errors"
	"sync"
	"time"

	"github.com/usbarmory/fwselect/internal/geometry"
	"github.com/usbarmory/fwselect/internal/mmio"
)

// Controller register offsets, relative to Base (generic STM32-style
// flash controller register map: KEYR/CR/SR).
const (
	regKEYR = 0x08
	regSR   = 0x10
	regCR   = 0x14
)

// Status register bits.
const (
	srEOP     = 0
	srOPERR   = 1
	srPROGERR = 3
	srWRPERR  = 4
	srPGAERR  = 5
	srSIZERR  = 6
	srPGSERR  = 7
	srMISERR  = 8
	srFASTERR = 9
	srBSY     = 16
)

// Control register bits.
const (
	crPG     = 0  // programming enable
	crPER    = 1  // page erase enable
	crBKER   = 13 // bank selector (dual-bank only)
	crPNB    = 3  // page number field, 9 bits wide (single-bank: 8 bits)
	crPNBLen = 9
	crSTRT   = 16
	crLOCK   = 31
)

// Unlock key sequence (spec.md §4.3).
const (
	key1 = 0x45670123
	key2 = 0xCDEF89AB
)

// Status is the mapped outcome of a controller operation.
type Status int

const (
	OK Status = iota
	Busy
	Illegal
)

var (
	ErrUnlockFailed = errors.New("flash: unlock failed")
	ErrBusy         = errors.New("flash: controller busy")
	ErrIllegal      = errors.New("flash: illegal operation")
	ErrInvalidPage  = errors.New("flash: invalid page number")
)

// errorFlagsMask covers every programming-error flag cleared before an
// erase or program sequence (spec.md §4.3).
const errorFlagsMask = (1 << srPROGERR) | (1 << srSIZERR) | (1 << srPGAERR) |
	(1 << srPGSERR) | (1 << srWRPERR) | (1 << srMISERR) | (1 << srFASTERR)

// Controller drives the flash peripheral. The zero value is not ready
// for use; callers must set Base and Mode before calling any method.
type Controller struct {
	mu sync.Mutex

	// Base is the flash controller's register base address.
	Base uint32
	// Mode selects single-bank or dual-bank geometry.
	Mode geometry.Mode
	// Timeout bounds every busy-wait in this driver.
	Timeout time.Duration

	keyr uint32
	sr   uint32
	cr   uint32
}

const defaultTimeout = 100 * time.Millisecond

// Init resolves register offsets from Base. It must be called before
// any other method.
func (c *Controller) Init() {
	if c.Base == 0 {
		panic("flash: invalid controller base address")
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	c.keyr = c.Base + regKEYR
	c.sr = c.Base + regSR
	c.cr = c.Base + regCR
}

// status reads the status register and maps it to a Status value.
func (c *Controller) status() Status {
	if mmio.Get(c.sr, srBSY, 1) != 0 {
		return Busy
	}

	if mmio.Get(c.sr, 0, 0x3FF)&errorFlagsMask != 0 {
		return Illegal
	}

	return OK
}

// Status reports the controller's current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status()
}

// waitIdle spins (bounded by c.Timeout) until the busy flag clears.
func (c *Controller) waitIdle() error {
	if !mmio.WaitFor(c.Timeout, c.sr, srBSY, 1, 0) {
		return ErrBusy
	}

	return nil
}

// WaitIdle is the exported form of waitIdle.
func (c *Controller) WaitIdle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.waitIdle()
}

// Unlock performs the two-key unlock sequence. Every successful
// Unlock must be paired with a Lock on every exit path, including
// error paths — the driver never implicit-locks.
func (c *Controller) Unlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	mmio.Write(c.keyr, key1)
	mmio.Write(c.keyr, key2)

	if mmio.Get(c.cr, crLOCK, 1) != 0 {
		return ErrUnlockFailed
	}

	return nil
}

// Lock re-asserts the controller lock bit. Callers are contractually
// required to call Lock on every exit path following a successful
// Unlock, including error paths (spec.md §4.3, §9).
func (c *Controller) Lock() {
	c.mu.Lock()
	defer c.mu.Unlock()

	mmio.Set(c.cr, crLOCK)
}

func (c *Controller) clearErrorFlags() {
	mmio.ClearN(c.sr, 0, 0x3FF)
}

// pageField returns (bankBit-set, pageNumberInBank) for the given
// absolute page number under the controller's configured mode.
func (c *Controller) pageField(page uint32) (bank uint32, pnb uint32, err error) {
	if int(page) >= geometry.PageCount(c.Mode) {
		return 0, 0, ErrInvalidPage
	}

	b, inBank := geometry.BankAndOffset(page, c.Mode)
	return b, inBank, nil
}

// ErasePage erases the page containing the given page number,
// following the sequence in spec.md §4.3: wait idle, clear error
// flags, configure CR (page-erase enable, bank selector, page number),
// set START, wait idle, clear page-erase enable.
func (c *Controller) ErasePage(page uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	bank, pnb, err := c.pageField(page)
	if err != nil {
		return err
	}

	if err := c.waitIdle(); err != nil {
		return err
	}

	c.clearErrorFlags()

	mmio.Set(c.cr, crPER)

	if c.Mode == geometry.DualBank {
		if bank != 0 {
			mmio.Set(c.cr, crBKER)
		} else {
			mmio.Clear(c.cr, crBKER)
		}
	} else {
		mmio.Clear(c.cr, crBKER)
	}

	mmio.SetN(c.cr, crPNB, (1<<crPNBLen)-1, pnb)
	mmio.Set(c.cr, crSTRT)

	waitErr := c.waitIdle()
	st := c.status()

	mmio.Clear(c.cr, crPER)

	if waitErr != nil {
		return waitErr
	}

	return statusToError(st)
}

// WriteDoublewords programs a stream of 64-bit words starting at
// target, following the sequence in spec.md §4.3. Each doubleword is
// written as two distinct 32-bit volatile stores (low half, then high
// half) — the controller only latches the word once both halves have
// landed, so the two stores must never be coalesced into one 64-bit
// write (spec.md §9).
func (c *Controller) WriteDoublewords(target uint32, words []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.waitIdle(); err != nil {
		return err
	}

	c.clearErrorFlags()
	mmio.Set(c.cr, crPG)

	var opErr error

	for i, w := range words {
		addr := target + uint32(i)*8

		mmio.Write(addr, uint32(w))
		mmio.Write(addr+4, uint32(w>>32))

		if err := c.waitIdle(); err != nil {
			opErr = err
			break
		}

		if mmio.Get(c.sr, srEOP, 1) == 0 {
			// Open Question 1 (spec.md §9): no action is taken by the
			// reference design if EOP never sets. This driver treats
			// it the same as any other programming-protocol
			// violation.
			opErr = ErrIllegal
			break
		}

		mmio.Set(c.sr, srEOP) // write-1-to-clear

		if st := c.status(); st != OK {
			opErr = statusToError(st)
			break
		}
	}

	mmio.Clear(c.cr, crPG)

	return opErr
}

func statusToError(st Status) error {
	switch st {
	case OK:
		return nil
	case Busy:
		return ErrBusy
	default:
		return ErrIllegal
	}
}
