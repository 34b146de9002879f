// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// Package boot implements the boot orchestrator (spec.md §4.6): it
// reads the soft-reboot hint, runs the selection logic over two
// redundant metadata copies, repairs a stale copy when needed, copies
// the chosen image into RAM, and hands off execution.
package boot

import (
	"errors"

	"github.com/usbarmory/fwselect/internal/barrier"
	"github.com/usbarmory/fwselect/internal/checksum"
	"github.com/usbarmory/fwselect/internal/flash"
	"github.com/usbarmory/fwselect/internal/geometry"
	"github.com/usbarmory/fwselect/internal/handoff"
	"github.com/usbarmory/fwselect/internal/layout"
	"github.com/usbarmory/fwselect/internal/metadata"
	"github.com/usbarmory/fwselect/internal/mmio"
	"github.com/usbarmory/fwselect/internal/scratch"
	"github.com/usbarmory/fwselect/internal/selection"
	"github.com/usbarmory/fwselect/internal/watchdog"
)

// FailsafeReason tells a failsafe hook why it was invoked: no valid
// metadata, no valid image (spec.md §9, Open Questions 2 and 3), or
// too many consecutive resets (Open Question 4).
type FailsafeReason int

const (
	NoValidMetadata FailsafeReason = iota
	NoValidImage
	TooManyResets
)

var ErrCopyMismatch = errors.New("boot: image copy CRC mismatch after retries")

// copyAttempts is the retry budget for copy-to-RAM verification
// (spec.md §4.6, §9).
const copyAttempts = 3

// Orchestrator wires the device-side subsystems together and drives
// the control flow in spec.md §2/§4.6.
type Orchestrator struct {
	Flash    *flash.Controller
	Watchdog *watchdog.Watchdog
	Scratch  scratch.Registers

	// RAM is the scratch buffer images are copied into before
	// hand-off. Its length must be at least layout.SlotSize.
	RAM []byte

	// Failsafe is invoked when no bootable path remains. It does not
	// return in a correctly configured failsafe (spec.md §9, Open
	// Question 2/3); the default implementation, DefaultFailsafe,
	// stops feeding the watchdog and spins forever.
	Failsafe func(reason FailsafeReason)
}

// Run executes the full boot sequence described in spec.md §2. It
// does not return on any successful path (hand-off is non-returning);
// it only returns if Failsafe itself returns, which a correctly
// configured board should not allow.
func (o *Orchestrator) Run() {
	if err := o.Watchdog.Init(); err != nil {
		// The watchdog itself failed to start; there is nothing safer
		// than halting without it armed.
		o.failsafe(NoValidMetadata)
		return
	}

	o.Flash.Init()

	if n := scratch.IncrementResetCounter(o.Scratch); n > scratch.MaxConsecutiveResets {
		o.failsafe(TooManyResets)
		return
	}

	if index, ok := o.softReboot(); ok {
		o.bootSlot(int(index))
		return
	}

	o.bootFromMetadata()
}

func (o *Orchestrator) softReboot() (index uint32, ok bool) {
	idx, hinted := scratch.ReadSoftReboot(o.Scratch)
	if !hinted {
		return 0, false
	}

	if int(idx) >= layout.NumImages {
		return 0, false
	}

	return idx, true
}

func (o *Orchestrator) bootSlot(slot int) {
	if err := o.copyToRAM(slot, o.readSlotLength(slot)); err != nil {
		o.failsafe(NoValidImage)
		return
	}

	o.handOff()
}

func (o *Orchestrator) bootFromMetadata() {
	a := o.readMetadata(0)
	b := o.readMetadata(1)

	aOK := metadata.IsValid(&a)
	bOK := metadata.IsValid(&b)

	result := selection.SelectMetadata(a, b, aOK, bOK)

	if !result.Valid {
		o.failsafe(NoValidMetadata)
		return
	}

	if result.Repair {
		// Best-effort: a repair failure does not abort boot, per
		// spec.md §7 ("the orchestrator treats metadata-repair
		// failure as best-effort").
		_ = o.repairMetadata(result.Chosen, result.RepairTarget)
	}

	slot, ok := selection.SelectImage(result.Chosen, o.slotCRC)
	if !ok {
		o.failsafe(NoValidImage)
		return
	}

	length := result.Chosen.Images[slot].Length

	if err := o.copyToRAM(slot, length); err != nil {
		o.failsafe(NoValidImage)
		return
	}

	o.handOff()
}

func (o *Orchestrator) handOff() {
	scratch.ClearResetCounter(o.Scratch)

	barrier.DataMemoryBarrier()
	handoff.Boot(o.RAM)
}

// readMetadata reads metadata copy idx (0 or 1) from flash.
func (o *Orchestrator) readMetadata(idx int) metadata.Metadata {
	barrier.DataMemoryBarrier()

	addr := layout.MetadataAddr(idx)
	buf := readFlash(addr, metadata.Size)

	return metadata.Decode(buf)
}

func (o *Orchestrator) readSlotLength(slot int) uint32 {
	return layout.SlotSize
}

// slotCRC implements selection.ChecksumFunc over on-flash slot content.
func (o *Orchestrator) slotCRC(slot int, n uint32) (uint32, bool) {
	if slot < 0 || slot >= layout.NumImages || n > layout.SlotSize {
		return 0, false
	}

	barrier.DataMemoryBarrier()

	addr := layout.SlotAddr(slot)
	buf := readFlash(addr, int(n))

	return crc32cOf(buf), true
}

// repairMetadata writes the chosen metadata to the stale copy's
// on-flash location: erase the page, then program it.
func (o *Orchestrator) repairMetadata(m metadata.Metadata, target selection.MetadataCopy) error {
	addr := layout.MetadataAddr(int(target))
	page := addr / pageSizeOf(o.Flash)

	if err := o.Flash.Unlock(); err != nil {
		return err
	}
	defer o.Flash.Lock()

	if err := o.Flash.ErasePage(page); err != nil {
		return err
	}

	buf := metadata.Encode(&m)
	words := bytesToDoublewords(buf)

	return o.Flash.WriteDoublewords(addr, words)
}

// copyToRAM implements spec.md §4.6's copy-then-verify retry: up to
// copyAttempts attempts, each CRCing the source, copying in
// page-sized chunks while feeding the watchdog, then CRCing the
// destination and comparing.
func (o *Orchestrator) copyToRAM(slot int, length uint32) error {
	if length > uint32(len(o.RAM)) {
		return ErrCopyMismatch
	}

	addr := layout.SlotAddr(slot)

	for attempt := 0; attempt < copyAttempts; attempt++ {
		barrier.DataMemoryBarrier()

		src := readFlash(addr, int(length))
		srcCRC := crc32cOf(src)

		chunk := pageSizeOf(o.Flash)
		for off := uint32(0); off < length; off += chunk {
			end := off + chunk
			if end > length {
				end = length
			}

			copy(o.RAM[off:end], src[off:end])
			o.Watchdog.Feed()
		}

		barrier.DataMemoryBarrier()

		dstCRC := crc32cOf(o.RAM[:length])
		if dstCRC == srcCRC {
			return nil
		}
	}

	return ErrCopyMismatch
}

func (o *Orchestrator) failsafe(reason FailsafeReason) {
	if o.Failsafe != nil {
		o.Failsafe(reason)
		return
	}

	DefaultFailsafe(reason)
}

// DefaultFailsafe stops feeding the watchdog and spins forever. It
// never returns. It does not disable the watchdog: one already started
// by Watchdog.Init keeps running and, no longer fed, resets the device
// when its timeout expires.
func DefaultFailsafe(reason FailsafeReason) {
	for {
	}
}

func pageSizeOf(c *flash.Controller) uint32 {
	return geometry.PageSize(c.Mode)
}

func crc32cOf(b []byte) uint32 {
	return checksum.Sum(b)
}

// readFlash reads n bytes from the memory-mapped flash address addr.
// Flash is read-mapped like ordinary memory on this class of MCU; only
// writes go through the flash.Controller sequence.
func readFlash(addr uint32, n int) []byte {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(mmio.Get(addr+uint32(i&^3), (i&3)*8, 0xFF))
	}
	return buf
}

func bytesToDoublewords(buf []byte) []uint64 {
	words := make([]uint64, (len(buf)+7)/8)
	for i := range words {
		off := i * 8
		var w uint64
		for b := 0; b < 8 && off+b < len(buf); b++ {
			w |= uint64(buf[off+b]) << (8 * b)
		}
		words[i] = w
	}
	return words
}
