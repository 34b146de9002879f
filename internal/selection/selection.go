// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package selection implements the pure boot-selection decision logic
// of spec.md §4.5: which of two redundant metadata blocks to trust and
// whether to repair the other, and which image a trusted metadata
// block prefers. Both functions are total and side-effect free so they
// can be exhaustively tested or model-checked.
package selection

import "github.com/usbarmory/fwselect/internal/metadata"

// MetadataCopy identifies which battery of the two redundant metadata
// blocks a Result refers to.
type MetadataCopy int

const (
	CopyA MetadataCopy = iota
	CopyB
)

// Result is the outcome of SelectMetadata.
type Result struct {
	// Chosen is the metadata block selected to drive image selection.
	// Valid is false if neither input was valid.
	Chosen metadata.Metadata
	Valid  bool
	// Repair, when true, means ChosenCopy's content should be written
	// to RepairTarget's on-flash location.
	Repair       bool
	ChosenCopy   MetadataCopy
	RepairTarget MetadataCopy
}

// SelectMetadata implements the decision table in spec.md §4.5: given
// two metadata values and their independently-computed validity
// flags, decide which (if either) to trust, and whether the other
// copy needs repairing.
func SelectMetadata(a, b metadata.Metadata, aOK, bOK bool) Result {
	switch {
	case !aOK && !bOK:
		return Result{Valid: false}

	case aOK && !bOK:
		return Result{Chosen: a, Valid: true, Repair: true, ChosenCopy: CopyA, RepairTarget: CopyB}

	case !aOK && bOK:
		return Result{Chosen: b, Valid: true, Repair: true, ChosenCopy: CopyB, RepairTarget: CopyA}

	case a.Version > b.Version:
		return Result{Chosen: a, Valid: true, Repair: true, ChosenCopy: CopyA, RepairTarget: CopyB}

	case a.Version < b.Version:
		return Result{Chosen: b, Valid: true, Repair: true, ChosenCopy: CopyB, RepairTarget: CopyA}

	default:
		// both valid, versions equal: trust A, no repair.
		return Result{Chosen: a, Valid: true, Repair: false, ChosenCopy: CopyA}
	}
}

// ChecksumFunc computes the CRC-32C of the first n bytes of the slot's
// content; the caller supplies it so this package stays free of any
// flash/file I/O.
type ChecksumFunc func(slot int, n uint32) (uint32, bool)

// SelectImage implements spec.md §4.5's image-selection sub-function:
// prefer m.PreferredImage if it checksums correctly, otherwise scan
// slots 0, 1, 2 in order for the first that does. crcOf is expected to
// return (0, false) if the slot index is out of range or otherwise
// unreadable.
//
// SelectImage returns (0, false) if no slot validates; callers must
// treat that as the "no valid image among three" case (spec.md §9,
// Open Question 3) and invoke their failsafe path.
func SelectImage(m metadata.Metadata, crcOf ChecksumFunc) (slot int, ok bool) {
	preferred := int(m.PreferredImage)

	if preferred >= 0 && preferred < len(m.Images) {
		im := m.Images[preferred]
		if got, readable := crcOf(preferred, im.Length); readable && got == im.CRC {
			return preferred, true
		}
	}

	for i, im := range m.Images {
		got, readable := crcOf(i, im.Length)
		if readable && got == im.CRC {
			return i, true
		}
	}

	return 0, false
}
