// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hostimage implements the host-side image builder (spec.md
// §4.8) and reader/verifier (spec.md §4.10): assembling a 2 MiB flash
// image from a bootloader and three firmware payloads, and reading one
// back to check it against the on-flash wire format.
package hostimage

import (
	"fmt"

	"github.com/natefinch/atomic"

	"github.com/usbarmory/fwselect/internal/checksum"
	"github.com/usbarmory/fwselect/internal/layout"
	"github.com/usbarmory/fwselect/internal/metadata"
	"github.com/usbarmory/fwselect/internal/sanity"
)

// ErrOutOfBounds reports a payload that does not fit its target region.
type ErrOutOfBounds struct {
	What string
	Size int
	Max  int
}

func (e *ErrOutOfBounds) Error() string {
	return fmt.Sprintf("hostimage: %s is %d bytes, exceeds maximum of %d", e.What, e.Size, e.Max)
}

// Inputs holds the four payloads the builder assembles (spec.md §4.8).
// Image2 and Image3 default to a copy of Image1 when left nil, per
// spec.md §6's CLI contract.
type Inputs struct {
	Bootloader []byte
	Image1     []byte
	Image2     []byte
	Image3     []byte

	// PreferredImage is written into the assembled metadata's
	// preferred_image field (spec.md §4.8 hardcodes 0; this field
	// generalizes it for the manifest-driven path added in
	// SPEC_FULL.md).
	PreferredImage uint32
}

// normalize fills in defaulted fields and returns the three image
// payloads in slot order.
func (in Inputs) normalize() [3][]byte {
	img2, img3 := in.Image2, in.Image3
	if img2 == nil {
		img2 = in.Image1
	}
	if img3 == nil {
		img3 = in.Image1
	}

	return [3][]byte{in.Image1, img2, img3}
}

// Build assembles the 2 MiB flash image described in spec.md §4.8. It
// validates the bootloader and every image payload (size bounds, and
// sanity.Check for each image) before laying anything out.
func Build(in Inputs) ([]byte, error) {
	if len(in.Bootloader) > layout.Metadata1Addr {
		return nil, &ErrOutOfBounds{What: "bootloader", Size: len(in.Bootloader), Max: layout.Metadata1Addr}
	}

	images := in.normalize()

	for i, img := range images {
		if len(img) > layout.SlotSize {
			return nil, &ErrOutOfBounds{What: fmt.Sprintf("image %d", i), Size: len(img), Max: layout.SlotSize}
		}

		if err := sanity.Check(img); err != nil {
			return nil, fmt.Errorf("hostimage: image %d: %w", i, err)
		}
	}

	out := make([]byte, layout.FlashSize)

	copy(out[layout.BootloaderAddr:], in.Bootloader)

	m := metadata.Metadata{
		Version:        1,
		BootCounter:    0,
		PreferredImage: in.PreferredImage,
	}

	for i, img := range images {
		addr := layout.SlotAddr(i)
		copy(out[addr:], img)

		m.Images[i] = metadata.ImageMetadata{
			Version:     1,
			CRC:         checksum.Sum(img),
			BootCounter: 0,
			Length:      uint32(len(img)),
		}
	}

	metadata.SetCRC(&m)
	encoded := metadata.Encode(&m)

	copy(out[layout.Metadata1Addr:], encoded)
	copy(out[layout.Metadata2Addr:], encoded)

	return out, nil
}

// Write assembles the image per Build, writes it atomically to path,
// then immediately reads it back and byte-compares it against the
// in-memory buffer, aborting on any mismatch (spec.md §4.8: "an
// immediate re-read and byte-compare is performed and a mismatch
// aborts").
func Write(path string, in Inputs) error {
	out, err := Build(in)
	if err != nil {
		return err
	}

	if err := atomic.WriteFile(path, bytesReader(out)); err != nil {
		return fmt.Errorf("hostimage: writing %s: %w", path, err)
	}

	written, err := readFile(path)
	if err != nil {
		return fmt.Errorf("hostimage: reading back %s: %w", path, err)
	}

	if len(written) != len(out) {
		return fmt.Errorf("hostimage: re-read size %d != expected %d", len(written), len(out))
	}

	for i := range out {
		if written[i] != out[i] {
			return fmt.Errorf("hostimage: re-read mismatch at offset %#x", i)
		}
	}

	return nil
}
