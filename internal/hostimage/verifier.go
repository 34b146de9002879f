// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package hostimage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/usbarmory/fwselect/internal/checksum"
	"github.com/usbarmory/fwselect/internal/layout"
	"github.com/usbarmory/fwselect/internal/metadata"
	"github.com/usbarmory/fwselect/internal/sanity"
)

// MetadataDiff locates the first byte at which the two on-flash
// metadata copies disagree, for a caller that wants to hex-dump the
// surrounding window (the CLI does, via zappem.net/pub/debug/xxd).
type MetadataDiff struct {
	Offset int
	A, B   []byte // 16-byte-aligned windows around Offset
}

// Report is the outcome of Verify: each discrepancy found, in the
// order Verify checks them (metadata CRC, the cross-copy comparison,
// then per image and per metadata copy the CRC and sanity heuristics).
type Report struct {
	Problems []string

	// Diff is set when the two metadata copies differ byte-for-byte,
	// so the caller can render a hex dump of the mismatch.
	Diff *MetadataDiff
}

// OK reports whether the image passed every check.
func (r Report) OK() bool {
	return len(r.Problems) == 0
}

func (r Report) String() string {
	if r.OK() {
		return "OK: no discrepancies found"
	}

	var b strings.Builder
	for _, p := range r.Problems {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}

	return b.String()
}

// Verify loads a 2 MiB image from buf and re-runs every check spec.md
// §4.10 names: both metadata CRCs, every per-image CRC and sanity
// heuristic against each metadata copy's own declared record (per
// `image-builder/src/read.rs` in the original this spec was derived
// from, a corrupt copy does not get a free pass just because the other
// copy's record for the same image is fine), and a byte-for-byte
// comparison of the two metadata copies.
func Verify(buf []byte) (Report, error) {
	if len(buf) != layout.FlashSize {
		return Report{}, fmt.Errorf("hostimage: image is %d bytes, want %d", len(buf), layout.FlashSize)
	}

	var r Report

	rawA := buf[layout.Metadata1Addr : layout.Metadata1Addr+metadata.Size]
	rawB := buf[layout.Metadata2Addr : layout.Metadata2Addr+metadata.Size]

	a := metadata.Decode(rawA)
	b := metadata.Decode(rawB)

	if !metadata.IsValid(&a) {
		r.Problems = append(r.Problems, "metadata copy A fails CRC/version validity check")
	}
	if !metadata.IsValid(&b) {
		r.Problems = append(r.Problems, "metadata copy B fails CRC/version validity check")
	}

	if !bytes.Equal(rawA, rawB) {
		r.Problems = append(r.Problems, "metadata copy A and B differ:\n"+cmp.Diff(a, b))
		r.Diff = firstDiff(rawA, rawB)
	}

	copies := []struct {
		label string
		m     metadata.Metadata
	}{
		{"A", a},
		{"B", b},
	}

	for i := 0; i < layout.NumImages; i++ {
		addr := layout.SlotAddr(i)

		for _, c := range copies {
			length := c.m.Images[i].Length

			if int(length) > layout.SlotSize {
				r.Problems = append(r.Problems, fmt.Sprintf("metadata %s: image %d: declared length %d exceeds slot size %d", c.label, i, length, layout.SlotSize))
				continue
			}

			payload := buf[addr : addr+length]
			got := checksum.Sum(payload)

			if got != c.m.Images[i].CRC {
				r.Problems = append(r.Problems, fmt.Sprintf("metadata %s: image %d: CRC mismatch (stored %#x, computed %#x)", c.label, i, c.m.Images[i].CRC, got))
				continue
			}

			if err := sanity.Check(payload); err != nil {
				r.Problems = append(r.Problems, fmt.Sprintf("metadata %s: image %d: %v", c.label, i, err))
			}
		}
	}

	return r, nil
}

// firstDiff locates the first differing byte between a and b and
// returns a 16-byte-aligned, 32-byte window around it from each, or
// nil if they are identical.
func firstDiff(a, b []byte) *MetadataDiff {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	at := -1
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			at = i
			break
		}
	}

	if at < 0 {
		return nil
	}

	start := (at / 16) * 16
	end := start + 32
	if end > n {
		end = n
	}

	return &MetadataDiff{Offset: start, A: a[start:end], B: b[start:end]}
}
