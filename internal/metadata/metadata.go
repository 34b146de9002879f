// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package metadata implements the fixed, little-endian, padding-free
// on-flash wire format described in spec.md §3/§6: a 16-byte
// ImageMetadata record per slot, and a 64-byte Metadata block holding
// three of them plus a version, preferred-image index, and CRC.
//
// The layout is encoded and decoded explicitly with encoding/binary
// rather than relying on in-memory struct layout, so that host and
// device agree byte-for-byte regardless of compiler or architecture
// (spec.md §9).
package metadata

import (
	"encoding/binary"

	"github.com/usbarmory/fwselect/internal/checksum"
)

// Sizes of the wire formats, in bytes.
const (
	ImageMetadataSize = 16
	Size              = 4 + 4 + 4 + 3*ImageMetadataSize + 4 // 64
)

func init() {
	if Size != 64 {
		panic("metadata: Size must be 64 bytes")
	}
	if ImageMetadataSize != 16 {
		panic("metadata: ImageMetadataSize must be 16 bytes")
	}
}

// ImageMetadata describes one image slot (spec.md §3).
type ImageMetadata struct {
	Version     uint32
	CRC         uint32
	BootCounter uint32
	Length      uint32
}

// Metadata describes all three slots plus the block's own integrity
// field (spec.md §3).
type Metadata struct {
	Version        uint32
	BootCounter    uint32
	PreferredImage uint32
	Images         [3]ImageMetadata
	CRC            uint32
}

// Reserved version sentinels: erased flash reads as all-0xFF, a
// zeroed/never-written block reads as all-0x00. Both must be invalid.
const (
	versionErased = 0xFFFFFFFF
	versionZero   = 0
)

// Encode serializes m into a Size-byte little-endian buffer, including
// its own CRC field (set from m.CRC as-is; call SetCRC first if m was
// mutated).
func Encode(m *Metadata) []byte {
	buf := make([]byte, Size)
	encodeInto(buf, m)
	return buf
}

func encodeInto(buf []byte, m *Metadata) {
	binary.LittleEndian.PutUint32(buf[0:4], m.Version)
	binary.LittleEndian.PutUint32(buf[4:8], m.BootCounter)
	binary.LittleEndian.PutUint32(buf[8:12], m.PreferredImage)

	off := 12
	for i := range m.Images {
		encodeImageInto(buf[off:off+ImageMetadataSize], &m.Images[i])
		off += ImageMetadataSize
	}

	binary.LittleEndian.PutUint32(buf[60:64], m.CRC)
}

func encodeImageInto(buf []byte, im *ImageMetadata) {
	binary.LittleEndian.PutUint32(buf[0:4], im.Version)
	binary.LittleEndian.PutUint32(buf[4:8], im.CRC)
	binary.LittleEndian.PutUint32(buf[8:12], im.BootCounter)
	binary.LittleEndian.PutUint32(buf[12:16], im.Length)
}

// Decode parses a Size-byte little-endian buffer into a Metadata. It
// panics if buf is shorter than Size; callers reading from flash must
// always pass exactly Size bytes.
func Decode(buf []byte) Metadata {
	if len(buf) < Size {
		panic("metadata: buffer too short")
	}

	var m Metadata
	m.Version = binary.LittleEndian.Uint32(buf[0:4])
	m.BootCounter = binary.LittleEndian.Uint32(buf[4:8])
	m.PreferredImage = binary.LittleEndian.Uint32(buf[8:12])

	off := 12
	for i := range m.Images {
		m.Images[i] = decodeImage(buf[off : off+ImageMetadataSize])
		off += ImageMetadataSize
	}

	m.CRC = binary.LittleEndian.Uint32(buf[60:64])

	return m
}

func decodeImage(buf []byte) ImageMetadata {
	return ImageMetadata{
		Version:     binary.LittleEndian.Uint32(buf[0:4]),
		CRC:         binary.LittleEndian.Uint32(buf[4:8]),
		BootCounter: binary.LittleEndian.Uint32(buf[8:12]),
		Length:      binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// crcOf returns the CRC-32C over the first 60 bytes of the encoded
// form of m (everything except the trailing CRC field itself).
func crcOf(m *Metadata) uint32 {
	buf := Encode(m)
	return checksum.Sum(buf[:Size-4])
}

// SetCRC recomputes and stores m.CRC over the struct's first 60 bytes.
func SetCRC(m *Metadata) {
	m.CRC = crcOf(m)
}

// IsValid reports whether m's stored CRC matches the checksum of its
// first 60 bytes, and whether its version is neither the all-zero nor
// all-ones reserved sentinel (spec.md §3's validity invariant). A
// buffer of all-0xFF or all-0x00 decodes to a version matching one of
// these sentinels and a CRC that cannot match (CRC-32C of an all-same
// buffer under this table is never zero for version 0 and never
// 0xFFFFFFFF for version all-ones), so both fail by construction; the
// explicit version check documents the invariant rather than relying
// on it being incidental.
func IsValid(m *Metadata) bool {
	if m.Version == versionZero || m.Version == versionErased {
		return false
	}

	return m.CRC == crcOf(m)
}
