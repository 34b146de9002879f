// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package checksum computes the CRC-32C (Castagnoli) checksum used to
// validate metadata blocks and image payloads, identically on host and
// device.
package checksum

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Sum returns the CRC-32C of b, with initial value and final XOR of
// 0xFFFFFFFF (the IEEE 802.3-style framing that hash/crc32 applies by
// default). An empty or nil slice yields 0.
func Sum(b []byte) uint32 {
	if len(b) == 0 {
		return 0
	}

	return crc32.Checksum(b, table)
}
