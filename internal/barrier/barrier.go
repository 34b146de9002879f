// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

// Package barrier provides the explicit data-memory and instruction
// barriers spec.md §5 requires at the three ordering-sensitive points:
// before a flash read used as a boot-relevant source, around image
// copies, and before the hand-off branch.
package barrier

// DataMemoryBarrier ensures all memory accesses issued before the call
// complete before any issued after it. Defined in barrier_arm.s.
func DataMemoryBarrier()

// InstructionSyncBarrier flushes the pipeline so that instruction
// fetches after the call see any preceding writes to code/vector-table
// memory. Defined in barrier_arm.s.
func InstructionSyncBarrier()
