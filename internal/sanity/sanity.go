// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sanity implements the host-side heuristic payload validation
// of spec.md §4.9: reject ELF files, require a plausible Thumb
// instruction mix, and require an entry point inside RAM.
package sanity

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/usbarmory/fwselect/internal/layout"
)

// ErrInvalidData reports a payload that failed one of the heuristics.
type ErrInvalidData struct {
	Reason string
}

func (e *ErrInvalidData) Error() string {
	return "sanity: " + e.Reason
}

var elfMagic = []byte{0x7F, 'E', 'L', 'F'}

// Thresholds for the disassembly heuristic (spec.md §4.9).
const (
	maxUndefinedRatio  = 0.01
	minDistinctMnemonics = 15
)

// Disassembler is the external tool invoked to classify instructions.
// It defaults to arm-none-eabi-objdump (spec.md §6's external tool
// dependency) and is overridable for testing.
var Disassembler = "arm-none-eabi-objdump"

// Check runs all three heuristics over payload and returns an
// *ErrInvalidData on the first failure.
func Check(payload []byte) error {
	if bytes.HasPrefix(payload, elfMagic) {
		return &ErrInvalidData{Reason: "payload begins with ELF magic"}
	}

	if err := checkEntryPoint(payload); err != nil {
		return err
	}

	return checkInstructionMix(payload)
}

func checkEntryPoint(payload []byte) error {
	if len(payload) < 8 {
		return &ErrInvalidData{Reason: "payload too short to contain an entry point"}
	}

	entry := binary.LittleEndian.Uint32(payload[4:8])

	if entry < layout.RAMAddr || entry >= layout.RAMAddr+layout.RAMSize {
		return &ErrInvalidData{Reason: fmt.Sprintf("entry point %#x outside RAM range [%#x, %#x)",
			entry, layout.RAMAddr, layout.RAMAddr+layout.RAMSize)}
	}

	return nil
}

func checkInstructionMix(payload []byte) error {
	if _, err := exec.LookPath(Disassembler); err != nil {
		return fmt.Errorf("sanity: %s not found on PATH: %w", Disassembler, err)
	}

	tmp, err := os.CreateTemp("", "fwselect-payload-*.bin")
	if err != nil {
		return fmt.Errorf("sanity: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(payload); err != nil {
		return fmt.Errorf("sanity: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sanity: closing temp file: %w", err)
	}

	out, err := exec.Command(Disassembler,
		"-D", "-b", "binary", "-m", "arm", "-M", "force-thumb",
		"--endian=little", tmp.Name()).Output()
	if err != nil {
		return fmt.Errorf("sanity: running %s: %w", Disassembler, err)
	}

	return analyzeDisassembly(out)
}

// insnLineRE matches an objdump disassembly line: an address, a colon,
// one or more hex byte pairs, then the mnemonic (or "<UNDEFINED>") and
// any operands.
var insnLineRE = regexp.MustCompile(`^\s*[0-9a-f]+:\s*(?:[0-9a-f]{2}\s*)+\t(.*)$`)

func analyzeDisassembly(out []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(out))

	mnemonics := map[string]struct{}{}
	total := 0
	undefined := 0

	for scanner.Scan() {
		line := scanner.Text()

		m := insnLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		total++

		rest := strings.TrimSpace(m[1])
		if rest == "" {
			continue
		}

		if strings.Contains(rest, "UNDEFINED") {
			undefined++
			continue
		}

		mnemonic := strings.ToLower(strings.Fields(rest)[0])
		mnemonics[mnemonic] = struct{}{}
	}

	if total == 0 {
		return &ErrInvalidData{Reason: "disassembly produced no instructions"}
	}

	if ratio := float64(undefined) / float64(total); ratio > maxUndefinedRatio {
		return &ErrInvalidData{Reason: fmt.Sprintf("undefined instruction ratio %.4f exceeds %.4f", ratio, maxUndefinedRatio)}
	}

	if len(mnemonics) < minDistinctMnemonics {
		return &ErrInvalidData{Reason: fmt.Sprintf("only %d distinct mnemonics, want at least %d", len(mnemonics), minDistinctMnemonics)}
	}

	return nil
}
