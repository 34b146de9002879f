package sanity

import (
	"strings"
	"testing"

	"github.com/usbarmory/fwselect/internal/layout"
)

func TestCheckRejectsELFMagic(t *testing.T) {
	payload := append([]byte{0x7F, 'E', 'L', 'F'}, make([]byte, 100)...)

	err := Check(payload)
	if err == nil {
		t.Fatal("expected rejection of ELF-magic payload")
	}
}

func TestCheckRejectsAllZeros(t *testing.T) {
	payload := make([]byte, 256)

	err := Check(payload)
	if err == nil {
		t.Fatal("expected rejection of all-zero payload (entry point 0 not in RAM)")
	}
}

func TestCheckRejectsBadEntryPoint(t *testing.T) {
	payload := make([]byte, 256)
	// entry point far outside RAM
	payload[4] = 0x00
	payload[5] = 0x00
	payload[6] = 0x00
	payload[7] = 0x10 // 0x10000000

	err := Check(payload)
	if err == nil {
		t.Fatal("expected rejection of out-of-RAM entry point")
	}
}

func TestCheckEntryPointWithinRAMPasses(t *testing.T) {
	payload := make([]byte, 256)
	entry := layout.RAMAddr + 0x100
	payload[4] = byte(entry)
	payload[5] = byte(entry >> 8)
	payload[6] = byte(entry >> 16)
	payload[7] = byte(entry >> 24)

	if err := checkEntryPoint(payload); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
}

func TestAnalyzeDisassemblyRatioAndMnemonicCount(t *testing.T) {
	var lines []string
	mnemonics := []string{"movs", "ldr", "str", "bx", "push", "pop", "add", "sub",
		"cmp", "beq", "bne", "b", "nop", "mov", "orr"}

	for i, m := range mnemonics {
		lines = append(lines, formatInsn(i, m))
	}

	out := strings.Join(lines, "\n")

	if err := analyzeDisassembly([]byte(out)); err != nil {
		t.Fatalf("expected pass with %d distinct mnemonics: %v", len(mnemonics), err)
	}
}

func TestAnalyzeDisassemblyTooFewMnemonics(t *testing.T) {
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, formatInsn(i, "movs"))
	}

	out := strings.Join(lines, "\n")

	if err := analyzeDisassembly([]byte(out)); err == nil {
		t.Fatal("expected rejection for too few distinct mnemonics")
	}
}

func TestAnalyzeDisassemblyTooManyUndefined(t *testing.T) {
	var lines []string
	for i := 0; i < 100; i++ {
		lines = append(lines, "   "+hex(i)+":\t00 00      \t<UNDEFINED>")
	}

	out := strings.Join(lines, "\n")

	if err := analyzeDisassembly([]byte(out)); err == nil {
		t.Fatal("expected rejection for too many undefined instructions")
	}
}

func formatInsn(i int, mnemonic string) string {
	return "   " + hex(i) + ":\t00 00      \t" + mnemonic + "   r0, r1"
}

func hex(i int) string {
	const digits = "0123456789abcdef"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%16]}, b...)
		i /= 16
	}
	return string(b)
}
