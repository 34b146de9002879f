package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/usbarmory/fwselect/internal/layout"
	"github.com/usbarmory/fwselect/internal/sanity"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "fwselect-cli-objdump-stub")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	stub := filepath.Join(dir, "arm-none-eabi-objdump")
	script := "#!/bin/sh\n" +
		"printf '   0:\\t00 00\\tmovs r0, r1\\n   1:\\t00 00\\tldr r0, [r1]\\n   2:\\t00 00\\tstr r0, [r1]\\n" +
		"   3:\\t00 00\\tbx lr\\n   4:\\t00 00\\tpush {r0}\\n   5:\\t00 00\\tpop {r0}\\n   6:\\t00 00\\tadd r0, r1\\n" +
		"   7:\\t00 00\\tsub r0, r1\\n   8:\\t00 00\\tcmp r0, r1\\n   9:\\t00 00\\tbeq 0x0\\n   a:\\t00 00\\tbne 0x0\\n" +
		"   b:\\t00 00\\tb 0x0\\n   c:\\t00 00\\tnop\\n   d:\\t00 00\\tmov r0, r1\\n   e:\\t00 00\\torr r0, r1\\n'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		panic(err)
	}

	sanity.Disassembler = stub

	os.Exit(m.Run())
}

func validPayload(size int) []byte {
	buf := make([]byte, size)
	entry := uint32(layout.RAMAddr + 0x100)
	buf[4] = byte(entry)
	buf[5] = byte(entry >> 8)
	buf[6] = byte(entry >> 16)
	buf[7] = byte(entry >> 24)
	return buf
}

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestRunWriteThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()

	bootPath := writeTempFile(t, dir, "boot.bin", validPayload(256))
	img1Path := writeTempFile(t, dir, "img1.bin", validPayload(1000))
	outPath := filepath.Join(dir, "out.bin")

	var stdout, stderr bytes.Buffer

	exit := Run(&stdout, &stderr, []string{"fwselect", "write",
		"--bootloader-path", bootPath,
		"--image-1-path", img1Path,
		"--output-path", outPath,
	})
	if exit != 0 {
		t.Fatalf("write exited %d, stderr: %s", exit, stderr.String())
	}

	stdout.Reset()
	stderr.Reset()

	exit = Run(&stdout, &stderr, []string{"fwselect", "read", "--image-file", outPath})
	if exit != 0 {
		t.Fatalf("read exited %d, stdout: %s, stderr: %s", exit, stdout.String(), stderr.String())
	}

	if !strings.Contains(stdout.String(), "OK") {
		t.Fatalf("expected an OK report, got: %s", stdout.String())
	}
}

func TestRunWriteMissingRequiredFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exit := Run(&stdout, &stderr, []string{"fwselect", "write", "--image-1-path", "/dev/null"})
	if exit == 0 {
		t.Fatal("expected nonzero exit for missing --bootloader-path")
	}

	if !strings.Contains(stderr.String(), "bootloader-path") {
		t.Fatalf("expected error to mention bootloader-path, got: %s", stderr.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer

	exit := Run(&stdout, &stderr, []string{"fwselect", "bogus"})
	if exit == 0 {
		t.Fatal("expected nonzero exit for unknown command")
	}
}

func TestRunReadDetectsTamperedImage(t *testing.T) {
	dir := t.TempDir()

	bootPath := writeTempFile(t, dir, "boot.bin", validPayload(256))
	img1Path := writeTempFile(t, dir, "img1.bin", validPayload(1000))
	outPath := filepath.Join(dir, "out.bin")

	var stdout, stderr bytes.Buffer

	exit := Run(&stdout, &stderr, []string{"fwselect", "write",
		"--bootloader-path", bootPath,
		"--image-1-path", img1Path,
		"--output-path", outPath,
	})
	if exit != 0 {
		t.Fatalf("write exited %d, stderr: %s", exit, stderr.String())
	}

	buf, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}

	addr := layout.SlotAddr(0)
	buf[addr] ^= 0xFF

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	stdout.Reset()
	stderr.Reset()

	exit = Run(&stdout, &stderr, []string{"fwselect", "read", "--image-file", outPath})
	if exit == 0 {
		t.Fatal("expected nonzero exit for tampered image")
	}

	if !strings.Contains(stdout.String(), "CRC mismatch") {
		t.Fatalf("expected a CRC mismatch report, got: %s", stdout.String())
	}
}
