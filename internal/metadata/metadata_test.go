package metadata

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAllOnesAndAllZerosInvalid(t *testing.T) {
	ones := make([]byte, Size)
	for i := range ones {
		ones[i] = 0xFF
	}

	m := Decode(ones)
	if IsValid(&m) {
		t.Error("all-0xFF buffer must be invalid")
	}

	zeros := make([]byte, Size)
	m = Decode(zeros)
	if IsValid(&m) {
		t.Error("all-0x00 buffer must be invalid")
	}
}

func TestSetCRCThenValid(t *testing.T) {
	m := Metadata{
		Version:        5,
		BootCounter:    1,
		PreferredImage: 2,
		Images: [3]ImageMetadata{
			{Version: 1, CRC: 0xAAAA, BootCounter: 0, Length: 100},
			{Version: 1, CRC: 0xBBBB, BootCounter: 0, Length: 200},
			{Version: 1, CRC: 0xCCCC, BootCounter: 0, Length: 300},
		},
	}

	SetCRC(&m)

	if !IsValid(&m) {
		t.Fatal("expected valid metadata after SetCRC")
	}

	buf := Encode(&m)
	for i := 0; i < Size-4; i++ {
		mutated := append([]byte(nil), buf...)
		mutated[i] ^= 0xFF

		mm := Decode(mutated)
		if IsValid(&mm) {
			t.Errorf("mutating byte %d outside CRC field should invalidate block", i)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	m := Metadata{
		Version:        7,
		BootCounter:    3,
		PreferredImage: 1,
		Images: [3]ImageMetadata{
			{Version: 1, CRC: 1, BootCounter: 0, Length: 10},
			{Version: 1, CRC: 2, BootCounter: 0, Length: 20},
			{Version: 1, CRC: 3, BootCounter: 0, Length: 30},
		},
	}
	SetCRC(&m)

	buf := Encode(&m)
	if len(buf) != Size {
		t.Fatalf("Encode length = %d, want %d", len(buf), Size)
	}

	got := Decode(buf)
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
