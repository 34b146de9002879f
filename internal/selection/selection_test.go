package selection

import (
	"testing"

	"github.com/usbarmory/fwselect/internal/metadata"
)

func meta(version uint32) metadata.Metadata {
	return metadata.Metadata{Version: version}
}

func TestSelectMetadataDecisionTable(t *testing.T) {
	a5, b5 := meta(5), meta(5)
	a7, b6 := meta(7), meta(6)
	a3, b9 := meta(3), meta(9)

	cases := []struct {
		name           string
		a, b           metadata.Metadata
		aOK, bOK       bool
		wantValid      bool
		wantRepair     bool
		wantChosenCopy MetadataCopy
		wantRepairTo   MetadataCopy
	}{
		{"neither valid", meta(1), meta(2), false, false, false, false, 0, 0},
		{"only a valid", meta(1), meta(2), true, false, true, true, CopyA, CopyB},
		{"only b valid", meta(1), meta(2), false, true, true, true, CopyB, CopyA},
		{"both valid a newer", a7, b6, true, true, true, true, CopyA, CopyB},
		{"both valid b newer", a3, b9, true, true, true, true, CopyB, CopyA},
		{"both valid equal version", a5, b5, true, true, true, false, CopyA, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := SelectMetadata(c.a, c.b, c.aOK, c.bOK)

			if got.Valid != c.wantValid {
				t.Fatalf("Valid = %v, want %v", got.Valid, c.wantValid)
			}
			if !c.wantValid {
				return
			}
			if got.Repair != c.wantRepair {
				t.Errorf("Repair = %v, want %v", got.Repair, c.wantRepair)
			}
			if got.ChosenCopy != c.wantChosenCopy {
				t.Errorf("ChosenCopy = %v, want %v", got.ChosenCopy, c.wantChosenCopy)
			}
			if c.wantRepair && got.RepairTarget != c.wantRepairTo {
				t.Errorf("RepairTarget = %v, want %v", got.RepairTarget, c.wantRepairTo)
			}
		})
	}
}

// TestSelectMetadataExhaustive walks every (aOK, bOK, ordering) shape
// the decision table in spec.md §4.5 enumerates.
func TestSelectMetadataExhaustive(t *testing.T) {
	versions := []uint32{1, 2, 3}

	for _, av := range versions {
		for _, bv := range versions {
			for _, aOK := range []bool{false, true} {
				for _, bOK := range []bool{false, true} {
					got := SelectMetadata(meta(av), meta(bv), aOK, bOK)

					switch {
					case !aOK && !bOK:
						if got.Valid {
							t.Errorf("aOK=%v bOK=%v: expected invalid", aOK, bOK)
						}
					case aOK && !bOK:
						if !got.Valid || got.ChosenCopy != CopyA || !got.Repair || got.RepairTarget != CopyB {
							t.Errorf("aOK=%v bOK=%v av=%d bv=%d: got %+v", aOK, bOK, av, bv, got)
						}
					case !aOK && bOK:
						if !got.Valid || got.ChosenCopy != CopyB || !got.Repair || got.RepairTarget != CopyA {
							t.Errorf("aOK=%v bOK=%v av=%d bv=%d: got %+v", aOK, bOK, av, bv, got)
						}
					default: // both ok
						switch {
						case av > bv:
							if got.ChosenCopy != CopyA || !got.Repair {
								t.Errorf("av=%d bv=%d: got %+v", av, bv, got)
							}
						case av < bv:
							if got.ChosenCopy != CopyB || !got.Repair {
								t.Errorf("av=%d bv=%d: got %+v", av, bv, got)
							}
						default:
							if got.ChosenCopy != CopyA || got.Repair {
								t.Errorf("av=%d bv=%d equal: got %+v", av, bv, got)
							}
						}
					}
				}
			}
		}
	}
}

func TestSelectImagePreferred(t *testing.T) {
	m := metadata.Metadata{
		PreferredImage: 2,
		Images: [3]metadata.ImageMetadata{
			{CRC: 0x1111, Length: 10},
			{CRC: 0x2222, Length: 20},
			{CRC: 0x3333, Length: 30},
		},
	}

	crcOf := func(slot int, n uint32) (uint32, bool) {
		return m.Images[slot].CRC, true
	}

	slot, ok := SelectImage(m, crcOf)
	if !ok || slot != 2 {
		t.Fatalf("SelectImage = (%d, %v), want (2, true)", slot, ok)
	}
}

func TestSelectImagePreferredBitRotFallsBackToScan(t *testing.T) {
	// S5: preferred=0 but slot 0 mismatches; slot 1 matches.
	m := metadata.Metadata{
		PreferredImage: 0,
		Images: [3]metadata.ImageMetadata{
			{CRC: 0xDEAD, Length: 10},
			{CRC: 0xBEEF, Length: 20},
			{CRC: 0, Length: 0},
		},
	}

	crcOf := func(slot int, n uint32) (uint32, bool) {
		switch slot {
		case 0:
			return 0xFFFF, true // mismatch
		case 1:
			return 0xBEEF, true // match
		default:
			return 0, true
		}
	}

	slot, ok := SelectImage(m, crcOf)
	if !ok || slot != 1 {
		t.Fatalf("SelectImage = (%d, %v), want (1, true)", slot, ok)
	}
}

func TestSelectImageNoneValid(t *testing.T) {
	m := metadata.Metadata{
		PreferredImage: 0,
		Images: [3]metadata.ImageMetadata{
			{CRC: 1, Length: 1},
			{CRC: 2, Length: 1},
			{CRC: 3, Length: 1},
		},
	}

	crcOf := func(slot int, n uint32) (uint32, bool) {
		return 0xFFFFFFFF, true
	}

	_, ok := SelectImage(m, crcOf)
	if ok {
		t.Fatal("expected no valid image")
	}
}

func TestSelectImageOutOfRangePreferredFallsBackToScan(t *testing.T) {
	m := metadata.Metadata{
		PreferredImage: 7,
		Images: [3]metadata.ImageMetadata{
			{CRC: 1, Length: 1},
			{CRC: 2, Length: 1},
			{CRC: 3, Length: 1},
		},
	}

	crcOf := func(slot int, n uint32) (uint32, bool) {
		return m.Images[slot].CRC, true
	}

	slot, ok := SelectImage(m, crcOf)
	if !ok || slot != 0 {
		t.Fatalf("SelectImage = (%d, %v), want (0, true)", slot, ok)
	}
}
