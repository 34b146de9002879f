package checksum

import "testing"

func TestSum(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint32
	}{
		{"empty", nil, 0},
		{"zero-length-non-nil", []byte{}, 0},
		{"aengelke", []byte("aengelke"), 0x7909E7C4},
		{"0-1-2-3", []byte{0, 1, 2, 3}, 0xD9331AA3},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Sum(c.in); got != c.want {
				t.Errorf("Sum(%v) = %#x, want %#x", c.in, got, c.want)
			}
		})
	}
}
