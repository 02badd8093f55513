package oracle

import "testing"

func TestWinningNumber(t *testing.T) {
	cases := []struct {
		hash string
		want int
	}{
		// 0x0000001A = 26, 26 % 52 = 26, +1 = 27
		{"ab9356e6e6e5dca16c81aa1601b305c1e44ff3eb83d0dd6a8a0000001A", 27},
		// 0x00000000 = 0 -> 1
		{"deadbeef00000000", 1},
		// 0x00000033 = 51, 51 % 52 = 51, +1 = 52
		{"ffff00000033", 52},
		// 0x00000034 = 52, 52 % 52 = 0, +1 = 1
		{"ffff00000034", 1},
		// 0xFFFFFFFF = 4294967295, % 52 = 47, +1 = 48
		{"ffffffff", 48},
	}

	for _, c := range cases {
		got, err := WinningNumber(c.hash)
		if err != nil {
			t.Fatalf("WinningNumber(%q) err: %v", c.hash, err)
		}
		if got != c.want {
			t.Fatalf("WinningNumber(%q) = %d, want %d", c.hash, got, c.want)
		}
		if got < 1 || got > 52 {
			t.Fatalf("WinningNumber(%q) = %d out of range", c.hash, got)
		}
	}
}

func TestWinningNumberInvalid(t *testing.T) {
	if _, err := WinningNumber("abc"); err == nil {
		t.Fatalf("expected error for short hash")
	}
	if _, err := WinningNumber("zzzzzzzz"); err == nil {
		t.Fatalf("expected error for non-hex tail")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("https://horizon.stellar.org", 0, 0, 0)
	if c.maxAttempts != 20 {
		t.Fatalf("maxAttempts = %d, want 20", c.maxAttempts)
	}
	if c.pollInterval.Seconds() != 1 {
		t.Fatalf("pollInterval = %v, want 1s", c.pollInterval)
	}
}
