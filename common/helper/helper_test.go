package helper

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTrimDecimal(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{100, "100.00"},
		{0.5, "0.50"},
		{27.505, "27.51"},
		{0, "0.00"},
		{-3.1, "-3.10"},
	}
	for _, c := range cases {
		if got := TrimDecimal(decimal.NewFromFloat(c.in)); got != c.want {
			t.Fatalf("TrimDecimal(%v) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestSymmetricNoiseBounds(t *testing.T) {
	const amp = 0.1
	for i := 0; i < 10000; i++ {
		n := SymmetricNoise(amp)
		if n < -amp || n > amp {
			t.Fatalf("noise out of range: %v", n)
		}
	}
}

func TestSymmetricNoiseZeroAmplitude(t *testing.T) {
	for i := 0; i < 100; i++ {
		if n := SymmetricNoise(0); n != 0 {
			t.Fatalf("noise with zero amplitude = %v", n)
		}
	}
}

func TestSymmetricNoiseRoughlyCentered(t *testing.T) {
	sum := 0.0
	const n = 100000
	for i := 0; i < n; i++ {
		sum += SymmetricNoise(1)
	}
	if math.Abs(sum/n) > 0.05 {
		t.Fatalf("noise mean too far from zero: %v", sum/n)
	}
}

func TestGenerateRandNum(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := GenerateRandNum(5, 10)
		if v < 5 || v >= 10 {
			t.Fatalf("rand out of range: %d", v)
		}
	}
}

func TestBuildFullURL(t *testing.T) {
	cases := []struct {
		host, path, want string
	}{
		{"https://api.example.com", "/api/wallet/deposit/success", "https://api.example.com/api/wallet/deposit/success"},
		{"https://api.example.com/", "api/odds", "https://api.example.com/api/odds"},
		{"https://api.example.com", "https://other.com/x", "https://other.com/x"},
		{"", "/api/bet", "api/bet"},
		{"https://api.example.com", "", ""},
	}
	for _, c := range cases {
		if got := BuildFullURL(c.host, c.path); got != c.want {
			t.Fatalf("BuildFullURL(%q, %q) = %q, want %q", c.host, c.path, got, c.want)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if hash == "secret123" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword("secret123", hash) {
		t.Fatal("check failed for correct password")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("check passed for wrong password")
	}
}

func TestCtypeDigit(t *testing.T) {
	if !CtypeDigit("0123456789") {
		t.Fatal("digits rejected")
	}
	for _, s := range []string{"", "12a", " 1", "1.2"} {
		if CtypeDigit(s) {
			t.Fatalf("CtypeDigit(%q) = true", s)
		}
	}
}
