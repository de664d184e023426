package pickup

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	chars := make(map[rune]int)
	for i := 0; i < 100; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("code length = %d, want %d", len(code), CodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains character outside alphabet", code)
			}
			chars[r]++
		}
		seen[code] = true
	}
	// 100 draws from a 31^8 space colliding would point at a broken RNG.
	if len(seen) < 95 {
		t.Errorf("expected ~100 distinct codes, got %d", len(seen))
	}
	// 800 uniform samples over 31 characters miss one with odds ~4e-12.
	for _, r := range codeAlphabet {
		if chars[r] == 0 {
			t.Errorf("character %q never drawn across 800 samples", r)
		}
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := NewSealer(testKey(t))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	token, err := sealer.SealToken("66b2f6a1c9e77d0001a4f001", "MKT4PQ2Z")
	if err != nil {
		t.Fatalf("SealToken: %v", err)
	}

	bookingID, code, err := sealer.OpenToken(token)
	if err != nil {
		t.Fatalf("OpenToken: %v", err)
	}
	if bookingID != "66b2f6a1c9e77d0001a4f001" || code != "MKT4PQ2Z" {
		t.Errorf("round trip mismatch: %s / %s", bookingID, code)
	}
}

func TestOpenTokenRejectsTampering(t *testing.T) {
	sealer, err := NewSealer(testKey(t))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	token, err := sealer.SealToken("66b2f6a1c9e77d0001a4f001", "MKT4PQ2Z")
	if err != nil {
		t.Fatalf("SealToken: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"not base64", "!!!not-a-token!!!"},
		{"truncated", token[:8]},
		{"flipped byte", flipLastChar(token)},
		{"non-canonical encoding", nonCanonicalVariant(t, token)},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := sealer.OpenToken(tt.token); err == nil {
				t.Error("expected error for tampered token")
			}
		})
	}
}

func TestOpenTokenWrongKey(t *testing.T) {
	sealerA, _ := NewSealer(testKey(t))
	sealerB, _ := NewSealer(testKey(t))

	token, err := sealerA.SealToken("66b2f6a1c9e77d0001a4f001", "MKT4PQ2Z")
	if err != nil {
		t.Fatalf("SealToken: %v", err)
	}

	if _, _, err := sealerB.OpenToken(token); err == nil {
		t.Error("expected error when opening with a different key")
	}
}

func TestNewSealerRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not base64", "%%%"},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSealer(tt.key); err == nil {
				t.Error("expected error for invalid key")
			}
		})
	}
}

func flipLastChar(s string) string {
	b := []byte(s)
	if b[len(b)-1] == 'A' {
		b[len(b)-1] = 'B'
	} else {
		b[len(b)-1] = 'A'
	}
	return string(b)
}

// nonCanonicalVariant swaps the final character for one whose unused
// trailing bits differ but whose lenient decoding yields the same
// ciphertext. Only strict decoding tells the two tokens apart.
func nonCanonicalVariant(t *testing.T, token string) string {
	t.Helper()

	want, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("failed to decode token: %v", err)
	}

	const urlAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	last := token[len(token)-1]
	for i := 0; i < len(urlAlphabet); i++ {
		if urlAlphabet[i] == last {
			continue
		}
		mutated := token[:len(token)-1] + string(urlAlphabet[i])
		got, err := base64.RawURLEncoding.DecodeString(mutated)
		if err == nil && bytes.Equal(got, want) {
			return mutated
		}
	}

	t.Fatal("no aliasing final character found")
	return ""
}
