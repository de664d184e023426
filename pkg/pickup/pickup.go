// Package pickup generates and verifies the codes a buyer presents at the
// store to collect a booking.
//
// A booking carries two artifacts: a short human-readable code (unique
// index in the Bookings collection) and an opaque sealed token binding the
// booking ID to the code, suitable for QR payloads that the seller device
// can verify offline.
package pickup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const CodeLength = 8

// codeAlphabet avoids ambiguous characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var ErrInvalidToken = errors.New("invalid pickup token")

// NewCode returns a random 8-character pickup code. Bytes outside the
// largest multiple of the alphabet size are redrawn so every character
// stays equally likely.
func NewCode() (string, error) {
	const limit = 256 - 256%len(codeAlphabet)

	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(code) < CodeLength {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("failed to generate pickup code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// Sealer seals and opens pickup tokens with AES-GCM. The key is shared by
// the bookings service (sealing at creation) and seller devices (opening
// at pickup).
type Sealer struct {
	key []byte
}

// NewSealer expects a base64 standard-encoded 32-byte key.
func NewSealer(encodedKey string) (*Sealer, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("pickup seal key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("pickup seal key must be 32 bytes, got %d", len(key))
	}
	return &Sealer{key: key}, nil
}

// SealToken produces an opaque token binding bookingID to code.
func (s *Sealer) SealToken(bookingID, code string) (string, error) {
	plaintext := []byte(bookingID + ":" + code)

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ct := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// OpenToken recovers the booking ID and pickup code from a sealed token.
// Strict decoding rejects non-canonical encodings whose trailing bits
// would otherwise alias a valid ciphertext.
func (s *Sealer) OpenToken(token string) (bookingID, code string, err error) {
	data, err := base64.RawURLEncoding.Strict().DecodeString(token)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", "", err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	if len(data) < aesgcm.NonceSize() {
		return "", "", ErrInvalidToken
	}

	nonce, ct := data[:aesgcm.NonceSize()], data[aesgcm.NonceSize():]
	plaintext, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", "", ErrInvalidToken
	}

	parts := strings.SplitN(string(plaintext), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidToken
	}

	return parts[0], parts[1], nil
}
