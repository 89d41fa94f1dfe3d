package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealedPrefix = "enc:v1:"

var (
	// ErrSealFailed is returned when a value cannot be encrypted.
	ErrSealFailed = errors.New("seal failed")
	// ErrOpenFailed is returned when a stored value cannot be decrypted.
	ErrOpenFailed = errors.New("open failed")
)

// Sealer encrypts sensitive card fields with AES-256-GCM.
type Sealer struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewSealer builds a sealer from a 64 character hex key; any other secret is
// stretched with SHA-256.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty key", ErrSealFailed)
	}

	key, err := hex.DecodeString(secret)
	if err != nil || len(key) != 32 {
		sum := sha256.Sum256([]byte(secret))
		key = sum[:]
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealFailed, err)
	}

	return &Sealer{aead: aead, rand: rand.Reader}, nil
}

// Seal encrypts plaintext and returns the encoded form.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrSealFailed, err)
	}

	out := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)

	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	if !IsSealed(sealed) {
		return "", fmt.Errorf("%w: value is not sealed", ErrOpenFailed)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("%w: ciphertext too short", ErrOpenFailed)
	}

	plain, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	return string(plain), nil
}

// IsSealed reports whether v carries the sealed value prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}

// seal applies s when set. A nil sealer stores plaintext.
func (s *Sealer) seal(v string) (string, error) {
	if s == nil || v == "" {
		return v, nil
	}

	return s.Seal(v)
}

// open reverses seal. Sealed data without a key, or plaintext with a key, is an error.
func (s *Sealer) open(v string) (string, error) {
	if v == "" {
		return v, nil
	}
	if s == nil {
		if IsSealed(v) {
			return "", fmt.Errorf("%w: value is sealed but no key is configured", ErrOpenFailed)
		}

		return v, nil
	}

	return s.Open(v)
}
