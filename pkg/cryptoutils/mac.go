package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"slices"
)

// PadISO9797Method2 implements ISO/IEC 9797-1 padding method 2 (EMV padding).
// Adds 0x80 followed by the smallest number of 0x00 bytes to make data multiple of block size.
func PadISO9797Method2(msg []byte, bs int) []byte {
	return PadISO9797Method1(slices.Concat(msg, []byte{ISO9797_METHOD2_PADDING_BYTE}), bs)
}

// PadISO9797Method1 implements ISO/IEC 9797-1 padding method 1.
// Adds the smallest number of 0x00 bytes to make data multiple of block size.
// If data is already a multiple of block size and non-empty, no padding is added.
func PadISO9797Method1(data []byte, blockSize int) []byte {
	remainder := len(data) % blockSize
	if remainder == 0 && len(data) > 0 {
		return data
	}

	if len(data) == 0 {
		return make([]byte, blockSize)
	}

	padding := make([]byte, blockSize-remainder)

	return slices.Concat(data, padding)
}

// EncryptAESCBC encrypts block-aligned msg under key with a zero IV and
// returns the whole ciphertext.
func EncryptAESCBC(key, msg []byte) ([]byte, error) {
	if len(msg) == 0 || len(msg)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("input length %d not a multiple of block size %d", len(msg), aes.BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}

	out := make([]byte, len(msg))
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, msg)

	return out, nil
}

// AESCBCMAC pads msg with method 2, encrypts it with AES-CBC and a zero IV
// and returns the first s bytes of the final ciphertext block.
func AESCBCMAC(key, msg []byte, s int) ([]byte, error) {
	if s < 4 || s > aes.BlockSize {
		return nil, fmt.Errorf("invalid MAC length %d", s)
	}

	out, err := EncryptAESCBC(key, PadISO9797Method2(msg, aes.BlockSize))
	if err != nil {
		return nil, err
	}

	return out[len(out)-aes.BlockSize:][:s], nil
}

// HMACSHA256 returns the first s bytes of HMAC-SHA256(key, msg).
func HMACSHA256(key, msg []byte, s int) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(msg)

	return m.Sum(nil)[:s]
}

// SHA256 returns the first s bytes of SHA-256(parts...).
func SHA256(s int, parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}

	return h.Sum(nil)[:s]
}
