// Package cryptox implements the credential engine: salt generation,
// password hashing via PBKDF2-HMAC-SHA256, and constant-time verification.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dmitrijs2005/chatrelay/internal/common"
)

const (
	// SaltLength is the number of random bytes generated per registration.
	SaltLength = 16

	// KeyLength is the derived key size in bytes.
	KeyLength = 32

	// DefaultIterations is the PBKDF2 round count. High enough to make
	// offline brute force expensive; changing it invalidates stored hashes.
	DefaultIterations = 120000
)

// GenerateSalt returns n cryptographically random bytes.
func GenerateSalt(n int) []byte {
	return common.GenerateRandByteArray(n)
}

// DeriveKey stretches password with salt into a keyLen-byte key using
// PBKDF2-HMAC-SHA256. Same inputs always yield the same output.
func DeriveKey(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
}

// ConstantTimeEqual reports whether a and b are equal without leaking the
// position of the first differing byte. Mismatched lengths return false
// immediately; length is not a secret here.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
