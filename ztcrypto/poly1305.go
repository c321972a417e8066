package ztcrypto

import (
	"crypto/subtle"

	"golang.org/x/crypto/poly1305"
)

// MACSize is the length in bytes of the truncated MAC carried in the
// packet header; the wire format only ever transmits the low 8 bytes of
// the full 16-byte Poly1305 tag.
const MACSize = 8

// Sum computes the Poly1305 tag of m under the given one-time key and
// returns its low 8 bytes, matching the packet header's MAC field.
func Sum(m []byte, key *[32]byte) (mac [MACSize]byte) {
	var full [16]byte
	poly1305.Sum(&full, m, key)
	copy(mac[:], full[:MACSize])
	return mac
}

// Verify reports whether mac is the correct truncated Poly1305 tag of m
// under key, in constant time.
func Verify(mac [MACSize]byte, m []byte, key *[32]byte) bool {
	want := Sum(m, key)
	return subtle.ConstantTimeCompare(mac[:], want[:]) == 1
}

// ConstantTimeEqual reports whether a and b are equal, in time
// independent of where they first differ. Unequal lengths are never
// equal.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
