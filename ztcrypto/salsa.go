// Package ztcrypto implements the symmetric primitives the wire protocol
// is built on: a variable-round Salsa20 stream cipher (the wire format
// specifies 12 rounds, key derivation uses 20), Poly1305 one-time
// authentication, secure randomness, and constant-time comparison.
//
// No ecosystem package exposes a reduced-round Salsa20 core — x/crypto's
// salsa20 package hard-codes 20 rounds — so the stream cipher core is
// implemented directly here, the same way ZeroTier's own crypto layer
// does it, parameterized on round count rather than forked per variant.
package ztcrypto

import "encoding/binary"

// sigma is "expand 32-byte k", the constant Salsa20 mixes in for 256-bit
// keys.
var sigma = [16]byte{'e', 'x', 'p', 'a', 'n', 'd', ' ', '3', '2', '-', 'b', 'y', 't', 'e', ' ', 'k'}

// salsaCore runs the Salsa20 permutation for the given number of rounds
// (must be even) over a 64-byte block seeded from an 8-byte nonce, an
// 8-byte little-endian block counter, and a 32-byte key, and writes the
// resulting 64-byte block to out.
func salsaCore(rounds int, out *[64]byte, nonce, counter uint64, key *[32]byte) {
	var in [16]byte
	binary.LittleEndian.PutUint64(in[0:8], nonce)
	binary.LittleEndian.PutUint64(in[8:16], counter)

	j0 := binary.LittleEndian.Uint32(sigma[0:4])
	j1 := binary.LittleEndian.Uint32(key[0:4])
	j2 := binary.LittleEndian.Uint32(key[4:8])
	j3 := binary.LittleEndian.Uint32(key[8:12])
	j4 := binary.LittleEndian.Uint32(key[12:16])
	j5 := binary.LittleEndian.Uint32(sigma[4:8])
	j6 := binary.LittleEndian.Uint32(in[0:4])
	j7 := binary.LittleEndian.Uint32(in[4:8])
	j8 := binary.LittleEndian.Uint32(in[8:12])
	j9 := binary.LittleEndian.Uint32(in[12:16])
	j10 := binary.LittleEndian.Uint32(sigma[8:12])
	j11 := binary.LittleEndian.Uint32(key[16:20])
	j12 := binary.LittleEndian.Uint32(key[20:24])
	j13 := binary.LittleEndian.Uint32(key[24:28])
	j14 := binary.LittleEndian.Uint32(key[28:32])
	j15 := binary.LittleEndian.Uint32(sigma[12:16])

	x0, x1, x2, x3, x4, x5, x6, x7 := j0, j1, j2, j3, j4, j5, j6, j7
	x8, x9, x10, x11, x12, x13, x14, x15 := j8, j9, j10, j11, j12, j13, j14, j15

	for i := 0; i < rounds; i += 2 {
		u := x0 + x12
		x4 ^= u<<7 | u>>25
		u = x4 + x0
		x8 ^= u<<9 | u>>23
		u = x8 + x4
		x12 ^= u<<13 | u>>19
		u = x12 + x8
		x0 ^= u<<18 | u>>14

		u = x5 + x1
		x9 ^= u<<7 | u>>25
		u = x9 + x5
		x13 ^= u<<9 | u>>23
		u = x13 + x9
		x1 ^= u<<13 | u>>19
		u = x1 + x13
		x5 ^= u<<18 | u>>14

		u = x10 + x6
		x14 ^= u<<7 | u>>25
		u = x14 + x10
		x2 ^= u<<9 | u>>23
		u = x2 + x14
		x6 ^= u<<13 | u>>19
		u = x6 + x2
		x10 ^= u<<18 | u>>14

		u = x15 + x11
		x3 ^= u<<7 | u>>25
		u = x3 + x15
		x7 ^= u<<9 | u>>23
		u = x7 + x3
		x11 ^= u<<13 | u>>19
		u = x11 + x7
		x15 ^= u<<18 | u>>14

		u = x0 + x3
		x1 ^= u<<7 | u>>25
		u = x1 + x0
		x2 ^= u<<9 | u>>23
		u = x2 + x1
		x3 ^= u<<13 | u>>19
		u = x3 + x2
		x0 ^= u<<18 | u>>14

		u = x5 + x4
		x6 ^= u<<7 | u>>25
		u = x6 + x5
		x7 ^= u<<9 | u>>23
		u = x7 + x6
		x4 ^= u<<13 | u>>19
		u = x4 + x7
		x5 ^= u<<18 | u>>14

		u = x10 + x9
		x11 ^= u<<7 | u>>25
		u = x11 + x10
		x8 ^= u<<9 | u>>23
		u = x8 + x11
		x9 ^= u<<13 | u>>19
		u = x9 + x8
		x10 ^= u<<18 | u>>14

		u = x15 + x14
		x12 ^= u<<7 | u>>25
		u = x12 + x15
		x13 ^= u<<9 | u>>23
		u = x13 + x12
		x14 ^= u<<13 | u>>19
		u = x14 + x13
		x15 ^= u<<18 | u>>14
	}

	binary.LittleEndian.PutUint32(out[0:4], x0+j0)
	binary.LittleEndian.PutUint32(out[4:8], x1+j1)
	binary.LittleEndian.PutUint32(out[8:12], x2+j2)
	binary.LittleEndian.PutUint32(out[12:16], x3+j3)
	binary.LittleEndian.PutUint32(out[16:20], x4+j4)
	binary.LittleEndian.PutUint32(out[20:24], x5+j5)
	binary.LittleEndian.PutUint32(out[24:28], x6+j6)
	binary.LittleEndian.PutUint32(out[28:32], x7+j7)
	binary.LittleEndian.PutUint32(out[32:36], x8+j8)
	binary.LittleEndian.PutUint32(out[36:40], x9+j9)
	binary.LittleEndian.PutUint32(out[40:44], x10+j10)
	binary.LittleEndian.PutUint32(out[44:48], x11+j11)
	binary.LittleEndian.PutUint32(out[48:52], x12+j12)
	binary.LittleEndian.PutUint32(out[52:56], x13+j13)
	binary.LittleEndian.PutUint32(out[56:60], x14+j14)
	binary.LittleEndian.PutUint32(out[60:64], x15+j15)
}

// Cipher is a Salsa20 keystream generator with a fixed round count,
// 32-byte key and 8-byte nonce. It produces keystream blocks on demand
// and XORs them into caller-supplied buffers; callers that need only the
// keystream (e.g. to derive a Poly1305 one-time key) can read Bytes
// without ever XORing.
type Cipher struct {
	rounds  int
	key     [32]byte
	nonce   uint64
	counter uint64
	block   [64]byte
	off     int // bytes of block already consumed
}

// NewCipher12 returns a Salsa20/12 keystream, the cipher suite the wire
// format selects for encrypted payloads.
func NewCipher12(key *[32]byte, nonce uint64) *Cipher {
	return newCipher(12, key, nonce)
}

// NewCipher20 returns a full Salsa20/20 keystream, used only by the
// memory-hard identity derivation function, never on the wire.
func NewCipher20(key *[32]byte, nonce uint64) *Cipher {
	return newCipher(20, key, nonce)
}

func newCipher(rounds int, key *[32]byte, nonce uint64) *Cipher {
	c := &Cipher{rounds: rounds, nonce: nonce, off: 64}
	copy(c.key[:], key[:])
	return c
}

func (c *Cipher) fill() {
	salsaCore(c.rounds, &c.block, c.nonce, c.counter, &c.key)
	c.counter++
	c.off = 0
}

// XORKeyStream XORs len(dst) bytes of keystream with src, writing to dst.
// dst and src may overlap exactly (in-place encryption).
func (c *Cipher) XORKeyStream(dst, src []byte) {
	for i := range src {
		if c.off == 64 {
			c.fill()
		}
		dst[i] = src[i] ^ c.block[c.off]
		c.off++
	}
}

// Bytes writes n bytes of raw keystream to dst without XORing anything;
// used to derive the Poly1305 one-time key from an all-zero input.
func (c *Cipher) Bytes(dst []byte) {
	for i := range dst {
		if c.off == 64 {
			c.fill()
		}
		dst[i] = c.block[c.off]
		c.off++
	}
}
