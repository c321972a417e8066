package address

import (
	"crypto/ed25519"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hdevalence/ed25519consensus"
	"golang.org/x/crypto/curve25519"

	"github.com/meshcore/engine/ztcrypto"
)

// PublicKeySize is the combined length of the two public keys an
// identity carries: a Curve25519 agreement key and an Ed25519 signing
// key. ZeroTier's own protocol calls this pairing "C25519" even though
// it's two distinct curves under the hood.
const PublicKeySize = 32 + 32

// powThreshold bounds the leading byte of a valid identity's
// proof-of-work digest. Lower values make address generation more
// expensive; this matches the source's default.
const powThreshold = 0xd7

// Identity is a node's long-term (address, public keys, [private keys])
// tuple. The zero value is not valid; use Generate or Parse.
type Identity struct {
	addr Address

	agreePub [32]byte // curve25519
	signPub  [32]byte // ed25519

	hasPrivate bool
	agreePriv  [32]byte
	signPriv   [64]byte // ed25519.PrivateKey is seed+pub, 64 bytes
}

// Address returns the identity's node address.
func (id Identity) Address() Address { return id.addr }

// HasPrivate reports whether id carries private key material.
func (id Identity) HasPrivate() bool { return id.hasPrivate }

// PublicEqual reports whether id and other have the same address and
// public keys, ignoring private key material.
func (id Identity) PublicEqual(other Identity) bool {
	return id.addr == other.addr &&
		id.agreePub == other.agreePub &&
		id.signPub == other.signPub
}

// Generate creates a new identity with a freshly generated key pair,
// searching for a key pair whose address-derivation digest satisfies the
// proof-of-work predicate (see Valid).
func Generate() (Identity, error) {
	for {
		var agreePriv, signSeed [32]byte
		ztcrypto.Rand(agreePriv[:])
		ztcrypto.ClampCurve25519Private(agreePriv[:])
		var agreePub [32]byte
		curve25519.ScalarBaseMult(&agreePub, &agreePriv)

		ztcrypto.Rand(signSeed[:])
		signPriv := ed25519.NewKeyFromSeed(signSeed[:])
		var signPub [32]byte
		copy(signPub[:], signPriv[32:])

		digest := addressDerivationDigest(agreePub[:], signPub[:])
		if digest[0] >= powThreshold {
			continue
		}
		addr, err := FromBytes(digest[59:64])
		if err != nil {
			// Extremely rare: the derived address happens to be
			// reserved or zero. Try again with a fresh key pair.
			continue
		}

		id := Identity{
			addr:       addr,
			agreePub:   agreePub,
			signPub:    signPub,
			hasPrivate: true,
			agreePriv:  agreePriv,
		}
		copy(id.signPriv[:], signPriv)
		return id, nil
	}
}

// Valid reports whether id's public keys satisfy the proof-of-work
// predicate for id's address: the memory-hard digest of the public keys
// has a leading byte below the threshold and its trailing 5 bytes equal
// the claimed address.
func (id Identity) Valid() bool {
	if err := id.addr.Valid(); err != nil {
		return false
	}
	digest := addressDerivationDigest(id.agreePub[:], id.signPub[:])
	if digest[0] >= powThreshold {
		return false
	}
	want := id.addr.Bytes()
	return ztcrypto.ConstantTimeEqual(digest[59:64], want[:])
}

// addressDerivationDigest runs the memory-hard work function ZeroTier
// uses to bind a node address to its public keys: a SHA-512 of the
// concatenated public keys, mixed through a 2MB Salsa20/20 scratch table
// so that address generation (and validation) is deliberately expensive
// to parallelize at scale.
func addressDerivationDigest(agreePub, signPub []byte) [64]byte {
	h := sha512.New()
	h.Write(agreePub)
	h.Write(signPub)
	var digest [64]byte
	copy(digest[:], h.Sum(nil))
	memoryHardWorkFunction(&digest)
	return digest
}

const scratchSize = 2097152 // 2MB

func memoryHardWorkFunction(digest *[64]byte) {
	var key [32]byte
	copy(key[:], digest[:32])
	nonce := binary.LittleEndian.Uint64(digest[32:40])

	genmem := make([]byte, scratchSize)
	cipher := ztcrypto.NewCipher20(&key, nonce)
	cipher.Bytes(genmem[:64])
	for k := 0; k < scratchSize-64; k += 64 {
		// Each 64-byte block's keystream depends on the position via the
		// running block counter, then is XORed with the prior block so
		// the table can't be produced except by walking it in order.
		var block [64]byte
		cipher.Bytes(block[:])
		for i := range block {
			genmem[k+64+i] = genmem[k+i] ^ block[i]
		}
	}

	digestWords := make([]uint64, 8)
	for i := range digestWords {
		digestWords[i] = binary.LittleEndian.Uint64(digest[i*8 : i*8+8])
	}

	for i := 0; i < scratchSize; i += 16 {
		idx1 := binary.BigEndian.Uint64(genmem[i:i+8]) % 8
		idx2 := (binary.BigEndian.Uint64(genmem[i+8:i+16]) % uint64(scratchSize/8)) * 8
		genWord := binary.LittleEndian.Uint64(genmem[idx2 : idx2+8])
		digestWords[idx1], genWord = genWord, digestWords[idx1]
		binary.LittleEndian.PutUint64(genmem[idx2:idx2+8], genWord)

		var block [64]byte
		for j, w := range digestWords {
			binary.LittleEndian.PutUint64(block[j*8:j*8+8], w)
		}
		var scratch [64]byte
		cipher.Bytes(scratch[:])
		for j := range block {
			block[j] ^= scratch[j]
		}
		for j := range digestWords {
			digestWords[j] = binary.LittleEndian.Uint64(block[j*8 : j*8+8])
		}
	}

	for i, w := range digestWords {
		binary.LittleEndian.PutUint64(digest[i*8:i*8+8], w)
	}
}

// SharedSecret derives the 32-byte Curve25519 shared secret between id's
// private agreement key and peer's public agreement key. id must carry a
// private key.
func (id Identity) SharedSecret(peer Identity) ([32]byte, error) {
	if !id.hasPrivate {
		return [32]byte{}, errors.New("identity: no private key")
	}
	var ss [32]byte
	curve25519.ScalarMult(&ss, &id.agreePriv, &peer.agreePub)
	return ss, nil
}

// Sign signs msg with id's private Ed25519 key. id must carry a private
// key.
func (id Identity) Sign(msg []byte) ([]byte, error) {
	if !id.hasPrivate {
		return nil, errors.New("identity: no private key")
	}
	priv := make(ed25519.PrivateKey, 64)
	copy(priv, id.signPriv[:])
	return ed25519.Sign(priv, msg), nil
}

// Verify reports whether sig is a valid signature over msg by id's
// public signing key. Verification uses ed25519consensus for its
// stricter, batch-safe cofactor checks rather than crypto/ed25519's
// default Verify.
func (id Identity) Verify(msg, sig []byte) bool {
	return ed25519consensus.Verify(ed25519.PublicKey(id.signPub[:]), msg, sig)
}

// String returns id's canonical textual form:
// <address>:0:<hex agree pub><hex sign pub>[:<hex agree priv><hex sign priv>].
func (id Identity) String() string {
	var b strings.Builder
	b.WriteString(id.addr.String())
	b.WriteString(":0:")
	b.WriteString(hex.EncodeToString(id.agreePub[:]))
	b.WriteString(hex.EncodeToString(id.signPub[:]))
	if id.hasPrivate {
		b.WriteByte(':')
		b.WriteString(hex.EncodeToString(id.agreePriv[:]))
		b.WriteString(hex.EncodeToString(id.signPriv[:]))
	}
	return b.String()
}

// ParseIdentity parses the textual form String produces.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return Identity{}, fmt.Errorf("identity: malformed %q", s)
	}
	addr, err := ParseString(parts[0])
	if err != nil {
		return Identity{}, err
	}
	if parts[1] != "0" {
		return Identity{}, fmt.Errorf("identity: unsupported key type %q", parts[1])
	}
	pub, err := hex.DecodeString(parts[2])
	if err != nil || len(pub) != PublicKeySize {
		return Identity{}, fmt.Errorf("identity: malformed public key")
	}
	id := Identity{addr: addr}
	copy(id.agreePub[:], pub[:32])
	copy(id.signPub[:], pub[32:])

	if len(parts) >= 4 && parts[3] != "" {
		priv, err := hex.DecodeString(parts[3])
		if err != nil || len(priv) != 32+64 {
			return Identity{}, fmt.Errorf("identity: malformed private key")
		}
		copy(id.agreePriv[:], priv[:32])
		copy(id.signPriv[:], priv[32:])
		id.hasPrivate = true
	}

	if !id.Valid() {
		return Identity{}, fmt.Errorf("identity: %s fails proof-of-work check", addr)
	}
	return id, nil
}

// identitiesEqualConstantTime is used by the identity store to compare
// public keys without leaking timing information about where they first
// differ, matching the emphasis the wire codec places on constant-time
// comparisons.
func identitiesEqualConstantTime(a, b Identity) bool {
	return subtle.ConstantTimeCompare(a.agreePub[:], b.agreePub[:]) == 1 &&
		subtle.ConstantTimeCompare(a.signPub[:], b.signPub[:]) == 1
}
