package packet

import (
	"encoding/binary"
	"errors"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/wirebuf"
	"github.com/meshcore/engine/ztcrypto"
)

// ErrDrop is returned by Dearmor for every packet-level validation
// failure. Per the protocol's failure semantics, callers must not
// distinguish these cases in any observable way (timing, logging level,
// or reply) that would let an attacker probe for why a packet was
// rejected.
var ErrDrop = errors.New("packet: dropped")

// mangleKey derives the per-packet Salsa20 key by XOR-mixing header
// bytes into the 32-byte shared secret. The hop sub-field of the flags
// byte is masked to zero before mixing, because hop increments happen
// in transit after armoring and must not invalidate the MAC. The length
// field is folded in little-endian; every other multi-byte field in the
// protocol is big-endian, but this is what the wire format specifies.
func mangleKey(shared *[32]byte, iv uint64, dest, src address.Address, flags byte, totalLen int) [32]byte {
	var mangled [32]byte
	copy(mangled[:], shared[:])

	var ivb [8]byte
	binary.BigEndian.PutUint64(ivb[:], iv)
	for i := 0; i < 8; i++ {
		mangled[i] ^= ivb[i]
	}
	destb := dest.Bytes()
	for i := 0; i < 5; i++ {
		mangled[8+i] ^= destb[i]
	}
	srcb := src.Bytes()
	for i := 0; i < 5; i++ {
		mangled[13+i] ^= srcb[i]
	}
	mangled[18] ^= flags &^ flagHopMask

	var lenb [2]byte
	binary.LittleEndian.PutUint16(lenb[:], uint16(totalLen))
	mangled[19] ^= lenb[0]
	mangled[20] ^= lenb[1]

	// mangled[21:32] pass through unchanged.
	return mangled
}

// Armor authenticates and, if requested, encrypts a fully-formed
// plaintext packet in buf (header fields already populated, verb+payload
// already written at offset HeaderSize) using the given shared secret
// and cipher selector. It sets the cipher bits in the flags byte,
// computes and writes the MAC, and encrypts the payload in place when
// cipher demands it.
//
// buf's logical length must already equal the packet's final size; the
// length is part of what's authenticated via key mangling.
func Armor(buf *wirebuf.Buffer, shared *[32]byte, cipher Cipher) error {
	if buf.Len() < MinSize {
		return errors.New("packet: too short to armor")
	}
	iv, err := buf.Uint64At(offIV)
	if err != nil {
		return err
	}
	destb, err := buf.SliceAt(offDest, address.Size)
	if err != nil {
		return err
	}
	dest, err := address.FromBytes(destb)
	if err != nil {
		return err
	}
	srcb, err := buf.SliceAt(offSrc, address.Size)
	if err != nil {
		return err
	}
	src, err := address.FromBytes(srcb)
	if err != nil {
		return err
	}
	flags, err := buf.Uint8At(offFlags)
	if err != nil {
		return err
	}
	flags = (flags &^ flagCipherMask) | (byte(cipher) << flagCipherShift)
	if err := buf.PutUint8At(offFlags, flags); err != nil {
		return err
	}

	mangled := mangleKey(shared, iv, dest, src, flags, buf.Len())
	stream := ztcrypto.NewCipher12(&mangled, iv)

	var oneTimeKey [32]byte
	stream.Bytes(oneTimeKey[:])

	payload, err := buf.SliceAt(offVerb, buf.Len()-offVerb)
	if err != nil {
		return err
	}
	if cipher == CipherSalsa2012Poly1305 {
		stream.XORKeyStream(payload, payload)
	}

	mac := ztcrypto.Sum(payload, &oneTimeKey)
	var macArr [8]byte
	copy(macArr[:], mac[:])
	for i, b := range macArr {
		if err := buf.PutUint8At(offMAC+i, b); err != nil {
			return err
		}
	}
	return nil
}

// Dearmor verifies and, if needed, decrypts a packet in place. It
// returns ErrDrop for any validation failure: unknown cipher selector,
// truncated packet, or MAC mismatch. The MAC comparison is constant
// time.
func Dearmor(buf *wirebuf.Buffer, shared *[32]byte) error {
	if buf.Len() < MinSize {
		return ErrDrop
	}
	iv, err := buf.Uint64At(offIV)
	if err != nil {
		return ErrDrop
	}
	destb, err := buf.SliceAt(offDest, address.Size)
	if err != nil {
		return ErrDrop
	}
	dest, err := address.FromBytes(destb)
	if err != nil {
		return ErrDrop
	}
	srcb, err := buf.SliceAt(offSrc, address.Size)
	if err != nil {
		return ErrDrop
	}
	src, err := address.FromBytes(srcb)
	if err != nil {
		return ErrDrop
	}
	flags, err := buf.Uint8At(offFlags)
	if err != nil {
		return ErrDrop
	}
	cipher := Cipher((flags & flagCipherMask) >> flagCipherShift)
	if !cipher.Valid() {
		return ErrDrop
	}

	mangled := mangleKey(shared, iv, dest, src, flags, buf.Len())
	stream := ztcrypto.NewCipher12(&mangled, iv)

	var oneTimeKey [32]byte
	stream.Bytes(oneTimeKey[:])

	payload, err := buf.SliceAt(offVerb, buf.Len()-offVerb)
	if err != nil {
		return ErrDrop
	}

	var wantMAC [ztcrypto.MACSize]byte
	for i := range wantMAC {
		b, err := buf.Uint8At(offMAC + i)
		if err != nil {
			return ErrDrop
		}
		wantMAC[i] = b
	}
	if !ztcrypto.Verify(wantMAC, payload, &oneTimeKey) {
		return ErrDrop
	}

	if cipher == CipherSalsa2012Poly1305 {
		stream.XORKeyStream(payload, payload)
	}
	return nil
}

// IncrementHop increments the hop count in an already-armored packet's
// flags byte, saturating at maxHop. Because mangleKey masks the hop bits
// to zero before mixing, the MAC remains valid after this mutation.
func IncrementHop(buf *wirebuf.Buffer) error {
	flags, err := buf.Uint8At(offFlags)
	if err != nil {
		return err
	}
	hops := flags & flagHopMask
	if hops < maxHop {
		hops++
	}
	flags = (flags &^ flagHopMask) | hops
	return buf.PutUint8At(offFlags, flags)
}
