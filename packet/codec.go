package packet

import (
	"errors"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/wirebuf"
	"github.com/meshcore/engine/ztcrypto"
)

// MaxPacketSize bounds the largest packet this codec will build or
// accept, sized well above any fragmented packet's reassembled length so
// callers can size a single reusable buffer for the whole receive path.
const MaxPacketSize = 16 * 1024

// Build lays out a new plaintext packet: header fields plus a verb byte
// and payload, ready for compression and/or armoring. iv should be a
// fresh random value for every packet (it doubles as the Salsa20 nonce).
func Build(capacity int, iv uint64, dest, src address.Address, verb Verb, payload []byte) (*wirebuf.Buffer, error) {
	buf := wirebuf.New(capacity)
	if err := buf.AppendUint64(iv); err != nil {
		return nil, err
	}
	if err := buf.AppendBytes(destBytes(dest)); err != nil {
		return nil, err
	}
	if err := buf.AppendBytes(destBytes(src)); err != nil {
		return nil, err
	}
	if err := buf.AppendUint8(0); err != nil { // flags, filled in by Armor
		return nil, err
	}
	for i := 0; i < ztcrypto.MACSize; i++ {
		if err := buf.AppendUint8(0); err != nil { // MAC, filled in by Armor
			return nil, err
		}
	}
	if err := buf.AppendUint8(byte(verb) & verbMask); err != nil {
		return nil, err
	}
	if err := buf.AppendBytes(payload); err != nil {
		return nil, err
	}
	return buf, nil
}

func destBytes(a address.Address) []byte {
	b := a.Bytes()
	return b[:]
}

// SetCompressed sets or clears the verb byte's compressed flag bit; call
// after MaybeCompress decides whether compression paid off, before
// Armor.
func SetCompressed(buf *wirebuf.Buffer, compressed bool) error {
	v, err := buf.Uint8At(offVerb)
	if err != nil {
		return err
	}
	if compressed {
		v |= verbCompressedFlag
	} else {
		v &^= verbCompressedFlag
	}
	return buf.PutUint8At(offVerb, v)
}

// Decoded is a fully dearmored, decompressed packet ready for verb
// dispatch.
type Decoded struct {
	Header  Header
	Verb    Verb
	Payload []byte
}

// Open runs the full receive-side pipeline on a packet just read off the
// wire: dearmor with shared, decode, and — if the verb's compressed bit
// is set — decompress and decode again. Every failure is drop-worthy:
// ErrDrop from a bad MAC or malformed header, ErrDecompressedTooLarge
// from a compressed payload that won't fit in buf's capacity.
func Open(buf *wirebuf.Buffer, shared *[32]byte) (Decoded, error) {
	if err := Dearmor(buf, shared); err != nil {
		return Decoded{}, err
	}
	d, err := Decode(buf)
	if err != nil {
		return Decoded{}, ErrDrop
	}
	compressed, err := Compressed(buf)
	if err != nil {
		return Decoded{}, ErrDrop
	}
	if compressed {
		if err := Uncompress(buf, PayloadOffset); err != nil {
			return Decoded{}, err
		}
		if d, err = Decode(buf); err != nil {
			return Decoded{}, ErrDrop
		}
	}
	return d, nil
}

// Decode parses the header out of buf (which must already be
// dearmored and, if the compressed bit was set, decompressed) and
// returns the verb and payload. It does not itself dearmor or
// decompress; Open sequences Dearmor -> Decode -> (if compressed)
// Uncompress -> Decode again, matching the data-flow order in which
// compression is applied pre-encryption and must be undone
// post-decryption.
func Decode(buf *wirebuf.Buffer) (Decoded, error) {
	if buf.Len() < MinSize {
		return Decoded{}, errors.New("packet: too short to decode")
	}
	iv, err := buf.Uint64At(offIV)
	if err != nil {
		return Decoded{}, err
	}
	destb, err := buf.SliceAt(offDest, address.Size)
	if err != nil {
		return Decoded{}, err
	}
	dest, err := address.FromBytes(destb)
	if err != nil {
		return Decoded{}, err
	}
	srcb, err := buf.SliceAt(offSrc, address.Size)
	if err != nil {
		return Decoded{}, err
	}
	src, err := address.FromBytes(srcb)
	if err != nil {
		return Decoded{}, err
	}
	flags, err := buf.Uint8At(offFlags)
	if err != nil {
		return Decoded{}, err
	}
	verbByte, err := buf.Uint8At(offVerb)
	if err != nil {
		return Decoded{}, err
	}
	payload, err := buf.SliceAt(offVerb+1, buf.Len()-offVerb-1)
	if err != nil {
		return Decoded{}, err
	}
	return Decoded{
		Header:  Header{IV: iv, Dest: dest, Src: src, Flags: flags},
		Verb:    Verb(verbByte & verbMask),
		Payload: payload,
	}, nil
}

// Compressed reports whether buf's verb byte has the compressed flag
// set.
func Compressed(buf *wirebuf.Buffer) (bool, error) {
	v, err := buf.Uint8At(offVerb)
	if err != nil {
		return false, err
	}
	return v&verbCompressedFlag != 0, nil
}
