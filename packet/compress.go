package packet

import (
	"errors"

	"github.com/pierrec/lz4/v4"

	"github.com/meshcore/engine/wirebuf"
)

// compressThreshold is the smallest payload (body after the verb byte) worth trying
// to compress; below it LZ4's block overhead usually outweighs any
// savings.
const compressThreshold = 32

// ErrDecompressedTooLarge is returned when a compressed payload can't be
// decompressed within buf's own capacity; treated by callers as a drop,
// never as a reply-worthy error.
var ErrDecompressedTooLarge = errors.New("packet: decompressed payload too large")

// MaybeCompress compresses payload with LZ4 and replaces it in place
// within buf if doing so is possible and strictly reduces its size. It
// reports whether the payload was replaced; callers use this to decide
// whether to set the verb's compressed flag bit.
//
// Compression is only ever applied before encryption: an encrypted
// payload is indistinguishable from random noise and won't compress, and
// compressing after encryption would leak length-correlated information
// about the plaintext.
func MaybeCompress(buf *wirebuf.Buffer, payloadOff int) (compressed bool, err error) {
	payload, err := buf.SliceAt(payloadOff, buf.Len()-payloadOff)
	if err != nil {
		return false, err
	}
	if len(payload) < compressThreshold {
		return false, nil
	}

	bound := lz4.CompressBlockBound(len(payload))
	if bound <= 0 || payloadOff+bound > buf.Cap() {
		// No room for a worst-case compressed block; not worth trying.
		return false, nil
	}

	scratch := make([]byte, bound)
	var c lz4.Compressor
	n, err := c.CompressBlock(payload, scratch)
	if err != nil || n <= 0 || n >= len(payload) {
		return false, nil
	}

	if err := buf.Truncate(payloadOff); err != nil {
		return false, err
	}
	if err := buf.AppendBytes(scratch[:n]); err != nil {
		return false, err
	}
	return true, nil
}

// Uncompress decompresses an LZ4-compressed payload found at
// buf[payloadOff:], replacing it in place with the decompressed bytes.
// The wire format carries no decompressed-length field, so — matching
// LZ4_decompress_safe's usual calling convention of decompressing
// against a fixed-capacity destination buffer rather than a known exact
// size — this bounds the output by buf's own remaining capacity and
// takes whatever length LZ4 reports back, instead of requiring the
// caller to already know the original size.
func Uncompress(buf *wirebuf.Buffer, payloadOff int) error {
	compressed, err := buf.SliceAt(payloadOff, buf.Len()-payloadOff)
	if err != nil {
		return err
	}
	dst := make([]byte, buf.Cap()-payloadOff)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil || n < 0 || n > len(dst) {
		return ErrDecompressedTooLarge
	}
	if err := buf.Truncate(payloadOff); err != nil {
		return err
	}
	return buf.AppendBytes(dst[:n])
}
