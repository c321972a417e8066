// Package wirebuf implements a bounded, mutable byte buffer with
// typed, bounds-checked accessors for the big-endian integers the wire
// protocol is built from. Buffers never grow past their initial
// capacity: the packet codec's hot path allocates no memory, so every
// buffer here is sized to the largest packet the caller will ever hand
// it.
package wirebuf

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go4.org/mem"
)

// ErrOverflow is returned by any accessor that would read or write past
// the buffer's capacity.
var ErrOverflow = errors.New("wirebuf: operation exceeds buffer capacity")

// Buffer is a fixed-capacity byte buffer with a logical length. It never
// reallocates; Grow-past-capacity operations fail with ErrOverflow
// instead.
type Buffer struct {
	data []byte // len(data) == cap, always
	n    int    // logical length in use
}

// New returns a Buffer with the given fixed capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Wrap returns a Buffer over an existing slice, with logical length
// equal to len(b) and capacity equal to cap(b).
func Wrap(b []byte) *Buffer {
	full := b[:cap(b)]
	return &Buffer{data: full, n: len(b)}
}

// Len returns the buffer's logical length.
func (b *Buffer) Len() int { return b.n }

// Cap returns the buffer's fixed capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// SetLen sets the logical length. It returns ErrOverflow if n exceeds
// capacity.
func (b *Buffer) SetLen(n int) error {
	if n < 0 || n > len(b.data) {
		return ErrOverflow
	}
	b.n = n
	return nil
}

// Bytes returns the in-use portion of the buffer. The returned slice
// aliases the buffer's storage.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Full returns the full backing array, including bytes beyond the
// logical length, up to capacity. The returned slice aliases the
// buffer's storage.
func (b *Buffer) Full() []byte { return b.data }

func (b *Buffer) checkRange(off, n int) error {
	if off < 0 || n < 0 || off+n > len(b.data) {
		return fmt.Errorf("%w: offset %d len %d capacity %d", ErrOverflow, off, n, len(b.data))
	}
	return nil
}

// AppendBytes appends p to the buffer, growing the logical length.
func (b *Buffer) AppendBytes(p []byte) error {
	if err := b.checkRange(b.n, len(p)); err != nil {
		return err
	}
	copy(b.data[b.n:], p)
	b.n += len(p)
	return nil
}

// AppendUint8 appends a single byte.
func (b *Buffer) AppendUint8(v uint8) error {
	if err := b.checkRange(b.n, 1); err != nil {
		return err
	}
	b.data[b.n] = v
	b.n++
	return nil
}

// AppendUint16 appends v as 2 big-endian bytes.
func (b *Buffer) AppendUint16(v uint16) error {
	if err := b.checkRange(b.n, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.data[b.n:], v)
	b.n += 2
	return nil
}

// AppendUint32 appends v as 4 big-endian bytes.
func (b *Buffer) AppendUint32(v uint32) error {
	if err := b.checkRange(b.n, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b.data[b.n:], v)
	b.n += 4
	return nil
}

// AppendUint64 appends v as 8 big-endian bytes.
func (b *Buffer) AppendUint64(v uint64) error {
	if err := b.checkRange(b.n, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b.data[b.n:], v)
	b.n += 8
	return nil
}

// Uint8At reads a byte at off without changing the logical length.
func (b *Buffer) Uint8At(off int) (uint8, error) {
	if err := b.checkRange(off, 1); err != nil {
		return 0, err
	}
	return b.data[off], nil
}

// Uint16At reads 2 big-endian bytes at off.
func (b *Buffer) Uint16At(off int) (uint16, error) {
	if err := b.checkRange(off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.data[off:]), nil
}

// Uint32At reads 4 big-endian bytes at off.
func (b *Buffer) Uint32At(off int) (uint32, error) {
	if err := b.checkRange(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.data[off:]), nil
}

// Uint64At reads 8 big-endian bytes at off.
func (b *Buffer) Uint64At(off int) (uint64, error) {
	if err := b.checkRange(off, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b.data[off:]), nil
}

// PutUint8At writes a byte at off without changing the logical length.
func (b *Buffer) PutUint8At(off int, v uint8) error {
	if err := b.checkRange(off, 1); err != nil {
		return err
	}
	b.data[off] = v
	return nil
}

// PutUint16At writes 2 big-endian bytes at off.
func (b *Buffer) PutUint16At(off int, v uint16) error {
	if err := b.checkRange(off, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.data[off:], v)
	return nil
}

// PutUint64At writes 8 big-endian bytes at off.
func (b *Buffer) PutUint64At(off int, v uint64) error {
	if err := b.checkRange(off, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(b.data[off:], v)
	return nil
}

// SliceAt returns the sub-slice [off, off+n) of the buffer's storage,
// aliasing it. The range is checked against capacity, not against the
// logical length.
func (b *Buffer) SliceAt(off, n int) ([]byte, error) {
	if err := b.checkRange(off, n); err != nil {
		return nil, err
	}
	return b.data[off : off+n], nil
}

// MemAt returns a read-only view of [off, off+n) without allocating or
// copying. Callers that only need to scan or compare bytes (rather than
// mutate them) should prefer this over SliceAt so downstream code can
// stay agnostic to whether it's working over a buffer, a plain []byte,
// or a string.
func (b *Buffer) MemAt(off, n int) (mem.RO, error) {
	if err := b.checkRange(off, n); err != nil {
		return mem.RO{}, err
	}
	return mem.B(b.data[off : off+n]), nil
}

// Truncate reduces the logical length to n. It is an error to truncate
// to a length greater than the current length.
func (b *Buffer) Truncate(n int) error {
	if n < 0 || n > b.n {
		return fmt.Errorf("wirebuf: truncate(%d) exceeds length %d", n, b.n)
	}
	b.n = n
	return nil
}

// Clone returns an independent copy of b's in-use bytes with the given
// capacity (which must be >= the number of in-use bytes).
func (b *Buffer) Clone(capacity int) (*Buffer, error) {
	if capacity < b.n {
		return nil, ErrOverflow
	}
	nb := New(capacity)
	copy(nb.data, b.data[:b.n])
	nb.n = b.n
	return nb, nil
}
