package wirebuf

import "testing"

func TestAppendAndReadBack(t *testing.T) {
	b := New(32)
	if err := b.AppendUint64(0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint32(0xaabbccdd); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint16(0x1234); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint8(0xff); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendBytes([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	u64, err := b.Uint64At(0)
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("Uint64At: %v %x", err, u64)
	}
	u32, err := b.Uint32At(8)
	if err != nil || u32 != 0xaabbccdd {
		t.Fatalf("Uint32At: %v %x", err, u32)
	}
	u16, err := b.Uint16At(12)
	if err != nil || u16 != 0x1234 {
		t.Fatalf("Uint16At: %v %x", err, u16)
	}
	u8, err := b.Uint8At(14)
	if err != nil || u8 != 0xff {
		t.Fatalf("Uint8At: %v %x", err, u8)
	}
	tail, err := b.SliceAt(15, 3)
	if err != nil {
		t.Fatal(err)
	}
	if tail[0] != 1 || tail[1] != 2 || tail[2] != 3 {
		t.Fatalf("SliceAt: got %v", tail)
	}
	if b.Len() != 18 {
		t.Fatalf("Len() = %d, want 18", b.Len())
	}
}

func TestOverflowRejected(t *testing.T) {
	b := New(4)
	if err := b.AppendUint32(1); err != nil {
		t.Fatal(err)
	}
	if err := b.AppendUint8(1); err == nil {
		t.Fatal("expected ErrOverflow appending past capacity")
	}
}

func TestWrapPreservesLengthAndCapacity(t *testing.T) {
	backing := make([]byte, 4, 10)
	backing[0], backing[1], backing[2], backing[3] = 1, 2, 3, 4
	b := Wrap(backing)
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	if b.Cap() != 10 {
		t.Fatalf("Cap() = %d, want 10", b.Cap())
	}
}

func TestTruncateThenReappend(t *testing.T) {
	b := New(8)
	b.AppendBytes([]byte{1, 2, 3, 4})
	if err := b.Truncate(2); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if err := b.AppendBytes([]byte{9, 9}); err != nil {
		t.Fatal(err)
	}
	got := b.Bytes()
	want := []byte{1, 2, 9, 9}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestMemAtAliasesUnderlyingStorage(t *testing.T) {
	b := New(8)
	b.AppendBytes([]byte("abcdefgh"))
	m, err := b.MemAt(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if m.StringCopy() != "cdef" {
		t.Fatalf("MemAt content = %q, want %q", m.StringCopy(), "cdef")
	}
	if err := b.PutUint8At(2, 'X'); err != nil {
		t.Fatal(err)
	}
	if m.At(0) != 'X' {
		t.Fatal("MemAt view does not alias the buffer's storage")
	}
}
