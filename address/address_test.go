package address

import "testing"

func TestFromBytesRoundTrip(t *testing.T) {
	want := Address(0x0102030405)
	b := want.Bytes()
	got, err := FromBytes(b[:])
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("got %x want %x", got, want)
	}
}

func TestFromBytesRejectsReservedTopByte(t *testing.T) {
	b := []byte{0xff, 1, 2, 3, 4}
	if _, err := FromBytes(b); err == nil {
		t.Fatal("expected error for reserved top byte")
	}
}

func TestFromBytesRejectsZero(t *testing.T) {
	b := []byte{0, 0, 0, 0, 0}
	if _, err := FromBytes(b); err == nil {
		t.Fatal("expected error for zero address")
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	a := Address(0xdeadbeef42)
	s := a.String()
	got, err := ParseString(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Fatalf("got %x want %x", got, a)
	}
}

func TestNetworkPrefix(t *testing.T) {
	a := Address(0x1122334455)
	got := a.NetworkPrefix()
	want := uint64(0x1122334455) << 24
	if got != want {
		t.Fatalf("got %x want %x", got, want)
	}
}
