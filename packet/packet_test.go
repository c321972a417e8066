package packet

import (
	"bytes"
	"testing"
	"time"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/wirebuf"
)

func testSharedSecret(b byte) *[32]byte {
	var s [32]byte
	for i := range s {
		s[i] = b + byte(i)
	}
	return &s
}

func TestArmorDearmorRoundTrip(t *testing.T) {
	shared := testSharedSecret(1)
	dest := address.Address(0x0102030405)
	src := address.Address(0x1122334455)
	payload := []byte("hello, world")

	buf, err := Build(MaxPacketSize, 42, dest, src, VerbFrame, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}
	if err := Dearmor(buf, shared); err != nil {
		t.Fatalf("Dearmor rejected a packet Armor just produced: %v", err)
	}
	decoded, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Verb != VerbFrame {
		t.Fatalf("verb = %v, want VerbFrame", decoded.Verb)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("payload = %q, want %q", decoded.Payload, payload)
	}
	if decoded.Header.Dest != dest || decoded.Header.Src != src {
		t.Fatal("header addresses did not survive the round trip")
	}
}

func TestDearmorRejectsTamperedPayload(t *testing.T) {
	shared := testSharedSecret(2)
	dest := address.Address(1)
	src := address.Address(2)
	buf, err := Build(MaxPacketSize, 7, dest, src, VerbFrame, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	b[len(b)-1] ^= 0xff

	if err := Dearmor(buf, shared); err != ErrDrop {
		t.Fatalf("Dearmor on tampered packet: %v, want ErrDrop", err)
	}
}

func TestDearmorRejectsWrongKey(t *testing.T) {
	shared := testSharedSecret(3)
	wrong := testSharedSecret(4)
	dest := address.Address(1)
	src := address.Address(2)
	buf, err := Build(MaxPacketSize, 7, dest, src, VerbFrame, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}
	if err := Dearmor(buf, wrong); err != ErrDrop {
		t.Fatalf("Dearmor with wrong key: %v, want ErrDrop", err)
	}
}

func TestIncrementHopPreservesMAC(t *testing.T) {
	shared := testSharedSecret(5)
	dest := address.Address(1)
	src := address.Address(2)
	buf, err := Build(MaxPacketSize, 99, dest, src, VerbFrame, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := IncrementHop(buf); err != nil {
			t.Fatal(err)
		}
	}
	decoded, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Header.Hops() != 3 {
		t.Fatalf("Hops() = %d, want 3", decoded.Header.Hops())
	}
	if err := Dearmor(buf, shared); err != nil {
		t.Fatalf("Dearmor rejected a packet whose hop count was incremented: %v", err)
	}
}

func TestIncrementHopSaturates(t *testing.T) {
	shared := testSharedSecret(6)
	buf, err := Build(MaxPacketSize, 1, address.Address(1), address.Address(2), VerbFrame, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherNone); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < maxHop+5; i++ {
		if err := IncrementHop(buf); err != nil {
			t.Fatal(err)
		}
	}
	decoded, err := Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Header.Hops() != maxHop {
		t.Fatalf("Hops() = %d, want saturated at %d", decoded.Header.Hops(), maxHop)
	}
}

func TestCompressionAppliedOnlyWhenItHelps(t *testing.T) {
	dest := address.Address(1)
	src := address.Address(2)

	compressible := bytes.Repeat([]byte("abcdefgh"), 64)
	buf, err := Build(MaxPacketSize, 1, dest, src, VerbFrame, compressible)
	if err != nil {
		t.Fatal(err)
	}
	origLen := buf.Len()
	compressed, err := MaybeCompress(buf, PayloadOffset)
	if err != nil {
		t.Fatal(err)
	}
	if !compressed {
		t.Fatal("expected a long, highly repetitive payload to compress")
	}
	if buf.Len() >= origLen {
		t.Fatalf("compressed length %d not smaller than original %d", buf.Len(), origLen)
	}

	if err := SetCompressed(buf, true); err != nil {
		t.Fatal(err)
	}
	if err := Uncompress(buf, PayloadOffset); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != origLen {
		t.Fatalf("decompressed length = %d, want %d", buf.Len(), origLen)
	}
}

func TestOpenDearmorsDecompressesAndDecodes(t *testing.T) {
	shared := testSharedSecret(3)
	dest := address.Address(0x0102030405)
	src := address.Address(0x1122334455)
	payload := bytes.Repeat([]byte("abcdefgh"), 64)

	buf, err := Build(MaxPacketSize, 7, dest, src, VerbFrame, payload)
	if err != nil {
		t.Fatal(err)
	}
	compressed, err := MaybeCompress(buf, PayloadOffset)
	if err != nil {
		t.Fatal(err)
	}
	if !compressed {
		t.Fatal("expected a long, highly repetitive payload to compress")
	}
	if err := SetCompressed(buf, true); err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}

	decoded, err := Open(buf, shared)
	if err != nil {
		t.Fatalf("Open failed on a packet Armor just produced: %v", err)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("payload = %q, want %q", decoded.Payload, payload)
	}
}

func TestCompressionSkipsSmallPayload(t *testing.T) {
	dest := address.Address(1)
	src := address.Address(2)
	buf, err := Build(MaxPacketSize, 1, dest, src, VerbFrame, []byte("short"))
	if err != nil {
		t.Fatal(err)
	}
	compressed, err := MaybeCompress(buf, PayloadOffset)
	if err != nil {
		t.Fatal(err)
	}
	if compressed {
		t.Fatal("expected a short payload not to be compressed")
	}
}

func TestFragmentRoundTrip(t *testing.T) {
	shared := testSharedSecret(7)
	dest := address.Address(1)
	src := address.Address(2)
	payload := bytes.Repeat([]byte{0xab}, 500)

	buf, err := Build(MaxPacketSize, 0x1234, dest, src, VerbFrame, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}
	original := append([]byte(nil), buf.Bytes()...)

	frags, err := Split(buf, 128)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) < 2 {
		t.Fatalf("expected multiple fragments, got %d", len(frags))
	}

	r := NewReassembler(time.Second)
	defer r.Stop()

	id, err := FragmentPacketID(frags[0])
	if err != nil {
		t.Fatal(err)
	}

	complete, err := r.AddHead(id, frags[0])
	if err != nil {
		t.Fatal(err)
	}
	if complete != nil {
		t.Fatal("reassembly completed before all fragments arrived")
	}

	// Feed tail fragments out of order to exercise reordering tolerance.
	tails := frags[1:]
	order := make([]int, len(tails))
	for i := range order {
		order[i] = len(tails) - 1 - i
	}
	for _, i := range order {
		total, index, err := ParseFragmentCounters(tails[i])
		if err != nil {
			t.Fatal(err)
		}
		c, err := r.AddTail(id, index, total, tails[i])
		if err != nil {
			t.Fatal(err)
		}
		if c != nil {
			complete = c
		}
	}
	// Duplicate the last one fed in; must not disturb completion.
	last := tails[order[len(order)-1]]
	total, index, err := ParseFragmentCounters(last)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddTail(id, index, total, last); err != nil {
		t.Fatal(err)
	}
	if complete == nil {
		t.Fatal("expected reassembly to complete after all fragments delivered")
	}
	if !bytes.Equal(complete, original) {
		t.Fatal("reassembled packet does not match the original armored bytes")
	}

	reassembled := wirebuf.Wrap(complete)
	if err := Dearmor(reassembled, shared); err != nil {
		t.Fatalf("Dearmor rejected the reassembled packet: %v", err)
	}
}

func TestSplitReturnsWholePacketWhenItFits(t *testing.T) {
	shared := testSharedSecret(8)
	buf, err := Build(MaxPacketSize, 1, address.Address(1), address.Address(2), VerbFrame, []byte("small"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherNone); err != nil {
		t.Fatal(err)
	}
	frags, err := Split(buf, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 1 {
		t.Fatalf("len(frags) = %d, want 1", len(frags))
	}
	if !bytes.Equal(frags[0], buf.Bytes()) {
		t.Fatal("single fragment does not match the original packet")
	}
}

func TestIsFragmentDistinguishesHeadAndTail(t *testing.T) {
	shared := testSharedSecret(9)
	buf, err := Build(MaxPacketSize, 1, address.Address(1), address.Address(2), VerbFrame, bytes.Repeat([]byte{1}, 500))
	if err != nil {
		t.Fatal(err)
	}
	if err := Armor(buf, shared, CipherNone); err != nil {
		t.Fatal(err)
	}
	frags, err := Split(buf, 128)
	if err != nil {
		t.Fatal(err)
	}
	if IsFragment(frags[0]) {
		t.Fatal("head fragment misidentified as a tail fragment")
	}
	for _, f := range frags[1:] {
		if !IsFragment(f) {
			t.Fatal("tail fragment not recognized as a fragment")
		}
	}
}
