package peer

import (
	"bytes"
	"testing"

	"github.com/meshcore/engine/address"
	"github.com/meshcore/engine/packet"
)

func TestSessionOpenDearmorsUsingCachedSharedSecret(t *testing.T) {
	self, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}
	other, err := address.Generate()
	if err != nil {
		t.Fatal(err)
	}

	shared, err := self.SharedSecret(other)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("frame contents")
	buf, err := packet.Build(packet.MaxPacketSize, 11, self.Address(), other.Address(), packet.VerbFrame, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := packet.Armor(buf, &shared, packet.CipherSalsa2012Poly1305); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(nil)
	s := r.Establish(other)
	decoded, err := s.Open(self, buf)
	if err != nil {
		t.Fatalf("Session.Open failed on a packet armored with the matching shared secret: %v", err)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Fatalf("payload = %q, want %q", decoded.Payload, payload)
	}
}
