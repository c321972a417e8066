package address

import "testing"

func TestGenerateProducesValidIdentity(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	if !id.Valid() {
		t.Fatal("freshly generated identity failed its own proof-of-work check")
	}
	if !id.HasPrivate() {
		t.Fatal("Generate should produce an identity with a private key")
	}
}

func TestStringParseRoundTrip(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	s := id.String()
	parsed, err := ParseIdentity(s)
	if err != nil {
		t.Fatalf("ParseIdentity(%q): %v", s, err)
	}
	if !parsed.PublicEqual(id) {
		t.Fatal("round-tripped identity has different public keys")
	}
	if !parsed.HasPrivate() {
		t.Fatal("round-tripped identity lost its private key")
	}
}

func TestParseIdentityRejectsTamperedAddress(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	s := id.String()
	// Flip a hex digit in the address prefix; the proof-of-work check
	// must catch the mismatch between the claimed address and the
	// digest of the public keys.
	tampered := []byte(s)
	if tampered[0] == '0' {
		tampered[0] = '1'
	} else {
		tampered[0] = '0'
	}
	if _, err := ParseIdentity(string(tampered)); err == nil {
		t.Fatal("expected proof-of-work failure for tampered address")
	}
}

func TestSignVerify(t *testing.T) {
	id, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("a message to sign")
	sig, err := id.Sign(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !id.Verify(msg, sig) {
		t.Fatal("Verify rejected a signature Sign just produced")
	}
	if id.Verify([]byte("different message"), sig) {
		t.Fatal("Verify accepted a signature over the wrong message")
	}
}

func TestSharedSecretSymmetric(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	ssA, err := a.SharedSecret(b)
	if err != nil {
		t.Fatal(err)
	}
	ssB, err := b.SharedSecret(a)
	if err != nil {
		t.Fatal(err)
	}
	if ssA != ssB {
		t.Fatal("shared secret is not symmetric")
	}
}
