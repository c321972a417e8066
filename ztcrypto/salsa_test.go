package ztcrypto

import "testing"

func TestCipherRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	const nonce = 0x0102030405060708

	plaintext := make([]byte, 137)
	for i := range plaintext {
		plaintext[i] = byte(i * 3)
	}

	enc := NewCipher12(&key, nonce)
	ciphertext := make([]byte, len(plaintext))
	enc.XORKeyStream(ciphertext, plaintext)

	dec := NewCipher12(&key, nonce)
	decrypted := make([]byte, len(plaintext))
	dec.XORKeyStream(decrypted, ciphertext)

	for i := range plaintext {
		if decrypted[i] != plaintext[i] {
			t.Fatalf("byte %d: got %x want %x", i, decrypted[i], plaintext[i])
		}
	}
}

func TestCipherStreamsAcrossBlockBoundary(t *testing.T) {
	var key [32]byte
	c := NewCipher12(&key, 0)
	full := make([]byte, 200)
	c.Bytes(full)

	c2 := NewCipher12(&key, 0)
	a := make([]byte, 70)
	b := make([]byte, 130)
	c2.Bytes(a)
	c2.Bytes(b)

	for i, v := range a {
		if full[i] != v {
			t.Fatalf("byte %d mismatch in first chunk", i)
		}
	}
	for i, v := range b {
		if full[70+i] != v {
			t.Fatalf("byte %d mismatch in second chunk", i)
		}
	}
}

func TestCipher12And20Differ(t *testing.T) {
	var key [32]byte
	a := make([]byte, 64)
	b := make([]byte, 64)
	NewCipher12(&key, 0).Bytes(a)
	NewCipher20(&key, 0).Bytes(b)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("12-round and 20-round keystreams should differ")
	}
}
