package ztcrypto

import "testing"

func TestSumVerifyRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(200 - i)
	}
	msg := []byte("a message that is more than one block long, for good measure")

	mac := Sum(msg, &key)
	if !Verify(mac, msg, &key) {
		t.Fatal("Verify rejected a MAC Sum just produced")
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i + 1)
	}
	msg := []byte("original message")
	mac := Sum(msg, &key)

	tampered := append([]byte(nil), msg...)
	tampered[0] ^= 1
	if Verify(mac, tampered, &key) {
		t.Fatal("Verify accepted a tampered message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	var key1, key2 [32]byte
	key2[0] = 1
	msg := []byte("hello")
	mac := Sum(msg, &key1)
	if Verify(mac, msg, &key2) {
		t.Fatal("Verify accepted a MAC under the wrong key")
	}
}
