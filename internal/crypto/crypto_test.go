package crypto

import (
	"bytes"
	"testing"
)

func TestSealOpen(t *testing.T) {
	k := NewRandomKey()
	if !k.Valid() {
		t.Fatal("new random key is invalid")
	}

	plaintext := []byte("token-1234")
	ct := k.Seal(plaintext, []byte("repo-1"))
	if len(ct) != CiphertextLength(len(plaintext)) {
		t.Errorf("wrong ciphertext length %d", len(ct))
	}
	if bytes.Contains(ct, plaintext) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := k.Open(ct, []byte("repo-1"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}

	if _, err := k.Open(ct, []byte("repo-2")); err != ErrUnauthenticated {
		t.Errorf("wrong additional data: want ErrUnauthenticated, got %v", err)
	}

	ct[len(ct)-1] ^= 0xff
	if _, err := k.Open(ct, []byte("repo-1")); err != ErrUnauthenticated {
		t.Errorf("modified ciphertext: want ErrUnauthenticated, got %v", err)
	}

	if _, err := k.Open([]byte("short"), nil); err == nil {
		t.Error("short ciphertext should fail")
	}
}

func TestZeroKeyInvalid(t *testing.T) {
	var k Key
	if k.Valid() {
		t.Error("zero key should be invalid")
	}
	if _, err := k.Open(make([]byte, Extension), nil); err == nil {
		t.Error("Open with zero key should fail")
	}
}
