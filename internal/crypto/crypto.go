package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// Key is used to seal secrets kept in memory, like credential entries. It is
// generated per process and never written to disk.
type Key struct {
	k [chacha20poly1305.KeySize]byte
}

const (
	nonceSize = chacha20poly1305.NonceSizeX
	macSize   = chacha20poly1305.Overhead

	// Extension is the number of bytes a plaintext is enlarged by sealing it.
	Extension = nonceSize + macSize
)

// ErrUnauthenticated is returned when ciphertext verification has failed.
var ErrUnauthenticated = fmt.Errorf("ciphertext verification failed")

// NewRandomKey returns a new sealing key.
func NewRandomKey() *Key {
	k := &Key{}
	n, err := rand.Read(k.k[:])
	if n != len(k.k) || err != nil {
		panic("unable to read enough random bytes for sealing key")
	}
	return k
}

// Valid tests whether the key k is valid (i.e. not zero).
func (k *Key) Valid() bool {
	if k == nil {
		return false
	}
	for i := 0; i < len(k.k); i++ {
		if k.k[i] != 0 {
			return true
		}
	}
	return false
}

func (k *Key) aead() cipher.AEAD {
	aead, err := chacha20poly1305.NewX(k.k[:])
	if err != nil {
		panic(fmt.Sprintf("unable to create cipher: %v", err))
	}
	return aead
}

// CiphertextLength returns the sealed length of plaintextSize bytes.
func CiphertextLength(plaintextSize int) int {
	return plaintextSize + Extension
}

// Seal encrypts and authenticates plaintext. The additional data is bound to
// the ciphertext and must be passed to Open unchanged. The returned slice
// carries the random nonce as prefix.
func (k *Key) Seal(plaintext, additionalData []byte) []byte {
	if !k.Valid() {
		panic("key is invalid")
	}

	out := make([]byte, nonceSize, CiphertextLength(len(plaintext)))
	if _, err := rand.Read(out); err != nil {
		panic("unable to read enough random bytes for nonce")
	}
	return k.aead().Seal(out, out[:nonceSize], plaintext, additionalData)
}

// Open verifies and decrypts a ciphertext produced by Seal.
func (k *Key) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if !k.Valid() {
		return nil, errors.New("invalid key")
	}

	// check for plausible length
	if len(ciphertext) < Extension {
		return nil, errors.Errorf("trying to decrypt invalid data: ciphertext too short")
	}

	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := k.aead().Open(nil, nonce, ct, additionalData)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return plaintext, nil
}
