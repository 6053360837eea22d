// Package envelope encrypts payloads under the GT key that silent threshold
// encryption encapsulates.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"lukechampine.com/blake3"
)

// kdfContext is the BLAKE3 derive-key context string; changing it changes
// every derived key.
const kdfContext = "silent-threshold envelope v1 aes-256-gcm key"

// NonceSize is the length of the nonce that prefixes every sealed payload.
const NonceSize = 12

var (
	ErrShortCiphertext = errors.New("envelope: ciphertext too short")
	ErrOpen            = errors.New("envelope: authentication failed")
)

// DeriveKey maps a GT element to a 32-byte AES key.
func DeriveKey(k *bls12381.GT) [32]byte {
	b := k.Bytes()
	var out [32]byte
	blake3.DeriveKey(out[:], kdfContext, b[:])
	return out
}

// Seal encrypts msg under the key derived from k. The output is
// nonce(12) || AES-256-GCM(msg, aad). rnd defaults to crypto/rand.
func Seal(k *bls12381.GT, msg, aad []byte, rnd io.Reader) ([]byte, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	gcm, err := newGCM(k)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rnd, nonce); err != nil {
		return nil, err
	}
	ct := gcm.Seal(nil, nonce, msg, aad)
	out := make([]byte, 0, len(nonce)+len(ct))
	out = append(out, nonce...)
	out = append(out, ct...)
	return out, nil
}

// Open reverses Seal.
func Open(k *bls12381.GT, sealed, aad []byte) ([]byte, error) {
	gcm, err := newGCM(k)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(sealed) < ns+gcm.Overhead() {
		return nil, ErrShortCiphertext
	}
	msg, err := gcm.Open(nil, sealed[:ns], sealed[ns:], aad)
	if err != nil {
		return nil, ErrOpen
	}
	return msg, nil
}

func newGCM(k *bls12381.GT) (cipher.AEAD, error) {
	key := DeriveKey(k)
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
