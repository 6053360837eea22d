package ste

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	blst "github.com/supranational/blst/bindings/go"
)

// SecretKey is a party's scalar.
type SecretKey struct {
	Scalar fr.Element
}

// PublicKey is a party's published material: the BLS key and the KZG hints
// that let anyone aggregate keys without interaction.
type PublicKey struct {
	ID         int
	BLSPK      bls12381.G1Affine   // sk·g
	SkLi       bls12381.G1Affine   // [sk·L_id(τ)]
	SkLiMinus0 bls12381.G1Affine   // [sk·(L_id(τ) − L_id(0))]
	SkLiByTau  bls12381.G1Affine   // [sk·(L_id(τ) − L_id(0))/τ]
	SkLiByZ    []bls12381.G1Affine // [sk·(L_id·L_j − δ·L_id)(τ)/Z(τ)] for j in [0,n)
}

var errShortSeed = errors.New("ste: key seed must be at least 32 bytes")

// GenerateSecretKey draws 32 bytes of key material from rnd (crypto/rand when
// nil) and runs the IETF BLS KeyGen on it.
func GenerateSecretKey(rnd io.Reader) (*SecretKey, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	var ikm [32]byte
	if _, err := io.ReadFull(rnd, ikm[:]); err != nil {
		return nil, fmt.Errorf("ste: read key material: %w", err)
	}
	defer zero(ikm[:])
	return SecretKeyFromSeed(ikm[:])
}

// SecretKeyFromSeed deterministically derives a key from at least 32 bytes of
// input keying material.
func SecretKeyFromSeed(ikm []byte) (*SecretKey, error) {
	if len(ikm) < 32 {
		return nil, errShortSeed
	}
	sk := blst.KeyGen(ikm, nil)
	if sk == nil {
		return nil, errShortSeed
	}
	be := sk.Serialize()
	sk.Zeroize()
	defer zero(be)
	out := new(SecretKey)
	if err := out.Scalar.SetBytesCanonical(be); err != nil {
		return nil, fmt.Errorf("ste: keygen output: %w", err)
	}
	return out, nil
}

// DummySecretKey is the fixed secret 1 of party 0.
func DummySecretKey() *SecretKey {
	return &SecretKey{Scalar: fr.One()}
}

// SecretKeyFromBytes parses a 32-byte big-endian canonical scalar.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	out := new(SecretKey)
	if err := out.Scalar.SetBytesCanonical(b); err != nil {
		return nil, fmt.Errorf("ste: secret key: %w", err)
	}
	return out, nil
}

// Bytes is the 32-byte big-endian encoding of the scalar.
func (sk *SecretKey) Bytes() []byte {
	b := sk.Scalar.Bytes()
	return b[:]
}

// BLSPublicKey returns sk·g.
func (sk *SecretKey) BLSPublicKey() bls12381.G1Affine {
	_, _, g1, _ := bls12381.Generators()
	return mulG1(&g1, &sk.Scalar)
}

// PartialDecrypt returns the decryption share sk·γ for a ciphertext whose
// GammaG2 is gammaG2.
func (sk *SecretKey) PartialDecrypt(gammaG2 bls12381.G2Affine) bls12381.G2Affine {
	return mulG2(&gammaG2, &sk.Scalar)
}

// Zeroize clears the scalar.
func (sk *SecretKey) Zeroize() { sk.Scalar.SetZero() }

func mulG1(p *bls12381.G1Affine, s *fr.Element) bls12381.G1Affine {
	var k big.Int
	s.BigInt(&k)
	var out bls12381.G1Affine
	out.ScalarMultiplication(p, &k)
	return out
}

func mulG2(p *bls12381.G2Affine, s *fr.Element) bls12381.G2Affine {
	var k big.Int
	s.BigInt(&k)
	var out bls12381.G2Affine
	out.ScalarMultiplication(p, &k)
	return out
}

// randScalar samples a non-zero scalar from 48 bytes of rnd.
func randScalar(rnd io.Reader) (fr.Element, error) {
	var buf [48]byte
	var e fr.Element
	for {
		if _, err := io.ReadFull(rnd, buf[:]); err != nil {
			return e, fmt.Errorf("ste: read randomness: %w", err)
		}
		e.SetBytes(buf[:])
		if !e.IsZero() {
			return e, nil
		}
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
