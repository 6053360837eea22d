// Package kzg holds the powers-of-tau reference string and the KZG commitment
// helpers built on it.
package kzg

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/zmlAEQ/silent-threshold/internal/silent/poly"
)

var (
	// ErrSetupInsufficient is returned when a polynomial has more coefficients
	// than the reference string has powers.
	ErrSetupInsufficient = errors.New("kzg: setup insufficient")
	// ErrInvalidSRS is returned by Validate and the decoders.
	ErrInvalidSRS = errors.New("kzg: invalid srs")
)

// SRS is a powers-of-tau string: G1[i] = τ^i·g and G2[i] = τ^i·h.
// The two vectors may have different lengths.
type SRS struct {
	G1 []bls12381.G1Affine
	G2 []bls12381.G2Affine
}

// Setup samples τ from rnd (crypto/rand when nil) and returns powers
// 0..maxDegree in both groups. It is meant for development and tests; real
// deployments load a ceremony transcript.
func Setup(maxDegree int, rnd io.Reader) (*SRS, error) {
	if maxDegree < 1 {
		return nil, fmt.Errorf("kzg: max degree %d: %w", maxDegree, ErrInvalidSRS)
	}
	tau, err := randScalar(rnd)
	if err != nil {
		return nil, err
	}
	pows := powers(tau, maxDegree+1)
	_, _, g1, g2 := bls12381.Generators()
	return &SRS{
		G1: bls12381.BatchScalarMultiplicationG1(&g1, pows),
		G2: bls12381.BatchScalarMultiplicationG2(&g2, pows),
	}, nil
}

// Update re-randomises s in place with a fresh secret τ', turning every power
// τ^i into (ττ')^i.
func (s *SRS) Update(rnd io.Reader) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t, err := randScalar(rnd)
	if err != nil {
		return err
	}
	pows := powers(t, max(len(s.G1), len(s.G2)))
	var k big.Int
	for i := range s.G1 {
		pows[i].BigInt(&k)
		s.G1[i].ScalarMultiplication(&s.G1[i], &k)
	}
	for i := range s.G2 {
		pows[i].BigInt(&k)
		s.G2[i].ScalarMultiplication(&s.G2[i], &k)
	}
	return nil
}

// MaxDegree is the highest degree CommitG1 accepts.
func (s *SRS) MaxDegree() int { return len(s.G1) - 1 }

// MaxDegreeG2 is the highest degree CommitG2 accepts.
func (s *SRS) MaxDegreeG2() int { return len(s.G2) - 1 }

// Validate checks the generators and that both vectors are geometric
// sequences with the same ratio, using one random linear combination per
// group.
func (s *SRS) Validate() error {
	if len(s.G1) < 2 || len(s.G2) < 2 {
		return fmt.Errorf("%w: need at least two powers per group", ErrInvalidSRS)
	}
	_, _, g1, g2 := bls12381.Generators()
	if !s.G1[0].Equal(&g1) || !s.G2[0].Equal(&g2) {
		return fmt.Errorf("%w: first powers are not the generators", ErrInvalidSRS)
	}

	r := make([]fr.Element, max(len(s.G1), len(s.G2))-1)
	for i := range r {
		if _, err := r[i].SetRandom(); err != nil {
			return err
		}
	}

	// e(Σ r_i·G1[i+1], h) == e(Σ r_i·G1[i], τh)
	m := len(s.G1) - 1
	var hi, lo bls12381.G1Affine
	if _, err := hi.MultiExp(s.G1[1:], r[:m], ecc.MultiExpConfig{}); err != nil {
		return err
	}
	if _, err := lo.MultiExp(s.G1[:m], r[:m], ecc.MultiExpConfig{}); err != nil {
		return err
	}
	lo.Neg(&lo)
	ok, err := bls12381.PairingCheck([]bls12381.G1Affine{hi, lo}, []bls12381.G2Affine{g2, s.G2[1]})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: G1 powers inconsistent", ErrInvalidSRS)
	}

	// e(g, Σ r_i·G2[i+1]) == e(τg, Σ r_i·G2[i])
	m = len(s.G2) - 1
	var hi2, lo2 bls12381.G2Affine
	if _, err := hi2.MultiExp(s.G2[1:], r[:m], ecc.MultiExpConfig{}); err != nil {
		return err
	}
	if _, err := lo2.MultiExp(s.G2[:m], r[:m], ecc.MultiExpConfig{}); err != nil {
		return err
	}
	var negTau bls12381.G1Affine
	negTau.Neg(&s.G1[1])
	ok, err = bls12381.PairingCheck([]bls12381.G1Affine{g1, negTau}, []bls12381.G2Affine{hi2, lo2})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: G2 powers inconsistent", ErrInvalidSRS)
	}
	return nil
}

// CommitG1 returns Σ p_i·G1[i].
func (s *SRS) CommitG1(p poly.Polynomial) (bls12381.G1Affine, error) {
	var out bls12381.G1Affine
	p = p.Trim()
	if len(p) == 0 {
		return out, nil
	}
	if len(p) > len(s.G1) {
		return out, fmt.Errorf("%w: degree %d > %d in G1", ErrSetupInsufficient, len(p)-1, s.MaxDegree())
	}
	if _, err := out.MultiExp(s.G1[:len(p)], p, ecc.MultiExpConfig{}); err != nil {
		return out, err
	}
	return out, nil
}

// CommitG2 returns Σ p_i·G2[i].
func (s *SRS) CommitG2(p poly.Polynomial) (bls12381.G2Affine, error) {
	var out bls12381.G2Affine
	p = p.Trim()
	if len(p) == 0 {
		return out, nil
	}
	if len(p) > len(s.G2) {
		return out, fmt.Errorf("%w: degree %d > %d in G2", ErrSetupInsufficient, len(p)-1, s.MaxDegreeG2())
	}
	if _, err := out.MultiExp(s.G2[:len(p)], p, ecc.MultiExpConfig{}); err != nil {
		return out, err
	}
	return out, nil
}

func randScalar(rnd io.Reader) (fr.Element, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	var buf [48]byte
	var e fr.Element
	if _, err := io.ReadFull(rnd, buf[:]); err != nil {
		return e, fmt.Errorf("kzg: read randomness: %w", err)
	}
	e.SetBytes(buf[:])
	if e.IsZero() {
		return e, errors.New("kzg: zero secret")
	}
	return e, nil
}

func powers(x fr.Element, n int) []fr.Element {
	out := make([]fr.Element, n)
	out[0].SetOne()
	for i := 1; i < n; i++ {
		out[i].Mul(&out[i-1], &x)
	}
	return out
}
