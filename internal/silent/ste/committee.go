// Package ste implements silent threshold encryption over BLS12-381: parties
// derive public keys from a shared KZG reference string without interacting,
// anyone aggregates them into an encryption key, and more than t partial
// decryptions recover the key of a ciphertext.
//
// Party 0 is a dummy whose secret is 1; it always takes part in decryption.
package ste

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"

	"github.com/zmlAEQ/silent-threshold/internal/silent/kzg"
	"github.com/zmlAEQ/silent-threshold/internal/silent/poly"
)

// Committee is the immutable context shared by every operation for a fixed
// committee size n: the reference string, the evaluation domain of size n and
// the n Lagrange basis polynomials. It is safe for concurrent use.
type Committee struct {
	n        int
	srs      *kzg.SRS
	domain   *fft.Domain
	omega    []fr.Element
	lagrange []poly.Polynomial
	nInv     fr.Element
}

// NewCommittee validates srs and precomputes the Lagrange basis for n parties.
// The reference string must provide at least n powers in G1 and n+1 in G2.
func NewCommittee(srs *kzg.SRS, n int) (*Committee, error) {
	if n < 2 || !poly.IsPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: n=%d", ErrInvalidCommitteeSize, n)
	}
	if srs == nil || len(srs.G1) < n || len(srs.G2) < n+1 {
		return nil, fmt.Errorf("%w: committee of %d needs %d G1 and %d G2 powers", ErrSetupInsufficient, n, n, n+1)
	}
	if err := srs.Validate(); err != nil {
		return nil, err
	}
	d := fft.NewDomain(uint64(n))
	c := &Committee{
		n:        n,
		srs:      srs,
		domain:   d,
		omega:    make([]fr.Element, n),
		lagrange: make([]poly.Polynomial, n),
	}
	c.omega[0].SetOne()
	for i := 1; i < n; i++ {
		c.omega[i].Mul(&c.omega[i-1], &d.Generator)
	}
	for i := range c.lagrange {
		c.lagrange[i] = poly.Lagrange(d, i)
	}
	c.nInv.SetUint64(uint64(n))
	c.nInv.Inverse(&c.nInv)
	return c, nil
}

// N is the committee size, dummy party included.
func (c *Committee) N() int { return c.n }

func (c *Committee) SRS() *kzg.SRS { return c.srs }

// Omega returns the i-th domain element ω^i.
func (c *Committee) Omega(i int) fr.Element { return c.omega[i] }

// Lagrange returns a copy of L_i.
func (c *Committee) Lagrange(i int) poly.Polynomial { return c.lagrange[i].Clone() }

// G1 and G2 return the generators the reference string starts with.
func (c *Committee) G1() bls12381.G1Affine { return c.srs.G1[0] }
func (c *Committee) G2() bls12381.G2Affine { return c.srs.G2[0] }

func (c *Committee) checkID(id int) error {
	if id < 0 || id >= c.n {
		return fmt.Errorf("%w: party id %d not in [0,%d)", ErrInvalidCommitteeSize, id, c.n)
	}
	return nil
}

// byZ returns (L_id·L_j − δ·L_id)/Z, Z = x^n − 1, where δ is 1 when id == j.
// The numerator vanishes on the domain so the division is exact.
func (c *Committee) byZ(id, j int) poly.Polynomial {
	li := c.lagrange[id]
	var num poly.Polynomial
	if id == j {
		num = li.Mul(li).Sub(li)
	} else {
		num = li.Mul(c.lagrange[j])
	}
	q, _ := num.DivideByVanishing(c.n)
	return q
}
