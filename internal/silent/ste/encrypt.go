package ste

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// Ciphertext is the public part of an encryption. EncKey is the encapsulated
// key; it never leaves the encrypting party and is what AggDec recovers.
type Ciphertext struct {
	EncKey  bls12381.GT
	GammaG2 bls12381.G2Affine
	SA1     [2]bls12381.G1Affine
	SA2     [6]bls12381.G2Affine
	T       int
}

// Encrypt encapsulates a fresh key under ak such that more than t real parties
// are needed to recover it. rnd defaults to crypto/rand.
func Encrypt(ak *AggregateKey, t int, c *Committee, rnd io.Reader) (*Ciphertext, error) {
	n := c.n
	if ak.N != n {
		return nil, fmt.Errorf("%w: aggregate key for %d parties, committee of %d", ErrDimension, ak.N, n)
	}
	if err := CheckThreshold(t, n); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	var s [5]fr.Element
	gamma, err := randScalar(rnd)
	if err != nil {
		return nil, err
	}
	for i := range s {
		if s[i], err = randScalar(rnd); err != nil {
			return nil, err
		}
	}

	g := c.srs.G1[0]
	h := c.srs.G2[0]
	hTau := c.srs.G2[1]

	out := &Ciphertext{T: t}
	out.GammaG2 = mulG2(&h, &gamma)

	// SA1 = [s0·ASK + s3·[τ^t] + s4·g, s2·g]
	a := mulG1(&ak.ASK, &s[0])
	b := mulG1(&c.srs.G1[t], &s[3])
	d := mulG1(&g, &s[4])
	out.SA1[0] = sumG1(a, b, d)
	out.SA1[1] = mulG1(&g, &s[2])

	// SA2 = [s0·h + s2·γh, s0·Z, (s0+s1)·[τ], s1·h, s3·h, s4·([τ] − h)]
	s0h := mulG2(&h, &s[0])
	s2gh := mulG2(&out.GammaG2, &s[2])
	out.SA2[0].Add(&s0h, &s2gh)
	out.SA2[1] = mulG2(&ak.ZG2, &s[0])
	var s01 fr.Element
	s01.Add(&s[0], &s[1])
	out.SA2[2] = mulG2(&hTau, &s01)
	out.SA2[3] = mulG2(&h, &s[1])
	out.SA2[4] = mulG2(&h, &s[3])
	var tauMinus1 bls12381.G2Affine
	tauMinus1.Add(&hTau, &ak.HMinus1)
	out.SA2[5] = mulG2(&tauMinus1, &s[4])

	var k big.Int
	s[4].BigInt(&k)
	out.EncKey.Exp(ak.EGH, &k)
	for i := range s {
		s[i].SetZero()
	}
	gamma.SetZero()
	return out, nil
}
