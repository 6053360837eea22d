package ste

import (
	"fmt"
	"sort"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// AggregateKey is the encryption key of a committee together with the
// per-party data decryption needs.
type AggregateKey struct {
	N          int
	PK         []PublicKey         // indexed by party id
	AggSkLiByZ []bls12381.G1Affine // AggSkLiByZ[i] = Σ_j PK[j].SkLiByZ[i]
	ASK        bls12381.G1Affine   // Σ_j PK[j].SkLi
	ZG2        bls12381.G2Affine   // [τ^n − 1] in G2
	HMinus1    bls12381.G2Affine   // −h
	EGH        bls12381.GT         // e(g, h)
}

// Aggregate combines exactly one public key per party. The input order does
// not matter; keys are placed by ID.
func Aggregate(pks []PublicKey, c *Committee) (*AggregateKey, error) {
	n := c.n
	if len(pks) != n {
		return nil, fmt.Errorf("%w: %d public keys for committee of %d", ErrDimension, len(pks), n)
	}
	sorted := make([]PublicKey, n)
	copy(sorted, pks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for i := range sorted {
		if sorted[i].ID != i {
			return nil, fmt.Errorf("%w: public key ids must be 0..%d exactly once", ErrDimension, n-1)
		}
		if len(sorted[i].SkLiByZ) != n {
			return nil, fmt.Errorf("%w: public key %d has %d SkLiByZ entries", ErrDimension, i, len(sorted[i].SkLiByZ))
		}
	}

	ak := &AggregateKey{
		N:          n,
		PK:         sorted,
		AggSkLiByZ: make([]bls12381.G1Affine, n),
	}
	li := make([]bls12381.G1Affine, n)
	col := make([]bls12381.G1Affine, n)
	for j := range sorted {
		li[j] = sorted[j].SkLi
	}
	ak.ASK = sumG1(li...)
	for i := 0; i < n; i++ {
		for j := range sorted {
			col[j] = sorted[j].SkLiByZ[i]
		}
		ak.AggSkLiByZ[i] = sumG1(col...)
	}

	h := c.srs.G2[0]
	ak.HMinus1.Neg(&h)
	ak.ZG2.Add(&c.srs.G2[n], &ak.HMinus1)
	egh, err := bls12381.Pair([]bls12381.G1Affine{c.srs.G1[0]}, []bls12381.G2Affine{h})
	if err != nil {
		return nil, fmt.Errorf("ste: pairing e(g,h): %w", err)
	}
	ak.EGH = egh
	return ak, nil
}
