package ste

import (
	"context"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/sync/errgroup"

	"github.com/zmlAEQ/silent-threshold/internal/silent/poly"
)

// AggDec recovers the encapsulated key of the ciphertext (sa1, sa2, t) from
// the partial decryptions of the selected parties.
//
// parts and selector are indexed by party id and have length n. Index 0 is the
// dummy party: selector[0] must be set and parts[0] must hold its share, which
// is GammaG2 itself (DummySecretKey().PartialDecrypt). Unselected entries are
// ignored. More than t real parties (ids ≥ 1) must be selected.
func AggDec(ctx context.Context, parts []bls12381.G2Affine, sa1 [2]bls12381.G1Affine, sa2 [6]bls12381.G2Affine, t int, selector []bool, ak *AggregateKey, c *Committee) (bls12381.GT, error) {
	var key bls12381.GT
	n := c.n
	switch {
	case len(parts) != n || len(selector) != n:
		return key, fmt.Errorf("%w: %d shares and %d selector bits for committee of %d", ErrDimension, len(parts), len(selector), n)
	case ak.N != n || len(ak.PK) != n || len(ak.AggSkLiByZ) != n:
		return key, fmt.Errorf("%w: aggregate key does not match committee of %d", ErrDimension, n)
	case !selector[0] || parts[0].IsInfinity():
		return key, fmt.Errorf("%w: dummy party share missing", ErrDimension)
	}
	if err := CheckThreshold(t, n); err != nil {
		return key, err
	}

	// points: where B must vanish, led by ω^0 where B is 1.
	// parties: everyone whose share is used, dummy included.
	points := []fr.Element{c.omega[0]}
	parties := []int{0}
	for i := 1; i < n; i++ {
		if selector[i] {
			parties = append(parties, i)
		} else {
			points = append(points, c.omega[i])
		}
	}
	if responders := len(parties) - 1; responders <= t {
		return key, fmt.Errorf("%w: %d parties selected, need more than %d", ErrThresholdViolation, responders, t)
	}

	b, err := poly.InterpMostlyZero(fr.One(), points)
	if err != nil {
		return key, err
	}
	bEvals := poly.Evaluations(c.domain, b)

	scalars := make([]fr.Element, len(parties))
	scaled := make([]fr.Element, len(parties))
	for k, i := range parties {
		scalars[k] = bEvals[i]
		scaled[k].Mul(&bEvals[i], &c.nInv)
	}
	gather := func(pick func(i int) bls12381.G1Affine) []bls12381.G1Affine {
		out := make([]bls12381.G1Affine, len(parties))
		for k, i := range parties {
			out[k] = pick(i)
		}
		return out
	}

	var (
		bG2                        bls12381.G2Affine
		q0, bhat, apk, qx, qz, qhx bls12381.G1Affine
		sigma                      bls12381.G2Affine
	)
	g, gctx := errgroup.WithContext(ctx)
	run := func(f func() error) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return f()
		})
	}
	run(func() (err error) {
		bG2, err = c.srs.CommitG2(b)
		return err
	})
	run(func() (err error) {
		bm1 := b.Clone()
		one := fr.One()
		bm1[0].Sub(&bm1[0], &one)
		q, _ := bm1.DivideByLinear(c.omega[0])
		q0, err = c.srs.CommitG1(q)
		return err
	})
	run(func() (err error) {
		bhat, err = c.srs.CommitG1(b.ShiftUp(t))
		return err
	})
	run(func() (err error) {
		apk, err = msmG1(gather(func(i int) bls12381.G1Affine { return ak.PK[i].BLSPK }), scaled)
		return err
	})
	run(func() (err error) {
		shares := make([]bls12381.G2Affine, len(parties))
		for k, i := range parties {
			shares[k] = parts[i]
		}
		sigma, err = msmG2(shares, scaled)
		return err
	})
	run(func() (err error) {
		qx, err = msmG1(gather(func(i int) bls12381.G1Affine { return ak.PK[i].SkLiByTau }), scalars)
		return err
	})
	run(func() (err error) {
		qz, err = msmG1(gather(func(i int) bls12381.G1Affine { return ak.AggSkLiByZ[i] }), scalars)
		return err
	})
	run(func() (err error) {
		qhx, err = msmG1(gather(func(i int) bls12381.G1Affine { return ak.PK[i].SkLiMinus0 }), scalars)
		return err
	})
	if err := g.Wait(); err != nil {
		return key, fmt.Errorf("ste: agg_dec: %w", err)
	}

	w1 := [6]bls12381.G1Affine{apk, qz, qx, qhx, bhat, q0}
	for _, k := range []int{0, 1, 2, 4, 5} {
		w1[k].Neg(&w1[k])
	}
	lhs := append(w1[:], sa1[:]...)
	rhs := append(sa2[:], bG2, sigma)
	key, err = bls12381.Pair(lhs, rhs)
	if err != nil {
		return key, fmt.Errorf("ste: agg_dec pairing: %w", err)
	}
	return key, nil
}
