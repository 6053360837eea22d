package ste

import (
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
)

// PartVerify checks that part is pk's decryption share for gammaG2, that is
// e(BLSPK, γ) == e(g1, part).
func PartVerify(gammaG2 bls12381.G2Affine, pk *PublicKey, g1 bls12381.G1Affine, part bls12381.G2Affine) bool {
	var negG bls12381.G1Affine
	negG.Neg(&g1)
	ok, err := bls12381.PairingCheck(
		[]bls12381.G1Affine{pk.BLSPK, negG},
		[]bls12381.G2Affine{gammaG2, part},
	)
	return err == nil && ok
}

// IsValid checks every hint of pk against the secret-1 G2 commitments for its
// id: e(hint, h) == e(BLSPK, [hint polynomial]_2). It stops at the first
// mismatch. Malformed keys (id out of range, wrong SkLiByZ length) are errors.
func IsValid(pk *PublicKey, helper *ValidityHelper) (bool, error) {
	n := helper.n
	if pk.ID < 0 || pk.ID >= n {
		return false, fmt.Errorf("%w: party id %d not in [0,%d)", ErrDimension, pk.ID, n)
	}
	if len(pk.SkLiByZ) != n {
		return false, fmt.Errorf("%w: %d SkLiByZ entries, want %d", ErrDimension, len(pk.SkLiByZ), n)
	}
	var negPK bls12381.G1Affine
	negPK.Neg(&pk.BLSPK)
	check := func(hint bls12381.G1Affine, com bls12381.G2Affine) bool {
		ok, err := bls12381.PairingCheck(
			[]bls12381.G1Affine{hint, negPK},
			[]bls12381.G2Affine{helper.h, com},
		)
		return err == nil && ok
	}

	id := pk.ID
	if !check(pk.SkLi, helper.Li[id]) ||
		!check(pk.SkLiMinus0, helper.LiMinus0[id]) ||
		!check(pk.SkLiByTau, helper.LiByTau[id]) {
		return false, nil
	}
	for j := 0; j < n; j++ {
		if !check(pk.SkLiByZ[j], helper.LiByZ[id][j]) {
			return false, nil
		}
	}
	return true, nil
}
