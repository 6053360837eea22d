package ste

import (
	"github.com/consensys/gnark-crypto/ecc"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// msmG1 is Σ scalars[i]·points[i]; the empty sum is the identity.
func msmG1(points []bls12381.G1Affine, scalars []fr.Element) (bls12381.G1Affine, error) {
	var out bls12381.G1Affine
	if len(points) == 0 {
		return out, nil
	}
	if _, err := out.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
		return out, err
	}
	return out, nil
}

func msmG2(points []bls12381.G2Affine, scalars []fr.Element) (bls12381.G2Affine, error) {
	var out bls12381.G2Affine
	if len(points) == 0 {
		return out, nil
	}
	if _, err := out.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
		return out, err
	}
	return out, nil
}

// sumG1 adds points in Jacobian coordinates.
func sumG1(points ...bls12381.G1Affine) bls12381.G1Affine {
	var acc bls12381.G1Jac
	for i := range points {
		acc.AddMixed(&points[i])
	}
	var out bls12381.G1Affine
	out.FromJacobian(&acc)
	return out
}
