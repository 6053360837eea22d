package envelope

import (
	"bytes"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/stretchr/testify/require"
)

func gtKey(t *testing.T, seed uint64) bls12381.GT {
	t.Helper()
	_, _, g1, g2 := bls12381.Generators()
	k, err := bls12381.Pair([]bls12381.G1Affine{g1}, []bls12381.G2Affine{g2})
	require.NoError(t, err)
	var x bls12381.GT
	x.SetOne()
	for i := uint64(0); i < seed; i++ {
		x.Mul(&x, &k)
	}
	return x
}

func TestSealOpen(t *testing.T) {
	k := gtKey(t, 3)
	msg := []byte("pay 10 to alice")
	aad := []byte("t=4")

	sealed, err := Seal(&k, msg, aad, nil)
	require.NoError(t, err)
	require.Len(t, sealed, 12+len(msg)+16)

	got, err := Open(&k, sealed, aad)
	require.NoError(t, err)
	require.Equal(t, msg, got)

	other := gtKey(t, 4)
	_, err = Open(&other, sealed, aad)
	require.ErrorIs(t, err, ErrOpen)

	_, err = Open(&k, sealed, []byte("t=5"))
	require.ErrorIs(t, err, ErrOpen)

	tampered := bytes.Clone(sealed)
	tampered[len(tampered)-1] ^= 1
	_, err = Open(&k, tampered, aad)
	require.ErrorIs(t, err, ErrOpen)

	_, err = Open(&k, sealed[:20], aad)
	require.ErrorIs(t, err, ErrShortCiphertext)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	a, b := gtKey(t, 2), gtKey(t, 2)
	require.Equal(t, DeriveKey(&a), DeriveKey(&b))
	c := gtKey(t, 5)
	require.NotEqual(t, DeriveKey(&a), DeriveKey(&c))
}

func TestSeal_EmptyMessage(t *testing.T) {
	k := gtKey(t, 1)
	sealed, err := Seal(&k, nil, nil, nil)
	require.NoError(t, err)
	got, err := Open(&k, sealed, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}
