package ste

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartVerify(t *testing.T) {
	c := newCommittee(t, 4)
	sks, pks := newParties(t, c, NewOnlineDeriver(c))
	ak, err := Aggregate(pks, c)
	require.NoError(t, err)
	ct, err := Encrypt(ak, 1, c, nil)
	require.NoError(t, err)
	other, err := Encrypt(ak, 1, c, nil)
	require.NoError(t, err)

	g1 := c.G1()
	for i := range sks {
		share := sks[i].PartialDecrypt(ct.GammaG2)
		require.True(t, PartVerify(ct.GammaG2, &pks[i], g1, share), "party %d", i)
		require.False(t, PartVerify(other.GammaG2, &pks[i], g1, share), "party %d, foreign gamma", i)
	}
	wrong := sks[2].PartialDecrypt(ct.GammaG2)
	require.False(t, PartVerify(ct.GammaG2, &pks[1], g1, wrong))
}

func TestIsValid(t *testing.T) {
	c := newCommittee(t, 8)
	ctx := context.Background()
	helper, err := NewValidityHelper(ctx, c)
	require.NoError(t, err)
	require.Equal(t, 8, helper.N())

	table, err := NewDeriver(ctx, StrategyTable, c)
	require.NoError(t, err)
	for name, d := range map[string]PublicKeyDeriver{"online": NewOnlineDeriver(c), "table": table} {
		t.Run(name, func(t *testing.T) {
			_, pks := newParties(t, c, d)
			for i := range pks {
				ok, err := IsValid(&pks[i], helper)
				require.NoError(t, err)
				require.True(t, ok, "party %d", i)
			}

			donor := pks[3]
			victim := func() PublicKey {
				pk := pks[5]
				pk.SkLiByZ = append(pk.SkLiByZ[:0:0], pk.SkLiByZ...)
				return pk
			}
			mutations := map[string]func(pk *PublicKey){
				"sk_li":        func(pk *PublicKey) { pk.SkLi = donor.SkLi },
				"sk_li_minus0": func(pk *PublicKey) { pk.SkLiMinus0 = donor.SkLiMinus0 },
				"sk_li_by_tau": func(pk *PublicKey) { pk.SkLiByTau = donor.SkLiByTau },
				"sk_li_by_z_0": func(pk *PublicKey) { pk.SkLiByZ[0] = donor.SkLiByZ[0] },
				"sk_li_by_z_7": func(pk *PublicKey) { pk.SkLiByZ[7] = donor.SkLiByZ[7] },
				"bls_pk":       func(pk *PublicKey) { pk.BLSPK = donor.BLSPK },
				"id":           func(pk *PublicKey) { pk.ID = 6 },
			}
			for mname, mutate := range mutations {
				pk := victim()
				mutate(&pk)
				ok, err := IsValid(&pk, helper)
				require.NoError(t, err, mname)
				require.False(t, ok, mname)
			}
		})
	}
}

func TestIsValid_DimensionErrors(t *testing.T) {
	c := newCommittee(t, 4)
	helper, err := NewValidityHelper(context.Background(), c)
	require.NoError(t, err)
	_, pks := newParties(t, c, NewOnlineDeriver(c))

	pk := pks[1]
	pk.ID = 4
	_, err = IsValid(&pk, helper)
	require.ErrorIs(t, err, ErrDimension)

	pk = pks[1]
	pk.SkLiByZ = pk.SkLiByZ[:3]
	_, err = IsValid(&pk, helper)
	require.ErrorIs(t, err, ErrDimension)
}
