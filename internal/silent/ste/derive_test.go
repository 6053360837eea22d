package ste

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDerive_OnlineMatchesTable(t *testing.T) {
	c := newCommittee(t, 8)
	ctx := context.Background()
	online, err := NewDeriver(ctx, StrategyOnline, c)
	require.NoError(t, err)
	table, err := NewDeriver(ctx, StrategyTable, c)
	require.NoError(t, err)

	sk, err := GenerateSecretKey(nil)
	require.NoError(t, err)
	for id := 0; id < c.N(); id++ {
		a, err := online.DerivePublicKey(ctx, sk, id)
		require.NoError(t, err)
		b, err := table.DerivePublicKey(ctx, sk, id)
		require.NoError(t, err)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Fatalf("id %d: online and table keys differ (-online +table):\n%s", id, diff)
		}
		require.Len(t, a.SkLiByZ, c.N())
	}
}

func TestDerive_DummyDeterministic(t *testing.T) {
	c := newCommittee(t, 8)
	ctx := context.Background()
	d := NewOnlineDeriver(c)
	a, err := d.DerivePublicKey(ctx, DummySecretKey(), 0)
	require.NoError(t, err)
	b, err := d.DerivePublicKey(ctx, DummySecretKey(), 0)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(a, b))

	// secret 1 reproduces the helper tables
	h, err := NewLagrangeHelper(ctx, c)
	require.NoError(t, err)
	require.True(t, a.SkLi.Equal(&h.Li[0]))
	require.True(t, a.SkLiByTau.Equal(&h.LiByTau[0]))
	require.Empty(t, cmp.Diff(a.SkLiByZ, h.LiByZ[0]))
	g := c.G1()
	require.True(t, a.BLSPK.Equal(&g))
}

func TestDerive_Errors(t *testing.T) {
	c := newCommittee(t, 4)
	ctx := context.Background()
	sk, err := GenerateSecretKey(nil)
	require.NoError(t, err)

	table, err := NewDeriver(ctx, StrategyTable, c)
	require.NoError(t, err)
	for _, d := range []PublicKeyDeriver{NewOnlineDeriver(c), table} {
		for _, id := range []int{-1, 4, 9} {
			_, err := d.DerivePublicKey(ctx, sk, id)
			require.ErrorIs(t, err, ErrInvalidCommitteeSize)
		}
	}

	_, err = NewDeriver(ctx, Strategy("fastest"), c)
	require.Error(t, err)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = NewOnlineDeriver(c).DerivePublicKey(cctx, sk, 1)
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
	_, err = table.DerivePublicKey(cctx, sk, 1)
	require.ErrorIs(t, err, context.Canceled)
	_, err = NewLagrangeHelper(cctx, c)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAggregate_AdditiveAndOrderIndependent(t *testing.T) {
	c := newCommittee(t, 8)
	_, pks := newParties(t, c, NewOnlineDeriver(c))

	ak, err := Aggregate(pks, c)
	require.NoError(t, err)

	// ASK and AggSkLiByZ are plain sums over parties
	var want bls12381.G1Affine
	for i := range pks {
		want.Add(&want, &pks[i].SkLi)
	}
	require.True(t, want.Equal(&ak.ASK))
	for i := 0; i < c.N(); i++ {
		var col bls12381.G1Affine
		for j := range pks {
			col.Add(&col, &pks[j].SkLiByZ[i])
		}
		require.True(t, col.Equal(&ak.AggSkLiByZ[i]), "column %d", i)
	}

	// ZG2 = [τ^n] − h
	var z, hNeg bls12381.G2Affine
	hNeg.Neg(&c.SRS().G2[0])
	z.Add(&c.SRS().G2[c.N()], &hNeg)
	require.True(t, z.Equal(&ak.ZG2))

	shuffled := append([]PublicKey(nil), pks...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	ak2, err := Aggregate(shuffled, c)
	require.NoError(t, err)
	if diff := cmp.Diff(ak, ak2); diff != "" {
		t.Fatalf("aggregate depends on input order:\n%s", diff)
	}
}

func TestAggregate_Dimension(t *testing.T) {
	c := newCommittee(t, 4)
	_, pks := newParties(t, c, NewOnlineDeriver(c))

	_, err := Aggregate(pks[:3], c)
	require.ErrorIs(t, err, ErrDimension)

	dup := append([]PublicKey(nil), pks...)
	dup[3].ID = 2
	_, err = Aggregate(dup, c)
	require.ErrorIs(t, err, ErrDimension)

	short := append([]PublicKey(nil), pks...)
	short[1].SkLiByZ = short[1].SkLiByZ[:2]
	_, err = Aggregate(short, c)
	require.ErrorIs(t, err, ErrDimension)
}

func BenchmarkDeriveOnline16(b *testing.B) {
	c := newCommittee(b, 16)
	sk, _ := GenerateSecretKey(nil)
	d := NewOnlineDeriver(c)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.DerivePublicKey(context.Background(), sk, 5); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDeriveTable16(b *testing.B) {
	c := newCommittee(b, 16)
	sk, _ := GenerateSecretKey(nil)
	h, err := NewLagrangeHelper(context.Background(), c)
	if err != nil {
		b.Fatal(err)
	}
	d := NewTableDeriver(h)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.DerivePublicKey(context.Background(), sk, 5); err != nil {
			b.Fatal(err)
		}
	}
}
