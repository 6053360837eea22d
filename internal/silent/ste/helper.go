package ste

import (
	"context"
	"fmt"
	"runtime"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/sync/errgroup"

	"github.com/zmlAEQ/silent-threshold/internal/silent/poly"
)

// LagrangeHelper holds, for every party id, the G1 commitments of its hint
// polynomials with secret 1. Read-only once built.
type LagrangeHelper struct {
	n        int
	Li       []bls12381.G1Affine
	LiMinus0 []bls12381.G1Affine
	LiByTau  []bls12381.G1Affine
	LiByZ    [][]bls12381.G1Affine // [id][j]
}

// ValidityHelper is the G2 counterpart of LagrangeHelper, used by IsValid.
type ValidityHelper struct {
	n        int
	h        bls12381.G2Affine
	Li       []bls12381.G2Affine
	LiMinus0 []bls12381.G2Affine
	LiByTau  []bls12381.G2Affine
	LiByZ    [][]bls12381.G2Affine
}

// N is the committee size the helper was built for.
func (h *LagrangeHelper) N() int { return h.n }

func (h *ValidityHelper) N() int { return h.n }

// NewLagrangeHelper runs one secret-1 derivation per party.
func NewLagrangeHelper(ctx context.Context, c *Committee) (*LagrangeHelper, error) {
	hints, err := buildHints(ctx, c, c.srs.CommitG1)
	if err != nil {
		return nil, fmt.Errorf("ste: lagrange helper: %w", err)
	}
	h := &LagrangeHelper{
		n:        c.n,
		Li:       make([]bls12381.G1Affine, c.n),
		LiMinus0: make([]bls12381.G1Affine, c.n),
		LiByTau:  make([]bls12381.G1Affine, c.n),
		LiByZ:    make([][]bls12381.G1Affine, c.n),
	}
	for i, hc := range hints {
		h.Li[i], h.LiMinus0[i], h.LiByTau[i], h.LiByZ[i] = hc.Li, hc.LiMinus0, hc.LiByTau, hc.LiByZ
	}
	return h, nil
}

// NewValidityHelper commits the secret-1 hint polynomials of every party in G2.
func NewValidityHelper(ctx context.Context, c *Committee) (*ValidityHelper, error) {
	hints, err := buildHints(ctx, c, c.srs.CommitG2)
	if err != nil {
		return nil, fmt.Errorf("ste: validity helper: %w", err)
	}
	h := &ValidityHelper{
		n:        c.n,
		h:        c.G2(),
		Li:       make([]bls12381.G2Affine, c.n),
		LiMinus0: make([]bls12381.G2Affine, c.n),
		LiByTau:  make([]bls12381.G2Affine, c.n),
		LiByZ:    make([][]bls12381.G2Affine, c.n),
	}
	for i, hc := range hints {
		h.Li[i], h.LiMinus0[i], h.LiByTau[i], h.LiByZ[i] = hc.Li, hc.LiMinus0, hc.LiByTau, hc.LiByZ
	}
	return h, nil
}

func buildHints[P any](ctx context.Context, c *Committee, commit func(poly.Polynomial) (P, error)) ([]*hintCommitments[P], error) {
	one := fr.One()
	out := make([]*hintCommitments[P], c.n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for id := 0; id < c.n; id++ {
		id := id
		g.Go(func() error {
			hc, err := commitHints(gctx, c, id, one, commit)
			if err != nil {
				return err
			}
			out[id] = hc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
