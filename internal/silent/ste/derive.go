package ste

import (
	"context"
	"fmt"

	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"golang.org/x/sync/errgroup"

	"github.com/zmlAEQ/silent-threshold/internal/silent/poly"
)

// PublicKeyDeriver computes a party's public key from its secret.
type PublicKeyDeriver interface {
	DerivePublicKey(ctx context.Context, sk *SecretKey, id int) (*PublicKey, error)
}

// Strategy selects a PublicKeyDeriver implementation.
type Strategy string

const (
	// StrategyOnline commits every hint polynomial on demand.
	StrategyOnline Strategy = "online"
	// StrategyTable scales a precomputed LagrangeHelper.
	StrategyTable Strategy = "table"
)

// NewDeriver returns the deriver for strategy. The table strategy builds its
// LagrangeHelper here, which costs one online derivation per party.
func NewDeriver(ctx context.Context, strategy Strategy, c *Committee) (PublicKeyDeriver, error) {
	switch strategy {
	case StrategyOnline, "":
		return &OnlineDeriver{c: c}, nil
	case StrategyTable:
		h, err := NewLagrangeHelper(ctx, c)
		if err != nil {
			return nil, err
		}
		return &TableDeriver{h: h}, nil
	default:
		return nil, fmt.Errorf("ste: unknown deriver strategy %q", strategy)
	}
}

// OnlineDeriver computes all n+4 commitments of a public key directly.
type OnlineDeriver struct {
	c *Committee
}

func NewOnlineDeriver(c *Committee) *OnlineDeriver { return &OnlineDeriver{c: c} }

func (d *OnlineDeriver) DerivePublicKey(ctx context.Context, sk *SecretKey, id int) (*PublicKey, error) {
	if err := d.c.checkID(id); err != nil {
		return nil, err
	}
	var blsPK bls12381.G1Affine
	var hints *hintCommitments[bls12381.G1Affine]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		blsPK = sk.BLSPublicKey()
		return nil
	})
	g.Go(func() error {
		var err error
		hints, err = commitHints(gctx, d.c, id, sk.Scalar, d.c.srs.CommitG1)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ste: derive public key %d: %w", id, err)
	}
	return &PublicKey{
		ID:         id,
		BLSPK:      blsPK,
		SkLi:       hints.Li,
		SkLiMinus0: hints.LiMinus0,
		SkLiByTau:  hints.LiByTau,
		SkLiByZ:    hints.LiByZ,
	}, nil
}

// TableDeriver multiplies the secret-1 commitments of a LagrangeHelper by the
// party's scalar. Its output equals OnlineDeriver's.
type TableDeriver struct {
	h *LagrangeHelper
}

func NewTableDeriver(h *LagrangeHelper) *TableDeriver { return &TableDeriver{h: h} }

func (d *TableDeriver) DerivePublicKey(ctx context.Context, sk *SecretKey, id int) (*PublicKey, error) {
	if id < 0 || id >= d.h.n {
		return nil, fmt.Errorf("%w: party id %d not in [0,%d)", ErrInvalidCommitteeSize, id, d.h.n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &sk.Scalar
	pk := &PublicKey{
		ID:         id,
		BLSPK:      sk.BLSPublicKey(),
		SkLi:       mulG1(&d.h.Li[id], s),
		SkLiMinus0: mulG1(&d.h.LiMinus0[id], s),
		SkLiByTau:  mulG1(&d.h.LiByTau[id], s),
		SkLiByZ:    make([]bls12381.G1Affine, d.h.n),
	}
	for j := range pk.SkLiByZ {
		pk.SkLiByZ[j] = mulG1(&d.h.LiByZ[id][j], s)
	}
	return pk, nil
}

// hintCommitments holds the commitments to a party's hint polynomials, each
// scaled by the same scalar, in either group.
type hintCommitments[P any] struct {
	Li, LiMinus0, LiByTau P
	LiByZ                 []P
}

// commitHints commits s·L_id, s·(L_id − L_id(0)), s·(L_id − L_id(0))/x and the
// n polynomials s·byZ(id, j) as independent errgroup tasks.
func commitHints[P any](ctx context.Context, c *Committee, id int, s fr.Element, commit func(poly.Polynomial) (P, error)) (*hintCommitments[P], error) {
	li := c.lagrange[id].Scale(s)
	out := &hintCommitments[P]{LiByZ: make([]P, c.n)}

	g, gctx := errgroup.WithContext(ctx)
	task := func(dst *P, build func() poly.Polynomial) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := commit(build())
			if err != nil {
				return err
			}
			*dst = v
			return nil
		})
	}
	task(&out.Li, func() poly.Polynomial { return li })
	task(&out.LiMinus0, li.DropConstant)
	task(&out.LiByTau, li.ShiftDown)
	for j := 0; j < c.n; j++ {
		j := j
		task(&out.LiByZ[j], func() poly.Polynomial { return c.byZ(id, j).Scale(s) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
