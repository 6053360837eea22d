package poly

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
	"github.com/stretchr/testify/require"
)

func randPoly(t testing.TB, n int) Polynomial {
	t.Helper()
	p := make(Polynomial, n)
	for i := range p {
		if _, err := p[i].SetRandom(); err != nil {
			t.Fatalf("rand: %v", err)
		}
	}
	return p
}

func elem(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

func TestLagrange_UnitOnDomain(t *testing.T) {
	for _, n := range []uint64{2, 4, 8, 16} {
		d := fft.NewDomain(n)
		for i := 0; i < int(n); i++ {
			l := Lagrange(d, i)
			require.LessOrEqual(t, l.Degree(), int(n)-1)
			var w fr.Element
			w.SetOne()
			for j := 0; j < int(n); j++ {
				got := l.Eval(w)
				if i == j {
					require.True(t, got.IsOne(), "L_%d(w^%d) != 1 (n=%d)", i, j, n)
				} else {
					require.True(t, got.IsZero(), "L_%d(w^%d) != 0 (n=%d)", i, j, n)
				}
				w.Mul(&w, &d.Generator)
			}
		}
	}
}

func TestInterpMostlyZero(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		p, err := InterpMostlyZero(elem(7), nil)
		require.NoError(t, err)
		require.Equal(t, 0, p.Degree())
		require.True(t, p[0].IsOne())
	})
	t.Run("vanishes_and_scales", func(t *testing.T) {
		points := []fr.Element{elem(3), elem(5), elem(11), elem(13)}
		eval := elem(42)
		p, err := InterpMostlyZero(eval, points)
		require.NoError(t, err)
		require.Equal(t, len(points)-1, p.Degree())
		at0 := p.Eval(points[0])
		require.True(t, at0.Equal(&eval))
		for _, x := range points[1:] {
			v := p.Eval(x)
			require.True(t, v.IsZero())
		}
	})
	t.Run("repeated_point", func(t *testing.T) {
		_, err := InterpMostlyZero(elem(1), []fr.Element{elem(3), elem(5), elem(3)})
		require.ErrorIs(t, err, ErrDuplicatePoint)
	})
}

func TestMul_FFTMatchesNaive(t *testing.T) {
	for _, tc := range []struct{ a, b int }{{1, 1}, {3, 70}, {64, 64}, {100, 130}} {
		p, q := randPoly(t, tc.a), randPoly(t, tc.b)
		got := p.Mul(q)
		want := mulNaive(p, q)
		require.Equal(t, len(want), len(got))
		for i := range want {
			require.True(t, want[i].Equal(&got[i]), "coef %d (%d x %d)", i, tc.a, tc.b)
		}
		var x fr.Element
		_, _ = x.SetRandom()
		pv, qv, gv := p.Eval(x), q.Eval(x), got.Eval(x)
		pv.Mul(&pv, &qv)
		require.True(t, pv.Equal(&gv))
	}
}

func TestDivideByVanishing(t *testing.T) {
	const n = 8
	p := randPoly(t, 2*n+3)
	q, r := p.DivideByVanishing(n)
	require.Less(t, r.Degree(), n)

	// q·(x^n − 1) + r == p
	z := make(Polynomial, n+1)
	z[n].SetOne()
	z[0].Neg(&z[n])
	back := q.Mul(z).Add(r).Trim()
	want := p.Trim()
	require.Equal(t, len(want), len(back))
	for i := range want {
		require.True(t, want[i].Equal(&back[i]))
	}

	short := randPoly(t, n)
	q, r = short.DivideByVanishing(n)
	require.Equal(t, -1, q.Degree())
	require.Equal(t, short.Degree(), r.Degree())
}

func TestDivideByLinear(t *testing.T) {
	p := randPoly(t, 12)
	a := elem(9)
	q, rem := p.DivideByLinear(a)
	want := p.Eval(a)
	require.True(t, rem.Equal(&want))

	var x fr.Element
	_, _ = x.SetRandom()
	// p(x) = q(x)(x − a) + rem
	qv := q.Eval(x)
	var xa fr.Element
	xa.Sub(&x, &a)
	qv.Mul(&qv, &xa)
	qv.Add(&qv, &rem)
	pv := p.Eval(x)
	require.True(t, qv.Equal(&pv))
}

func TestShifts(t *testing.T) {
	p := Polynomial{elem(4), elem(5), elem(6)}

	up := p.ShiftUp(2)
	require.Equal(t, 4, up.Degree())
	require.True(t, up[0].IsZero() && up[1].IsZero())

	down := p.ShiftDown()
	require.Equal(t, Polynomial{elem(5), elem(6)}, down)
	require.Equal(t, Polynomial{}, Polynomial{elem(1)}.ShiftDown())

	dc := p.DropConstant()
	require.True(t, dc[0].IsZero())
	require.True(t, p[0].Equal(ptr(elem(4))), "DropConstant must not mutate")
}

func ptr(e fr.Element) *fr.Element { return &e }

func TestEvaluationsRoundTrip(t *testing.T) {
	d := fft.NewDomain(16)
	p := randPoly(t, 16)
	evals := Evaluations(d, p)
	var w fr.Element
	w.SetOne()
	for i := range evals {
		v := p.Eval(w)
		require.True(t, v.Equal(&evals[i]), "eval %d", i)
		w.Mul(&w, &d.Generator)
	}
	back := Interpolate(d, evals)
	for i := range p {
		require.True(t, p[i].Equal(&back[i]))
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	cases := map[int]bool{0: false, 1: true, 2: true, 3: false, 16: true, 24: false, -4: false}
	for n, want := range cases {
		require.Equal(t, want, IsPowerOfTwo(n), "n=%d", n)
	}
}

func BenchmarkMul256(b *testing.B) {
	p, q := randPoly(b, 256), randPoly(b, 256)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Mul(q)
	}
}
