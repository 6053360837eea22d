// Package poly implements dense univariate polynomials over the BLS12-381
// scalar field together with the Lagrange-basis helpers used by the committee.
//
// Coefficients are stored low degree first: p[i] is the coefficient of x^i.
package poly

import (
	"errors"
	"math/bits"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/fft"
)

// Polynomial is a coefficient vector, lowest degree first.
type Polynomial []fr.Element

// ErrDuplicatePoint is returned by InterpMostlyZero when points[0] also
// appears among the roots.
var ErrDuplicatePoint = errors.New("poly: interpolation point repeats a root")

// schoolbookCutoff is the operand length below which Mul skips the FFT.
const schoolbookCutoff = 64

// Constant returns the degree-0 polynomial c.
func Constant(c fr.Element) Polynomial { return Polynomial{c} }

// Degree returns the index of the highest non-zero coefficient, or -1 for the
// zero polynomial.
func (p Polynomial) Degree() int {
	for i := len(p) - 1; i >= 0; i-- {
		if !p[i].IsZero() {
			return i
		}
	}
	return -1
}

// Trim drops trailing zero coefficients. The zero polynomial trims to length 0.
func (p Polynomial) Trim() Polynomial { return p[:p.Degree()+1] }

func (p Polynomial) Clone() Polynomial {
	out := make(Polynomial, len(p))
	copy(out, p)
	return out
}

// Eval evaluates p at x with Horner's rule.
func (p Polynomial) Eval(x fr.Element) fr.Element {
	var acc fr.Element
	for i := len(p) - 1; i >= 0; i-- {
		acc.Mul(&acc, &x)
		acc.Add(&acc, &p[i])
	}
	return acc
}

func (p Polynomial) Scale(c fr.Element) Polynomial {
	out := make(Polynomial, len(p))
	for i := range p {
		out[i].Mul(&p[i], &c)
	}
	return out
}

func (p Polynomial) Add(q Polynomial) Polynomial {
	out := make(Polynomial, max(len(p), len(q)))
	copy(out, p)
	for i := range q {
		out[i].Add(&out[i], &q[i])
	}
	return out
}

func (p Polynomial) Sub(q Polynomial) Polynomial {
	out := make(Polynomial, max(len(p), len(q)))
	copy(out, p)
	for i := range q {
		out[i].Sub(&out[i], &q[i])
	}
	return out
}

// Mul returns p·q. Short operands use the quadratic algorithm, longer ones go
// through an FFT of the next power-of-two size.
func (p Polynomial) Mul(q Polynomial) Polynomial {
	p, q = p.Trim(), q.Trim()
	if len(p) == 0 || len(q) == 0 {
		return Polynomial{}
	}
	if len(p) < schoolbookCutoff || len(q) < schoolbookCutoff {
		return mulNaive(p, q)
	}
	outLen := len(p) + len(q) - 1
	size := nextPow2(uint64(outLen))
	d := fft.NewDomain(size)
	a := Evaluations(d, p)
	b := Evaluations(d, q)
	for i := range a {
		a[i].Mul(&a[i], &b[i])
	}
	return Interpolate(d, a)[:outLen]
}

func mulNaive(p, q Polynomial) Polynomial {
	out := make(Polynomial, len(p)+len(q)-1)
	var t fr.Element
	for i := range p {
		if p[i].IsZero() {
			continue
		}
		for j := range q {
			t.Mul(&p[i], &q[j])
			out[i+j].Add(&out[i+j], &t)
		}
	}
	return out
}

// ShiftUp multiplies p by x^k.
func (p Polynomial) ShiftUp(k int) Polynomial {
	out := make(Polynomial, len(p)+k)
	copy(out[k:], p)
	return out
}

// ShiftDown returns (p − p(0))/x, the polynomial formed by coefficients 1..deg.
func (p Polynomial) ShiftDown() Polynomial {
	if len(p) <= 1 {
		return Polynomial{}
	}
	return p[1:].Clone()
}

// DropConstant returns p with its constant coefficient set to zero.
func (p Polynomial) DropConstant() Polynomial {
	out := p.Clone()
	if len(out) > 0 {
		out[0].SetZero()
	}
	return out
}

// DivideByVanishing divides p by x^n − 1 and returns quotient and remainder.
func (p Polynomial) DivideByVanishing(n int) (q, r Polynomial) {
	r = p.Clone().Trim()
	if len(r) <= n {
		return Polynomial{}, r
	}
	q = make(Polynomial, len(r)-n)
	for i := len(r) - 1; i >= n; i-- {
		c := r[i]
		if c.IsZero() {
			continue
		}
		q[i-n] = c
		r[i-n].Add(&r[i-n], &c)
		r[i].SetZero()
	}
	return q, r.Trim()
}

// DivideByLinear divides p by x − a using synthetic division. The remainder is
// p(a).
func (p Polynomial) DivideByLinear(a fr.Element) (q Polynomial, rem fr.Element) {
	p = p.Trim()
	if len(p) == 0 {
		return Polynomial{}, rem
	}
	q = make(Polynomial, len(p)-1)
	rem = p[len(p)-1]
	for i := len(p) - 2; i >= 0; i-- {
		q[i] = rem
		rem.Mul(&rem, &a)
		rem.Add(&rem, &p[i])
	}
	return q, rem
}

// Evaluations returns p evaluated at every point of d, in natural order
// (entry i is p(ω^i)). p must not be longer than the domain.
func Evaluations(d *fft.Domain, p Polynomial) []fr.Element {
	a := make([]fr.Element, d.Cardinality)
	copy(a, p)
	d.FFT(a, fft.DIF)
	fft.BitReverse(a)
	return a
}

// Interpolate returns the coefficients of the unique polynomial of degree
// below |d| taking the given natural-order evaluations.
func Interpolate(d *fft.Domain, evals []fr.Element) Polynomial {
	a := make(Polynomial, d.Cardinality)
	copy(a, evals)
	d.FFTInverse(a, fft.DIF)
	fft.BitReverse(a)
	return a
}

// Lagrange returns L_i over d: 1 at ω^i and 0 at every other domain point.
func Lagrange(d *fft.Domain, i int) Polynomial {
	evals := make([]fr.Element, d.Cardinality)
	evals[i].SetOne()
	return Interpolate(d, evals)
}

// InterpMostlyZero returns the polynomial that vanishes on points[1:] and
// takes the value eval at points[0]. An empty point set yields the constant 1.
// points[0] must differ from every root.
func InterpMostlyZero(eval fr.Element, points []fr.Element) (Polynomial, error) {
	if len(points) == 0 {
		return Polynomial{fr.One()}, nil
	}
	out := Polynomial{fr.One()}
	for k := 1; k < len(points); k++ {
		if points[k].Equal(&points[0]) {
			return nil, ErrDuplicatePoint
		}
		out = mulLinear(out, points[k])
	}
	scale := out.Eval(points[0])
	scale.Inverse(&scale)
	scale.Mul(&scale, &eval)
	return out.Scale(scale), nil
}

// mulLinear returns p·(x − a).
func mulLinear(p Polynomial, a fr.Element) Polynomial {
	out := make(Polynomial, len(p)+1)
	var t fr.Element
	for i := range p {
		out[i+1].Add(&out[i+1], &p[i])
		t.Mul(&p[i], &a)
		out[i].Sub(&out[i], &t)
	}
	return out
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func nextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len64(n-1)
}
