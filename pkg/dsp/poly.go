package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// scaledPoly is a least-squares polynomial in u = (t - center) / half,
// which maps the abscissa range onto [-1, 1].
type scaledPoly struct {
	center, half float64
	coef         []float64
}

func (p scaledPoly) at(t float64) float64 {
	u := (t - p.center) / p.half
	v := 0.0
	for j := len(p.coef) - 1; j >= 0; j-- {
		v = v*u + p.coef[j]
	}
	return v
}

// fitScaled solves the (degree+1)×(degree+1) normal equations. Memory is
// independent of len(y).
func fitScaled(t, y []float64, degree int) (scaledPoly, error) {
	n := len(y)
	if len(t) != n {
		return scaledPoly{}, fmt.Errorf("dsp: polyfit: %d abscissae for %d values", len(t), n)
	}
	cols := degree + 1
	if degree < 0 || n < cols {
		return scaledPoly{}, fmt.Errorf("dsp: polyfit: need at least %d points for degree %d, have %d", cols, degree, n)
	}

	lo, hi := t[0], t[0]
	for _, v := range t {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	p := scaledPoly{center: (lo + hi) / 2, half: (hi - lo) / 2}
	if p.half == 0 {
		p.half = 1
	}

	// sums[k] = Σ u^k for k = 0..2·degree; rhs[j] = Σ y·u^j.
	sums := make([]float64, 2*degree+1)
	rhs := make([]float64, cols)
	for i, ti := range t {
		u := (ti - p.center) / p.half
		pw := 1.0
		for k := range sums {
			sums[k] += pw
			if k < cols {
				rhs[k] += y[i] * pw
			}
			pw *= u
		}
	}

	a := mat.NewSymDense(cols, nil)
	for j := range cols {
		for k := j; k < cols; k++ {
			a.SetSym(j, k, sums[j+k])
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return scaledPoly{}, fmt.Errorf("dsp: polyfit: normal matrix not positive definite")
	}
	var c mat.VecDense
	if err := chol.SolveVecTo(&c, mat.NewVecDense(cols, rhs)); err != nil {
		return scaledPoly{}, fmt.Errorf("dsp: polyfit: %w", err)
	}
	p.coef = make([]float64, cols)
	for j := range p.coef {
		p.coef[j] = c.AtVec(j)
	}
	return p, nil
}

// PolyFit returns the least-squares coefficients c[0] + c[1]·t + … of a
// polynomial of the given degree through (t[i], y[i]).
func PolyFit(t, y []float64, degree int) ([]float64, error) {
	p, err := fitScaled(t, y, degree)
	if err != nil {
		return nil, err
	}
	// Expand Σ a_j·((t-m)/h)^j into powers of t.
	out := make([]float64, len(p.coef))
	for j, a := range p.coef {
		scale := a / math.Pow(p.half, float64(j))
		binom := 1.0
		for k := 0; k <= j; k++ {
			out[k] += scale * binom * math.Pow(-p.center, float64(j-k))
			binom = binom * float64(j-k) / float64(k+1)
		}
	}
	return out, nil
}

// Detrend subtracts the least-squares polynomial of the given degree over
// the sample index from y.
func Detrend(y []float64, degree int) ([]float64, error) {
	t := make([]float64, len(y))
	for i := range t {
		t[i] = float64(i)
	}
	p, err := fitScaled(t, y, degree)
	if err != nil {
		return nil, err
	}
	r := make([]float64, len(y))
	for i, v := range y {
		r[i] = v - p.at(t[i])
	}
	return r, nil
}
