package geometry

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrTMDivZero indicates a Taylor-model division whose divisor range
// contains zero.
var ErrTMDivZero = errors.New("geometry: taylor model divisor range contains zero")

// Poly is a sparse multivariate polynomial over Vars variables.
// Terms are kept sorted by exponent row for deterministic arithmetic.
type Poly struct {
	Vars  int
	Coef  []float64
	Expon [][]int
}

func polyKeyLess(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (p Poly) normalize() Poly {
	type term struct {
		row []int
		c   float64
	}
	merged := make(map[string]*term)
	keyOf := func(row []int) string {
		return fmt.Sprint(row)
	}
	for i, row := range p.Expon {
		k := keyOf(row)
		if t, ok := merged[k]; ok {
			t.c += p.Coef[i]
		} else {
			r := make([]int, len(row))
			copy(r, row)
			merged[k] = &term{row: r, c: p.Coef[i]}
		}
	}
	terms := make([]*term, 0, len(merged))
	for _, t := range merged {
		if t.c != 0 {
			terms = append(terms, t)
		}
	}
	sort.Slice(terms, func(a, b int) bool { return polyKeyLess(terms[a].row, terms[b].row) })
	out := Poly{Vars: p.Vars}
	for _, t := range terms {
		out.Coef = append(out.Coef, t.c)
		out.Expon = append(out.Expon, t.row)
	}
	return out
}

// Range bounds the polynomial over the unit domain [-1,1]^Vars by interval
// arithmetic: each monomial contributes [-|c|,|c|], except all-even
// monomials which contribute [0,c] (or [c,0]).
func (p Poly) Range() Span {
	r := SpanPoint(0)
	for i, c := range p.Coef {
		if degree(p.Expon[i]) == 0 {
			r = r.Add(SpanPoint(c))
		} else if allEven(p.Expon[i]) {
			r = r.Add(NewSpan(0, c))
		} else {
			r = r.Add(Span{Lo: -math.Abs(c), Hi: math.Abs(c)})
		}
	}
	return r
}

// TaylorModel pairs a polynomial over the unit domain with a remainder
// interval that conservatively bounds the truncation error of every
// operation ever applied to it. Order is the maximum kept polynomial
// degree; products beyond it are folded into the remainder.
type TaylorModel struct {
	P     Poly
	Rem   Span
	Order int
}

// TMConstant builds a constant Taylor model.
func TMConstant(v float64, vars, order int) TaylorModel {
	return TaylorModel{
		P:     Poly{Vars: vars, Coef: []float64{v}, Expon: [][]int{make([]int, vars)}},
		Order: order,
	}
}

// TMVariable builds the model of variable i over [-1,1].
func TMVariable(i, vars, order int) TaylorModel {
	row := make([]int, vars)
	row[i] = 1
	return TaylorModel{
		P:     Poly{Vars: vars, Coef: []float64{1}, Expon: [][]int{row}},
		Order: order,
	}
}

// Range bounds the model's value over the unit domain, remainder included.
func (tm TaylorModel) Range() Span {
	return tm.P.Range().Add(tm.Rem)
}

func (tm TaylorModel) Add(o TaylorModel) TaylorModel {
	p := Poly{Vars: tm.P.Vars}
	p.Coef = append(append(p.Coef, tm.P.Coef...), o.P.Coef...)
	p.Expon = append(append(p.Expon, tm.P.Expon...), o.P.Expon...)
	return TaylorModel{P: p.normalize(), Rem: tm.Rem.Add(o.Rem), Order: tm.Order}
}

func (tm TaylorModel) Sub(o TaylorModel) TaylorModel {
	return tm.Add(o.Scale(-1))
}

func (tm TaylorModel) Scale(f float64) TaylorModel {
	p := Poly{Vars: tm.P.Vars}
	for i, c := range tm.P.Coef {
		p.Coef = append(p.Coef, c*f)
		row := make([]int, len(tm.P.Expon[i]))
		copy(row, tm.P.Expon[i])
		p.Expon = append(p.Expon, row)
	}
	return TaylorModel{P: p.normalize(), Rem: tm.Rem.Scale(f), Order: tm.Order}
}

// AddConst shifts the model by a constant without touching the remainder.
func (tm TaylorModel) AddConst(v float64) TaylorModel {
	return tm.Add(TMConstant(v, tm.P.Vars, tm.Order))
}

// Mul multiplies two models. Product terms above Order are bounded over the
// unit domain and folded into the remainder, keeping the enclosure
// invariant: tm(x)*o(x) is always inside P(x) + Rem for x in [-1,1]^Vars.
func (tm TaylorModel) Mul(o TaylorModel) TaylorModel {
	keep := Poly{Vars: tm.P.Vars}
	spill := Poly{Vars: tm.P.Vars}
	for i, ci := range tm.P.Coef {
		for j, cj := range o.P.Coef {
			row := make([]int, tm.P.Vars)
			for k := range row {
				row[k] = tm.P.Expon[i][k] + o.P.Expon[j][k]
			}
			if degree(row) > tm.Order {
				spill.Coef = append(spill.Coef, ci*cj)
				spill.Expon = append(spill.Expon, row)
			} else {
				keep.Coef = append(keep.Coef, ci*cj)
				keep.Expon = append(keep.Expon, row)
			}
		}
	}

	// Cross terms: P1*R2 + P2*R1 + R1*R2, then the spilled high-order part.
	rem := tm.P.Range().Mul(o.Rem).
		Add(o.P.Range().Mul(tm.Rem)).
		Add(tm.Rem.Mul(o.Rem)).
		Add(spill.normalize().Range())

	return TaylorModel{P: keep.normalize(), Rem: rem, Order: tm.Order}
}

// Power raises the model to a non-negative integer power.
func (tm TaylorModel) Power(k int) TaylorModel {
	out := TMConstant(1, tm.P.Vars, tm.Order)
	for i := 0; i < k; i++ {
		out = out.Mul(tm)
	}
	return out
}

// Div computes tm/o. The divisor's rigorous range must exclude zero;
// otherwise the call fails with ErrTMDivZero and no result is produced.
func (tm TaylorModel) Div(o TaylorModel) (TaylorModel, error) {
	inv, err := o.Inverse()
	if err != nil {
		return TaylorModel{}, err
	}
	return tm.Mul(inv), nil
}

// Inverse computes 1/tm via the series 1/(b0(1+s)) = (1/b0) * sum (-s)^k
// with s = (tm - b0)/b0, bounding the geometric tail into the remainder.
func (tm TaylorModel) Inverse() (TaylorModel, error) {
	rng := tm.Range()
	if rng.ContainsZero() {
		return TaylorModel{}, fmt.Errorf("%w: range %v", ErrTMDivZero, rng)
	}
	b0 := rng.Center()
	s := tm.Scale(1 / b0).AddConst(-1)
	sMax := s.Range().AbsMax()
	if sMax >= 1 {
		// The centered series does not converge; fall back to the pure
		// interval bound, which stays rigorous.
		inv, err := rng.Inv()
		if err != nil {
			return TaylorModel{}, err
		}
		out := TMConstant(inv.Center(), tm.P.Vars, tm.Order)
		out.Rem = inv.Sub(SpanPoint(inv.Center()))
		return out, nil
	}

	out := TMConstant(1, tm.P.Vars, tm.Order)
	power := TMConstant(1, tm.P.Vars, tm.Order)
	sign := -1.0
	for k := 1; k <= tm.Order; k++ {
		power = power.Mul(s)
		out = out.Add(power.Scale(sign))
		sign = -sign
	}
	// Geometric tail: |s|^(order+1) / (1 - |s|).
	tail := math.Pow(sMax, float64(tm.Order+1)) / (1 - sMax)
	out.Rem = out.Rem.Add(Span{Lo: -tail, Hi: tail})
	return out.Scale(1 / b0), nil
}

// ComposeAffine substitutes variable i with (a*x_i + b), a rescaling of the
// unit domain. |a| + |b| must not exceed 1 so the image stays inside the
// domain the remainder was bounded on.
func (tm TaylorModel) ComposeAffine(i int, a, b float64) (TaylorModel, error) {
	if math.Abs(a)+math.Abs(b) > 1+1e-12 {
		return TaylorModel{}, fmt.Errorf("geometry: affine substitution |%g|+|%g| leaves the unit domain", a, b)
	}
	arg := TMVariable(i, tm.P.Vars, tm.Order).Scale(a).AddConst(b)
	out := TMConstant(0, tm.P.Vars, tm.Order)
	for t, c := range tm.P.Coef {
		term := TMConstant(c, tm.P.Vars, tm.Order)
		for v := 0; v < tm.P.Vars; v++ {
			e := tm.P.Expon[t][v]
			if e == 0 {
				continue
			}
			var base TaylorModel
			if v == i {
				base = arg
			} else {
				base = TMVariable(v, tm.P.Vars, tm.Order)
			}
			term = term.Mul(base.Power(e))
		}
		out = out.Add(term)
	}
	out.Rem = out.Rem.Add(tm.Rem)
	return out, nil
}
