package geometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/verisim/reach/internal/lina"
)

// PolyZonotope represents a polynomial image of the parameter box
// [-1,1]^p plus an independent zonotopic rest:
//
//	{ c + sum_i ( prod_k alpha_k^E[i][k] ) * G[i] + sum_j beta_j * Grest[j] }
//
// with alpha, beta in [-1,1]. One exponent row per dependent generator.
type PolyZonotope struct {
	Center lina.Vector
	Dep    []lina.Vector
	Expon  [][]int
	Indep  []lina.Vector
}

// NewPolyZonotope validates the exponent-per-generator invariant.
func NewPolyZonotope(center lina.Vector, dep []lina.Vector, expon [][]int, indep []lina.Vector) (PolyZonotope, error) {
	if len(dep) != len(expon) {
		return PolyZonotope{}, fmt.Errorf("geometry: %d dependent generators but %d exponent rows", len(dep), len(expon))
	}
	for i, g := range dep {
		if len(g) != len(center) {
			return PolyZonotope{}, fmt.Errorf("%w: dependent generator %d", ErrDimension, i)
		}
	}
	for i, g := range indep {
		if len(g) != len(center) {
			return PolyZonotope{}, fmt.Errorf("%w: independent generator %d", ErrDimension, i)
		}
	}
	pz := PolyZonotope{Center: center.Clone()}
	for i, g := range dep {
		pz.Dep = append(pz.Dep, g.Clone())
		row := make([]int, len(expon[i]))
		copy(row, expon[i])
		pz.Expon = append(pz.Expon, row)
	}
	for _, g := range indep {
		pz.Indep = append(pz.Indep, g.Clone())
	}
	return pz, nil
}

// PolyFromZonotope lifts a zonotope: each generator becomes a dependent
// generator with a degree-one exponent of its own parameter.
func PolyFromZonotope(z Zonotope) PolyZonotope {
	pz := PolyZonotope{Center: z.Center.Clone()}
	for i, g := range z.Gens {
		pz.Dep = append(pz.Dep, g.Clone())
		row := make([]int, len(z.Gens))
		row[i] = 1
		pz.Expon = append(pz.Expon, row)
	}
	return pz
}

func (pz PolyZonotope) Dim() int { return len(pz.Center) }

func (pz PolyZonotope) Clone() PolyZonotope {
	out, _ := NewPolyZonotope(pz.Center, pz.Dep, pz.Expon, pz.Indep)
	return out
}

// Map applies a linear map exactly to every part.
func (pz PolyZonotope) Map(m lina.Matrix) PolyZonotope {
	out := PolyZonotope{Center: m.MulVec(pz.Center)}
	for i, g := range pz.Dep {
		out.Dep = append(out.Dep, m.MulVec(g))
		row := make([]int, len(pz.Expon[i]))
		copy(row, pz.Expon[i])
		out.Expon = append(out.Expon, row)
	}
	for _, g := range pz.Indep {
		out.Indep = append(out.Indep, m.MulVec(g))
	}
	return out
}

// SumZonotope Minkowski-adds a zonotope into the independent part.
func (pz PolyZonotope) SumZonotope(z Zonotope) (PolyZonotope, error) {
	if z.Dim() != pz.Dim() {
		return PolyZonotope{}, fmt.Errorf("%w: %d vs %d", ErrDimension, pz.Dim(), z.Dim())
	}
	out := pz.Clone()
	out.Center = out.Center.Add(z.Center)
	for _, g := range z.Gens {
		out.Indep = append(out.Indep, g.Clone())
	}
	return out, nil
}

func degree(row []int) int {
	d := 0
	for _, e := range row {
		d += e
	}
	return d
}

func allEven(row []int) bool {
	for _, e := range row {
		if e%2 != 0 {
			return false
		}
	}
	return true
}

// ToZonotope encloses the polynomial zonotope with an ordinary zonotope.
// A dependent generator with an all-even exponent row spans [0,1]*g, so half
// of it moves into the center; everything else spans [-1,1]*g and becomes a
// plain generator.
func (pz PolyZonotope) ToZonotope() Zonotope {
	center := pz.Center.Clone()
	gens := make([]lina.Vector, 0, len(pz.Dep)+len(pz.Indep))
	for i, g := range pz.Dep {
		if degree(pz.Expon[i]) > 0 && allEven(pz.Expon[i]) {
			center = center.Add(g.Scale(0.5))
			gens = append(gens, g.Scale(0.5))
		} else {
			gens = append(gens, g.Clone())
		}
	}
	for _, g := range pz.Indep {
		gens = append(gens, g.Clone())
	}
	return Zonotope{Center: center, Gens: gens}
}

// Reduce collapses dependent generators above maxDegree, and then the
// smallest dependent generators beyond maxOrder*dim, into the independent
// part. The move is conservative: a monomial over [-1,1] parameters is
// always contained in [-1,1]*g (shifted for all-even rows).
func (pz PolyZonotope) Reduce(maxDegree int, maxOrder float64) PolyZonotope {
	out := PolyZonotope{Center: pz.Center.Clone()}
	for _, g := range pz.Indep {
		out.Indep = append(out.Indep, g.Clone())
	}

	type ranked struct {
		idx  int
		norm float64
	}
	var kept []ranked
	for i, g := range pz.Dep {
		if maxDegree > 0 && degree(pz.Expon[i]) > maxDegree {
			out = out.absorb(g, pz.Expon[i])
			continue
		}
		sum := 0.0
		for _, v := range g {
			sum += math.Abs(v)
		}
		kept = append(kept, ranked{idx: i, norm: sum})
	}

	limit := len(kept)
	if maxOrder > 0 {
		limit = int(math.Floor(maxOrder * float64(pz.Dim())))
	}
	if limit < len(kept) {
		sort.SliceStable(kept, func(a, b int) bool {
			if kept[a].norm != kept[b].norm {
				return kept[a].norm < kept[b].norm
			}
			return kept[a].idx < kept[b].idx
		})
		for _, r := range kept[:len(kept)-limit] {
			out = out.absorb(pz.Dep[r.idx], pz.Expon[r.idx])
		}
		kept = kept[len(kept)-limit:]
		sort.SliceStable(kept, func(a, b int) bool { return kept[a].idx < kept[b].idx })
	}

	for _, r := range kept {
		out.Dep = append(out.Dep, pz.Dep[r.idx].Clone())
		row := make([]int, len(pz.Expon[r.idx]))
		copy(row, pz.Expon[r.idx])
		out.Expon = append(out.Expon, row)
	}
	return out
}

func (pz PolyZonotope) absorb(g lina.Vector, row []int) PolyZonotope {
	out := pz
	if degree(row) > 0 && allEven(row) {
		out.Center = out.Center.Add(g.Scale(0.5))
		out.Indep = append(out.Indep, g.Scale(0.5))
	} else {
		out.Indep = append(out.Indep, g.Clone())
	}
	return out
}

// IntervalHull returns an enclosing box via the zonotope enclosure.
func (pz PolyZonotope) IntervalHull() Interval {
	return pz.ToZonotope().IntervalHull()
}

func (pz PolyZonotope) IsValid() bool {
	return pz.ToZonotope().IsValid() && len(pz.Dep) == len(pz.Expon)
}

func (pz PolyZonotope) String() string {
	return fmt.Sprintf("PolyZonotope{dim=%d, dep=%d, indep=%d}", pz.Dim(), len(pz.Dep), len(pz.Indep))
}
