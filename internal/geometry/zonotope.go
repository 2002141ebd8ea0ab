package geometry

import (
	"fmt"
	"math"
	"sort"

	"github.com/verisim/reach/internal/lina"
)

// Zonotope represents {c + sum_i beta_i g_i : beta in [-1,1]^k}.
// Operations never mutate in place; they return new zonotopes.
type Zonotope struct {
	Center lina.Vector
	Gens   []lina.Vector
}

// NewZonotope builds a zonotope, cloning its inputs.
func NewZonotope(center lina.Vector, gens []lina.Vector) (Zonotope, error) {
	for i, g := range gens {
		if len(g) != len(center) {
			return Zonotope{}, fmt.Errorf("%w: generator %d has dim %d, center has %d",
				ErrDimension, i, len(g), len(center))
		}
	}
	cloned := make([]lina.Vector, len(gens))
	for i, g := range gens {
		cloned[i] = g.Clone()
	}
	return Zonotope{Center: center.Clone(), Gens: cloned}, nil
}

// ZonotopeFromInterval converts a box into a zonotope with one axis-aligned
// generator per non-degenerate dimension.
func ZonotopeFromInterval(iv Interval) Zonotope {
	center := iv.Center()
	radius := iv.Radius()
	gens := make([]lina.Vector, 0, iv.Dim())
	for i, r := range radius {
		if r == 0 {
			continue
		}
		g := make(lina.Vector, iv.Dim())
		g[i] = r
		gens = append(gens, g)
	}
	return Zonotope{Center: center, Gens: gens}
}

// ZonotopePoint wraps a single point as a generator-free zonotope.
func ZonotopePoint(p lina.Vector) Zonotope {
	return Zonotope{Center: p.Clone()}
}

func (z Zonotope) Dim() int { return len(z.Center) }

func (z Zonotope) NumGens() int { return len(z.Gens) }

// Order is the generator count divided by the dimension.
func (z Zonotope) Order() float64 {
	if z.Dim() == 0 {
		return 0
	}
	return float64(len(z.Gens)) / float64(z.Dim())
}

func (z Zonotope) Clone() Zonotope {
	gens := make([]lina.Vector, len(z.Gens))
	for i, g := range z.Gens {
		gens[i] = g.Clone()
	}
	return Zonotope{Center: z.Center.Clone(), Gens: gens}
}

// Map applies a linear map M to the zonotope: M*Z.
func (z Zonotope) Map(m lina.Matrix) Zonotope {
	gens := make([]lina.Vector, len(z.Gens))
	for i, g := range z.Gens {
		gens[i] = m.MulVec(g)
	}
	return Zonotope{Center: m.MulVec(z.Center), Gens: gens}
}

// Affine applies x -> M*x + b.
func (z Zonotope) Affine(m lina.Matrix, b lina.Vector) Zonotope {
	r := z.Map(m)
	r.Center = r.Center.Add(b)
	return r
}

// Translate shifts the center by b.
func (z Zonotope) Translate(b lina.Vector) Zonotope {
	r := z.Clone()
	r.Center = r.Center.Add(b)
	return r
}

// Sum is the Minkowski sum of two zonotopes.
func (z Zonotope) Sum(o Zonotope) (Zonotope, error) {
	if o.Dim() != z.Dim() {
		return Zonotope{}, fmt.Errorf("%w: %d vs %d", ErrDimension, z.Dim(), o.Dim())
	}
	r := z.Clone()
	r.Center = r.Center.Add(o.Center)
	for _, g := range o.Gens {
		r.Gens = append(r.Gens, g.Clone())
	}
	return r, nil
}

// AddBox Minkowski-adds an axis-aligned box of the given per-dimension radii.
// Zero radii contribute no generator.
func (z Zonotope) AddBox(radius lina.Vector) Zonotope {
	r := z.Clone()
	for i, w := range radius {
		if w == 0 {
			continue
		}
		g := make(lina.Vector, z.Dim())
		g[i] = math.Abs(w)
		r.Gens = append(r.Gens, g)
	}
	return r
}

// AddUniformBox Minkowski-adds a box of radius w in every dimension.
func (z Zonotope) AddUniformBox(w float64) Zonotope {
	if w == 0 {
		return z.Clone()
	}
	radius := make(lina.Vector, z.Dim())
	for i := range radius {
		radius[i] = w
	}
	return z.AddBox(radius)
}

// Support evaluates the support function max_{x in Z} <dir, x>.
func (z Zonotope) Support(dir lina.Vector) float64 {
	v := z.Center.Dot(dir)
	for _, g := range z.Gens {
		v += math.Abs(g.Dot(dir))
	}
	return v
}

// IntervalHull returns the tightest enclosing box.
func (z Zonotope) IntervalHull() Interval {
	n := z.Dim()
	lo := z.Center.Clone()
	hi := z.Center.Clone()
	for _, g := range z.Gens {
		for i := 0; i < n; i++ {
			a := math.Abs(g[i])
			lo[i] -= a
			hi[i] += a
		}
	}
	return Interval{Lo: lo, Hi: hi}
}

// ContainsPoint reports whether p lies inside the zonotope. In two
// dimensions the test is exact (every facet normal of a zonogon is the
// perpendicular of a generator); in higher dimensions it falls back to the
// interval hull and is conservative: a false return proves p outside, a
// true return proves p inside the hull.
func (z Zonotope) ContainsPoint(p lina.Vector, tol float64) bool {
	if len(p) != z.Dim() {
		return false
	}
	if !z.IntervalHull().Inflate(0, tol).Contains(p) {
		return false
	}
	if z.Dim() != 2 {
		return true
	}
	d := p.Sub(z.Center)
	for _, g := range z.Gens {
		perp := lina.Vector{-g[1], g[0]}
		bound := 0.0
		for _, h := range z.Gens {
			bound += math.Abs(h.Dot(perp))
		}
		if math.Abs(d.Dot(perp)) > bound+tol*(1+perp.Norm()) {
			return false
		}
	}
	return true
}

// Reduce returns a zonotope with order at most maxOrder that encloses z.
// The policy is deterministic: generators are sorted by ascending 1-norm,
// ties broken by original index, and the smallest ones are collapsed into an
// axis-aligned box. Reduction never drops volume, it only trades generators
// for a coarser box.
func (z Zonotope) Reduce(maxOrder float64) Zonotope {
	n := z.Dim()
	if n == 0 || maxOrder <= 0 {
		return z.Clone()
	}
	keepTotal := int(math.Floor(maxOrder * float64(n)))
	if keepTotal < n {
		keepTotal = n
	}
	if len(z.Gens) <= keepTotal {
		return z.Clone()
	}

	type ranked struct {
		idx  int
		norm float64
	}
	order := make([]ranked, len(z.Gens))
	for i, g := range z.Gens {
		sum := 0.0
		for _, v := range g {
			sum += math.Abs(v)
		}
		order[i] = ranked{idx: i, norm: sum}
	}
	sort.SliceStable(order, func(a, b int) bool {
		if order[a].norm != order[b].norm {
			return order[a].norm < order[b].norm
		}
		return order[a].idx < order[b].idx
	})

	// Collapse the smallest generators into a box; the box itself costs n
	// generators, so keep the (keepTotal - n) largest.
	nKeep := keepTotal - n
	nDrop := len(z.Gens) - nKeep

	boxRadius := make(lina.Vector, n)
	keptIdx := make([]int, 0, nKeep)
	for rank, r := range order {
		if rank < nDrop {
			for i := 0; i < n; i++ {
				boxRadius[i] += math.Abs(z.Gens[r.idx][i])
			}
		} else {
			keptIdx = append(keptIdx, r.idx)
		}
	}
	// Kept generators stay in their original order so repeated reduction is
	// reproducible.
	sort.Ints(keptIdx)
	kept := make([]lina.Vector, 0, nKeep)
	for _, idx := range keptIdx {
		kept = append(kept, z.Gens[idx].Clone())
	}

	out := Zonotope{Center: z.Center.Clone(), Gens: kept}
	return out.AddBox(boxRadius)
}

// Enclose returns a zonotope containing the convex hull of z and o. It is
// the time-interval enclosure primitive of the propagator: with matched
// generator counts the result is ((c1+c2)/2, {(G1+G2)/2, (G1-G2)/2, ...}),
// shorter operands padded with zero generators.
func (z Zonotope) Enclose(o Zonotope) (Zonotope, error) {
	if o.Dim() != z.Dim() {
		return Zonotope{}, fmt.Errorf("%w: %d vs %d", ErrDimension, z.Dim(), o.Dim())
	}
	n := z.Dim()
	k := len(z.Gens)
	if len(o.Gens) > k {
		k = len(o.Gens)
	}
	gen := func(gens []lina.Vector, i int) lina.Vector {
		if i < len(gens) {
			return gens[i]
		}
		return make(lina.Vector, n)
	}

	center := z.Center.Add(o.Center).Scale(0.5)
	diff := z.Center.Sub(o.Center).Scale(0.5)
	gens := make([]lina.Vector, 0, 2*k+1)
	for i := 0; i < k; i++ {
		g1, g2 := gen(z.Gens, i), gen(o.Gens, i)
		gens = append(gens, g1.Add(g2).Scale(0.5))
	}
	gens = append(gens, diff)
	for i := 0; i < k; i++ {
		g1, g2 := gen(z.Gens, i), gen(o.Gens, i)
		gens = append(gens, g1.Sub(g2).Scale(0.5))
	}
	return Zonotope{Center: center, Gens: gens}, nil
}

// IsValid reports whether center and generators are free of NaN/Inf.
func (z Zonotope) IsValid() bool {
	if !z.Center.IsValid() {
		return false
	}
	for _, g := range z.Gens {
		if !g.IsValid() {
			return false
		}
	}
	return true
}

func (z Zonotope) String() string {
	return fmt.Sprintf("Zonotope{dim=%d, gens=%d}", z.Dim(), len(z.Gens))
}
