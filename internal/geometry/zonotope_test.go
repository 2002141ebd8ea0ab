package geometry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verisim/reach/internal/lina"
)

// samplePoint draws a random point of z for a fixed parameter assignment.
func samplePoint(z Zonotope, rnd *rand.Rand) lina.Vector {
	p := z.Center.Clone()
	for _, g := range z.Gens {
		beta := rnd.Float64()*2 - 1
		p = p.Add(g.Scale(beta))
	}
	return p
}

func randomZonotope(dim, gens int, rnd *rand.Rand) Zonotope {
	c := make(lina.Vector, dim)
	for i := range c {
		c[i] = rnd.NormFloat64()
	}
	gs := make([]lina.Vector, gens)
	for i := range gs {
		g := make(lina.Vector, dim)
		for j := range g {
			g[j] = rnd.NormFloat64() * 0.5
		}
		gs[i] = g
	}
	z, _ := NewZonotope(c, gs)
	return z
}

func TestZonotopeFromInterval(t *testing.T) {
	iv, _ := NewInterval(lina.Vector{-1, 0}, lina.Vector{1, 2})
	z := ZonotopeFromInterval(iv)
	require.Equal(t, lina.Vector{0, 1}, z.Center)
	require.Equal(t, 2, z.NumGens())
	require.Equal(t, iv.Lo, z.IntervalHull().Lo)
	require.Equal(t, iv.Hi, z.IntervalHull().Hi)
}

func TestZonotopeMapDoesNotMutate(t *testing.T) {
	z := randomZonotope(2, 3, rand.New(rand.NewSource(1)))
	before := z.Clone()
	m := lina.MatrixFrom([][]float64{{0, 1}, {-1, 0}})
	_ = z.Map(m)
	require.Equal(t, before.Center, z.Center)
	require.Equal(t, before.Gens, z.Gens)
}

func TestZonotopeMap_Deterministic(t *testing.T) {
	z := randomZonotope(3, 5, rand.New(rand.NewSource(7)))
	m := lina.MatrixFrom([][]float64{{1, 0, 2}, {0, 1, 0}, {0.5, 0, 1}})
	a := z.Map(m)
	b := z.Map(m)
	require.Equal(t, a, b)

	s1, _ := z.Sum(a)
	s2, _ := z.Sum(b)
	require.Equal(t, s1, s2)
}

func TestZonotopeSupport(t *testing.T) {
	z, _ := NewZonotope(lina.Vector{1, 0}, []lina.Vector{{1, 0}, {0, 2}})
	require.InDelta(t, 2.0, z.Support(lina.Vector{1, 0}), 1e-12)
	require.InDelta(t, 0.0, z.Support(lina.Vector{-1, 0}), 1e-12)
	require.InDelta(t, 2.0, z.Support(lina.Vector{0, 1}), 1e-12)
}

// Every point of Z must remain inside reduce(Z): reduction only grows the
// region.
func TestReduce_Conservative(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		z := randomZonotope(2, 12, rnd)
		red := z.Reduce(2) // at most 4 generators
		require.LessOrEqual(t, red.NumGens(), 4)
		for i := 0; i < 50; i++ {
			p := samplePoint(z, rnd)
			require.True(t, red.ContainsPoint(p, 1e-9),
				"trial %d: point %v escaped reduction", trial, p)
		}
	}
}

func TestReduce_DeterministicWithTies(t *testing.T) {
	// Equal-norm generators: ties must break by index, so repeated calls
	// agree exactly.
	gens := []lina.Vector{{1, 0}, {0, 1}, {1, 0}, {0, 1}, {0.5, 0.5}, {0.5, 0.5}}
	z, _ := NewZonotope(lina.Vector{0, 0}, gens)
	a := z.Reduce(1.5)
	b := z.Reduce(1.5)
	require.Equal(t, a, b)
}

func TestReduce_NoopBelowLimit(t *testing.T) {
	z := randomZonotope(2, 3, rand.New(rand.NewSource(3)))
	red := z.Reduce(10)
	require.Equal(t, z, red)
}

func TestEnclose_ContainsBothOperands(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	z1 := randomZonotope(2, 4, rnd)
	z2 := randomZonotope(2, 4, rnd)
	enc, err := z1.Enclose(z2)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.True(t, enc.ContainsPoint(samplePoint(z1, rnd), 1e-9))
		require.True(t, enc.ContainsPoint(samplePoint(z2, rnd), 1e-9))
	}
}

func TestContainsPoint_Exact2D(t *testing.T) {
	z, _ := NewZonotope(lina.Vector{0, 0}, []lina.Vector{{1, 0}, {1, 1}})
	require.True(t, z.ContainsPoint(lina.Vector{2, 1}, 1e-12))  // both betas at +1
	require.True(t, z.ContainsPoint(lina.Vector{0, 0}, 1e-12))  // center
	require.False(t, z.ContainsPoint(lina.Vector{-0.5, 1}, 1e-9)) // inside hull, outside zonogon
	require.False(t, z.ContainsPoint(lina.Vector{3, 0}, 1e-9))  // outside hull
}

func TestSum_DimensionMismatch(t *testing.T) {
	a := ZonotopePoint(lina.Vector{0, 0})
	b := ZonotopePoint(lina.Vector{0})
	_, err := a.Sum(b)
	require.ErrorIs(t, err, ErrDimension)
}

func TestAddUniformBox(t *testing.T) {
	z := ZonotopePoint(lina.Vector{1, 2})
	b := z.AddUniformBox(0.5)
	hull := b.IntervalHull()
	require.Equal(t, lina.Vector{0.5, 1.5}, hull.Lo)
	require.Equal(t, lina.Vector{1.5, 2.5}, hull.Hi)
}
