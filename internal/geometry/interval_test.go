package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verisim/reach/internal/lina"
)

func TestNewInterval_RejectsInvertedBounds(t *testing.T) {
	_, err := NewInterval(lina.Vector{0, 1}, lina.Vector{1, 0})
	require.ErrorIs(t, err, ErrBounds)
}

func TestNewInterval_RejectsDimensionMismatch(t *testing.T) {
	_, err := NewInterval(lina.Vector{0}, lina.Vector{1, 2})
	require.ErrorIs(t, err, ErrDimension)
}

func TestIntervalFromCenter(t *testing.T) {
	iv, err := IntervalFromCenter(lina.Vector{1, 0}, lina.Vector{0.05, 0.05})
	require.NoError(t, err)
	require.InDelta(t, 0.95, iv.Lo[0], 1e-12)
	require.InDelta(t, 1.05, iv.Hi[0], 1e-12)
	require.True(t, iv.Contains(lina.Vector{1.04, -0.04}))
	require.False(t, iv.Contains(lina.Vector{1.06, 0}))
}

func TestIntervalHullAndAdd(t *testing.T) {
	a, _ := NewInterval(lina.Vector{0, 0}, lina.Vector{1, 1})
	b, _ := NewInterval(lina.Vector{2, -1}, lina.Vector{3, 0})

	h := a.Hull(b)
	require.Equal(t, lina.Vector{0, -1}, h.Lo)
	require.Equal(t, lina.Vector{3, 1}, h.Hi)

	s := a.Add(b)
	require.Equal(t, lina.Vector{2, -1}, s.Lo)
	require.Equal(t, lina.Vector{4, 1}, s.Hi)
}

func TestIntervalCorners_Deterministic(t *testing.T) {
	iv, _ := NewInterval(lina.Vector{0, 0}, lina.Vector{1, 2})
	c1 := iv.Corners()
	c2 := iv.Corners()
	require.Len(t, c1, 4)
	require.Equal(t, c1, c2)
}

func TestSpanArithmetic(t *testing.T) {
	a := NewSpan(-1, 2)
	b := NewSpan(3, 4)

	require.Equal(t, Span{2, 6}, a.Add(b))
	require.Equal(t, Span{-5, -1}, a.Sub(b))
	require.Equal(t, Span{-4, 8}, a.Mul(b))
	require.Equal(t, Span{-4, 2}, a.Scale(-2))
	require.True(t, a.ContainsZero())
	require.False(t, b.ContainsZero())
}

func TestSpanInv(t *testing.T) {
	inv, err := NewSpan(2, 4).Inv()
	require.NoError(t, err)
	require.InDelta(t, 0.25, inv.Lo, 1e-12)
	require.InDelta(t, 0.5, inv.Hi, 1e-12)

	_, err = NewSpan(-1, 1).Inv()
	require.Error(t, err)
}
