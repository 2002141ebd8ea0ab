package hybrid

import (
	"errors"
	"math"
	"testing"

	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

func box(t *testing.T, center, hw lina.Vector) geometry.Zonotope {
	t.Helper()
	iv, err := geometry.IntervalFromCenter(center, hw)
	if err != nil {
		t.Fatal(err)
	}
	return geometry.ZonotopeFromInterval(iv)
}

func TestNewGuard_RejectsZeroNormal(t *testing.T) {
	_, err := NewGuard("g", lina.Vector{0, 0}, 1, geometry.Interval{})
	if !errors.Is(err, ErrUnsupportedGuard) {
		t.Fatalf("expected ErrUnsupportedGuard, got %v", err)
	}
}

func TestSignedDistance(t *testing.T) {
	g, err := NewGuard("ground", lina.Vector{1, 0}, 0, geometry.Interval{})
	if err != nil {
		t.Fatal(err)
	}
	z := box(t, lina.Vector{1, 0}, lina.Vector{0.1, 0.1})
	if d := g.SignedDistance(z); math.Abs(d-1.1) > 1e-12 {
		t.Errorf("signed distance %f, want 1.1", d)
	}
	if d := g.MinDistance(z); math.Abs(d-0.9) > 1e-12 {
		t.Errorf("leading-edge distance %f, want 0.9", d)
	}
	below := box(t, lina.Vector{-1, 0}, lina.Vector{0.1, 0.1})
	if d := g.SignedDistance(below); d >= 0 {
		t.Errorf("enclosure past the guard must have negative distance, got %f", d)
	}

	// Straddling the plane: leading edge past it, trailing edge not yet.
	straddle := box(t, lina.Vector{0, 0}, lina.Vector{0.1, 0.1})
	if g.MinDistance(straddle) >= 0 || g.SignedDistance(straddle) <= 0 {
		t.Error("straddling enclosure must have min < 0 < max distance")
	}
}

func TestOriented_FlipsTowardsCenter(t *testing.T) {
	g, err := NewGuard("g", lina.Vector{-1, 0}, 0, geometry.Interval{})
	if err != nil {
		t.Fatal(err)
	}
	// Center at x=1 sees the flipped normal {1,0}.
	o := g.oriented(lina.Vector{1, 0})
	if o.Normal[0] != 1 || o.Normal[1] != 0 {
		t.Errorf("normal not flipped: %v", o.Normal)
	}
	if o.Offset != 0 {
		t.Errorf("offset not flipped: %f", o.Offset)
	}
	// A center already on the positive side keeps the guard as is.
	same := g.oriented(lina.Vector{-1, 0})
	if same.Normal[0] != -1 {
		t.Errorf("normal flipped needlessly: %v", same.Normal)
	}
}

func TestProject_OntoHyperplane(t *testing.T) {
	g, err := NewGuard("g", lina.Vector{1, 0}, 1, geometry.Interval{})
	if err != nil {
		t.Fatal(err)
	}
	z := g.project(geometry.ZonotopePoint(lina.Vector{2, 3}))
	if math.Abs(z.Center[0]-1) > 1e-12 || math.Abs(z.Center[1]-3) > 1e-12 {
		t.Errorf("projected center %v, want (1, 3)", z.Center)
	}

	// Projecting a box flattens it against the hyperplane.
	flat := g.project(box(t, lina.Vector{2, 3}, lina.Vector{0.5, 0.5}))
	hull := flat.IntervalHull()
	if hull.At(0).Radius() > 1e-12 {
		t.Errorf("projected set still has extent %f across the guard", hull.At(0).Radius())
	}
	if !hull.At(1).Contains(3) {
		t.Errorf("projection must not move the tangential component, hull %v", hull.At(1))
	}
}
