// Package hybrid computes guard crossings for hybrid automata: given a
// flowpipe enclosure that crosses a hyperplane guard, it encloses the
// intersection with the guard surface via a time-rescaling ("pancake")
// reduction. The rescaled dynamics slow the flow down near the guard, so
// landing on the guard becomes an ordinary reachability run followed by a
// bounded jump search, instead of a zero-crossing detection problem.
package hybrid

import (
	"errors"
	"fmt"

	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
)

var (
	// ErrUnsupportedGuard indicates a guard that is not a constrained
	// hyperplane.
	ErrUnsupportedGuard = errors.New("hybrid: guard is not a constrained hyperplane")

	// ErrSearchDiverged indicates the pancake jump search observed the
	// distance to the guard growing instead of converging; the dynamics
	// are unsuited to the time scaling or the guard is not crossed.
	ErrSearchDiverged = errors.New("hybrid: guard search failed (distance diverging)")

	// ErrNotCrossed indicates the jump search exhausted its expansion
	// budget without the enclosure ever crossing the guard.
	ErrNotCrossed = errors.New("hybrid: enclosure never crossed the guard")
)

// Guard is a constrained hyperplane {x : <Normal, x> = Offset} restricted
// to an invariant box. Immutable; identified by ID within its location.
type Guard struct {
	ID        string
	Normal    lina.Vector
	Offset    float64
	Invariant geometry.Interval
}

// NewGuard validates the hyperplane. A zero normal is not a guard.
func NewGuard(id string, normal lina.Vector, offset float64, invariant geometry.Interval) (Guard, error) {
	if normal.InfNorm() == 0 {
		return Guard{}, fmt.Errorf("%w: zero normal (guard %q)", ErrUnsupportedGuard, id)
	}
	return Guard{ID: id, Normal: normal.Clone(), Offset: offset, Invariant: invariant}, nil
}

// SignedDistance is the support function of z in the guard's normal
// direction minus the offset: the largest signed distance any point of z
// has to the hyperplane. It parameterizes the time rescaling.
func (g Guard) SignedDistance(z geometry.Zonotope) float64 {
	return z.Support(g.Normal) - g.Offset
}

// MinDistance is the smallest signed distance any point of z has to the
// hyperplane: positive while the whole enclosure is still on the normal's
// side, zero or negative once its leading edge has reached the guard. The
// rescaled flow approaches the guard without ever passing it, so the
// leading edge is the quantity the jump search watches.
func (g Guard) MinDistance(z geometry.Zonotope) float64 {
	return -z.Support(g.Normal.Scale(-1)) - g.Offset
}

// oriented returns a copy whose normal points away from the invariant as
// seen from the enclosure center: the center gets a positive signed
// distance, so crossing drives the distance through zero downward.
func (g Guard) oriented(center lina.Vector) Guard {
	if center.Dot(g.Normal)-g.Offset >= 0 {
		return g
	}
	return Guard{ID: g.ID, Normal: g.Normal.Scale(-1), Offset: -g.Offset, Invariant: g.Invariant}
}

// project maps a set orthogonally onto the guard hyperplane:
// x -> x - ((<c,x> - d)/|c|^2) c, an affine map applied to the zonotope.
func (g Guard) project(z geometry.Zonotope) geometry.Zonotope {
	n := z.Dim()
	c := g.Normal
	norm2 := c.Dot(c)

	m := lina.Identity(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, m.At(i, j)-c[i]*c[j]/norm2)
		}
	}
	b := c.Scale(g.Offset / norm2)
	return z.Affine(m, b)
}
