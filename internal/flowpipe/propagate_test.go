package flowpipe

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/lina"
	"github.com/verisim/reach/internal/simulate"
)

func freeFall(t *testing.T) dynamics.System {
	t.Helper()
	a := lina.MatrixFrom([][]float64{{0, 1}, {0, 0}})
	sys, err := dynamics.NewLinear(a, lina.Matrix{}, lina.Vector{0, -9.81})
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func boxAround(t *testing.T, center, hw lina.Vector) geometry.Zonotope {
	t.Helper()
	iv, err := geometry.IntervalFromCenter(center, hw)
	if err != nil {
		t.Fatal(err)
	}
	return geometry.ZonotopeFromInterval(iv)
}

// Free-fall-with-velocity scenario: x' = [[0,1],[0,0]]x + [0,-9.81],
// initial box around (1,0), dt=0.1, tFinal=0.2. Two time-interval
// enclosures whose union must contain every simulated trajectory.
func TestPropagate_FreeFallSoundness(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})

	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{Center: lina.Vector{}}, Params{
		TFinal:   0.2,
		TimeStep: 0.1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fp.Len() != 2 {
		t.Fatalf("expected 2 segments, got %d", fp.Len())
	}

	rnd := rand.New(rand.NewSource(1))
	for trial := 0; trial < 30; trial++ {
		x0 := lina.Vector{
			1 + (rnd.Float64()*2-1)*0.05,
			(rnd.Float64()*2 - 1) * 0.05,
		}
		traj, err := simulate.Sample(sys, x0, nil, 0.005, 0.2)
		if err != nil {
			t.Fatal(err)
		}
		for i, tm := range traj.Times {
			if !fp.Contains(tm, traj.States[i]) {
				t.Fatalf("trial %d: state %v at t=%.3f escaped the flowpipe",
					trial, traj.States[i], tm)
			}
		}
	}
}

func TestPropagate_SegmentTimesOrdered(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})
	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal: 1.0, TimeStep: 0.1,
	})
	if err != nil {
		t.Fatal(err)
	}
	prev := 0.0
	for _, seg := range fp.Segments {
		if seg.T0 != prev {
			t.Errorf("segment starts at %f, previous ended at %f", seg.T0, prev)
		}
		if seg.T1 <= seg.T0 {
			t.Errorf("segment [%f, %f] not forward in time", seg.T0, seg.T1)
		}
		prev = seg.T1
	}
	if math.Abs(prev-1.0) > 1e-9 {
		t.Errorf("horizon not reached: ended at %f", prev)
	}
}

func TestPropagate_TimePointInsideTimeInterval(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})
	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal: 0.5, TimeStep: 0.05,
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, seg := range fp.Segments {
		hull := seg.TimeInterval.IntervalHull()
		if !hull.ContainsInterval(seg.TimePoint.IntervalHull()) {
			t.Errorf("segment %d: time-point enclosure escapes time-interval enclosure", i)
		}
	}
}

func TestParams_Validation(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})

	cases := []struct {
		name   string
		params Params
	}{
		{"zero tFinal", Params{TimeStep: 0.1}},
		{"zero timeStep", Params{TFinal: 1}},
		{"negative timeStep", Params{TFinal: 1, TimeStep: -0.1}},
		{"unknown algorithm", Params{TFinal: 1, TimeStep: 0.1, Algorithm: "exact"}},
		{"adaptive without tolerance", Params{TFinal: 1, TimeStep: 0.1, Algorithm: AlgLinAdaptive}},
		{"adaptive minStep above step", Params{TFinal: 1, TimeStep: 0.1, Algorithm: AlgLinAdaptive, ErrTol: 0.1, MinStep: 0.5}},
		{"order max below order", Params{TFinal: 1, TimeStep: 0.1, TaylorOrder: 6, TaylorOrderMax: 2}},
	}
	for _, tc := range cases {
		_, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, tc.params)
		if !errors.Is(err, ErrBadParams) {
			t.Errorf("%s: expected ErrBadParams, got %v", tc.name, err)
		}
	}
}

func TestPropagate_GeneratorCountBounded(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})
	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal: 2.0, TimeStep: 0.02, ZonotopeOrder: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, seg := range fp.Segments {
		if seg.TimePoint.NumGens() > 10 {
			t.Fatalf("segment %d: %d generators, order bound 5 allows 10", i, seg.TimePoint.NumGens())
		}
	}
}

func vanDerPol(t *testing.T) *dynamics.Nonlinear {
	t.Helper()
	sys, err := dynamics.NewNonlinear(2, 0, func(x, u lina.Vector) lina.Vector {
		return lina.Vector{x[1], (1-x[0]*x[0])*x[1] - x[0]}
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestPropagate_NonlinearSoundness(t *testing.T) {
	sys := vanDerPol(t)
	r0 := boxAround(t, lina.Vector{1.4, 2.3}, lina.Vector{0.01, 0.01})

	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal: 0.1, TimeStep: 0.01,
	})
	if err != nil {
		t.Fatal(err)
	}

	rnd := rand.New(rand.NewSource(2))
	for trial := 0; trial < 10; trial++ {
		x0 := lina.Vector{
			1.4 + (rnd.Float64()*2-1)*0.01,
			2.3 + (rnd.Float64()*2-1)*0.01,
		}
		traj, err := simulate.Sample(sys, x0, nil, 0.001, 0.1)
		if err != nil {
			t.Fatal(err)
		}
		for i, tm := range traj.Times {
			if !fp.Contains(tm, traj.States[i]) {
				t.Fatalf("trial %d: state %v at t=%.3f escaped the nonlinear flowpipe",
					trial, traj.States[i], tm)
			}
		}
	}
}

func TestPropagate_AdaptiveMeetsHorizon(t *testing.T) {
	sys := vanDerPol(t)
	r0 := boxAround(t, lina.Vector{1.4, 2.3}, lina.Vector{0.01, 0.01})

	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal:    0.1,
		TimeStep:  0.02,
		Algorithm: AlgLinAdaptive,
		ErrTol:    0.5,
		MinStep:   1e-4,
	})
	if err != nil {
		t.Fatal(err)
	}
	last := fp.Segments[len(fp.Segments)-1]
	if math.Abs(last.T1-0.1) > 1e-9 {
		t.Errorf("adaptive run ended at %f, want 0.1", last.T1)
	}
}

func TestPropagate_AdaptiveBudgetExceeded(t *testing.T) {
	sys := vanDerPol(t)
	r0 := boxAround(t, lina.Vector{1.4, 2.3}, lina.Vector{0.5, 0.5})

	_, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal:    1.0,
		TimeStep:  0.1,
		Algorithm: AlgLinAdaptive,
		ErrTol:    1e-12, // unmeetable budget
		MinStep:   0.05,  // refinement floor close to the step
		MaxRefine: 8,
	})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatal("budget error must carry step context")
	}
}

func TestPropagate_PolySoundness(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})

	fp, err := Propagate(context.Background(), sys, r0, geometry.Zonotope{}, Params{
		TFinal: 0.2, TimeStep: 0.1, Algorithm: AlgPoly,
	})
	if err != nil {
		t.Fatal(err)
	}

	rnd := rand.New(rand.NewSource(3))
	for trial := 0; trial < 20; trial++ {
		x0 := lina.Vector{
			1 + (rnd.Float64()*2-1)*0.05,
			(rnd.Float64()*2 - 1) * 0.05,
		}
		traj, err := simulate.Sample(sys, x0, nil, 0.005, 0.2)
		if err != nil {
			t.Fatal(err)
		}
		for i, tm := range traj.Times {
			if !fp.Contains(tm, traj.States[i]) {
				t.Fatalf("trial %d: state %v at t=%.3f escaped the poly flowpipe",
					trial, traj.States[i], tm)
			}
		}
	}
}

func TestPropagate_ContextCancel(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Propagate(ctx, sys, r0, geometry.Zonotope{}, Params{TFinal: 1, TimeStep: 0.1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStepper_Incremental(t *testing.T) {
	sys := freeFall(t)
	r0 := boxAround(t, lina.Vector{1, 0}, lina.Vector{0.05, 0.05})
	st, err := NewStepper(sys, r0, geometry.Zonotope{}, Params{TFinal: 0.3, TimeStep: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for !st.Done() {
		if _, err := st.Step(); err != nil {
			t.Fatal(err)
		}
		n++
	}
	if n != 3 {
		t.Errorf("expected 3 steps, got %d", n)
	}
}
