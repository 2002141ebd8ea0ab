package simulate

import (
	"context"
	"math"
	"testing"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/lina"
)

func harmonic(t *testing.T) dynamics.System {
	t.Helper()
	a := lina.MatrixFrom([][]float64{{0, 1}, {-1, 0}})
	sys, err := dynamics.NewLinear(a, lina.Matrix{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return sys
}

func TestSample_HarmonicOscillator(t *testing.T) {
	sys := harmonic(t)
	traj, err := Sample(sys, lina.Vector{1, 0}, nil, 0.01, 2*math.Pi)
	if err != nil {
		t.Fatal(err)
	}

	final := traj.States[len(traj.States)-1]
	if math.Abs(final[0]-1) > 1e-6 || math.Abs(final[1]) > 1e-6 {
		t.Errorf("expected return to (1,0) after one period, got %v", final)
	}
	if traj.Times[0] != 0 {
		t.Error("trajectory must start at t=0")
	}
	for i := 1; i < len(traj.Times); i++ {
		if traj.Times[i] <= traj.Times[i-1] {
			t.Fatal("times not strictly increasing")
		}
	}
}

func TestSample_RejectsBadStep(t *testing.T) {
	sys := harmonic(t)
	if _, err := Sample(sys, lina.Vector{1, 0}, nil, 0, 1); err == nil {
		t.Error("expected error for dt=0")
	}
	if _, err := Sample(sys, lina.Vector{1, 0}, nil, 0.01, -1); err == nil {
		t.Error("expected error for negative tFinal")
	}
}

func TestSampleEnsemble(t *testing.T) {
	sys := harmonic(t)
	starts := []lina.Vector{{1, 0}, {0, 1}, {0.5, 0.5}}
	trajs, err := SampleEnsemble(context.Background(), sys, starts, nil, 0.01, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(trajs) != 3 {
		t.Fatalf("expected 3 trajectories, got %d", len(trajs))
	}
	for i, traj := range trajs {
		if len(traj.States) == 0 {
			t.Errorf("trajectory %d empty", i)
		}
		if !traj.States[0].IsValid() {
			t.Errorf("trajectory %d has invalid start", i)
		}
	}
	// Results must match the start-point order.
	if trajs[0].States[0][0] != 1 || trajs[1].States[0][1] != 1 {
		t.Error("trajectory order does not match start order")
	}
}
