// Package simulate samples concrete trajectories of a system with a
// classical RK4 integrator. Samples are used only to cross-check computed
// enclosures; they never certify anything and never feed back into
// propagation.
package simulate

import (
	"context"
	"fmt"
	"sync"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/lina"
)

// InputSignal supplies the input at time t. Nil means zero input.
type InputSignal func(t float64) lina.Vector

// Trajectory is a finite time-ordered sequence of sampled states.
type Trajectory struct {
	Times  []float64
	States []lina.Vector
}

// Sample integrates from x0 with the given input signal at fixed step dt
// until tFinal, recording every step including the initial state.
func Sample(sys dynamics.System, x0 lina.Vector, input InputSignal, dt, tFinal float64) (Trajectory, error) {
	if dt <= 0 || tFinal <= 0 {
		return Trajectory{}, fmt.Errorf("simulate: dt and tFinal must be positive (dt=%g, tFinal=%g)", dt, tFinal)
	}
	u := func(t float64) lina.Vector {
		if input == nil {
			return nil
		}
		return input(t)
	}

	x := x0.Clone()
	t := 0.0
	traj := Trajectory{Times: []float64{0}, States: []lina.Vector{x.Clone()}}
	for t < tFinal-1e-12 {
		h := dt
		if t+h > tFinal {
			h = tFinal - t
		}
		x = rk4Step(sys, x, u(t), t, h)
		if !x.IsValid() {
			return traj, fmt.Errorf("simulate: invalid state at t=%.4f", t+h)
		}
		t += h
		traj.Times = append(traj.Times, t)
		traj.States = append(traj.States, x.Clone())
	}
	return traj, nil
}

func rk4Step(sys dynamics.System, x lina.Vector, u lina.Vector, t, dt float64) lina.Vector {
	k1 := sys.Eval(x, u)
	k2 := sys.Eval(x.Add(k1.Scale(dt/2)), u)
	k3 := sys.Eval(x.Add(k2.Scale(dt/2)), u)
	k4 := sys.Eval(x.Add(k3.Scale(dt)), u)
	incr := k1.Add(k2.Scale(2)).Add(k3.Scale(2)).Add(k4).Scale(dt / 6)
	return x.Add(incr)
}

// SampleEnsemble integrates all start points concurrently, one goroutine
// per trajectory, each with its own state copies. Order of results matches
// the order of start points.
func SampleEnsemble(ctx context.Context, sys dynamics.System, starts []lina.Vector, input InputSignal, dt, tFinal float64) ([]Trajectory, error) {
	trajs := make([]Trajectory, len(starts))
	errs := make([]error, len(starts))

	var wg sync.WaitGroup
	for i, x0 := range starts {
		wg.Add(1)
		go func(idx int, x0 lina.Vector) {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}
			trajs[idx], errs[idx] = Sample(sys, x0.Clone(), input, dt, tFinal)
		}(i, x0)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return trajs, nil
}
