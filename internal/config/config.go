// Package config loads and validates reachability run specifications from
// YAML. Unknown fields are rejected so a typo in an option name fails the
// run instead of silently falling back to a default.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/flowpipe"
	"github.com/verisim/reach/internal/geometry"
	"github.com/verisim/reach/internal/hybrid"
	"github.com/verisim/reach/internal/lina"
)

// ErrInvalidSpec indicates a specification that cannot describe a run.
var ErrInvalidSpec = errors.New("config: invalid spec")

// Spec is one reachability run: the system, the initial and input sets,
// the propagation parameters and an optional guard to intersect.
type Spec struct {
	Name    string     `yaml:"name"`
	System  SystemSpec `yaml:"system"`
	Initial BoxSpec    `yaml:"initial"`
	Inputs  *BoxSpec   `yaml:"inputs,omitempty"`
	Reach   ReachSpec  `yaml:"reach"`
	Guard   *GuardSpec `yaml:"guard,omitempty"`
}

// SystemSpec selects a built-in model by name or gives the matrices of a
// linear system x' = Ax + Bu + c directly. Exactly one of the two.
type SystemSpec struct {
	Model string      `yaml:"model,omitempty"`
	A     [][]float64 `yaml:"a,omitempty"`
	B     [][]float64 `yaml:"b,omitempty"`
	C     []float64   `yaml:"c,omitempty"`
}

// BoxSpec is an axis-aligned box given by center and half-widths.
type BoxSpec struct {
	Center    []float64 `yaml:"center"`
	HalfWidth []float64 `yaml:"half_width"`
}

// ReachSpec mirrors the propagation parameter record.
type ReachSpec struct {
	Algorithm      string  `yaml:"algorithm,omitempty"`
	TFinal         float64 `yaml:"t_final"`
	TimeStep       float64 `yaml:"time_step"`
	TaylorOrder    int     `yaml:"taylor_order,omitempty"`
	TaylorOrderMax int     `yaml:"taylor_order_max,omitempty"`
	ZonotopeOrder  float64 `yaml:"zonotope_order,omitempty"`
	ErrTol         float64 `yaml:"err_tol,omitempty"`
	MinStep        float64 `yaml:"min_step,omitempty"`
	MaxRefine      int     `yaml:"max_refine,omitempty"`
	PolyDegree     int     `yaml:"poly_degree,omitempty"`
}

// GuardSpec is a hyperplane guard to intersect the flowpipe with.
type GuardSpec struct {
	ID     string    `yaml:"id"`
	Normal []float64 `yaml:"normal"`
	Offset float64   `yaml:"offset"`
}

// Default returns the free-fall demo spec.
func Default() *Spec {
	return &Spec{
		Name:    "freefall",
		System:  SystemSpec{Model: "freefall"},
		Initial: BoxSpec{Center: []float64{1, 0}, HalfWidth: []float64{0.05, 0.05}},
		Reach:   ReachSpec{Algorithm: flowpipe.AlgLin, TFinal: 0.4, TimeStep: 0.02},
	}
}

// Load reads and validates a spec. Decoding is strict: fields not present
// in the schema are an error.
func Load(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	spec := &Spec{}
	if err := dec.Decode(spec); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Save writes the spec as YAML.
func Save(path string, spec *Spec) error {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the spec describes a well-formed run: a buildable
// system, matching set dimensions and acceptable parameters.
func (s *Spec) Validate() error {
	sys, err := s.BuildSystem()
	if err != nil {
		return err
	}
	if len(s.Initial.Center) != sys.Dim() || len(s.Initial.HalfWidth) != sys.Dim() {
		return fmt.Errorf("%w: initial box dim %d, system dim %d",
			ErrInvalidSpec, len(s.Initial.Center), sys.Dim())
	}
	if sys.InputDim() > 0 {
		if s.Inputs == nil {
			return fmt.Errorf("%w: system has %d inputs but no input box", ErrInvalidSpec, sys.InputDim())
		}
		if len(s.Inputs.Center) != sys.InputDim() || len(s.Inputs.HalfWidth) != sys.InputDim() {
			return fmt.Errorf("%w: input box dim %d, system input dim %d",
				ErrInvalidSpec, len(s.Inputs.Center), sys.InputDim())
		}
	}
	if s.Guard != nil && len(s.Guard.Normal) != sys.Dim() {
		return fmt.Errorf("%w: guard normal dim %d, system dim %d",
			ErrInvalidSpec, len(s.Guard.Normal), sys.Dim())
	}
	if err := s.Params().Validate(); err != nil {
		return err
	}
	return nil
}

// BuildSystem constructs the dynamical system the spec describes.
func (s *Spec) BuildSystem() (dynamics.System, error) {
	if s.System.Model != "" {
		if len(s.System.A) > 0 {
			return nil, fmt.Errorf("%w: give either a model name or matrices, not both", ErrInvalidSpec)
		}
		return buildModel(s.System.Model)
	}
	if len(s.System.A) == 0 {
		return nil, fmt.Errorf("%w: no system given", ErrInvalidSpec)
	}

	a := lina.MatrixFrom(s.System.A)
	var b lina.Matrix
	if len(s.System.B) > 0 {
		b = lina.MatrixFrom(s.System.B)
	}
	var c lina.Vector
	if len(s.System.C) > 0 {
		c = lina.Vector(s.System.C).Clone()
	}
	sys, err := dynamics.NewLinear(a, b, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return sys, nil
}

// InitialSet returns the initial box as a zonotope.
func (s *Spec) InitialSet() (geometry.Zonotope, error) {
	return boxZonotope(s.Initial)
}

// InputSet returns the input box as a zonotope, or an empty set when the
// spec has no inputs.
func (s *Spec) InputSet() (geometry.Zonotope, error) {
	if s.Inputs == nil {
		return geometry.Zonotope{}, nil
	}
	return boxZonotope(*s.Inputs)
}

// BuildGuard returns the guard, or false when the spec has none.
func (s *Spec) BuildGuard() (hybrid.Guard, bool, error) {
	if s.Guard == nil {
		return hybrid.Guard{}, false, nil
	}
	g, err := hybrid.NewGuard(s.Guard.ID, lina.Vector(s.Guard.Normal).Clone(), s.Guard.Offset, geometry.Interval{})
	if err != nil {
		return hybrid.Guard{}, false, err
	}
	return g, true, nil
}

// Params maps the reach section onto the propagation parameter record.
func (s *Spec) Params() flowpipe.Params {
	return flowpipe.Params{
		TFinal:         s.Reach.TFinal,
		TimeStep:       s.Reach.TimeStep,
		Algorithm:      s.Reach.Algorithm,
		TaylorOrder:    s.Reach.TaylorOrder,
		TaylorOrderMax: s.Reach.TaylorOrderMax,
		ZonotopeOrder:  s.Reach.ZonotopeOrder,
		ErrTol:         s.Reach.ErrTol,
		MinStep:        s.Reach.MinStep,
		MaxRefine:      s.Reach.MaxRefine,
		PolyDegree:     s.Reach.PolyDegree,
	}.WithDefaults()
}

func boxZonotope(b BoxSpec) (geometry.Zonotope, error) {
	iv, err := geometry.IntervalFromCenter(lina.Vector(b.Center), lina.Vector(b.HalfWidth))
	if err != nil {
		return geometry.Zonotope{}, err
	}
	return geometry.ZonotopeFromInterval(iv), nil
}

// buildModel constructs one of the built-in demo systems.
func buildModel(name string) (dynamics.System, error) {
	switch name {
	case "freefall":
		a := lina.MatrixFrom([][]float64{{0, 1}, {0, 0}})
		return dynamics.NewLinear(a, lina.Matrix{}, lina.Vector{0, -9.81})
	case "harmonic":
		a := lina.MatrixFrom([][]float64{{0, 1}, {-1, 0}})
		return dynamics.NewLinear(a, lina.Matrix{}, nil)
	case "vanderpol":
		return dynamics.NewNonlinear(2, 0, func(x, u lina.Vector) lina.Vector {
			return lina.Vector{x[1], (1-x[0]*x[0])*x[1] - x[0]}
		}, nil)
	default:
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidSpec, name)
	}
}
