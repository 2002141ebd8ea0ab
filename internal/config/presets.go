package config

import (
	"sort"

	"github.com/verisim/reach/internal/flowpipe"
)

// Presets are ready-to-run specs for the built-in models.
var Presets = map[string]*Spec{
	"freefall": {
		Name:    "freefall",
		System:  SystemSpec{Model: "freefall"},
		Initial: BoxSpec{Center: []float64{1, 0}, HalfWidth: []float64{0.05, 0.05}},
		Reach:   ReachSpec{Algorithm: flowpipe.AlgLin, TFinal: 0.4, TimeStep: 0.02},
	},
	"harmonic": {
		Name:    "harmonic",
		System:  SystemSpec{Model: "harmonic"},
		Initial: BoxSpec{Center: []float64{1, 0}, HalfWidth: []float64{0.02, 0.02}},
		Reach:   ReachSpec{Algorithm: flowpipe.AlgLin, TFinal: 6.0, TimeStep: 0.02},
	},
	"vanderpol": {
		Name:    "vanderpol",
		System:  SystemSpec{Model: "vanderpol"},
		Initial: BoxSpec{Center: []float64{1.4, 2.3}, HalfWidth: []float64{0.01, 0.01}},
		Reach: ReachSpec{
			Algorithm: flowpipe.AlgLinAdaptive,
			TFinal:    1.0, TimeStep: 0.02,
			ErrTol: 0.5, MinStep: 1e-4,
		},
	},
	// Free fall onto the ground plane; exercises the guard intersection.
	"bounce": {
		Name:    "bounce",
		System:  SystemSpec{Model: "freefall"},
		Initial: BoxSpec{Center: []float64{1, 0}, HalfWidth: []float64{0.02, 0.02}},
		Reach:   ReachSpec{Algorithm: flowpipe.AlgLin, TFinal: 0.4, TimeStep: 0.02},
		Guard:   &GuardSpec{ID: "ground", Normal: []float64{1, 0}, Offset: 0},
	},
}

// GetPreset returns the named preset or nil.
func GetPreset(name string) *Spec {
	return Presets[name]
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
