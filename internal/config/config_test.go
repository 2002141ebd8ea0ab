package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verisim/reach/internal/flowpipe"
)

func writeSpec(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_RoundTrip(t *testing.T) {
	spec := GetPreset("vanderpol")
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, Save(path, spec))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, spec.Name, loaded.Name)
	require.Equal(t, spec.Reach.ErrTol, loaded.Reach.ErrTol)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := writeSpec(t, `
name: typo
system:
  model: freefall
initial:
  center: [1, 0]
  half_width: [0.05, 0.05]
reach:
  t_final: 0.4
  timestep: 0.02
`)
	_, err := Load(path)
	require.Error(t, err, "misspelled option must not be ignored")
}

func TestLoad_RejectsBadDimensions(t *testing.T) {
	path := writeSpec(t, `
name: bad
system:
  model: freefall
initial:
  center: [1, 0, 0]
  half_width: [0.05, 0.05, 0.05]
reach:
  t_final: 0.4
  time_step: 0.02
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidSpec)
}

func TestValidate_ModelAndMatricesExclusive(t *testing.T) {
	spec := Default()
	spec.System.A = [][]float64{{0, 1}, {0, 0}}
	require.ErrorIs(t, spec.Validate(), ErrInvalidSpec)
}

func TestValidate_UnknownModel(t *testing.T) {
	spec := Default()
	spec.System.Model = "lorenz"
	require.ErrorIs(t, spec.Validate(), ErrInvalidSpec)
}

func TestBuildSystem_Matrices(t *testing.T) {
	spec := &Spec{
		System: SystemSpec{
			A: [][]float64{{0, 1}, {0, 0}},
			C: []float64{0, -9.81},
		},
		Initial: BoxSpec{Center: []float64{1, 0}, HalfWidth: []float64{0.05, 0.05}},
		Reach:   ReachSpec{TFinal: 0.4, TimeStep: 0.02},
	}
	require.NoError(t, spec.Validate())

	sys, err := spec.BuildSystem()
	require.NoError(t, err)
	require.Equal(t, 2, sys.Dim())
	require.Equal(t, 0, sys.InputDim())
}

func TestParams_DefaultsApplied(t *testing.T) {
	p := Default().Params()
	require.Equal(t, flowpipe.DefaultTaylorOrder, p.TaylorOrder)
	require.Equal(t, flowpipe.DefaultZonotopeOrder, p.ZonotopeOrder)
}

func TestPresets_AllValid(t *testing.T) {
	for _, name := range ListPresets() {
		spec := GetPreset(name)
		require.NotNil(t, spec, name)
		require.NoError(t, spec.Validate(), name)
	}
	require.Nil(t, GetPreset("nonexistent"))
}

func TestPresets_BounceHasGuard(t *testing.T) {
	g, ok, err := GetPreset("bounce").BuildGuard()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ground", g.ID)

	_, ok, err = GetPreset("freefall").BuildGuard()
	require.NoError(t, err)
	require.False(t, ok)
}
