package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/verisim/reach/internal/config"
	"github.com/verisim/reach/internal/flowpipe"
	"github.com/verisim/reach/internal/hybrid"
	"github.com/verisim/reach/internal/lina"
	"github.com/verisim/reach/internal/simulate"
	"github.com/verisim/reach/internal/storage"
	"github.com/verisim/reach/internal/tui"
)

var (
	dataDir    string
	verbose    bool
	specFile   string
	presetName string
	algorithm  string
	tFinal     float64
	timeStep   float64
	plotDim    int
	sampleDt   float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reach",
		Short: "set-based reachability for continuous and hybrid systems",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".reach", "data directory")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "propagate a reachability spec and store the flowpipe",
		RunE:  runReach,
	}
	addSpecFlags(runCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "propagate and cross-validate against sampled trajectories",
		RunE:  checkReach,
	}
	addSpecFlags(checkCmd)
	checkCmd.Flags().Float64Var(&sampleDt, "sample-dt", 0, "sampling step (default time_step/5)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in specs",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODEL\tALGORITHM\tHORIZON")
			for _, name := range config.ListPresets() {
				spec := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\n",
					name, spec.System.Model, spec.Params().Algorithm, spec.Reach.TFinal)
			}
			return w.Flush()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run's bounds",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotDim, "dim", -1, "state dimension to plot (default all)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "write a stored run's bounds as CSV to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "write a stored run's bounds as JSON to stdout",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "propagate step by step with a live terminal view",
		RunE:  runLive,
	}
	addSpecFlags(liveCmd)

	rootCmd.AddCommand(runCmd, checkCmd, presetsCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, liveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&specFile, "spec", "", "spec file (yaml)")
	cmd.Flags().StringVar(&presetName, "preset", "", "built-in spec name")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "override algorithm")
	cmd.Flags().Float64Var(&tFinal, "t-final", 0, "override horizon")
	cmd.Flags().Float64Var(&timeStep, "time-step", 0, "override time step")
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// loadSpec resolves --spec/--preset plus flag overrides into a validated
// spec. Presets are copied before overrides so the table stays pristine.
func loadSpec(cmd *cobra.Command) (*config.Spec, error) {
	var spec *config.Spec
	switch {
	case specFile != "" && presetName != "":
		return nil, fmt.Errorf("give either --spec or --preset, not both")
	case specFile != "":
		loaded, err := config.Load(specFile)
		if err != nil {
			return nil, err
		}
		spec = loaded
	case presetName != "":
		p := config.GetPreset(presetName)
		if p == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", presetName, config.ListPresets())
		}
		cp := *p
		spec = &cp
	default:
		return nil, fmt.Errorf("need --spec or --preset")
	}

	if cmd.Flags().Changed("algorithm") {
		spec.Reach.Algorithm = algorithm
	}
	if cmd.Flags().Changed("t-final") {
		spec.Reach.TFinal = tFinal
	}
	if cmd.Flags().Changed("time-step") {
		spec.Reach.TimeStep = timeStep
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// propagate runs the spec and returns the flowpipe.
func propagate(ctx context.Context, spec *config.Spec) (*flowpipe.Flowpipe, error) {
	sys, err := spec.BuildSystem()
	if err != nil {
		return nil, err
	}
	r0, err := spec.InitialSet()
	if err != nil {
		return nil, err
	}
	inputs, err := spec.InputSet()
	if err != nil {
		return nil, err
	}
	return flowpipe.Propagate(ctx, sys, r0, inputs, spec.Params())
}

func runReach(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	spec, err := loadSpec(cmd)
	if err != nil {
		return err
	}
	params := spec.Params()

	logger.Info("propagating",
		zap.String("name", spec.Name),
		zap.String("algorithm", params.Algorithm),
		zap.Float64("t_final", params.TFinal))

	start := time.Now()
	fp, err := propagate(cmd.Context(), spec)
	if err != nil {
		return err
	}
	logger.Info("propagation finished",
		zap.Int("segments", fp.Len()),
		zap.Duration("elapsed", time.Since(start)))

	if spec.Guard != nil {
		if err := intersectGuard(cmd.Context(), logger, spec, fp); err != nil {
			return err
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(spec.Name, params, fp)
	if err != nil {
		return err
	}
	logger.Info("run stored", zap.String("run_id", runID))

	plotBounds(fp, spec.Name)
	return nil
}

// intersectGuard encloses the flowpipe's crossing of the spec's guard,
// starting the jump search from the final time-point enclosure.
func intersectGuard(ctx context.Context, logger *zap.Logger, spec *config.Spec, fp *flowpipe.Flowpipe) error {
	guard, ok, err := spec.BuildGuard()
	if err != nil || !ok {
		return err
	}
	sys, err := spec.BuildSystem()
	if err != nil {
		return err
	}
	inputs, err := spec.InputSet()
	if err != nil {
		return err
	}
	final, ok := fp.Final()
	if !ok {
		return fmt.Errorf("empty flowpipe, nothing to intersect")
	}

	onGuard, err := hybrid.IntersectGuard(ctx, sys, final, guard, hybrid.Options{
		TimeStep: spec.Reach.TimeStep,
		Inputs:   inputs,
	})
	if err != nil {
		return err
	}

	hull := onGuard.IntervalHull()
	fields := []zap.Field{zap.String("guard", guard.ID)}
	for i := 0; i < hull.Dim(); i++ {
		fields = append(fields, zap.String(fmt.Sprintf("x%d", i), hull.At(i).String()))
	}
	logger.Info("guard intersection", fields...)
	return nil
}

func checkReach(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	spec, err := loadSpec(cmd)
	if err != nil {
		return err
	}
	params := spec.Params()

	fp, err := propagate(cmd.Context(), spec)
	if err != nil {
		return err
	}

	sys, err := spec.BuildSystem()
	if err != nil {
		return err
	}
	r0, err := spec.InitialSet()
	if err != nil {
		return err
	}

	// Sample from the corners and center of the initial box; under a
	// constant center input when the system has one.
	hull := r0.IntervalHull()
	starts := append(hull.Corners(), hull.Center())
	var input simulate.InputSignal
	if spec.Inputs != nil {
		u := lina.Vector(spec.Inputs.Center).Clone()
		input = func(t float64) lina.Vector { return u }
	}

	dt := sampleDt
	if dt <= 0 {
		dt = params.TimeStep / 5
	}
	trajs, err := simulate.SampleEnsemble(cmd.Context(), sys, starts, input, dt, params.TFinal)
	if err != nil {
		return err
	}

	violations := 0
	checked := 0
	for _, traj := range trajs {
		for i, tm := range traj.Times {
			checked++
			if !fp.Contains(tm, traj.States[i]) {
				violations++
				logger.Warn("sampled state escaped the flowpipe",
					zap.Float64("t", tm),
					zap.Any("state", traj.States[i]))
			}
		}
	}

	logger.Info("cross-validation finished",
		zap.Int("trajectories", len(trajs)),
		zap.Int("states", checked),
		zap.Int("violations", violations))
	if violations > 0 {
		return fmt.Errorf("%d of %d sampled states escaped the enclosure", violations, checked)
	}
	fmt.Printf("ok: %d sampled states contained across %d trajectories\n", checked, len(trajs))
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tALGORITHM\tHORIZON\tSTEP\tSEGMENTS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Algorithm,
			run.TFinal,
			run.TimeStep,
			run.Segments,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	bounds, err := st.LoadBounds(args[0])
	if err != nil {
		return err
	}
	if len(bounds.T0) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\nalgorithm: %s\nsegments: %d\n\n", meta.ID, meta.Algorithm, meta.Segments)

	dims := []int{}
	for d := 0; d < meta.Dim; d++ {
		if plotDim < 0 || plotDim == d {
			dims = append(dims, d)
		}
	}
	for _, d := range dims {
		lo := make([]float64, len(bounds.T0))
		hi := make([]float64, len(bounds.T0))
		for i := range bounds.T0 {
			lo[i], hi[i] = bounds.Lo[i][d], bounds.Hi[i][d]
		}
		graph := asciigraph.PlotMany(
			[][]float64{lo, hi},
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("x%d bounds vs time", d)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	bounds, err := st.LoadBounds(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"t0", "t1"}
	for d := 0; d < meta.Dim; d++ {
		header = append(header, fmt.Sprintf("x%d_lo", d), fmt.Sprintf("x%d_hi", d))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range bounds.T0 {
		row := []string{
			strconv.FormatFloat(bounds.T0[i], 'f', 6, 64),
			strconv.FormatFloat(bounds.T1[i], 'f', 6, 64),
		}
		for d := 0; d < meta.Dim; d++ {
			row = append(row,
				strconv.FormatFloat(bounds.Lo[i][d], 'f', 6, 64),
				strconv.FormatFloat(bounds.Hi[i][d], 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	bounds, err := st.LoadBounds(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, meta, bounds)
}

func runLive(cmd *cobra.Command, args []string) error {
	spec, err := loadSpec(cmd)
	if err != nil {
		return err
	}
	sys, err := spec.BuildSystem()
	if err != nil {
		return err
	}
	r0, err := spec.InitialSet()
	if err != nil {
		return err
	}
	inputs, err := spec.InputSet()
	if err != nil {
		return err
	}

	m, err := tui.NewModel(spec.Name, sys, r0, inputs, spec.Params())
	if err != nil {
		return err
	}
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

// plotBounds prints a quick summary plot of every dimension's bounds.
func plotBounds(fp *flowpipe.Flowpipe, name string) {
	if fp.Len() == 0 {
		return
	}
	dim := fp.Segments[0].TimeInterval.Dim()
	for d := 0; d < dim; d++ {
		_, lo, hi := fp.Bounds(d)
		if len(lo) < 2 {
			continue
		}
		graph := asciigraph.PlotMany(
			[][]float64{lo, hi},
			asciigraph.Height(8),
			asciigraph.Width(72),
			asciigraph.Caption(fmt.Sprintf("%s: x%d bounds", name, d)),
		)
		fmt.Println(graph)
		fmt.Println()
	}
}
