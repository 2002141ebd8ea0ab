// Package storage persists reachability runs on disk: one directory per
// run holding metadata.json and bounds.csv with the flowpipe's interval
// hull over time.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/verisim/reach/internal/flowpipe"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Algorithm string    `json:"algorithm"`
	Timestamp time.Time `json:"timestamp"`
	TFinal    float64   `json:"t_final"`
	TimeStep  float64   `json:"time_step"`
	Segments  int       `json:"segments"`
	Dim       int       `json:"dim"`
}

// Save writes the run under a fresh directory and returns its ID.
func (s *Store) Save(name string, params flowpipe.Params, fp *flowpipe.Flowpipe) (string, error) {
	runID := fmt.Sprintf("%s_%d", name, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	dim := 0
	if fp.Len() > 0 {
		dim = fp.Segments[0].TimeInterval.Dim()
	}
	meta := RunMetadata{
		ID:        runID,
		Name:      name,
		Algorithm: params.Algorithm,
		Timestamp: time.Now(),
		TFinal:    params.TFinal,
		TimeStep:  params.TimeStep,
		Segments:  fp.Len(),
		Dim:       dim,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "bounds.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteBounds(csvFile, fp); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteBounds writes the per-segment interval hulls as CSV: the segment's
// time span followed by lower and upper bounds per dimension.
func WriteBounds(out io.Writer, fp *flowpipe.Flowpipe) error {
	w := csv.NewWriter(out)
	if fp.Len() == 0 {
		return nil
	}
	dim := fp.Segments[0].TimeInterval.Dim()

	header := []string{"t0", "t1"}
	for i := 0; i < dim; i++ {
		header = append(header, fmt.Sprintf("x%d_lo", i), fmt.Sprintf("x%d_hi", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, seg := range fp.Segments {
		hull := seg.TimeInterval.IntervalHull()
		row := []string{
			strconv.FormatFloat(seg.T0, 'f', 6, 64),
			strconv.FormatFloat(seg.T1, 'f', 6, 64),
		}
		for i := 0; i < dim; i++ {
			sp := hull.At(i)
			row = append(row,
				strconv.FormatFloat(sp.Lo, 'f', 6, 64),
				strconv.FormatFloat(sp.Hi, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Bounds is the parsed content of a run's bounds.csv.
type Bounds struct {
	T0, T1 []float64
	Lo, Hi [][]float64 // per segment, per dimension
}

func (s *Store) LoadBounds(runID string) (*Bounds, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "bounds.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return &Bounds{}, nil
	}

	dim := (len(records[0]) - 2) / 2
	b := &Bounds{}
	for _, rec := range records[1:] {
		t0, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: bad bounds row: %w", runID, err)
		}
		t1, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: bad bounds row: %w", runID, err)
		}
		lo := make([]float64, dim)
		hi := make([]float64, dim)
		for i := 0; i < dim; i++ {
			if lo[i], err = strconv.ParseFloat(rec[2+2*i], 64); err != nil {
				return nil, fmt.Errorf("storage: %s: bad bounds row: %w", runID, err)
			}
			if hi[i], err = strconv.ParseFloat(rec[3+2*i], 64); err != nil {
				return nil, fmt.Errorf("storage: %s: bad bounds row: %w", runID, err)
			}
		}
		b.T0 = append(b.T0, t0)
		b.T1 = append(b.T1, t1)
		b.Lo = append(b.Lo, lo)
		b.Hi = append(b.Hi, hi)
	}
	return b, nil
}
