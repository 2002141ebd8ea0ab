package storage

import (
	"encoding/json"
	"io"
)

// ExportData is the JSON export of one run: its metadata plus the
// interval hull of every segment.
type ExportData struct {
	Name      string      `json:"name"`
	Algorithm string      `json:"algorithm"`
	TFinal    float64     `json:"t_final"`
	TimeStep  float64     `json:"time_step"`
	Segments  int         `json:"segments"`
	T0        []float64   `json:"t0"`
	T1        []float64   `json:"t1"`
	Lo        [][]float64 `json:"lo"`
	Hi        [][]float64 `json:"hi"`
}

// ExportJSON writes a stored run's bounds as indented JSON.
func ExportJSON(out io.Writer, meta *RunMetadata, b *Bounds) error {
	data := ExportData{
		Name:      meta.Name,
		Algorithm: meta.Algorithm,
		TFinal:    meta.TFinal,
		TimeStep:  meta.TimeStep,
		Segments:  meta.Segments,
		T0:        b.T0,
		T1:        b.T1,
		Lo:        b.Lo,
		Hi:        b.Hi,
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
