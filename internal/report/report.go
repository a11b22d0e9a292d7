// Package report summarizes an estimated transform and how well it fits
// the correspondences it was built from.
package report

import (
	"encoding/json"
	"io"

	"georef/internal/alignment"
	"georef/internal/correspondence"
	"georef/pkg/geometry"
)

// Report is the machine-readable result of a fit.
type Report struct {
	Session   string               `json:"session,omitempty"`
	Kind      geometry.Kind        `json:"kind"`
	Transform geometry.Transform   `json:"transform"`
	Matrix    [2][3]float64        `json:"matrix"`
	Inverse   *[2][3]float64       `json:"inverse,omitempty"`
	Residuals []alignment.Residual `json:"residuals,omitempty"`
	Summary   alignment.Summary    `json:"summary"`
	Layer     *LayerStats          `json:"layer,omitempty"`
}

// LayerStats describes the layer a transform was applied to.
type LayerStats struct {
	Name     string        `json:"name"`
	Features int           `json:"features"`
	Vertices int           `json:"vertices"`
	Bound    geometry.Rect `json:"bound"`
}

// New builds a report for t measured against pairs.
func New(t geometry.Transform, pairs []correspondence.Pair) Report {
	affine := t.Affine()
	r := Report{
		Kind:      t.Kind(),
		Transform: t,
		Matrix:    affine.ToMatrix(),
	}
	if inv, ok := affine.Inverse(); ok {
		m := inv.ToMatrix()
		r.Inverse = &m
	}
	r.Residuals = alignment.Residuals(pairs, t)
	r.Summary = alignment.Summarize(r.Residuals)
	return r
}

// LinePairs returns the endpoint pairs of a line correspondence, so a
// similarity fit can be reported like a point fit.
func LinePairs(line correspondence.Line) []correspondence.Pair {
	return []correspondence.Pair{
		{Source: line.Source.P1, Target: line.Target.P1},
		{Source: line.Source.P2, Target: line.Target.P2},
	}
}

// Encode writes the report as JSON.
func (r Report) Encode(w io.Writer, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}
