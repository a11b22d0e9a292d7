package alignment

import (
	"math"

	"georef/internal/correspondence"
	"georef/pkg/geometry"
)

// Residual is the misfit of one pair under a transform.
type Residual struct {
	Pair   correspondence.Pair `json:"pair"`
	Mapped geometry.Point2D    `json:"mapped"`
	Error  float64             `json:"error"`
}

// Summary aggregates residual errors.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	RMS   float64 `json:"rms"`
	Max   float64 `json:"max"`
}

// Residuals maps every pair's source through t and measures the distance to
// its target.
func Residuals(pairs []correspondence.Pair, t geometry.Transform) []Residual {
	out := make([]Residual, len(pairs))
	for i, p := range pairs {
		mapped := t.Map(p.Source)
		out[i] = Residual{
			Pair:   p,
			Mapped: mapped,
			Error:  mapped.Distance(p.Target),
		}
	}
	return out
}

// Summarize computes the mean, RMS and maximum error.
func Summarize(residuals []Residual) Summary {
	s := Summary{Count: len(residuals)}
	if s.Count == 0 {
		return s
	}

	var sum, sumSq float64
	for _, r := range residuals {
		sum += r.Error
		sumSq += r.Error * r.Error
		s.Max = math.Max(s.Max, r.Error)
	}
	n := float64(s.Count)
	s.Mean = sum / n
	s.RMS = math.Sqrt(sumSq / n)
	return s
}
