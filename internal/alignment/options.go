// Package alignment estimates the transform that carries a layer onto the
// reference map from user-picked correspondences.
package alignment

import "errors"

// MinAffinePairs is the smallest number of point pairs that determines an
// affine transform.
const MinAffinePairs = 3

var (
	// ErrInsufficientCorrespondences is returned when fewer correspondences
	// are supplied than the estimator needs.
	ErrInsufficientCorrespondences = errors.New("insufficient correspondences")

	// ErrDegenerateConfiguration is returned when the correspondences cannot
	// determine a unique transform: collinear or coincident source points,
	// or a zero-length segment.
	ErrDegenerateConfiguration = errors.New("degenerate configuration")
)

// Options configures the estimators.
type Options struct {
	// DegeneracyTolerance is the smallest accepted value of det(AᵀA)/n⁶,
	// where A is built from centred source points scaled to unit RMS radius.
	DegeneracyTolerance float64

	// MinSegmentLength is the shortest segment accepted for a line
	// correspondence, in layer units.
	MinSegmentLength float64
}

// DefaultOptions returns default estimator options.
func DefaultOptions() Options {
	return Options{
		DegeneracyTolerance: 1e-9,
		MinSegmentLength:    1e-12,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.DegeneracyTolerance <= 0 {
		o.DegeneracyTolerance = def.DegeneracyTolerance
	}
	if o.MinSegmentLength <= 0 {
		o.MinSegmentLength = def.MinSegmentLength
	}
	return o
}
