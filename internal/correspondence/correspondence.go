// Package correspondence holds the user-declared pairings between the layer
// frame and the reference frame.
package correspondence

import (
	"errors"
	"fmt"

	"georef/pkg/geometry"
)

// ErrNonFinitePoint is returned for NaN or infinite coordinates.
var ErrNonFinitePoint = errors.New("non-finite point")

// Pair maps a Source point in the layer onto a Target point on the
// reference map. A Pair always has both roles set.
type Pair struct {
	Source geometry.Point2D `json:"source"`
	Target geometry.Point2D `json:"target"`
}

// NewPair creates a Pair after checking both points are finite.
func NewPair(source, target geometry.Point2D) (Pair, error) {
	if !source.IsFinite() {
		return Pair{}, fmt.Errorf("source %v: %w", source, ErrNonFinitePoint)
	}
	if !target.IsFinite() {
		return Pair{}, fmt.Errorf("target %v: %w", target, ErrNonFinitePoint)
	}
	return Pair{Source: source, Target: target}, nil
}

// Sources returns the source points of pairs, in order.
func Sources(pairs []Pair) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pairs))
	for i, p := range pairs {
		out[i] = p.Source
	}
	return out
}

// Targets returns the target points of pairs, in order.
func Targets(pairs []Pair) []geometry.Point2D {
	out := make([]geometry.Point2D, len(pairs))
	for i, p := range pairs {
		out[i] = p.Target
	}
	return out
}

// Line pairs a segment in the layer with a segment on the reference map.
type Line struct {
	Source geometry.Segment `json:"source"`
	Target geometry.Segment `json:"target"`
}

// NewLine creates a Line from two segments.
func NewLine(source, target geometry.Segment) Line {
	return Line{Source: source, Target: target}
}

// Builder assembles Pairs from a stream of picks. The first pick of each
// pair is the reference-map point, the second the layer point; a Pair is
// only produced once both are known.
type Builder struct {
	pending *geometry.Point2D
	pairs   []Pair
}

// Add records one pick. It returns the completed pair and true when the
// pick closed a pair.
func (b *Builder) Add(p geometry.Point2D) (Pair, bool, error) {
	if !p.IsFinite() {
		return Pair{}, false, fmt.Errorf("pick %v: %w", p, ErrNonFinitePoint)
	}
	if b.pending == nil {
		target := p
		b.pending = &target
		return Pair{}, false, nil
	}
	pair := Pair{Source: p, Target: *b.pending}
	b.pending = nil
	b.pairs = append(b.pairs, pair)
	return pair, true, nil
}

// Pending returns the reference point still waiting for its layer point.
func (b *Builder) Pending() (geometry.Point2D, bool) {
	if b.pending == nil {
		return geometry.Point2D{}, false
	}
	return *b.pending, true
}

// Len returns the number of completed pairs.
func (b *Builder) Len() int {
	return len(b.pairs)
}

// Pairs returns a copy of the completed pairs.
func (b *Builder) Pairs() []Pair {
	out := make([]Pair, len(b.pairs))
	copy(out, b.pairs)
	return out
}

// Reset discards all picks.
func (b *Builder) Reset() {
	b.pending = nil
	b.pairs = nil
}
