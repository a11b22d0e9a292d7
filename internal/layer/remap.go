package layer

import (
	"errors"
	"fmt"
	"math"

	"georef/pkg/geometry"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// ErrNonFinite is returned when a transform produces a NaN or infinite
// coordinate.
var ErrNonFinite = errors.New("non-finite coordinate")

// Projection adapts t to orb's point projection.
func Projection(t geometry.Transform) orb.Projection {
	return func(p orb.Point) orb.Point {
		m := t.Map(geometry.NewPoint2D(p[0], p[1]))
		return orb.Point{m.X, m.Y}
	}
}

// Remap returns a copy of g with every vertex mapped through t. Vertex
// order, counts and ring/path grouping are unchanged, and g itself is not
// modified. A nil geometry remaps to nil.
func Remap(t geometry.Transform, g orb.Geometry) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}

	out := project.Geometry(orb.Clone(g), Projection(t))

	var bad orb.Point
	finite := eachPoint(out, func(p orb.Point) bool {
		if math.IsNaN(p[0]) || math.IsInf(p[0], 0) || math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
			bad = p
			return false
		}
		return true
	})
	if !finite {
		return nil, fmt.Errorf("%s vertex mapped to %v: %w", g.GeoJSONType(), bad, ErrNonFinite)
	}
	return out, nil
}

// VertexCount returns the number of vertices in g.
func VertexCount(g orb.Geometry) int {
	n := 0
	eachPoint(g, func(orb.Point) bool {
		n++
		return true
	})
	return n
}

// eachPoint calls fn for every vertex of g in order until fn returns false.
// It reports whether the walk finished.
func eachPoint(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch g := g.(type) {
	case nil:
		return true
	case orb.Point:
		return fn(g)
	case orb.MultiPoint:
		return eachOf(g, fn)
	case orb.LineString:
		return eachOf(g, fn)
	case orb.Ring:
		return eachOf(g, fn)
	case orb.MultiLineString:
		for _, ls := range g {
			if !eachOf(ls, fn) {
				return false
			}
		}
	case orb.Polygon:
		for _, r := range g {
			if !eachOf(r, fn) {
				return false
			}
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			if !eachPoint(poly, fn) {
				return false
			}
		}
	case orb.Collection:
		for _, c := range g {
			if !eachPoint(c, fn) {
				return false
			}
		}
	case orb.Bound:
		return fn(g.Min) && fn(g.Max)
	}
	return true
}

func eachOf[S ~[]orb.Point](points S, fn func(orb.Point) bool) bool {
	for _, p := range points {
		if !fn(p) {
			return false
		}
	}
	return true
}
