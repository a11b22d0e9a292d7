// Package geometry provides the planar types shared by the estimator, the
// layer remapper and the workflow.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Length returns the distance from the origin.
func (p Point2D) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Rotate rotates the point around the origin, counter-clockwise.
func (p Point2D) Rotate(radians float64) Point2D {
	sin, cos := math.Sincos(radians)
	return Point2D{
		X: cos*p.X - sin*p.Y,
		Y: sin*p.X + cos*p.Y,
	}
}

// IsFinite reports whether both coordinates are neither NaN nor infinite.
func (p Point2D) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Segment is a directed line segment from P1 to P2.
type Segment struct {
	P1 Point2D `json:"p1"`
	P2 Point2D `json:"p2"`
}

// NewSegment creates a new Segment.
func NewSegment(p1, p2 Point2D) Segment {
	return Segment{P1: p1, P2: p2}
}

// Delta returns P2 - P1.
func (s Segment) Delta() Point2D {
	return s.P2.Sub(s.P1)
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.Delta().Length()
}

// Angle returns the direction of the segment in radians, in (-π, π].
func (s Segment) Angle() float64 {
	d := s.Delta()
	return math.Atan2(d.Y, d.X)
}

// Rect represents a rectangle with floating-point coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// NormalizeAngle maps an angle in radians into (-π, π].
func NormalizeAngle(radians float64) float64 {
	a := math.Mod(radians, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}
