package geometry

import (
	"fmt"
	"math"
)

// Kind identifies which estimator produced a Transform.
type Kind string

const (
	KindAffine     Kind = "affine"
	KindSimilarity Kind = "similarity"
)

// Transform maps points from the layer frame into the reference frame.
// AffineTransform and SimilarityTransform are the only implementations.
type Transform interface {
	// Map applies the transform to a single point.
	Map(p Point2D) Point2D

	// Kind returns the transform variant.
	Kind() Kind

	// Affine returns the equivalent 2x3 affine matrix.
	Affine() AffineTransform

	sealed()
}

// AffineTransform represents a 2x3 affine transformation matrix.
// [a b tx]
// [c d ty]
type AffineTransform struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	TX float64 `json:"tx"`
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	TY float64 `json:"ty"`
}

// Identity returns the identity transform.
func Identity() AffineTransform {
	return AffineTransform{A: 1, D: 1}
}

// Translation returns a translation transform.
func Translation(tx, ty float64) AffineTransform {
	return AffineTransform{A: 1, D: 1, TX: tx, TY: ty}
}

// Map applies the transform to a point.
func (t AffineTransform) Map(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

func (t AffineTransform) Kind() Kind { return KindAffine }

func (t AffineTransform) Affine() AffineTransform { return t }

func (AffineTransform) sealed() {}

// Compose returns this transform composed with another (this * other).
// Applying the result is equivalent to applying other first, then t.
func (t AffineTransform) Compose(other AffineTransform) AffineTransform {
	return AffineTransform{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// Determinant returns a*d - b*c.
func (t AffineTransform) Determinant() float64 {
	return t.A*t.D - t.B*t.C
}

// Inverse returns the inverse transform, if it exists.
func (t AffineTransform) Inverse() (AffineTransform, bool) {
	det := t.Determinant()
	if math.Abs(det) < 1e-10 {
		return AffineTransform{}, false
	}

	invDet := 1.0 / det
	return AffineTransform{
		A:  t.D * invDet,
		B:  -t.B * invDet,
		TX: (t.B*t.TY - t.D*t.TX) * invDet,
		C:  -t.C * invDet,
		D:  t.A * invDet,
		TY: (t.C*t.TX - t.A*t.TY) * invDet,
	}, true
}

// ToMatrix returns the transform as a [2][3]float64 array.
func (t AffineTransform) ToMatrix() [2][3]float64 {
	return [2][3]float64{
		{t.A, t.B, t.TX},
		{t.C, t.D, t.TY},
	}
}

func (t AffineTransform) String() string {
	return fmt.Sprintf("affine[a=%g b=%g tx=%g c=%g d=%g ty=%g]", t.A, t.B, t.TX, t.C, t.D, t.TY)
}

// SimilarityTransform is a uniform scale and rotation about the origin
// followed by a translation. It preserves angles and shape.
type SimilarityTransform struct {
	Scale       float64 `json:"scale"`
	Rotation    float64 `json:"rotation_radians"`
	Translation Point2D `json:"translation"`
}

// Map applies the transform to a point.
func (t SimilarityTransform) Map(p Point2D) Point2D {
	return p.Rotate(t.Rotation).Scale(t.Scale).Add(t.Translation)
}

func (t SimilarityTransform) Kind() Kind { return KindSimilarity }

// Affine returns the similarity as a 2x3 matrix.
func (t SimilarityTransform) Affine() AffineTransform {
	sin, cos := math.Sincos(t.Rotation)
	return AffineTransform{
		A: t.Scale * cos, B: -t.Scale * sin, TX: t.Translation.X,
		C: t.Scale * sin, D: t.Scale * cos, TY: t.Translation.Y,
	}
}

func (SimilarityTransform) sealed() {}

func (t SimilarityTransform) String() string {
	return fmt.Sprintf("similarity[scale=%g rotation=%g translation=(%g, %g)]",
		t.Scale, t.Rotation, t.Translation.X, t.Translation.Y)
}

// MapPoints returns a new slice holding t applied to every point, in order.
// The input slice is not modified.
func MapPoints(t Transform, points []Point2D) []Point2D {
	out := make([]Point2D, len(points))
	for i, p := range points {
		out[i] = t.Map(p)
	}
	return out
}
