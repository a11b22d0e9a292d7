package alignment

import (
	"fmt"
	"math"

	"georef/internal/correspondence"
	"georef/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// EstimateAffine computes the least-squares affine transform carrying each
// pair's source onto its target. Three non-collinear pairs determine the
// transform exactly; more pairs are fitted jointly over both axes with
// every pair weighted equally.
func EstimateAffine(pairs []correspondence.Pair, opts Options) (geometry.AffineTransform, error) {
	opts = opts.withDefaults()

	n := len(pairs)
	if n < MinAffinePairs {
		return geometry.AffineTransform{}, fmt.Errorf("affine needs at least %d pairs, got %d: %w",
			MinAffinePairs, n, ErrInsufficientCorrespondences)
	}
	for i, p := range pairs {
		if !p.Source.IsFinite() || !p.Target.IsFinite() {
			return geometry.AffineTransform{}, fmt.Errorf("pair %d has non-finite coordinates: %w",
				i, ErrDegenerateConfiguration)
		}
	}

	// Work in centred, unit-RMS source coordinates so the determinant test
	// does not depend on where the layer sits or how large its units are.
	center, scale, ok := normalization(correspondence.Sources(pairs))
	if !ok {
		return geometry.AffineTransform{}, fmt.Errorf("source points coincide: %w", ErrDegenerateConfiguration)
	}

	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i, p := range pairs {
		x := (p.Source.X - center.X) * scale
		y := (p.Source.Y - center.Y) * scale

		// x' = a*x + b*y + tx
		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, p.Target.X)

		// y' = c*x + d*y + ty
		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, p.Target.Y)
	}

	// Normal equations: (AᵀA) p = AᵀB
	var ata mat.SymDense
	ata.SymOuterK(1, A.T())
	var atb mat.VecDense
	atb.MulVec(A.T(), B)

	det := mat.Det(&ata)
	if rel := math.Abs(det) / math.Pow(float64(n), 6); !(rel >= opts.DegeneracyTolerance) {
		return geometry.AffineTransform{}, fmt.Errorf("normal matrix is singular (relative determinant %.3g), source points are collinear: %w",
			rel, ErrDegenerateConfiguration)
	}

	var chol mat.Cholesky
	if !chol.Factorize(&ata) {
		return geometry.AffineTransform{}, fmt.Errorf("normal matrix is not positive definite: %w", ErrDegenerateConfiguration)
	}

	var params mat.VecDense
	if err := chol.SolveVecTo(&params, &atb); err != nil {
		return geometry.AffineTransform{}, fmt.Errorf("solve normal equations: %v: %w", err, ErrDegenerateConfiguration)
	}

	// Undo the source normalization: x̂ = scale*(x - cx).
	a, b, tx := params.AtVec(0)*scale, params.AtVec(1)*scale, params.AtVec(2)
	c, d, ty := params.AtVec(3)*scale, params.AtVec(4)*scale, params.AtVec(5)

	return geometry.AffineTransform{
		A:  a,
		B:  b,
		TX: tx - a*center.X - b*center.Y,
		C:  c,
		D:  d,
		TY: ty - c*center.X - d*center.Y,
	}, nil
}

// normalization returns the centroid of points and the factor that scales
// their RMS distance from it to 1. ok is false when all points coincide.
func normalization(points []geometry.Point2D) (center geometry.Point2D, scale float64, ok bool) {
	center = geometry.Centroid(points)

	var sumSq float64
	for _, p := range points {
		d := p.Sub(center)
		sumSq += d.X*d.X + d.Y*d.Y
	}
	rms := math.Sqrt(sumSq / float64(len(points)))
	if rms == 0 || math.IsInf(rms, 0) || math.IsNaN(rms) {
		return center, 0, false
	}
	return center, 1 / rms, true
}

// EstimateSimilarity computes the similarity transform (uniform scale,
// rotation, translation) that carries line.Source.P1 onto line.Target.P1
// and line.Source.P2 onto line.Target.P2 exactly.
func EstimateSimilarity(line correspondence.Line, opts Options) (geometry.SimilarityTransform, error) {
	opts = opts.withDefaults()

	for _, p := range []geometry.Point2D{line.Source.P1, line.Source.P2, line.Target.P1, line.Target.P2} {
		if !p.IsFinite() {
			return geometry.SimilarityTransform{}, fmt.Errorf("line has non-finite endpoint %v: %w",
				p, ErrDegenerateConfiguration)
		}
	}

	srcLen := line.Source.Length()
	dstLen := line.Target.Length()
	if !(srcLen > opts.MinSegmentLength) {
		return geometry.SimilarityTransform{}, fmt.Errorf("source segment has length %g: %w",
			srcLen, ErrDegenerateConfiguration)
	}
	if !(dstLen > opts.MinSegmentLength) {
		return geometry.SimilarityTransform{}, fmt.Errorf("target segment has length %g: %w",
			dstLen, ErrDegenerateConfiguration)
	}

	rotation := geometry.NormalizeAngle(line.Target.Angle() - line.Source.Angle())
	scale := dstLen / srcLen

	// t = target.P1 - scale * R(rotation) * source.P1
	translation := line.Target.P1.Sub(line.Source.P1.Rotate(rotation).Scale(scale))

	return geometry.SimilarityTransform{
		Scale:       scale,
		Rotation:    rotation,
		Translation: translation,
	}, nil
}
