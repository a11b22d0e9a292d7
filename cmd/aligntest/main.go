// Command aligntest fits an affine transform to synthetic correspondences
// drawn from a known transform and prints how well it was recovered.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"

	"georef/internal/alignment"
	"georef/internal/correspondence"
	"georef/internal/report"
	"georef/pkg/geometry"

	"github.com/spf13/cobra"
)

type params struct {
	truth    geometry.AffineTransform
	pairs    int
	extent   float64
	noise    float64
	seed     int64
	plotPath string
}

func main() {
	p := params{truth: geometry.Identity()}

	cmd := &cobra.Command{
		Use:          "aligntest",
		Short:        "Recover a known affine transform from noisy synthetic pairs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(p)
		},
	}
	f := cmd.Flags()
	f.Float64Var(&p.truth.A, "a", 0.9659, "true transform coefficient a")
	f.Float64Var(&p.truth.B, "b", -0.2588, "true transform coefficient b")
	f.Float64Var(&p.truth.TX, "tx", 500, "true transform x offset")
	f.Float64Var(&p.truth.C, "c", 0.2588, "true transform coefficient c")
	f.Float64Var(&p.truth.D, "d", 0.9659, "true transform coefficient d")
	f.Float64Var(&p.truth.TY, "ty", -250, "true transform y offset")
	f.IntVarP(&p.pairs, "pairs", "n", 8, "number of correspondences")
	f.Float64Var(&p.extent, "extent", 1000, "source points are drawn from [0, extent)^2")
	f.Float64Var(&p.noise, "noise", 0.5, "standard deviation of target noise")
	f.Int64Var(&p.seed, "seed", 1, "random seed")
	f.StringVar(&p.plotPath, "plot", "", "write a residual plot")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(p params) error {
	rng := rand.New(rand.NewSource(p.seed))

	pairs := make([]correspondence.Pair, p.pairs)
	for i := range pairs {
		src := geometry.NewPoint2D(rng.Float64()*p.extent, rng.Float64()*p.extent)
		dst := p.truth.Map(src).Add(geometry.NewPoint2D(rng.NormFloat64()*p.noise, rng.NormFloat64()*p.noise))
		pairs[i] = correspondence.Pair{Source: src, Target: dst}
	}

	fmt.Printf("=== Fitting %d pairs (noise %.3f) ===\n", p.pairs, p.noise)
	fit, err := alignment.EstimateAffine(pairs, alignment.DefaultOptions())
	if err != nil {
		return err
	}

	fmt.Printf("True:      %s\n", p.truth)
	fmt.Printf("Estimated: %s\n", fit)

	angle := func(t geometry.AffineTransform) float64 {
		return math.Atan2(t.C, t.A) * 180 / math.Pi
	}
	scale := func(t geometry.AffineTransform) float64 {
		return math.Sqrt(math.Abs(t.Determinant()))
	}
	fmt.Printf("Rotation: %.4f° (true %.4f°)\n", angle(fit), angle(p.truth))
	fmt.Printf("Scale: %.6f (true %.6f)\n", scale(fit), scale(p.truth))
	fmt.Printf("Translation: (%.2f, %.2f) (true %.2f, %.2f)\n", fit.TX, fit.TY, p.truth.TX, p.truth.TY)

	residuals := alignment.Residuals(pairs, fit)
	summary := alignment.Summarize(residuals)
	fmt.Printf("\n=== Residuals ===\n")
	fmt.Printf("Mean: %.3f  RMS: %.3f  Max: %.3f\n", summary.Mean, summary.RMS, summary.Max)

	sort.Slice(residuals, func(i, j int) bool { return residuals[i].Error > residuals[j].Error })
	for _, r := range residuals {
		fmt.Printf("  X=%8.1f Y=%8.1f  err=%.3f\n", r.Pair.Target.X, r.Pair.Target.Y, r.Error)
	}

	if p.plotPath != "" {
		if err := report.PlotResiduals(residuals, "aligntest", p.plotPath); err != nil {
			return err
		}
		fmt.Printf("\nPlot written to %s\n", p.plotPath)
	}
	return nil
}
