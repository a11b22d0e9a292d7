package report

import (
	"fmt"
	"image/color"

	"georef/internal/alignment"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

var (
	targetColor = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	mappedColor = color.RGBA{R: 30, G: 60, B: 220, A: 255}
	errorColor  = color.RGBA{R: 90, G: 90, B: 90, A: 255}
)

// PlotResiduals draws each reference point, where the transform put its
// layer point, and the error between them. The format follows the file
// extension (png, svg, pdf).
func PlotResiduals(residuals []alignment.Residual, title, path string) error {
	if len(residuals) == 0 {
		return fmt.Errorf("plot residuals: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"

	targets := make(plotter.XYs, len(residuals))
	mapped := make(plotter.XYs, len(residuals))
	for i, r := range residuals {
		targets[i] = plotter.XY{X: r.Pair.Target.X, Y: r.Pair.Target.Y}
		mapped[i] = plotter.XY{X: r.Mapped.X, Y: r.Mapped.Y}

		errLine, err := plotter.NewLine(plotter.XYs{targets[i], mapped[i]})
		if err != nil {
			return err
		}
		errLine.Color = errorColor
		errLine.Width = vg.Points(1)
		p.Add(errLine)
	}

	targetPts, err := plotter.NewScatter(targets)
	if err != nil {
		return err
	}
	targetPts.GlyphStyle.Color = targetColor
	targetPts.GlyphStyle.Shape = draw.CrossGlyph{}
	targetPts.GlyphStyle.Radius = vg.Points(4)
	p.Add(targetPts)
	p.Legend.Add("reference", targetPts)

	mappedPts, err := plotter.NewScatter(mapped)
	if err != nil {
		return err
	}
	mappedPts.GlyphStyle.Color = mappedColor
	mappedPts.GlyphStyle.Shape = draw.CircleGlyph{}
	mappedPts.GlyphStyle.Radius = vg.Points(3)
	p.Add(mappedPts)
	p.Legend.Add("mapped", mappedPts)

	p.Legend.Top = true
	p.Legend.Left = false

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save residual plot %s: %w", path, err)
	}
	return nil
}
