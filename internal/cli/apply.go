package cli

import (
	"errors"
	"os"

	"georef/internal/layer"
	"georef/internal/report"

	"github.com/spf13/cobra"
)

func (a *app) applyCmd() *cobra.Command {
	var sessionPath, layerPath, outPath, reportPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Remap a GeoJSON layer with the transform of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, s, err := a.loadSession(sessionPath)
			if err != nil {
				return err
			}

			path := layerPath
			if path == "" {
				path = file.GetLayerPath(sessionPath)
			}
			if path == "" {
				return errors.New("no layer: pass --layer or set one in the session file")
			}
			l, err := layer.LoadFile(path)
			if err != nil {
				return err
			}

			t, err := s.Apply(l)
			if err != nil {
				return err
			}

			indent := a.cfg.Output.Indent
			if outPath == "" || outPath == "-" {
				if err := l.Encode(cmd.OutOrStdout(), indent); err != nil {
					return err
				}
			} else {
				if err := l.Save(outPath, indent); err != nil {
					return err
				}
				a.logger.Info("layer written", "path", outPath, "features", l.Len())
			}

			if reportPath == "" {
				return nil
			}
			r := report.New(t, fitPairs(s))
			r.Session = file.Name
			r.Layer = &report.LayerStats{
				Name:     l.Name(),
				Features: l.Len(),
				Vertices: l.VertexCount(),
			}
			r.Layer.Bound, _ = l.Bound()

			f, err := os.Create(reportPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return r.Encode(f, indent)
		},
	}

	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "session file")
	cmd.Flags().StringVar(&layerPath, "layer", "", "GeoJSON layer (default: the layer named in the session file)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output GeoJSON file, - for stdout")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write a JSON fit report")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
