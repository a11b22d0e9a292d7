package cli

import (
	"georef/internal/correspondence"
	"georef/internal/report"
	"georef/internal/workflow"

	"github.com/spf13/cobra"
)

func (a *app) fitCmd() *cobra.Command {
	var sessionPath, plotPath string

	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Estimate the transform of a session and report its residuals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, s, err := a.loadSession(sessionPath)
			if err != nil {
				return err
			}

			t, err := s.Estimate()
			if err != nil {
				return err
			}

			r := report.New(t, fitPairs(s))
			r.Session = file.Name
			a.logger.Info("transform estimated", "session", file.Name, "transform", t,
				"rms_error", r.Summary.RMS, "max_error", r.Summary.Max)

			if plotPath != "" {
				if err := report.PlotResiduals(r.Residuals, file.Name, plotPath); err != nil {
					return err
				}
				a.logger.Info("residual plot written", "path", plotPath)
			}
			return r.Encode(cmd.OutOrStdout(), a.cfg.Output.Indent)
		},
	}

	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "session file")
	cmd.Flags().StringVar(&plotPath, "plot", "", "write a residual plot (png, svg or pdf)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

// fitPairs returns the correspondences a transform is measured against:
// the picked pairs in point mode, the segment endpoints in line mode.
func fitPairs(s *workflow.Session) []correspondence.Pair {
	if s.Status().Mode == workflow.ModeLines {
		if line, ok := s.LineCorrespondence(); ok {
			return report.LinePairs(line)
		}
		return nil
	}
	return s.Pairs()
}
