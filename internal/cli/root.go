// Package cli implements the georef command line.
package cli

import (
	"io"
	"log/slog"
	"os"

	"georef/internal/config"
	"georef/internal/logging"
	"georef/internal/project"
	"georef/internal/workflow"

	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the georef command with the process arguments.
func Execute() error {
	return NewRootCommand(os.Stdout, os.Stderr).Execute()
}

// NewRootCommand builds the georef command tree. Command output goes to
// stdout, logs to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "georef",
		Short:        "Fit and apply georeferencing transforms to vector layers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = a.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format = a.logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.Setup(stderr, cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ./georef.yaml if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(a.fitCmd(), a.applyCmd(), versionCmd())
	return root
}

// loadSession reads a session file and replays its picks into a new
// workflow session. Every recorded pair is used, even beyond the
// configured minimum.
func (a *app) loadSession(path string) (*project.File, *workflow.Session, error) {
	file, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}

	opts := workflow.Options{
		RequiredPairs: a.cfg.Workflow.RequiredPairs,
		Estimator:     a.cfg.Estimator.Options(),
		Logger:        a.logger,
	}
	if n := len(file.Pairs); n > opts.RequiredPairs {
		opts.RequiredPairs = n
	}

	s := workflow.NewSession(opts)
	if err := file.Replay(s); err != nil {
		return nil, nil, err
	}
	a.logger.Debug("session replayed", "session", file.Name, "status", s.Status())
	return file, s, nil
}
