// Package config loads georef settings from defaults, an optional config
// file and GEOREF_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"georef/internal/alignment"
	"georef/internal/workflow"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Output    OutputConfig    `mapstructure:"output"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type EstimatorConfig struct {
	DegeneracyTolerance float64 `mapstructure:"degeneracy_tolerance"`
	MinSegmentLength    float64 `mapstructure:"min_segment_length"`
}

// Options converts the section to estimator options.
func (e EstimatorConfig) Options() alignment.Options {
	return alignment.Options{
		DegeneracyTolerance: e.DegeneracyTolerance,
		MinSegmentLength:    e.MinSegmentLength,
	}
}

type WorkflowConfig struct {
	RequiredPairs int `mapstructure:"required_pairs"`
}

type OutputConfig struct {
	Indent bool `mapstructure:"indent"`
}

// Load reads configuration. path names an explicit config file; when empty,
// georef.yaml is looked up in the working directory and ./configs, and a
// missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	est := alignment.DefaultOptions()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("estimator.degeneracy_tolerance", est.DegeneracyTolerance)
	v.SetDefault("estimator.min_segment_length", est.MinSegmentLength)
	v.SetDefault("workflow.required_pairs", workflow.DefaultOptions().RequiredPairs)
	v.SetDefault("output.indent", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("georef")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// Environment variables: GEOREF_LOG_LEVEL → log.level
	v.SetEnvPrefix("GEOREF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that configuration values are sane.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}
	if !(c.Estimator.DegeneracyTolerance > 0) {
		errs = append(errs, "estimator.degeneracy_tolerance must be positive")
	}
	if !(c.Estimator.MinSegmentLength > 0) {
		errs = append(errs, "estimator.min_segment_length must be positive")
	}
	if c.Workflow.RequiredPairs < alignment.MinAffinePairs {
		errs = append(errs, fmt.Sprintf("workflow.required_pairs must be at least %d, got %d",
			alignment.MinAffinePairs, c.Workflow.RequiredPairs))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
