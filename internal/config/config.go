package config

import (
	"fmt"
	"math"
	"runtime"

	"go.uber.org/zap/zapcore"

	"github.com/yumyai/regionfinder/logger"
	"github.com/yumyai/regionfinder/pkg/model"
)

const (
	DefaultLostMaxCov      = 0.1
	DefaultConservedMaxCov = 3.0
	DefaultMinCov          = 1.0
)

// ConfigError is a bad flag value. The program exits with usage status.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Config is the resolved, validated run configuration.
type Config struct {
	Input      string
	OutputDir  string
	ContigList string
	DBPath     string
	Assembly   model.Assembly
	Params     model.Params
	Threads    int
	LogLevel   zapcore.Level

	// Defaulted names the mode dependent flags that were filled in, so the
	// values can be logged once the logger is up.
	Defaulted []string
}

// Resolve applies mode dependent defaults and validates the options.
func (o *Options) Resolve() (Config, error) {
	mode, err := model.ParseMode(o.Mode)
	if err != nil {
		return Config{}, &ConfigError{Field: "mode", Message: err.Error(), Err: err}
	}
	assembly, err := model.ParseAssembly(o.Assembly)
	if err != nil {
		return Config{}, &ConfigError{Field: "assembly", Message: err.Error(), Err: err}
	}
	level, err := logger.ParseLevel(o.LogLevel)
	if err != nil {
		return Config{}, &ConfigError{Field: "log-level", Message: err.Error(), Err: err}
	}

	cfg := Config{
		Input:      o.Input,
		OutputDir:  o.OutputDir,
		ContigList: o.Contigs,
		DBPath:     o.DB,
		Assembly:   assembly,
		Threads:    o.Threads,
		LogLevel:   level,
		Params: model.Params{
			Mode:        mode,
			WindowSize:  o.WindowSize,
			Shift:       o.Shift,
			VarFraction: o.Var,
		},
	}

	switch {
	case o.MaxCov != nil:
		cfg.Params.MaxCovFraction = *o.MaxCov
	case mode == model.ModeLost:
		cfg.Params.MaxCovFraction = DefaultLostMaxCov
		cfg.Defaulted = append(cfg.Defaulted, "max-cov")
	default:
		cfg.Params.MaxCovFraction = DefaultConservedMaxCov
		cfg.Defaulted = append(cfg.Defaulted, "max-cov")
	}

	if mode == model.ModeConserved {
		if o.MinCov != nil {
			cfg.Params.MinCovFraction = *o.MinCov
		} else {
			cfg.Params.MinCovFraction = DefaultMinCov
			cfg.Defaulted = append(cfg.Defaulted, "min-cov")
		}
	}

	if cfg.Threads == 0 {
		cfg.Threads = runtime.NumCPU()
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Input == "" {
		return &ConfigError{Field: "input", Message: "path is empty"}
	}
	if c.OutputDir == "" {
		return &ConfigError{Field: "output-dir", Message: "path is empty"}
	}
	if c.Params.WindowSize < 1 {
		return &ConfigError{Field: "window-size", Message: fmt.Sprintf("must be at least 1, got %d", c.Params.WindowSize)}
	}
	if c.Params.Shift < 1 {
		return &ConfigError{Field: "shift", Message: fmt.Sprintf("must be at least 1, got %d", c.Params.Shift)}
	}
	if c.Threads < 0 {
		return &ConfigError{Field: "threads", Message: fmt.Sprintf("must not be negative, got %d", c.Threads)}
	}

	fractions := []struct {
		field string
		value float64
	}{
		{"max-cov", c.Params.MaxCovFraction},
		{"min-cov", c.Params.MinCovFraction},
		{"var", c.Params.VarFraction},
	}
	for _, f := range fractions {
		if f.value < 0 || math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ConfigError{Field: f.field, Message: fmt.Sprintf("must be a finite value >= 0, got %v", f.value)}
		}
	}
	return nil
}
