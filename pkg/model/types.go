package model

import (
	"fmt"
	"time"
)

// Mode selects which windows count as interesting.
type Mode string

const (
	// ModeLost keeps low-coverage, high-variation windows.
	ModeLost Mode = "lost"
	// ModeConserved keeps windows with bounded coverage and low variation.
	ModeConserved Mode = "conserved"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLost, ModeConserved:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q, select 'lost' or 'conserved'", s)
}

// Assembly selects where threshold means come from: per contig (long) or
// pooled over every contig (short).
type Assembly string

const (
	AssemblyShort Assembly = "short"
	AssemblyLong  Assembly = "long"
)

func ParseAssembly(s string) (Assembly, error) {
	switch Assembly(s) {
	case AssemblyShort, AssemblyLong:
		return Assembly(s), nil
	}
	return "", fmt.Errorf("invalid assembly type %q, select 'long' or 'short'", s)
}

// Params are the user supplied scan parameters. Fractions are relative to a
// mean and turned into absolute Thresholds per contig or globally.
type Params struct {
	Mode           Mode    `json:"mode"`
	WindowSize     int     `json:"window_size"`
	Shift          int     `json:"shift"`
	MaxCovFraction float64 `json:"max_cov"`
	MinCovFraction float64 `json:"min_cov"` // conserved only
	VarFraction    float64 `json:"var"`
}

// Thresholds are absolute bounds applied to window means. CovMin is nil in
// lost mode.
type Thresholds struct {
	CovMax       float64  `json:"cov_max"`
	CovMin       *float64 `json:"cov_min,omitempty"`
	VarThreshold float64  `json:"var_threshold"`
}

// Window is one fixed-width span of a contig. Start and End are 1-based and
// inclusive.
type Window struct {
	Start        int     `json:"start"`
	Mid          float64 `json:"mid"`
	End          int     `json:"end"`
	MeanCoverage float64 `json:"mean_coverage"`
	MeanVariant  float64 `json:"mean_variant"`
}

// Region is a merged span of passing windows.
type Region struct {
	Start int     `json:"start"`
	Mid   float64 `json:"mid"`
	End   int     `json:"end"`
}

func (r Region) Len() int {
	return r.End - r.Start + 1
}

func (r Region) String() string {
	return fmt.Sprintf("[start:%d, end:%d]", r.Start, r.End)
}

// Stats is the per contig summary row.
type Stats struct {
	Contig         string     `json:"contig"`
	Length         int        `json:"length"`
	WindowSize     int        `json:"window_size"`
	Shift          int        `json:"shift"`
	MaxCovFraction float64    `json:"max_cov"`
	VarFraction    float64    `json:"var"`
	Thresholds     Thresholds `json:"thresholds"`
	CoveredBases   int64      `json:"covered_bases"`
	PercentCovered float64    `json:"percent_covered"`
	PassingWindows int        `json:"passing_windows"`
	Regions        int        `json:"regions"`
}

// ContigResult is everything produced for one contig, handed to the sinks.
type ContigResult struct {
	Contig  string
	Windows []Window
	Passing []Window
	Regions []Region
	Stats   Stats
}

// Run describes one invocation, recorded by the results database.
type Run struct {
	ID          string
	StartedAt   time.Time
	Input       string
	InputDigest string
	Assembly    Assembly
	Params      Params
}
