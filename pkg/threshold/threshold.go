// Package threshold turns relative (fraction of mean) parameters into the
// absolute bounds the window scan compares against.
package threshold

import (
	"gonum.org/v1/gonum/floats"

	"github.com/yumyai/regionfinder/pkg/model"
	"github.com/yumyai/regionfinder/pkg/signal"
)

// Means are the mean coverage and mean variant flag of some signal.
type Means struct {
	Coverage float64
	Variant  float64
}

// ContigMeans averages one contig. An empty contig has zero means.
func ContigMeans(c *signal.Contig) Means {
	n := c.Len()
	if n == 0 {
		return Means{}
	}
	var variants int64
	for _, v := range c.Variant {
		variants += int64(v)
	}
	return Means{
		Coverage: floats.Sum(c.Coverage) / float64(n),
		Variant:  float64(variants) / float64(n),
	}
}

// GlobalMeans averages the pooled signal of every contig.
func GlobalMeans(s *signal.Signal) Means {
	if s.Positions == 0 {
		return Means{}
	}
	return Means{
		Coverage: s.CoverageSum / float64(s.Positions),
		Variant:  float64(s.VariantSum) / float64(s.Positions),
	}
}

// Calculate scales the means by the fractions in p. CovMin is only set in
// conserved mode. No ordering between CovMin and CovMax is enforced.
func Calculate(m Means, p model.Params) model.Thresholds {
	t := model.Thresholds{
		CovMax:       m.Coverage * p.MaxCovFraction,
		VarThreshold: m.Variant * p.VarFraction,
	}
	if p.Mode == model.ModeConserved {
		covMin := m.Coverage * p.MinCovFraction
		t.CovMin = &covMin
	}
	return t
}

// Calculator hands out thresholds per contig according to the assembly type.
type Calculator struct {
	params   model.Params
	assembly model.Assembly
	global   model.Thresholds
}

// NewCalculator prepares a calculator. For short assemblies the pooled
// thresholds are computed here, once.
func NewCalculator(s *signal.Signal, p model.Params, a model.Assembly) *Calculator {
	c := &Calculator{params: p, assembly: a}
	if a == model.AssemblyShort {
		c.global = Calculate(GlobalMeans(s), p)
	}
	return c
}

// For returns the thresholds for contig. ok is false when the contig is
// empty or not longer than the window, in which case it must be skipped.
func (c *Calculator) For(contig *signal.Contig) (t model.Thresholds, ok bool) {
	if contig.Len() == 0 || contig.Len() <= c.params.WindowSize {
		return model.Thresholds{}, false
	}
	if c.assembly == model.AssemblyShort {
		return c.global, true
	}
	return Calculate(ContigMeans(contig), c.params), true
}
