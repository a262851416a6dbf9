// Package signal holds per-position coverage and variant data, grouped by
// contig, and reads it from the tab separated coverage-variant table.
package signal

import "math"

// Coverage is held on a fixed grid of 1/CoverageScale so that window sums can
// be carried exactly as integers. Values up to MaxCoverage are accepted.
const (
	CoverageScale    = 10_000
	MaxCoverage      = 1e9
	MaxCoverageUnits = int64(MaxCoverage * CoverageScale)
)

// CoverageUnits is coverage expressed in grid units.
func CoverageUnits(coverage float64) int64 {
	return int64(math.Round(coverage * CoverageScale))
}

// SnapCoverage moves coverage onto the grid.
func SnapCoverage(coverage float64) float64 {
	return float64(CoverageUnits(coverage)) / CoverageScale
}

// Contig is the ordered per-position signal of one contig. Index i holds
// position i+1.
type Contig struct {
	Name     string
	Coverage []float64
	Variant  []uint8
}

func (c *Contig) Len() int {
	return len(c.Coverage)
}

// Signal is the whole input table. Contigs keep first-seen order.
type Signal struct {
	Contigs []*Contig

	// Pooled totals over every row, used for short-assembly thresholds.
	Positions   int64
	CoverageSum float64
	VariantSum  int64

	// BLAKE3 hex digest of the raw input bytes, empty when read from memory.
	Digest string

	index map[string]*Contig
}

func New() *Signal {
	return &Signal{index: make(map[string]*Contig)}
}

// Contig looks up a contig by name.
func (s *Signal) Contig(name string) (*Contig, bool) {
	c, ok := s.index[name]
	return c, ok
}

func (s *Signal) Names() []string {
	names := make([]string, len(s.Contigs))
	for i, c := range s.Contigs {
		names[i] = c.Name
	}
	return names
}

// Add appends one position to the named contig, creating it on first use.
// Coverage is snapped to the grid.
func (s *Signal) Add(name string, coverage float64, variant uint8) *Contig {
	c, ok := s.index[name]
	if !ok {
		c = &Contig{Name: name}
		s.index[name] = c
		s.Contigs = append(s.Contigs, c)
	}
	s.append(c, coverage, variant)
	return c
}

func (s *Signal) append(c *Contig, coverage float64, variant uint8) {
	coverage = SnapCoverage(coverage)
	c.Coverage = append(c.Coverage, coverage)
	c.Variant = append(c.Variant, variant)
	s.Positions++
	s.CoverageSum += coverage
	s.VariantSum += int64(variant)
}
