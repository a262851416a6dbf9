// Package merge collapses passing windows into regions and summarises how
// much of a contig they cover.
package merge

import (
	"math"

	"github.com/yumyai/regionfinder/pkg/model"
)

// Overlaps reports whether a span starting at start merges into r. Only a
// start strictly inside (r.Start, r.End) counts: a span starting exactly at
// r.End, or at or before r.Start, does not merge.
func Overlaps(r model.Region, start int) bool {
	return r.Start < start && start < r.End
}

// Regions merges passing windows, in the order given, into regions.
func Regions(passing []model.Window) []model.Region {
	spans := make([]model.Region, len(passing))
	for i, w := range passing {
		spans[i] = model.Region{Start: w.Start, Mid: w.Mid, End: w.End}
	}
	return Merge(spans)
}

// Merge folds spans left to right keeping a single open region. A span that
// overlaps the open region extends its end; any other span closes it and
// opens a new one. The result is not re-sorted.
func Merge(spans []model.Region) []model.Region {
	if len(spans) == 0 {
		return nil
	}

	var merged []model.Region
	open := spans[0]
	for _, s := range spans[1:] {
		if !Overlaps(open, s.Start) {
			merged = append(merged, open)
			open = s
			continue
		}
		if s.End > open.End {
			open.End = s.End
		}
		open.Mid = float64(open.Start) + math.RoundToEven(float64(open.End-open.Start)/2)
	}
	return append(merged, open)
}

// CoveredBases sums the inclusive length of every region.
func CoveredBases(regions []model.Region) int64 {
	var total int64
	for _, r := range regions {
		total += int64(r.Len())
	}
	return total
}

// PercentCovered is covered/length*100 rounded to 3 decimals.
func PercentCovered(covered int64, length int) float64 {
	if length <= 0 {
		return 0
	}
	return Round(float64(covered)/float64(length)*100, 3)
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
