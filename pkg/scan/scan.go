// Package scan slides a fixed-width window over a contig and classifies each
// window against the active thresholds.
package scan

import (
	"errors"
	"fmt"
	"math"

	"github.com/yumyai/regionfinder/pkg/model"
	"github.com/yumyai/regionfinder/pkg/signal"
)

var (
	ErrInvalidWindow   = errors.New("window size and shift must be at least 1")
	ErrWindowTooLarge  = errors.New("window size is too large for an exact coverage sum")
	ErrContigTooShort  = errors.New("contig is not longer than the window")
	ErrMissingCoverage = errors.New("conserved mode needs a minimum coverage threshold")
)

// Error ties a scan failure to the contig it happened on.
type Error struct {
	Contig string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scan contig %q: %v", e.Contig, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result holds every window in position order, and the passing subset.
type Result struct {
	Windows []model.Window
	Passing []model.Window
}

// WindowCount is the number of windows Scan emits for a contig of length n.
// Offsets past the last full shift before n-windowSize are not visited.
func WindowCount(n, windowSize, shift int) int {
	if windowSize < 1 || shift < 1 || n <= windowSize {
		return 0
	}
	return 1 + (n-windowSize-1)/shift
}

// Passes applies the mode predicate to one window.
func Passes(w model.Window, t model.Thresholds, mode model.Mode) bool {
	if mode == model.ModeConserved {
		return t.CovMin != nil &&
			w.MeanCoverage >= *t.CovMin &&
			w.MeanCoverage <= t.CovMax &&
			w.MeanVariant <= t.VarThreshold
	}
	return w.MeanCoverage <= t.CovMax && w.MeanVariant >= t.VarThreshold
}

// Scan walks windows of windowSize positions starting at offsets 0, shift,
// 2*shift, ... while offset < n-windowSize. The first window is summed
// directly; each later one drops the shift positions leaving on the left and
// adds the shift positions entering on the right.
//
// Both sums are integers: coverage in signal grid units, variants as counts.
// A window mean is a single rounding of the exact window sum, so it is the
// same whether the window was summed directly or reached by sliding.
func Scan(c *signal.Contig, windowSize, shift int, t model.Thresholds, mode model.Mode) (Result, error) {
	if windowSize < 1 || shift < 1 {
		return Result{}, &Error{Contig: c.Name, Err: ErrInvalidWindow}
	}
	if int64(windowSize) > math.MaxInt64/signal.MaxCoverageUnits {
		return Result{}, &Error{Contig: c.Name, Err: fmt.Errorf("%w: %d", ErrWindowTooLarge, windowSize)}
	}
	n := c.Len()
	if n <= windowSize {
		return Result{}, &Error{Contig: c.Name, Err: fmt.Errorf("%w: length %d, window %d", ErrContigTooShort, n, windowSize)}
	}
	if mode == model.ModeConserved && t.CovMin == nil {
		return Result{}, &Error{Contig: c.Name, Err: ErrMissingCoverage}
	}

	cov, vars := c.Coverage, c.Variant
	res := Result{Windows: make([]model.Window, 0, WindowCount(n, windowSize, shift))}

	var covSum, varSum int64
	for i := 0; i < windowSize; i++ {
		covSum += signal.CoverageUnits(cov[i])
		varSum += int64(vars[i])
	}

	size := float64(windowSize)
	covDenom := size * signal.CoverageScale
	emit := func(offset int) {
		w := model.Window{
			Start:        offset + 1,
			Mid:          float64(offset) + size/2,
			End:          offset + windowSize,
			MeanCoverage: float64(covSum) / covDenom,
			MeanVariant:  float64(varSum) / size,
		}
		res.Windows = append(res.Windows, w)
		if Passes(w, t, mode) {
			res.Passing = append(res.Passing, w)
		}
	}
	emit(0)

	left := 0
	for offset := shift; offset < n-windowSize; offset += shift {
		right := left + windowSize
		for j := 0; j < shift; j++ {
			covSum += signal.CoverageUnits(cov[right+j]) - signal.CoverageUnits(cov[left+j])
			varSum += int64(vars[right+j]) - int64(vars[left+j])
		}
		left += shift
		emit(offset)
	}
	return res, nil
}
