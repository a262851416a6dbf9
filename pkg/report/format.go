package report

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat writes f in shortest round-trip form, keeping a trailing ".0"
// on integral values and switching to exponent form outside [1e-4, 1e16).
func FormatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
