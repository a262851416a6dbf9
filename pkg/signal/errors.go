package signal

import (
	"errors"
	"fmt"
)

var (
	ErrFieldCount = errors.New("wrong number of columns")
	ErrCoverage   = errors.New("invalid coverage")
	ErrVariant    = errors.New("invalid variant flag")
	ErrPosition   = errors.New("invalid position")
)

// RowError is a malformed line in the coverage-variant table. It is fatal:
// skipping the row would shift every later position of the contig.
type RowError struct {
	Source   string
	Line     int
	Contig   string
	Position string
	Err      error
}

func (e *RowError) Error() string {
	if e.Contig == "" {
		return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
	}
	if e.Position == "" {
		return fmt.Sprintf("%s:%d: contig %q: %v", e.Source, e.Line, e.Contig, e.Err)
	}
	return fmt.Sprintf("%s:%d: contig %q position %s: %v", e.Source, e.Line, e.Contig, e.Position, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
