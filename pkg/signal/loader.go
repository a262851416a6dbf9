package signal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/yumyai/regionfinder/logger"
	"go.uber.org/zap"
)

const (
	progressEvery = 50_000_000
	cancelEvery   = 1 << 20
	maxLineLength = 1 << 20
)

// Load reads the coverage-variant table at path ("-" for stdin). Compressed
// .gz and .xz tables are decoded on the fly.
func Load(ctx context.Context, path string) (*Signal, error) {
	in, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	logger.Info("reading in coverage and variant information...", zap.String("input", path))
	sig, err := Read(ctx, in, path)
	if err != nil {
		return nil, err
	}
	// drain anything after the last line so the digest covers the whole file
	if _, err := io.Copy(io.Discard, in); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sig.Digest = in.Digest()

	logger.Info("Input loaded",
		zap.Int("contigs", len(sig.Contigs)),
		zap.Int64("positions", sig.Positions),
		zap.String("blake3", sig.Digest),
	)
	return sig, nil
}

// Read parses rows of `contig position coverage variant`. Rows of one contig
// are appended in the order they appear; the position column is checked to be
// numeric and reported in errors but does not place the value.
func Read(ctx context.Context, r io.Reader, source string) (*Signal, error) {
	sig := New()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)

	var (
		cur     *Contig
		lineNo  int
		snapped bool
		warned  = make(map[string]bool)
	)
	for sc.Scan() {
		lineNo++
		if lineNo%cancelEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		fields := bytes.Fields(sc.Bytes())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			rowErr := &RowError{
				Source: source,
				Line:   lineNo,
				Contig: string(fields[0]),
				Err:    fmt.Errorf("%w: got %d, want 4", ErrFieldCount, len(fields)),
			}
			if len(fields) >= 2 {
				rowErr.Position = string(fields[1])
			}
			return nil, rowErr
		}

		if cur == nil || cur.Name != string(fields[0]) {
			c, ok := sig.index[string(fields[0])]
			if !ok {
				c = &Contig{Name: string(fields[0])}
				sig.index[c.Name] = c
				sig.Contigs = append(sig.Contigs, c)
			}
			cur = c
		}

		pos := string(fields[1])
		rowErr := func(err error) error {
			return &RowError{Source: source, Line: lineNo, Contig: cur.Name, Position: pos, Err: err}
		}

		position, err := strconv.Atoi(pos)
		if err != nil {
			return nil, rowErr(fmt.Errorf("%w: %q", ErrPosition, pos))
		}
		coverage, err := parseCoverage(fields[2])
		if err != nil {
			return nil, rowErr(err)
		}
		variant, err := parseVariant(fields[3])
		if err != nil {
			return nil, rowErr(err)
		}

		if !snapped && SnapCoverage(coverage) != coverage {
			snapped = true
			logger.Warn("Coverage has more decimals than the grid holds, rounding",
				zap.String("contig", cur.Name),
				zap.String("position", pos),
				zap.Float64("coverage", coverage),
				zap.Float64("grid", 1.0/CoverageScale),
			)
		}

		if position != cur.Len()+1 && !warned[cur.Name] {
			warned[cur.Name] = true
			logger.Warn("Positions are not contiguous, values are taken in file order",
				zap.String("contig", cur.Name),
				zap.Int("expected", cur.Len()+1),
				zap.Int("got", position),
			)
		}

		sig.append(cur, coverage, variant)
		if sig.Positions%progressEvery == 0 {
			logger.Info("positions processed", zap.Int64("count", sig.Positions))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return sig, nil
}

func parseCoverage(b []byte) (float64, error) {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrCoverage, b)
	}
	if v > MaxCoverage {
		return 0, fmt.Errorf("%w: %q is above %g", ErrCoverage, b, MaxCoverage)
	}
	return v, nil
}

func parseVariant(b []byte) (uint8, error) {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrVariant, b)
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q is not 0 or 1", ErrVariant, b)
}

// LoadContigList reads one contig id per line. Blank lines and lines starting
// with '#' are ignored; only the first whitespace-separated token counts.
func LoadContigList(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		ids = append(ids, strings.Fields(line)[0])
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
