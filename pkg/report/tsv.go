// Package report writes the four tab separated result files.
package report

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yumyai/regionfinder/internal/util"
	"github.com/yumyai/regionfinder/pkg/merge"
	"github.com/yumyai/regionfinder/pkg/model"
)

const (
	WindowsFile = "windows.txt"
	PassingFile = "passing_windows.txt"
	RegionsFile = "extended_regions.txt"
	StatsFile   = "stats.txt"
)

// StatsHeader is written once at the top of the stats file.
const StatsHeader = "contig\twindow_size\tshift\tmax_cov%\tcov_t_max\tvar%\tvar_t\tcovered_bases\t% covered\tno.windows\tno.regions"

type sink struct {
	file *os.File
	buf  *bufio.Writer
}

// TSV owns the four output files for the whole run.
type TSV struct {
	windows sink
	passing sink
	regions sink
	stats   sink
}

// Create truncates (or creates) the four result files in dir and writes the
// stats header. On error every file opened so far is closed again.
func Create(dir string) (*TSV, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, err
	}

	t := &TSV{}
	targets := []struct {
		s    *sink
		name string
	}{
		{&t.windows, WindowsFile},
		{&t.passing, PassingFile},
		{&t.regions, RegionsFile},
		{&t.stats, StatsFile},
	}
	for _, target := range targets {
		f, err := os.Create(filepath.Join(dir, target.name))
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("create %s: %w", target.name, err)
		}
		*target.s = sink{file: f, buf: bufio.NewWriterSize(f, 1<<16)}
	}

	if _, err := fmt.Fprintln(t.stats.buf, StatsHeader); err != nil {
		t.Close()
		return nil, fmt.Errorf("write stats header: %w", err)
	}
	return t, nil
}

// WriteContig appends one contig's rows to every file.
func (t *TSV) WriteContig(ctx context.Context, r *model.ContigResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteWindows(t.windows.buf, r.Contig, r.Windows); err != nil {
		return fmt.Errorf("write %s: %w", WindowsFile, err)
	}
	if err := WriteWindows(t.passing.buf, r.Contig, r.Passing); err != nil {
		return fmt.Errorf("write %s: %w", PassingFile, err)
	}
	if err := WriteRegions(t.regions.buf, r.Contig, r.Regions); err != nil {
		return fmt.Errorf("write %s: %w", RegionsFile, err)
	}
	if err := WriteStats(t.stats.buf, r.Stats); err != nil {
		return fmt.Errorf("write %s: %w", StatsFile, err)
	}
	return nil
}

// Close flushes and closes every file, reporting all failures.
func (t *TSV) Close() error {
	var errs []error
	for _, s := range []*sink{&t.windows, &t.passing, &t.regions, &t.stats} {
		if s.file == nil {
			continue
		}
		errs = append(errs, s.buf.Flush(), s.file.Close())
		s.file = nil
	}
	return errors.Join(errs...)
}

// WriteWindows writes `contig start mid end mean_coverage mean_variant` rows.
func WriteWindows(w io.Writer, contig string, windows []model.Window) error {
	for _, win := range windows {
		_, err := fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
			contig, win.Start, FormatFloat(win.Mid), win.End,
			FormatFloat(win.MeanCoverage), FormatFloat(win.MeanVariant))
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteRegions writes `contig region_start region_end` rows.
func WriteRegions(w io.Writer, contig string, regions []model.Region) error {
	for _, r := range regions {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\n", contig, r.Start, r.End); err != nil {
			return err
		}
	}
	return nil
}

// WriteStats writes one stats row matching StatsHeader.
func WriteStats(w io.Writer, s model.Stats) error {
	_, err := fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
		s.Contig,
		s.WindowSize,
		s.Shift,
		FormatFloat(s.MaxCovFraction),
		FormatFloat(merge.Round(s.Thresholds.CovMax, 4)),
		FormatFloat(s.VarFraction),
		FormatFloat(merge.Round(s.Thresholds.VarThreshold, 4)),
		strconv.FormatInt(s.CoveredBases, 10),
		FormatFloat(merge.Round(s.PercentCovered, 3)),
		s.PassingWindows,
		s.Regions,
	)
	return err
}
