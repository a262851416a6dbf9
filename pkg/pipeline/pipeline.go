// Package pipeline drives threshold lookup, window scan, region merge and
// reporting for every contig. Contigs may be processed by several workers;
// results always reach the sink one at a time, in input order.
package pipeline

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/yumyai/regionfinder/logger"
	"github.com/yumyai/regionfinder/pkg/merge"
	"github.com/yumyai/regionfinder/pkg/model"
	"github.com/yumyai/regionfinder/pkg/scan"
	"github.com/yumyai/regionfinder/pkg/signal"
	"github.com/yumyai/regionfinder/pkg/threshold"
)

// Sink receives finished contigs. ctx is the run context; a sink doing slow
// I/O should stop when it is done.
type Sink interface {
	WriteContig(ctx context.Context, r *model.ContigResult) error
}

// MultiSink writes to each sink in turn, stopping at the first error.
type MultiSink []Sink

func (m MultiSink) WriteContig(ctx context.Context, r *model.ContigResult) error {
	for _, s := range m {
		if err := s.WriteContig(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Config controls a pipeline run.
type Config struct {
	Params  model.Params
	Threads int // worker goroutines, values < 1 mean 1

	// Expected is an optional list of contig ids. It is advisory: listed
	// contigs missing from the input are reported, unlisted ones still run.
	Expected []string
}

// Summary counts what a run did.
type Summary struct {
	Processed    int
	Skipped      int
	Regions      int
	CoveredBases int64
}

// ProcessContig scans and merges one contig. It returns nil, nil when the
// contig is too short to hold a single window.
func ProcessContig(c *signal.Contig, calc *threshold.Calculator, p model.Params) (*model.ContigResult, error) {
	th, ok := calc.For(c)
	if !ok {
		return nil, nil
	}

	scanned, err := scan.Scan(c, p.WindowSize, p.Shift, th, p.Mode)
	if err != nil {
		return nil, err
	}
	regions := merge.Regions(scanned.Passing)
	covered := merge.CoveredBases(regions)

	return &model.ContigResult{
		Contig:  c.Name,
		Windows: scanned.Windows,
		Passing: scanned.Passing,
		Regions: regions,
		Stats: model.Stats{
			Contig:         c.Name,
			Length:         c.Len(),
			WindowSize:     p.WindowSize,
			Shift:          p.Shift,
			MaxCovFraction: p.MaxCovFraction,
			VarFraction:    p.VarFraction,
			Thresholds:     th,
			CoveredBases:   covered,
			PercentCovered: merge.PercentCovered(covered, c.Len()),
			PassingWindows: len(scanned.Passing),
			Regions:        len(regions),
		},
	}, nil
}

type outcome struct {
	idx int
	res *model.ContigResult
	err error
}

// Run processes every contig of sig and hands results to sink in input
// order. The first error, in contig order, stops the run.
func Run(parent context.Context, cfg Config, sig *signal.Signal, calc *threshold.Calculator, sink Sink) (Summary, error) {
	reportExpected(cfg.Expected, sig)

	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan int)
	results := make(chan outcome, threads*2)

	// Workers
	var wg sync.WaitGroup
	wg.Add(threads)
	for w := 0; w < threads; w++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				res, err := ProcessContig(sig.Contigs[idx], calc, cfg.Params)
				select {
				case results <- outcome{idx: idx, res: res, err: err}:
				case <-ctx.Done():
				}
			}
		}()
	}

	// Feed work
	go func() {
		defer close(jobs)
		for i := range sig.Contigs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	// Single writer, in contig order
	var (
		summary Summary
		first   error
		pending = make(map[int]outcome)
		next    int
	)
	for o := range results {
		if first != nil {
			continue
		}
		pending[o.idx] = o
		for first == nil {
			o, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := emit(ctx, o, sig.Contigs[o.idx], sink, &summary); err != nil {
				first = err
				cancel()
			}
		}
	}

	if first != nil {
		return summary, first
	}
	if err := parent.Err(); err != nil {
		return summary, err
	}
	if next != len(sig.Contigs) {
		return summary, errors.New("pipeline stopped before every contig was written")
	}
	return summary, nil
}

func emit(ctx context.Context, o outcome, c *signal.Contig, sink Sink, summary *Summary) error {
	log := logger.With(zap.String("contig", c.Name), zap.Int("length", c.Len()))
	if o.err != nil {
		return o.err
	}
	if o.res == nil {
		summary.Skipped++
		log.Info("Contig is not longer than the window size and is skipped")
		return nil
	}
	if err := sink.WriteContig(ctx, o.res); err != nil {
		return err
	}

	summary.Processed++
	summary.Regions += len(o.res.Regions)
	summary.CoveredBases += o.res.Stats.CoveredBases
	log.Info("Contig done",
		zap.Float64("cov_t_max", o.res.Stats.Thresholds.CovMax),
		zap.Float64("var_t", o.res.Stats.Thresholds.VarThreshold),
		zap.Int("windows", len(o.res.Windows)),
		zap.Int("passing_windows", o.res.Stats.PassingWindows),
		zap.Int("regions", o.res.Stats.Regions),
		zap.Float64("percent_covered", o.res.Stats.PercentCovered),
	)
	return nil
}

func reportExpected(expected []string, sig *signal.Signal) {
	if len(expected) == 0 {
		return
	}
	listed := make(map[string]bool, len(expected))
	for _, id := range expected {
		listed[id] = true
		if _, ok := sig.Contig(id); !ok {
			logger.Warn("Contig is not present in the coverage-variant table and is skipped", zap.String("contig", id))
		}
	}
	for _, c := range sig.Contigs {
		if !listed[c.Name] {
			logger.Debug("Contig is not in the contig list, processing anyway", zap.String("contig", c.Name))
		}
	}
}
