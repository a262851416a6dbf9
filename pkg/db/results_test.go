package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/regionfinder/pkg/model"
)

func openTemp(t *testing.T) *ResultsDB {
	t.Helper()
	rdb, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func conservedResult() *model.ContigResult {
	covMin := 1.5
	w1 := model.Window{Start: 1, Mid: 2, End: 4, MeanCoverage: 2, MeanVariant: 0}
	w2 := model.Window{Start: 3, Mid: 4, End: 6, MeanCoverage: 9, MeanVariant: 0}
	w3 := model.Window{Start: 5, Mid: 6, End: 8, MeanCoverage: 2, MeanVariant: 0}
	return &model.ContigResult{
		Contig:  "ctg1",
		Windows: []model.Window{w1, w2, w3},
		Passing: []model.Window{w1, w3},
		Regions: []model.Region{{Start: 1, End: 4}, {Start: 5, End: 8}},
		Stats: model.Stats{
			Contig:         "ctg1",
			Length:         10,
			WindowSize:     4,
			Shift:          2,
			MaxCovFraction: 3,
			VarFraction:    0.4,
			Thresholds:     model.Thresholds{CovMax: 6, CovMin: &covMin, VarThreshold: 0.1},
			CoveredBases:   8,
			PercentCovered: 80,
			PassingWindows: 2,
			Regions:        2,
		},
	}
}

func TestWriteContigRoundTrip(t *testing.T) {
	rdb := openTemp(t)
	ctx := context.Background()

	err := rdb.WriteContig(ctx, conservedResult())
	assert.ErrorIs(t, err, ErrNoRun)

	run := model.Run{
		Input:       "cov.tsv",
		InputDigest: "abc",
		Assembly:    model.AssemblyLong,
		Params:      model.Params{Mode: model.ModeConserved, WindowSize: 4, Shift: 2, MaxCovFraction: 3, MinCovFraction: 1, VarFraction: 0.4},
	}
	require.NoError(t, rdb.BeginRun(ctx, run))
	require.NotEmpty(t, rdb.RunID())

	res := conservedResult()
	require.NoError(t, rdb.WriteContig(ctx, res))

	regions, err := rdb.Regions(ctx, rdb.RunID(), "ctg1")
	require.NoError(t, err)
	assert.Equal(t, []model.Region{{Start: 1, End: 4}, {Start: 5, End: 8}}, regions)

	total, passing, err := rdb.WindowCounts(ctx, rdb.RunID(), "ctg1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, passing)

	stats, err := rdb.Stats(ctx, rdb.RunID(), "ctg1")
	require.NoError(t, err)
	assert.Equal(t, res.Stats, stats)
}

func TestRunsAreSeparated(t *testing.T) {
	rdb := openTemp(t)
	ctx := context.Background()

	require.NoError(t, rdb.BeginRun(ctx, model.Run{ID: "first", Input: "a", Params: model.Params{Mode: model.ModeLost}}))
	require.NoError(t, rdb.WriteContig(ctx, conservedResult()))
	require.NoError(t, rdb.BeginRun(ctx, model.Run{ID: "second", Input: "a", Params: model.Params{Mode: model.ModeLost}}))

	regions, err := rdb.Regions(ctx, "second", "ctg1")
	require.NoError(t, err)
	assert.Empty(t, regions)

	regions, err = rdb.Regions(ctx, "first", "ctg1")
	require.NoError(t, err)
	assert.Len(t, regions, 2)

	assert.Error(t, rdb.BeginRun(ctx, model.Run{ID: "first", Input: "a"}), "run ids are unique")
}

func TestWriteContigCancelled(t *testing.T) {
	rdb := openTemp(t)
	require.NoError(t, rdb.BeginRun(context.Background(), model.Run{ID: "run", Input: "a", Params: model.Params{Mode: model.ModeLost}}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rdb.WriteContig(ctx, conservedResult()), context.Canceled)

	total, passing, err := rdb.WindowCounts(context.Background(), "run", "ctg1")
	require.NoError(t, err)
	assert.Zero(t, total, "nothing of the contig is committed")
	assert.Zero(t, passing)

	_, err = rdb.Stats(context.Background(), "run", "ctg1")
	assert.Error(t, err)
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
