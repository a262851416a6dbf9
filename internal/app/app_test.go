package app

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/regionfinder/pkg/db"
	"github.com/yumyai/regionfinder/pkg/report"
)

func writeTable(t *testing.T, dir string, rows []string) string {
	t.Helper()
	path := filepath.Join(dir, "cov.tsv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))
	return path
}

func uniformRows(contig string, n int, cov string, variant string) []string {
	rows := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, fmt.Sprintf("%s\t%d\t%s\t%s", contig, i, cov, variant))
	}
	return rows
}

func readOutput(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func run(args ...string) (int, string) {
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String() + stderr.String()
}

func TestRunLostEndToEnd(t *testing.T) {
	dir := t.TempDir()
	rows := append(uniformRows("ctg1", 10, "1", "1"), uniformRows("tiny", 3, "5", "0")...)
	input := writeTable(t, dir, rows)
	out := filepath.Join(dir, "out")

	code, msg := run("--mode", "lost", "--assembly", "long", "--input", input, "--output-dir", out,
		"--window-size", "4", "--shift", "2", "--max-cov", "2", "--var", "0.5")
	require.Equal(t, ExitOK, code, msg)

	assert.Equal(t,
		"ctg1\t1\t2.0\t4\t1.0\t1.0\n"+
			"ctg1\t3\t4.0\t6\t1.0\t1.0\n"+
			"ctg1\t5\t6.0\t8\t1.0\t1.0\n",
		readOutput(t, out, report.WindowsFile))
	assert.Equal(t, readOutput(t, out, report.WindowsFile), readOutput(t, out, report.PassingFile))
	assert.Equal(t, "ctg1\t1\t8\n", readOutput(t, out, report.RegionsFile))
	assert.Equal(t,
		report.StatsHeader+"\n"+
			"ctg1\t4\t2\t2.0\t2.0\t0.5\t0.5\t8\t80.0\t3\t1\n",
		readOutput(t, out, report.StatsFile))
}

func TestRunConservedNothingPasses(t *testing.T) {
	dir := t.TempDir()
	input := writeTable(t, dir, uniformRows("ctg1", 10, "1", "0"))
	out := filepath.Join(dir, "out")

	code, msg := run("--mode", "conserved", "--assembly", "short", "--input", input, "--output-dir", out,
		"--window-size", "4", "--shift", "2", "--max-cov", "1", "--min-cov", "2")
	require.Equal(t, ExitOK, code, msg)

	assert.Len(t, strings.Split(strings.TrimSpace(readOutput(t, out, report.WindowsFile)), "\n"), 3)
	assert.Empty(t, readOutput(t, out, report.PassingFile))
	assert.Empty(t, readOutput(t, out, report.RegionsFile))
	assert.Contains(t, readOutput(t, out, report.StatsFile), "\t0\t0.0\t0\t0\n")
}

func TestRunParallelOutputMatchesSerial(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(11))
	var rows []string
	for c := 0; c < 25; c++ {
		n := 50 + rng.Intn(800)
		for i := 1; i <= n; i++ {
			rows = append(rows, fmt.Sprintf("contig%02d\t%d\t%d\t%d", c, i, rng.Intn(40), rng.Intn(2)))
		}
	}
	input := writeTable(t, dir, rows)

	outputs := map[string]string{}
	for _, threads := range []string{"1", "6"} {
		out := filepath.Join(dir, "out"+threads)
		code, msg := run("--mode", "lost", "--assembly", "long", "--input", input, "--output-dir", out,
			"--window-size", "40", "--shift", "7", "--max-cov", "0.9", "--var", "0.8", "--threads", threads)
		require.Equal(t, ExitOK, code, msg)
		for _, name := range []string{report.WindowsFile, report.PassingFile, report.RegionsFile, report.StatsFile} {
			outputs[threads+name] = readOutput(t, out, name)
		}
	}
	for _, name := range []string{report.WindowsFile, report.PassingFile, report.RegionsFile, report.StatsFile} {
		assert.Equal(t, outputs["1"+name], outputs["6"+name], name)
	}
}

func TestRunUsageErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeTable(t, dir, uniformRows("ctg1", 10, "1", "1"))
	out := filepath.Join(dir, "out")

	code, _ := run("--mode", "gained", "--assembly", "long", "--input", input, "--output-dir", out)
	assert.Equal(t, ExitUsage, code)

	code, _ = run("--mode", "lost", "--assembly", "long", "--input", input, "--output-dir", out, "--shift=0")
	assert.Equal(t, ExitUsage, code)

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRunHelp(t *testing.T) {
	code, msg := run("--help")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, msg, "--output-dir")
}

func TestRunInputErrors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	code, _ := run("--mode", "lost", "--assembly", "long", "--input", filepath.Join(dir, "missing.tsv"), "--output-dir", out)
	assert.Equal(t, ExitIO, code)

	bad := writeTable(t, dir, []string{"ctg1\t1\t1\t1", "ctg1\t2\tlots\t0"})
	code, _ = run("--mode", "lost", "--assembly", "long", "--input", bad, "--output-dir", out)
	assert.Equal(t, ExitIO, code)

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no output on malformed input")
}

func TestRunOutputDirIsFile(t *testing.T) {
	dir := t.TempDir()
	input := writeTable(t, dir, uniformRows("ctg1", 10, "1", "1"))

	code, _ := run("--mode", "lost", "--assembly", "long", "--input", input, "--output-dir", input)
	assert.Equal(t, ExitIO, code)
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	input := writeTable(t, dir, uniformRows("ctg1", 10, "1", "1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := RunContext(ctx, []string{"--mode", "lost", "--assembly", "long", "--input", input, "--output-dir", filepath.Join(dir, "out"),
		"--window-size", "4", "--shift", "2"}, &stdout, &stderr)
	assert.Equal(t, ExitCancelled, code)
}

func TestRunWithContigListAndDatabase(t *testing.T) {
	dir := t.TempDir()
	rows := append(uniformRows("ctg1", 10, "1", "1"), uniformRows("ctg2", 10, "1", "1")...)
	input := writeTable(t, dir, rows)
	list := filepath.Join(dir, "contigs.txt")
	require.NoError(t, os.WriteFile(list, []byte("# expected\nctg1\nctg3\n"), 0o644))
	dbPath := filepath.Join(dir, "results.db")
	out := filepath.Join(dir, "out")

	code, msg := run("--mode", "lost", "--assembly", "short", "--input", input, "--output-dir", out,
		"--window-size", "4", "--shift", "2", "--max-cov", "2", "--var", "0.5",
		"--contigs", list, "--db", dbPath)
	require.Equal(t, ExitOK, code, msg)
	assert.Equal(t, "ctg1\t1\t8\nctg2\t1\t8\n", readOutput(t, out, report.RegionsFile))

	conn, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer conn.Close()

	var runID, digest, mode string
	require.NoError(t, conn.QueryRow(`SELECT run_id, input_blake3, mode FROM runs`).Scan(&runID, &digest, &mode))
	assert.Equal(t, "lost", mode)
	assert.Len(t, digest, 64)
	conn.Close()

	rdb, err := db.Open(dbPath)
	require.NoError(t, err)
	defer rdb.Close()

	for _, contig := range []string{"ctg1", "ctg2"} {
		regions, err := rdb.Regions(context.Background(), runID, contig)
		require.NoError(t, err)
		require.Len(t, regions, 1)
		assert.Equal(t, 1, regions[0].Start)
		assert.Equal(t, 8, regions[0].End)

		total, passing, err := rdb.WindowCounts(context.Background(), runID, contig)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Equal(t, 3, passing)
	}
}
