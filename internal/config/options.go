package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/alecthomas/kong"
)

const Version = "0.1.0"

// ErrExit is returned when the parser already printed help or the version
// and the program should stop with status 0.
var ErrExit = errors.New("exit requested")

// Options is the command line. Every flag can also come from the
// environment (and so from a .env file).
type Options struct {
	Input     string `name:"input" short:"i" required:"" env:"REGIONFINDER_INPUT" help:"Coverage-variant table (TSV: contig position coverage variant). '-' reads stdin, .gz and .xz are decompressed."`
	OutputDir string `name:"output-dir" short:"o" required:"" type:"path" env:"REGIONFINDER_OUTPUT_DIR" help:"Directory for windows.txt, passing_windows.txt, extended_regions.txt and stats.txt."`

	Mode     string `name:"mode" required:"" enum:"lost,conserved" env:"REGIONFINDER_MODE" help:"Region type to find: lost or conserved."`
	Assembly string `name:"assembly" required:"" enum:"short,long" env:"REGIONFINDER_ASSEMBLY" help:"short: thresholds from the mean over all contigs; long: per contig."`

	WindowSize int      `name:"window-size" default:"2500" env:"REGIONFINDER_WINDOW_SIZE" help:"Window size in bp."`
	Shift      int      `name:"shift" default:"150" env:"REGIONFINDER_SHIFT" help:"Shift between window starts in bp."`
	MaxCov     *float64 `name:"max-cov" env:"REGIONFINDER_MAX_COV" help:"Maximal coverage relative to the mean (default 0.1 for lost, 3.0 for conserved)."`
	Var        float64  `name:"var" default:"0.4" env:"REGIONFINDER_VAR" help:"Variant threshold relative to the mean."`
	MinCov     *float64 `name:"min-cov" env:"REGIONFINDER_MIN_COV" help:"Minimal coverage relative to the mean, conserved mode only (default 1.0)."`

	Contigs  string `name:"contigs" type:"existingfile" env:"REGIONFINDER_CONTIGS" help:"Optional file listing expected contig ids, one per line."`
	DB       string `name:"db" type:"path" env:"REGIONFINDER_DB" help:"Also record results in this sqlite database."`
	Threads  int    `name:"threads" short:"t" default:"1" env:"REGIONFINDER_THREADS" help:"Contigs processed in parallel (0 = all CPUs)."`
	LogLevel string `name:"log-level" default:"info" enum:"debug,info,warn,error" env:"REGIONFINDER_LOG_LEVEL" help:"Log level."`

	Version kong.VersionFlag `name:"version" short:"v" help:"Print version and exit."`
}

type exitCode int

// NewParser builds the kong parser. Help and version output go to stdout;
// instead of exiting the process the parser panics with exitCode, which
// ParseArgs recovers.
func NewParser(opts *Options, stdout, stderr io.Writer) (*kong.Kong, error) {
	return kong.New(opts,
		kong.Name("regionfinder"),
		kong.Description("Find lost or conserved regions from per-position coverage and variant data with a sliding window scan."),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": Version},
		kong.Exit(func(code int) { panic(exitCode(code)) }),
	)
}

// ParseArgs parses argv into a validated Config. Usage is printed to stdout
// on help, and to stderr after a parse or validation error.
func ParseArgs(argv []string, stdout, stderr io.Writer) (cfg Config, err error) {
	var opts Options
	parser, err := NewParser(&opts, stdout, stderr)
	if err != nil {
		return Config{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			code, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			if code == 0 {
				err = ErrExit
				return
			}
			err = &ConfigError{Field: "arguments", Message: fmt.Sprintf("parser exited with status %d", code)}
		}
	}()

	if _, err := parser.Parse(argv); err != nil {
		var perr *kong.ParseError
		if errors.As(err, &perr) && perr.Context != nil {
			perr.Context.Stdout = stderr
			_ = perr.Context.PrintUsage(true)
		}
		return Config{}, &ConfigError{Field: "arguments", Message: err.Error(), Err: err}
	}

	cfg, err = opts.Resolve()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
