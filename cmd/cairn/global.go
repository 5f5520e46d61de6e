package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/cairn-backup/cairn/internal/backend/local"
	"github.com/cairn-backup/cairn/internal/backend/retry"
	"github.com/cairn-backup/cairn/internal/cairn"
	"github.com/cairn-backup/cairn/internal/debug"
	"github.com/cairn-backup/cairn/internal/errors"
	"github.com/cairn-backup/cairn/internal/repository"
	"github.com/cairn-backup/cairn/internal/ui/progress"
)

var version = "0.1.0-dev (compiled manually)"

// TimeFormat is the format used for all timestamps printed by cairn.
const TimeFormat = "2006-01-02 15:04:05"

// GlobalOptions holds the options valid for all commands.
type GlobalOptions struct {
	Repo     string
	CacheDir string
	NoCache  bool
	Quiet    bool
	Verbose  int

	stdout io.Writer
	stderr io.Writer

	// verbosity is set as follows:
	//  0 means: don't print any messages except errors, this is used when --quiet is specified
	//  1 is the default: print essential messages
	//  2 means: print more messages, report minor things, this is used when --verbose is specified
	verbosity uint
}

var globalOptions = GlobalOptions{
	stdout: os.Stdout,
	stderr: os.Stderr,
}

func (opts *GlobalOptions) AddFlags(f *pflag.FlagSet) {
	f.StringVarP(&opts.Repo, "repo", "r", "", "`repository` to check or mount (default: $CAIRN_REPOSITORY)")
	f.StringVar(&opts.CacheDir, "cache-dir", "", "`directory` holding the local cache mirror (default: $CAIRN_CACHE_DIR)")
	f.BoolVar(&opts.NoCache, "no-cache", false, "do not use a local cache mirror")
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "do not output comprehensive progress report")
	f.CountVarP(&opts.Verbose, "verbose", "v", "be verbose (specify multiple times or a level using --verbose=n``, max level/times is 2)")

	opts.Repo = os.Getenv("CAIRN_REPOSITORY")
	opts.CacheDir = os.Getenv("CAIRN_CACHE_DIR")
}

// PreRun validates the global options and derives the verbosity.
func (opts *GlobalOptions) PreRun() error {
	if opts.Quiet && opts.Verbose > 0 {
		return errors.Fatal("--quiet and --verbose cannot be specified at the same time")
	}

	switch {
	case opts.Quiet:
		opts.verbosity = 0
	case opts.Verbose > 0:
		opts.verbosity = uint(opts.Verbose) + 1
	default:
		opts.verbosity = 1
	}

	return nil
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Printf writes the message to the configured stdout stream.
func Printf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(globalOptions.stdout, format, args...); err != nil {
		fmt.Fprintf(os.Stderr, "unable to write to stdout: %v\n", err)
	}
}

// Verbosef calls Printf to write the message when the verbosity allows it.
func Verbosef(format string, args ...interface{}) {
	if globalOptions.verbosity >= 1 {
		Printf(format, args...)
	}
}

// Warnf writes the message to the configured stderr stream.
func Warnf(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(globalOptions.stderr, format, args...); err != nil {
		fmt.Fprintf(os.Stderr, "unable to write to stderr: %v\n", err)
	}
}

// newProgressCounter returns a counter printing to the terminal, or nil when
// stdout is not a terminal or quiet was requested.
func newProgressCounter(desc string) *progress.Counter {
	if globalOptions.Quiet || !stdoutIsTerminal() {
		return nil
	}

	return progress.NewCounter(time.Second, 0, func(v, max uint64, d time.Duration, final bool) {
		status := fmt.Sprintf("\r[%s] %d %s", formatDuration(d), v, desc)
		if max > 0 {
			status = fmt.Sprintf("\r[%s] %d / %d %s", formatDuration(d), v, max, desc)
		}
		Printf("%s", status)
		if final {
			Printf("\n")
		}
	})
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return d.String()
}

// openRepository opens the repository at the location the global options
// name, wrapped in the retrying backend.
func openRepository(opts GlobalOptions) (*repository.Repository, error) {
	if opts.Repo == "" {
		return nil, errors.Fatal("Please specify repository location (-r or $CAIRN_REPOSITORY)")
	}

	be, err := local.Open(opts.Repo)
	if err != nil {
		return nil, err
	}

	report := func(msg string, err error, d time.Duration) {
		Warnf("%v returned error, retrying after %v: %v\n", msg, d, err)
	}
	wrapped := retry.New(be, 15*time.Minute, report)

	debug.Log("opened repository at %v", be.Location())

	return repository.New(wrapped, repository.NopDecrypter{}), nil
}

// openCache returns the local cache mirror, or nil when none is configured.
func openCache(opts GlobalOptions) cairn.Cache {
	if opts.NoCache || opts.CacheDir == "" {
		return nil
	}

	c, err := local.Open(opts.CacheDir)
	if err != nil {
		Warnf("unable to open cache at %v: %v\n", opts.CacheDir, err)
		return nil
	}

	debug.Log("using cache at %v", opts.CacheDir)

	return c
}
