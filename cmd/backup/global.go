package main

import (
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/terminal"
	"github.com/jskov/backup/internal/ui/progress"
)

var version = "0.3.0-dev (compiled manually)"

// GlobalOptions hold all global options for backup.
type GlobalOptions struct {
	Quiet   bool
	Verbose int

	stdout io.Writer
	stderr io.Writer

	// verbosity is set as follows:
	//  0 means: don't print any messages except errors, this is used when --quiet is specified
	//  1 is the default: print essential messages
	//  2 means: print more messages, report minor things, this is used when --verbose is specified
	//  3 means: print very detailed debug messages, this is used when --verbose=2 is specified
	verbosity uint

	// width of the terminal stdout is attached to, zero if not a terminal
	width int
}

func (opts *GlobalOptions) AddFlags(f *pflag.FlagSet) {
	f.BoolVarP(&opts.Quiet, "quiet", "q", false, "only print errors")
	// use empty parameter name as `-v, --verbose n` instead of the correct `--verbose=n` is confusing
	f.CountVarP(&opts.Verbose, "verbose", "v", "be verbose (specify multiple times or a level using --verbose=n``, max level/times is 2)")
}

func (opts *GlobalOptions) PreRun() error {
	// set verbosity, default is one
	opts.verbosity = 1
	if opts.Quiet && opts.Verbose > 0 {
		return errors.Fatal("--quiet and --verbose cannot be specified at the same time")
	}

	switch {
	case opts.Verbose >= 2:
		opts.verbosity = 3
	case opts.Verbose > 0:
		opts.verbosity = 2
	case opts.Quiet:
		opts.verbosity = 0
	}

	opts.width = 0
	if f, ok := opts.stdout.(*os.File); ok && terminal.OutputIsTerminal(f.Fd()) {
		opts.width = terminal.Width(f.Fd())
	}
	return nil
}

// printer returns a Printer writing to the streams of opts.
func (opts *GlobalOptions) printer() progress.Printer {
	return newTermPrinter(opts.stdout, opts.stderr, opts.verbosity, opts.width)
}

var globalOptions = GlobalOptions{
	stdout: os.Stdout,
	stderr: os.Stderr,
}
