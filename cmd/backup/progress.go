package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jskov/backup/internal/ui"
	"github.com/jskov/backup/internal/ui/progress"
)

// termPrinter writes errors to stderr and all other messages to stdout,
// filtered by verbosity. Verbose messages are cut to the terminal width.
type termPrinter struct {
	m         sync.Mutex
	stdout    io.Writer
	stderr    io.Writer
	verbosity uint
	width     int
}

var _ progress.Printer = (*termPrinter)(nil)

func newTermPrinter(stdout, stderr io.Writer, verbosity uint, width int) *termPrinter {
	return &termPrinter{
		stdout:    stdout,
		stderr:    stderr,
		verbosity: verbosity,
		width:     width,
	}
}

func (p *termPrinter) print(w io.Writer, truncate bool, msg string, args ...interface{}) {
	line := strings.TrimRight(fmt.Sprintf(msg, args...), "\n")
	if truncate && p.width > 0 {
		line = ui.Truncate(line, p.width)
	}

	p.m.Lock()
	defer p.m.Unlock()
	_, _ = io.WriteString(w, line+"\n")
}

func (p *termPrinter) E(msg string, args ...interface{}) {
	p.print(p.stderr, false, msg, args...)
}

func (p *termPrinter) P(msg string, args ...interface{}) {
	if p.verbosity >= 1 {
		p.print(p.stdout, false, msg, args...)
	}
}

func (p *termPrinter) V(msg string, args ...interface{}) {
	if p.verbosity >= 2 {
		p.print(p.stdout, true, msg, args...)
	}
}

func (p *termPrinter) VV(msg string, args ...interface{}) {
	if p.verbosity >= 3 {
		p.print(p.stdout, true, msg, args...)
	}
}
