// Package crypt pipes a byte stream through an external encryption program.
package crypt

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
)

// lockedBuffer collects diagnostics written by one goroutine and read by
// another.
type lockedBuffer struct {
	m   sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.m.Lock()
	defer b.m.Unlock()
	return b.buf.String()
}

// Filter forwards everything written to it to the standard input of the
// encryption program. The program's output is copied to the sink by a
// background goroutine, a second one collects its stderr. Byte order is
// preserved. A Filter is used by a single goroutine.
type Filter struct {
	cfg   Config
	cmd   *exec.Cmd
	stdin io.WriteCloser

	output      chan error
	diagnostics chan struct{}
	diag        lockedBuffer

	m        sync.Mutex
	drainErr error

	writeErr error
	closed   bool
}

// New starts the encryption program. Its output is written to sink.
func New(cfg Config, sink io.Writer) (*Filter, error) {
	cfg.ApplyDefaults()

	cmd := exec.Command(cfg.Program, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StdinPipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StdoutPipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "cmd.StderrPipe")
	}

	debug.Log("starting %v %v", cfg.Program, cfg.Args)
	if err := cmd.Start(); err != nil {
		return nil, &PipeError{Program: cfg.Program, Op: "start", Err: err}
	}

	f := &Filter{
		cfg:         cfg,
		cmd:         cmd,
		stdin:       stdin,
		output:      make(chan error, 1),
		diagnostics: make(chan struct{}),
	}

	go func() {
		_, err := io.Copy(sink, stdout)
		if err != nil {
			debug.Log("draining output failed: %v", err)
			f.m.Lock()
			f.drainErr = err
			f.m.Unlock()

			// keep reading so that the program does not block on a full pipe
			_, _ = io.Copy(io.Discard, stdout)
		}
		f.output <- err
	}()

	go func() {
		_, _ = io.Copy(&f.diag, stderr)
		close(f.diagnostics)
	}()

	return f, nil
}

func (f *Filter) pipeError(op string, err error) *PipeError {
	return &PipeError{Program: f.cfg.Program, Op: op, Err: err, Diagnostics: f.diag.String()}
}

func (f *Filter) failed() error {
	f.m.Lock()
	defer f.m.Unlock()
	return f.drainErr
}

// Write forwards p to the encryption program. After the first failure every
// call returns the same error.
func (f *Filter) Write(p []byte) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if err := f.failed(); err != nil {
		f.writeErr = f.pipeError("write output", err)
		return 0, f.writeErr
	}

	n, err := f.stdin.Write(p)
	if err != nil {
		f.writeErr = f.pipeError("write", err)
		return n, f.writeErr
	}
	return n, nil
}

// Diagnostics returns what the program printed to stderr so far.
func (f *Filter) Diagnostics() string {
	return f.diag.String()
}

func (f *Filter) kill(reason string) {
	debug.Log("killing %v: %v", f.cfg.Program, reason)
	if debug.Enabled() {
		debug.Log("goroutines:\n%s", debug.DumpStacktrace())
	}
	if err := f.cmd.Process.Kill(); err != nil {
		debug.Log("kill failed: %v", err)
	}
}

// Close closes the input of the encryption program and waits until its
// output has been copied to the sink and the program has exited. An error
// captured by Write takes priority over anything that fails here.
func (f *Filter) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true

	closeErr := f.stdin.Close()

	var drainErr, timeoutErr error
	timer := time.NewTimer(f.cfg.OutputTimeout)
	select {
	case drainErr = <-f.output:
		timer.Stop()
	case <-timer.C:
		timeoutErr = errors.Wrapf(ErrTimeout, "output not drained after %v", f.cfg.OutputTimeout)
		f.kill("output timeout")
	}

	select {
	case <-f.diagnostics:
	case <-time.After(f.cfg.DiagnosticsTimeout):
		debug.Log("diagnostics of %v not drained after %v", f.cfg.Program, f.cfg.DiagnosticsTimeout)
	}

	wait := make(chan error, 1)
	go func() {
		wait <- f.cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-wait:
	case <-time.After(f.cfg.OutputTimeout):
		f.kill("exit timeout")
		waitErr = <-wait
		if timeoutErr == nil {
			timeoutErr = errors.Wrapf(ErrTimeout, "program did not exit after %v", f.cfg.OutputTimeout)
		}
	}
	debug.Log("%v exited, err %v", f.cfg.Program, waitErr)

	if d := f.diag.String(); d != "" {
		debug.Log("diagnostics of %v:\n%s", f.cfg.Program, d)
	}

	switch {
	case f.writeErr != nil:
		if pe, ok := f.writeErr.(*PipeError); ok {
			pe.Diagnostics = f.diag.String()
		}
		return f.writeErr
	case drainErr != nil:
		return f.pipeError("write output", drainErr)
	case timeoutErr != nil:
		return f.pipeError("close", timeoutErr)
	case waitErr != nil:
		return f.pipeError("wait", waitErr)
	case closeErr != nil:
		return f.pipeError("close input", closeErr)
	}
	return nil
}

var _ io.WriteCloser = &Filter{}
