package crypt

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/errors"
	rtest "github.com/jskov/backup/internal/test"
)

func shell(t *testing.T, script string) Config {
	return Config{
		Program:            rtest.LookPath(t, "sh"),
		Args:               []string{"-c", script},
		OutputTimeout:      5 * time.Second,
		DiagnosticsTimeout: time.Second,
	}
}

func TestFilterPassThrough(t *testing.T) {
	cfg := Config{Program: rtest.LookPath(t, "cat")}

	var out bytes.Buffer
	f, err := New(cfg, &out)
	rtest.OK(t, err)

	data := rtest.Random(23, 3*1024*1024+17)
	for p := data; len(p) > 0; {
		n := 100 * 1024
		if n > len(p) {
			n = len(p)
		}
		written, err := f.Write(p[:n])
		rtest.OK(t, err)
		rtest.Equals(t, n, written)
		p = p[n:]
	}
	rtest.OK(t, f.Close())

	rtest.Assert(t, bytes.Equal(data, out.Bytes()), "output differs from input")
	rtest.Equals(t, "", f.Diagnostics())
}

func TestFilterEnv(t *testing.T) {
	cfg := shell(t, `cat >/dev/null; printf %s "$FILTER_TEST"`)
	cfg.Env = []string{"FILTER_TEST=value"}

	var out bytes.Buffer
	f, err := New(cfg, &out)
	rtest.OK(t, err)
	_, err = f.Write([]byte("ignored"))
	rtest.OK(t, err)
	rtest.OK(t, f.Close())

	rtest.Equals(t, "value", out.String())
}

func TestFilterExitStatus(t *testing.T) {
	cfg := shell(t, `cat >/dev/null; echo "no public key" >&2; exit 2`)

	var out bytes.Buffer
	f, err := New(cfg, &out)
	rtest.OK(t, err)
	_, err = f.Write([]byte("data"))
	rtest.OK(t, err)

	err = f.Close()
	rtest.Assert(t, errors.Is(err, errors.ErrPipe), "want ErrPipe, got %v", err)

	var pe *PipeError
	rtest.Assert(t, errors.As(err, &pe), "want *PipeError, got %T", err)
	rtest.Equals(t, "wait", pe.Op)
	rtest.Assert(t, strings.Contains(pe.Diagnostics, "no public key"), "diagnostics missing: %q", pe.Diagnostics)
	rtest.Assert(t, strings.Contains(err.Error(), "no public key"), "diagnostics not in message: %v", err)
}

func TestFilterEarlyExit(t *testing.T) {
	cfg := shell(t, `echo "bad recipient" >&2; exit 1`)

	var out bytes.Buffer
	f, err := New(cfg, &out)
	rtest.OK(t, err)

	data := rtest.Random(1, 64*1024)
	var writeErr error
	for i := 0; i < 1000 && writeErr == nil; i++ {
		_, writeErr = f.Write(data)
	}
	rtest.Assert(t, errors.Is(writeErr, errors.ErrPipe), "want ErrPipe from Write, got %v", writeErr)

	// later writes return the captured error
	_, err = f.Write(data)
	rtest.Equals(t, writeErr, err)

	err = f.Close()
	rtest.Equals(t, writeErr, err)
	rtest.Assert(t, strings.Contains(err.Error(), "bad recipient"), "diagnostics not in message: %v", err)
}

type brokenSink struct{}

func (brokenSink) Write([]byte) (int, error) {
	return 0, errors.New("sink broken")
}

func TestFilterSinkFailure(t *testing.T) {
	f, err := New(Config{Program: rtest.LookPath(t, "cat")}, brokenSink{})
	rtest.OK(t, err)

	data := rtest.Random(2, 32*1024)
	for i := 0; i < 64; i++ {
		if _, err := f.Write(data); err != nil {
			break
		}
	}

	err = f.Close()
	rtest.Assert(t, errors.Is(err, errors.ErrPipe), "want ErrPipe, got %v", err)
	rtest.Assert(t, strings.Contains(err.Error(), "sink broken"), "unexpected error %v", err)
}

func TestFilterTimeout(t *testing.T) {
	cfg := shell(t, `exec sleep 10`)
	cfg.OutputTimeout = 200 * time.Millisecond

	f, err := New(cfg, &bytes.Buffer{})
	rtest.OK(t, err)

	start := time.Now()
	err = f.Close()
	rtest.Assert(t, errors.Is(err, ErrTimeout), "want ErrTimeout, got %v", err)
	rtest.Assert(t, errors.Is(err, errors.ErrPipe), "want ErrPipe, got %v", err)
	rtest.Assert(t, time.Since(start) < 5*time.Second, "Close took %v", time.Since(start))
}

func TestFilterStartFailure(t *testing.T) {
	_, err := New(Config{Program: "/nonexistent/encryption-program"}, &bytes.Buffer{})
	rtest.Assert(t, errors.Is(err, errors.ErrPipe), "want ErrPipe, got %v", err)
}

func TestFilterClosed(t *testing.T) {
	f, err := New(Config{Program: rtest.LookPath(t, "cat")}, &bytes.Buffer{})
	rtest.OK(t, err)
	rtest.OK(t, f.Close())

	_, err = f.Write([]byte("x"))
	rtest.Assert(t, errors.Is(err, ErrClosed), "want ErrClosed, got %v", err)
	err = f.Close()
	rtest.Assert(t, errors.Is(err, ErrClosed), "want ErrClosed, got %v", err)
}

func TestGPGArgs(t *testing.T) {
	id, err := checksum.ParseKeyID("0xabcdef0123456789")
	rtest.OK(t, err)

	rtest.Equals(t, []string{
		"--batch", "--no-tty",
		"--recipient", "ABCDEF0123456789",
		"--cipher-algo", "AES256",
		"--compress-algo", "none",
		"--encrypt",
	}, GPGArgs(id))

	cfg := NewGPGConfig("", id)
	rtest.Equals(t, "gpg", cfg.Program)
	rtest.Equals(t, DefaultOutputTimeout, cfg.OutputTimeout)
}

func TestGPG(t *testing.T) {
	if rtest.TestGPGKeyID == "" {
		t.Skip("BACKUP_TEST_GPG_KEY_ID not set")
	}
	id, err := checksum.ParseKeyID(rtest.TestGPGKeyID)
	rtest.OK(t, err)

	cfg := NewGPGConfig(rtest.LookPath(t, "gpg"), id)

	var out bytes.Buffer
	f, err := New(cfg, &out)
	rtest.OK(t, err)
	data := rtest.Random(5, 100000)
	_, err = f.Write(data)
	rtest.OK(t, err)
	rtest.OK(t, f.Close())

	rtest.Assert(t, out.Len() > 0, "no encrypted output")
	rtest.Assert(t, !bytes.Contains(out.Bytes(), data[:1000]), "output contains plain text")
}
