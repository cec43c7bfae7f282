// Package split distributes a byte stream over numbered files of bounded
// size.
package split

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("split writer already closed")

// File describes one completed output file.
type File struct {
	// Path is the location of the file, Name its base name.
	Path string
	Name string
	checksum.Sum
}

// Writer writes to files named <base>-NN<suffix>, starting a new file
// whenever the current one has reached the limit. None of the files is
// larger than the limit.
type Writer struct {
	base   string
	suffix string
	limit  int64

	seq   int
	count int64
	f     *os.File
	cw    *checksum.Writer
	cur   string

	files  []File
	closed bool
}

// New returns a Writer. The limit must be positive.
func New(base, suffix string, limit int64) (*Writer, error) {
	if limit <= 0 {
		return nil, errors.Errorf("invalid split limit %d", limit)
	}
	return &Writer{base: base, suffix: suffix, limit: limit}, nil
}

// Name returns the path of the file with sequence number seq.
func Name(base, suffix string, seq int) string {
	return fmt.Sprintf("%s-%02d%s", base, seq, suffix)
}

func (w *Writer) finish() error {
	if w.f == nil {
		return nil
	}

	f := w.f
	w.f = nil
	if err := f.Close(); err != nil {
		return errors.WithStack(err)
	}

	file := File{Path: w.cur, Name: filepath.Base(w.cur), Sum: w.cw.Sum()}
	w.files = append(w.files, file)
	debug.Log("finished %v, %d bytes", file.Path, file.Size)
	return nil
}

func (w *Writer) rotate() error {
	if err := w.finish(); err != nil {
		return err
	}

	w.seq++
	name := Name(w.base, w.suffix, w.seq)
	f, err := fs.CreateNew(name, fs.Modes.File)
	if err != nil {
		return err
	}

	w.f = f
	w.cw = checksum.NewWriter(f, true)
	w.cur = name
	w.count = 0
	return nil
}

// Write writes p, spreading it over as many files as needed.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}

	written := 0
	for len(p) > 0 {
		if w.f == nil || w.count >= w.limit {
			if err := w.rotate(); err != nil {
				return written, err
			}
		}

		chunk := p
		if room := w.limit - w.count; int64(len(chunk)) > room {
			chunk = chunk[:room]
		}

		n, err := w.cw.Write(chunk)
		written += n
		w.count += int64(n)
		if err != nil {
			return written, errors.Wrapf(err, "write %v", w.cur)
		}
		p = p[n:]
	}

	return written, nil
}

// Close closes the current file. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.finish()
}

// Files returns the files completed so far, in order.
func (w *Writer) Files() []File {
	return w.files
}

var _ io.WriteCloser = &Writer{}
