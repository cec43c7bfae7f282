package output

import (
	"path/filepath"

	"github.com/jskov/backup/internal/archive"
	"github.com/jskov/backup/internal/crypt"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
	"github.com/jskov/backup/internal/split"
)

// numbered pipes one tar stream through one encryption filter into files
// named <name>-NN.crypt. Element boundaries are not visible below the tar
// layer.
type numbered struct {
	cfg Config

	splitter *split.Writer
	filter   *crypt.Filter
	builder  *archive.Builder

	pending *Pending
}

func newNumbered(cfg Config) (*numbered, error) {
	if cfg.MaxCryptSize <= 0 {
		return nil, errors.Errorf("invalid maximal crypt size %d", cfg.MaxCryptSize)
	}
	return &numbered{cfg: cfg}, nil
}

// start creates the pipeline on first use.
func (w *numbered) start() error {
	s, err := split.New(filepath.Join(w.cfg.TargetDir, w.cfg.Name), Suffix, w.cfg.MaxCryptSize)
	if err != nil {
		return err
	}

	f, err := crypt.New(w.cfg.Crypt, s)
	if err != nil {
		_ = s.Close()
		return err
	}

	w.splitter = s
	w.filter = f
	w.builder = archive.NewBuilder(f, w.cfg.Builder)
	return nil
}

func (w *numbered) Begin(name string) (*archive.Builder, error) {
	if w.pending != nil {
		return nil, archive.ErrClosed
	}
	if w.builder == nil {
		if err := w.start(); err != nil {
			return nil, err
		}
	}
	debug.Log("element %v", name)
	return w.builder, nil
}

func (w *numbered) End() error {
	return nil
}

func (w *numbered) files() []File {
	var files []File
	for _, f := range w.splitter.Files() {
		files = append(files, File{Name: f.Name, Sum: f.Sum})
	}
	return files
}

// Finish writes the tar trailer and closes the filter in the background.
func (w *numbered) Finish() *Pending {
	if w.pending != nil {
		return w.pending
	}
	w.pending = newPending()

	if w.builder == nil {
		// no element at all, the backup still gets an (empty) archive
		if err := w.start(); err != nil {
			w.pending.resolve(nil, err)
			return w.pending
		}
	}

	if err := w.builder.Close(); err != nil {
		_ = w.filter.Close()
		_ = w.splitter.Close()
		w.pending.resolve(nil, err)
		return w.pending
	}

	go func() {
		err := w.filter.Close()
		if d := w.filter.Diagnostics(); d != "" {
			w.cfg.Printer.V("%s", d)
		}
		if serr := w.splitter.Close(); err == nil {
			err = serr
		}
		if err != nil {
			w.pending.resolve(nil, err)
			return
		}
		w.pending.resolve(w.files(), nil)
	}()

	return w.pending
}

func (w *numbered) Commit() error {
	return nil
}

func (w *numbered) Abort() {
	switch {
	case w.builder == nil:
		return
	case w.pending == nil:
		_ = w.filter.Close()
		_ = w.splitter.Close()
	default:
		<-w.pending.Done()
	}

	for _, f := range w.splitter.Files() {
		debug.Log("removing %v", f.Path)
		_ = fs.Remove(f.Path)
	}
}
