package output

import (
	"os"
	"path/filepath"

	"github.com/jskov/backup/internal/archive"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/crypt"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
	"github.com/jskov/backup/internal/manifest"
)

// stagingSuffix is appended to the file a changed element is encrypted
// into until the backup is committed.
const stagingSuffix = ".new"

// staged is an encrypted file waiting to replace its predecessor.
type staged struct {
	tmp, final string
}

// named packs every root element into a buffer of its own. Elements whose
// content is unchanged since the previous backup keep their encrypted file,
// all others are encrypted into <element>.crypt.
type named struct {
	cfg Config
	buf *archive.Buffer

	current string
	builder *archive.Builder

	seen    map[string]bool
	used    map[string]string
	files   []File
	created []string
	staged  []staged

	pending *Pending
}

func newNamed(cfg Config) (*named, error) {
	if cfg.ContainerSize <= 0 {
		return nil, errors.Errorf("invalid container size %d", cfg.ContainerSize)
	}
	return &named{
		cfg:  cfg,
		buf:  archive.NewBuffer(cfg.ContainerSize),
		seen: make(map[string]bool),
		used: make(map[string]string),
	}, nil
}

func (w *named) Begin(name string) (*archive.Builder, error) {
	if w.pending != nil {
		return nil, archive.ErrClosed
	}
	if w.builder != nil {
		return nil, errors.Errorf("element %v not ended before %v", w.current, name)
	}

	w.buf.Reset()
	w.current = name
	w.builder = archive.NewBuilder(w.buf, w.cfg.Builder)
	return w.builder, nil
}

// unchanged returns the encrypted file of the previous backup if the
// element e was stored there with the same content and the file is still
// present.
func (w *named) unchanged(name string, e archive.Entry, cryptName string) (manifest.CryptEntry, bool) {
	prior, ok := w.cfg.Prior.Archive(name)
	if !ok || prior.Size != e.Size || prior.XXH3 != e.XXH3 {
		return manifest.CryptEntry{}, false
	}

	c, ok := w.cfg.Prior.Crypt(cryptName)
	if !ok {
		return manifest.CryptEntry{}, false
	}

	fi, err := fs.Stat(filepath.Join(w.cfg.TargetDir, cryptName))
	if err != nil || fi.Size() != c.Size {
		debug.Log("encrypted file %v of unchanged %v is missing or truncated: %v", cryptName, name, err)
		return manifest.CryptEntry{}, false
	}
	return c, true
}

// replaces reports whether element name was stored in cryptName by the
// previous backup and that file still exists.
func (w *named) replaces(name, cryptName string) bool {
	if _, ok := w.cfg.Prior.Archive(name); !ok {
		return false
	}
	if _, ok := w.cfg.Prior.Crypt(cryptName); !ok {
		return false
	}
	return fs.Exists(filepath.Join(w.cfg.TargetDir, cryptName))
}

func (w *named) End() error {
	if w.builder == nil {
		return errors.New("no element started")
	}
	b, name := w.builder, w.current
	w.builder = nil

	if err := b.Close(); err != nil {
		return err
	}
	first, err := b.FirstEntry()
	if err != nil {
		return errors.Wrapf(err, "element %v", name)
	}
	if got := archive.Unwrap(first.Name); got != name {
		return errors.Errorf("container of %v starts with %v", name, got)
	}
	w.seen[name] = true

	cryptName := Sanitize(name) + Suffix
	final := filepath.Join(w.cfg.TargetDir, cryptName)
	if other, ok := w.used[cryptName]; ok {
		return errors.Wrapf(&os.PathError{Op: "create", Path: final, Err: os.ErrExist},
			"element %v: %v is already used by %v", name, cryptName, other)
	}
	w.used[cryptName] = name

	if c, ok := w.unchanged(name, first, cryptName); ok {
		w.cfg.Printer.V("unchanged %v, keeping %v", name, cryptName)
		w.files = append(w.files, File{Name: c.Name, Sum: checksum.Sum{Size: c.Size, XXH3: c.XXH3, MD5: c.MD5}})
		return nil
	}

	// only the file of the same element in the previous backup is replaced
	path := final
	if w.replaces(name, cryptName) {
		path = final + stagingSuffix
	}

	w.cfg.Printer.V("encrypting %v to %v", name, cryptName)
	sum, err := w.encrypt(path)
	if errors.Is(err, os.ErrExist) && path != final {
		return errors.Wrapf(err, "element %v: remove %v left by an interrupted backup", name, path)
	}
	if err != nil {
		return errors.Wrapf(err, "element %v", name)
	}

	if path != final {
		w.staged = append(w.staged, staged{tmp: path, final: final})
	} else {
		w.created = append(w.created, path)
	}
	w.files = append(w.files, File{Name: cryptName, Sum: sum})
	return nil
}

// encrypt writes the buffer through the encryption filter into the new file
// path. The file is removed if anything fails.
func (w *named) encrypt(path string) (sum checksum.Sum, err error) {
	f, err := fs.CreateNew(path, fs.Modes.File)
	if err != nil {
		return checksum.Sum{}, err
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = fs.Remove(path)
		}
	}()

	cw := checksum.NewWriter(f, true)
	filter, err := crypt.New(w.cfg.Crypt, cw)
	if err != nil {
		return checksum.Sum{}, err
	}

	_, err = w.buf.WriteTo(filter)
	if cerr := filter.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return checksum.Sum{}, err
	}
	if d := filter.Diagnostics(); d != "" {
		w.cfg.Printer.V("%s", d)
	}

	if err = f.Sync(); err != nil {
		return checksum.Sum{}, errors.WithStack(err)
	}
	if err = f.Close(); err != nil {
		return checksum.Sum{}, errors.WithStack(err)
	}
	return cw.Sum(), nil
}

// Finish resolves immediately, every element was encrypted by End.
func (w *named) Finish() *Pending {
	if w.pending != nil {
		return w.pending
	}
	w.pending = newPending()

	if w.builder != nil {
		w.pending.resolve(nil, errors.Errorf("element %v not ended", w.current))
		return w.pending
	}
	w.pending.resolve(w.files, nil)
	return w.pending
}

// Commit renames staged files over their predecessors and reports elements
// of the previous backup that no longer exist.
func (w *named) Commit() error {
	for _, s := range w.staged {
		if err := fs.Rename(s.tmp, s.final); err != nil {
			return err
		}
	}
	w.staged = nil

	for _, a := range w.cfg.Prior.Archives {
		if w.seen[a.Name] {
			continue
		}
		cryptName := Sanitize(a.Name) + Suffix
		if fs.Exists(filepath.Join(w.cfg.TargetDir, cryptName)) {
			w.cfg.Printer.P("%v no longer exists, %v is kept but not referenced", a.Name, cryptName)
		}
	}
	return nil
}

func (w *named) Abort() {
	paths := append([]string(nil), w.created...)
	for _, s := range w.staged {
		paths = append(paths, s.tmp)
	}
	for _, p := range paths {
		debug.Log("removing %v", p)
		if err := fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.cfg.Printer.E("unable to remove %v: %v", p, err)
		}
	}
	w.created = nil
	w.staged = nil
}
