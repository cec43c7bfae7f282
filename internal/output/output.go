// Package output decides where the tar stream of a backup goes. Two
// policies exist: Numbered writes all root elements into one encrypted
// stream split into numbered files of bounded size, Named encrypts every
// root element into a file of its own and keeps the files of unchanged
// elements from the previous backup.
package output

import (
	"strings"
	"time"

	"github.com/jskov/backup/internal/archive"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/crypt"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/manifest"
	"github.com/jskov/backup/internal/ui/progress"
)

// Kind selects an output policy.
type Kind int

const (
	// Numbered is the size-bounded single stream policy.
	Numbered Kind = iota
	// Named is the per element policy with reuse.
	Named
)

func (k Kind) String() string {
	switch k {
	case Numbered:
		return "numbered"
	case Named:
		return "named"
	}
	return "unknown"
}

// ParseKind returns the Kind called s.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "numbered":
		return Numbered, nil
	case "named":
		return Named, nil
	}
	return 0, errors.Errorf("unknown output type %q, use numbered or named", s)
}

// Suffix is the file name suffix of encrypted files.
const Suffix = ".crypt"

// Config configures a Writer.
type Config struct {
	Kind Kind
	// TargetDir receives all output files.
	TargetDir string
	// Name is the backup name, the base name of numbered files.
	Name string

	// MaxCryptSize is the largest size of a numbered file.
	MaxCryptSize int64
	// ContainerSize is the capacity of the buffer a named element is
	// packed into before it is encrypted.
	ContainerSize int

	Crypt   crypt.Config
	Builder archive.Options

	// Prior is the manifest of the previous backup, used by Named.
	Prior *manifest.Data

	Printer progress.Printer
}

// File is a completed encrypted output file. The checksums cover the
// encrypted bytes.
type File struct {
	Name string
	checksum.Sum
}

// Writer receives the root elements of a backup one after another.
type Writer interface {
	// Begin starts the root element name and returns the builder it must
	// be added to.
	Begin(name string) (*archive.Builder, error)
	// End completes the element started last.
	End() error
	// Finish is called after the last element. The returned handle
	// resolves when all output files are complete.
	Finish() *Pending
	// Commit makes the output files final. It must only be called after
	// the handle returned by Finish resolved without error.
	Commit() error
	// Abort releases all resources after a failure and removes the files
	// created so far.
	Abort()
}

// New returns the Writer for cfg.Kind.
func New(cfg Config) (Writer, error) {
	if cfg.Printer == nil {
		cfg.Printer = &progress.NoopPrinter{}
	}
	if cfg.Prior == nil {
		cfg.Prior = &manifest.Data{}
	}

	switch cfg.Kind {
	case Numbered:
		return newNumbered(cfg)
	case Named:
		return newNamed(cfg)
	}
	return nil, errors.Errorf("unknown output kind %d", cfg.Kind)
}

// Pending resolves to the list of output files once all of them are
// complete.
type Pending struct {
	done  chan struct{}
	files []File
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(files []File, err error) {
	p.files = files
	p.err = err
	close(p.done)
}

// Done is closed when the output files are complete.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the output files are complete or the timeout expired.
func (p *Pending) Wait(timeout time.Duration) ([]File, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-p.done:
		return p.files, p.err
	case <-t.C:
		return nil, errors.Wrapf(crypt.ErrTimeout, "output files not complete after %v", timeout)
	}
}

// allowedRunes are the letters besides a-z and A-Z kept by Sanitize.
const allowedRunes = "æøåÆØÅäöüÄÖÜéÉ"

// Sanitize replaces every character of name that the restore script cannot
// safely use in a file name by an underscore.
func Sanitize(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			sb.WriteRune(r)
		case strings.ContainsRune(allowedRunes, r):
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
