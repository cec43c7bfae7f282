// Package backup runs a complete backup: it walks the root elements of the
// source directory, feeds them to an output policy and writes the restore
// script once all encrypted files are complete.
package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jskov/backup/internal/archive"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/crypt"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
	"github.com/jskov/backup/internal/manifest"
	"github.com/jskov/backup/internal/output"
	"github.com/jskov/backup/internal/ui/progress"
)

// DefaultOutputTimeout bounds the wait for the output files after the last
// element was written.
const DefaultOutputTimeout = 10 * time.Minute

// Options configure a backup run.
type Options struct {
	Source string
	Target string
	// Name is the backup name. The restore script is <Target>/<Name>.sh.
	Name string

	Kind output.Kind
	// MaxCryptSize limits the size of numbered output files.
	MaxCryptSize int64
	// ContainerSize limits the size of a packed directory and, for named
	// output, of a whole root element.
	ContainerSize int

	Crypt crypt.Config
	KeyID checksum.KeyID
	// MD5 adds MD5 digests of all files to the manifest.
	MD5 bool

	// Version is the program version recorded in the restore script.
	Version string
	// Time is recorded as the backup time; the zero value means now.
	Time time.Time

	OutputTimeout time.Duration
	Printer       progress.Printer
}

// Summary describes a completed backup.
type Summary struct {
	Elements int
	Skipped  []string
	Files    int
	// InputBytes is the total size of all backed up files.
	InputBytes int64

	OutputFiles int
	OutputBytes int64
	// Reused counts encrypted files kept from the previous backup.
	Reused int

	Script   string
	Duration time.Duration
}

// ScriptPath returns the path of the restore script of backup name.
func ScriptPath(target, name string) string {
	return filepath.Join(target, name+".sh")
}

func (opts *Options) check() error {
	if opts.Name == "" || strings.ContainsAny(opts.Name, `/\`) || opts.Name == "." || opts.Name == ".." {
		return errors.Fatalf("invalid backup name %q", opts.Name)
	}
	if opts.ContainerSize <= 0 {
		return errors.Fatalf("invalid container size %d", opts.ContainerSize)
	}
	if opts.Kind == output.Numbered && opts.MaxCryptSize <= 0 {
		return errors.Fatalf("invalid maximal crypt size %d", opts.MaxCryptSize)
	}

	fi, err := fs.Stat(opts.Source)
	if err != nil {
		return errors.Fatalf("source %v: %v", opts.Source, err)
	}
	if !fi.IsDir() {
		return errors.Fatalf("source %v is not a directory", opts.Source)
	}

	if opts.Printer == nil {
		opts.Printer = &progress.NoopPrinter{}
	}
	if opts.OutputTimeout <= 0 {
		opts.OutputTimeout = DefaultOutputTimeout
	}
	if opts.Time.IsZero() {
		opts.Time = time.Now()
	}
	return nil
}

// loadPrior returns the manifest of the previous backup in the target.
func loadPrior(opts Options, script string) (*manifest.Data, error) {
	if !fs.Exists(script) {
		return &manifest.Data{}, nil
	}

	if opts.Kind == output.Numbered {
		return nil, errors.WithStack(&os.PathError{Op: "create", Path: script, Err: os.ErrExist})
	}

	prior := manifest.Load(script)
	if prior.Empty() {
		opts.Printer.V("no usable data in %v, encrypting everything", script)
		return prior, nil
	}
	if prior.KeyID != "" && opts.KeyID != "" && prior.KeyID != opts.KeyID {
		return nil, errors.Fatalf("%v was encrypted to key %v, not %v; use a new target", script, prior.KeyID, opts.KeyID)
	}
	return prior, nil
}

// run holds the state of one backup run.
type run struct {
	opts    Options
	w       output.Writer
	packer  *archive.DirPacker
	summary *Summary
	data    *manifest.Data
}

func (r *run) element(el archive.Element) error {
	b, err := r.w.Begin(el.Name)
	if err != nil {
		return err
	}

	if el.IsDir {
		e, info, err := r.packer.Pack(b, el)
		if err != nil {
			return err
		}
		r.addArchive(e, true)
		for _, f := range info.Files {
			r.addFile(f)
		}
		r.opts.Printer.V("packed %v: %d files", el.Name, len(info.Files))
	} else {
		e, f, err := archive.PackFile(b, el)
		if err != nil {
			return err
		}
		r.addArchive(e, false)
		r.addFile(f)
		r.opts.Printer.V("packed %v", el.Name)
	}

	return r.w.End()
}

func (r *run) addArchive(e archive.Entry, dir bool) {
	r.data.Archives = append(r.data.Archives, manifest.ArchiveEntry{
		Name:  archive.Unwrap(e.Name),
		Size:  e.Size,
		XXH3:  e.XXH3,
		IsDir: dir,
	})
}

func (r *run) addFile(f archive.FileInfo) {
	r.data.Files = append(r.data.Files, manifest.FileEntry{Name: f.Path, Size: f.Size, XXH3: f.XXH3, MD5: f.MD5})
	r.summary.Files++
	r.summary.InputBytes += f.Size
	r.opts.Printer.VV("  %v", f.Path)
}

// Run performs a backup. Nothing is referenced by a restore script unless
// the whole run succeeded; the script is written last. The context is
// checked between root elements.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	if err := opts.check(); err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(opts.Target, fs.Modes.Dir); err != nil {
		return nil, errors.Wrap(err, "create target")
	}

	script := ScriptPath(opts.Target, opts.Name)
	prior, err := loadPrior(opts, script)
	if err != nil {
		return nil, err
	}

	elements, skipped, err := archive.RootElements(opts.Source, opts.Target)
	if err != nil {
		return nil, errors.Wrap(err, "list source")
	}
	for _, name := range skipped {
		opts.Printer.E("skipping %v: not a regular file or directory", name)
	}

	builderOpts := archive.Options{MD5: opts.MD5}
	w, err := output.New(output.Config{
		Kind:          opts.Kind,
		TargetDir:     opts.Target,
		Name:          opts.Name,
		MaxCryptSize:  opts.MaxCryptSize,
		ContainerSize: opts.ContainerSize,
		Crypt:         opts.Crypt,
		Builder:       builderOpts,
		Prior:         prior,
		Printer:       opts.Printer,
	})
	if err != nil {
		return nil, err
	}

	r := &run{
		opts:    opts,
		w:       w,
		packer:  archive.NewDirPacker(opts.ContainerSize, builderOpts),
		summary: &Summary{Elements: len(elements), Skipped: skipped, Script: script},
		data:    &manifest.Data{},
	}

	if err := r.write(ctx, elements, prior); err != nil {
		debug.Log("backup failed: %v", err)
		w.Abort()
		return nil, err
	}

	r.summary.Duration = time.Since(start)
	return r.summary, nil
}

func (r *run) write(ctx context.Context, elements []archive.Element, prior *manifest.Data) error {
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.element(el); err != nil {
			return err
		}
	}

	files, err := r.w.Finish().Wait(r.opts.OutputTimeout)
	if err != nil {
		return err
	}
	for _, f := range files {
		r.data.Crypts = append(r.data.Crypts, manifest.CryptEntry{Name: f.Name, Size: f.Size, XXH3: f.XXH3, MD5: f.MD5})
		r.summary.OutputFiles++
		r.summary.OutputBytes += f.Size
		if c, ok := prior.Crypt(f.Name); ok && c.XXH3 == f.XXH3 && c.MD5 == f.MD5 {
			r.summary.Reused++
		}
	}

	if err := r.w.Commit(); err != nil {
		return err
	}

	return manifest.Write(ScriptPath(r.opts.Target, r.opts.Name), manifest.Vars{
		Version:    r.opts.Version,
		Time:       r.opts.Time,
		BackupName: r.opts.Name,
		TotalSize:  r.summary.InputBytes,
		KeyID:      r.opts.KeyID,
		OutputType: r.opts.Kind.String(),
	}, r.data)
}
