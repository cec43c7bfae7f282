package backup

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/manifest"
	"github.com/jskov/backup/internal/ui/progress"
)

// Mismatch describes a file whose content differs from the manifest.
type Mismatch struct {
	Name   string
	Reason string
}

// Report is the result of a verification.
type Report struct {
	Checked    int
	Bytes      int64
	Mismatches []Mismatch
}

// item is one file to check against a manifest entry.
type item struct {
	name string
	path string
	size int64
	xxh3 checksum.XXH3
	md5  checksum.MD5
}

// check compares the item against the file system.
func (it item) check() (reason string, err error) {
	s, err := checksum.File(it.path, !it.md5.IsZero())
	if err != nil {
		return "", err
	}

	switch {
	case s.Size != it.size:
		return "size differs", nil
	case s.XXH3 != it.xxh3:
		return "xxh3 differs", nil
	case !it.md5.IsZero() && s.MD5 != it.md5:
		return "md5 differs", nil
	}
	return "", nil
}

// verify checks all items with at most workers files read in parallel.
// Missing or unreadable files are reported as mismatches.
func verify(ctx context.Context, items []item, workers int, printer progress.Printer) (*Report, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var m sync.Mutex
	report := &Report{}

	wg, ctx := errgroup.WithContext(ctx)
	wg.SetLimit(workers)

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}

		it := it
		wg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			reason, err := it.check()
			if err != nil {
				debug.Log("checking %v failed: %v", it.path, err)
				reason = err.Error()
			}

			m.Lock()
			defer m.Unlock()
			report.Checked++
			if reason != "" {
				report.Mismatches = append(report.Mismatches, Mismatch{Name: it.name, Reason: reason})
				printer.E("%v: %v", it.name, reason)
			} else {
				report.Bytes += it.size
				printer.VV("ok %v", it.name)
			}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].Name < report.Mismatches[j].Name
	})

	if len(report.Mismatches) > 0 {
		return report, errors.Wrapf(errors.ErrMismatch, "%d of %d files differ", len(report.Mismatches), report.Checked)
	}
	return report, nil
}

// Verify checks size and checksums of the encrypted files of backup name in
// target against its restore script. The script must be a valid manifest.
func Verify(ctx context.Context, target, name string, workers int, printer progress.Printer) (*Report, error) {
	if printer == nil {
		printer = &progress.NoopPrinter{}
	}

	d, err := manifest.ParseFile(ScriptPath(target, name))
	if err != nil {
		return nil, err
	}

	items := make([]item, 0, len(d.Crypts))
	for _, c := range d.Crypts {
		items = append(items, item{
			name: c.Name,
			path: filepath.Join(target, c.Name),
			size: c.Size,
			xxh3: c.XXH3,
			md5:  c.MD5,
		})
	}
	return verify(ctx, items, workers, printer)
}

// VerifyFiles checks the files below dir, typically an unpacked backup or
// the original source, against the files section of the restore script.
func VerifyFiles(ctx context.Context, target, name, dir string, workers int, printer progress.Printer) (*Report, error) {
	if printer == nil {
		printer = &progress.NoopPrinter{}
	}

	d, err := manifest.ParseFile(ScriptPath(target, name))
	if err != nil {
		return nil, err
	}

	items := make([]item, 0, len(d.Files))
	for _, f := range d.Files {
		items = append(items, item{
			name: f.Name,
			path: filepath.Join(dir, filepath.FromSlash(f.Name)),
			size: f.Size,
			xxh3: f.XXH3,
			md5:  f.MD5,
		})
	}
	return verify(ctx, items, workers, printer)
}
