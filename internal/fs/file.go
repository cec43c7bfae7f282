// Package fs holds the file system helpers of the backup tool. All output
// files are created through CreateNew, so an existing path is never
// overwritten by accident; the only way to replace a file is ReplaceFile or
// Rename, both of which swap in a completely written file atomically.
package fs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
)

// Modes are the permission bits used for created files and directories.
var Modes = struct {
	Dir, File, Script os.FileMode
}{0700, 0600, 0700}

// Open opens a file for reading.
func Open(name string) (*os.File, error) {
	return os.Open(name)
}

// Stat returns a FileInfo structure describing the named file.
// If there is an error, it will be of type *PathError.
func Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// MkdirAll creates a directory named path, along with any necessary parents.
func MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes the named file or directory.
// If there is an error, it will be of type *PathError.
func Remove(name string) error {
	return os.Remove(name)
}

// Rename renames (moves) oldpath to newpath. If newpath already exists,
// Rename replaces it.
func Rename(oldpath, newpath string) error {
	debug.Log("rename %v -> %v", oldpath, newpath)
	return errors.WithStack(os.Rename(oldpath, newpath))
}

// Exists reports whether name exists. Errors other than "does not exist" are
// treated as existing so that callers refuse to write there.
func Exists(name string) bool {
	_, err := os.Lstat(name)
	return !errors.Is(err, os.ErrNotExist)
}

// CreateNew creates the file name for writing. It fails with an error
// matching os.ErrExist if anything is already present at that path.
func CreateNew(name string, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	debug.Log("created %v", name)
	return f, nil
}

// ReplaceFile writes the content produced by fn to a temporary file next to
// name and renames it to name once fn, Sync and Close succeeded. A failed
// write leaves name untouched.
func ReplaceFile(name string, perm os.FileMode, fn func(w io.Writer) error) (err error) {
	tmp := filepath.Join(filepath.Dir(name), "."+filepath.Base(name)+".tmp")

	f, err := CreateNew(tmp, perm)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err = fn(f); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return errors.WithStack(err)
	}
	if err = f.Close(); err != nil {
		return errors.WithStack(err)
	}
	// O_EXCL creation ignores perm bits masked by the umask, enforce them.
	if err = os.Chmod(tmp, perm); err != nil {
		return errors.WithStack(err)
	}

	return Rename(tmp, name)
}
