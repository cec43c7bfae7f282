package archive

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
)

// FileInfo describes one regular file as seen while packing it. Size and
// checksums come from reading the content, not from the file system.
type FileInfo struct {
	// Path is the slash separated path relative to the backup source.
	Path string
	Size int64
	XXH3 checksum.XXH3
	// MD5 is optional and zero unless requested.
	MD5 checksum.MD5
}

// DirInfo lists every regular file below one packed directory.
type DirInfo struct {
	Path  string
	Files []FileInfo
}

func fileInfo(e Entry) FileInfo {
	return FileInfo{Path: e.Name, Size: e.Size, XXH3: e.XXH3, MD5: e.MD5}
}

// Element is an immediate child of the backup source directory.
type Element struct {
	Name  string
	Path  string
	IsDir bool
}

// lessFold orders names case-insensitively, falling back to a byte-wise
// comparison so that the order is total.
func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// RootElements lists the regular files and directories directly below
// source in deterministic order. Entries of other types are returned
// separately in skipped. The path exclude, typically the backup target, is
// left out when it is a child of source.
func RootElements(source, exclude string) (elements []Element, skipped []string, err error) {
	entries, err := os.ReadDir(source)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	excludeAbs := ""
	if exclude != "" {
		excludeAbs, err = filepath.Abs(exclude)
		if err != nil {
			return nil, nil, errors.WithStack(err)
		}
	}

	for _, e := range entries {
		p := filepath.Join(source, e.Name())
		if excludeAbs != "" {
			if abs, err := filepath.Abs(p); err == nil && abs == excludeAbs {
				debug.Log("skipping %v, it is the backup target", p)
				continue
			}
		}

		switch {
		case e.Type().IsRegular():
			elements = append(elements, Element{Name: e.Name(), Path: p})
		case e.IsDir():
			elements = append(elements, Element{Name: e.Name(), Path: p, IsDir: true})
		default:
			skipped = append(skipped, e.Name())
		}
	}

	sort.Slice(elements, func(i, j int) bool {
		return lessFold(elements[i].Name, elements[j].Name)
	})

	return elements, skipped, nil
}

// ListFiles returns the slash separated paths, relative to dir, of all
// regular files below dir in case-insensitive order. Symlinks and special
// files are ignored.
func ListFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			if !d.IsDir() {
				debug.Log("ignoring %v, not a regular file", p)
			}
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %v", dir)
	}

	sort.Slice(files, func(i, j int) bool {
		return lessFold(files[i], files[j])
	})

	return files, nil
}

// joinName returns the archive name of rel below the root element name.
func joinName(name, rel string) string {
	return path.Join(name, rel)
}
