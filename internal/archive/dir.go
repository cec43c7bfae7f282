package archive

import (
	"path/filepath"

	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
)

// DirPacker packs a directory root element into an in-memory tar container
// and adds that container to an outer Builder as a single wrapped entry.
// The scratch buffer is reused for every directory.
type DirPacker struct {
	buf  *Buffer
	opts Options
}

// NewDirPacker returns a DirPacker whose containers may grow to limit bytes.
func NewDirPacker(limit int, opts Options) *DirPacker {
	return &DirPacker{buf: NewBuffer(limit), opts: opts}
}

// Pack adds all regular files below el.Path to a fresh container, then adds
// the container to outer as Wrap(el.Name). Exceeding the buffer capacity is
// fatal and reported as errors.ErrCapacity.
func (p *DirPacker) Pack(outer *Builder, el Element) (Entry, DirInfo, error) {
	files, err := ListFiles(el.Path)
	if err != nil {
		return Entry{}, DirInfo{}, err
	}

	p.buf.Reset()
	inner := NewBuilder(p.buf, p.opts)
	info := DirInfo{Path: el.Name, Files: make([]FileInfo, 0, len(files))}

	for _, rel := range files {
		e, err := inner.AddFile(filepath.Join(el.Path, filepath.FromSlash(rel)), joinName(el.Name, rel))
		if err != nil {
			return Entry{}, DirInfo{}, errors.Wrapf(err, "pack %v", el.Name)
		}
		info.Files = append(info.Files, fileInfo(e))
	}

	if err := inner.Close(); err != nil {
		return Entry{}, DirInfo{}, errors.Wrapf(err, "pack %v", el.Name)
	}

	debug.Log("packed %v: %d files, %d bytes", el.Name, len(files), p.buf.Len())

	e, err := outer.AddStream(p.buf, el.Name)
	if err != nil {
		return Entry{}, DirInfo{}, err
	}
	return e, info, nil
}

// PackFile adds the root element file el to outer and returns its FileInfo.
func PackFile(outer *Builder, el Element) (Entry, FileInfo, error) {
	e, err := outer.AddFile(el.Path, el.Name)
	if err != nil {
		return Entry{}, FileInfo{}, err
	}
	return e, fileInfo(e), nil
}
