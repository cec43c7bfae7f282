package archive

import (
	"archive/tar"
	"io"
	"time"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
)

var (
	// ErrNoEntries is returned by FirstEntry for an empty container.
	ErrNoEntries = errors.New("container has no entries")

	// ErrClosed is returned when adding to a closed container.
	ErrClosed = errors.New("container already closed")
)

// epoch is the modification time of every entry.
var epoch = time.Unix(0, 0)

// chunkSize is the amount of file data copied at a time.
const chunkSize = 64 * 1024

// Entry is the result of adding one item to a container.
type Entry struct {
	// Name is the name of the item inside the tar stream.
	Name string
	Size int64
	XXH3 checksum.XXH3
	// MD5 of the content, only set when the Builder computes MD5 digests.
	MD5 checksum.MD5
}

// Options configure a Builder.
type Options struct {
	// MD5 makes AddFile compute an MD5 digest of each file as well.
	MD5 bool
}

// Builder writes a tar stream to a sink, one entry at a time. Only the size
// of each entry needs to be known up front.
type Builder struct {
	tw      *tar.Writer
	opts    Options
	buf     []byte
	entries []Entry
	closed  bool
}

// NewBuilder returns a Builder writing to w.
func NewBuilder(w io.Writer, opts Options) *Builder {
	return &Builder{
		tw:   tar.NewWriter(w),
		opts: opts,
	}
}

// entryMode is the permission of every entry, the source permissions are
// not part of the archive.
const entryMode = 0644

// header returns the normalized tar header for a regular file.
func header(name string, size int64) *tar.Header {
	return &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     size,
		Mode:     entryMode,
		ModTime:  epoch,
		Format:   tar.FormatGNU,
	}
}

// AddFile adds the regular file at path under the given archive name. The
// file content is hashed while it is copied into the stream.
func (b *Builder) AddFile(path, name string) (Entry, error) {
	if b.closed {
		return Entry{}, ErrClosed
	}

	f, err := fs.Open(path)
	if err != nil {
		return Entry{}, errors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return Entry{}, errors.WithStack(err)
	}
	if !fi.Mode().IsRegular() {
		return Entry{}, errors.Errorf("%v is not a regular file", path)
	}

	if err := b.tw.WriteHeader(header(name, fi.Size())); err != nil {
		return Entry{}, errors.Wrapf(err, "tar header for %v", name)
	}

	if b.buf == nil {
		b.buf = make([]byte, chunkSize)
	}
	h := checksum.NewHasher(b.opts.MD5)
	n, err := io.CopyBuffer(io.MultiWriter(b.tw, h), io.LimitReader(f, fi.Size()), b.buf)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "copy %v", path)
	}
	if n != fi.Size() {
		return Entry{}, errors.Errorf("%v shrank while being read: got %d of %d bytes", path, n, fi.Size())
	}

	sum := h.Sum()
	e := Entry{Name: name, Size: sum.Size, XXH3: sum.XXH3, MD5: sum.MD5}
	b.entries = append(b.entries, e)
	debug.Log("added %v: %d bytes, xxh3 %v", name, e.Size, e.XXH3)

	return e, nil
}

// AddStream adds the content of buf as the packed directory folderName. The
// checksum computed by the buffer is reused.
func (b *Builder) AddStream(buf *Buffer, folderName string) (Entry, error) {
	if b.closed {
		return Entry{}, ErrClosed
	}

	name := Wrap(folderName)
	size := int64(buf.Len())
	if err := b.tw.WriteHeader(header(name, size)); err != nil {
		return Entry{}, errors.Wrapf(err, "tar header for %v", name)
	}
	if _, err := buf.WriteTo(b.tw); err != nil {
		return Entry{}, errors.Wrapf(err, "write %v", name)
	}

	e := Entry{Name: name, Size: size, XXH3: buf.Checksum()}
	b.entries = append(b.entries, e)
	debug.Log("added %v: %d bytes, xxh3 %v", name, e.Size, e.XXH3)

	return e, nil
}

// FirstEntry returns the first entry added to the container. It identifies
// the root element a per-element container was built for.
func (b *Builder) FirstEntry() (Entry, error) {
	if len(b.entries) == 0 {
		return Entry{}, ErrNoEntries
	}
	return b.entries[0], nil
}

// Entries returns all entries added so far.
func (b *Builder) Entries() []Entry {
	return b.entries
}

// Close writes the tar trailer. It must be called exactly once; later calls
// return ErrClosed.
func (b *Builder) Close() error {
	if b.closed {
		return ErrClosed
	}
	b.closed = true
	return errors.Wrap(b.tw.Close(), "tar trailer")
}
