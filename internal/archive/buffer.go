package archive

import (
	"bytes"
	"io"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/errors"
)

// Buffer is a fixed-capacity scratch area for one container. A Buffer is
// owned by a single goroutine and reused for every root element after a
// Reset.
type Buffer struct {
	data  []byte
	limit int
}

// NewBuffer returns an empty buffer that holds at most limit bytes. Memory is
// allocated on demand.
func NewBuffer(limit int) *Buffer {
	return &Buffer{limit: limit}
}

// Write appends p. Writing beyond the capacity fails with an error matching
// errors.ErrCapacity and leaves the buffer unchanged.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(b.data)+len(p) > b.limit {
		return 0, errors.Wrapf(errors.ErrCapacity, "container needs more than %d bytes", b.limit)
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Reset empties the buffer but keeps the allocated memory.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Cap returns the capacity limit of the buffer.
func (b *Buffer) Cap() int {
	return b.limit
}

// Bytes returns the content. The slice is only valid until the next Write
// or Reset.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Checksum returns the XXH3 hash of the content.
func (b *Buffer) Checksum() checksum.XXH3 {
	return checksum.OfBytes(b.data)
}

// NewReader returns a reader over the current content.
func (b *Buffer) NewReader() io.Reader {
	return bytes.NewReader(b.data)
}

// WriteTo writes the content to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	if err == nil && n < len(b.data) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}
