package checksum

import (
	"crypto/md5"
	"hash"
	"io"

	"github.com/zeebo/xxh3"

	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
)

// Sum describes a byte stream by its length and checksums. MD5 is zero
// unless the Hasher that produced it was created with md5 enabled.
type Sum struct {
	Size int64
	XXH3 XXH3
	MD5  MD5
}

// Hasher computes the XXH3 hash and optionally the MD5 digest of everything
// written to it. It never returns an error from Write.
type Hasher struct {
	x    *xxh3.Hasher
	m    hash.Hash
	size int64
}

// NewHasher returns a Hasher. When withMD5 is set the MD5 digest is
// computed as well.
func NewHasher(withMD5 bool) *Hasher {
	h := &Hasher{x: xxh3.New()}
	if withMD5 {
		h.m = md5.New()
	}
	return h
}

func (h *Hasher) Write(p []byte) (int, error) {
	_, _ = h.x.Write(p)
	if h.m != nil {
		_, _ = h.m.Write(p)
	}
	h.size += int64(len(p))
	return len(p), nil
}

// Sum returns size and checksums of the data written so far.
func (h *Hasher) Sum() Sum {
	s := Sum{Size: h.size, XXH3: XXH3(h.x.Sum64())}
	if h.m != nil {
		copy(s.MD5[:], h.m.Sum(nil))
	}
	return s
}

// Writer transparently hashes all data while writing it to the underlying
// writer.
type Writer struct {
	w io.Writer
	h *Hasher
}

// NewWriter wraps the writer w and feeds all data successfully written to w
// into a new Hasher.
func NewWriter(w io.Writer, withMD5 bool) *Writer {
	return &Writer{w: w, h: NewHasher(withMD5)}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	_, _ = w.h.Write(p[:n])
	return n, err
}

// Sum returns size and checksums of all data written so far.
func (w *Writer) Sum() Sum {
	return w.h.Sum()
}

// File computes the checksums of the file at path, reading it once.
func File(path string, withMD5 bool) (Sum, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Sum{}, errors.WithStack(err)
	}
	defer func() { _ = f.Close() }()

	h := NewHasher(withMD5)
	if _, err := io.Copy(h, f); err != nil {
		return Sum{}, errors.Wrapf(err, "read %v", path)
	}
	return h.Sum(), nil
}
