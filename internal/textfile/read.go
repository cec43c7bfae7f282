// Package textfile reads text files such as restore scripts that may have
// been re-saved by an editor. Byte Order Marks are removed and UTF-16 content
// is converted to UTF-8. Input without a BOM is passed through unchanged,
// including bytes that are not valid UTF-8.
package textfile

import (
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
)

// NewReader returns a reader that decodes r according to its BOM.
func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(encoding.Nop.NewDecoder()))
}

type readCloser struct {
	io.Reader
	io.Closer
}

// Open opens filename for reading decoded text.
func Open(filename string) (io.ReadCloser, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return readCloser{Reader: NewReader(f), Closer: f}, nil
}
