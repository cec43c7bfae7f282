// Package manifest reads and writes the data blocks of the restore script
// that accompanies every backup. The script is a bash program; the manifest
// consists of a few header comments and three arrays listing the encrypted
// files, the archives and the individual files of the backup with their
// sizes and checksums.
package manifest

import (
	_ "embed"
	"time"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/errors"
)

// FormatVersion is the data format version written by this package. It is
// also the only version that is decoded.
const FormatVersion = 2

// ErrUnsupportedVersion is returned by Parse for restore scripts with a data
// format other than FormatVersion.
var ErrUnsupportedVersion = errors.New("unsupported data format version")

// Template is the restore script all manifests are rendered into.
//
//go:embed restore.sh
var Template string

// CryptEntry describes an encrypted output file. All values refer to the
// encrypted bytes.
type CryptEntry struct {
	Name string
	Size int64
	XXH3 checksum.XXH3
	MD5  checksum.MD5
}

// ArchiveEntry describes one root element as stored in the tar stream.
// Name is the plain element name; IsDir is set for packed directories,
// whose entries are wrapped in the archive.
type ArchiveEntry struct {
	Name  string
	Size  int64
	XXH3  checksum.XXH3
	IsDir bool
}

// FileEntry describes a single backed up file by its path relative to the
// source directory. MD5 is zero unless MD5 digests were requested.
type FileEntry struct {
	Name string
	Size int64
	XXH3 checksum.XXH3
	MD5  checksum.MD5
}

// Data is the decoded manifest of a restore script.
type Data struct {
	AppVersion    string
	FormatVersion int
	KeyID         checksum.KeyID

	Crypts   []CryptEntry
	Archives []ArchiveEntry
	Files    []FileEntry
}

// Empty reports whether d holds no entries.
func (d *Data) Empty() bool {
	return d == nil || (len(d.Crypts) == 0 && len(d.Archives) == 0 && len(d.Files) == 0)
}

// Archive returns the archive entry of the root element name.
func (d *Data) Archive(name string) (ArchiveEntry, bool) {
	if d == nil {
		return ArchiveEntry{}, false
	}
	for _, a := range d.Archives {
		if a.Name == name {
			return a, true
		}
	}
	return ArchiveEntry{}, false
}

// Crypt returns the entry of the encrypted file name.
func (d *Data) Crypt(name string) (CryptEntry, bool) {
	if d == nil {
		return CryptEntry{}, false
	}
	for _, c := range d.Crypts {
		if c.Name == name {
			return c, true
		}
	}
	return CryptEntry{}, false
}

// Vars are the values substituted into the template header.
type Vars struct {
	Version    string
	Time       time.Time
	BackupName string
	// TotalSize is the number of input bytes of the backup.
	TotalSize  int64
	KeyID      checksum.KeyID
	OutputType string
}
