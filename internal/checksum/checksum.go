// Package checksum defines the checksum value types recorded in restore
// manifests: 64 bit XXH3 content hashes, MD5 digests of encrypted files and
// the id of the key the backup is encrypted to.
package checksum

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/jskov/backup/internal/errors"
)

// ErrInvalid is returned by the Parse functions for malformed input.
var ErrInvalid = errors.New("invalid checksum")

// XXH3Len is the length of a hex-encoded XXH3 value.
const XXH3Len = 16

// MD5Len is the length of a hex-encoded MD5 value.
const MD5Len = 32

// XXH3 is a 64 bit XXH3 hash, used for change detection and integrity
// checks of plaintext content.
type XXH3 uint64

// OfBytes returns the XXH3 hash of b.
func OfBytes(b []byte) XXH3 {
	return XXH3(xxh3.Hash(b))
}

// String returns the zero padded lower-case hex form.
func (x XXH3) String() string {
	return fmt.Sprintf("%016x", uint64(x))
}

// ParseXXH3 decodes the hex form of an XXH3 hash.
func ParseXXH3(s string) (XXH3, error) {
	if len(s) != XXH3Len {
		return 0, errors.Wrapf(ErrInvalid, "xxh3 %q: want %d hex digits", s, XXH3Len)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalid, "xxh3 %q: %v", s, err)
	}
	return XXH3(v), nil
}

// MD5 is an MD5 digest. It is only ever computed over encrypted bytes, so
// that the integrity of crypt files can be checked with md5sum alone.
type MD5 [16]byte

// IsZero reports whether m is unset.
func (m MD5) IsZero() bool {
	return m == MD5{}
}

func (m MD5) String() string {
	return hex.EncodeToString(m[:])
}

// ParseMD5 decodes the hex form of an MD5 digest.
func ParseMD5(s string) (MD5, error) {
	var m MD5
	if len(s) != MD5Len {
		return m, errors.Wrapf(ErrInvalid, "md5 %q: want %d hex digits", s, MD5Len)
	}
	if _, err := hex.Decode(m[:], []byte(s)); err != nil {
		return m, errors.Wrapf(ErrInvalid, "md5 %q: %v", s, err)
	}
	return m, nil
}

// KeyID identifies the public key a backup is encrypted to. It is the hex
// key id or fingerprint as understood by gpg, stored in upper case.
type KeyID string

// ParseKeyID validates s as a short (8), long (16) or full fingerprint (40)
// hex key id. An optional 0x prefix is removed.
func ParseKeyID(s string) (KeyID, error) {
	id := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	switch len(id) {
	case 8, 16, 40:
	default:
		return "", errors.Wrapf(ErrInvalid, "key id %q: want 8, 16 or 40 hex digits", s)
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", errors.Wrapf(ErrInvalid, "key id %q: not hex", s)
	}
	return KeyID(strings.ToUpper(id)), nil
}

func (k KeyID) String() string {
	return string(k)
}

// IsHex reports whether s only consists of hex digits.
func IsHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
