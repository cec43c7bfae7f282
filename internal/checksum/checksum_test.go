package checksum_test

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/errors"
	rtest "github.com/jskov/backup/internal/test"
)

func TestEmptyInput(t *testing.T) {
	h := checksum.NewHasher(true)
	sum := h.Sum()

	rtest.Equals(t, int64(0), sum.Size)
	rtest.Equals(t, "2d06800538d394c2", sum.XXH3.String())
	rtest.Equals(t, "d41d8cd98f00b204e9800998ecf8427e", sum.MD5.String())
	rtest.Equals(t, checksum.OfBytes(nil), sum.XXH3)
}

func TestHasherMatchesOneShot(t *testing.T) {
	data := rtest.Random(23, 300*1024+17)

	h := checksum.NewHasher(false)
	// feed the data in uneven pieces
	for rest := data; len(rest) > 0; {
		n := 4093
		if n > len(rest) {
			n = len(rest)
		}
		_, err := h.Write(rest[:n])
		rtest.OK(t, err)
		rest = rest[n:]
	}

	sum := h.Sum()
	rtest.Equals(t, checksum.OfBytes(data), sum.XXH3)
	rtest.Equals(t, int64(len(data)), sum.Size)
	rtest.Assert(t, sum.MD5.IsZero(), "md5 computed although disabled: %v", sum.MD5)
}

func TestWriterForwardsAndHashes(t *testing.T) {
	data := rtest.Random(5, 1000)
	var buf bytes.Buffer

	w := checksum.NewWriter(&buf, true)
	_, err := io.Copy(w, bytes.NewReader(data))
	rtest.OK(t, err)

	rtest.Equals(t, data, buf.Bytes())
	rtest.Equals(t, checksum.OfBytes(data), w.Sum().XXH3)
	rtest.Assert(t, !w.Sum().MD5.IsZero(), "md5 missing")
}

func TestFile(t *testing.T) {
	dir := rtest.TempDir(t)
	data := rtest.Random(7, 5000)
	p := rtest.WriteFile(t, dir, "file", data)

	sum, err := checksum.File(p, true)
	rtest.OK(t, err)

	h := checksum.NewHasher(true)
	_, _ = h.Write(data)
	rtest.Equals(t, h.Sum(), sum)

	_, err = checksum.File(filepath.Join(dir, "missing"), false)
	rtest.Assert(t, err != nil, "expected error for missing file")
}

func TestParseXXH3(t *testing.T) {
	for _, test := range []struct {
		in   string
		want checksum.XXH3
		ok   bool
	}{
		{"0000000000000000", 0, true},
		{"2d06800538d394c2", 0x2d06800538d394c2, true},
		{"2D06800538D394C2", 0x2d06800538d394c2, true},
		{"2d06800538d394c", 0, false},
		{"2d06800538d394c2a", 0, false},
		{"2d06800538d394cx", 0, false},
		{"", 0, false},
	} {
		got, err := checksum.ParseXXH3(test.in)
		if test.ok {
			rtest.OK(t, err)
			rtest.Equals(t, test.want, got)
			continue
		}
		rtest.Assert(t, errors.Is(err, checksum.ErrInvalid), "%q: want ErrInvalid, got %v", test.in, err)
	}
}

func TestXXH3StringRoundTrip(t *testing.T) {
	for _, v := range []checksum.XXH3{0, 1, 0xffffffffffffffff, 0x00ab00cd00ef0012} {
		s := v.String()
		rtest.Equals(t, checksum.XXH3Len, len(s))
		got, err := checksum.ParseXXH3(s)
		rtest.OK(t, err)
		rtest.Equals(t, v, got)
	}
}

func TestParseMD5(t *testing.T) {
	m, err := checksum.ParseMD5("d41d8cd98f00b204e9800998ecf8427e")
	rtest.OK(t, err)
	rtest.Equals(t, "d41d8cd98f00b204e9800998ecf8427e", m.String())

	for _, bad := range []string{"", "d41d8cd98f00b204e9800998ecf8427", "z41d8cd98f00b204e9800998ecf8427e"} {
		_, err := checksum.ParseMD5(bad)
		rtest.Assert(t, errors.Is(err, checksum.ErrInvalid), "%q: want ErrInvalid, got %v", bad, err)
	}
}

func TestParseKeyID(t *testing.T) {
	for _, test := range []struct {
		in   string
		want checksum.KeyID
		ok   bool
	}{
		{"5e4aa6fc", "5E4AA6FC", true},
		{"0x5E4AA6FC1F6A2D3B", "5E4AA6FC1F6A2D3B", true},
		{"  9CB4A9F3D1C0EA6B2A7E5C3F1B0D9E8A7C6B5A41 ", "9CB4A9F3D1C0EA6B2A7E5C3F1B0D9E8A7C6B5A41", true},
		{"5e4aa6f", "", false},
		{"user@example.com", "", false},
		{"5E4AA6FC1F6A2D3G", "", false},
	} {
		got, err := checksum.ParseKeyID(test.in)
		if !test.ok {
			rtest.Assert(t, errors.Is(err, checksum.ErrInvalid), "%q: want ErrInvalid, got %v", test.in, err)
			continue
		}
		rtest.OK(t, err)
		rtest.Equals(t, test.want, got)
	}
}
