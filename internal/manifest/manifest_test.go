package manifest

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/errors"
	rtest "github.com/jskov/backup/internal/test"
)

func testVars() Vars {
	return Vars{
		Version:    "1.2.3",
		Time:       time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		BackupName: "photos",
		TotalSize:  4711,
		KeyID:      "0123456789ABCDEF",
		OutputType: "named",
	}
}

func sum(s string) checksum.XXH3 {
	return checksum.OfBytes([]byte(s))
}

func md5sum(t testing.TB, s string) checksum.MD5 {
	h := checksum.NewHasher(true)
	_, _ = h.Write([]byte(s))
	return h.Sum().MD5
}

func testData(t testing.TB) *Data {
	return &Data{
		Crypts: []CryptEntry{
			{Name: "a.bin.crypt", Size: 120, XXH3: sum("c1"), MD5: md5sum(t, "c1")},
			{Name: "dirA.crypt", Size: 123456789, XXH3: sum("c2"), MD5: md5sum(t, "c2")},
		},
		Archives: []ArchiveEntry{
			{Name: "a.bin", Size: 0, XXH3: sum("")},
			{Name: "dirA", Size: 10240, XXH3: sum("a2"), IsDir: true},
			{Name: "with space [1] (x)", Size: 3, XXH3: sum("a3"), IsDir: true},
		},
		Files: []FileEntry{
			{Name: "a.bin", Size: 0, XXH3: sum("")},
			{Name: "dirA/f1.bin", Size: 1, XXH3: sum("f1")},
			{Name: `with space [1] (x)/"quoted" $HOME \ ` + "`cmd`", Size: 99999999999, XXH3: sum("f2")},
			{Name: "dirA/12345678901234567890123456789012,odd", Size: 7, XXH3: sum("f3")},
		},
	}
}

func render(t testing.TB, vars Vars, d *Data) string {
	var buf bytes.Buffer
	rtest.OK(t, Render(&buf, Template, vars, d))
	return buf.String()
}

func TestRoundTrip(t *testing.T) {
	d := testData(t)
	script := render(t, testVars(), d)

	got, err := Parse(strings.NewReader(script))
	rtest.OK(t, err)

	want := *d
	want.AppVersion = "1.2.3"
	want.FormatVersion = FormatVersion
	want.KeyID = "0123456789ABCDEF"
	if diff := cmp.Diff(&want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripMD5(t *testing.T) {
	d := testData(t)
	for i := range d.Files {
		d.Files[i].MD5 = md5sum(t, d.Files[i].Name)
	}

	got, err := Parse(strings.NewReader(render(t, testVars(), d)))
	rtest.OK(t, err)
	if diff := cmp.Diff(d.Files, got.Files); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderLayout(t *testing.T) {
	d := &Data{
		Crypts:   []CryptEntry{{Name: "x.crypt", Size: 42, XXH3: 0xff, MD5: checksum.MD5{0xab}}},
		Archives: []ArchiveEntry{{Name: "dir", Size: 7, XXH3: 1, IsDir: true}},
		Files:    []FileEntry{{Name: `a "b"`, Size: 12345678901, XXH3: 0x0123456789abcdef}},
	}
	script := render(t, testVars(), d)

	for _, want := range []string{
		"# @version: 1.2.3\n",
		"# @data_format_version: 2\n",
		"# @gpg_key_id: 0123456789ABCDEF\n",
		"# @time: 2024-05-06T07:08:09Z\n",
		"backup_input_size=4711\n",
		`backup_output_type="named"` + "\n",
		"crypts=(\n\"          42,00000000000000ff,ab000000000000000000000000000000,x.crypt\"\n)\n",
		"archives=(\n\"           7,0000000000000001,./dir.tar\"\n)\n",
		"files=(\n\" 12345678901,0123456789abcdef,a \\\"b\\\"\"\n)\n",
	} {
		rtest.Assert(t, strings.Contains(script, want), "script does not contain %q", want)
	}
	rtest.Assert(t, !strings.Contains(script, "@@"), "unreplaced placeholder in script")
}

func TestRenderInvalidNames(t *testing.T) {
	for _, name := range []string{"", "new\nline", "cr\r"} {
		d := &Data{Files: []FileEntry{{Name: name}}}
		err := Render(&bytes.Buffer{}, Template, testVars(), d)
		rtest.Assert(t, err != nil, "name %q accepted", name)
	}

	d := &Data{Files: []FileEntry{{Name: "big", Size: 1e12}}}
	err := Render(&bytes.Buffer{}, Template, testVars(), d)
	rtest.Assert(t, err != nil, "oversized size accepted")
}

func TestEscape(t *testing.T) {
	for _, name := range []string{
		"plain",
		`back\slash`,
		`"quoted"`,
		"$HOME and `cmd`",
		`trailing\`,
	} {
		esc, err := escape(name)
		rtest.OK(t, err)
		rtest.Equals(t, name, unescape(esc))
	}
}

const v1Script = `#!/bin/bash
# @version: 0.9.0
# @data_format_version: 1
# @gpg_key_id: 0123456789ABCDEF
crypts=(
"          42,9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08,x.crypt"
)
archives=(
)
files=(
)
`

func TestParseVersion1(t *testing.T) {
	_, err := Parse(strings.NewReader(v1Script))
	rtest.Assert(t, errors.Is(err, ErrUnsupportedVersion), "want ErrUnsupportedVersion, got %v", err)

	p := rtest.WriteFile(t, rtest.TempDir(t), "old.sh", []byte(v1Script))
	d := Load(p)
	rtest.Assert(t, d.Empty(), "version 1 script produced data %v", d)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse(strings.NewReader("#!/bin/bash\necho hello\n"))
	rtest.Assert(t, errors.Is(err, errors.ErrInvalidManifest), "want ErrInvalidManifest, got %v", err)

	script := render(t, testVars(), testData(t))
	broken := strings.Replace(script, "a.bin.crypt\"", "a.bin.crypt", 1)
	rtest.Assert(t, broken != script, "crypt line not found")
	_, err = Parse(strings.NewReader(broken))
	rtest.Assert(t, errors.Is(err, errors.ErrInvalidManifest), "want ErrInvalidManifest, got %v", err)
}

func TestParseCryptWithoutMD5(t *testing.T) {
	script := render(t, testVars(), &Data{})
	script = strings.Replace(script, "crypts=(\n", "crypts=(\n\"          42,00000000000000ff,x.crypt\"\n", 1)

	_, err := Parse(strings.NewReader(script))
	rtest.Assert(t, errors.Is(err, errors.ErrInvalidManifest), "want ErrInvalidManifest, got %v", err)
}

func TestParseIgnoresShortLines(t *testing.T) {
	script := render(t, testVars(), &Data{})
	script = strings.Replace(script, "archives=(\n", "archives=(\n\"\"\n   # comment\n", 1)

	d, err := Parse(strings.NewReader(script))
	rtest.OK(t, err)
	rtest.Assert(t, d.Empty(), "unexpected entries %v", d)
}

func TestParseBOM(t *testing.T) {
	script := "\xef\xbb\xbf" + render(t, testVars(), testData(t))
	p := rtest.WriteFile(t, rtest.TempDir(t), "bom.sh", []byte(script))

	d, err := ParseFile(p)
	rtest.OK(t, err)
	rtest.Equals(t, "1.2.3", d.AppVersion)
	rtest.Equals(t, 2, len(d.Crypts))
}

func TestLoadMissing(t *testing.T) {
	d := Load(filepath.Join(rtest.TempDir(t), "missing.sh"))
	rtest.Assert(t, d != nil && d.Empty(), "expected empty data, got %v", d)
}

func TestWrite(t *testing.T) {
	dir := rtest.TempDir(t)
	p := filepath.Join(dir, "photos.sh")
	rtest.WriteFile(t, dir, "photos.sh", []byte("previous"))

	d := testData(t)
	rtest.OK(t, Write(p, testVars(), d))

	fi, err := os.Stat(p)
	rtest.OK(t, err)
	rtest.Assert(t, fi.Mode().Perm()&0100 != 0, "script not executable: %v", fi.Mode())

	got := Load(p)
	rtest.Equals(t, d.Archives, got.Archives)

	if bash, err := exec.LookPath("bash"); err == nil {
		out, err := exec.Command(bash, "-n", p).CombinedOutput()
		rtest.Assert(t, err == nil, "bash syntax check failed: %v\n%s", err, out)
	}
}

func TestLookup(t *testing.T) {
	d := testData(t)

	a, ok := d.Archive("dirA")
	rtest.Assert(t, ok, "dirA not found")
	rtest.Assert(t, a.IsDir, "dirA is not a directory")

	_, ok = d.Archive("./dirA.tar")
	rtest.Assert(t, !ok, "wrapped name must not match")

	c, ok := d.Crypt("a.bin.crypt")
	rtest.Assert(t, ok, "a.bin.crypt not found")
	rtest.Equals(t, int64(120), c.Size)

	var empty *Data
	_, ok = empty.Crypt("x")
	rtest.Assert(t, !ok, "nil data returned an entry")
}

// TestDetectCorruptedChecksum changes one character of a recorded file
// checksum and checks that recomputing the checksums of the files finds
// exactly that file.
func TestDetectCorruptedChecksum(t *testing.T) {
	dir := rtest.TempDir(t)
	names := []string{"plain.txt", "with space.txt", "[brackets]/x.bin", "(parens) and [b]/y z.dat"}

	d := &Data{}
	for i, name := range names {
		p := rtest.WriteFile(t, dir, name, rtest.Random(i, 100+i))
		s, err := checksum.File(p, false)
		rtest.OK(t, err)
		d.Files = append(d.Files, FileEntry{Name: name, Size: s.Size, XXH3: s.XXH3})
	}

	for target, name := range names {
		script := render(t, testVars(), d)

		// flip the first hex digit of the checksum in the line of name
		lines := strings.Split(script, "\n")
		found := false
		for i, l := range lines {
			if strings.HasSuffix(l, ","+name+`"`) {
				b := []byte(l)
				if b[offXXH3] == '0' {
					b[offXXH3] = '1'
				} else {
					b[offXXH3] = '0'
				}
				lines[i] = string(b)
				found = true
			}
		}
		rtest.Assert(t, found, "line for %q not found", name)

		got, err := Parse(strings.NewReader(strings.Join(lines, "\n")))
		rtest.OK(t, err)

		var mismatches []string
		for _, f := range got.Files {
			s, err := checksum.File(filepath.Join(dir, filepath.FromSlash(f.Name)), false)
			rtest.OK(t, err)
			if s.XXH3 != f.XXH3 || s.Size != f.Size {
				mismatches = append(mismatches, f.Name)
			}
		}
		rtest.Equals(t, []string{names[target]}, mismatches)
	}
}
