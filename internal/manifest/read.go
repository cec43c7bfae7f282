package manifest

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/jskov/backup/internal/archive"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/textfile"
)

const (
	headerVersion       = "# @version: "
	headerFormatVersion = "# @data_format_version: "
	headerKeyID         = "# @gpg_key_id: "
)

// Fixed offsets of an element line.
const (
	offSize    = 2
	offXXH3    = offSize + sizeWidth + 1
	offMD5     = offXXH3 + checksum.XXH3Len + 1
	offMD5Name = offMD5 + checksum.MD5Len + 1

	// minLineLen is the length of a line without MD5 and a one byte name.
	minLineLen = offMD5 + 2
)

type section int

const (
	sectionNone section = iota
	sectionCrypts
	sectionArchives
	sectionFiles
)

var sectionStart = map[string]section{
	"crypts=(":   sectionCrypts,
	"archives=(": sectionArchives,
	"files=(":    sectionFiles,
}

// raw holds the undecoded content of a restore script.
type raw struct {
	appVersion    string
	formatVersion string
	keyID         string
	lines         map[section][]string
}

func scan(r io.Reader) (*raw, error) {
	res := &raw{lines: make(map[section][]string)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	cur := sectionNone
	for sc.Scan() {
		l := strings.TrimSpace(sc.Text())

		if cur == sectionNone {
			switch {
			case strings.HasPrefix(l, headerVersion):
				res.appVersion = strings.TrimSpace(l[len(headerVersion):])
			case strings.HasPrefix(l, headerFormatVersion):
				res.formatVersion = strings.TrimSpace(l[len(headerFormatVersion):])
			case strings.HasPrefix(l, headerKeyID):
				res.keyID = strings.TrimSpace(l[len(headerKeyID):])
			default:
				if s, ok := sectionStart[l]; ok {
					cur = s
				}
			}
			continue
		}

		if l == ")" {
			if cur == sectionFiles {
				break
			}
			cur = sectionNone
			continue
		}
		if len(l) >= minLineLen {
			res.lines[cur] = append(res.lines[cur], l)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return res, nil
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte("\\\"$`", s[i+1]) >= 0 {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// element is a decoded line.
type element struct {
	size   int64
	xxh3   checksum.XXH3
	md5    checksum.MD5
	hasMD5 bool
	name   string
}

// hasMD5Shape reports whether l carries an MD5 digest after the XXH3 hash.
func hasMD5Shape(l string) bool {
	return len(l) > offMD5Name+1 &&
		l[offMD5Name-1] == ',' &&
		checksum.IsHex(l[offMD5:offMD5+checksum.MD5Len])
}

func parseLine(l string, withMD5 bool) (element, error) {
	invalid := func(msg string) error {
		return errors.Wrapf(errors.ErrInvalidManifest, "%s in line %q", msg, l)
	}

	if len(l) < minLineLen || l[0] != '"' || l[len(l)-1] != '"' || l[1] != ' ' ||
		l[offXXH3-1] != ',' || l[offMD5-1] != ',' {
		return element{}, invalid("malformed element")
	}

	var e element
	var err error
	e.size, err = strconv.ParseInt(strings.TrimLeft(l[offSize:offXXH3-1], " "), 10, 64)
	if err != nil || e.size < 0 {
		return element{}, invalid("invalid size")
	}
	e.xxh3, err = checksum.ParseXXH3(l[offXXH3 : offXXH3+checksum.XXH3Len])
	if err != nil {
		return element{}, invalid("invalid xxh3")
	}

	name := l[offMD5 : len(l)-1]
	if withMD5 {
		if !hasMD5Shape(l) {
			return element{}, invalid("missing md5")
		}
		e.md5, err = checksum.ParseMD5(l[offMD5 : offMD5+checksum.MD5Len])
		if err != nil {
			return element{}, invalid("invalid md5")
		}
		e.hasMD5 = true
		name = l[offMD5Name : len(l)-1]
	}

	e.name = unescape(name)
	if e.name == "" {
		return element{}, invalid("empty name")
	}
	return e, nil
}

func parseLines(lines []string, withMD5 bool) ([]element, error) {
	res := make([]element, 0, len(lines))
	for _, l := range lines {
		e, err := parseLine(l, withMD5)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

// decode converts the scanned lines of a version 2 script.
func (r *raw) decode() (*Data, error) {
	d := &Data{AppVersion: r.appVersion, FormatVersion: FormatVersion}

	if r.keyID != "" {
		id, err := checksum.ParseKeyID(r.keyID)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidManifest, "key id %q", r.keyID)
		}
		d.KeyID = id
	}

	crypts, err := parseLines(r.lines[sectionCrypts], true)
	if err != nil {
		return nil, err
	}
	for _, e := range crypts {
		d.Crypts = append(d.Crypts, CryptEntry{Name: e.name, Size: e.size, XXH3: e.xxh3, MD5: e.md5})
	}

	archives, err := parseLines(r.lines[sectionArchives], false)
	if err != nil {
		return nil, err
	}
	for _, e := range archives {
		d.Archives = append(d.Archives, ArchiveEntry{
			Name:  archive.Unwrap(e.name),
			Size:  e.size,
			XXH3:  e.xxh3,
			IsDir: archive.IsWrapped(e.name),
		})
	}

	fileLines := r.lines[sectionFiles]
	withMD5 := len(fileLines) > 0
	for _, l := range fileLines {
		if !hasMD5Shape(l) {
			withMD5 = false
			break
		}
	}
	files, err := parseLines(fileLines, withMD5)
	if err != nil {
		return nil, err
	}
	for _, e := range files {
		d.Files = append(d.Files, FileEntry{Name: e.name, Size: e.size, XXH3: e.xxh3, MD5: e.md5})
	}

	return d, nil
}

// Parse decodes the restore script read from r. Scripts without a data
// format header are invalid, those of another format version fail with
// ErrUnsupportedVersion. No partial data is ever returned.
func Parse(r io.Reader) (*Data, error) {
	res, err := scan(r)
	if err != nil {
		return nil, err
	}

	if res.formatVersion == "" {
		return nil, errors.Wrap(errors.ErrInvalidManifest, "no data format version")
	}
	v, err := strconv.Atoi(res.formatVersion)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidManifest, "data format version %q", res.formatVersion)
	}
	if v != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}

	return res.decode()
}

// ParseFile decodes the restore script at path.
func ParseFile(path string) (*Data, error) {
	f, err := textfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	d, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "restore script %v", path)
	}
	return d, nil
}

// Load reads the restore script at path as the state of a previous backup.
// Any failure results in empty data, the backup then starts from scratch.
func Load(path string) *Data {
	d, err := ParseFile(path)
	if err != nil {
		debug.Log("ignoring prior manifest %v: %v", path, err)
		return &Data{}
	}
	debug.Log("loaded %v: %d crypts, %d archives, %d files", path, len(d.Crypts), len(d.Archives), len(d.Files))
	return d
}
