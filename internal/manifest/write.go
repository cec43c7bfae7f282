package manifest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jskov/backup/internal/archive"
	"github.com/jskov/backup/internal/checksum"
	"github.com/jskov/backup/internal/debug"
	"github.com/jskov/backup/internal/errors"
	"github.com/jskov/backup/internal/fs"
)

const (
	markerCrypts   = "@@CRYPTS@@"
	markerArchives = "@@ARCHIVES@@"
	markerFiles    = "@@FILES@@"
)

// sizeWidth is the width sizes are padded to. The fixed width allows the
// reader to split lines at fixed offsets.
const sizeWidth = 11

var shellEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// escape quotes name for use inside a double quoted bash string.
func escape(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	if strings.ContainsAny(name, "\n\r\x00") {
		return "", errors.Errorf("name %q cannot be represented in the restore script", name)
	}
	return shellEscaper.Replace(name), nil
}

// line renders one array element.
func line(size int64, x checksum.XXH3, md5 *checksum.MD5, name string) (string, error) {
	if size < 0 {
		return "", errors.Errorf("negative size for %q", name)
	}
	s := strconv.FormatInt(size, 10)
	if len(s) > sizeWidth {
		return "", errors.Errorf("size of %q does not fit into %d digits", name, sizeWidth)
	}
	esc, err := escape(name)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\" %*s,%v,", sizeWidth, s, x)
	if md5 != nil {
		fmt.Fprintf(&sb, "%v,", *md5)
	}
	sb.WriteString(esc)
	sb.WriteByte('"')
	return sb.String(), nil
}

func cryptLines(entries []CryptEntry) ([]string, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		l, err := line(e.Size, e.XXH3, &e.MD5, e.Name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func archiveLines(entries []ArchiveEntry) ([]string, error) {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name = archive.Wrap(name)
		}
		l, err := line(e.Size, e.XXH3, nil, name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// fileLines renders the files section. MD5 digests are written for all files
// or for none, depending on whether any file has one.
func fileLines(entries []FileEntry) ([]string, error) {
	withMD5 := false
	for _, e := range entries {
		if !e.MD5.IsZero() {
			withMD5 = true
			break
		}
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var md5 *checksum.MD5
		if withMD5 {
			md5 = &e.MD5
		}
		l, err := line(e.Size, e.XXH3, md5, e.Name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}

// Render writes the template tmpl with all placeholders replaced. The lines
// holding the section markers are replaced by one line per entry, all other
// lines are copied.
func Render(w io.Writer, tmpl string, vars Vars, d *Data) error {
	name, err := escape(vars.BackupName)
	if err != nil {
		return errors.Wrap(err, "backup name")
	}

	sections := make(map[string][]string, 3)
	if sections[markerCrypts], err = cryptLines(d.Crypts); err != nil {
		return err
	}
	if sections[markerArchives], err = archiveLines(d.Archives); err != nil {
		return err
	}
	if sections[markerFiles], err = fileLines(d.Files); err != nil {
		return err
	}

	r := strings.NewReplacer(
		"@@VERSION@@", vars.Version,
		"@@DATA_FORMAT_VERSION@@", strconv.Itoa(FormatVersion),
		"@@GPG_KEY_ID@@", vars.KeyID.String(),
		"@@TIME@@", vars.Time.UTC().Format(time.RFC3339),
		"@@BACKUP_NAME@@", name,
		"@@BACKUP_INPUT_SIZE@@", strconv.FormatInt(vars.TotalSize, 10),
		"@@BACKUP_OUTPUT_TYPE@@", vars.OutputType,
	)

	bw := bufio.NewWriter(w)
	sc := bufio.NewScanner(strings.NewReader(tmpl))
	for sc.Scan() {
		l := sc.Text()
		if lines, ok := sections[strings.TrimSpace(l)]; ok {
			for _, el := range lines {
				_, _ = bw.WriteString(el)
				_ = bw.WriteByte('\n')
			}
			continue
		}
		_, _ = bw.WriteString(r.Replace(l))
		_ = bw.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "template")
	}

	return errors.WithStack(bw.Flush())
}

// Write renders the manifest into the restore script at path. An existing
// script is replaced atomically, so a failed write leaves the previous one
// intact.
func Write(path string, vars Vars, d *Data) error {
	debug.Log("writing %v: %d crypts, %d archives, %d files", path, len(d.Crypts), len(d.Archives), len(d.Files))
	err := fs.ReplaceFile(path, fs.Modes.Script, func(w io.Writer) error {
		return Render(w, Template, vars, d)
	})
	return errors.Wrapf(err, "write restore script %v", path)
}
