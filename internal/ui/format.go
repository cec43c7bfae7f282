// Package ui formats sizes, durations and names for terminal output.
package ui

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/width"

	"github.com/jskov/backup/internal/errors"
)

func FormatBytes(c uint64) string {
	b := float64(c)
	switch {
	case c >= 1<<40:
		return fmt.Sprintf("%.3f TiB", b/(1<<40))
	case c >= 1<<30:
		return fmt.Sprintf("%.3f GiB", b/(1<<30))
	case c >= 1<<20:
		return fmt.Sprintf("%.3f MiB", b/(1<<20))
	case c >= 1<<10:
		return fmt.Sprintf("%.3f KiB", b/(1<<10))
	default:
		return fmt.Sprintf("%d B", c)
	}
}

// FormatSize formats a signed size, negative sizes are shown as zero.
func FormatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return FormatBytes(uint64(n))
}

// FormatDuration formats d as MM:SS, or HH:MM:SS if d is at least an hour.
func FormatDuration(d time.Duration) string {
	sec := uint64(d / time.Second)
	hours := sec / 3600
	sec -= hours * 3600
	mins := sec / 60
	sec -= mins * 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, mins, sec)
	}
	return fmt.Sprintf("%d:%02d", mins, sec)
}

var units = map[byte]uint64{
	'b': 1,
	'k': 1 << 10,
	'm': 1 << 20,
	'g': 1 << 30,
	't': 1 << 40,
}

// ParseBytes parses a size in bytes from s. It understands the suffixes
// B, K, M, G and T for powers of 1024, optionally followed by "iB".
func ParseBytes(s string) (int64, error) {
	if s == "" {
		return 0, errors.New("expected size, got empty string")
	}

	num := strings.TrimSuffix(strings.ToLower(s), "ib")
	unit := uint64(1)
	if l := len(num); l > 0 {
		if u, ok := units[num[l-1]]; ok {
			unit = u
			num = num[:l-1]
		}
	}

	value, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "size %q", s)
	}
	if value < 0 {
		return 0, errors.Errorf("size %q is negative", s)
	}

	hi, lo := bits.Mul64(uint64(value), unit)
	if hi != 0 || int64(lo) < 0 {
		return 0, errors.Wrapf(strconv.ErrRange, "size %q", s)
	}

	return int64(lo), nil
}

// DisplayWidth returns the number of terminal cells needed to display s
func DisplayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		case width.EastAsianNarrow, width.EastAsianHalfwidth, width.EastAsianAmbiguous, width.Neutral:
			w++
		}
	}
	return w
}

// Quote lines with funny characters in them, meaning control chars, newlines,
// tabs, anything else non-printable and invalid UTF-8.
//
// File names in a backup may contain anything, this keeps them from messing
// up the terminal.
func Quote(line string) string {
	for _, r := range line {
		// The replacement character usually means the input is not UTF-8.
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return strconv.Quote(line)
		}
	}
	return line
}

// Truncate s to fit in width (number of terminal cells) w.
// If w is negative, returns the empty string.
func Truncate(s string, w int) string {
	if len(s) < w {
		// no rune takes more cells than bytes
		return s
	}

	for i := 0; i < len(s); {
		size := 1
		w--

		if s[i] > unicode.MaxASCII {
			var wide bool
			if wide, size = wideRune(s[i:]); wide {
				w--
			}
		}

		if w < 0 {
			return s[:i]
		}
		i += size
	}

	return s
}

// wideRune guesses whether the first rune in s occupies two terminal
// cells. Ambiguous runes are treated as wide.
func wideRune(s string) (wide bool, size int) {
	prop, size := width.LookupString(s)
	kind := prop.Kind()
	return kind != width.Neutral && kind != width.EastAsianNarrow, size
}

// Name returns a quoted name truncated to w cells. A w of zero or less
// means unlimited.
func Name(name string, w int) string {
	name = Quote(name)
	if w <= 0 {
		return name
	}
	return Truncate(name, w)
}
