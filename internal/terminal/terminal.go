// Package terminal detects terminal capabilities of the standard streams.
package terminal

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	// MoveCursorHome moves cursor to the first column
	MoveCursorHome = "\r"
	// ClearLine clears the current line
	ClearLine = "\x1b[2K"
)

func OutputIsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// Width returns the number of columns of the terminal fd refers to, or zero.
func Width(fd uintptr) int {
	w, _, err := term.GetSize(int(fd))
	if err != nil {
		return 0
	}
	return w
}

// CanUpdateStatus returns true if status lines can be printed, the process
// output is not redirected to a file or pipe.
func CanUpdateStatus(fd uintptr) bool {
	if !term.IsTerminal(int(fd)) {
		return false
	}
	t := os.Getenv("TERM")
	return t != "" && t != "dumb"
}

// ClearCurrentLine removes all characters from the current line and resets the
// cursor position to the first column.
func ClearCurrentLine(wr io.Writer) error {
	_, err := io.WriteString(wr, MoveCursorHome+ClearLine)
	return err
}
