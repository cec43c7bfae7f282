package terminal

import (
	"bytes"
	"os"
	"testing"

	rtest "github.com/jskov/backup/internal/test"
)

func TestClearCurrentLine(t *testing.T) {
	var buf bytes.Buffer
	rtest.OK(t, ClearCurrentLine(&buf))
	rtest.Equals(t, "\r\x1b[2K", buf.String())
}

func TestNotATerminal(t *testing.T) {
	f, err := os.Create(rtest.TempDir(t) + "/out")
	rtest.OK(t, err)
	defer func() { rtest.OK(t, f.Close()) }()

	rtest.Assert(t, !OutputIsTerminal(f.Fd()), "regular file detected as terminal")
	rtest.Assert(t, !CanUpdateStatus(f.Fd()), "status lines enabled for regular file")
	rtest.Equals(t, 0, Width(f.Fd()))
}
