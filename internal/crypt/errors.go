package crypt

import (
	"fmt"
	"strings"

	"github.com/jskov/backup/internal/errors"
)

var (
	// ErrTimeout is returned when the encryption program does not finish
	// its output in time.
	ErrTimeout = errors.New("timeout waiting for encryption program")

	// ErrClosed is returned when using a closed Filter.
	ErrClosed = errors.New("encryption filter already closed")
)

// PipeError is returned when the encryption program or one of its streams
// fails. Diagnostics holds what the program printed to stderr, if anything.
type PipeError struct {
	Program     string
	Op          string
	Err         error
	Diagnostics string
}

func (e *PipeError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Program, e.Op, e.Err)
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		msg += "\n" + d
	}
	return msg
}

func (e *PipeError) Unwrap() error {
	return e.Err
}

// Is makes every PipeError match errors.ErrPipe.
func (e *PipeError) Is(target error) bool {
	return target == errors.ErrPipe
}
