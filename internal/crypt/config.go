package crypt

import (
	"time"

	"github.com/jskov/backup/internal/checksum"
)

// Config describes the external encryption program.
type Config struct {
	// Program is the executable, looked up in $PATH if it contains no
	// path separator.
	Program string
	Args    []string
	// Env is appended to the environment of the current process.
	Env []string

	// OutputTimeout bounds the wait for the encrypted output to be drained
	// after the input was closed. Exceeding it is fatal.
	OutputTimeout time.Duration
	// DiagnosticsTimeout bounds the wait for the diagnostics stream.
	DiagnosticsTimeout time.Duration
}

// Default timeouts.
const (
	DefaultOutputTimeout      = 5 * time.Minute
	DefaultDiagnosticsTimeout = 10 * time.Second
)

// GPGArgs returns the arguments that make gpg encrypt stdin to stdout for
// the given recipient without any interaction.
func GPGArgs(keyID checksum.KeyID) []string {
	return []string{
		"--batch",
		"--no-tty",
		"--recipient", keyID.String(),
		"--cipher-algo", "AES256",
		"--compress-algo", "none",
		"--encrypt",
	}
}

// NewGPGConfig returns the configuration for encrypting with program, which
// is normally "gpg", to keyID.
func NewGPGConfig(program string, keyID checksum.KeyID) Config {
	if program == "" {
		program = "gpg"
	}
	return Config{
		Program:            program,
		Args:               GPGArgs(keyID),
		OutputTimeout:      DefaultOutputTimeout,
		DiagnosticsTimeout: DefaultDiagnosticsTimeout,
	}
}

// ApplyDefaults fills unset timeouts.
func (cfg *Config) ApplyDefaults() {
	if cfg.OutputTimeout <= 0 {
		cfg.OutputTimeout = DefaultOutputTimeout
	}
	if cfg.DiagnosticsTimeout <= 0 {
		cfg.DiagnosticsTimeout = DefaultDiagnosticsTimeout
	}
}
