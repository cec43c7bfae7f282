package errors

import stderrors "errors"

// Sentinel errors shared by all components. Low-level failures are wrapped
// into one of these as they cross a package boundary, so that the command
// line layer can classify a failed run with Is without knowing which
// component produced it. The sentinels are created with the standard library
// so they carry no stack trace of their own.
var (
	// ErrCapacity is returned when a bounded in-memory container would
	// grow beyond its configured size.
	ErrCapacity = stderrors.New("container size limit exceeded")

	// ErrPipe is returned when the external encryption program fails.
	ErrPipe = stderrors.New("encryption pipe failed")

	// ErrInvalidManifest is returned when a restore script cannot be
	// decoded into manifest data.
	ErrInvalidManifest = stderrors.New("invalid restore manifest")

	// ErrMismatch is returned when recomputed checksums do not match the
	// values recorded in a manifest.
	ErrMismatch = stderrors.New("checksum mismatch")
)
