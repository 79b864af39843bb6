// Package errors provides error handling for snpm.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Marking errors with a class so errors.Is keeps working across wraps
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Classify a cause as a pipeline stage failure
//	return errors.Mark(err, errors.ErrFetch)
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint       = crdb.WithHint
	WithHintf      = crdb.WithHintf
	WithDetail     = crdb.WithDetail
	WithDetailf    = crdb.WithDetailf
	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenDetails = crdb.FlattenDetails
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Publish failure classes. Stage code marks its cause with one of these
// (errors.Mark) so callers classify with errors.Is while the cause chain
// stays intact for logging.
var (
	// ErrInvalidReference indicates the repository URL could not be parsed
	ErrInvalidReference = New("invalid repository reference")

	// ErrInputValidation indicates a required request field is missing or malformed
	ErrInputValidation = New("invalid publish request")

	// ErrFetch indicates the source archive could not be downloaded
	ErrFetch = New("fetch failed")

	// ErrExtract indicates the source archive could not be decompressed
	ErrExtract = New("extract failed")

	// ErrManifest indicates the package manifest is missing or malformed
	ErrManifest = New("manifest unreadable")

	// ErrDependencyInstall indicates dependency installation failed
	ErrDependencyInstall = New("dependency install failed")

	// ErrBuild indicates the package build script failed
	ErrBuild = New("build failed")

	// ErrChecksumMismatch indicates the built artifact does not match the expected digest
	ErrChecksumMismatch = New("checksum mismatch")

	// ErrIO indicates a local filesystem read failed
	ErrIO = New("io failure")

	// ErrTimeout indicates a pipeline run exceeded its deadline
	ErrTimeout = New("operation timed out")
)

// IsClientError reports whether err is caused by the caller's input rather
// than by the server. Transports map these to 400-class responses.
func IsClientError(err error) bool {
	return err != nil && IsAny(err, ErrInvalidReference, ErrInputValidation, ErrChecksumMismatch)
}

// NewInputError creates an input-validation error with a formatted message
func NewInputError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInputValidation)
}
