package download

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL     = errors.New("invalid target URL")
	ErrNoFileName     = errors.New("target URL has no file name")
	ErrSizeMismatch   = errors.New("size mismatch")
	ErrChecksumFailed = errors.New("checksum mismatch")
	ErrRunInterrupted = errors.New("run interrupted before target started")
	ErrRangeMismatch  = errors.New("server returned a different byte range")
)

// StatusError is returned when the server answers a body or size request
// with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received %d response to %s %s", e.StatusCode, e.Method, e.URL)
}

// SizeMismatchError is returned when the bytes counted while streaming, or
// the size found on disk afterwards, differ from the expected total.
type SizeMismatchError struct {
	Stage    string // "stream" or "disk"
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s size (%d) does not match expected size (%d)", e.Stage, e.Actual, e.Expected)
}

func (e *SizeMismatchError) Unwrap() error { return ErrSizeMismatch }

// IntegrityError is returned when a size-correct file hashes to an
// unexpected digest. The file is left on disk.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("MD5 mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrChecksumFailed }
