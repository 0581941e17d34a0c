package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every *InvalidInputError.
	ErrInvalidInput = errors.New("invalid input image")
	// ErrIO matches every *IOError.
	ErrIO = errors.New("image io failure")
)

// InvalidInputError reports a caller contract violation: an empty image,
// a wrong number of dimensions or an inconsistent pixel buffer.
type InvalidInputError struct {
	Op     string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: invalid input image: %s", e.Op, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IOError reports an image source that could not be read or decoded.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot decode image %q", e.Path)
	}
	return fmt.Sprintf("cannot decode image %q: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

func invalid(op, format string, args ...interface{}) error {
	return &InvalidInputError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
