// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package credentials

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig matches every error that makes the credential file unusable:
	// a missing file, a parse failure or a validation failure.
	ErrConfig = errors.New("credentials: unusable configuration")

	// ErrNotFound is returned when the credential file does not exist
	ErrNotFound = errors.New("credentials: file not found")

	// ErrUserExists is returned when adding a username that is already present
	ErrUserExists = errors.New("credentials: username already exists")
)

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found, please create a valid credentials file", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == ErrConfig
}

// FormatError reports a file that could not be parsed as YAML of the
// expected shape.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("error in YAML format of %q: %v", e.Path, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrConfig }

// FieldError names one offending field using its dotted YAML path.
type FieldError struct {
	Field  string
	Reason string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Reason
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid credentials config: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrConfig }

// IOError reports a failure to persist the credential file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("error saving config file %q (%s): %v", e.Path, e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
