// Copyright 2021 Mongorel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dberrors provides the typed error taxonomy shared by all adapter components.
//
// All validation and translation errors raised before a network command is
// issued are values of *Error with a non-zero code. They are returned
// synchronously, never retried, and never downgraded to defaults.
package dberrors

import (
	"fmt"
	"slices"
)

//go:generate go run golang.org/x/tools/cmd/stringer@v0.19.0 -linecomment -type ErrorCode

// ErrorCode represents an adapter error code.
type ErrorCode int

// Error codes.
const (
	_ ErrorCode = iota

	// ErrorCodeInvalidIdentifier indicates that a primary key value is not a valid object id.
	ErrorCodeInvalidIdentifier // InvalidIdentifier

	// ErrorCodeUnsupportedQuery indicates a predicate the store's comparison model can't express.
	ErrorCodeUnsupportedQuery // UnsupportedQuery

	// ErrorCodeUnserializableReference indicates a foreign model instance in data
	// without automatic referencing enabled.
	ErrorCodeUnserializableReference // UnserializableReference

	// ErrorCodeRestrictedOperation indicates a bulk operation that would bypass
	// per-instance lifecycle hooks.
	ErrorCodeRestrictedOperation // RestrictedOperation

	// ErrorCodeMissingPayload indicates that a payload id has no data in the
	// large-object store.
	ErrorCodeMissingPayload // MissingPayload
)

// Error represents an adapter error returned to callers.
type Error struct {
	// Wrapped cause; may be nil.
	err error

	msg  string
	code ErrorCode
}

// New creates a new adapter error.
//
// Code must not be 0.
func New(code ErrorCode, format string, a ...any) *Error {
	if code == 0 {
		panic("dberrors.New: code must not be 0")
	}

	return &Error{
		code: code,
		msg:  fmt.Sprintf(format, a...),
	}
}

// Wrap creates a new adapter error wrapping err.
//
// Code must not be 0. Err may be nil.
func Wrap(code ErrorCode, err error, format string, a ...any) *Error {
	e := New(code, format, a...)
	e.err = err

	return e
}

// Code returns the error code.
func (err *Error) Code() ErrorCode {
	return err.code
}

// Error implements error interface.
func (err *Error) Error() string {
	if err.err == nil {
		return fmt.Sprintf("%s: %s", err.code, err.msg)
	}

	return fmt.Sprintf("%s: %s: %v", err.code, err.msg, err.err)
}

// Unwrap returns the wrapped cause, if any.
func (err *Error) Unwrap() error {
	return err.err
}

// ErrorCodeIs returns true if err is *Error with one of the given error codes.
//
// At least one error code must be given.
func ErrorCodeIs(err error, code ErrorCode, codes ...ErrorCode) bool {
	e, ok := err.(*Error) //nolint:errorlint // do not inspect error chain
	if !ok {
		return false
	}

	return e.code == code || slices.Contains(codes, e.code)
}

// check interfaces
var (
	_ error = (*Error)(nil)
)
