// SPDX-License-Identifier: MIT

// Package errclass defines the closed error taxonomy used across the
// pipeline and the single classification points for external boundaries
// (subprocess output, HTTP status codes, Go error chains).
package errclass

import (
	"fmt"
)

// Type is the closed set of failure categories. The string values are
// stable: they appear verbatim in manifests and failure records.
type Type string

const (
	Network         Type = "NETWORK"
	Timeout         Type = "TIMEOUT"
	RateLimit       Type = "RATE_LIMIT"
	Auth            Type = "AUTH"
	Content         Type = "CONTENT"
	FileIO          Type = "FILE_IO"
	Parse           Type = "PARSE"
	InvalidInput    Type = "INVALID_INPUT"
	Cancelled       Type = "CANCELLED"
	ExternalService Type = "EXTERNAL_SERVICE"
	Unknown         Type = "UNKNOWN"
)

// Valid reports whether t is a member of the closed set.
func (t Type) Valid() bool {
	switch t {
	case Network, Timeout, RateLimit, Auth, Content, FileIO, Parse,
		InvalidInput, Cancelled, ExternalService, Unknown:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// Retryable reports whether a resumed video that failed with this type
// may be re-attempted automatically. AUTH, CONTENT, INVALID_INPUT and
// PARSE stay failed until force-rerun.
func (t Type) Retryable() bool {
	switch t {
	case Network, Timeout, RateLimit, ExternalService:
		return true
	}
	return false
}

// TypeFromString maps a stored string back onto the closed set.
// Unrecognized values collapse to Unknown so old or hand-edited
// manifests never produce an out-of-set type.
func TypeFromString(s string) Type {
	t := Type(s)
	if t.Valid() {
		return t
	}
	return Unknown
}

// Error is a classified failure. Stage is the pipeline stage name the
// failure occurred in ("detect", "translate", ...); it may be empty for
// failures outside stage processing.
type Error struct {
	Type   Type
	Stage  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Type, e.Stage, msg)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a classified error without a wrapped cause.
func New(t Type, stage, reason string) *Error {
	return &Error{Type: t, Stage: stage, Reason: reason}
}

// Newf constructs a classified error with a formatted reason.
func Newf(t Type, stage, format string, args ...any) *Error {
	return &Error{Type: t, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil err yields nil. An inner
// classification wins over t, as do cancellation and deadline errors:
// a cancelled operation must never surface as NETWORK.
func Wrap(t Type, stage string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Type: refine(t, err), Stage: stage, Reason: err.Error(), Err: err}
}
