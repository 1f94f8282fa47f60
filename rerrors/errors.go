/*
 * MIT License
 *
 * Copyright (c) 2026 netreactor contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package rerrors implements the closed error taxonomy of the reactor:
// errors from the framework's socket paths carry one of a handful of
// Code values so callers classify failures without string matching.
// Errors from address parsing, config loading and TCP_INFO lookups are
// returned untagged (CodeOf reports CodeNone for them).
package rerrors

import (
	"errors"
	"fmt"
)

// Code tags an error with the category from the error-handling design:
// recoverable I/O, peer-induced close, resource exhaustion, fatal I/O,
// or an invariant violation.
type Code uint8

const (
	// CodeNone marks an error with no taxonomy classification (wrapped
	// stdlib errors that reach the framework from outside).
	CodeNone Code = iota

	// CodeRecoverableIO: would-block, interrupted, transient connect
	// refusal/unreachability/local port exhaustion. Never leaves the
	// component that observed it; drives a retry or is ignored.
	CodeRecoverableIO

	// CodePeerClosed: zero-length read, broken-pipe/reset on write.
	// Converges to Disconnected via handleClose.
	CodePeerClosed

	// CodeResourceExhausted: accept() hit too-many-open-files.
	CodeResourceExhausted

	// CodeFatalIO: bad fd, invalid address family, permission denied
	// on connect. The attempt is abandoned.
	CodeFatalIO

	// CodeInvariantViolation: a thread-affinity or state-machine
	// invariant was violated. The caller is expected to panic.
	CodeInvariantViolation
)

func (c Code) String() string {
	switch c {
	case CodeRecoverableIO:
		return "recoverable-io"
	case CodePeerClosed:
		return "peer-closed"
	case CodeResourceExhausted:
		return "resource-exhausted"
	case CodeFatalIO:
		return "fatal-io"
	case CodeInvariantViolation:
		return "invariant-violation"
	default:
		return "none"
	}
}

// Error is the reactor's error type: a message, a taxonomy Code, and an
// optional wrapped cause.
type Error struct {
	code  Code
	msg   string
	cause error
}

// New builds a tagged Error with no wrapped cause.
func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap tags cause with code, keeping cause reachable through errors.Unwrap.
func Wrap(code Code, cause error, msg string) *Error {
	if cause == nil {
		return New(code, msg)
	}
	return &Error{code: code, msg: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf returns the taxonomy code, or CodeNone if err does not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeNone
}

// Is reports whether err (or something it wraps) carries code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
