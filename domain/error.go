/**
 * Copyright (c) 2019, The Artemis Authors.
 *
 * Permission to use, copy, modify, and/or distribute this software for any
 * purpose with or without fee is hereby granted, provided that the above
 * copyright notice and this permission notice appear in all copies.
 *
 * THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
 * WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
 * MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR
 * ANY SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
 * WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
 * ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF
 * OR IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.
 */

package domain

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"strings"
)

// Op describes an operation, usually as the package and method, such as "auth.Service.Login".
type Op string

// ErrKind defines the kind of error this is.
type ErrKind uint8

// Enumeration of Kind
const (
	ErrKindOther              ErrKind = iota // Unclassified error. This value is not printed in the error message.
	ErrKindUnauthenticated                   // No, invalid or expired token for an operation that requires identity.
	ErrKindAlreadyExists                     // Signup with an email that has been registered.
	ErrKindNotFound                          // Unknown photo id or unknown email on login.
	ErrKindInvalidCredentials                // Password mismatch.
	ErrKindInternal                          // Failure in a backend (store, hashing, signing).
	ErrKindInvalidInput                      // Argument the operation can't accept, such as an overlong password.
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindOther:
		return "other error"
	case ErrKindUnauthenticated:
		return "unauthenticated"
	case ErrKindAlreadyExists:
		return "already exists"
	case ErrKindNotFound:
		return "not found"
	case ErrKindInvalidCredentials:
		return "invalid credentials"
	case ErrKindInternal:
		return "internal error"
	case ErrKindInvalidInput:
		return "invalid input"
	}
	return "unknown error kind"
}

// Code returns the machine-readable code that is presented to API clients in the "extensions" of a
// GraphQL error.
func (k ErrKind) Code() string {
	switch k {
	case ErrKindUnauthenticated:
		return "UNAUTHENTICATED"
	case ErrKindAlreadyExists:
		return "ALREADY_EXISTS"
	case ErrKindNotFound:
		return "NOT_FOUND"
	case ErrKindInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case ErrKindInvalidInput:
		return "BAD_USER_INPUT"
	}
	return "INTERNAL"
}

// An Error describes a failure of a store, auth or API operation.
//
// An Error can wrap an underlying error. Kind and Message that are
// not given to NewError are pulled from the wrapped Error so that the class of a failure survives
// being passed up through the layers.
type Error struct {
	// Message is the human-readable description that is safe to present to API clients.
	Message string

	// The underlying error that triggered this one
	Err error

	// Op is the operation being performed, usually the name of the method being invoked.
	Op Op

	// Kind is the class of error
	Kind ErrKind
}

var _ error = (*Error)(nil)

// NewError builds an error value from arguments. Arguments may be an Op, an ErrKind or an error in
// any order.
func NewError(message string, args ...interface{}) error {
	e := &Error{
		Message: message,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case error:
			e.Err = arg

		case Op:
			e.Op = arg

		case ErrKind:
			e.Kind = arg

		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("NewError: bad call from %s:%d: %v", file, line, args)
			return fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}

	if prev, ok := e.Err.(*Error); ok {
		if e.Kind == ErrKindOther {
			e.Kind = prev.Kind
		}
		if len(e.Message) == 0 {
			e.Message = prev.Message
		}
	}

	return e
}

// Error implements Go's error interface. The message includes the chain of operations and the
// underlying error which makes it helpful for logging; use ClientMessage for presenting to users.
func (e *Error) Error() string {
	var b strings.Builder
	e.printError(&b, nil)
	return b.String()
}

func (e *Error) printError(b *strings.Builder, nextErr *Error) {
	initialLen := b.Len()

	pad := func(str string) {
		if b.Len() == initialLen {
			return
		}
		b.WriteString(str)
	}

	if len(e.Op) > 0 {
		b.WriteString(string(e.Op))
	}

	// Don't repeat the message pulled from the wrapped error.
	if len(e.Message) > 0 && (nextErr == nil || nextErr.Message != e.Message) {
		pad(": ")
		b.WriteString(e.Message)
	}

	if e.Kind != ErrKindOther {
		if nextErr == nil || nextErr.Kind != e.Kind {
			pad(": ")
			b.WriteString(e.Kind.String())
		}
	}

	if e.Err != nil {
		if prev, ok := e.Err.(*Error); ok {
			pad(":\n  ")
			prev.printError(b, e)
		} else {
			pad(": ")
			b.WriteString(e.Err.Error())
		}
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// ClientMessage returns the message that can be shown to an API client. Internal errors never
// reveal their cause.
func (e *Error) ClientMessage() string {
	if e.Kind == ErrKindInternal || len(e.Message) == 0 {
		return "internal server error"
	}
	return e.Message
}

// KindOf returns the kind of err. It returns ErrKindOther for errors that are not (and do not wrap)
// an *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindOther
}

// IsKind returns true if err is an Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	return err != nil && KindOf(err) == kind
}
