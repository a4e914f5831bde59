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

package api

import (
	"errors"
	"log"

	"github.com/botobag/petgram/domain"

	"github.com/graphql-go/graphql/gqlerrors"
)

// Error is returned from resolvers. Its message is safe to show to API clients and it adds the
// kind of failure to the "extensions" of the GraphQL error:
//
//	{
//	  "message": "you must be logged in to perform this action",
//	  "path": ["favs"],
//	  "extensions": { "code": "UNAUTHENTICATED" }
//	}
type Error struct {
	// Message presented to clients
	Message string

	// Kind of the failure; never ErrKindOther.
	Kind domain.ErrKind

	// The error reported by the domain layer
	Err error
}

var (
	_ error                   = (*Error)(nil)
	_ gqlerrors.ExtendedError = (*Error)(nil)
)

// Error implements Go's error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Extensions implements gqlerrors.ExtendedError.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": e.Kind.Code(),
	}
}

// presentError turns an error from the domain layer into an *Error. Internal and unclassified
// errors are logged with their full chain and hidden behind a generic message.
func presentError(err error) error {
	if err == nil {
		return nil
	}

	var e *domain.Error
	if !errors.As(err, &e) || e.Kind == domain.ErrKindOther || e.Kind == domain.ErrKindInternal {
		log.Printf("api: %v", err)
		return &Error{
			Message: "internal server error",
			Kind:    domain.ErrKindInternal,
			Err:     err,
		}
	}

	return &Error{
		Message: e.ClientMessage(),
		Kind:    e.Kind,
		Err:     err,
	}
}
