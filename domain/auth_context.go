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
	"context"
)

// Identity is the authenticated principal carried by a session token.
type Identity struct {
	ID    string
	Email string
}

// AuthContext tells an operation who is calling. It carries either a resolved Identity or an explicit
// anonymous marker; for the latter, the reason why no identity is available (bad signature, expired
// token) is kept as the cause of the error returned by Require.
type AuthContext struct {
	identity *Identity
	reason   error
}

// Authenticated creates an AuthContext for the given identity.
func Authenticated(identity Identity) AuthContext {
	return AuthContext{identity: &identity}
}

// Anonymous creates an AuthContext without identity. reason may be nil when the caller simply
// didn't present credentials.
func Anonymous(reason error) AuthContext {
	return AuthContext{reason: reason}
}

// IsAnonymous returns true if no identity was resolved.
func (a AuthContext) IsAnonymous() bool {
	return a.identity == nil
}

// Identity returns the resolved identity and true, or a zero Identity and false for anonymous
// callers.
func (a AuthContext) Identity() (Identity, bool) {
	if a.identity == nil {
		return Identity{}, false
	}
	return *a.identity, true
}

// Require returns the identity or an ErrKindUnauthenticated error.
func (a AuthContext) Require(op Op) (Identity, error) {
	if a.identity == nil {
		if a.reason != nil {
			return Identity{}, NewError("you must be logged in to perform this action", op, ErrKindUnauthenticated, a.reason)
		}
		return Identity{}, NewError("you must be logged in to perform this action", op, ErrKindUnauthenticated)
	}
	return *a.identity, nil
}

type authContextKey struct{}

// WithAuthContext returns a copy of ctx that carries auth.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthContextFrom returns the AuthContext stored in ctx. A context without one is anonymous.
func AuthContextFrom(ctx context.Context) AuthContext {
	if auth, ok := ctx.Value(authContextKey{}).(AuthContext); ok {
		return auth
	}
	return Anonymous(nil)
}
