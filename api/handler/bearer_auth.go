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

package handler

import (
	"errors"
	"strings"

	"github.com/botobag/petgram/domain"
)

// Authenticator resolves the identity carried by a session token. *auth.Service implements it.
type Authenticator interface {
	Authenticate(token string) (domain.Identity, error)
}

var errMalformedAuthorization = errors.New("authorization header format must be Bearer {token}")

// BearerAuth returns a RequestMiddleware that reads the "Authorization: Bearer <token>" header of
// the HTTP request and stores a domain.AuthContext in Request.Ctx. A missing header, a malformed
// one or a token that fails verification all result in an anonymous context; resolvers that need
// an identity reject it themselves.
func BearerAuth(authenticator Authenticator) RequestMiddleware {
	return RequestMiddlewareFunc(func(request *Request, next *RequestMiddlewareNext) {
		request.Ctx = domain.WithAuthContext(request.Ctx, authContextOf(authenticator, request))
		next.Next(request)
	})
}

func authContextOf(authenticator Authenticator, request *Request) domain.AuthContext {
	if request.HTTPRequest == nil {
		return domain.Anonymous(nil)
	}

	header := request.HTTPRequest.Header.Get("Authorization")
	if len(header) == 0 {
		return domain.Anonymous(nil)
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return domain.Anonymous(errMalformedAuthorization)
	}

	identity, err := authenticator.Authenticate(parts[1])
	if err != nil {
		return domain.Anonymous(err)
	}
	return domain.Authenticated(identity)
}
