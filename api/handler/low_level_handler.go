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
	"context"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
)

// LLHandler executes prepared GraphQL requests against a schema. It knows nothing about HTTP and is
// the building block of the http.Handler returned by New.
type LLHandler struct {
	// Schema served by this handler
	schema graphql.Schema

	// Middlewares to be applied before executing a Request
	middlewares []RequestMiddleware
}

// LLConfig contains configuration to set up a LLHandler.
type LLConfig struct {
	// Schema to be working on
	Schema graphql.Schema

	// Middlewares to be applied before executing a Request
	Middlewares []RequestMiddleware
}

// NewLLHandler creates a LLHandler from given configuration.
func NewLLHandler(config *LLConfig) *LLHandler {
	return &LLHandler{
		schema:      config.Schema,
		middlewares: config.Middlewares,
	}
}

// Schema returns handler.schema.
func (handler *LLHandler) Schema() *graphql.Schema {
	return &handler.schema
}

// Request contains parameters required by Serve.
type Request struct {
	Ctx context.Context

	// HTTPRequest is the request that carried the query. It is nil for requests that are not served
	// over HTTP.
	HTTPRequest *http.Request

	// Document is a parsed and validated query.
	Document      *ast.Document
	OperationName string
	Variables     map[string]interface{}
}

// RequestMiddleware applies changes on Request before its operation gets executed. It can be used
// to supply app-specific values (like the identity of the caller) in Request.Ctx.
type RequestMiddleware interface {
	// Apply modifies request. next specifies the next action to do after applying the middleware.
	Apply(request *Request, next *RequestMiddlewareNext)
}

// RequestMiddlewareFunc is an adapter to allow the use of ordinary functions as RequestMiddleware.
type RequestMiddlewareFunc func(request *Request, next *RequestMiddlewareNext)

// Apply calls f(request, next).
func (f RequestMiddlewareFunc) Apply(request *Request, next *RequestMiddlewareNext) {
	f(request, next)
}

// RequestMiddlewareNext is provided to a RequestMiddleware to specify the next action to do.
type RequestMiddlewareNext struct {
	middlewares []RequestMiddleware

	// The index of middleware to be applied when Next is called.
	nextIndex int

	// The result after applying middlewares
	result interface{} /* Should be either *Request or *graphql.Result */
}

// Next continues applying the next middleware in the chain.
func (next *RequestMiddlewareNext) Next(request *Request) {
	switch next.result.(type) {
	case *Request:
		panic("calling Next multiple times is not allowed")
	case *graphql.Result:
		panic("cannot call Next after one of NextError or NextResult is called")
	case nil:
		/* Apply next middleware or return */
	default:
		panic(fmt.Errorf("unexpected result type: %T", next.result))
	}

	middlewares := next.middlewares
	if next.nextIndex >= len(middlewares) {
		// All middlewares has been applied.
		next.result = request
		return
	}

	nextMiddleware := middlewares[next.nextIndex]
	next.nextIndex++
	nextMiddleware.Apply(request, next)

	if next.result == nil {
		panic(fmt.Errorf(`"%T" must end with one of Next, NextError or NextResult on return`,
			nextMiddleware))
	}
}

// NextError stops applying rest middlewares in the chain and sends a result that includes the given
// error.
func (next *RequestMiddlewareNext) NextError(err error) {
	next.NextResult(&graphql.Result{
		Errors: gqlerrors.FormatErrors(err),
	})
}

// NextResult stops applying rest middlewares in the chain and sends the result.
func (next *RequestMiddlewareNext) NextResult(result *graphql.Result) {
	switch next.result.(type) {
	case *Request:
		panic("calling NextError or NextResult is not allowed on returning from Next")

	case *graphql.Result:
		panic("calling NextError or NextResult multiple times is not allowed")

	case nil:
		next.result = result

	default:
		panic(fmt.Errorf("unexpected result type: %T", next.result))
	}
}

// Serve applies the middlewares and executes the request. The given request object must not be nil.
func (handler *LLHandler) Serve(request *Request) *graphql.Result {
	if middlewares := handler.middlewares; len(middlewares) > 0 {
		next := RequestMiddlewareNext{
			middlewares: middlewares,
		}
		next.Next(request)

		switch result := next.result.(type) {
		case *Request:
			request = result

		case *graphql.Result:
			return result

		default:
			panic(fmt.Errorf("unexpected result type: %T", next.result))
		}
	}

	return graphql.Execute(graphql.ExecuteParams{
		Schema:        handler.schema,
		AST:           request.Document,
		OperationName: request.OperationName,
		Args:          request.Variables,
		Context:       request.Ctx,
	})
}
