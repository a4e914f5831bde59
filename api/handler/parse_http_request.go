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
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseHTTPRequestOptions provides settings to ParseHTTPRequest.
type ParseHTTPRequestOptions struct {
	// Maximum size in bytes of a request body
	MaxBodySize uint
}

// HTTPRequest is a GraphQL request read from HTTP.
type HTTPRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// HTTPRequestParseError is returned by ParseHTTPRequest when the request can't be read. Status is
// the HTTP status to reply with.
type HTTPRequestParseError struct {
	Request *http.Request
	Status  int
	Err     error
}

// Error implements Go's error interface.
func (err *HTTPRequestParseError) Error() string {
	return err.Err.Error()
}

// Unwrap returns the underlying error.
func (err *HTTPRequestParseError) Unwrap() error {
	return err.Err
}

// allowedMethods lists the methods accepted by ParseHTTPRequest.
const allowedMethods = "GET, POST"

var errRequestBodyTooLarge = errors.New("request body is too large")

// bodyDecoders maps the media types accepted in POST bodies to their decoders. A request without
// Content-Type is read as JSON.
var bodyDecoders = map[string]func(body []byte) (*HTTPRequest, error){
	"":                                  decodeJSONBody,
	"application/json":                  decodeJSONBody,
	"application/graphql":               decodeGraphQLBody,
	"application/x-www-form-urlencoded": decodeFormBody,
}

func decodeJSONBody(body []byte) (*HTTPRequest, error) {
	var req HTTPRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func decodeGraphQLBody(body []byte) (*HTTPRequest, error) {
	return &HTTPRequest{
		Query: string(body),
	}, nil
}

func decodeFormBody(body []byte) (*HTTPRequest, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}
	return requestFromValues(values)
}

// requestFromValues reads query, operationName and variables from URL-encoded values. Each may be
// given at most once.
func requestFromValues(values url.Values) (*HTTPRequest, error) {
	one := func(key string) (string, error) {
		if v := values[key]; len(v) > 1 {
			return "", fmt.Errorf(`multiple values are provided to "%s", but only one expected`, key)
		}
		return values.Get(key), nil
	}

	var (
		req HTTPRequest
		err error
	)
	if req.Query, err = one("query"); err != nil {
		return nil, err
	}
	if req.OperationName, err = one("operationName"); err != nil {
		return nil, err
	}

	variables, err := one("variables")
	if err != nil {
		return nil, err
	}
	if len(variables) > 0 {
		if err := json.UnmarshalFromString(variables, &req.Variables); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

// ParseHTTPRequest reads a GraphQL request from r. GET requests take parameters from the URL. POST
// requests accept the media types in bodyDecoders. Other methods fail with 405 and other media
// types with 415; CORS preflights are expected to be answered before reaching here.
func ParseHTTPRequest(r *http.Request, options *ParseHTTPRequestOptions) (*HTTPRequest, error) {
	fail := func(status int, err error) error {
		return &HTTPRequestParseError{
			Request: r,
			Status:  status,
			Err:     err,
		}
	}

	switch r.Method {
	case http.MethodGet:
		values, err := url.ParseQuery(r.URL.RawQuery)
		if err != nil {
			return nil, fail(http.StatusBadRequest, err)
		}
		req, err := requestFromValues(values)
		if err != nil {
			return nil, fail(http.StatusBadRequest, err)
		}
		return req, nil

	case http.MethodPost:
		contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		decode, ok := bodyDecoders[contentType]
		if !ok {
			return nil, fail(http.StatusUnsupportedMediaType,
				fmt.Errorf("unsupported content type %q", contentType))
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, int64(options.MaxBodySize)+1))
		if err != nil {
			return nil, fail(http.StatusBadRequest, err)
		}
		if uint(len(body)) > options.MaxBodySize {
			return nil, fail(http.StatusRequestEntityTooLarge, errRequestBodyTooLarge)
		}

		req, err := decode(body)
		if err != nil {
			return nil, fail(http.StatusBadRequest, err)
		}
		return req, nil
	}

	return nil, fail(http.StatusMethodNotAllowed, fmt.Errorf("method %s is not allowed", r.Method))
}
