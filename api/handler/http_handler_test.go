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

package handler_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/botobag/petgram/api"
	"github.com/botobag/petgram/api/handler"
	"github.com/botobag/petgram/auth"
	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"
	"github.com/botobag/petgram/store/memory"
	"github.com/botobag/petgram/store/storetest"

	"github.com/graphql-go/graphql"
	"github.com/json-iterator/go"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type brokenCategories struct{}

func (brokenCategories) List(ctx context.Context) ([]*domain.Category, error) {
	return nil, store.ErrBackend("test.List", errors.New("connection refused"))
}

var _ = Describe("HTTP handler", func() {
	var (
		db          *memory.DB
		authService *auth.Service
		schema      graphql.Schema
		h           http.Handler
	)

	serve := func(r *http.Request) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	postJSON := func(body string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return r
	}

	BeforeEach(func() {
		ctx := context.Background()
		db = memory.New()
		Expect(db.Seed(ctx, storetest.Categories(), storetest.Photos())).Should(Succeed())

		var err error
		authService, err = auth.New(db.Users(), auth.Config{
			Secret:     []byte("s3cr3t"),
			BcryptCost: bcrypt.MinCost,
		})
		Expect(err).ShouldNot(HaveOccurred())

		schema, err = api.New(db, authService)
		Expect(err).ShouldNot(HaveOccurred())

		h = handler.New(schema, handler.Middlewares(handler.BearerAuth(authService)))
	})

	Describe("request parsing", func() {
		It("accepts a JSON body with variables", func() {
			w := serve(postJSON(`{
				"query": "query($c: ID) { photos(categoryId: $c) { id } }",
				"variables": {"c": "1"}
			}`))
			Expect(w.Code).Should(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).Should(Equal("application/json"))
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"photos": [{"id": "p1"}, {"id": "p3"}]}}`))
		})

		It("selects the named operation", func() {
			w := serve(postJSON(`{
				"query": "query A { photo(id: \"p1\") { id } } query B { photo(id: \"p2\") { id } }",
				"operationName": "B"
			}`))
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"photo": {"id": "p2"}}}`))
		})

		It("accepts an application/graphql body", func() {
			r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{ photo(id: "p2") { likes } }`))
			r.Header.Set("Content-Type", "application/graphql")
			w := serve(r)
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"photo": {"likes": 3}}}`))
		})

		It("accepts a form-encoded body", func() {
			form := url.Values{}
			form.Set("query", `query($id: ID!) { photo(id: $id) { id } }`)
			form.Set("variables", `{"id": "p3"}`)
			r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := serve(r)
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"photo": {"id": "p3"}}}`))
		})

		It("accepts GET query parameters", func() {
			query := url.Values{}
			query.Set("query", `{ categories { id name } }`)
			w := serve(httptest.NewRequest(http.MethodGet, "/graphql?"+query.Encode(), nil))
			Expect(w.Body.String()).Should(MatchJSON(`{
				"data": {"categories": [{"id": "1", "name": "cats"}, {"id": "2", "name": "dogs"}]}
			}`))
		})

		It("rejects repeated parameters", func() {
			w := serve(httptest.NewRequest(http.MethodGet, "/graphql?query=a&query=b", nil))
			Expect(w.Code).Should(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).Should(ContainSubstring(`multiple values are provided to "query"`))
		})

		It("rejects an empty query", func() {
			w := serve(postJSON(`{"query": ""}`))
			Expect(w.Code).Should(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).Should(ContainSubstring("empty query"))
		})

		It("rejects a malformed body", func() {
			w := serve(postJSON(`{"query": `))
			Expect(w.Code).Should(Equal(http.StatusBadRequest))
		})

		It("rejects a query with syntax errors", func() {
			w := serve(postJSON(`{"query": "{ photos { id "}`))
			Expect(w.Code).Should(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).Should(HavePrefix("invalid query: "))
		})

		It("reports validation errors in the result", func() {
			w := serve(postJSON(`{"query": "{ photos { nope } }"}`))
			Expect(w.Code).Should(Equal(http.StatusOK))
			Expect(w.Body.String()).Should(ContainSubstring(`Cannot query field \"nope\" on type \"Photo\".`))
		})

		It("limits the body size", func() {
			h = handler.New(schema, handler.MaxBodySize(16))
			w := serve(postJSON(`{"query": "{ categories { id } }"}`))
			Expect(w.Code).Should(Equal(http.StatusRequestEntityTooLarge))
			Expect(w.Body.String()).Should(ContainSubstring("request body is too large"))
		})

		It("rejects methods other than GET and POST", func() {
			w := serve(httptest.NewRequest(http.MethodPut, "/graphql", strings.NewReader(`{"query": "{ categories { id } }"}`)))
			Expect(w.Code).Should(Equal(http.StatusMethodNotAllowed))
			Expect(w.Header().Get("Allow")).Should(Equal("GET, POST"))
		})

		It("rejects unsupported media types", func() {
			r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`<query/>`))
			r.Header.Set("Content-Type", "text/xml")
			w := serve(r)
			Expect(w.Code).Should(Equal(http.StatusUnsupportedMediaType))
			Expect(w.Body.String()).Should(ContainSubstring(`unsupported content type "text/xml"`))
		})

		It("reads a body without content type as JSON", func() {
			r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query": "{ photo(id: \"p1\") { id } }"}`))
			w := serve(r)
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"photo": {"id": "p1"}}}`))
		})
	})

	Describe("CORS", func() {
		BeforeEach(func() {
			h = handler.CORS(h, http.MethodGet, http.MethodPost)
		})

		It("answers preflight requests without running the query", func() {
			r := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
			r.Header.Set("Origin", "http://localhost:8080")
			r.Header.Set("Access-Control-Request-Method", "POST")
			r.Header.Set("Access-Control-Request-Headers", "authorization, content-type")

			w := serve(r)
			Expect(w.Code).Should(Equal(http.StatusNoContent))
			Expect(w.Body.Len()).Should(BeZero())
			Expect(w.Header().Get("Access-Control-Allow-Origin")).Should(Equal("*"))
			Expect(w.Header().Get("Access-Control-Allow-Methods")).Should(Equal("GET, POST, OPTIONS"))
			Expect(w.Header().Get("Access-Control-Allow-Headers")).Should(ContainSubstring("Authorization"))
		})

		It("allows cross-origin queries", func() {
			r := postJSON(`{"query": "{ categories { id } }"}`)
			r.Header.Set("Origin", "http://localhost:8080")

			w := serve(r)
			Expect(w.Code).Should(Equal(http.StatusOK))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).Should(Equal("*"))
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"categories": [{"id": "1"}, {"id": "2"}]}}`))
		})
	})

	Describe("BearerAuth", func() {
		var token string

		BeforeEach(func() {
			var err error
			token, err = authService.Signup(context.Background(), "alice@petgram.example", "hunter2")
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("authenticates the caller from the token", func() {
			r := postJSON(`{"query": "mutation { likePhoto(input: {id: \"p1\"}) { id likes liked } }"}`)
			r.Header.Set("Authorization", "Bearer "+token)
			w := serve(r)
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"likePhoto": {"id": "p1", "likes": 1, "liked": true}}}`))

			r = postJSON(`{"query": "{ favs { id liked } }"}`)
			r.Header.Set("Authorization", "Bearer "+token)
			w = serve(r)
			Expect(w.Body.String()).Should(MatchJSON(`{"data": {"favs": [{"id": "p1", "liked": true}]}}`))
		})

		It("treats bad credentials as anonymous", func() {
			for _, header := range []string{"", "Bearer", "Token " + token, "Bearer not-a-token", "Bearer " + token + " extra"} {
				r := postJSON(`{"query": "{ photo(id: \"p1\") { id } favs { id } }"}`)
				if len(header) > 0 {
					r.Header.Set("Authorization", header)
				}
				w := serve(r)
				Expect(w.Code).Should(Equal(http.StatusOK))

				var result struct {
					Data   map[string]interface{}
					Errors []struct {
						Message    string
						Path       []interface{}
						Extensions map[string]interface{}
					}
				}
				Expect(json.Unmarshal(w.Body.Bytes(), &result)).Should(Succeed())
				Expect(result.Data).Should(HaveKeyWithValue("photo", HaveKeyWithValue("id", "p1")))
				Expect(result.Data).Should(HaveKeyWithValue("favs", BeNil()))
				Expect(result.Errors).Should(HaveLen(1))
				Expect(result.Errors[0].Message).Should(Equal("you must be logged in to perform this action"))
				Expect(result.Errors[0].Path).Should(Equal([]interface{}{"favs"}))
				Expect(result.Errors[0].Extensions).Should(HaveKeyWithValue("code", "UNAUTHENTICATED"))
			}
		})
	})

	Describe("RequestMiddleware", func() {
		It("can stop the chain with an error", func() {
			var applied []string
			h = handler.New(schema, handler.Middlewares(
				handler.RequestMiddlewareFunc(func(request *handler.Request, next *handler.RequestMiddlewareNext) {
					applied = append(applied, "first")
					next.NextError(errors.New("service unavailable"))
				}),
				handler.RequestMiddlewareFunc(func(request *handler.Request, next *handler.RequestMiddlewareNext) {
					applied = append(applied, "second")
					next.Next(request)
				}),
			))

			w := serve(postJSON(`{"query": "{ categories { id } }"}`))
			Expect(applied).Should(Equal([]string{"first"}))
			Expect(w.Body.String()).Should(MatchJSON(`{"data": null, "errors": [{"message": "service unavailable", "locations": []}]}`))
		})

		It("panics when a middleware doesn't continue the chain", func() {
			llHandler := handler.NewLLHandler(&handler.LLConfig{
				Schema: schema,
				Middlewares: []handler.RequestMiddleware{
					handler.RequestMiddlewareFunc(func(request *handler.Request, next *handler.RequestMiddlewareNext) {}),
				},
			})
			Expect(func() {
				llHandler.Serve(&handler.Request{Ctx: context.Background()})
			}).Should(Panic())
		})
	})

	Describe("Categories", func() {
		It("serves the categories with numeric ids", func() {
			w := httptest.NewRecorder()
			handler.Categories(db.Categories()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories", nil))
			Expect(w.Code).Should(Equal(http.StatusOK))
			Expect(w.Header().Get("Access-Control-Allow-Origin")).Should(Equal("*"))
			Expect(w.Body.String()).Should(MatchJSON(`[
				{"id": 1, "cover": "https://petgram.example/cats.jpg", "name": "cats", "emoji": "🐱", "path": "/pet/1"},
				{"id": 2, "cover": "https://petgram.example/dogs.jpg", "name": "dogs", "emoji": "🐶", "path": "/pet/2"}
			]`))
		})

		It("serves an empty array for an empty store", func() {
			w := httptest.NewRecorder()
			handler.Categories(memory.New().Categories()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories", nil))
			Expect(w.Code).Should(Equal(http.StatusOK))
			Expect(w.Body.String()).Should(MatchJSON(`[]`))
		})

		It("answers preflight requests", func() {
			w := httptest.NewRecorder()
			handler.Categories(db.Categories()).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/categories", nil))
			Expect(w.Code).Should(Equal(http.StatusNoContent))
			Expect(w.Header().Get("Access-Control-Allow-Methods")).Should(ContainSubstring("GET"))
		})

		It("rejects other methods", func() {
			w := httptest.NewRecorder()
			handler.Categories(db.Categories()).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/categories", nil))
			Expect(w.Code).Should(Equal(http.StatusMethodNotAllowed))
		})

		It("hides backend failures", func() {
			w := httptest.NewRecorder()
			handler.Categories(brokenCategories{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories", nil))
			Expect(w.Code).Should(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).ShouldNot(ContainSubstring("connection refused"))
		})
	})

	Describe("LogRequests", func() {
		It("logs method, path and status", func() {
			var buf bytes.Buffer
			logged := handler.LogRequests(log.New(&buf, "", 0), handler.Categories(db.Categories()))

			logged.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/categories", nil))
			Expect(buf.String()).Should(HavePrefix("DELETE /categories 405 "))
		})
	})
})
