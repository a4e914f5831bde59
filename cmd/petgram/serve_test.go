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

package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/botobag/petgram/auth"
	"github.com/botobag/petgram/config"
	"github.com/botobag/petgram/store"
	"github.com/botobag/petgram/store/seed"

	"github.com/alicebob/miniredis/v2"
	"github.com/json-iterator/go"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("openStore", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("opens every configured backend", func() {
		dir, err := os.MkdirTemp("", "petgram-cmd")
		Expect(err).ShouldNot(HaveOccurred())
		defer os.RemoveAll(dir)

		mr, err := miniredis.Run()
		Expect(err).ShouldNot(HaveOccurred())
		defer mr.Close()

		for _, kind := range []string{config.StoreMemory, config.StoreSQLite, config.StoreRedis} {
			cfg := config.Default()
			cfg.Store = kind
			cfg.SQLitePath = filepath.Join(dir, "petgram.db")
			cfg.RedisAddr = mr.Addr()

			s, err := openStore(ctx, cfg)
			Expect(err).ShouldNot(HaveOccurred(), kind)

			data, err := seed.Default()
			Expect(err).ShouldNot(HaveOccurred())
			Expect(seed.Load(ctx, s, data)).Should(Succeed(), kind)

			categories, err := s.Categories().List(ctx)
			Expect(err).ShouldNot(HaveOccurred(), kind)
			Expect(categories).Should(HaveLen(6), kind)

			photos, err := s.Photos().List(ctx, store.PhotoFilter{})
			Expect(err).ShouldNot(HaveOccurred(), kind)
			Expect(photos).Should(HaveLen(8), kind)

			Expect(s.Close()).Should(Succeed(), kind)
		}
	})

	It("fails on an unreachable redis", func() {
		cfg := config.Default()
		cfg.Store = config.StoreRedis
		cfg.RedisAddr = "127.0.0.1:1"

		s, err := openStore(ctx, cfg)
		Expect(err).Should(HaveOccurred())
		Expect(s).Should(BeNil())
	})

	It("rejects unknown backends", func() {
		cfg := config.Default()
		cfg.Store = "mongo"
		_, err := openStore(ctx, cfg)
		Expect(err).Should(MatchError(`unknown store "mongo"`))
	})
})

var _ = Describe("seedData", func() {
	It("uses the built-in data by default", func() {
		data, err := seedData(config.Default())
		Expect(err).ShouldNot(HaveOccurred())
		Expect(data.Categories).Should(HaveLen(6))
		Expect(data.Photos).Should(HaveLen(8))
	})

	It("reads the configured file", func() {
		dir, err := os.MkdirTemp("", "petgram-seed")
		Expect(err).ShouldNot(HaveOccurred())
		defer os.RemoveAll(dir)

		file := filepath.Join(dir, "seed.json")
		Expect(os.WriteFile(file, []byte(`{
			"categories": [{"id": 7, "cover": "c.jpg", "name": "owls", "emoji": "🦉", "path": "/pet/7"}],
			"photos": [{"id": "o1", "categoryId": 7, "src": "o1.jpg", "likes": 2}]
		}`), 0600)).Should(Succeed())

		cfg := config.Default()
		cfg.SeedFile = file
		data, err := seedData(cfg)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(data.Categories).Should(HaveLen(1))
		Expect(data.Categories[0].Name).Should(Equal("owls"))
		Expect(data.Photos).Should(HaveLen(1))
		Expect(data.Photos[0].Likes).Should(Equal(2))

		cfg.SeedFile = filepath.Join(dir, "missing.json")
		_, err = seedData(cfg)
		Expect(err).Should(HaveOccurred())
	})
})

var _ = Describe("server", func() {
	var (
		server *httptest.Server
		logs   bytes.Buffer
	)

	graphql := func(token, query string) map[string]interface{} {
		body, err := jsoniter.Marshal(map[string]string{"query": query})
		Expect(err).ShouldNot(HaveOccurred())

		req, err := http.NewRequest(http.MethodPost, server.URL+"/graphql", bytes.NewReader(body))
		Expect(err).ShouldNot(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		if len(token) > 0 {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := http.DefaultClient.Do(req)
		Expect(err).ShouldNot(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).Should(Equal(http.StatusOK))

		var result map[string]interface{}
		Expect(jsoniter.NewDecoder(resp.Body).Decode(&result)).Should(Succeed())
		return result
	}

	BeforeEach(func() {
		ctx := context.Background()
		cfg := config.Default()

		s, err := openStore(ctx, cfg)
		Expect(err).ShouldNot(HaveOccurred())
		data, err := seed.Default()
		Expect(err).ShouldNot(HaveOccurred())
		Expect(seed.Load(ctx, s, data)).Should(Succeed())

		authService, err := auth.New(s.Users(), auth.Config{
			Secret:     []byte("s3cr3t"),
			BcryptCost: bcrypt.MinCost,
		})
		Expect(err).ShouldNot(HaveOccurred())

		logs.Reset()
		h, err := newHandler(s, authService, log.New(&logs, "", 0))
		Expect(err).ShouldNot(HaveOccurred())
		server = httptest.NewServer(h)
	})

	AfterEach(func() {
		server.Close()
	})

	It("signs up, likes and lists favorites", func() {
		result := graphql("", `mutation { signup(input: {email: "alice@petgram.example", password: "hunter2"}) }`)
		Expect(result).ShouldNot(HaveKey("errors"))
		token := result["data"].(map[string]interface{})["signup"].(string)

		result = graphql(token, `mutation { likePhoto(input: {id: "3"}) { id likes liked } }`)
		Expect(result).Should(Equal(map[string]interface{}{
			"data": map[string]interface{}{
				"likePhoto": map[string]interface{}{"id": "3", "likes": float64(1), "liked": true},
			},
		}))

		result = graphql(token, `{ favs { id } photos(categoryId: 2) { id liked } }`)
		Expect(result).Should(Equal(map[string]interface{}{
			"data": map[string]interface{}{
				"favs": []interface{}{
					map[string]interface{}{"id": "3"},
				},
				"photos": []interface{}{
					map[string]interface{}{"id": "3", "liked": true},
					map[string]interface{}{"id": "4", "liked": false},
				},
			},
		}))

		Expect(logs.String()).Should(ContainSubstring("POST /graphql 200"))
	})

	It("lets browsers from other origins send tokens to /graphql", func() {
		req, err := http.NewRequest(http.MethodOptions, server.URL+"/graphql", nil)
		Expect(err).ShouldNot(HaveOccurred())
		req.Header.Set("Origin", "http://localhost:8080")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")

		resp, err := http.DefaultClient.Do(req)
		Expect(err).ShouldNot(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).Should(Equal(http.StatusNoContent))
		Expect(resp.Header.Get("Access-Control-Allow-Origin")).Should(Equal("*"))
		Expect(resp.Header.Get("Access-Control-Allow-Methods")).Should(ContainSubstring("POST"))
		Expect(resp.Header.Get("Access-Control-Allow-Headers")).Should(ContainSubstring("Authorization"))
	})

	It("serves the categories over REST", func() {
		resp, err := http.Get(server.URL + "/categories")
		Expect(err).ShouldNot(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).Should(Equal(http.StatusOK))
		Expect(resp.Header.Get("Access-Control-Allow-Origin")).Should(Equal("*"))

		body, err := io.ReadAll(resp.Body)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(string(body)).Should(HavePrefix(`[{"id":1,`))
	})

	It("prints the categories through the client hook", func() {
		cfg := config.Default()
		cfg.APIURL = server.URL

		var out bytes.Buffer
		Expect(printCategories(context.Background(), cfg, &out)).Should(Succeed())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).Should(HaveLen(7))
		Expect(lines[0]).Should(MatchRegexp(`^ID\s+EMOJI\s+NAME\s+PATH$`))
		Expect(lines[1]).Should(ContainSubstring("cats"))
		Expect(lines[6]).Should(ContainSubstring("/pet/6"))
	})

	It("reports when the API is unreachable", func() {
		cfg := config.Default()
		cfg.APIURL = server.URL
		server.Close()

		Expect(printCategories(context.Background(), cfg, io.Discard)).Should(HaveOccurred())
	})
})
