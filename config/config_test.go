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

package config_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/botobag/petgram/config"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

func env(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

var _ = Describe("Parse", func() {
	It("uses defaults for unset variables", func() {
		c, err := config.Parse(env(nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c).Should(Equal(config.Default()))
		Expect(c.Addr).Should(Equal(":3500"))
		Expect(c.Store).Should(Equal(config.StoreMemory))
		Expect(c.AuthDelay).Should(Equal(time.Second))
		Expect(c.Seed).Should(BeTrue())
	})

	It("reads every variable", func() {
		c, err := config.Parse(env(map[string]string{
			"PETGRAM_ADDR":        "127.0.0.1:8080",
			"PETGRAM_STORE":       "redis",
			"PETGRAM_SQLITE_PATH": "/var/lib/petgram.db",
			"REDIS_ADDR":          "redis:6379",
			"REDIS_PASSWORD":      "pw",
			"REDIS_DB":            "3",
			"JWT_SECRET":          "s3cr3t",
			"AUTH_DELAY":          "250ms",
			"BCRYPT_COST":         "12",
			"PETGRAM_SEED":        "false",
			"PETGRAM_SEED_FILE":   "/etc/petgram/seed.json",
			"PETGRAM_API_URL":     "https://petgram.example",
		}))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c).Should(Equal(config.Config{
			Addr:          "127.0.0.1:8080",
			Store:         config.StoreRedis,
			SQLitePath:    "/var/lib/petgram.db",
			RedisAddr:     "redis:6379",
			RedisPassword: "pw",
			RedisDB:       3,
			JWTSecret:     "s3cr3t",
			AuthDelay:     250 * time.Millisecond,
			BcryptCost:    12,
			Seed:          false,
			SeedFile:      "/etc/petgram/seed.json",
			APIURL:        "https://petgram.example",
		}))
	})

	It("disables the delay with zero", func() {
		c, err := config.Parse(env(map[string]string{"AUTH_DELAY": "0"}))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c.AuthDelay).Should(BeZero())
	})

	It("rejects malformed values", func() {
		for key, value := range map[string]string{
			"REDIS_DB":     "zero",
			"AUTH_DELAY":   "soon",
			"BCRYPT_COST":  "high",
			"PETGRAM_SEED": "maybe",
		} {
			_, err := config.Parse(env(map[string]string{key: value}))
			Expect(err).Should(MatchError(ContainSubstring(key)))
		}
	})
})

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "petgram-config")
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		os.Unsetenv("JWT_SECRET")
		os.RemoveAll(dir)
	})

	It("reads variables from a .env file", func() {
		file := filepath.Join(dir, ".env")
		Expect(os.WriteFile(file, []byte("JWT_SECRET=from-file\n"), 0600)).Should(Succeed())

		c, err := config.Load(file)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c.JWTSecret).Should(Equal("from-file"))
	})

	It("prefers the environment over the file", func() {
		file := filepath.Join(dir, ".env")
		Expect(os.WriteFile(file, []byte("JWT_SECRET=from-file\n"), 0600)).Should(Succeed())
		os.Setenv("JWT_SECRET", "from-env")

		c, err := config.Load(file)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(c.JWTSecret).Should(Equal("from-env"))
	})

	It("ignores a missing file", func() {
		_, err := config.Load(filepath.Join(dir, "missing.env"))
		Expect(err).ShouldNot(HaveOccurred())
	})
})

var _ = Describe("ValidateServer", func() {
	It("requires a secret", func() {
		Expect(config.Default().ValidateServer()).Should(MatchError(ContainSubstring("JWT_SECRET")))
	})

	It("requires a known store", func() {
		c := config.Default()
		c.JWTSecret = "s3cr3t"
		Expect(c.ValidateServer()).Should(Succeed())

		c.Store = "postgres"
		Expect(c.ValidateServer()).Should(MatchError(ContainSubstring(`unknown PETGRAM_STORE "postgres"`)))
	})

	It("checks the range of the bcrypt cost", func() {
		c := config.Default()
		c.JWTSecret = "s3cr3t"

		for _, cost := range []int{bcrypt.MinCost, bcrypt.DefaultCost, bcrypt.MaxCost} {
			c.BcryptCost = cost
			Expect(c.ValidateServer()).Should(Succeed(), "cost %d", cost)
		}

		for _, cost := range []int{-1, 1, bcrypt.MinCost - 1, bcrypt.MaxCost + 1} {
			c.BcryptCost = cost
			Expect(c.ValidateServer()).Should(MatchError(ContainSubstring("BCRYPT_COST must be between 4 and 31")), "cost %d", cost)
		}
	})
})
