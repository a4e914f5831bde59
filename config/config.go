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

// Package config reads the settings of the Petgram server and tools from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds every setting. Fields are filled from the variables named in their comments.
type Config struct {
	Addr          string        // PETGRAM_ADDR
	Store         string        // PETGRAM_STORE: memory, sqlite or redis
	SQLitePath    string        // PETGRAM_SQLITE_PATH
	RedisAddr     string        // REDIS_ADDR
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
	JWTSecret     string        // JWT_SECRET
	AuthDelay     time.Duration // AUTH_DELAY, such as "1s" or "0"
	BcryptCost    int           // BCRYPT_COST; 0 selects the default cost
	Seed          bool          // PETGRAM_SEED
	SeedFile      string        // PETGRAM_SEED_FILE; empty selects the built-in data
	APIURL        string        // PETGRAM_API_URL
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Addr:       ":3500",
		Store:      StoreMemory,
		SQLitePath: "./petgram.db",
		RedisAddr:  "localhost:6379",
		AuthDelay:  time.Second,
		Seed:       true,
		APIURL:     "http://localhost:3500",
	}
}

// Load reads the given .env files (".env" if none is given) into the environment and parses the
// configuration from it. Missing files are ignored; variables already set in the environment take
// precedence over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return Parse(os.LookupEnv)
}

// Parse builds a Config from lookup, which has the signature of os.LookupEnv.
func Parse(lookup func(key string) (string, bool)) (Config, error) {
	c := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && len(v) > 0 {
			*dst = v
		}
	}

	str("PETGRAM_ADDR", &c.Addr)
	str("PETGRAM_STORE", &c.Store)
	str("PETGRAM_SQLITE_PATH", &c.SQLitePath)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("JWT_SECRET", &c.JWTSecret)
	str("PETGRAM_SEED_FILE", &c.SeedFile)
	str("PETGRAM_API_URL", &c.APIURL)

	if v, ok := lookup("REDIS_DB"); ok && len(v) > 0 {
		db, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid REDIS_DB %q: %w", v, err)
		}
		c.RedisDB = db
	}

	if v, ok := lookup("AUTH_DELAY"); ok && len(v) > 0 {
		delay, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid AUTH_DELAY %q: %w", v, err)
		}
		c.AuthDelay = delay
	}

	if v, ok := lookup("BCRYPT_COST"); ok && len(v) > 0 {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BCRYPT_COST %q: %w", v, err)
		}
		c.BcryptCost = cost
	}

	if v, ok := lookup("PETGRAM_SEED"); ok && len(v) > 0 {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PETGRAM_SEED %q: %w", v, err)
		}
		c.Seed = seed
	}

	return c, nil
}

// ValidateServer checks the settings the API server can't start without.
func (c Config) ValidateServer() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("config: JWT_SECRET must be set")
	}
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		return fmt.Errorf("config: unknown PETGRAM_STORE %q (want %s, %s or %s)",
			c.Store, StoreMemory, StoreSQLite, StoreRedis)
	}
	if c.AuthDelay < 0 {
		return fmt.Errorf("config: AUTH_DELAY must not be negative")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("config: BCRYPT_COST must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	return nil
}
