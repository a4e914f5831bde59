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
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/botobag/petgram/api"
	"github.com/botobag/petgram/api/handler"
	"github.com/botobag/petgram/auth"
	"github.com/botobag/petgram/config"
	"github.com/botobag/petgram/store"
	"github.com/botobag/petgram/store/memory"
	"github.com/botobag/petgram/store/redisstore"
	"github.com/botobag/petgram/store/seed"
	"github.com/botobag/petgram/store/sqlite"

	"github.com/redis/go-redis/v9"
)

// openStore creates the backend selected by cfg.Store.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil

	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, nil

	case config.StoreRedis:
		rs, err := redisstore.Connect(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// seedData returns the records to seed the store with: the file named by cfg.SeedFile, or the
// built-in data if there's none.
func seedData(cfg config.Config) (*seed.Data, error) {
	if len(cfg.SeedFile) == 0 {
		return seed.Default()
	}

	f, err := os.Open(cfg.SeedFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return seed.Decode(f)
}

// newHandler routes /graphql and /categories. Every request is logged to logger.
func newHandler(s store.Store, authService *auth.Service, logger *log.Logger) (http.Handler, error) {
	schema, err := api.New(s, authService)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", handler.CORS(
		handler.New(schema, handler.Middlewares(handler.BearerAuth(authService))),
		http.MethodGet, http.MethodPost))
	mux.Handle("/categories", handler.Categories(s.Categories()))

	return handler.LogRequests(logger, mux), nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.Seed {
		data, err := seedData(cfg)
		if err != nil {
			return fmt.Errorf("failed to decode seed data: %w", err)
		}
		if err := seed.Load(ctx, s, data); err != nil {
			return fmt.Errorf("failed to seed %s store: %w", cfg.Store, err)
		}
	}

	authService, err := auth.New(s.Users(), auth.Config{
		Secret:        []byte(cfg.JWTSecret),
		BcryptCost:    cfg.BcryptCost,
		DelayDuration: cfg.AuthDelay,
	})
	if err != nil {
		return err
	}

	h, err := newHandler(s, authService, log.New(os.Stderr, "http: ", log.LstdFlags))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("serving GraphQL at http://%s/graphql with %s store", cfg.Addr, cfg.Store)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Print("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
