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

// Package client contains the data hooks used by Petgram frontends to read from the API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/botobag/petgram/domain"

	"github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is a snapshot of a CategoriesHook.
type State struct {
	// Data is the last fetched list. It is empty until a fetch succeeds.
	Data []domain.Category

	// Loading is true while a fetch is in flight.
	Loading bool

	// Err is set when the last fetch failed.
	Err error
}

// FetchError is reported in State.Err when the categories could not be fetched.
type FetchError struct {
	URL string
	Err error
}

// Error implements Go's error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("client: fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Option configures a CategoriesHook.
type Option func(h *CategoriesHook)

// WithHTTPClient sets the client used for requests. Defaults to http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(h *CategoriesHook) {
		h.httpClient = c
	}
}

// CategoriesHook loads the category list from the REST endpoint of the API and publishes its
// progress to subscribers.
type CategoriesHook struct {
	url        string
	httpClient *http.Client

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextID      int
}

// NewCategoriesHook creates a hook that reads from baseURL, such as "http://localhost:3500".
func NewCategoriesHook(baseURL string, opts ...Option) *CategoriesHook {
	h := &CategoriesHook{
		url:        strings.TrimRight(baseURL, "/") + "/categories",
		httpClient: http.DefaultClient,
		state: State{
			Data: []domain.Category{},
		},
		subscribers: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current state. Callers own the returned Data.
func (h *CategoriesHook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot()
}

// snapshot copies the state so callers can't modify the hook's Data. h.mu must be held.
func (h *CategoriesHook) snapshot() State {
	return h.state.clone()
}

func (s State) clone() State {
	data := make([]domain.Category, len(s.Data))
	copy(data, s.Data)
	s.Data = data
	return s
}

// Subscribe registers fn to be called with the new state after every change. The returned
// function removes the subscription.
func (h *CategoriesHook) Subscribe(fn func(State)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers, id)
	}
}

// update applies f to the state and notifies subscribers outside of the lock. Each subscriber
// gets its own copy of the state.
func (h *CategoriesHook) update(f func(state *State)) State {
	h.mu.Lock()
	f(&h.state)
	state := h.snapshot()
	subscribers := make([]func(State), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		subscribers = append(subscribers, fn)
	}
	h.mu.Unlock()

	for _, fn := range subscribers {
		fn(state.clone())
	}
	return state
}

// Mount issues one request for the categories and returns the resulting state. It doesn't retry.
func (h *CategoriesHook) Mount(ctx context.Context) State {
	h.update(func(state *State) {
		state.Loading = true
		state.Err = nil
	})

	categories, err := h.fetch(ctx)

	return h.update(func(state *State) {
		state.Loading = false
		if err != nil {
			state.Err = &FetchError{
				URL: h.url,
				Err: err,
			}
			return
		}
		state.Data = categories
	})
}

func (h *CategoriesHook) fetch(ctx context.Context) ([]domain.Category, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	categories := []domain.Category{}
	if err := json.NewDecoder(resp.Body).Decode(&categories); err != nil {
		return nil, err
	}
	return categories, nil
}
