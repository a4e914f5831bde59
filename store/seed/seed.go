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

// Package seed provides the reference categories and demo photos Petgram starts with.
package seed

import (
	"context"
	_ "embed"
	"io"

	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"

	"github.com/json-iterator/go"
)

//go:embed data.json
var defaultData []byte

// Data is a set of records to load into a store.
type Data struct {
	Categories []*domain.Category `json:"categories"`
	Photos     []*domain.Photo    `json:"photos"`
}

// Default returns a fresh copy of the built-in data.
func Default() (*Data, error) {
	data := &Data{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(defaultData, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decode reads Data in the format of the built-in data.json from r.
func Decode(r io.Reader) (*Data, error) {
	data := &Data{}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Load seeds s with data.
func Load(ctx context.Context, s store.Store, data *Data) error {
	return s.Seed(ctx, data.Categories, data.Photos)
}
