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

// Package store defines the persistence contracts of Petgram. The API layer only talks to these
// interfaces, so backends (memory, SQLite, Redis) can be swapped without changing the API.
package store

import (
	"context"
	"fmt"

	"github.com/botobag/petgram/domain"
)

// Users holds user records.
type Users interface {
	// Create inserts a user with the given email and password hash. The check for an existing email
	// and the insert happen atomically; a registered email yields an ErrKindAlreadyExists error.
	Create(ctx context.Context, email, passwordHash string) (*domain.User, error)

	// Find looks up a user by id. It returns an ErrKindNotFound error if there's no such user.
	Find(ctx context.Context, id string) (*domain.User, error)

	// FindByEmail looks up a user by email. Emails are compared case-sensitively. It returns an
	// ErrKindNotFound error if there's no such user.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// PhotoFilter selects photos returned by Photos.List. The zero value selects all photos.
type PhotoFilter struct {
	// CategoryID restricts the result to photos in the category when it is not nil.
	CategoryID *int

	// IDs restricts the result to photos whose id is in the list when it is not nil. An empty
	// non-nil slice selects nothing.
	IDs []string
}

// Match returns true if photo passes the filter.
func (filter PhotoFilter) Match(photo *domain.Photo) bool {
	if filter.CategoryID != nil && photo.CategoryID != *filter.CategoryID {
		return false
	}
	if filter.IDs != nil {
		for _, id := range filter.IDs {
			if id == photo.ID {
				return true
			}
		}
		return false
	}
	return true
}

// Photos holds photo records.
type Photos interface {
	// Get looks up a photo by id. It returns an ErrKindNotFound error if there's no such photo.
	Get(ctx context.Context, id string) (*domain.Photo, error)

	// List returns photos that match the filter in store order.
	List(ctx context.Context, filter PhotoFilter) ([]*domain.Photo, error)

	// AddLike increments the like counter of a photo without recording who liked it and returns the
	// updated photo.
	AddLike(ctx context.Context, id string) (*domain.Photo, error)
}

// Categories holds read-only category records.
type Categories interface {
	List(ctx context.Context) ([]*domain.Category, error)
}

// Favorites maintains the favorite relation between users and photos together with the photos'
// like counters.
type Favorites interface {
	// Toggle removes the (user, photo) relation and decrements the photo's counter if the relation
	// exists, or adds it and increments the counter otherwise. Both changes happen atomically. It
	// returns the updated photo and whether the relation exists after the toggle.
	Toggle(ctx context.Context, userID, photoID string) (photo *domain.Photo, liked bool, err error)
}

// Store bundles the collections of one backend.
type Store interface {
	Users() Users
	Photos() Photos
	Categories() Categories
	Favorites() Favorites

	// Seed loads reference categories and photos. It is used at process start and in tests.
	Seed(ctx context.Context, categories []*domain.Category, photos []*domain.Photo) error

	// Close releases resources held by the backend.
	Close() error
}

// ErrUserExists builds the error returned by Users.Create for a registered email.
func ErrUserExists(op domain.Op, email string) error {
	return domain.NewError(fmt.Sprintf("user %q already exists", email), op, domain.ErrKindAlreadyExists)
}

// ErrUserNotFound builds the error returned when a user lookup fails.
func ErrUserNotFound(op domain.Op, key string) error {
	return domain.NewError(fmt.Sprintf("no user with %s", key), op, domain.ErrKindNotFound)
}

// ErrPhotoNotFound builds the error returned when a photo lookup fails.
func ErrPhotoNotFound(op domain.Op, id string) error {
	return domain.NewError(fmt.Sprintf("could not find photo with id %s", id), op, domain.ErrKindNotFound)
}

// ErrBackend wraps a failure of the underlying database.
func ErrBackend(op domain.Op, err error) error {
	return domain.NewError("store backend failure", op, domain.ErrKindInternal, err)
}
