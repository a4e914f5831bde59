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

// Package memory implements store.Store on maps and slices guarded by a single lock.
package memory

import (
	"context"
	"sync"

	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"

	"github.com/google/uuid"
)

// DB is an in-memory store. One RWMutex guards users, photos and the favorite relation together,
// which makes Favorites.Toggle a single critical section.
type DB struct {
	mu         sync.RWMutex
	users      []*domain.User
	photos     []*domain.Photo
	categories []*domain.Category
}

var _ store.Store = (*DB)(nil)

// New creates an empty DB.
func New() *DB {
	return &DB{}
}

// Users implements store.Store.
func (db *DB) Users() store.Users { return users{db} }

// Photos implements store.Store.
func (db *DB) Photos() store.Photos { return photos{db} }

// Categories implements store.Store.
func (db *DB) Categories() store.Categories { return categories{db} }

// Favorites implements store.Store.
func (db *DB) Favorites() store.Favorites { return favorites{db} }

// Seed implements store.Store. It replaces existing categories and photos.
func (db *DB) Seed(ctx context.Context, cs []*domain.Category, ps []*domain.Photo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.categories = make([]*domain.Category, len(cs))
	for i, c := range cs {
		category := *c
		db.categories[i] = &category
	}

	db.photos = make([]*domain.Photo, len(ps))
	for i, p := range ps {
		photo := *p
		db.photos[i] = &photo
	}

	return nil
}

// Close implements store.Store.
func (db *DB) Close() error {
	return nil
}

// Callers must hold db.mu.
func (db *DB) findPhoto(id string) *domain.Photo {
	for _, photo := range db.photos {
		if photo.ID == id {
			return photo
		}
	}
	return nil
}

// Callers must hold db.mu.
func (db *DB) findUser(match func(u *domain.User) bool) *domain.User {
	for _, user := range db.users {
		if match(user) {
			return user
		}
	}
	return nil
}

type users struct {
	db *DB
}

func (s users) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	const op domain.Op = "memory.Users.Create"

	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.findUser(func(u *domain.User) bool { return u.Email == email }) != nil {
		return nil, store.ErrUserExists(op, email)
	}

	user := &domain.User{
		ID:               uuid.New().String(),
		Email:            email,
		Password:         passwordHash,
		FavoritePhotoIDs: []string{},
	}
	db.users = append(db.users, user)

	return user.Clone(), nil
}

func (s users) Find(ctx context.Context, id string) (*domain.User, error) {
	db := s.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	user := db.findUser(func(u *domain.User) bool { return u.ID == id })
	if user == nil {
		return nil, store.ErrUserNotFound("memory.Users.Find", "id "+id)
	}
	return user.Clone(), nil
}

func (s users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	db := s.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	user := db.findUser(func(u *domain.User) bool { return u.Email == email })
	if user == nil {
		return nil, store.ErrUserNotFound("memory.Users.FindByEmail", "email "+email)
	}
	return user.Clone(), nil
}

type photos struct {
	db *DB
}

func (s photos) Get(ctx context.Context, id string) (*domain.Photo, error) {
	db := s.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	photo := db.findPhoto(id)
	if photo == nil {
		return nil, store.ErrPhotoNotFound("memory.Photos.Get", id)
	}
	result := *photo
	return &result, nil
}

func (s photos) List(ctx context.Context, filter store.PhotoFilter) ([]*domain.Photo, error) {
	db := s.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []*domain.Photo{}
	for _, photo := range db.photos {
		if filter.Match(photo) {
			p := *photo
			result = append(result, &p)
		}
	}
	return result, nil
}

func (s photos) AddLike(ctx context.Context, id string) (*domain.Photo, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	photo := db.findPhoto(id)
	if photo == nil {
		return nil, store.ErrPhotoNotFound("memory.Photos.AddLike", id)
	}
	photo.Likes++

	result := *photo
	return &result, nil
}

type categories struct {
	db *DB
}

func (s categories) List(ctx context.Context) ([]*domain.Category, error) {
	db := s.db
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]*domain.Category, len(db.categories))
	for i, category := range db.categories {
		c := *category
		result[i] = &c
	}
	return result, nil
}

type favorites struct {
	db *DB
}

func (s favorites) Toggle(ctx context.Context, userID, photoID string) (*domain.Photo, bool, error) {
	const op domain.Op = "memory.Favorites.Toggle"

	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	user := db.findUser(func(u *domain.User) bool { return u.ID == userID })
	if user == nil {
		return nil, false, store.ErrUserNotFound(op, "id "+userID)
	}

	photo := db.findPhoto(photoID)
	if photo == nil {
		return nil, false, store.ErrPhotoNotFound(op, photoID)
	}

	liked := false
	if i := indexOf(user.FavoritePhotoIDs, photoID); i >= 0 {
		user.FavoritePhotoIDs = append(user.FavoritePhotoIDs[:i], user.FavoritePhotoIDs[i+1:]...)
		if photo.Likes > 0 {
			photo.Likes--
		}
	} else {
		user.FavoritePhotoIDs = append(user.FavoritePhotoIDs, photoID)
		photo.Likes++
		liked = true
	}

	result := *photo
	return &result, liked, nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
