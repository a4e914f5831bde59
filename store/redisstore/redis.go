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

// Package redisstore implements store.Store on Redis. Operations that read and then write (signup,
// like toggling) run as Lua scripts so Redis executes each of them atomically.
package redisstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"

	"github.com/google/uuid"
	"github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store keeps records under keys that start with a configurable prefix:
//
//	<prefix>user:<id>             hash {id, email, password}
//	<prefix>user:<id>:favs        list of photo ids in the order they were liked
//	<prefix>email:<email>         string, the id of the user registered with the email
//	<prefix>photo:<id>            hash {id, categoryId, src, likes, userId}
//	<prefix>photos                list of photo ids in store order
//	<prefix>categories            list of JSON-encoded categories
type Store struct {
	client *redis.Client
	prefix string
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(s *Store)

// KeyPrefix sets the prefix of all keys. The default is "petgram:".
func KeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store on the given client. The Store takes ownership of the client and closes it in
// Close.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "petgram:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect creates a client from options and checks the connection with PING.
func Connect(ctx context.Context, options *redis.Options, opts ...Option) (*Store, error) {
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", options.Addr, err)
	}
	return New(client, opts...), nil
}

func (s *Store) userKey(id string) string      { return s.prefix + "user:" + id }
func (s *Store) favoritesKey(id string) string { return s.prefix + "user:" + id + ":favs" }
func (s *Store) emailKey(email string) string  { return s.prefix + "email:" + email }
func (s *Store) photoKey(id string) string     { return s.prefix + "photo:" + id }
func (s *Store) photoListKey() string          { return s.prefix + "photos" }
func (s *Store) categoryListKey() string       { return s.prefix + "categories" }

// Users implements store.Store.
func (s *Store) Users() store.Users { return users{s} }

// Photos implements store.Store.
func (s *Store) Photos() store.Photos { return photos{s} }

// Categories implements store.Store.
func (s *Store) Categories() store.Categories { return categories{s} }

// Favorites implements store.Store.
func (s *Store) Favorites() store.Favorites { return favorites{s} }

// Close implements store.Store.
func (s *Store) Close() error {
	return s.client.Close()
}

// Seed implements store.Store. Categories are replaced. Photos are upserted; like counters of
// existing photos are kept.
func (s *Store) Seed(ctx context.Context, cs []*domain.Category, ps []*domain.Photo) error {
	const op domain.Op = "redisstore.Store.Seed"

	encoded := make([]interface{}, len(cs))
	for i, c := range cs {
		data, err := json.Marshal(c)
		if err != nil {
			return store.ErrBackend(op, err)
		}
		encoded[i] = data
	}

	known, err := s.client.LRange(ctx, s.photoListKey(), 0, -1).Result()
	if err != nil {
		return store.ErrBackend(op, err)
	}
	seen := make(map[string]bool, len(known))
	for _, id := range known {
		seen[id] = true
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.categoryListKey())
		if len(encoded) > 0 {
			pipe.RPush(ctx, s.categoryListKey(), encoded...)
		}

		for _, p := range ps {
			key := s.photoKey(p.ID)
			pipe.HSet(ctx, key,
				"id", p.ID,
				"categoryId", p.CategoryID,
				"src", p.Src,
				"userId", p.UserID)
			pipe.HSetNX(ctx, key, "likes", p.Likes)
			if !seen[p.ID] {
				pipe.RPush(ctx, s.photoListKey(), p.ID)
				seen[p.ID] = true
			}
		}
		return nil
	})
	if err != nil {
		return store.ErrBackend(op, err)
	}
	return nil
}

type users struct {
	s *Store
}

// KEYS[1] = email index, KEYS[2] = user hash; ARGV = id, email, password hash.
var createUserScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], 'id', ARGV[1], 'email', ARGV[2], 'password', ARGV[3])
return 1
`)

func (u users) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	const op domain.Op = "redisstore.Users.Create"

	s := u.s
	id := uuid.New().String()
	created, err := createUserScript.Run(ctx, s.client,
		[]string{s.emailKey(email), s.userKey(id)},
		id, email, passwordHash).Int()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	if created == 0 {
		return nil, store.ErrUserExists(op, email)
	}

	return &domain.User{
		ID:               id,
		Email:            email,
		Password:         passwordHash,
		FavoritePhotoIDs: []string{},
	}, nil
}

func (u users) Find(ctx context.Context, id string) (*domain.User, error) {
	const op domain.Op = "redisstore.Users.Find"

	s := u.s
	fields, err := s.client.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	if len(fields) == 0 {
		return nil, store.ErrUserNotFound(op, "id "+id)
	}

	favs, err := s.client.LRange(ctx, s.favoritesKey(id), 0, -1).Result()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}

	return &domain.User{
		ID:               fields["id"],
		Email:            fields["email"],
		Password:         fields["password"],
		FavoritePhotoIDs: favs,
	}, nil
}

func (u users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op domain.Op = "redisstore.Users.FindByEmail"

	id, err := u.s.client.Get(ctx, u.s.emailKey(email)).Result()
	if err == redis.Nil {
		return nil, store.ErrUserNotFound(op, "email "+email)
	} else if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	return u.Find(ctx, id)
}

func decodePhoto(fields map[string]string) (*domain.Photo, error) {
	categoryID, err := strconv.Atoi(fields["categoryId"])
	if err != nil {
		return nil, fmt.Errorf("malformed categoryId of photo %s: %w", fields["id"], err)
	}
	likes, err := strconv.Atoi(fields["likes"])
	if err != nil {
		return nil, fmt.Errorf("malformed likes of photo %s: %w", fields["id"], err)
	}
	return &domain.Photo{
		ID:         fields["id"],
		CategoryID: categoryID,
		Src:        fields["src"],
		Likes:      likes,
		UserID:     fields["userId"],
	}, nil
}

type photos struct {
	s *Store
}

func (p photos) get(ctx context.Context, op domain.Op, id string) (*domain.Photo, error) {
	fields, err := p.s.client.HGetAll(ctx, p.s.photoKey(id)).Result()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	if len(fields) == 0 {
		return nil, store.ErrPhotoNotFound(op, id)
	}
	photo, err := decodePhoto(fields)
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	return photo, nil
}

func (p photos) Get(ctx context.Context, id string) (*domain.Photo, error) {
	return p.get(ctx, "redisstore.Photos.Get", id)
}

func (p photos) List(ctx context.Context, filter store.PhotoFilter) ([]*domain.Photo, error) {
	const op domain.Op = "redisstore.Photos.List"

	s := p.s
	ids, err := s.client.LRange(ctx, s.photoListKey(), 0, -1).Result()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.photoKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}

	result := []*domain.Photo{}
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		photo, err := decodePhoto(fields)
		if err != nil {
			return nil, store.ErrBackend(op, err)
		}
		if filter.Match(photo) {
			result = append(result, photo)
		}
	}
	return result, nil
}

// KEYS[1] = photo hash
var addLikeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'likes', 1)
`)

func (p photos) AddLike(ctx context.Context, id string) (*domain.Photo, error) {
	const op domain.Op = "redisstore.Photos.AddLike"

	likes, err := addLikeScript.Run(ctx, p.s.client, []string{p.s.photoKey(id)}).Int()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	if likes < 0 {
		return nil, store.ErrPhotoNotFound(op, id)
	}
	return p.get(ctx, op, id)
}

type categories struct {
	s *Store
}

func (c categories) List(ctx context.Context) ([]*domain.Category, error) {
	const op domain.Op = "redisstore.Categories.List"

	encoded, err := c.s.client.LRange(ctx, c.s.categoryListKey(), 0, -1).Result()
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}

	result := make([]*domain.Category, len(encoded))
	for i, data := range encoded {
		category := &domain.Category{}
		if err := json.UnmarshalFromString(data, category); err != nil {
			return nil, store.ErrBackend(op, err)
		}
		result[i] = category
	}
	return result, nil
}

type favorites struct {
	s *Store
}

// KEYS[1] = user hash, KEYS[2] = user's favorites list, KEYS[3] = photo hash; ARGV[1] = photo id.
//
// Returns -1 for unknown user, -2 for unknown photo, 0 when the favorite was removed and 1 when it
// was added.
var toggleFavoriteScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('EXISTS', KEYS[3]) == 0 then
	return -2
end
if redis.call('LREM', KEYS[2], 0, ARGV[1]) > 0 then
	local likes = tonumber(redis.call('HGET', KEYS[3], 'likes') or '0')
	if likes > 0 then
		redis.call('HINCRBY', KEYS[3], 'likes', -1)
	end
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
redis.call('HINCRBY', KEYS[3], 'likes', 1)
return 1
`)

func (f favorites) Toggle(ctx context.Context, userID, photoID string) (*domain.Photo, bool, error) {
	const op domain.Op = "redisstore.Favorites.Toggle"

	s := f.s
	state, err := toggleFavoriteScript.Run(ctx, s.client,
		[]string{s.userKey(userID), s.favoritesKey(userID), s.photoKey(photoID)},
		photoID).Int()
	if err != nil {
		return nil, false, store.ErrBackend(op, err)
	}

	switch state {
	case -1:
		return nil, false, store.ErrUserNotFound(op, "id "+userID)
	case -2:
		return nil, false, store.ErrPhotoNotFound(op, photoID)
	}

	photo, err := photos{s}.get(ctx, op, photoID)
	if err != nil {
		return nil, false, err
	}
	return photo, state == 1, nil
}
