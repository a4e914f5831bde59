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

package domain

// User is a registered account. Password holds the bcrypt hash, never the plain text.
type User struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Password         string   `json:"-"`
	FavoritePhotoIDs []string `json:"favs"`
}

// Clone returns a deep copy of the user so stores can hand out records without sharing the
// favorites slice.
func (u *User) Clone() *User {
	c := *u
	if u.FavoritePhotoIDs != nil {
		c.FavoritePhotoIDs = make([]string, len(u.FavoritePhotoIDs))
		copy(c.FavoritePhotoIDs, u.FavoritePhotoIDs)
	}
	return &c
}

// Photo is a picture in a category. Whether the requesting user likes it is not stored; see
// Favorites.
type Photo struct {
	ID         string `json:"id"`
	CategoryID int    `json:"categoryId"`
	Src        string `json:"src"`
	Likes      int    `json:"likes"`
	UserID     string `json:"userId,omitempty"`
}

// Category is read-only reference data.
type Category struct {
	ID    int    `json:"id"`
	Cover string `json:"cover"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Path  string `json:"path"`
}

// Favorites is a set of photo ids used to derive the "liked" flag of photos for one request.
type Favorites map[string]struct{}

// FavoritesOf builds Favorites from a list of photo ids.
func FavoritesOf(ids []string) Favorites {
	favs := make(Favorites, len(ids))
	for _, id := range ids {
		favs[id] = struct{}{}
	}
	return favs
}

// Contains returns true if id is in the set. It is safe to call on a nil set.
func (favs Favorites) Contains(id string) bool {
	_, ok := favs[id]
	return ok
}
