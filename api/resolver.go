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

package api

import (
	"context"
	"strconv"

	"github.com/botobag/petgram/auth"
	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"

	"github.com/graphql-go/graphql"
)

// photoView is a photo as seen by the requesting user.
type photoView struct {
	photo *domain.Photo
	liked bool
}

// resolver implements the root fields of the schema on top of a store and an auth service.
type resolver struct {
	store store.Store
	auth  *auth.Service
}

// currentUser returns the user record of the identity in ctx. An anonymous caller or a token whose
// user no longer exists yields an ErrKindUnauthenticated error.
func (r *resolver) currentUser(ctx context.Context, op domain.Op) (*domain.User, error) {
	identity, err := domain.AuthContextFrom(ctx).Require(op)
	if err != nil {
		return nil, err
	}

	user, err := r.store.Users().Find(ctx, identity.ID)
	if err != nil {
		if domain.IsKind(err, domain.ErrKindNotFound) {
			return nil, domain.NewError("user does not exist", op, domain.ErrKindUnauthenticated, err)
		}
		return nil, domain.NewError("", op, err)
	}
	return user, nil
}

// favorites returns the favorites of the caller. Anonymous callers have none.
func (r *resolver) favorites(ctx context.Context, op domain.Op) (domain.Favorites, error) {
	identity, ok := domain.AuthContextFrom(ctx).Identity()
	if !ok {
		return nil, nil
	}

	user, err := r.store.Users().Find(ctx, identity.ID)
	if err != nil {
		if domain.IsKind(err, domain.ErrKindNotFound) {
			return nil, nil
		}
		return nil, domain.NewError("", op, err)
	}
	return domain.FavoritesOf(user.FavoritePhotoIDs), nil
}

func viewPhotos(photos []*domain.Photo, favs domain.Favorites) []*photoView {
	views := make([]*photoView, len(photos))
	for i, photo := range photos {
		views[i] = &photoView{
			photo: photo,
			liked: favs.Contains(photo.ID),
		}
	}
	return views
}

// inputField reads a string field from the "input" argument.
func inputField(p graphql.ResolveParams, name string) string {
	input, _ := p.Args["input"].(map[string]interface{})
	value, _ := input[name].(string)
	return value
}

func (r *resolver) categories(p graphql.ResolveParams) (interface{}, error) {
	categories, err := r.store.Categories().List(p.Context)
	if err != nil {
		return nil, presentError(err)
	}
	return categories, nil
}

func (r *resolver) photos(p graphql.ResolveParams) (interface{}, error) {
	const op domain.Op = "api.photos"

	var filter store.PhotoFilter
	if arg, ok := p.Args["categoryId"].(string); ok {
		categoryID, err := strconv.Atoi(arg)
		if err != nil {
			// Category ids are integers; nothing else can match.
			return []*photoView{}, nil
		}
		filter.CategoryID = &categoryID
	}

	favs, err := r.favorites(p.Context, op)
	if err != nil {
		return nil, presentError(err)
	}

	photos, err := r.store.Photos().List(p.Context, filter)
	if err != nil {
		return nil, presentError(err)
	}
	return viewPhotos(photos, favs), nil
}

func (r *resolver) photo(p graphql.ResolveParams) (interface{}, error) {
	const op domain.Op = "api.photo"

	id, _ := p.Args["id"].(string)

	favs, err := r.favorites(p.Context, op)
	if err != nil {
		return nil, presentError(err)
	}

	photo, err := r.store.Photos().Get(p.Context, id)
	if err != nil {
		return nil, presentError(err)
	}
	return &photoView{
		photo: photo,
		liked: favs.Contains(photo.ID),
	}, nil
}

func (r *resolver) favs(p graphql.ResolveParams) (interface{}, error) {
	const op domain.Op = "api.favs"

	user, err := r.currentUser(p.Context, op)
	if err != nil {
		return nil, presentError(err)
	}

	// An empty (non-nil) id list selects nothing.
	ids := user.FavoritePhotoIDs
	if ids == nil {
		ids = []string{}
	}

	photos, err := r.store.Photos().List(p.Context, store.PhotoFilter{IDs: ids})
	if err != nil {
		return nil, presentError(err)
	}

	views := make([]*photoView, len(photos))
	for i, photo := range photos {
		views[i] = &photoView{
			photo: photo,
			liked: true,
		}
	}
	return views, nil
}

func (r *resolver) likeAnonymousPhoto(p graphql.ResolveParams) (interface{}, error) {
	const op domain.Op = "api.likeAnonymousPhoto"

	id := inputField(p, "id")

	// Resolve the caller first so a failed lookup doesn't leave the like counted.
	favs, err := r.favorites(p.Context, op)
	if err != nil {
		return nil, presentError(err)
	}

	photo, err := r.store.Photos().AddLike(p.Context, id)
	if err != nil {
		return nil, presentError(err)
	}
	return &photoView{
		photo: photo,
		liked: favs.Contains(photo.ID),
	}, nil
}

func (r *resolver) likePhoto(p graphql.ResolveParams) (interface{}, error) {
	const op domain.Op = "api.likePhoto"

	user, err := r.currentUser(p.Context, op)
	if err != nil {
		return nil, presentError(err)
	}

	photo, liked, err := r.store.Favorites().Toggle(p.Context, user.ID, inputField(p, "id"))
	if err != nil {
		return nil, presentError(err)
	}
	return &photoView{
		photo: photo,
		liked: liked,
	}, nil
}

func (r *resolver) signup(p graphql.ResolveParams) (interface{}, error) {
	token, err := r.auth.Signup(p.Context, inputField(p, "email"), inputField(p, "password"))
	if err != nil {
		return nil, presentError(err)
	}
	return token, nil
}

func (r *resolver) login(p graphql.ResolveParams) (interface{}, error) {
	token, err := r.auth.Login(p.Context, inputField(p, "email"), inputField(p, "password"))
	if err != nil {
		return nil, presentError(err)
	}
	return token, nil
}
