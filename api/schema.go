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

// Package api defines the Petgram GraphQL schema.
//
// Resolvers read the caller's identity from the domain.AuthContext in the request context; the
// HTTP layer (see package handler) is responsible for putting it there. Errors returned from
// resolvers are *Error values which carry a machine-readable code in the "extensions" of the
// GraphQL error.
package api

import (
	"github.com/botobag/petgram/auth"
	"github.com/botobag/petgram/store"

	"github.com/graphql-go/graphql"
)

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.NewNonNull(graphql.ID),
		},
		// avatar, name and isPremium are reserved and always null.
		"avatar": &graphql.Field{
			Type:    graphql.String,
			Resolve: resolveNull,
		},
		"name": &graphql.Field{
			Type:    graphql.String,
			Resolve: resolveNull,
		},
		"email": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
		},
		"isPremium": &graphql.Field{
			Type:    graphql.Boolean,
			Resolve: resolveNull,
		},
	},
})

func resolveNull(p graphql.ResolveParams) (interface{}, error) {
	return nil, nil
}

// resolvePhoto returns a FieldResolveFn that reads a field from the photoView in p.Source.
func resolvePhoto(get func(view *photoView) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		view, ok := p.Source.(*photoView)
		if !ok {
			return nil, nil
		}
		return get(view), nil
	}
}

var photoType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Photo",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.NewNonNull(graphql.ID),
			Resolve: resolvePhoto(func(view *photoView) interface{} {
				return view.photo.ID
			}),
		},
		"categoryId": &graphql.Field{
			Type: graphql.Int,
			Resolve: resolvePhoto(func(view *photoView) interface{} {
				return view.photo.CategoryID
			}),
		},
		"src": &graphql.Field{
			Type: graphql.String,
			Resolve: resolvePhoto(func(view *photoView) interface{} {
				return view.photo.Src
			}),
		},
		"likes": &graphql.Field{
			Type: graphql.Int,
			Resolve: resolvePhoto(func(view *photoView) interface{} {
				return view.photo.Likes
			}),
		},
		"liked": &graphql.Field{
			Type: graphql.Boolean,
			Resolve: resolvePhoto(func(view *photoView) interface{} {
				return view.liked
			}),
		},
		"userId": &graphql.Field{
			Type: graphql.ID,
			Resolve: resolvePhoto(func(view *photoView) interface{} {
				if len(view.photo.UserID) == 0 {
					return nil
				}
				return view.photo.UserID
			}),
		},
	},
})

// Category fields are resolved from the json tags of domain.Category by the default resolver.
var categoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Category",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.ID,
		},
		"cover": &graphql.Field{
			Type: graphql.String,
		},
		"name": &graphql.Field{
			Type: graphql.String,
		},
		"emoji": &graphql.Field{
			Type: graphql.String,
		},
		"path": &graphql.Field{
			Type: graphql.String,
		},
	},
})

var likePhotoInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "LikePhoto",
	Fields: graphql.InputObjectConfigFieldMap{
		"id": &graphql.InputObjectFieldConfig{
			Type: graphql.NewNonNull(graphql.ID),
		},
	},
})

var userCredentialsInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "UserCredentials",
	Fields: graphql.InputObjectConfigFieldMap{
		"email": &graphql.InputObjectFieldConfig{
			Type: graphql.NewNonNull(graphql.String),
		},
		"password": &graphql.InputObjectFieldConfig{
			Type: graphql.NewNonNull(graphql.String),
		},
	},
})

// New creates the Petgram schema served from s. authService is used by the signup and login
// mutations.
func New(s store.Store, authService *auth.Service) (graphql.Schema, error) {
	r := &resolver{
		store: s,
		auth:  authService,
	}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"favs": &graphql.Field{
				Type:        graphql.NewList(photoType),
				Description: "Photos liked by the authenticated user",
				Resolve:     r.favs,
			},
			"categories": &graphql.Field{
				Type:    graphql.NewList(categoryType),
				Resolve: r.categories,
			},
			"photos": &graphql.Field{
				Type: graphql.NewList(photoType),
				Args: graphql.FieldConfigArgument{
					"categoryId": &graphql.ArgumentConfig{
						Type: graphql.ID,
					},
				},
				Resolve: r.photos,
			},
			"photo": &graphql.Field{
				Type: photoType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{
						Type: graphql.NewNonNull(graphql.ID),
					},
				},
				Resolve: r.photo,
			},
		},
	})

	likeArgs := graphql.FieldConfigArgument{
		"input": &graphql.ArgumentConfig{
			Type: graphql.NewNonNull(likePhotoInputType),
		},
	}
	credentialArgs := graphql.FieldConfigArgument{
		"input": &graphql.ArgumentConfig{
			Type: graphql.NewNonNull(userCredentialsInputType),
		},
	}

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"likeAnonymousPhoto": &graphql.Field{
				Type:        photoType,
				Description: "Increments the likes of a photo without recording who liked it",
				Args:        likeArgs,
				Resolve:     r.likeAnonymousPhoto,
			},
			"likePhoto": &graphql.Field{
				Type:        photoType,
				Description: "Toggles the photo in the favorites of the authenticated user",
				Args:        likeArgs,
				Resolve:     r.likePhoto,
			},
			"signup": &graphql.Field{
				Type:    graphql.String,
				Args:    credentialArgs,
				Resolve: r.signup,
			},
			"login": &graphql.Field{
				Type:    graphql.String,
				Args:    credentialArgs,
				Resolve: r.login,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
		Types:    []graphql.Type{userType},
	})
}
