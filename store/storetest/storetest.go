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

// Package storetest provides a Ginkgo suite that every store.Store implementation must pass.
package storetest

import (
	"context"
	"sync"

	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/internal/testutil"
	"github.com/botobag/petgram/store"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// Categories used by the suite.
func Categories() []*domain.Category {
	return []*domain.Category{
		{ID: 1, Cover: "https://petgram.example/cats.jpg", Name: "cats", Emoji: "🐱", Path: "/pet/1"},
		{ID: 2, Cover: "https://petgram.example/dogs.jpg", Name: "dogs", Emoji: "🐶", Path: "/pet/2"},
	}
}

// Photos used by the suite.
func Photos() []*domain.Photo {
	return []*domain.Photo{
		{ID: "p1", CategoryID: 1, Src: "https://petgram.example/p1.jpg"},
		{ID: "p2", CategoryID: 2, Src: "https://petgram.example/p2.jpg", Likes: 3, UserID: "100"},
		{ID: "p3", CategoryID: 1, Src: "https://petgram.example/p3.jpg"},
	}
}

// DescribeStore registers the conformance specs for the store created by newStore. newStore is called
// before each test and must return an empty store; the store is closed after the test.
func DescribeStore(name string, newStore func() store.Store) bool {
	return Context(name+" conformance", func() {
		var (
			s   store.Store
			ctx context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			s = newStore()
			Expect(s.Seed(ctx, Categories(), Photos())).Should(Succeed())
		})

		AfterEach(func() {
			Expect(s.Close()).Should(Succeed())
		})

		Describe("Users", func() {
			It("creates a user that can be found by id and email", func() {
				user, err := s.Users().Create(ctx, "alice@petgram.example", "hash")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(user.ID).ShouldNot(BeEmpty())
				Expect(user.Email).Should(Equal("alice@petgram.example"))
				Expect(user.FavoritePhotoIDs).Should(BeEmpty())

				byID, err := s.Users().Find(ctx, user.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(byID.Email).Should(Equal("alice@petgram.example"))
				Expect(byID.Password).Should(Equal("hash"))

				byEmail, err := s.Users().FindByEmail(ctx, "alice@petgram.example")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(byEmail.ID).Should(Equal(user.ID))
			})

			It("rejects a registered email", func() {
				_, err := s.Users().Create(ctx, "alice@petgram.example", "hash")
				Expect(err).ShouldNot(HaveOccurred())

				_, err = s.Users().Create(ctx, "alice@petgram.example", "other")
				Expect(err).Should(testutil.MatchDomainError(
					testutil.KindIs(domain.ErrKindAlreadyExists),
					testutil.MessageContainSubstring("already exists"),
				))
			})

			It("compares emails case-sensitively", func() {
				_, err := s.Users().Create(ctx, "alice@petgram.example", "hash")
				Expect(err).ShouldNot(HaveOccurred())

				_, err = s.Users().Create(ctx, "Alice@petgram.example", "hash")
				Expect(err).ShouldNot(HaveOccurred())

				_, err = s.Users().FindByEmail(ctx, "ALICE@petgram.example")
				Expect(domain.IsKind(err, domain.ErrKindNotFound)).Should(BeTrue())
			})

			It("reports unknown users", func() {
				_, err := s.Users().Find(ctx, "nobody")
				Expect(err).Should(testutil.MatchDomainError(testutil.KindIs(domain.ErrKindNotFound)))

				_, err = s.Users().FindByEmail(ctx, "nobody@petgram.example")
				Expect(err).Should(testutil.MatchDomainError(testutil.KindIs(domain.ErrKindNotFound)))
			})

			It("creates exactly one account under concurrent signups with the same email", func() {
				const attempts = 8

				var (
					wg        sync.WaitGroup
					mu        sync.Mutex
					succeeded int
					conflicts int
				)
				for i := 0; i < attempts; i++ {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						_, err := s.Users().Create(ctx, "race@petgram.example", "hash")
						mu.Lock()
						defer mu.Unlock()
						if err == nil {
							succeeded++
						} else if domain.IsKind(err, domain.ErrKindAlreadyExists) {
							conflicts++
						}
					}()
				}
				wg.Wait()

				Expect(succeeded).Should(Equal(1))
				Expect(conflicts).Should(Equal(attempts - 1))
			})
		})

		Describe("Photos", func() {
			It("gets a photo by id", func() {
				photo, err := s.Photos().Get(ctx, "p2")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photo).Should(Equal(&domain.Photo{
					ID:         "p2",
					CategoryID: 2,
					Src:        "https://petgram.example/p2.jpg",
					Likes:      3,
					UserID:     "100",
				}))
			})

			It("reports unknown photos", func() {
				_, err := s.Photos().Get(ctx, "p404")
				Expect(err).Should(testutil.MatchDomainError(
					testutil.KindIs(domain.ErrKindNotFound),
					testutil.MessageEqual("could not find photo with id p404"),
				))
			})

			It("lists all photos in store order", func() {
				photos, err := s.Photos().List(ctx, store.PhotoFilter{})
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photoIDs(photos)).Should(Equal([]string{"p1", "p2", "p3"}))
			})

			It("filters photos by category", func() {
				categoryID := 1
				photos, err := s.Photos().List(ctx, store.PhotoFilter{CategoryID: &categoryID})
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photoIDs(photos)).Should(Equal([]string{"p1", "p3"}))

				categoryID = 42
				photos, err = s.Photos().List(ctx, store.PhotoFilter{CategoryID: &categoryID})
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photos).Should(BeEmpty())
			})

			It("filters photos by ids", func() {
				photos, err := s.Photos().List(ctx, store.PhotoFilter{IDs: []string{"p3", "p1", "p404"}})
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photoIDs(photos)).Should(Equal([]string{"p1", "p3"}))

				photos, err = s.Photos().List(ctx, store.PhotoFilter{IDs: []string{}})
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photos).Should(BeEmpty())
			})

			It("adds anonymous likes without recording favorites", func() {
				user, err := s.Users().Create(ctx, "alice@petgram.example", "hash")
				Expect(err).ShouldNot(HaveOccurred())

				for i := 1; i <= 3; i++ {
					photo, err := s.Photos().AddLike(ctx, "p1")
					Expect(err).ShouldNot(HaveOccurred())
					Expect(photo.Likes).Should(Equal(i))
				}

				user, err = s.Users().Find(ctx, user.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(user.FavoritePhotoIDs).Should(BeEmpty())
			})

			It("rejects anonymous likes of unknown photos", func() {
				_, err := s.Photos().AddLike(ctx, "p404")
				Expect(err).Should(testutil.MatchDomainError(testutil.KindIs(domain.ErrKindNotFound)))
			})
		})

		Describe("Categories", func() {
			It("lists categories verbatim", func() {
				categories, err := s.Categories().List(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(categories).Should(Equal(Categories()))
			})
		})

		Describe("Favorites", func() {
			var user *domain.User

			BeforeEach(func() {
				var err error
				user, err = s.Users().Create(ctx, "alice@petgram.example", "hash")
				Expect(err).ShouldNot(HaveOccurred())
			})

			It("toggles the favorite relation together with the like counter", func() {
				photo, liked, err := s.Favorites().Toggle(ctx, user.ID, "p1")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(liked).Should(BeTrue())
				Expect(photo.Likes).Should(Equal(1))

				u, err := s.Users().Find(ctx, user.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(u.FavoritePhotoIDs).Should(Equal([]string{"p1"}))

				photo, liked, err = s.Favorites().Toggle(ctx, user.ID, "p1")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(liked).Should(BeFalse())
				Expect(photo.Likes).Should(Equal(0))

				u, err = s.Users().Find(ctx, user.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(u.FavoritePhotoIDs).Should(BeEmpty())
			})

			It("keeps favorites in the order they were added", func() {
				for _, id := range []string{"p3", "p1", "p2"} {
					_, _, err := s.Favorites().Toggle(ctx, user.ID, id)
					Expect(err).ShouldNot(HaveOccurred())
				}

				u, err := s.Users().Find(ctx, user.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(u.FavoritePhotoIDs).Should(Equal([]string{"p3", "p1", "p2"}))
			})

			It("never decrements a like counter below zero", func() {
				_, err := s.Photos().AddLike(ctx, "p1")
				Expect(err).ShouldNot(HaveOccurred())

				photo, liked, err := s.Favorites().Toggle(ctx, user.ID, "p1")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(liked).Should(BeTrue())
				Expect(photo.Likes).Should(Equal(2))

				photo, liked, err = s.Favorites().Toggle(ctx, user.ID, "p1")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(liked).Should(BeFalse())
				Expect(photo.Likes).Should(Equal(1))
			})

			It("leaves state untouched when the photo is unknown", func() {
				_, _, err := s.Favorites().Toggle(ctx, user.ID, "p404")
				Expect(err).Should(testutil.MatchDomainError(testutil.KindIs(domain.ErrKindNotFound)))

				u, err := s.Users().Find(ctx, user.ID)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(u.FavoritePhotoIDs).Should(BeEmpty())
			})

			It("leaves state untouched when the user is unknown", func() {
				_, _, err := s.Favorites().Toggle(ctx, "nobody", "p1")
				Expect(err).Should(testutil.MatchDomainError(testutil.KindIs(domain.ErrKindNotFound)))

				photo, err := s.Photos().Get(ctx, "p1")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photo.Likes).Should(Equal(0))
			})

			It("keeps counters consistent under concurrent toggles", func() {
				const numUsers = 6

				userIDs := []string{user.ID}
				for i := 1; i < numUsers; i++ {
					u, err := s.Users().Create(ctx, "user"+string(rune('a'+i))+"@petgram.example", "hash")
					Expect(err).ShouldNot(HaveOccurred())
					userIDs = append(userIDs, u.ID)
				}

				// Every user toggles three times, so every user ends up liking the photo.
				var wg sync.WaitGroup
				for _, id := range userIDs {
					wg.Add(1)
					go func(id string) {
						defer GinkgoRecover()
						defer wg.Done()
						for i := 0; i < 3; i++ {
							_, _, err := s.Favorites().Toggle(ctx, id, "p3")
							Expect(err).ShouldNot(HaveOccurred())
						}
					}(id)
				}
				wg.Wait()

				photo, err := s.Photos().Get(ctx, "p3")
				Expect(err).ShouldNot(HaveOccurred())
				Expect(photo.Likes).Should(Equal(numUsers))

				for _, id := range userIDs {
					u, err := s.Users().Find(ctx, id)
					Expect(err).ShouldNot(HaveOccurred())
					Expect(u.FavoritePhotoIDs).Should(Equal([]string{"p3"}))
				}
			})
		})
	})
}

func photoIDs(photos []*domain.Photo) []string {
	ids := make([]string, len(photos))
	for i, photo := range photos {
		ids[i] = photo.ID
	}
	return ids
}
