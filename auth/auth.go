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

// Package auth issues and validates session tokens.
//
// Tokens are stateless HS256 JWTs carrying the id and email of a user. Passwords are stored as
// bcrypt hashes and compared in constant time.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"

	"golang.org/x/crypto/bcrypt"
)

// Delay is run at the start of Signup and Login. It only blocks the calling goroutine. The default
// sleeps for Config.DelayDuration.
type Delay func(ctx context.Context)

// SleepDelay returns a Delay that sleeps for d or until ctx is done, whichever comes first.
func SleepDelay(d time.Duration) Delay {
	return func(ctx context.Context) {
		if d <= 0 {
			return
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
}

// Config contains settings of a Service.
type Config struct {
	// Secret signs and verifies tokens. Required.
	Secret []byte

	// SignupTTL is the lifetime of tokens returned by Signup. Defaults to one year.
	SignupTTL time.Duration

	// LoginTTL is the lifetime of tokens returned by Login. Defaults to one day.
	LoginTTL time.Duration

	// BcryptCost is the cost of password hashes. Defaults to bcrypt.DefaultCost.
	BcryptCost int

	// Delay overrides the artificial latency of Signup and Login. If nil, SleepDelay(DelayDuration)
	// is used.
	Delay Delay

	// DelayDuration is used when Delay is nil. Zero disables the delay.
	DelayDuration time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Service implements signup, login and token authentication over a user store.
type Service struct {
	users  store.Users
	config Config
}

// maxPasswordLen is the longest password bcrypt accepts.
const maxPasswordLen = 72

var errMissingSecret = errors.New("auth: a secret for signing tokens must be specified")

// New creates a Service.
func New(users store.Users, config Config) (*Service, error) {
	if len(config.Secret) == 0 {
		return nil, errMissingSecret
	}

	if config.SignupTTL <= 0 {
		config.SignupTTL = 365 * 24 * time.Hour
	}
	if config.LoginTTL <= 0 {
		config.LoginTTL = 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if config.Delay == nil {
		config.Delay = SleepDelay(config.DelayDuration)
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Service{
		users:  users,
		config: config,
	}, nil
}

// Signup registers a user and returns a session token for it. It fails with ErrKindAlreadyExists if
// the email has been registered and ErrKindInvalidInput for a password longer than 72 bytes.
func (s *Service) Signup(ctx context.Context, email, password string) (string, error) {
	const op domain.Op = "auth.Service.Signup"

	s.config.Delay(ctx)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.NewError(fmt.Sprintf("password must not be longer than %d bytes", maxPasswordLen),
				op, domain.ErrKindInvalidInput, err)
		}
		return "", domain.NewError("failed to hash password", op, domain.ErrKindInternal, err)
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		return "", domain.NewError("", op, err)
	}

	token, err := s.issueToken(user, s.config.SignupTTL)
	if err != nil {
		return "", domain.NewError("failed to sign token", op, domain.ErrKindInternal, err)
	}
	return token, nil
}

// Login checks the password of a registered user and returns a session token. It fails with
// ErrKindNotFound for an unknown email and ErrKindInvalidCredentials for a wrong password.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	const op domain.Op = "auth.Service.Login"

	s.config.Delay(ctx)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if domain.IsKind(err, domain.ErrKindNotFound) {
			return "", domain.NewError("there is no user with that email", op, err)
		}
		return "", domain.NewError("", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return "", domain.NewError("incorrect password", op, domain.ErrKindInvalidCredentials)
		}
		return "", domain.NewError("failed to verify password", op, domain.ErrKindInternal, err)
	}

	token, err := s.issueToken(user, s.config.LoginTTL)
	if err != nil {
		return "", domain.NewError("failed to sign token", op, domain.ErrKindInternal, err)
	}
	return token, nil
}

// Authenticate verifies the signature and expiry of a token and returns the identity it carries.
func (s *Service) Authenticate(token string) (domain.Identity, error) {
	const op domain.Op = "auth.Service.Authenticate"

	claims, err := s.parseToken(token)
	if err != nil {
		return domain.Identity{}, domain.NewError("invalid or expired token", op, domain.ErrKindUnauthenticated, err)
	}

	return domain.Identity{
		ID:    claims.ID,
		Email: claims.Email,
	}, nil
}
