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

// Package sqlite implements store.Store on a SQLite database through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/botobag/petgram/domain"
	"github.com/botobag/petgram/store"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

var _ store.Store = (*DB)(nil)

// Open opens (and creates if needed) the database at path and makes sure the schema exists.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway; a single connection keeps transactions from failing with
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		cover TEXT NOT NULL,
		name TEXT NOT NULL,
		emoji TEXT NOT NULL,
		path TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS photos (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		category_id INTEGER NOT NULL,
		src TEXT NOT NULL,
		likes INTEGER NOT NULL DEFAULT 0 CHECK (likes >= 0),
		user_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS favorites (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		photo_id TEXT NOT NULL,
		UNIQUE (user_id, photo_id),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE
	);
	`

	_, err := db.Exec(schema)
	return err
}

// Users implements store.Store.
func (db *DB) Users() store.Users { return users{db} }

// Photos implements store.Store.
func (db *DB) Photos() store.Photos { return photos{db} }

// Categories implements store.Store.
func (db *DB) Categories() store.Categories { return categories{db} }

// Favorites implements store.Store.
func (db *DB) Favorites() store.Favorites { return favorites{db} }

// Seed implements store.Store. Existing categories and photos with the same ids are replaced; like
// counters of existing photos are kept.
func (db *DB) Seed(ctx context.Context, cs []*domain.Category, ps []*domain.Photo) error {
	const op domain.Op = "sqlite.DB.Seed"

	return db.inTx(ctx, op, func(tx *sql.Tx) error {
		for _, c := range cs {
			_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO categories (id, cover, name, emoji, path)
			                              VALUES (?, ?, ?, ?, ?)`, c.ID, c.Cover, c.Name, c.Emoji, c.Path)
			if err != nil {
				return err
			}
		}

		for _, p := range ps {
			_, err := tx.ExecContext(ctx, `INSERT INTO photos (id, category_id, src, likes, user_id)
			                              VALUES (?, ?, ?, ?, ?)
			                              ON CONFLICT (id) DO UPDATE SET category_id = excluded.category_id,
			                                src = excluded.src, user_id = excluded.user_id`,
				p.ID, p.CategoryID, p.Src, p.Likes, p.UserID)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction which is committed if fn returns nil and rolled back otherwise.
// Errors that are not *domain.Error are wrapped as backend failures.
func (db *DB) inTx(ctx context.Context, op domain.Op, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return store.ErrBackend(op, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		var e *domain.Error
		if errors.As(err, &e) {
			return err
		}
		return store.ErrBackend(op, err)
	}

	if err := tx.Commit(); err != nil {
		return store.ErrBackend(op, err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func loadFavorites(ctx context.Context, q queryer, user *domain.User) error {
	rows, err := q.QueryContext(ctx, `SELECT photo_id FROM favorites WHERE user_id = ? ORDER BY seq ASC`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	user.FavoritePhotoIDs = []string{}
	for rows.Next() {
		var photoID string
		if err := rows.Scan(&photoID); err != nil {
			return err
		}
		user.FavoritePhotoIDs = append(user.FavoritePhotoIDs, photoID)
	}
	return rows.Err()
}

type users struct {
	db *DB
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (s users) Create(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	const op domain.Op = "sqlite.Users.Create"

	user := &domain.User{
		ID:               uuid.New().String(),
		Email:            email,
		Password:         passwordHash,
		FavoritePhotoIDs: []string{},
	}

	// UNIQUE(email) makes the check-then-insert atomic.
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, password) VALUES (?, ?, ?)`,
		user.ID, user.Email, user.Password)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUserExists(op, email)
		}
		return nil, store.ErrBackend(op, err)
	}

	return user, nil
}

func (s users) find(ctx context.Context, op domain.Op, column, value string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT id, email, password FROM users WHERE ` + column + ` = ?`
	err := s.db.QueryRowContext(ctx, query, value).Scan(&user.ID, &user.Email, &user.Password)
	if err == sql.ErrNoRows {
		return nil, store.ErrUserNotFound(op, column+" "+value)
	} else if err != nil {
		return nil, store.ErrBackend(op, err)
	}

	if err := loadFavorites(ctx, s.db, user); err != nil {
		return nil, store.ErrBackend(op, err)
	}
	return user, nil
}

func (s users) Find(ctx context.Context, id string) (*domain.User, error) {
	return s.find(ctx, "sqlite.Users.Find", "id", id)
}

func (s users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.find(ctx, "sqlite.Users.FindByEmail", "email", email)
}

type photos struct {
	db *DB
}

const photoColumns = `id, category_id, src, likes, user_id`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPhoto(row scanner) (*domain.Photo, error) {
	photo := &domain.Photo{}
	if err := row.Scan(&photo.ID, &photo.CategoryID, &photo.Src, &photo.Likes, &photo.UserID); err != nil {
		return nil, err
	}
	return photo, nil
}

func getPhoto(ctx context.Context, q queryer, op domain.Op, id string) (*domain.Photo, error) {
	photo, err := scanPhoto(q.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, store.ErrPhotoNotFound(op, id)
	} else if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	return photo, nil
}

func (s photos) Get(ctx context.Context, id string) (*domain.Photo, error) {
	return getPhoto(ctx, s.db, "sqlite.Photos.Get", id)
}

func (s photos) List(ctx context.Context, filter store.PhotoFilter) ([]*domain.Photo, error) {
	const op domain.Op = "sqlite.Photos.List"

	var (
		conditions []string
		args       []interface{}
	)
	if filter.CategoryID != nil {
		conditions = append(conditions, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []*domain.Photo{}, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.IDs)), ", ")
		conditions = append(conditions, "id IN ("+placeholders+")")
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + photoColumns + ` FROM photos`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	defer rows.Close()

	result := []*domain.Photo{}
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, store.ErrBackend(op, err)
		}
		result = append(result, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrBackend(op, err)
	}
	return result, nil
}

func (s photos) AddLike(ctx context.Context, id string) (*domain.Photo, error) {
	const op domain.Op = "sqlite.Photos.AddLike"

	var photo *domain.Photo
	err := s.db.inTx(ctx, op, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `UPDATE photos SET likes = likes + 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return store.ErrPhotoNotFound(op, id)
		}

		photo, err = getPhoto(ctx, tx, op, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}

type categories struct {
	db *DB
}

func (s categories) List(ctx context.Context) ([]*domain.Category, error) {
	const op domain.Op = "sqlite.Categories.List"

	rows, err := s.db.QueryContext(ctx, `SELECT id, cover, name, emoji, path FROM categories ORDER BY id ASC`)
	if err != nil {
		return nil, store.ErrBackend(op, err)
	}
	defer rows.Close()

	result := []*domain.Category{}
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Cover, &c.Name, &c.Emoji, &c.Path); err != nil {
			return nil, store.ErrBackend(op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, store.ErrBackend(op, err)
	}
	return result, nil
}

type favorites struct {
	db *DB
}

func (s favorites) Toggle(ctx context.Context, userID, photoID string) (*domain.Photo, bool, error) {
	const op domain.Op = "sqlite.Favorites.Toggle"

	var (
		photo *domain.Photo
		liked bool
	)
	err := s.db.inTx(ctx, op, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return store.ErrUserNotFound(op, "id "+userID)
		}

		if _, err := getPhoto(ctx, tx, op, photoID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = ? AND photo_id = ?`, userID, photoID)
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if removed > 0 {
			_, err = tx.ExecContext(ctx, `UPDATE photos SET likes = MAX(likes - 1, 0) WHERE id = ?`, photoID)
		} else {
			_, err = tx.ExecContext(ctx, `INSERT INTO favorites (user_id, photo_id) VALUES (?, ?)`, userID, photoID)
			if err == nil {
				_, err = tx.ExecContext(ctx, `UPDATE photos SET likes = likes + 1 WHERE id = ?`, photoID)
			}
			liked = true
		}
		if err != nil {
			return err
		}

		photo, err = getPhoto(ctx, tx, op, photoID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return photo, liked, nil
}
