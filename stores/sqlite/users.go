// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/spf13/afero"
)

// invalidHash is a bcrypt-shaped value that never matches a password.
const invalidHash = "$2a$10$INVALID.HASH.THAT.WILL.NEVER.MATCH.ANY.PASSWORD.EVER"

type jsonUser struct {
	Handle   string   `json:"handle"`
	UserName string   `json:"user-name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

// LoadUsersFromJSON upserts the users listed in a JSON file.
// A user needs the "active" role and a password to be able to log in;
// the "admin" role makes the user an administrator.
// Passwords are hashed with hasher.
func (s *SQLiteStore) LoadUsersFromJSON(ctx context.Context, fs afero.Fs, path string, hasher auth.Hasher) (int, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, fmt.Errorf("read users file: %w", err)
	}

	var users []jsonUser
	if err := json.Unmarshal(data, &users); err != nil {
		return 0, fmt.Errorf("parse users json: %w", err)
	}

	for _, ju := range users {
		active := slices.Contains(ju.Roles, "active")

		hash := invalidHash
		if active && ju.Password != "" {
			hash, err = hasher.Hash(ju.Password)
			if err != nil {
				return 0, fmt.Errorf("hash password for %s: %w", ju.Handle, err)
			}
		}

		role := model.RoleWriter
		if slices.Contains(ju.Roles, model.RoleAdmin) {
			role = model.RoleAdmin
		}

		userName := ju.UserName
		if userName == "" {
			userName = ju.Handle
		}

		if err := s.UpsertUser(ctx, &model.User{
			Handle:       ju.Handle,
			UserName:     userName,
			Email:        ju.Email,
			PasswordHash: hash,
			Role:         role,
		}, active); err != nil {
			return 0, err
		}
	}
	return len(users), nil
}

// UpsertUser inserts or replaces a user. PasswordHash must already be a bcrypt hash.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *model.User, active bool) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (handle, user_name, email, password_hash, role, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			user_name = excluded.user_name,
			email = excluded.email,
			password_hash = excluded.password_hash,
			role = excluded.role,
			active = excluded.active
	`, u.Handle, u.UserName, nullString(u.Email), u.PasswordHash, u.Role, boolToInt(active), formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.Handle, err)
	}
	return nil
}

// ValidateCredentials checks handle/password and returns the user, or nil
// when the user is unknown, inactive, or the password does not match.
func (s *SQLiteStore) ValidateCredentials(ctx context.Context, handle, password string) (*auth.User, error) {
	const query = `SELECT handle, user_name, password_hash, role, active FROM users WHERE handle = ?`

	var dbHandle, userName, passwordHash, role string
	var active int
	err := s.db.QueryRowContext(ctx, query, handle).Scan(&dbHandle, &userName, &passwordHash, &role, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	if active != 1 {
		return nil, nil
	}
	if !auth.CheckPassword(password, passwordHash) {
		return nil, nil
	}
	return &auth.User{
		Handle:   dbHandle,
		UserName: userName,
		Role:     role,
	}, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
