package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plumeworks/plume/internal/model"
)

// Duplicate-field sentinels for admin creation. The caller reports which
// field conflicted, so these stay distinct.
var (
	ErrUsernameTaken = errors.New("storage: username already taken")
	ErrEmailTaken    = errors.New("storage: email already taken")
)

// FindUserConflict checks whether username or email is already in use and
// returns the matching sentinel, or nil when both are free.
func (db *DB) FindUserConflict(ctx context.Context, username, email string) error {
	var usernameTaken, emailTaken bool
	err := db.pool.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM users WHERE username = $1),
		   EXISTS (SELECT 1 FROM users WHERE email = $2)`,
		username, email,
	).Scan(&usernameTaken, &emailTaken)
	if err != nil {
		return fmt.Errorf("storage: probe user conflict: %w", err)
	}
	if usernameTaken {
		return ErrUsernameTaken
	}
	if emailTaken {
		return ErrEmailTaken
	}
	return nil
}

// GetUserByUsername returns the user with the given username, or ErrNotFound.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

// CountUsers returns the total number of user rows.
func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count users: %w", err)
	}
	return n, nil
}

// HasRoleAssignment reports whether any user holds the named role.
// The query fails (rather than returning false) when the RBAC tables are
// missing, so callers can tell "no admin yet" from "schema broken".
func (db *DB) HasRoleAssignment(ctx context.Context, roleName string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM user_roles ur
		   JOIN roles r ON r.id = ur.role_id
		   WHERE r.name = $1
		 )`,
		roleName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: probe role assignment: %w", err)
	}
	return exists, nil
}

// CreateAdminUser atomically creates the user row, its profile, the admin
// role (re-created if a partial seed lost it), and the role assignment.
// Any failing step rolls back the whole unit, so no partial account can
// persist. Unique violations surface as the field-specific sentinels.
func (db *DB) CreateAdminUser(ctx context.Context, user model.User, profile model.Profile) (model.User, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.User{}, fmt.Errorf("storage: begin create admin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt,
	); err != nil {
		switch {
		case IsUniqueViolation(err, "users_username_key"):
			return model.User{}, ErrUsernameTaken
		case IsUniqueViolation(err, "users_email_key"):
			return model.User{}, ErrEmailTaken
		}
		return model.User{}, fmt.Errorf("storage: insert user: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_profiles (user_id, display_name, updated_at)
		 VALUES ($1, $2, now())`,
		user.ID, profile.DisplayName,
	); err != nil {
		return model.User{}, fmt.Errorf("storage: insert profile: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO roles (id, name, description)
		 VALUES ($1, $2, 'Full control of the site')
		 ON CONFLICT (name) DO NOTHING`,
		uuid.New(), model.RoleAdmin,
	); err != nil {
		return model.User{}, fmt.Errorf("storage: ensure admin role: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE name = $2
		 ON CONFLICT DO NOTHING`,
		user.ID, model.RoleAdmin,
	); err != nil {
		return model.User{}, fmt.Errorf("storage: assign admin role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, fmt.Errorf("storage: commit create admin tx: %w", err)
	}
	return user, nil
}
