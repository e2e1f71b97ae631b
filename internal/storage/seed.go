package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Seed reference data. These rows are required for the application to
// function and are inserted during bootstrap, not by migrations, so the
// forced repair path can rebuild them.
var (
	seedRoles = []struct {
		Name        string
		Description string
	}{
		{"Administrator", "Full control of the site"},
		{"Editor", "Create and publish content"},
		{"Reader", "Read-only account"},
	}

	seedPermissions = []string{
		"post.create",
		"post.edit",
		"post.delete",
		"post.publish",
		"comment.moderate",
		"settings.manage",
		"user.manage",
		"theme.manage",
	}

	// seedRolePermissions maps role name to permission codes.
	seedRolePermissions = map[string][]string{
		"Administrator": seedPermissions, // all of them
		"Editor":        {"post.create", "post.edit", "post.publish"},
		"Reader":        {},
	}
)

// SeedRoleNames returns the role names the seeder guarantees.
func SeedRoleNames() []string {
	names := make([]string, 0, len(seedRoles))
	for _, r := range seedRoles {
		names = append(names, r.Name)
	}
	return names
}

// SeedReferenceData upserts the fixed roles, permissions, and
// role-permission links. Every statement is an upsert keyed on the natural
// identifier, so re-running after a partial failure converges on the same
// final state.
func (db *DB) SeedReferenceData(ctx context.Context) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin seed tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range seedRoles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO roles (id, name, description) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description`,
			uuid.New(), r.Name, r.Description,
		); err != nil {
			return fmt.Errorf("storage: seed role %s: %w", r.Name, err)
		}
	}

	for _, code := range seedPermissions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO permissions (id, code) VALUES ($1, $2)
			 ON CONFLICT (code) DO NOTHING`,
			uuid.New(), code,
		); err != nil {
			return fmt.Errorf("storage: seed permission %s: %w", code, err)
		}
	}

	for roleName, codes := range seedRolePermissions {
		for _, code := range codes {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_id)
				 SELECT r.id, p.id FROM roles r, permissions p
				 WHERE r.name = $1 AND p.code = $2
				 ON CONFLICT DO NOTHING`,
				roleName, code,
			); err != nil {
				return fmt.Errorf("storage: link %s -> %s: %w", roleName, code, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit seed tx: %w", err)
	}
	return nil
}

// SeedStats summarizes the seeded reference data for verification.
type SeedStats struct {
	Roles           int64
	Permissions     int64
	RolePermissions int64
}

// VerifySeed positively checks the seed invariants: every expected role
// name present, at least one permission, and at least one role-permission
// link. A violation here means the seed did not actually take and the
// bootstrapper must not record success.
func (db *DB) VerifySeed(ctx context.Context) (SeedStats, error) {
	var stats SeedStats

	for _, r := range seedRoles {
		var exists bool
		if err := db.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, r.Name,
		).Scan(&exists); err != nil {
			return stats, fmt.Errorf("storage: probe role %s: %w", r.Name, err)
		}
		if !exists {
			return stats, fmt.Errorf("storage: seed verification: role %q missing", r.Name)
		}
	}

	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM roles`).Scan(&stats.Roles); err != nil {
		return stats, fmt.Errorf("storage: count roles: %w", err)
	}
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM permissions`).Scan(&stats.Permissions); err != nil {
		return stats, fmt.Errorf("storage: count permissions: %w", err)
	}
	if stats.Permissions == 0 {
		return stats, fmt.Errorf("storage: seed verification: no permissions present")
	}
	if err := db.pool.QueryRow(ctx, `SELECT count(*) FROM role_permissions`).Scan(&stats.RolePermissions); err != nil {
		return stats, fmt.Errorf("storage: count role_permissions: %w", err)
	}
	if stats.RolePermissions == 0 {
		return stats, fmt.Errorf("storage: seed verification: no role-permission links present")
	}

	return stats, nil
}
