package install

import (
	"context"
	"time"

	"github.com/plumeworks/plume/internal/storage"
	"github.com/plumeworks/plume/migrations"
)

// InitResult reports what Initialize did.
type InitResult struct {
	AlreadyInitialized bool      `json:"already_initialized"`
	Method             string    `json:"method"`
	Roles              int64     `json:"roles"`
	Permissions        int64     `json:"permissions"`
	RolePermissions    int64     `json:"role_permissions"`
	InitializedAt      time.Time `json:"initialized_at"`
}

// Initialize bootstraps the database: schema, seed data, verification,
// marker — in that order, each step idempotent, all under the
// database-initialization composite lock. force reinitializes from
// scratch (the repair path): the marker is deleted and the schema dropped
// before a fresh create.
//
// The db-init marker is written only after both the schema and the seed
// have been positively verified; a cancelled or failed run leaves no
// marker and can simply be retried.
func (s *Service) Initialize(ctx context.Context, force bool) (InitResult, error) {
	h, err := s.locks.Acquire(ctx, OpDatabaseInit, initLockWait, initLockTTL)
	if err != nil {
		return InitResult{}, lockError(err)
	}
	defer h.Release(ctx)

	// A valid configuration is required; this step never invents one.
	doc, err := s.cfg.Peek()
	if err != nil {
		return InitResult{}, Validationf("database is not configured: %v", err)
	}

	if !force && s.markers.DBInitialized() {
		marker, err := s.markers.ReadDBInit()
		if err == nil {
			return InitResult{
				AlreadyInitialized: true,
				Method:             marker.Method,
				InitializedAt:      marker.InitializedAt,
			}, nil
		}
		// Unreadable marker: fall through and rebuild it.
		s.logger.Warn("db-init marker unreadable, re-verifying", "error", err)
	}

	method := MethodDirect
	if force {
		method = MethodRepair
		if err := s.markers.DeleteDBInit(); err != nil {
			return InitResult{}, Internal("remove db-init marker", err)
		}
	}

	db, err := s.database(ctx)
	if err != nil {
		return InitResult{}, err
	}
	if err := db.Ping(ctx); err != nil {
		return InitResult{}, Connectivity("database unreachable", err)
	}

	if force {
		s.logger.Warn("forced reinitialization requested, dropping schema")
		if err := db.DropAll(ctx); err != nil {
			return InitResult{}, Internal("drop schema", err)
		}
	}

	if err := s.createAndVerifySchema(ctx, db); err != nil {
		return InitResult{}, err
	}

	// Seeding retries on transient serialization conflicts; the upserts
	// make replays harmless.
	if err := storage.WithRetry(ctx, 2, 100*time.Millisecond, func() error {
		return db.SeedReferenceData(ctx)
	}); err != nil {
		return InitResult{}, Internal("seed reference data", err)
	}

	stats, err := db.VerifySeed(ctx)
	if err != nil {
		return InitResult{}, Integrity("seed verification failed", err)
	}

	now := time.Now().UTC()
	if err := s.markers.WriteDBInit(DBInitMarker{
		InitializedAt: now,
		Method:        method,
		Provider:      doc.Database.Provider,
	}); err != nil {
		return InitResult{}, Internal("write db-init marker", err)
	}

	s.logger.Info("database initialized",
		"method", method,
		"roles", stats.Roles,
		"permissions", stats.Permissions,
	)
	return InitResult{
		Method:          method,
		Roles:           stats.Roles,
		Permissions:     stats.Permissions,
		RolePermissions: stats.RolePermissions,
		InitializedAt:   now,
	}, nil
}

// createAndVerifySchema runs migrations and positively verifies that every
// expected table is queryable. Creation success alone is not trusted. A
// failed verification gets exactly one destructive drop-and-recreate
// retry; a second failure is fatal.
func (s *Service) createAndVerifySchema(ctx context.Context, db *storage.DB) error {
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return Internal("create schema", err)
	}

	missing, err := db.VerifyTables(ctx)
	if err != nil {
		return Internal("verify schema", err)
	}
	if len(missing) == 0 {
		return nil
	}

	s.logger.Warn("schema verification found missing tables, recreating",
		"missing", missing)
	if err := db.DropAll(ctx); err != nil {
		return Internal("drop schema for recreate", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return Internal("recreate schema", err)
	}

	missing, err = db.VerifyTables(ctx)
	if err != nil {
		return Internal("verify recreated schema", err)
	}
	if len(missing) > 0 {
		return Integrity("schema verification failed after recreate", nil)
	}
	return nil
}
