package install

import (
	"context"

	"github.com/plumeworks/plume/internal/model"
)

// Status derives the current installation step from probes. It is
// read-only, takes no locks, and is deterministic for an unchanging
// environment. The evaluation short-circuits in order: installation
// marker, configuration, connectivity, initialization, admin presence.
//
// Probe failures never regress the step below what confirmed facts
// support: once a valid configuration exists, an unreachable store yields
// DatabaseInit (or CreateAdmin when the db-init marker survives), never
// DatabaseConfig — re-deriving configuration is more destructive than
// retrying initialization.
func (s *Service) Status(ctx context.Context) model.InstallStatus {
	status := model.InstallStatus{CurrentStep: model.StepNotStarted}

	// The installation marker is the sole source of truth for completion.
	if s.markers.Installed() {
		status.IsInstalled = true
		status.ConfigExists = s.cfg.Exists()
		status.DatabaseInitialized = s.markers.DBInitialized()
		status.HasAdminUser = true
		status.CurrentStep = model.StepCompleted
		return status
	}

	// Absent and invalid documents are treated the same: the config step
	// must run (again).
	if _, err := s.cfg.Peek(); err != nil {
		status.CurrentStep = model.StepDatabaseConfig
		return status
	}
	status.ConfigExists = true

	db, err := s.database(ctx)
	if err != nil {
		// Record the outage but keep deriving from what we know: a
		// transient failure must not send an initialized install back to
		// the config step.
		s.logger.Warn("status probe: database unreachable", "error", err)
		status.DatabaseInitialized = s.markers.DBInitialized()
		if status.DatabaseInitialized {
			status.CurrentStep = model.StepCreateAdmin
		} else {
			status.CurrentStep = model.StepDatabaseInit
		}
		return status
	}
	status.DatabaseConnected = true

	status.DatabaseInitialized = s.markers.DBInitialized()
	if !status.DatabaseInitialized {
		// A lost marker file should not force a destructive re-init when
		// the schema and seed are demonstrably present.
		if missing, err := db.VerifyTables(ctx); err == nil && len(missing) == 0 {
			if _, err := db.VerifySeed(ctx); err == nil {
				status.DatabaseInitialized = true
			}
		}
	}
	if !status.DatabaseInitialized {
		status.CurrentStep = model.StepDatabaseInit
		return status
	}

	hasAdmin, err := db.HasRoleAssignment(ctx, model.RoleAdmin)
	if err != nil {
		// A failing admin probe on a reachable store means the schema is
		// broken, not that no admin exists. Route back to initialization
		// instead of inviting an admin-creation attempt that cannot work.
		s.logger.Warn("status probe: admin probe failed, schema suspect", "error", err)
		status.DatabaseInitialized = false
		status.CurrentStep = model.StepDatabaseInit
		return status
	}
	status.HasAdminUser = hasAdmin

	if !hasAdmin {
		status.CurrentStep = model.StepCreateAdmin
		return status
	}

	// Everything verifiable passed, but completion is never inferred:
	// IsInstalled stays false until the marker is written, and the step
	// points at the remaining completion action.
	status.CurrentStep = model.StepCompleted
	return status
}
