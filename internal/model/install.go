// Package model defines the core domain types shared across packages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// InstallStep is the current step of the installation state machine.
// Steps are strictly ordered and always derived from probes, never stored.
type InstallStep int

const (
	StepNotStarted InstallStep = iota
	StepDatabaseConfig
	StepDatabaseInit
	StepCreateAdmin
	StepCompleted
)

// String returns the wire name of the step.
func (s InstallStep) String() string {
	switch s {
	case StepNotStarted:
		return "not_started"
	case StepDatabaseConfig:
		return "database_config"
	case StepDatabaseInit:
		return "database_init"
	case StepCreateAdmin:
		return "create_admin"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so steps serialize by name.
func (s InstallStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InstallStatus is the derived view of installation progress returned by
// the evaluator. IsInstalled is true only when the installation marker
// exists; it is never inferred from the other probes.
type InstallStatus struct {
	IsInstalled         bool        `json:"is_installed"`
	ConfigExists        bool        `json:"config_exists"`
	DatabaseConnected   bool        `json:"database_connected"`
	DatabaseInitialized bool        `json:"database_initialized"`
	HasAdminUser        bool        `json:"has_admin_user"`
	CurrentStep         InstallStep `json:"current_step"`
}

// User is a server account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the display metadata attached to a user.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role is a named grant bundle.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

// Permission is a single grantable capability.
type Permission struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// RoleAdmin is the role name assigned to the first account. The seeder
// creates it; the admin creator re-creates it if a partial seed lost it.
const RoleAdmin = "Administrator"

// LockRecord is one row of the install_locks table: a cross-process
// coordination record for a named install operation.
type LockRecord struct {
	LockKey    string    `json:"lock_key"`
	HolderID   string    `json:"holder_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
