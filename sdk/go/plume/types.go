package plume

import "time"

// InstallStatus mirrors the server's installation state snapshot.
type InstallStatus struct {
	IsInstalled         bool   `json:"is_installed"`
	ConfigExists        bool   `json:"config_exists"`
	DatabaseConnected   bool   `json:"database_connected"`
	DatabaseInitialized bool   `json:"database_initialized"`
	HasAdminUser        bool   `json:"has_admin_user"`
	CurrentStep         string `json:"current_step"`
}

// Install step values reported in InstallStatus.CurrentStep.
const (
	StepNotStarted     = "not_started"
	StepDatabaseConfig = "database_config"
	StepDatabaseInit   = "database_init"
	StepCreateAdmin    = "create_admin"
	StepCompleted      = "completed"
)

// DatabaseConfig is the request body for configuring or testing the
// database connection.
type DatabaseConfig struct {
	Provider         string `json:"provider"`
	ConnectionString string `json:"connection_string"`
}

// InitResult reports the outcome of database initialization.
type InitResult struct {
	AlreadyInitialized bool      `json:"already_initialized"`
	Method             string    `json:"method"`
	Roles              int64     `json:"roles"`
	Permissions        int64     `json:"permissions"`
	RolePermissions    int64     `json:"role_permissions"`
	InitializedAt      time.Time `json:"initialized_at"`
}

// CreateAdminRequest is the request body for creating the first
// administrator account.
type CreateAdminRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// AdminCredentials is returned after admin creation. Token is a session
// token for the new account, issued on a best-effort basis.
type AdminCredentials struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// CompleteRequest is the optional request body for finalizing installation.
type CompleteRequest struct {
	SiteName   string `json:"site_name,omitempty"`
	AdminEmail string `json:"admin_email,omitempty"`
}

// Health mirrors the server's health probe response.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
