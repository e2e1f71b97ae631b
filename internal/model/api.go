package model

import "time"

// APIResponse is the uniform envelope for all install API responses.
// Success distinguishes "the operation happened" from every failure class;
// Code refines failures so clients can tell "fix input" from "retry later".
type APIResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
	Data    any          `json:"data,omitempty"`
	Meta    ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome codes for failed responses.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeBusy          = "IN_PROGRESS"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUnreachable   = "STORE_UNREACHABLE"
	ErrCodeIntegrity     = "INTEGRITY_FAILURE"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// DatabaseConfigRequest is the request body for POST /install/database/config
// and POST /install/database/test.
type DatabaseConfigRequest struct {
	Provider         string `json:"provider"`
	ConnectionString string `json:"connection_string"`
}

// InitRequest is the request body for POST /install/database/init.
type InitRequest struct {
	Force bool `json:"force,omitempty"`
}

// CreateAdminRequest is the request body for POST /install/admin.
type CreateAdminRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// AdminCredentials is returned on successful admin creation. Token allows
// immediate login without a second round trip through the auth endpoint.
type AdminCredentials struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// CompleteRequest is the request body for POST /install/complete.
type CompleteRequest struct {
	SiteName   string `json:"site_name"`
	AdminEmail string `json:"admin_email"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
