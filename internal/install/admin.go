package install

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/plumeworks/plume/internal/auth"
	"github.com/plumeworks/plume/internal/model"
	"github.com/plumeworks/plume/internal/storage"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-]{2,31}$`)
)

// CreateAdmin creates the first privileged account as one atomic unit:
// user, profile, admin role (re-created if a partial seed lost it), and
// role assignment, all in a single transaction under the create-admin
// composite lock. No partial account can persist.
//
// On success the returned credentials include a freshly issued access
// token so the new admin can log in without a second round trip.
func (s *Service) CreateAdmin(ctx context.Context, req model.CreateAdminRequest) (model.AdminCredentials, error) {
	if err := validateAdminInput(req); err != nil {
		return model.AdminCredentials{}, err
	}

	h, err := s.locks.Acquire(ctx, OpCreateAdmin, adminLockWait, adminLockTTL)
	if err != nil {
		return model.AdminCredentials{}, lockError(err)
	}
	defer h.Release(ctx)

	db, err := s.database(ctx)
	if err != nil {
		return model.AdminCredentials{}, err
	}

	// Connect success alone is not sufficient: the tables this operation
	// writes must be queryable before any mutation starts.
	missing, err := db.VerifyTables(ctx)
	if err != nil {
		return model.AdminCredentials{}, Internal("verify schema before admin creation", err)
	}
	if len(missing) > 0 {
		return model.AdminCredentials{}, Validationf(
			"database is not initialized (missing tables: %s)", strings.Join(missing, ", "))
	}

	if err := db.FindUserConflict(ctx, req.Username, req.Email); err != nil {
		return model.AdminCredentials{}, conflictError(err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return model.AdminCredentials{}, Internal("hash password", err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	user, err := db.CreateAdminUser(ctx,
		model.User{Username: req.Username, Email: req.Email, PasswordHash: hash},
		model.Profile{DisplayName: displayName},
	)
	if err != nil {
		return model.AdminCredentials{}, conflictError(err)
	}

	creds := model.AdminCredentials{
		UserID:   user.ID.String(),
		Username: user.Username,
	}

	// Token issuance is best-effort: the account exists either way, and
	// the admin can still log in through the normal auth flow.
	if tm, err := s.tokenManager(); err != nil {
		s.logger.Warn("token issuance unavailable after admin creation", "error", err)
	} else if token, exp, err := tm.IssueToken(user, model.RoleAdmin); err != nil {
		s.logger.Warn("failed to issue admin token", "error", err)
	} else {
		creds.Token = token
		creds.ExpiresAt = exp
	}

	s.logger.Info("admin account created", "username", user.Username)
	return creds, nil
}

// conflictError maps storage duplicate sentinels onto field-specific
// conflict errors; anything else is internal.
func conflictError(err error) error {
	switch {
	case errors.Is(err, storage.ErrUsernameTaken):
		return Conflictf("username is already taken")
	case errors.Is(err, storage.ErrEmailTaken):
		return Conflictf("email is already registered")
	default:
		return Internal("create admin account", err)
	}
}

func validateAdminInput(req model.CreateAdminRequest) error {
	if !usernameRegex.MatchString(req.Username) {
		return Validationf("username must be 3-32 characters: lowercase letters, digits, _ or -")
	}
	if !emailRegex.MatchString(req.Email) {
		return Validationf("invalid email format")
	}
	return validatePassword(req.Password)
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return Validationf("password must be at least 12 characters with uppercase, lowercase, and digit")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return Validationf("password must be at least 12 characters with uppercase, lowercase, and digit")
	}
	return nil
}
