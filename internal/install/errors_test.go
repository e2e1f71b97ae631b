package install

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/plumeworks/plume/internal/lock"
	"github.com/plumeworks/plume/internal/model"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validationf("bad input")))
	assert.Equal(t, KindConflict, KindOf(Conflictf("taken")))
	assert.Equal(t, KindConnectivity, KindOf(Connectivity("down", errors.New("refused"))))
	assert.Equal(t, KindIntegrity, KindOf(Integrity("broken", nil)))
	assert.Equal(t, KindInternal, KindOf(Internal("boom", errors.New("x"))))
	assert.Equal(t, KindInternal, KindOf(errors.New("unclassified")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Connectivity("database unreachable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "database unreachable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLockErrorPreservesSentinels(t *testing.T) {
	err := lockError(lock.ErrBusy)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.ErrorIs(t, err, lock.ErrBusy)

	err = lockError(lock.ErrHeldElsewhere)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.ErrorIs(t, err, lock.ErrHeldElsewhere)

	err = lockError(errors.New("unexpected"))
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestValidateAdminInput(t *testing.T) {
	valid := func() model.CreateAdminRequest {
		return model.CreateAdminRequest{
			Username: "admin",
			Email:    "admin@example.com",
			Password: "CorrectHorse99x",
		}
	}

	assert.NoError(t, validateAdminInput(valid()))

	req := valid()
	req.Username = "ab" // too short
	assert.Equal(t, KindValidation, KindOf(validateAdminInput(req)))

	req = valid()
	req.Username = "Admin" // uppercase rejected
	assert.Equal(t, KindValidation, KindOf(validateAdminInput(req)))

	req = valid()
	req.Email = "not-an-email"
	assert.Equal(t, KindValidation, KindOf(validateAdminInput(req)))

	req = valid()
	req.Password = "Short1a"
	assert.Equal(t, KindValidation, KindOf(validateAdminInput(req)))

	req = valid()
	req.Password = "nouppercase99999"
	assert.Equal(t, KindValidation, KindOf(validateAdminInput(req)))

	req = valid()
	req.Password = "NODIGITSHEREATALL"
	assert.Equal(t, KindValidation, KindOf(validateAdminInput(req)))
}
