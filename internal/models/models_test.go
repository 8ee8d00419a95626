package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCsmUser_Defaults(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 7200))
	u := NewCsmUser("csmadmin", "hash", now)

	assert.Equal(t, "csm", u.UserType)
	assert.Equal(t, []string{"web", "cli", "api"}, u.Interfaces)
	assert.Equal(t, []string{"manage"}, u.Roles)
	assert.Equal(t, "celsius", u.Temperature)
	assert.Equal(t, "English", u.Language)
	assert.Equal(t, 30, u.Timeout)
	assert.Equal(t, time.UTC, u.CreatedTime.Location())
	assert.True(t, u.CreatedTime.Equal(now))
	assert.NoError(t, u.Validate())
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *User)
	}{
		{"short id", func(u *User) { u.UserID = "ab" }},
		{"id with space", func(u *User) { u.UserID = "bad user" }},
		{"unknown user type", func(u *User) { u.UserType = "ldap" }},
		{"unknown interface", func(u *User) { u.Interfaces = []string{"web", "ssh"} }},
		{"no roles", func(u *User) { u.Roles = nil }},
		{"unknown role", func(u *User) { u.Roles = []string{"root"} }},
		{"bad temperature", func(u *User) { u.Temperature = "kelvin" }},
		{"zero timeout", func(u *User) { u.Timeout = 0 }},
		{"huge timeout", func(u *User) { u.Timeout = 5000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewCsmUser("valid_user", "hash", time.Now())
			tt.mutate(u)

			err := u.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, KeyUsersInvalidField, ErrorKey(err))
		})
	}
}

func TestIsValidUserID(t *testing.T) {
	assert.True(t, IsValidUserID("csm.admin-1_x"))
	assert.False(t, IsValidUserID("no"))
	assert.False(t, IsValidUserID("semi;colon"))
}

func TestCsmError_UnwrapsToKind(t *testing.T) {
	err := NotFound(KeyUsersNotFound, "User does not exist: %s", "bob")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrInvalidRequest))
	assert.Equal(t, KeyUsersNotFound, ErrorKey(wrapped))
	assert.Equal(t, "users_not_found: User does not exist: bob", err.Error())
	assert.Equal(t, "", ErrorKey(errors.New("plain")))
}

func TestPermissionsForRoles(t *testing.T) {
	manage := PermissionsForRoles([]string{RoleManage})
	assert.True(t, manage.Allows(PermUsers, ActionWrite))
	assert.True(t, manage.Allows(PermAuditLog, ActionRead))

	monitor := PermissionsForRoles([]string{RoleMonitor})
	assert.True(t, monitor.Allows(PermAlerts, ActionRead))
	assert.False(t, monitor.Allows(PermAlerts, ActionWrite))

	none := PermissionsForRoles(nil)
	assert.False(t, none.Allows(PermUsers, ActionRead))
	assert.Contains(t, none, PermSupportBundle)
}

func TestAlert_Flags(t *testing.T) {
	a := &Alert{Severity: SeverityCritical}
	assert.True(t, a.Notifiable())
	assert.False(t, a.Closed())

	a = &Alert{Severity: SeverityWarning, Acknowledged: true, Resolved: true}
	assert.False(t, a.Notifiable())
	assert.True(t, a.Closed())
}
