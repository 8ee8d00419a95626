package models

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// User types
const (
	UserTypeCsm = "csm"
	UserTypeS3  = "s3"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleManage  = "manage"
	RoleMonitor = "monitor"
)

// Defaults applied to newly created CSM users
const (
	DefaultUserType    = UserTypeCsm
	DefaultTemperature = "celsius"
	DefaultLanguage    = "English"
	DefaultTimeout     = 30
)

// DefaultInterfaces returns a fresh copy of the default interface list
func DefaultInterfaces() []string {
	return []string{"web", "cli", "api"}
}

// DefaultRoles returns a fresh copy of the default role list
func DefaultRoles() []string {
	return []string{RoleManage}
}

type User struct {
	UserID       string   `validate:"required,min=3,max=64,csm_user_id"`
	PasswordHash string   `validate:"required"`
	UserType     string   `validate:"oneof=csm s3"`
	Interfaces   []string `validate:"dive,oneof=web cli api"`
	Roles        []string `validate:"min=1,dive,oneof=admin manage monitor"`
	Temperature  string   `validate:"oneof=celsius fahrenheit"`
	Language     string   `validate:"required,max=64"`
	Timeout      int      `validate:"min=1,max=1440"` // minutes
	CreatedTime  time.Time
	UpdatedTime  time.Time
}

// NewCsmUser builds a user with every optional field defaulted
func NewCsmUser(userID, passwordHash string, now time.Time) *User {
	now = now.UTC()
	return &User{
		UserID:       userID,
		PasswordHash: passwordHash,
		UserType:     DefaultUserType,
		Interfaces:   DefaultInterfaces(),
		Roles:        DefaultRoles(),
		Temperature:  DefaultTemperature,
		Language:     DefaultLanguage,
		Timeout:      DefaultTimeout,
		CreatedTime:  now,
		UpdatedTime:  now,
	}
}

// HasRole reports whether the user holds role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var (
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	userValidator = newUserValidator()
)

func newUserValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("csm_user_id", func(fl validator.FieldLevel) bool {
		return userIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// IsValidUserID reports whether id is an acceptable user identifier
func IsValidUserID(id string) bool {
	return len(id) >= 3 && len(id) <= 64 && userIDPattern.MatchString(id)
}

// Validate checks the record before it is stored. Failures are reported as
// invalid requests keyed users_invalid_field.
func (u *User) Validate() error {
	if err := userValidator.Struct(u); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return InvalidRequest(KeyUsersInvalidField, "invalid value for %s", ve[0].Field())
		}
		return InvalidRequest(KeyUsersInvalidField, "%v", err)
	}
	return nil
}
