package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/csm/internal/auth"
	"github.com/BradenHooton/csm/internal/metrics"
	"github.com/BradenHooton/csm/internal/models"
	pkgauth "github.com/BradenHooton/csm/pkg/auth"
)

// UserLookup finds users by id, returning nil when absent
type UserLookup interface {
	Get(ctx context.Context, userID string) (*models.User, error)
}

// LoginResult is returned on successful login
type LoginResult struct {
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// unknownUserHash is compared against when the user does not exist so both
// failure paths cost one bcrypt comparison
func unknownUserHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = pkgauth.HashPassword("csm-unknown-user")
	})
	return dummyHash
}

// AuthService handles authentication business logic
type AuthService struct {
	users       UserLookup
	tm          *auth.TokenManager
	revocations auth.RevocationStore
	timing      *auth.TimingDelay
	audit       Auditor
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates a new AuthService. timing may be nil.
func NewAuthService(users UserLookup, tm *auth.TokenManager, revocations auth.RevocationStore, timing *auth.TimingDelay, audit Auditor, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:       users,
		tm:          tm,
		revocations: revocations,
		timing:      timing,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

func invalidCredentials() error {
	return models.Unauthorized(models.KeyInvalidCredentials, "Invalid username or password")
}

// Login checks the password and issues an access token
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	start := time.Now()
	username = strings.TrimSpace(username)

	user, err := s.users.Get(ctx, username)
	if err != nil {
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, err
	}

	var hash string
	if user != nil {
		hash = user.PasswordHash
	} else {
		hash = unknownUserHash()
	}
	if err := pkgauth.ComparePassword(hash, password); err != nil || user == nil {
		s.timing.WaitFrom(start, false)
		err := invalidCredentials()
		metrics.Logins.WithLabelValues(metrics.Outcome(err)).Inc()
		s.audit.Record(ctx, models.AuditActionLogin, models.AuditResourceSession, username, err)
		return nil, err
	}

	token, claims, err := s.tm.GenerateAccessToken(user.UserID, user.Roles)
	if err != nil {
		s.logger.Error("failed to issue token", slog.String("user_id", user.UserID), slog.Any("error", err))
		return nil, err
	}
	s.timing.WaitFrom(start, true)

	metrics.Logins.WithLabelValues(metrics.Outcome(nil)).Inc()
	s.audit.Record(auth.WithClaims(ctx, claims), models.AuditActionLogin, models.AuditResourceSession, user.UserID, nil)

	return &LoginResult{
		Username:  user.UserID,
		Roles:     append([]string{}, user.Roles...),
		Token:     token,
		ExpiresAt: FormatTimestamp(claims.ExpiresAt.Time),
	}, nil
}

// Logout revokes the caller's token until it would have expired
func (s *AuthService) Logout(ctx context.Context) error {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return models.Unauthorized("unauthorized", "not logged in")
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	err := s.revocations.Revoke(ctx, claims.ID, ttl)
	s.audit.Record(ctx, models.AuditActionLogout, models.AuditResourceSession, claims.UserID, err)
	if err != nil {
		s.logger.Error("failed to revoke token", slog.String("user_id", claims.UserID), slog.Any("error", err))
		return models.ServiceUnavailable(models.KeyStorageUnavailable, "could not revoke token")
	}
	return nil
}

// Permissions returns what the caller's roles allow
func (s *AuthService) Permissions(ctx context.Context) models.Permissions {
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil {
		return models.PermissionsForRoles(nil)
	}
	return models.PermissionsForRoles(claims.Roles)
}
