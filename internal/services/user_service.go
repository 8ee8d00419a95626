package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/repositories"
	"github.com/BradenHooton/csm/internal/storage"
	"github.com/BradenHooton/csm/pkg/auth"
)

// UserManager is the storage side of user management
type UserManager interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	Get(ctx context.Context, userID string) (*models.User, error)
	Delete(ctx context.Context, userID string) error
	GetList(ctx context.Context, offset, limit int, sort *storage.SortBy) ([]*models.User, error)
	Save(ctx context.Context, user *models.User) error
	Rename(ctx context.Context, oldID string, user *models.User) error
}

// UserOptions are the optional fields accepted when creating or updating a
// user. Nil leaves the current value untouched.
type UserOptions struct {
	UserType    *string
	Interfaces  []string
	Roles       []string
	Temperature *string
	Language    *string
	Timeout     *int
}

func (o UserOptions) apply(u *models.User) {
	if o.UserType != nil {
		u.UserType = *o.UserType
	}
	if o.Interfaces != nil {
		u.Interfaces = append([]string(nil), o.Interfaces...)
	}
	if o.Roles != nil {
		u.Roles = append([]string(nil), o.Roles...)
	}
	if o.Temperature != nil {
		u.Temperature = *o.Temperature
	}
	if o.Language != nil {
		u.Language = *o.Language
	}
	if o.Timeout != nil {
		u.Timeout = *o.Timeout
	}
}

// UserUpdate carries the changes applied by UpdateUser
type UserUpdate struct {
	UserID   *string
	Password *string
	UserOptions
}

// UserView is the serialized form of a user returned to API clients
type UserView struct {
	ID          string   `json:"id" xml:"id"`
	Username    string   `json:"username" xml:"username"`
	UserType    string   `json:"user_type" xml:"user_type"`
	Interfaces  []string `json:"interfaces" xml:"interfaces>interface"`
	Roles       []string `json:"roles" xml:"roles>role"`
	Temperature string   `json:"temperature" xml:"temperature"`
	Language    string   `json:"language" xml:"language"`
	Timeout     int      `json:"timeout" xml:"timeout"`
	CreatedTime string   `json:"created_time" xml:"created_time"`
	UpdatedTime string   `json:"updated_time" xml:"updated_time"`
}

// FormatTimestamp renders t in UTC as YYYY-MM-DDTHH:MM:SS, with a
// microsecond fraction only when it is nonzero, followed by a literal Z
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/int(time.Microsecond) != 0 {
		layout += ".000000"
	}
	return t.Format(layout) + "Z"
}

func newUserView(u *models.User) UserView {
	return UserView{
		ID:          u.UserID,
		Username:    u.UserID,
		UserType:    u.UserType,
		Interfaces:  append([]string{}, u.Interfaces...),
		Roles:       append([]string{}, u.Roles...),
		Temperature: u.Temperature,
		Language:    u.Language,
		Timeout:     u.Timeout,
		CreatedTime: FormatTimestamp(u.CreatedTime),
		UpdatedTime: FormatTimestamp(u.UpdatedTime),
	}
}

var userSortAliases = map[string]string{
	"id":       repositories.FieldUserID,
	"username": repositories.FieldUserID,
}

var sortableUserFields = map[string]bool{
	repositories.FieldUserID:      true,
	repositories.FieldUserType:    true,
	repositories.FieldCreatedTime: true,
	repositories.FieldUpdatedTime: true,
}

// UserService exposes CSM user management to the API
type UserService struct {
	users  UserManager
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService
func NewUserService(users UserManager, audit Auditor, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

func userNotFound(userID string) error {
	return models.NotFound(models.KeyUsersNotFound, "There is no such user: %s", userID)
}

func hashUserPassword(password string) (string, error) {
	if password == "" {
		return "", models.InvalidRequest(models.KeyUsersInvalidField, "password is required")
	}
	return auth.HashPassword(password)
}

// CreateUser builds a CSM user from id and password, applies opts and
// stores it
func (s *UserService) CreateUser(ctx context.Context, userID, password string, opts UserOptions) (UserView, error) {
	hash, err := hashUserPassword(password)
	if err != nil {
		return UserView{}, err
	}

	user := models.NewCsmUser(userID, hash, s.now())
	opts.apply(user)
	if err := user.Validate(); err != nil {
		return UserView{}, err
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		s.audit.Record(ctx, models.AuditActionCreate, models.AuditResourceUser, userID, err)
		return UserView{}, err
	}

	s.audit.Record(ctx, models.AuditActionCreate, models.AuditResourceUser, userID, nil)
	s.logger.Info("user created", slog.String("user_id", userID))
	return newUserView(user), nil
}

// GetUser returns a single user
func (s *UserService) GetUser(ctx context.Context, userID string) (UserView, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	if user == nil {
		return UserView{}, userNotFound(userID)
	}
	return newUserView(user), nil
}

// resolveUserSort maps sortBy onto a stored field. An empty result means
// the backend's default order.
func resolveUserSort(sortBy, sortDir string) (*storage.SortBy, error) {
	if alias, ok := userSortAliases[sortBy]; ok {
		sortBy = alias
	}
	if sortBy == "" {
		return nil, nil
	}
	if !sortableUserFields[sortBy] {
		return nil, models.InvalidRequest(models.KeyUsersNonSortableField, "It is impossible to sort by this field: %s", sortBy)
	}

	order := storage.Desc
	if sortDir == "asc" {
		order = storage.Asc
	}
	return &storage.SortBy{Field: sortBy, Order: order}, nil
}

// GetUserList returns a page of users. Zero limit or offset means unset.
func (s *UserService) GetUserList(ctx context.Context, limit, offset int, sortBy, sortDir string) ([]UserView, error) {
	sort, err := resolveUserSort(sortBy, sortDir)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetList(ctx, offset, limit, sort)
	if err != nil {
		return nil, err
	}

	views := make([]UserView, len(users))
	for i, u := range users {
		views[i] = newUserView(u)
	}
	return views, nil
}

// DeleteUser removes an existing user
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		err := userNotFound(userID)
		s.audit.Record(ctx, models.AuditActionDelete, models.AuditResourceUser, userID, err)
		return err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		s.audit.Record(ctx, models.AuditActionDelete, models.AuditResourceUser, userID, err)
		return err
	}

	s.audit.Record(ctx, models.AuditActionDelete, models.AuditResourceUser, userID, nil)
	s.logger.Info("user deleted", slog.String("user_id", userID))
	return nil
}

// UpdateUser applies upd to an existing user. Changing the identifier
// renames the record atomically.
func (s *UserService) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (UserView, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	if user == nil {
		return UserView{}, userNotFound(userID)
	}

	upd.UserOptions.apply(user)
	if upd.Password != nil {
		hash, err := hashUserPassword(*upd.Password)
		if err != nil {
			return UserView{}, err
		}
		user.PasswordHash = hash
	}
	if upd.UserID != nil {
		user.UserID = *upd.UserID
	}
	if err := user.Validate(); err != nil {
		return UserView{}, err
	}

	if user.UserID != userID {
		err = s.users.Rename(ctx, userID, user)
	} else {
		err = s.users.Save(ctx, user)
	}
	s.audit.Record(ctx, models.AuditActionUpdate, models.AuditResourceUser, userID, err)
	if err != nil {
		return UserView{}, err
	}

	if user.UserID != userID {
		s.logger.Info("user renamed", slog.String("user_id", userID), slog.String("new_user_id", user.UserID))
	}
	return newUserView(user), nil
}
