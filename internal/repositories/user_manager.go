package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
)

// UserManager is the storage-facing side of user management. It works on
// already validated records and knows nothing about the HTTP surface.
type UserManager struct {
	users storage.Collection[models.User]
	now   func() time.Time
}

func NewUserManager(users storage.Collection[models.User]) *UserManager {
	return &UserManager{users: users, now: time.Now}
}

func byUserID(userID string) storage.Filter {
	return storage.Eq(FieldUserID, userID)
}

func alreadyExists(userID string) error {
	return models.InvalidRequest(models.KeyUsersAlreadyExists, "User already exists: %s", userID)
}

// Create stores a new user. An existing identifier yields an invalid request
// keyed users_already_exists, also when a concurrent create wins the race.
func (m *UserManager) Create(ctx context.Context, user *models.User) (*models.User, error) {
	existing, err := m.Get(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExists(user.UserID)
	}

	if err := m.users.Insert(ctx, *user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, alreadyExists(user.UserID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Get returns the user or nil when no record matches
func (m *UserManager) Get(ctx context.Context, userID string) (*models.User, error) {
	users, err := m.users.Get(ctx, storage.NewQuery().FilterBy(byUserID(userID)).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// Delete removes the user; deleting an absent user is not an error
func (m *UserManager) Delete(ctx context.Context, userID string) error {
	if _, err := m.users.Delete(ctx, byUserID(userID)); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// GetList returns a page of users. Zero offset or limit means unset and a
// nil sort leaves the order to the backend.
func (m *UserManager) GetList(ctx context.Context, offset, limit int, sort *storage.SortBy) ([]*models.User, error) {
	q := storage.NewQuery().Offset(offset).Limit(limit)
	if sort != nil {
		q = q.OrderBy(sort.Field, sort.Order)
	}

	users, err := m.users.Get(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]*models.User, len(users))
	for i := range users {
		out[i] = &users[i]
	}
	return out, nil
}

func (m *UserManager) Count(ctx context.Context) (int64, error) {
	n, err := m.users.Count(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// Save stores an updated user, bumping its update time
func (m *UserManager) Save(ctx context.Context, user *models.User) error {
	user.UpdatedTime = m.now().UTC()
	if err := m.users.Store(ctx, *user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Rename atomically moves the record stored under oldID to user.UserID
func (m *UserManager) Rename(ctx context.Context, oldID string, user *models.User) error {
	user.UpdatedTime = m.now().UTC()
	err := m.users.Rename(ctx, oldID, *user)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrDuplicate):
		return alreadyExists(user.UserID)
	case errors.Is(err, storage.ErrNotFound):
		return models.NotFound(models.KeyUsersNotFound, "User does not exist: %s", oldID)
	}
	return fmt.Errorf("failed to rename user: %w", err)
}
