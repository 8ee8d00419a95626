// Package setup prepares storage for the agent: schema migrations, the
// first admin user and a full reset.
package setup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/BradenHooton/csm/internal/config"
	"github.com/BradenHooton/csm/internal/database"
	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/repositories"
	pkgauth "github.com/BradenHooton/csm/pkg/auth"
)

// Actions accepted by Run
const (
	ActionInit    = "init"
	ActionMigrate = "migrate"
	ActionReset   = "reset"
)

// Actions lists the setup actions in help order
var Actions = []string{ActionInit, ActionMigrate, ActionReset}

// ErrForceRequired is returned by reset without the force flag
var ErrForceRequired = models.InvalidRequest(models.KeyInvalidArgument, `"reset" wipes every record, run it again with -f to confirm`)

// sqlHandle returns a database/sql handle on the SQL backends. The returned
// close func releases handles opened only for migrating.
func sqlHandle(store *repositories.Store) (db *sql.DB, dialect string, closeFn func() error) {
	switch {
	case store.SQLite != nil:
		return store.SQLite, config.BackendSQLite, func() error { return nil }
	case store.Postgres != nil:
		db := stdlib.OpenDBFromPool(store.Postgres.Pool)
		return db, config.BackendPostgres, db.Close
	}
	return nil, "", nil
}

// Migrate brings the schema of store up to date. Backends without a schema
// only get their indexes.
func Migrate(ctx context.Context, store *repositories.Store, logger *slog.Logger) error {
	if db, dialect, closeFn := sqlHandle(store); db != nil {
		defer func() { _ = closeFn() }()
		migrator, err := database.NewMigrator(db, dialect, logger)
		if err != nil {
			return err
		}
		return migrator.Up(ctx)
	}
	if store.Mongo != nil {
		return database.EnsureMongoIndexes(ctx, store.Mongo)
	}
	return nil
}

// Reset removes every table or collection of store
func Reset(ctx context.Context, store *repositories.Store, logger *slog.Logger) error {
	if db, dialect, closeFn := sqlHandle(store); db != nil {
		defer func() { _ = closeFn() }()
		migrator, err := database.NewMigrator(db, dialect, logger)
		if err != nil {
			return err
		}
		return migrator.Reset(ctx)
	}
	if store.Mongo != nil {
		return database.DropMongoCollections(ctx, store.Mongo)
	}
	return nil
}

// InitAdmin creates the bootstrap admin user unless it already exists. It
// reports whether a user was created.
func InitAdmin(ctx context.Context, users *repositories.UserManager, admin config.AdminConfig, now time.Time, logger *slog.Logger) (bool, error) {
	if admin.Password == "" {
		return false, fmt.Errorf("CSM_ADMIN_PASSWORD is required to create the admin user")
	}
	if err := pkgauth.ValidatePassword(admin.Password); err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}

	existing, err := users.Get(ctx, admin.Username)
	if err != nil {
		return false, fmt.Errorf("failed to check if admin exists: %w", err)
	}
	if existing != nil {
		logger.Info("admin user already exists", slog.String("user_id", admin.Username))
		return false, nil
	}

	hash, err := pkgauth.HashPassword(admin.Password)
	if err != nil {
		return false, err
	}
	user := models.NewCsmUser(admin.Username, hash, now)
	user.Roles = []string{models.RoleAdmin}
	if err := user.Validate(); err != nil {
		return false, err
	}
	if _, err := users.Create(ctx, user); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created", slog.String("user_id", admin.Username))
	return true, nil
}

// Run executes one setup action against an open store and reports the
// outcome on out
func Run(ctx context.Context, action string, force bool, store *repositories.Store, admin config.AdminConfig, logger *slog.Logger, out io.Writer) error {
	switch action {
	case ActionMigrate:
		if err := Migrate(ctx, store, logger); err != nil {
			return err
		}
		fmt.Fprintf(out, "Storage schema is up to date (%s).\n", store.Backend)

	case ActionInit:
		if err := Migrate(ctx, store, logger); err != nil {
			return err
		}
		created, err := InitAdmin(ctx, repositories.NewUserManager(store.Users), admin, time.Now(), logger)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(out, "CSM initialized, admin user %q created.\n", admin.Username)
		} else {
			fmt.Fprintf(out, "CSM already initialized, admin user %q exists.\n", admin.Username)
		}

	case ActionReset:
		if !force {
			return ErrForceRequired
		}
		if err := Reset(ctx, store, logger); err != nil {
			return err
		}
		fmt.Fprintf(out, "All CSM data removed from %s storage.\n", store.Backend)

	default:
		return models.InvalidRequest(models.KeyInvalidArgument, "unknown setup action %q", action)
	}
	return nil
}
