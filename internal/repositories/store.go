package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/csm/internal/config"
	"github.com/BradenHooton/csm/internal/database"
	"github.com/BradenHooton/csm/internal/models"
	"github.com/BradenHooton/csm/internal/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store bundles the record collections of one storage backend
type Store struct {
	Backend        string
	Users          storage.Collection[models.User]
	Alerts         storage.Collection[models.Alert]
	EmailConfig    storage.Collection[models.EmailConfig]
	SupportBundles storage.Collection[models.SupportBundle]
	AuditLogs      storage.Collection[models.AuditLog]

	// Set for the backend in use; the others stay nil
	Postgres *database.DB
	SQLite   *sql.DB
	Mongo    *mongo.Database

	closers []func(context.Context) error
}

// Close releases every connection held by the store
func (s *Store) Close(ctx context.Context) error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// HealthCheck pings the active backend
func (s *Store) HealthCheck(ctx context.Context) error {
	switch {
	case s.Postgres != nil:
		return s.Postgres.HealthCheck(ctx)
	case s.SQLite != nil:
		return s.SQLite.PingContext(ctx)
	case s.Mongo != nil:
		return s.Mongo.Client().Ping(ctx, nil)
	}
	return nil
}

// Open connects to the configured backend and binds every collection
func Open(ctx context.Context, cfg *config.StorageConfig, logger *slog.Logger) (*Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := database.NewConnection(&cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		s, err := NewPostgresStore(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { db.Close(); return nil })
		return s, nil

	case config.BackendSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s, err := NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.closers = append(s.closers, func(context.Context) error { return db.Close() })
		return s, nil

	case config.BackendMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("database connection established",
			slog.String("backend", config.BackendMongo),
			slog.String("database", cfg.MongoDatabase),
		)
		s, err := NewMongoStore(client.Database(cfg.MongoDatabase))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		s.closers = append(s.closers, client.Disconnect)
		return s, nil

	case config.BackendMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return NewMemoryStore()
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

type binder struct {
	users    func(storage.Schema[models.User]) (storage.Collection[models.User], error)
	alerts   func(storage.Schema[models.Alert]) (storage.Collection[models.Alert], error)
	email    func(storage.Schema[models.EmailConfig]) (storage.Collection[models.EmailConfig], error)
	bundles  func(storage.Schema[models.SupportBundle]) (storage.Collection[models.SupportBundle], error)
	auditLog func(storage.Schema[models.AuditLog]) (storage.Collection[models.AuditLog], error)
}

func bind[T any, C storage.Collection[T]](ctor func(storage.Schema[T]) (C, error)) func(storage.Schema[T]) (storage.Collection[T], error) {
	return func(s storage.Schema[T]) (storage.Collection[T], error) {
		c, err := ctor(s)
		if err != nil {
			return nil, err
		}
		return storage.Traced[T](c, s.Name), nil
	}
}

func (b binder) build(backend string) (*Store, error) {
	s := &Store{Backend: backend}
	var err error
	if s.Users, err = b.users(UserSchema); err != nil {
		return nil, err
	}
	if s.Alerts, err = b.alerts(AlertSchema); err != nil {
		return nil, err
	}
	if s.EmailConfig, err = b.email(EmailConfigSchema); err != nil {
		return nil, err
	}
	if s.SupportBundles, err = b.bundles(SupportBundleSchema); err != nil {
		return nil, err
	}
	if s.AuditLogs, err = b.auditLog(AuditLogSchema); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore creates a store whose collections live in process memory
func NewMemoryStore() (*Store, error) {
	return binder{
		users:    bind(storage.NewMemory[models.User]),
		alerts:   bind(storage.NewMemory[models.Alert]),
		email:    bind(storage.NewMemory[models.EmailConfig]),
		bundles:  bind(storage.NewMemory[models.SupportBundle]),
		auditLog: bind(storage.NewMemory[models.AuditLog]),
	}.build(config.BackendMemory)
}

// NewSQLiteStore binds the collections to tables in db
func NewSQLiteStore(db *sql.DB) (*Store, error) {
	s, err := binder{
		users:    bind(sqliteCtor[models.User](db)),
		alerts:   bind(sqliteCtor[models.Alert](db)),
		email:    bind(sqliteCtor[models.EmailConfig](db)),
		bundles:  bind(sqliteCtor[models.SupportBundle](db)),
		auditLog: bind(sqliteCtor[models.AuditLog](db)),
	}.build(config.BackendSQLite)
	if err != nil {
		return nil, err
	}
	s.SQLite = db
	return s, nil
}

// NewPostgresStore binds the collections to tables reachable through db
func NewPostgresStore(db *database.DB) (*Store, error) {
	s, err := binder{
		users:    bind(postgresCtor[models.User](db)),
		alerts:   bind(postgresCtor[models.Alert](db)),
		email:    bind(postgresCtor[models.EmailConfig](db)),
		bundles:  bind(postgresCtor[models.SupportBundle](db)),
		auditLog: bind(postgresCtor[models.AuditLog](db)),
	}.build(config.BackendPostgres)
	if err != nil {
		return nil, err
	}
	s.Postgres = db
	return s, nil
}

// NewMongoStore binds the collections to db
func NewMongoStore(db *mongo.Database) (*Store, error) {
	s, err := binder{
		users:    bind(mongoCtor[models.User](db)),
		alerts:   bind(mongoCtor[models.Alert](db)),
		email:    bind(mongoCtor[models.EmailConfig](db)),
		bundles:  bind(mongoCtor[models.SupportBundle](db)),
		auditLog: bind(mongoCtor[models.AuditLog](db)),
	}.build(config.BackendMongo)
	if err != nil {
		return nil, err
	}
	s.Mongo = db
	return s, nil
}

func sqliteCtor[T any](db *sql.DB) func(storage.Schema[T]) (*storage.SQLite[T], error) {
	return func(s storage.Schema[T]) (*storage.SQLite[T], error) { return storage.NewSQLite(db, s) }
}

func postgresCtor[T any](db *database.DB) func(storage.Schema[T]) (*storage.Postgres[T], error) {
	return func(s storage.Schema[T]) (*storage.Postgres[T], error) { return storage.NewPostgres(db, s) }
}

func mongoCtor[T any](db *mongo.Database) func(storage.Schema[T]) (*storage.Mongo[T], error) {
	return func(s storage.Schema[T]) (*storage.Mongo[T], error) { return storage.NewMongo(db, s) }
}
