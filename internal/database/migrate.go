package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations for one SQL dialect
type Migrator struct {
	provider *goose.Provider
	logger   *slog.Logger
}

// NewMigrator prepares migrations for db. dialect is "postgres" or "sqlite".
func NewMigrator(db *sql.DB, dialect string, logger *slog.Logger) (*Migrator, error) {
	var gooseDialect goose.Dialect
	switch dialect {
	case "postgres":
		gooseDialect = goose.DialectPostgres
	case "sqlite":
		gooseDialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}

	dir, err := fs.Sub(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, dir)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return &Migrator{provider: provider, logger: logger}, nil
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, r := range results {
		m.logger.Info("migration applied",
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}
	return nil
}

// Reset rolls every migration back
func (m *Migrator) Reset(ctx context.Context) error {
	results, err := m.provider.DownTo(ctx, 0)
	if err != nil {
		return fmt.Errorf("migrate reset: %w", err)
	}
	for _, r := range results {
		m.logger.Info("migration rolled back", slog.Int64("version", r.Source.Version))
	}
	return nil
}

// Version reports the current schema version
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// EnsureMongoIndexes creates the secondary indexes used by range queries
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string]bson.D{
		"alerts":     {{Key: "created_time", Value: 1}},
		"audit_logs": {{Key: "component", Value: 1}, {Key: "created_time", Value: 1}},
	}
	for collection, keys := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys}); err != nil {
			return fmt.Errorf("create %s index: %w", collection, err)
		}
	}
	return nil
}

// DropMongoCollections removes every CSM collection
func DropMongoCollections(ctx context.Context, db *mongo.Database) error {
	for _, name := range []string{"users", "alerts", "email_config", "support_bundles", "audit_logs"} {
		if err := db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}
