package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteMemory = ":memory:"

// OpenSQLite opens the database file at path, or a private in-memory
// database for ":memory:".
func OpenSQLite(path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := sqliteMemory
	if path != sqliteMemory {
		dsn = "file:" + filepath.Clean(path) +
			"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc serialises writers; one connection also keeps :memory: databases
	// from splitting across the pool
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	logger.Info("database connection established",
		slog.String("backend", "sqlite"),
		slog.String("path", path),
	)
	return db, nil
}
