package repositories

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/csm/internal/database"
	"github.com/BradenHooton/csm/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newSQLiteTestStore opens a migrated in-memory SQLite store
func newSQLiteTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator, err := database.NewMigrator(db, "sqlite", discardLogger())
	require.NoError(t, err)
	require.NoError(t, migrator.Up(context.Background()))

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return s
}

func newMemoryTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	return s
}

// forEachBackend runs fn against every backend usable without external services
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryTestStore(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteTestStore(t)) })
}

var testNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestUser(id string) *models.User {
	return models.NewCsmUser(id, "$2a$12$hash", testNow)
}
