//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/csm/internal/database"
)

const widgetTablePostgresSQL = `CREATE TABLE widgets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	size BIGINT NOT NULL,
	tags TEXT[] NOT NULL,
	active BOOLEAN NOT NULL,
	created_time TIMESTAMPTZ NOT NULL
)`

// setupPostgres starts a PostgreSQL container, applies the CSM migrations and
// returns a connected DB wrapper
func setupPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("csm"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// goose needs a database/sql handle
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()
	migrator, err := database.NewMigrator(sqlDB, "postgres", logger)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))

	return database.NewDB(pool, logger)
}

func TestPostgresCollection(t *testing.T) {
	db := setupPostgres(t)

	runCollectionContract(t, func(t *testing.T) Collection[widget] {
		ctx := context.Background()
		_, err := db.Pool.Exec(ctx, `DROP TABLE IF EXISTS widgets`)
		require.NoError(t, err)
		_, err = db.Pool.Exec(ctx, widgetTablePostgresSQL)
		require.NoError(t, err)

		c, err := NewPostgres(db, widgetSchema)
		require.NoError(t, err)
		return c
	})
}
