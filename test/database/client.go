// Package database provides database client helpers for integration tests.
package database

import (
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/database"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/test/util"
)

// NewTestClient creates a test database client with migrations applied.
// In CI (when CI_DATABASE_URL is set): connects to external PostgreSQL service container.
// In local dev: spins up a testcontainer with PostgreSQL.
// The schema and connection are automatically cleaned up when the test ends.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()

	connStr := util.SetupTestSchema(t)

	db, err := sqlx.Open("pgx", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	t.Cleanup(func() { _ = db.Close() })

	client := database.NewClientFromDB(db, "test")
	require.NoError(t, client.Migrate())

	return client
}
