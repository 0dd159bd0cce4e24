package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/models"
)

// TestDBOption customises the database prepared by MustPrepareSQLite.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	table string
	rows  []int
}

// WithTable creates the seed table in the prepared database.
func WithTable(table string) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.table = table
	}
}

// WithRows creates the seed table and inserts one row per value, in order.
func WithRows(table string, countItems ...int) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.table = table
		cfg.rows = append(cfg.rows, countItems...)
	}
}

// SQLiteServer returns a fresh directory usable as the server address of
// sqlite targets. It is removed when the test ends.
func SQLiteServer(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// MustPrepareSQLite opens the sqlite database named database under server,
// applies opts and closes it again, leaving the file ready for a pipeline run.
func MustPrepareSQLite(t *testing.T, server, name string, opts ...TestDBOption) {
	t.Helper()

	cfg := testDBConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()
	conn, err := database.NewConnector(5*time.Second).Connect(ctx, database.Config{
		Engine:   "sqlite",
		Server:   server,
		Database: name,
	})
	require.NoError(t, err)
	defer func() {
		require.NoError(t, conn.Close())
	}()

	if cfg.table == "" {
		return
	}
	require.NoError(t, conn.CreateTable(ctx, cfg.table))
	for _, value := range cfg.rows {
		require.NoError(t, conn.InsertRow(ctx, cfg.table, &models.SeedRow{CountItems: value}))
	}
}

// MustLatestRow reads back the newest seed row of a sqlite database.
func MustLatestRow(t *testing.T, server, name, table string) (models.SeedRow, bool) {
	t.Helper()

	ctx := context.Background()
	conn, err := database.NewConnector(5*time.Second).Connect(ctx, database.Config{
		Engine:   "sqlite",
		Server:   server,
		Database: name,
	})
	require.NoError(t, err)
	defer func() {
		_ = conn.Close()
	}()

	row, ok, err := conn.LatestRow(ctx, table)
	require.NoError(t, err)
	return row, ok
}
