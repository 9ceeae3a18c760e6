package database_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/leakwatch/pkg/database"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		query  string
		want   string
	}{
		{"postgres", database.DriverPostgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"postgres no args", database.DriverPostgres, "SELECT 1", "SELECT 1"},
		{"sqlite untouched", database.DriverSQLite, "SELECT * FROM t WHERE a = ?", "SELECT * FROM t WHERE a = ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.Rebind(tt.driver, tt.query))
		})
	}
}

func TestConfig_DSN(t *testing.T) {
	pg := database.Config{Host: "db", Port: 5432, Name: "leakwatch", User: "lw", Password: "pw"}
	assert.Equal(t, "host=db port=5432 user=lw password=pw dbname=leakwatch sslmode=disable", pg.DSN())

	lite := database.Config{Driver: database.DriverSQLite, Path: "/tmp/lw.db"}
	assert.Contains(t, lite.DSN(), "/tmp/lw.db?")
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := database.New(database.Config{Driver: "mysql"})
	assert.Error(t, err)
}

func TestSQLite_MigrateAndHelpers(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "nested", "leakwatch.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	m := database.NewMigrator(db)
	n, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "applied migrations are skipped")

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	for _, table := range []string{"schema_migrations", "baseline_profiles", "alerts", "feedback"} {
		exists, err := db.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}
	exists, err := db.TableExists(ctx, "clusters")
	require.NoError(t, err)
	assert.False(t, exists)

	version, err := db.GetVersion(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	assert.NoError(t, db.HealthCheck(ctx))
	assert.Equal(t, database.DriverSQLite, db.Driver())
}

func TestWithTransaction_RollsBack(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "leakwatch.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO t (v) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Zero(t, count)
}
