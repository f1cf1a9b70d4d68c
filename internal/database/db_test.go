package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    t.TempDir() + "/" + name + ".db",
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate(t *testing.T) {
	t.Run("applies the simulation schema", func(t *testing.T) {
		db := newTestDB(t, "simulation", ProfileStandard)
		require.NoError(t, db.Migrate())

		for _, table := range []string{"household_tiers", "consumption_patterns", "demand_projections", "civilization_metrics"} {
			var name string
			err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
			require.NoError(t, err, "missing table %s", table)
		}
	})

	t.Run("applies the ledger schema", func(t *testing.T) {
		db := newTestDB(t, "ledger", ProfileLedger)
		require.NoError(t, db.Migrate())

		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='social_mobility_events'`).Scan(&name)
		require.NoError(t, err)
	})

	t.Run("migration is idempotent", func(t *testing.T) {
		db := newTestDB(t, "cache", ProfileCache)
		require.NoError(t, db.Migrate())
		require.NoError(t, db.Migrate())
	})

	t.Run("unknown database name is a no-op", func(t *testing.T) {
		db := newTestDB(t, "scratch", ProfileStandard)
		require.NoError(t, db.Migrate())
	})
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "scratch", ProfileStandard)
	_, err := db.Exec(`CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&n))
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('a', '1')`)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('b', '2')`); err != nil {
				return err
			}
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, count())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec(`INSERT INTO kv (k, v) VALUES ('c', '3')`); err != nil {
				return err
			}
			panic("unexpected")
		})
		require.Error(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("nil connection", func(t *testing.T) {
		require.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
	})
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "simulation", ProfileStandard)
	require.NoError(t, db.Migrate())
	require.NoError(t, db.HealthCheck(context.Background()))
}
