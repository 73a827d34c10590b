package storage

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedSchemaVersion is the highest migration number in migrations/
// Update this when adding new migrations
const expectedSchemaVersion = 2

func TestMigrations_FreshDatabase(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	for _, table := range []string{"reconcile_runs", "match_results"} {
		var count int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
}

func TestMigrations_Idempotency(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	require.NoError(t, store.StartRun(&Run{ID: "keep-me"}))
	store.Close()

	// Opening again must not re-run or fail, and data survives
	store, err = NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	version, err := store.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(expectedSchemaVersion), version)

	_, err = store.GetRun("keep-me")
	assert.NoError(t, err)
}

func createTempDB(t *testing.T) string {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}
