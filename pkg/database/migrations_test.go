package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrator_RunIsIdempotent(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "m.db")}, logger)
	require.NoError(t, err)
	defer db.Close()

	m := NewMigrator(db, logger)
	require.NoError(t, m.Run(Migrations()))
	require.NoError(t, m.Run(Migrations()))

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)

	var platforms int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM payment_platforms").Scan(&platforms))
	assert.Equal(t, 3, platforms)
}

func TestMigrator_CounterIsSingleton(t *testing.T) {
	logger := zap.NewNop()
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "m.db")}, logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, NewMigrator(db, logger).Run(Migrations()))

	_, err = db.Exec("INSERT INTO proforma_counter (id, number, updated_at) VALUES (2, 'PF-2024-000', CURRENT_TIMESTAMP)")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Contains(t, DSN("x.db"), "_txlock=immediate")
	assert.Contains(t, DSN("x.db"), "_foreign_keys=on")
}
