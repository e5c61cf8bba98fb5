package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/shared/config"
)

func TestOpen_SQLiteInMemory(t *testing.T) {
	db, err := Open(&config.DatabaseConfig{Driver: DriverSQLite, Database: ":memory:"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "postgres", Database: "x"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_busy_timeout=5000&_foreign_keys=on", sqliteDSN("a.db"))
	assert.Equal(t, "file:x?mode=memory", sqliteDSN("file:x?mode=memory"))
}

func TestGetAndClose_Uninitialized(t *testing.T) {
	assert.NoError(t, Close())
}
