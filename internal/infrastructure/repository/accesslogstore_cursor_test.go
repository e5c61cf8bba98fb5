package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/shared/constants"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// insertCursorBeforeCreate makes another writer win the cursor insert: the
// row appears inside the transaction just before the store creates it.
func insertCursorBeforeCreate(t *testing.T, gdb *gorm.DB, deviceID uint, lastProcessedID int64) {
	t.Helper()
	fired := false
	err := gdb.Callback().Create().Before("gorm:create").Register("test:concurrent_cursor", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != constants.TableSyncCursors {
			return
		}
		fired = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO "+constants.TableSyncCursors+" (device_id, last_processed_id, updated_at) VALUES (?, ?, ?)",
			deviceID, lastProcessedID, time.Now().UTC())
		require.NoError(t, err)
	})
	require.NoError(t, err)
}

func TestAccessLogStore_CursorCreatedConcurrently(t *testing.T) {
	tests := []struct {
		name     string
		existing int64
		want     int64
	}{
		{"existing row behind batch", 2, 5},
		{"existing row ahead of batch", 9, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gdb := setupTestDB(t)
			insertCursorBeforeCreate(t, gdb, 1, tt.existing)
			store := NewAccessLogStore(gdb, logger.NewNop())
			ctx := context.Background()

			n, err := store.AppendBatch(ctx, 1, entries(4, 5), 5)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			c, err := store.ReadCursor(ctx, 1)
			require.NoError(t, err)
			assert.True(t, c.Set)
			assert.Equal(t, tt.want, c.LastProcessedID)

			total, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(2), total)
		})
	}
}
