package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/security"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

func newDeviceRepo(t *testing.T) (device.DeviceRepository, *device.Device) {
	t.Helper()
	db := setupTestDB(t)
	cipher, err := security.NewCredentialCipher("")
	require.NoError(t, err)
	repo := NewDeviceRepository(db, cipher, logger.NewNop())

	d := newTestDevice(t, "gate")
	require.NoError(t, repo.Create(context.Background(), d))
	return repo, d
}

func TestDeviceRepository_UpdateChecksVersion(t *testing.T) {
	repo, d := newDeviceRepo(t)
	ctx := context.Background()

	first, err := repo.GetByID(ctx, d.ID())
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version())

	first.Disable(time.Now().UTC())
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version())

	second.RecordConnectionFailure("timeout", time.Now().UTC())
	err = repo.Update(ctx, second)
	assert.ErrorIs(t, err, device.ErrVersionConflict)
	assert.Equal(t, 1, second.Version())

	stored, err := repo.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.False(t, stored.IsEnabled())
	assert.Zero(t, stored.ErrorCount())
	assert.Equal(t, 2, stored.Version())
}

func TestConnectionService_FetchFailureKeepsOperatorDisable(t *testing.T) {
	db := setupTestDB(t)
	cipher, err := security.NewCredentialCipher("")
	require.NoError(t, err)
	devices := NewDeviceRepository(db, cipher, logger.NewNop())
	conn := monitoring.NewConnectionService(
		devices,
		NewSessionRepository(db, logger.NewNop()),
		NewAuditRepository(db, logger.NewNop()),
		nil, nil, logger.NewNop(),
	)
	ctx := context.Background()

	d := newTestDevice(t, "gate")
	require.NoError(t, devices.Create(ctx, d))

	sweepCopy, err := devices.GetByID(ctx, d.ID())
	require.NoError(t, err)
	operatorCopy, err := devices.GetByID(ctx, d.ID())
	require.NoError(t, err)

	operatorCopy.Disable(time.Now().UTC())
	require.NoError(t, devices.Update(ctx, operatorCopy))

	out := conn.RecordFetchFailure(ctx, sweepCopy, "fetch access logs", context.DeadlineExceeded)
	assert.Equal(t, device.FailureTimeout, out.Kind)

	stored, err := devices.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.False(t, stored.IsEnabled(), "operator disable overwritten by a stale health write")
	assert.Equal(t, 1, stored.ErrorCount())
	assert.Equal(t, device.StatusError, stored.Status())

	// a second stale failure still counts toward the threshold
	another, err := devices.GetByID(ctx, d.ID())
	require.NoError(t, err)
	conn.RecordFetchFailure(ctx, another, "fetch status", context.DeadlineExceeded)
	conn.RecordFetchFailure(ctx, sweepCopy, "fetch status", context.DeadlineExceeded)

	stored, err = devices.GetByID(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, stored.ErrorCount())
	assert.False(t, stored.IsEnabled())
}
