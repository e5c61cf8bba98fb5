package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/application/monitoring/testutil"
	"github.com/accesshub/accesshub/internal/domain/device"
)

func TestConnect_Success(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)

	out := h.conn.Connect(context.Background(), d)

	require.True(t, out.Success, out.Message)
	assert.Equal(t, device.StatusActive, d.Status())
	assert.Equal(t, 1, d.SuccessCount())
	assert.Equal(t, 0, d.ErrorCount())
	assert.NotNil(t, d.LastConnection())
	assert.Equal(t, 1, tr.AuthCalls())
	assert.Len(t, h.audits.Find(d.ID(), device.AuditConnection, device.SeverityInfo), 1)
}

func TestConnect_ThreeTimeoutsDisableDevice(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	timeout := testutil.Fail(device.FailureTimeout)
	tr.AuthErrs = []error{timeout, timeout, timeout}

	ctx := context.Background()
	first := h.conn.Connect(ctx, d)
	second := h.conn.Connect(ctx, d)
	third := h.conn.Connect(ctx, d)

	assert.Equal(t, device.FailureTimeout, first.Kind)
	assert.Equal(t, device.FailureTimeout, second.Kind)
	assert.Equal(t, device.FailureDisabledByThreshold, third.Kind)

	assert.False(t, d.IsEnabled())
	assert.Equal(t, device.StatusError, d.Status())
	assert.Equal(t, 3, d.ErrorCount())
	assert.Len(t, h.audits.Find(d.ID(), device.AuditMaintenance, device.SeverityCritical), 1)

	fourth := h.conn.Connect(ctx, d)
	assert.Equal(t, device.FailureDisabled, fourth.Kind)
	assert.Equal(t, 3, tr.AuthCalls(), "a disabled device must not be contacted")
}

func TestConnect_InterleavedSuccessResetsCount(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	conn := testutil.Fail(device.FailureConnection)
	tr.AuthErrs = []error{conn, conn, nil, conn, conn}

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		h.conn.Connect(ctx, d)
	}

	assert.True(t, d.IsEnabled())
	assert.Equal(t, 2, d.ErrorCount())
}

func TestConnect_AuthExpiredDoesNotCount(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 1)
	tr.AuthErrs = []error{testutil.Fail(device.FailureAuthExpired)}

	out := h.conn.Connect(context.Background(), d)

	assert.Equal(t, device.FailureAuthExpired, out.Kind)
	assert.True(t, d.IsEnabled())
	assert.Equal(t, 0, d.ErrorCount())
}

func TestConnect_ProtocolFailureIsErrorSeverity(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 5)
	tr.AuthErrs = []error{testutil.Fail(device.FailureProtocol)}

	out := h.conn.Connect(context.Background(), d)

	assert.Equal(t, device.FailureProtocol, out.Kind)
	assert.Len(t, h.audits.Find(d.ID(), device.AuditError, device.SeverityError), 1)
	assert.True(t, h.logger.Has("ERROR", "device protocol failure"))
}

func TestConnect_SingleActiveSession(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 3)
	ctx := context.Background()

	require.True(t, h.conn.Connect(ctx, d).Success)
	require.True(t, h.conn.Connect(ctx, d).Success)

	rows := h.sessions.ForDevice(d.ID())
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsActive())
	assert.Equal(t, "tok-2", rows[0].Token())
	assert.Equal(t, 2, d.SuccessCount())
}

func TestConnect_ConcurrentCallsKeepOneSession(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 3)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		own := h.devices.Get(d.ID())
		go func() {
			h.conn.Connect(ctx, own)
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	assert.Equal(t, 1, h.sessions.ActiveCount(d.ID()))
	assert.Len(t, h.sessions.ForDevice(d.ID()), 1)
}

func TestDisconnect_Idempotent(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	ctx := context.Background()
	require.True(t, h.conn.Connect(ctx, d).Success)

	out := h.conn.Disconnect(ctx, d)
	require.True(t, out.Success)
	assert.Equal(t, "disconnected", out.Message)
	assert.Equal(t, device.StatusInactive, d.Status())
	assert.False(t, tr.IsConnected())
	assert.Equal(t, 0, h.sessions.ActiveCount(d.ID()))

	again := h.conn.Disconnect(ctx, d)
	assert.True(t, again.Success)
	assert.Equal(t, "device was not connected", again.Message)
}

func TestConnect_ReusesSessionAfterDisconnect(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 3)
	ctx := context.Background()

	require.True(t, h.conn.Connect(ctx, d).Success)
	h.conn.Disconnect(ctx, d)
	require.True(t, h.conn.Connect(ctx, d).Success)

	assert.Len(t, h.sessions.ForDevice(d.ID()), 2)
	assert.Equal(t, 1, h.sessions.ActiveCount(d.ID()))
}

func TestEnsureConnected_ReusesLiveToken(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	ctx := context.Background()

	_, out := h.conn.EnsureConnected(ctx, d)
	require.True(t, out.Success)
	_, out = h.conn.EnsureConnected(ctx, d)
	require.True(t, out.Success)

	assert.Equal(t, 1, tr.AuthCalls())
}

func TestTransportCache_EndpointChangeReplacesTransport(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	ctx := context.Background()

	_, out := h.conn.EnsureConnected(ctx, d)
	require.True(t, out.Success)

	d = h.devices.Modify(d.ID(), func(d *device.Device) {
		require.NoError(t, d.UpdateEndpoint("10.0.0.2", 8080, false, "admin", "secret", time.Now()))
	})
	h.conn.EnsureConnected(ctx, d)

	assert.True(t, tr.Closed(), "stale transport should be closed")
	assert.Equal(t, 2, h.built)
}

func TestRecordFetchFailure_TimeoutsDisable(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 2)
	ctx := context.Background()

	first := h.conn.RecordFetchFailure(ctx, d, "fetch status", testutil.Fail(device.FailureTimeout))
	second := h.conn.RecordFetchFailure(ctx, d, "fetch status", testutil.Fail(device.FailureTimeout))

	assert.Equal(t, device.FailureTimeout, first.Kind)
	assert.Equal(t, device.FailureDisabledByThreshold, second.Kind)
	assert.False(t, d.IsEnabled())
}

func TestConnect_RereadsDisabledDevice(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	stale := h.devices.Get(d.ID())
	h.devices.Modify(d.ID(), func(d *device.Device) { d.Disable(time.Now()) })

	out := h.conn.Connect(context.Background(), stale)

	assert.Equal(t, device.FailureDisabled, out.Kind)
	assert.Zero(t, tr.AuthCalls())
	assert.False(t, stale.IsEnabled())
}

func TestConnect_DisabledWhileAuthenticating(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	ctx := context.Background()
	sweepCopy := h.devices.Get(d.ID())

	tr.OnAuthenticate = func() {
		h.devices.Modify(d.ID(), func(d *device.Device) { d.Disable(time.Now()) })
	}
	out := h.conn.Connect(ctx, sweepCopy)

	assert.Equal(t, device.FailureDisabled, out.Kind)
	stored := h.devices.Get(d.ID())
	assert.False(t, stored.IsEnabled())
	assert.Equal(t, 1, stored.SuccessCount())
	assert.Zero(t, h.sessions.ActiveCount(d.ID()))
	assert.False(t, h.conn.IsConnected(d.ID()))
}

func TestRecordFetchFailure_KeepsOperatorDisable(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 3)
	ctx := context.Background()
	sweepCopy := h.devices.Get(d.ID())

	h.devices.Modify(d.ID(), func(d *device.Device) { d.Disable(time.Now()) })
	out := h.conn.RecordFetchFailure(ctx, sweepCopy, "fetch access logs", testutil.Fail(device.FailureTimeout))

	assert.Equal(t, device.FailureTimeout, out.Kind)
	stored := h.devices.Get(d.ID())
	assert.False(t, stored.IsEnabled())
	assert.Equal(t, 1, stored.ErrorCount())
	assert.Equal(t, 1, h.devices.Conflicts())
	assert.Empty(t, h.audits.Find(d.ID(), device.AuditMaintenance, device.SeverityCritical),
		"an operator disable is not reported as a threshold disable")
}

func TestRecordFetchFailure_StaleCopiesAllCount(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 3)
	ctx := context.Background()
	copies := []*device.Device{h.devices.Get(d.ID()), h.devices.Get(d.ID()), h.devices.Get(d.ID())}

	var last device.Outcome
	for _, c := range copies {
		last = h.conn.RecordFetchFailure(ctx, c, "fetch status", testutil.Fail(device.FailureConnection))
	}

	assert.Equal(t, device.FailureDisabledByThreshold, last.Kind)
	stored := h.devices.Get(d.ID())
	assert.Equal(t, 3, stored.ErrorCount())
	assert.False(t, stored.IsEnabled())
}

func TestRecordActivity_ClearsFailureStreak(t *testing.T) {
	h := newHarness(t)
	d, _ := h.addDevice("gate", 3)
	ctx := context.Background()
	require.True(t, h.conn.Connect(ctx, d).Success)

	h.conn.RecordFetchFailure(ctx, d, "fetch logs", testutil.Fail(device.FailureConnection))
	require.Equal(t, 1, d.ErrorCount())

	h.conn.RecordActivity(ctx, d, true)

	assert.Equal(t, 0, d.ErrorCount())
	assert.Equal(t, device.StatusActive, d.Status())
	active, err := h.sessions.GetActive(ctx, d.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, active.RequestCount())
	assert.Equal(t, 1, active.ErrorCount())
}

func TestEndIdleSessions(t *testing.T) {
	h := newHarness(t)
	d, tr := h.addDevice("gate", 3)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.conn.now = func() time.Time { return start }
	require.True(t, h.conn.Connect(ctx, d).Success)

	ended, err := h.conn.EndIdleSessions(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, ended)

	h.conn.now = func() time.Time { return start.Add(time.Hour) }
	ended, err = h.conn.EndIdleSessions(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)
	assert.Equal(t, 0, h.sessions.ActiveCount(d.ID()))
	assert.False(t, tr.IsConnected())
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, device.FailureAuth, failureKind(testutil.Fail(device.FailureAuth)))
	assert.Equal(t, device.FailureTimeout, failureKind(context.DeadlineExceeded))
	assert.Equal(t, device.FailureInternal, failureKind(assert.AnError))
}
