package monitoring

import (
	"sync"
	"testing"

	"github.com/accesshub/accesshub/internal/application/monitoring/testutil"
	"github.com/accesshub/accesshub/internal/domain/device"
)

type harness struct {
	devices   *testutil.MockDeviceRepository
	sessions  *testutil.MockSessionRepository
	logs      *testutil.MockLogStore
	audits    *testutil.MockAuditRepository
	employees *testutil.MockEmployeeRepository
	logger    *testutil.MockLogger

	mu         sync.Mutex
	transports map[uint]*testutil.FakeTransport
	built      int

	conn *ConnectionService
	sync *LogSyncEngine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		devices:    testutil.NewMockDeviceRepository(),
		sessions:   testutil.NewMockSessionRepository(),
		logs:       testutil.NewMockLogStore(),
		audits:     testutil.NewMockAuditRepository(),
		employees:  testutil.NewMockEmployeeRepository(),
		logger:     testutil.NewMockLogger(),
		transports: make(map[uint]*testutil.FakeTransport),
	}
	h.conn = NewConnectionService(h.devices, h.sessions, h.audits, h.factory, nil, h.logger)
	h.sync = NewLogSyncEngine(h.conn, h.logs, h.audits, nil, h.logger,
		NewEmployeeSyncer(h.employees, h.logger))
	t.Cleanup(h.conn.Close)
	return h
}

func (h *harness) factory(d *device.Device) DeviceTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.built++
	if t, ok := h.transports[d.ID()]; ok {
		return t
	}
	t := &testutil.FakeTransport{}
	h.transports[d.ID()] = t
	return t
}

// addDevice stores a device and scripts its transport.
func (h *harness) addDevice(name string, maxAttempts int) (*device.Device, *testutil.FakeTransport) {
	d := h.devices.Add(testutil.NewTestDevice(name, maxAttempts))
	t := &testutil.FakeTransport{}
	h.mu.Lock()
	h.transports[d.ID()] = t
	h.mu.Unlock()
	return d, t
}

func logsOnce(entries []device.LogEntry) func(int64) ([]device.LogEntry, error) {
	return func(after int64) ([]device.LogEntry, error) {
		var out []device.LogEntry
		for _, e := range entries {
			if e.DeviceLogID > after {
				out = append(out, e)
			}
		}
		return out, nil
	}
}
