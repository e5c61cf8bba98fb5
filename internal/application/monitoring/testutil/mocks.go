// Package testutil provides in-memory fakes for testing the monitoring layer.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// NewTestDevice creates an enabled device with the given threshold.
func NewTestDevice(name string, maxAttempts int) *device.Device {
	d, err := device.NewDevice(device.Params{
		SID:                     "dev_" + name,
		Name:                    name,
		Address:                 "10.0.0.1",
		Port:                    8080,
		Login:                   "admin",
		Password:                "secret",
		ConnectionTimeout:       time.Second,
		RequestTimeout:          time.Second,
		MaxReconnectionAttempts: maxAttempts,
	}, time.Now().UTC())
	if err != nil {
		panic(err)
	}
	return d
}

// Entries builds log entries with consecutive event times for the given ids.
func Entries(ids ...int64) []device.LogEntry {
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	out := make([]device.LogEntry, len(ids))
	for i, id := range ids {
		out[i] = device.LogEntry{
			DeviceLogID: id,
			UserID:      fmt.Sprintf("u%d", id%3),
			EventType:   device.EventAccessGranted,
			EventTime:   base.Add(time.Duration(id) * time.Second),
		}
	}
	return out
}

// KindError is a transport error carrying a failure kind.
type KindError struct {
	Kind device.FailureKind
}

func (e *KindError) Error() string                   { return string(e.Kind) + " failure" }
func (e *KindError) FailureKind() device.FailureKind { return e.Kind }

// Fail returns a KindError for kind.
func Fail(kind device.FailureKind) error {
	return &KindError{Kind: kind}
}

// MockDeviceRepository is an in-memory device.DeviceRepository. It stores
// snapshots and hands out fresh copies with the same version check as the
// database repository.
type MockDeviceRepository struct {
	mu     sync.RWMutex
	states map[uint]device.State
	nextID uint

	updateError error
	listError   error
	conflicts   int
}

func NewMockDeviceRepository() *MockDeviceRepository {
	return &MockDeviceRepository{states: make(map[uint]device.State)}
}

// Add stores d and assigns it an id.
func (m *MockDeviceRepository) Add(d *device.Device) *device.Device {
	if err := m.Create(context.Background(), d); err != nil {
		panic(err)
	}
	return d
}

// Get returns a fresh copy of a stored device or nil.
func (m *MockDeviceRepository) Get(id uint) *device.Device {
	d, err := m.GetByID(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return d
}

// Modify loads a device, applies fn and saves it, as an operator would.
func (m *MockDeviceRepository) Modify(id uint, fn func(d *device.Device)) *device.Device {
	d := m.Get(id)
	if d == nil {
		panic(fmt.Sprintf("device %d not found", id))
	}
	fn(d)
	if err := m.Update(context.Background(), d); err != nil {
		panic(err)
	}
	return d
}

func (m *MockDeviceRepository) Create(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID() == 0 {
		m.nextID++
		if err := d.SetID(m.nextID); err != nil {
			return err
		}
	}
	m.states[d.ID()] = d.Snapshot()
	return nil
}

func (m *MockDeviceRepository) Update(_ context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateError != nil {
		return m.updateError
	}
	stored, ok := m.states[d.ID()]
	if !ok || stored.Version != d.Version() {
		m.conflicts++
		return device.ErrVersionConflict
	}
	d.SetVersion(d.Version() + 1)
	m.states[d.ID()] = d.Snapshot()
	return nil
}

// Conflicts returns how many updates were rejected for a stale version.
func (m *MockDeviceRepository) Conflicts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conflicts
}

func (m *MockDeviceRepository) load(s device.State) *device.Device {
	d, err := device.ReconstructDevice(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (m *MockDeviceRepository) GetByID(_ context.Context, id uint) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	return m.load(s), nil
}

func (m *MockDeviceRepository) GetBySID(_ context.Context, sid string) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.states {
		if s.SID == sid {
			return m.load(s), nil
		}
	}
	return nil, nil
}

func (m *MockDeviceRepository) GetByName(_ context.Context, name string) (*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.states {
		if s.Name == name {
			return m.load(s), nil
		}
	}
	return nil, nil
}

func (m *MockDeviceRepository) List(_ context.Context, filter device.Filter) ([]*device.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listError != nil {
		return nil, m.listError
	}
	out := make([]*device.Device, 0, len(m.states))
	for _, s := range m.states {
		if filter.EnabledOnly && !s.IsEnabled {
			continue
		}
		if filter.PrimaryOnly && !s.IsPrimary {
			continue
		}
		out = append(out, m.load(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (m *MockDeviceRepository) CountByStatus(_ context.Context) (map[device.Status]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[device.Status]int64)
	for _, s := range m.states {
		out[s.Status]++
	}
	return out, nil
}

// SetUpdateError makes every Update fail with err.
func (m *MockDeviceRepository) SetUpdateError(err error) {
	m.mu.Lock()
	m.updateError = err
	m.mu.Unlock()
}

func (m *MockDeviceRepository) SetListError(err error) {
	m.mu.Lock()
	m.listError = err
	m.mu.Unlock()
}

// MockSessionRepository is an in-memory device.SessionRepository.
type MockSessionRepository struct {
	mu       sync.RWMutex
	sessions []*device.Session
	nextID   uint
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{}
}

func (m *MockSessionRepository) GetActive(_ context.Context, deviceID uint) (*device.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.DeviceID() == deviceID && s.IsActive() {
			return s, nil
		}
	}
	return nil, nil
}

func (m *MockSessionRepository) Create(_ context.Context, s *device.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.SetID(m.nextID)
	m.sessions = append(m.sessions, s)
	return nil
}

func (m *MockSessionRepository) Update(_ context.Context, s *device.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.sessions {
		if existing.ID() == s.ID() {
			m.sessions[i] = s
			return nil
		}
	}
	return fmt.Errorf("session %d not found", s.ID())
}

func (m *MockSessionRepository) ListIdle(_ context.Context, cutoff time.Time) ([]*device.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*device.Session
	for _, s := range m.sessions {
		if s.IsActive() && s.LastActivityAt().Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ForDevice returns every session row of a device.
func (m *MockSessionRepository) ForDevice(deviceID uint) []*device.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*device.Session
	for _, s := range m.sessions {
		if s.DeviceID() == deviceID {
			out = append(out, s)
		}
	}
	return out
}

// ActiveCount returns the number of active sessions of a device.
func (m *MockSessionRepository) ActiveCount(deviceID uint) int {
	n := 0
	for _, s := range m.ForDevice(deviceID) {
		if s.IsActive() {
			n++
		}
	}
	return n
}

// MockLogStore is an in-memory device.LogStore with the same skip and
// no-regression semantics as the database store.
type MockLogStore struct {
	mu      sync.RWMutex
	cursors map[uint]device.Cursor
	entries map[uint]map[int64]device.LogEntry
	nextID  uint

	appendError error
	appends     int
}

func NewMockLogStore() *MockLogStore {
	return &MockLogStore{
		cursors: make(map[uint]device.Cursor),
		entries: make(map[uint]map[int64]device.LogEntry),
	}
}

// SetCursor seeds the cursor of a device.
func (m *MockLogStore) SetCursor(deviceID uint, id int64) {
	m.mu.Lock()
	m.cursors[deviceID] = device.Cursor{DeviceID: deviceID, LastProcessedID: id, Set: true}
	m.mu.Unlock()
}

// SetAppendError makes AppendBatch fail without writing anything.
func (m *MockLogStore) SetAppendError(err error) {
	m.mu.Lock()
	m.appendError = err
	m.mu.Unlock()
}

func (m *MockLogStore) ReadCursor(_ context.Context, deviceID uint) (device.Cursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.cursors[deviceID]; ok {
		return c, nil
	}
	return device.Cursor{DeviceID: deviceID}, nil
}

func (m *MockLogStore) AppendBatch(_ context.Context, deviceID uint, entries []device.LogEntry, cursor int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendError != nil {
		return 0, m.appendError
	}
	m.appends++

	stored, ok := m.entries[deviceID]
	if !ok {
		stored = make(map[int64]device.LogEntry)
		m.entries[deviceID] = stored
	}
	inserted := 0
	for _, e := range entries {
		if _, dup := stored[e.DeviceLogID]; dup {
			continue
		}
		m.nextID++
		e.ID = m.nextID
		e.DeviceID = deviceID
		stored[e.DeviceLogID] = e
		inserted++
	}

	current := m.cursors[deviceID]
	if !current.Set || current.LastProcessedID < cursor {
		m.cursors[deviceID] = device.Cursor{DeviceID: deviceID, LastProcessedID: cursor, Set: true}
	}
	return inserted, nil
}

func (m *MockLogStore) all() []device.LogEntry {
	var out []device.LogEntry
	for _, byID := range m.entries {
		for _, e := range byID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *MockLogStore) Recent(_ context.Context, limit int) ([]device.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.all()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockLogStore) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.all())), nil
}

func (m *MockLogStore) CountSince(ctx context.Context, _ time.Time) (int64, error) {
	return m.Count(ctx)
}

func (m *MockLogStore) List(_ context.Context, filter device.LogFilter) ([]device.LogEntry, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []device.LogEntry
	for _, e := range m.all() {
		if filter.DeviceID != 0 && e.DeviceID != filter.DeviceID {
			continue
		}
		out = append(out, e)
	}
	total := int64(len(out))
	if filter.Offset < len(out) {
		out = out[filter.Offset:]
	} else {
		out = nil
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

// StoredIDs returns the stored device log ids of a device in ascending order.
func (m *MockLogStore) StoredIDs(deviceID uint) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.entries[deviceID]))
	for id := range m.entries[deviceID] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// MockAuditRepository records audit entries in memory.
type MockAuditRepository struct {
	mu      sync.RWMutex
	entries []device.AuditEntry
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Record(_ context.Context, entry *device.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockAuditRepository) ListByDevice(_ context.Context, deviceID uint, offset, limit int) ([]device.AuditEntry, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []device.AuditEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].DeviceID == deviceID {
			out = append(out, m.entries[i])
		}
	}
	total := int64(len(out))
	if offset < len(out) {
		out = out[offset:]
	} else {
		out = nil
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// Find returns the entries of a device matching category and severity.
func (m *MockAuditRepository) Find(deviceID uint, category device.AuditCategory, severity device.Severity) []device.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []device.AuditEntry
	for _, e := range m.entries {
		if e.DeviceID == deviceID && e.Category == category && e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// MockEmployeeRepository records employee writes in memory.
type MockEmployeeRepository struct {
	mu        sync.RWMutex
	employees map[string]device.Employee
	seen      chan []string
}

func NewMockEmployeeRepository() *MockEmployeeRepository {
	return &MockEmployeeRepository{
		employees: make(map[string]device.Employee),
		seen:      make(chan []string, 16),
	}
}

func employeeKey(deviceID uint, userID string) string {
	return fmt.Sprintf("%d/%s", deviceID, userID)
}

func (m *MockEmployeeRepository) Upsert(_ context.Context, employees []device.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range employees {
		m.employees[employeeKey(e.DeviceID, e.DeviceUserID)] = e
	}
	return nil
}

func (m *MockEmployeeRepository) MarkSeen(_ context.Context, deviceID uint, userIDs []string, seenAt time.Time) error {
	m.mu.Lock()
	for _, uid := range userIDs {
		key := employeeKey(deviceID, uid)
		e, ok := m.employees[key]
		if !ok {
			e = device.Employee{DeviceID: deviceID, DeviceUserID: uid}
		}
		at := seenAt
		e.LastSeenAt = &at
		m.employees[key] = e
	}
	m.mu.Unlock()

	select {
	case m.seen <- userIDs:
	default:
	}
	return nil
}

// Seen delivers the user ids of every MarkSeen call.
func (m *MockEmployeeRepository) Seen() <-chan []string {
	return m.seen
}

func (m *MockEmployeeRepository) Get(deviceID uint, userID string) (device.Employee, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[employeeKey(deviceID, userID)]
	return e, ok
}

// FakeTransport is a scriptable device transport.
type FakeTransport struct {
	mu sync.Mutex

	// AuthErrs are returned by successive Authenticate calls; nil entries
	// and an exhausted queue succeed.
	AuthErrs []error
	// Logs answers FetchAccessLogs.
	Logs   func(afterID int64) ([]device.LogEntry, error)
	Status map[string]any
	Users  []deviceprotocol.User
	Groups []deviceprotocol.Group
	// FetchErr fails every non-log fetch.
	FetchErr error
	// OnAuthenticate runs inside every Authenticate call.
	OnAuthenticate func()

	token     string
	authCalls int
	afterIDs  []int64
	closed    bool
}

func (f *FakeTransport) Authenticate(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	if f.OnAuthenticate != nil {
		f.OnAuthenticate()
	}
	if len(f.AuthErrs) > 0 {
		err := f.AuthErrs[0]
		f.AuthErrs = f.AuthErrs[1:]
		if err != nil {
			f.token = ""
			return err
		}
	}
	f.token = fmt.Sprintf("tok-%d", f.authCalls)
	return nil
}

func (f *FakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != ""
}

func (f *FakeTransport) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *FakeTransport) FetchAccessLogs(_ context.Context, afterID int64) ([]device.LogEntry, error) {
	f.mu.Lock()
	f.afterIDs = append(f.afterIDs, afterID)
	fn := f.Logs
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(afterID)
}

func (f *FakeTransport) FetchStatus(_ context.Context) (map[string]any, error) {
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return f.Status, nil
}

func (f *FakeTransport) FetchUsers(_ context.Context) ([]deviceprotocol.User, error) {
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return f.Users, nil
}

func (f *FakeTransport) FetchGroups(_ context.Context) ([]deviceprotocol.Group, error) {
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return f.Groups, nil
}

func (f *FakeTransport) Disconnect() {
	f.mu.Lock()
	f.token = ""
	f.mu.Unlock()
}

func (f *FakeTransport) Close() {
	f.mu.Lock()
	f.closed = true
	f.token = ""
	f.mu.Unlock()
}

// AuthCalls returns how many times Authenticate ran.
func (f *FakeTransport) AuthCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

// AfterIDs returns the cursors passed to FetchAccessLogs.
func (f *FakeTransport) AfterIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.afterIDs...)
}

func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// MockLogger records log calls.
type MockLogger struct {
	mu      *sync.RWMutex
	entries *[]LogRecord
	fields  []any
}

// LogRecord is one recorded log call.
type LogRecord struct {
	Level   string
	Message string
	Fields  map[string]any
}

func NewMockLogger() *MockLogger {
	return &MockLogger{mu: &sync.RWMutex{}, entries: &[]LogRecord{}}
}

func (m *MockLogger) With(args ...any) logger.Interface {
	return &MockLogger{mu: m.mu, entries: m.entries, fields: append(append([]any(nil), m.fields...), args...)}
}

func (m *MockLogger) Named(name string) logger.Interface {
	return m.With("logger", name)
}

func (m *MockLogger) Debugw(msg string, kv ...any) { m.log("DEBUG", msg, kv...) }
func (m *MockLogger) Infow(msg string, kv ...any)  { m.log("INFO", msg, kv...) }
func (m *MockLogger) Warnw(msg string, kv ...any)  { m.log("WARN", msg, kv...) }
func (m *MockLogger) Errorw(msg string, kv ...any) { m.log("ERROR", msg, kv...) }

func (m *MockLogger) log(level, msg string, kv ...any) {
	all := append(append([]any(nil), m.fields...), kv...)
	fields := make(map[string]any, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		if key, ok := all[i].(string); ok {
			fields[key] = all[i+1]
		}
	}
	m.mu.Lock()
	*m.entries = append(*m.entries, LogRecord{Level: level, Message: msg, Fields: fields})
	m.mu.Unlock()
}

// Has reports whether a message was logged at level.
func (m *MockLogger) Has(level, msg string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range *m.entries {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}
