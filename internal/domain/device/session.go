package device

import (
	"fmt"
	"time"
)

// Session is the remote authentication context held for a device. At most
// one session per device is active; ended sessions are kept as history.
type Session struct {
	id             uint
	deviceID       uint
	token          string
	startedAt      time.Time
	endedAt        *time.Time
	lastActivityAt time.Time
	requestCount   int
	errorCount     int
	isActive       bool
}

// SessionState is the persisted representation of a Session.
type SessionState struct {
	ID             uint
	DeviceID       uint
	Token          string
	StartedAt      time.Time
	EndedAt        *time.Time
	LastActivityAt time.Time
	RequestCount   int
	ErrorCount     int
	IsActive       bool
}

func NewSession(deviceID uint, token string, now time.Time) (*Session, error) {
	if deviceID == 0 {
		return nil, fmt.Errorf("session requires a device id")
	}
	return &Session{
		deviceID:       deviceID,
		token:          token,
		startedAt:      now,
		lastActivityAt: now,
		isActive:       true,
	}, nil
}

func ReconstructSession(s SessionState) *Session {
	return &Session{
		id:             s.ID,
		deviceID:       s.DeviceID,
		token:          s.Token,
		startedAt:      s.StartedAt,
		endedAt:        s.EndedAt,
		lastActivityAt: s.LastActivityAt,
		requestCount:   s.RequestCount,
		errorCount:     s.ErrorCount,
		isActive:       s.IsActive,
	}
}

func (s *Session) ID() uint { return s.id }
func (s *Session) DeviceID() uint { return s.deviceID }
func (s *Session) Token() string { return s.token }
func (s *Session) StartedAt() time.Time { return s.startedAt }
func (s *Session) EndedAt() *time.Time { return s.endedAt }
func (s *Session) LastActivityAt() time.Time { return s.lastActivityAt }
func (s *Session) RequestCount() int { return s.requestCount }
func (s *Session) ErrorCount() int { return s.errorCount }
func (s *Session) IsActive() bool { return s.isActive }

// SetID sets the database ID (only for persistence layer use).
func (s *Session) SetID(id uint) {
	s.id = id
}

// Refresh stores a newly issued token on an active session.
func (s *Session) Refresh(token string, now time.Time) error {
	if !s.isActive {
		return ErrSessionNotActive
	}
	s.token = token
	s.lastActivityAt = now
	return nil
}

// RecordRequest counts one request made with this session.
func (s *Session) RecordRequest(ok bool, now time.Time) {
	s.requestCount++
	if !ok {
		s.errorCount++
	}
	s.lastActivityAt = now
}

// End closes the session. Ending an ended session is a no-op.
func (s *Session) End(now time.Time) {
	if !s.isActive {
		return
	}
	s.isActive = false
	s.endedAt = &now
	s.token = ""
}

// IsIdle reports whether the session saw no activity for longer than timeout.
func (s *Session) IsIdle(now time.Time, timeout time.Duration) bool {
	return s.isActive && timeout > 0 && now.Sub(s.lastActivityAt) > timeout
}
