// Package device provides the domain model for access-control terminals:
// the Device aggregate with its connection health, remote sessions, ingested
// access logs and the audit trail.
package device

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Status is the operational state of a device.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
	StatusError       Status = "error"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance, StatusError:
		return true
	}
	return false
}

// Device is the aggregate root for a terminal. Health fields are only
// mutated through the Record*/Enable/Disable methods so that the
// error-count and auto-disable invariants hold.
type Device struct {
	id                      uint
	sid                     string
	name                    string
	address                 string
	port                    int
	useHTTPS                bool
	login                   string
	password                string
	isPrimary               bool
	connectionTimeout       time.Duration
	requestTimeout          time.Duration
	maxReconnectionAttempts int
	status                  Status
	isEnabled               bool
	lastConnection          *time.Time
	lastError               *time.Time
	lastErrorMessage        string
	errorCount              int
	successCount            int
	version                 int
	createdAt               time.Time
	updatedAt               time.Time
}

// Params holds the configurable attributes of a new device.
type Params struct {
	SID                     string
	Name                    string
	Address                 string
	Port                    int
	UseHTTPS                bool
	Login                   string
	Password                string
	IsPrimary               bool
	ConnectionTimeout       time.Duration
	RequestTimeout          time.Duration
	MaxReconnectionAttempts int
}

// State is the full persisted representation used to rebuild a Device.
type State struct {
	Params
	ID               uint
	Status           Status
	IsEnabled        bool
	LastConnection   *time.Time
	LastError        *time.Time
	LastErrorMessage string
	ErrorCount       int
	SuccessCount     int
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDevice creates an enabled, inactive device.
func NewDevice(p Params, now time.Time) (*Device, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}
	return &Device{
		sid:                     p.SID,
		name:                    strings.TrimSpace(p.Name),
		address:                 strings.TrimSpace(p.Address),
		port:                    p.Port,
		useHTTPS:                p.UseHTTPS,
		login:                   p.Login,
		password:                p.Password,
		isPrimary:               p.IsPrimary,
		connectionTimeout:       p.ConnectionTimeout,
		requestTimeout:          p.RequestTimeout,
		maxReconnectionAttempts: p.MaxReconnectionAttempts,
		status:                  StatusInactive,
		isEnabled:               true,
		version:                 1,
		createdAt:               now,
		updatedAt:               now,
	}, nil
}

// ReconstructDevice rebuilds a device from persistence.
func ReconstructDevice(s State) (*Device, error) {
	if s.ID == 0 {
		return nil, fmt.Errorf("%w: id cannot be zero", ErrInvalidDevice)
	}
	if err := validateParams(s.Params); err != nil {
		return nil, err
	}
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidDevice, s.Status)
	}
	version := s.Version
	if version < 1 {
		version = 1
	}
	return &Device{
		id:                      s.ID,
		sid:                     s.SID,
		name:                    s.Name,
		address:                 s.Address,
		port:                    s.Port,
		useHTTPS:                s.UseHTTPS,
		login:                   s.Login,
		password:                s.Password,
		isPrimary:               s.IsPrimary,
		connectionTimeout:       s.ConnectionTimeout,
		requestTimeout:          s.RequestTimeout,
		maxReconnectionAttempts: s.MaxReconnectionAttempts,
		status:                  s.Status,
		isEnabled:               s.IsEnabled,
		lastConnection:          s.LastConnection,
		lastError:               s.LastError,
		lastErrorMessage:        s.LastErrorMessage,
		errorCount:              s.ErrorCount,
		successCount:            s.SuccessCount,
		version:                 version,
		createdAt:               s.CreatedAt,
		updatedAt:               s.UpdatedAt,
	}, nil
}

func validateParams(p Params) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDevice)
	}
	if strings.TrimSpace(p.Address) == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidDevice)
	}
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidDevice, p.Port)
	}
	if p.MaxReconnectionAttempts < 0 {
		return fmt.Errorf("%w: max_reconnection_attempts must not be negative", ErrInvalidDevice)
	}
	return nil
}

func (d *Device) ID() uint { return d.id }
func (d *Device) SID() string { return d.sid }
func (d *Device) Name() string { return d.name }
func (d *Device) Address() string { return d.address }
func (d *Device) Port() int { return d.port }
func (d *Device) UseHTTPS() bool { return d.useHTTPS }
func (d *Device) Login() string { return d.login }
func (d *Device) Password() string { return d.password }
func (d *Device) IsPrimary() bool { return d.isPrimary }
func (d *Device) ConnectionTimeout() time.Duration { return d.connectionTimeout }
func (d *Device) RequestTimeout() time.Duration { return d.requestTimeout }
func (d *Device) MaxReconnectionAttempts() int { return d.maxReconnectionAttempts }
func (d *Device) Status() Status { return d.status }
func (d *Device) IsEnabled() bool { return d.isEnabled }
func (d *Device) LastConnection() *time.Time { return d.lastConnection }
func (d *Device) LastError() *time.Time { return d.lastError }
func (d *Device) LastErrorMessage() string { return d.lastErrorMessage }
func (d *Device) ErrorCount() int { return d.errorCount }
func (d *Device) SuccessCount() int { return d.successCount }
func (d *Device) Version() int { return d.version }
func (d *Device) CreatedAt() time.Time { return d.createdAt }
func (d *Device) UpdatedAt() time.Time { return d.updatedAt }

// SetID sets the database ID (only for persistence layer use).
func (d *Device) SetID(id uint) error {
	if d.id != 0 {
		return fmt.Errorf("device ID is already set")
	}
	if id == 0 {
		return fmt.Errorf("device ID cannot be zero")
	}
	d.id = id
	return nil
}

// SetVersion records the version stored by the last successful save (only
// for persistence layer use).
func (d *Device) SetVersion(version int) {
	d.version = version
}

// Snapshot returns the full state of the device, the inverse of
// ReconstructDevice.
func (d *Device) Snapshot() State {
	return State{
		Params: Params{
			SID:                     d.sid,
			Name:                    d.name,
			Address:                 d.address,
			Port:                    d.port,
			UseHTTPS:                d.useHTTPS,
			Login:                   d.login,
			Password:                d.password,
			IsPrimary:               d.isPrimary,
			ConnectionTimeout:       d.connectionTimeout,
			RequestTimeout:          d.requestTimeout,
			MaxReconnectionAttempts: d.maxReconnectionAttempts,
		},
		ID:               d.id,
		Status:           d.status,
		IsEnabled:        d.isEnabled,
		LastConnection:   d.lastConnection,
		LastError:        d.lastError,
		LastErrorMessage: d.lastErrorMessage,
		ErrorCount:       d.errorCount,
		SuccessCount:     d.successCount,
		Version:          d.version,
		CreatedAt:        d.createdAt,
		UpdatedAt:        d.updatedAt,
	}
}

// BaseURL returns the scheme, host and port of the device HTTP API.
func (d *Device) BaseURL() string {
	scheme := "http"
	if d.useHTTPS {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(d.address, strconv.Itoa(d.port))
}

// ClientKey identifies the transport that may be reused for this device.
// It changes whenever the endpoint changes.
func (d *Device) ClientKey() string {
	return fmt.Sprintf("%d|%s|%d|%t", d.id, d.address, d.port, d.useHTTPS)
}

// ApplyDefaults fills unset timeouts and the reconnection threshold.
func (d *Device) ApplyDefaults(connectionTimeout, requestTimeout time.Duration, maxAttempts int) {
	if d.connectionTimeout <= 0 {
		d.connectionTimeout = connectionTimeout
	}
	if d.requestTimeout <= 0 {
		d.requestTimeout = requestTimeout
	}
	if d.maxReconnectionAttempts <= 0 {
		d.maxReconnectionAttempts = maxAttempts
	}
}

// UpdateEndpoint replaces the connection attributes of the device.
func (d *Device) UpdateEndpoint(address string, port int, useHTTPS bool, login, password string, now time.Time) error {
	p := Params{Name: d.name, Address: address, Port: port, MaxReconnectionAttempts: d.maxReconnectionAttempts}
	if err := validateParams(p); err != nil {
		return err
	}
	d.address = strings.TrimSpace(address)
	d.port = port
	d.useHTTPS = useHTTPS
	d.login = login
	d.password = password
	d.updatedAt = now
	return nil
}

// SetPrimary changes the role flag.
func (d *Device) SetPrimary(primary bool, now time.Time) {
	d.isPrimary = primary
	d.updatedAt = now
}

// RecordConnectionSuccess applies a successful authentication.
func (d *Device) RecordConnectionSuccess(now time.Time) {
	d.successCount++
	d.errorCount = 0
	d.status = StatusActive
	d.lastConnection = &now
	d.lastErrorMessage = ""
	d.updatedAt = now
}

// RecordConnectionFailure counts a failed attempt and reports whether this
// failure crossed the reconnection threshold and disabled the device.
func (d *Device) RecordConnectionFailure(message string, now time.Time) (disabledNow bool) {
	d.errorCount++
	d.status = StatusError
	d.lastError = &now
	d.lastErrorMessage = message
	d.updatedAt = now

	if d.isEnabled && d.maxReconnectionAttempts > 0 && d.errorCount >= d.maxReconnectionAttempts {
		d.isEnabled = false
		return true
	}
	return false
}

// MarkHealthy clears the failure streak after a successful exchange on an
// existing session. It reports whether anything changed.
func (d *Device) MarkHealthy(now time.Time) bool {
	if d.errorCount == 0 && d.status == StatusActive {
		return false
	}
	d.errorCount = 0
	if d.status != StatusMaintenance {
		d.status = StatusActive
	}
	d.updatedAt = now
	return true
}

// MarkDisconnected records an operator initiated disconnect.
func (d *Device) MarkDisconnected(now time.Time) {
	if d.status != StatusMaintenance {
		d.status = StatusInactive
	}
	d.updatedAt = now
}

// Enable re-enables a device and clears its failure streak.
func (d *Device) Enable(now time.Time) {
	d.isEnabled = true
	d.errorCount = 0
	if d.status == StatusError {
		d.status = StatusInactive
	}
	d.updatedAt = now
}

func (d *Device) Disable(now time.Time) {
	d.isEnabled = false
	d.updatedAt = now
}

// SetMaintenance moves the device in or out of maintenance. Devices in
// maintenance are skipped by the sweep but keep their enabled flag.
func (d *Device) SetMaintenance(on bool, now time.Time) {
	switch {
	case on:
		d.status = StatusMaintenance
	case d.status == StatusMaintenance:
		d.status = StatusInactive
	}
	d.updatedAt = now
}

// InMaintenance reports whether the device is in maintenance.
func (d *Device) InMaintenance() bool {
	return d.status == StatusMaintenance
}
