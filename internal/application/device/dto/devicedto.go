package dto

import (
	"time"

	"github.com/accesshub/accesshub/internal/application/monitoring"
	"github.com/accesshub/accesshub/internal/domain/device"
)

// DeviceDTO is the admin view of a device. Credentials are never exposed.
type DeviceDTO struct {
	ID                      string     `json:"id" example:"dev_xK9mP2vL3nQa" description:"Device identifier (prefixed ID)"`
	Name                    string     `json:"name" example:"Main entrance"`
	Address                 string     `json:"address" example:"10.0.0.15"`
	Port                    int        `json:"port" example:"8080"`
	UseHTTPS                bool       `json:"use_https"`
	IsPrimary               bool       `json:"is_primary"`
	IsEnabled               bool       `json:"is_enabled"`
	Connected               bool       `json:"connected"`
	Status                  string     `json:"status" enums:"active,inactive,maintenance,error"`
	ErrorCount              int        `json:"error_count"`
	SuccessCount            int        `json:"success_count"`
	MaxReconnectionAttempts int        `json:"max_reconnection_attempts"`
	LastConnection          *time.Time `json:"last_connection,omitempty"`
	LastError               *time.Time `json:"last_error,omitempty"`
	LastErrorMessage        string     `json:"last_error_message,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

func ToDeviceDTO(d *device.Device, connected bool) *DeviceDTO {
	if d == nil {
		return nil
	}
	return &DeviceDTO{
		ID:                      d.SID(),
		Name:                    d.Name(),
		Address:                 d.Address(),
		Port:                    d.Port(),
		UseHTTPS:                d.UseHTTPS(),
		IsPrimary:               d.IsPrimary(),
		IsEnabled:               d.IsEnabled(),
		Connected:               connected,
		Status:                  string(d.Status()),
		ErrorCount:              d.ErrorCount(),
		SuccessCount:            d.SuccessCount(),
		MaxReconnectionAttempts: d.MaxReconnectionAttempts(),
		LastConnection:          d.LastConnection(),
		LastError:               d.LastError(),
		LastErrorMessage:        d.LastErrorMessage(),
		CreatedAt:               d.CreatedAt(),
		UpdatedAt:               d.UpdatedAt(),
	}
}

// ConnectionResultDTO is returned by connect and disconnect.
type ConnectionResultDTO struct {
	DeviceID string     `json:"device_id"`
	Success  bool       `json:"success"`
	Kind     string     `json:"kind,omitempty"`
	Message  string     `json:"message"`
	Device   *DeviceDTO `json:"device,omitempty"`
}

func ToConnectionResultDTO(d *device.Device, out device.Outcome, connected bool) *ConnectionResultDTO {
	return &ConnectionResultDTO{
		DeviceID: d.SID(),
		Success:  out.Success,
		Kind:     string(out.Kind),
		Message:  out.Message,
		Device:   ToDeviceDTO(d, connected),
	}
}

type GapDTO struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// SyncResultDTO reports one on-demand sync cycle.
type SyncResultDTO struct {
	DeviceID   string   `json:"device_id"`
	DeviceName string   `json:"device_name"`
	Success    bool     `json:"success"`
	Kind       string   `json:"kind,omitempty"`
	Message    string   `json:"message"`
	Fetched    int      `json:"fetched"`
	Stored     int      `json:"stored"`
	Cursor     int64    `json:"cursor"`
	Gaps       []GapDTO `json:"gaps,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

func ToSyncResultDTO(r monitoring.SyncResult) *SyncResultDTO {
	out := &SyncResultDTO{
		DeviceID:   r.DeviceSID,
		DeviceName: r.DeviceName,
		Success:    r.Success,
		Kind:       string(r.Kind),
		Message:    r.Message,
		Fetched:    r.Fetched,
		Stored:     r.Entries,
		Cursor:     r.Cursor,
		DurationMs: r.Duration.Milliseconds(),
	}
	for _, g := range r.Gaps {
		out.Gaps = append(out.Gaps, GapDTO{From: g.From, To: g.To})
	}
	return out
}

// DeviceStatusDTO combines stored health with the last remote status payload.
type DeviceStatusDTO struct {
	DeviceID      string         `json:"device_id"`
	Name          string         `json:"name"`
	Status        string         `json:"status"`
	IsEnabled     bool           `json:"is_enabled"`
	Connected     bool           `json:"connected"`
	ErrorCount    int            `json:"error_count"`
	Remote        map[string]any `json:"remote,omitempty"`
	RemoteFetched *time.Time     `json:"remote_fetched_at,omitempty"`
}

func ToDeviceStatusDTO(d *device.Device, connected bool) *DeviceStatusDTO {
	return &DeviceStatusDTO{
		DeviceID:   d.SID(),
		Name:       d.Name(),
		Status:     string(d.Status()),
		IsEnabled:  d.IsEnabled(),
		Connected:  connected,
		ErrorCount: d.ErrorCount(),
	}
}

type AuditLogDTO struct {
	ID        uint           `json:"id"`
	DeviceID  uint           `json:"device_id"`
	Category  string         `json:"category"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func ToAuditLogDTOs(entries []device.AuditEntry) []AuditLogDTO {
	out := make([]AuditLogDTO, len(entries))
	for i, e := range entries {
		out[i] = AuditLogDTO{
			ID:        e.ID,
			DeviceID:  e.DeviceID,
			Category:  string(e.Category),
			Severity:  string(e.Severity),
			Message:   e.Message,
			Details:   e.Details,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}

// MonitoringStatusDTO wraps the monitor state with the device counts.
type MonitoringStatusDTO struct {
	monitoring.MonitorStatus
	DevicesByStatus map[string]int64 `json:"devices_by_status"`
	DevicesTotal    int64            `json:"devices_total"`
}
