package mappers

import (
	"gorm.io/datatypes"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
)

func SessionToModel(s *device.Session) *models.DeviceSessionModel {
	return &models.DeviceSessionModel{
		ID:             s.ID(),
		DeviceID:       s.DeviceID(),
		IsActive:       s.IsActive(),
		Token:          s.Token(),
		StartedAt:      s.StartedAt(),
		EndedAt:        s.EndedAt(),
		LastActivityAt: s.LastActivityAt(),
		RequestCount:   s.RequestCount(),
		ErrorCount:     s.ErrorCount(),
	}
}

func SessionToEntity(m *models.DeviceSessionModel) *device.Session {
	if m == nil {
		return nil
	}
	return device.ReconstructSession(device.SessionState{
		ID:             m.ID,
		DeviceID:       m.DeviceID,
		Token:          m.Token,
		StartedAt:      m.StartedAt,
		EndedAt:        m.EndedAt,
		LastActivityAt: m.LastActivityAt,
		RequestCount:   m.RequestCount,
		ErrorCount:     m.ErrorCount,
		IsActive:       m.IsActive,
	})
}

func AccessLogToModel(e device.LogEntry) models.AccessLogModel {
	return models.AccessLogModel{
		DeviceID:    e.DeviceID,
		DeviceLogID: e.DeviceLogID,
		UserID:      e.UserID,
		EventType:   int(e.EventType),
		EventTime:   e.EventTime,
		Details:     toJSONMap(e.Details),
		CreatedAt:   e.CreatedAt,
	}
}

func AccessLogToEntity(m models.AccessLogModel) device.LogEntry {
	return device.LogEntry{
		ID:          m.ID,
		DeviceID:    m.DeviceID,
		DeviceLogID: m.DeviceLogID,
		UserID:      m.UserID,
		EventType:   device.EventType(m.EventType),
		EventTime:   m.EventTime,
		Details:     map[string]any(m.Details),
		CreatedAt:   m.CreatedAt,
	}
}

func AccessLogsToEntities(list []models.AccessLogModel) []device.LogEntry {
	out := make([]device.LogEntry, len(list))
	for i := range list {
		out[i] = AccessLogToEntity(list[i])
	}
	return out
}

func AuditToModel(e *device.AuditEntry) *models.AuditLogModel {
	return &models.AuditLogModel{
		DeviceID:  e.DeviceID,
		Category:  string(e.Category),
		Severity:  string(e.Severity),
		Message:   e.Message,
		Details:   toJSONMap(e.Details),
		CreatedAt: e.CreatedAt,
	}
}

func AuditToEntity(m models.AuditLogModel) device.AuditEntry {
	return device.AuditEntry{
		ID:        m.ID,
		DeviceID:  m.DeviceID,
		Category:  device.AuditCategory(m.Category),
		Severity:  device.Severity(m.Severity),
		Message:   m.Message,
		Details:   map[string]any(m.Details),
		CreatedAt: m.CreatedAt,
	}
}

func EmployeeToModel(e device.Employee) models.EmployeeModel {
	return models.EmployeeModel{
		DeviceID:     e.DeviceID,
		DeviceUserID: e.DeviceUserID,
		Name:         e.Name,
		GroupID:      e.GroupID,
		CardNumber:   e.CardNumber,
		LastSeenAt:   e.LastSeenAt,
	}
}

func toJSONMap(m map[string]any) datatypes.JSONMap {
	if len(m) == 0 {
		return nil
	}
	return datatypes.JSONMap(m)
}
