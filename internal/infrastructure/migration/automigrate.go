package migration

import (
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
)

// Models lists every persistence model managed by the auto strategy.
func Models() []any {
	return []any{
		&models.DeviceModel{},
		&models.DeviceSessionModel{},
		&models.SyncCursorModel{},
		&models.AccessLogModel{},
		&models.AuditLogModel{},
		&models.EmployeeModel{},
	}
}
