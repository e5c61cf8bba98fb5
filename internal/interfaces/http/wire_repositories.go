package http

import (
	"gorm.io/gorm"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/mappers"
	"github.com/accesshub/accesshub/internal/infrastructure/repository"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// repositories holds all repository instances.
type repositories struct {
	deviceRepo   device.DeviceRepository
	sessionRepo  device.SessionRepository
	logStore     *repository.AccessLogStore
	auditRepo    device.AuditRepository
	employeeRepo device.EmployeeRepository
}

// newRepositories creates all repository instances from the database connection.
func newRepositories(db *gorm.DB, sealer mappers.CredentialSealer, log logger.Interface) *repositories {
	return &repositories{
		deviceRepo:   repository.NewDeviceRepository(db, sealer, log.Named("repository.device")),
		sessionRepo:  repository.NewSessionRepository(db, log.Named("repository.session")),
		logStore:     repository.NewAccessLogStore(db, log.Named("repository.access_log")),
		auditRepo:    repository.NewAuditRepository(db, log.Named("repository.audit")),
		employeeRepo: repository.NewEmployeeRepository(db, log.Named("repository.employee")),
	}
}
