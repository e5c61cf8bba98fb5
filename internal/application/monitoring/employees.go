package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/deviceprotocol"
	"github.com/accesshub/accesshub/internal/shared/logger"
)

// EmployeeSyncer keeps the minimal employee table in step with what devices
// report. Both paths are upserts and safe to repeat.
type EmployeeSyncer struct {
	repo   device.EmployeeRepository
	logger logger.Interface
	now    func() time.Time
}

func NewEmployeeSyncer(repo device.EmployeeRepository, log logger.Interface) *EmployeeSyncer {
	return &EmployeeSyncer{repo: repo, logger: log, now: biztime.NowUTC}
}

// OnLogsIngested marks every user that appears in the batch as seen.
func (s *EmployeeSyncer) OnLogsIngested(ctx context.Context, batch device.IngestedBatch) {
	ids := batch.UserIDs()
	if len(ids) == 0 {
		return
	}
	if err := s.repo.MarkSeen(ctx, batch.DeviceID, ids, s.now()); err != nil {
		s.logger.Warnw("failed to mark employees seen", "device_id", batch.DeviceID, "users", len(ids), "error", err)
	}
}

// SyncUsers upserts the user list returned by a device.
func (s *EmployeeSyncer) SyncUsers(ctx context.Context, deviceID uint, users []deviceprotocol.User) error {
	now := s.now()
	employees := make([]device.Employee, 0, len(users))
	for _, u := range users {
		uid := strings.TrimSpace(u.ID)
		if uid == "" {
			continue
		}
		employees = append(employees, device.Employee{
			DeviceID:     deviceID,
			DeviceUserID: uid,
			Name:         u.Name,
			GroupID:      u.GroupID,
			CardNumber:   u.CardNumber,
			UpdatedAt:    now,
		})
	}
	if len(employees) == 0 {
		return nil
	}
	if err := s.repo.Upsert(ctx, employees); err != nil {
		s.logger.Warnw("failed to upsert employees", "device_id", deviceID, "count", len(employees), "error", err)
		return err
	}
	s.logger.Debugw("employees synchronized", "device_id", deviceID, "count", len(employees))
	return nil
}
