package mappers

import (
	"fmt"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/persistence/models"
)

// CredentialSealer protects device passwords stored in the devices table.
type CredentialSealer interface {
	Seal(plaintext, owner string) (string, error)
	Open(value, owner string) (string, error)
}

// DeviceMapper handles the conversion between devices and persistence models.
type DeviceMapper interface {
	ToEntity(model *models.DeviceModel) (*device.Device, error)
	ToModel(entity *device.Device) (*models.DeviceModel, error)
	ToEntities(models []*models.DeviceModel) ([]*device.Device, error)
}

type deviceMapper struct {
	sealer CredentialSealer
}

func NewDeviceMapper(sealer CredentialSealer) DeviceMapper {
	return &deviceMapper{sealer: sealer}
}

func (m *deviceMapper) ToEntity(model *models.DeviceModel) (*device.Device, error) {
	if model == nil {
		return nil, nil
	}

	password, err := m.sealer.Open(model.Password, model.SID)
	if err != nil {
		return nil, fmt.Errorf("failed to open password of device %d: %w", model.ID, err)
	}

	return device.ReconstructDevice(device.State{
		Params: device.Params{
			SID:                     model.SID,
			Name:                    model.Name,
			Address:                 model.Address,
			Port:                    model.Port,
			UseHTTPS:                model.UseHTTPS,
			Login:                   model.Login,
			Password:                password,
			IsPrimary:               model.IsPrimary,
			ConnectionTimeout:       time.Duration(model.ConnectionTimeoutMs) * time.Millisecond,
			RequestTimeout:          time.Duration(model.RequestTimeoutMs) * time.Millisecond,
			MaxReconnectionAttempts: model.MaxReconnectionAttempts,
		},
		ID:               model.ID,
		Status:           device.Status(model.Status),
		IsEnabled:        model.IsEnabled,
		LastConnection:   model.LastConnection,
		LastError:        model.LastError,
		LastErrorMessage: model.LastErrorMessage,
		ErrorCount:       model.ErrorCount,
		SuccessCount:     model.SuccessCount,
		Version:          model.Version,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	})
}

func (m *deviceMapper) ToModel(entity *device.Device) (*models.DeviceModel, error) {
	if entity == nil {
		return nil, nil
	}

	password, err := m.sealer.Seal(entity.Password(), entity.SID())
	if err != nil {
		return nil, fmt.Errorf("failed to seal password: %w", err)
	}

	return &models.DeviceModel{
		ID:                      entity.ID(),
		SID:                     entity.SID(),
		Name:                    entity.Name(),
		Address:                 entity.Address(),
		Port:                    entity.Port(),
		UseHTTPS:                entity.UseHTTPS(),
		Login:                   entity.Login(),
		Password:                password,
		IsPrimary:               entity.IsPrimary(),
		ConnectionTimeoutMs:     entity.ConnectionTimeout().Milliseconds(),
		RequestTimeoutMs:        entity.RequestTimeout().Milliseconds(),
		MaxReconnectionAttempts: entity.MaxReconnectionAttempts(),
		Status:                  string(entity.Status()),
		IsEnabled:               entity.IsEnabled(),
		LastConnection:          entity.LastConnection(),
		LastError:               entity.LastError(),
		LastErrorMessage:        entity.LastErrorMessage(),
		ErrorCount:              entity.ErrorCount(),
		SuccessCount:            entity.SuccessCount(),
		Version:                 entity.Version(),
		CreatedAt:               entity.CreatedAt(),
		UpdatedAt:               entity.UpdatedAt(),
	}, nil
}

func (m *deviceMapper) ToEntities(list []*models.DeviceModel) ([]*device.Device, error) {
	out := make([]*device.Device, 0, len(list))
	for _, model := range list {
		entity, err := m.ToEntity(model)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}
