// Package adapters bridges infrastructure services to application ports.
package adapters

import (
	"context"

	"github.com/accesshub/accesshub/internal/application/device/usecases"
	"github.com/accesshub/accesshub/internal/infrastructure/cache"
)

// DeviceStatusCacheAdapter implements usecases.StatusCache on top of the
// Redis device status cache.
type DeviceStatusCacheAdapter struct {
	cache *cache.DeviceStatusCache
}

func NewDeviceStatusCacheAdapter(c *cache.DeviceStatusCache) *DeviceStatusCacheAdapter {
	return &DeviceStatusCacheAdapter{cache: c}
}

func (a *DeviceStatusCacheAdapter) Set(ctx context.Context, sid string, status map[string]any) error {
	return a.cache.Set(ctx, sid, status)
}

// GetMany returns cached payloads keyed by SID; missing devices are absent.
func (a *DeviceStatusCacheAdapter) GetMany(ctx context.Context, sids []string) (map[string]*usecases.RemoteStatus, error) {
	cached, err := a.cache.GetMany(ctx, sids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*usecases.RemoteStatus, len(cached))
	for sid, s := range cached {
		if s == nil {
			continue
		}
		out[sid] = &usecases.RemoteStatus{Status: s.Status, FetchedAt: s.FetchedAt}
	}
	return out, nil
}
