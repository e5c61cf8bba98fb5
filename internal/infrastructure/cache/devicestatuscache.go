package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/constants"
)

const defaultDeviceStatusTTL = 2 * time.Minute

// CachedDeviceStatus is the last status payload reported by a device.
type CachedDeviceStatus struct {
	DeviceSID string         `json:"device_sid"`
	Status    map[string]any `json:"status"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// DeviceStatusCache keeps the last remote status of each device in Redis so
// that the aggregate status endpoint does not hit every device per request.
type DeviceStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDeviceStatusCache(client *redis.Client, ttl time.Duration) *DeviceStatusCache {
	if ttl <= 0 {
		ttl = defaultDeviceStatusTTL
	}
	return &DeviceStatusCache{client: client, ttl: ttl}
}

func (c *DeviceStatusCache) key(sid string) string {
	return constants.RedisKeyDeviceStatus + sid
}

// Set stores the status payload of a device.
func (c *DeviceStatusCache) Set(ctx context.Context, sid string, status map[string]any) error {
	entry := CachedDeviceStatus{DeviceSID: sid, Status: status, FetchedAt: biztime.NowUTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal device status: %w", err)
	}
	if err := c.client.Set(ctx, c.key(sid), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache device status: %w", err)
	}
	return nil
}

// Get returns the cached status or nil when absent or expired.
func (c *DeviceStatusCache) Get(ctx context.Context, sid string) (*CachedDeviceStatus, error) {
	data, err := c.client.Get(ctx, c.key(sid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read device status: %w", err)
	}

	var entry CachedDeviceStatus
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device status: %w", err)
	}
	return &entry, nil
}

// GetMany returns the cached statuses of the given devices keyed by SID.
// Missing devices are absent from the result.
func (c *DeviceStatusCache) GetMany(ctx context.Context, sids []string) (map[string]*CachedDeviceStatus, error) {
	out := make(map[string]*CachedDeviceStatus, len(sids))
	if len(sids) == 0 {
		return out, nil
	}

	keys := make([]string, len(sids))
	for i, sid := range sids {
		keys[i] = c.key(sid)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read device statuses: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry CachedDeviceStatus
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out[sids[i]] = &entry
	}
	return out, nil
}

func (c *DeviceStatusCache) Delete(ctx context.Context, sid string) error {
	if err := c.client.Del(ctx, c.key(sid)).Err(); err != nil {
		return fmt.Errorf("failed to delete device status: %w", err)
	}
	return nil
}
