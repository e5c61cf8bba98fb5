// Package realtime streams stored access logs to live subscribers.
package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

const (
	defaultSnapshotSize = 20
	defaultPushInterval = time.Second
)

// LogReader reads the stored access log. Reads never block ingestion.
type LogReader interface {
	Recent(ctx context.Context, limit int) ([]device.LogEntry, error)
	Count(ctx context.Context) (int64, error)
}

type BroadcasterConfig struct {
	SnapshotSize int
	PushInterval time.Duration
}

// Broadcaster serves one subscriber at a time per Run call. A single
// Broadcaster is shared by all subscribers, and so is the total count: it is
// read at most once per push interval unless a subscriber asks for an update.
type Broadcaster struct {
	reader LogReader
	cfg    BroadcasterConfig
	logger logger.Interface
	now    func() time.Time

	countMu   sync.Mutex
	total     int64
	countedAt time.Time
}

func NewBroadcaster(reader LogReader, cfg BroadcasterConfig, log logger.Interface) *Broadcaster {
	if cfg.SnapshotSize <= 0 {
		cfg.SnapshotSize = defaultSnapshotSize
	}
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = defaultPushInterval
	}
	return &Broadcaster{reader: reader, cfg: cfg, logger: log, now: biztime.NowUTC}
}

// Run pushes an initial snapshot, then a fresh snapshot every interval and
// whenever the subscriber asks for one. It returns when ctx ends, when
// incoming is closed or when send fails.
func (b *Broadcaster) Run(ctx context.Context, incoming <-chan realtimeprotocol.ClientMessage, send func(realtimeprotocol.Message) error) error {
	if err := b.pushSnapshot(ctx, realtimeprotocol.MsgTypeInitialLogs, false, send); err != nil {
		return err
	}

	ticker := time.NewTicker(b.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			if err := b.handle(ctx, msg, send); err != nil {
				return err
			}

		case <-ticker.C:
			if err := b.pushSnapshot(ctx, realtimeprotocol.MsgTypeLogsUpdate, false, send); err != nil {
				return err
			}
		}
	}
}

func (b *Broadcaster) handle(ctx context.Context, msg realtimeprotocol.ClientMessage, send func(realtimeprotocol.Message) error) error {
	switch msg.Type {
	case realtimeprotocol.MsgTypePing:
		now := b.now()
		return send(realtimeprotocol.Message{
			Type:      realtimeprotocol.MsgTypePong,
			Data:      realtimeprotocol.PongData{ServerTime: now},
			Timestamp: now.Unix(),
		})
	case realtimeprotocol.MsgTypeRequestUpdate:
		return b.pushSnapshot(ctx, realtimeprotocol.MsgTypeLogsUpdate, true, send)
	default:
		b.logger.Debugw("ignoring unknown realtime message", "type", msg.Type)
		return nil
	}
}

// pushSnapshot sends the current snapshot. A failed read skips this push;
// only a failed send ends the subscription.
func (b *Broadcaster) pushSnapshot(ctx context.Context, msgType string, fresh bool, send func(realtimeprotocol.Message) error) error {
	snapshot, err := b.snapshot(ctx, fresh)
	if err != nil {
		b.logger.Warnw("failed to read access log snapshot", "error", err)
		return nil
	}
	if err := send(realtimeprotocol.Message{
		Type:      msgType,
		Data:      snapshot,
		Timestamp: b.now().Unix(),
	}); err != nil {
		return fmt.Errorf("failed to send %s: %w", msgType, err)
	}
	return nil
}

// Snapshot returns the newest stored entries and the total count, which may
// be up to one push interval old.
func (b *Broadcaster) Snapshot(ctx context.Context) (realtimeprotocol.SnapshotData, error) {
	return b.snapshot(ctx, false)
}

func (b *Broadcaster) snapshot(ctx context.Context, fresh bool) (realtimeprotocol.SnapshotData, error) {
	entries, err := b.reader.Recent(ctx, b.cfg.SnapshotSize)
	if err != nil {
		return realtimeprotocol.SnapshotData{}, err
	}
	total, err := b.totalCount(ctx, fresh)
	if err != nil {
		return realtimeprotocol.SnapshotData{}, err
	}
	return realtimeprotocol.SnapshotData{Logs: ToLogViews(entries), TotalCount: total}, nil
}

// totalCount holds countMu across the read so concurrent subscribers share
// one COUNT per interval. Failed reads are not cached.
func (b *Broadcaster) totalCount(ctx context.Context, fresh bool) (int64, error) {
	b.countMu.Lock()
	defer b.countMu.Unlock()

	now := b.now()
	if !fresh && !b.countedAt.IsZero() && now.Sub(b.countedAt) < b.cfg.PushInterval {
		return b.total, nil
	}
	total, err := b.reader.Count(ctx)
	if err != nil {
		return 0, err
	}
	b.total = total
	b.countedAt = now
	return total, nil
}

// ToLogView converts a stored entry to its wire form.
func ToLogView(e device.LogEntry) realtimeprotocol.LogView {
	return realtimeprotocol.LogView{
		ID:          e.ID,
		DeviceID:    e.DeviceID,
		DeviceLogID: e.DeviceLogID,
		UserID:      e.UserID,
		EventType:   int(e.EventType),
		EventName:   e.EventType.String(),
		EventTime:   e.EventTime,
		Details:     e.Details,
		CreatedAt:   e.CreatedAt,
	}
}

func ToLogViews(entries []device.LogEntry) []realtimeprotocol.LogView {
	views := make([]realtimeprotocol.LogView, len(entries))
	for i, e := range entries {
		views[i] = ToLogView(e)
	}
	return views
}
