package realtime

import (
	"context"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

// EventPublisher delivers messages to every subscriber of every instance.
type EventPublisher interface {
	PublishLogEvents(ctx context.Context, msgs []realtimeprotocol.Message) error
}

// LogFanout turns ingested batches into new_log events, plus an
// access_denied event for every refused passage.
type LogFanout struct {
	publisher EventPublisher
	logger    logger.Interface
}

func NewLogFanout(publisher EventPublisher, log logger.Interface) *LogFanout {
	return &LogFanout{publisher: publisher, logger: log}
}

func (f *LogFanout) OnLogsIngested(ctx context.Context, batch device.IngestedBatch) {
	msgs := BuildLogEvents(batch)
	if len(msgs) == 0 {
		return
	}
	if err := f.publisher.PublishLogEvents(ctx, msgs); err != nil {
		f.logger.Warnw("failed to publish log events", "device_id", batch.DeviceID, "count", len(msgs), "error", err)
	}
}

// BuildLogEvents returns the realtime messages for batch in id order.
func BuildLogEvents(batch device.IngestedBatch) []realtimeprotocol.Message {
	ts := biztime.NowUTC().Unix()
	msgs := make([]realtimeprotocol.Message, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		data := realtimeprotocol.LogEventData{
			DeviceSID:  batch.DeviceSID,
			DeviceName: batch.DeviceName,
			Log:        ToLogView(e),
		}
		msgs = append(msgs, realtimeprotocol.Message{Type: realtimeprotocol.MsgTypeNewLog, Data: data, Timestamp: ts})
		if e.EventType.IsDenied() {
			msgs = append(msgs, realtimeprotocol.Message{Type: realtimeprotocol.MsgTypeAccessDenied, Data: data, Timestamp: ts})
		}
	}
	return msgs
}
