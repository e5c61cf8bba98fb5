// Package pubsub relays realtime log events between service instances.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/constants"
	"github.com/accesshub/accesshub/internal/shared/goroutine"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

const logEventChannel = constants.RedisChannelAccessLog

// LogEventEnvelope carries a group of realtime messages across instances.
type LogEventEnvelope struct {
	InstanceID  string                     `json:"instance_id"`
	PublishedAt int64                      `json:"published_at"`
	Messages    []realtimeprotocol.Message `json:"messages"`
}

// LogEventHandler receives relayed messages.
type LogEventHandler func(msgs []realtimeprotocol.Message)

// LogEventBus publishes ingested log events and delivers them to the local
// hub of every instance.
type LogEventBus interface {
	PublishLogEvents(ctx context.Context, msgs []realtimeprotocol.Message) error
	// Subscribe blocks relaying messages to handler until ctx ends.
	Subscribe(ctx context.Context, handler LogEventHandler) error
}

// RedisLogEventBus implements LogEventBus with Redis Pub/Sub. The local
// instance receives its own events directly, not through Redis.
type RedisLogEventBus struct {
	client     *redis.Client
	local      LogEventHandler
	logger     logger.Interface
	instanceID string
}

// NewRedisLogEventBus creates a bus that also hands every published event to
// local right away.
func NewRedisLogEventBus(client *redis.Client, local LogEventHandler, log logger.Interface) *RedisLogEventBus {
	return &RedisLogEventBus{
		client:     client,
		local:      local,
		logger:     log,
		instanceID: uuid.NewString(),
	}
}

func (b *RedisLogEventBus) InstanceID() string { return b.instanceID }

func (b *RedisLogEventBus) PublishLogEvents(ctx context.Context, msgs []realtimeprotocol.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if b.local != nil {
		b.local(msgs)
	}

	data, err := json.Marshal(LogEventEnvelope{
		InstanceID:  b.instanceID,
		PublishedAt: biztime.NowUTC().Unix(),
		Messages:    msgs,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal log events: %w", err)
	}

	if err := b.client.Publish(ctx, logEventChannel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish log events",
			"count", len(msgs),
			"error", err,
		)
		return fmt.Errorf("failed to publish log events: %w", err)
	}

	b.logger.Debugw("log events published to Redis", "count", len(msgs))
	return nil
}

// Subscribe relays events published by other instances to handler and
// reconnects with exponential backoff until ctx ends.
func (b *RedisLogEventBus) Subscribe(ctx context.Context, handler LogEventHandler) error {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		err := b.subscribe(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b.logger.Warnw("log event subscription disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

func (b *RedisLogEventBus) subscribe(ctx context.Context, handler LogEventHandler) error {
	ps := b.client.Subscribe(ctx, logEventChannel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", logEventChannel, err)
	}
	b.logger.Infow("subscribed to log event channel", "channel", logEventChannel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var env LogEventEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warnw("failed to unmarshal log event envelope", "error", err)
				continue
			}
			// own events were delivered locally on publish
			if env.InstanceID == b.instanceID {
				continue
			}

			goroutine.SafeGo(b.logger, "log-event-relay", func() {
				handler(env.Messages)
			})
		}
	}
}

// LocalLogEventBus delivers events in process. It is used when Redis is
// disabled and a single instance serves all subscribers.
type LocalLogEventBus struct {
	handler LogEventHandler
}

func NewLocalLogEventBus(handler LogEventHandler) *LocalLogEventBus {
	return &LocalLogEventBus{handler: handler}
}

func (b *LocalLogEventBus) PublishLogEvents(_ context.Context, msgs []realtimeprotocol.Message) error {
	if len(msgs) > 0 && b.handler != nil {
		b.handler(msgs)
	}
	return nil
}

// Subscribe waits for ctx; local events never arrive from elsewhere.
func (b *LocalLogEventBus) Subscribe(ctx context.Context, _ LogEventHandler) error {
	<-ctx.Done()
	return ctx.Err()
}
