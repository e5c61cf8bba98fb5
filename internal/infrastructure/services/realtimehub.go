// Package services provides process-local infrastructure services.
package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/accesshub/accesshub/internal/shared/biztime"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

const subscriberBuffer = 64

// Subscriber is one live access log stream.
type Subscriber struct {
	ID          string
	RemoteAddr  string
	Send        chan []byte
	ConnectedAt time.Time
	closed      atomic.Bool
}

// TrySend queues data without blocking. It returns false if the subscriber
// is closed or its buffer is full.
func (s *Subscriber) TrySend(data []byte) (sent bool) {
	if s.closed.Load() {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	select {
	case s.Send <- data:
		return true
	default:
		return false
	}
}

// Close marks the subscriber closed and closes its send channel.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.Send)
	}
}

// RealtimeHubConfig holds configuration for RealtimeHub.
type RealtimeHubConfig struct {
	MaxSubscribers int // default: 256
}

// RealtimeHub fans out log events to every local subscriber.
type RealtimeHub struct {
	subs   map[string]*Subscriber
	subsMu sync.RWMutex

	maxSubscribers int
	dropped        atomic.Int64

	shutdown atomic.Bool
	logger   logger.Interface
}

func NewRealtimeHub(log logger.Interface, config *RealtimeHubConfig) *RealtimeHub {
	maxSubs := 256
	if config != nil && config.MaxSubscribers > 0 {
		maxSubs = config.MaxSubscribers
	}
	return &RealtimeHub{
		subs:           make(map[string]*Subscriber),
		maxSubscribers: maxSubs,
		logger:         log,
	}
}

// Register adds a subscriber. It returns nil when the hub is full or shut down.
func (h *RealtimeHub) Register(id, remoteAddr string) *Subscriber {
	if h.shutdown.Load() {
		return nil
	}

	h.subsMu.Lock()
	defer h.subsMu.Unlock()

	if len(h.subs) >= h.maxSubscribers {
		h.logger.Warnw("realtime subscriber limit exceeded",
			"remote_addr", remoteAddr,
			"limit", h.maxSubscribers,
		)
		return nil
	}

	sub := &Subscriber{
		ID:          id,
		RemoteAddr:  remoteAddr,
		Send:        make(chan []byte, subscriberBuffer),
		ConnectedAt: biztime.NowUTC(),
	}
	h.subs[id] = sub

	h.logger.Infow("realtime subscriber registered",
		"subscriber_id", id,
		"remote_addr", remoteAddr,
		"subscribers", len(h.subs),
	)
	return sub
}

func (h *RealtimeHub) Unregister(id string) {
	h.subsMu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.subsMu.Unlock()

	if ok {
		sub.Close()
		h.logger.Infow("realtime subscriber unregistered",
			"subscriber_id", id,
			"connected_for", time.Since(sub.ConnectedAt).Round(time.Second).String(),
		)
	}
}

// Broadcast encodes each message once and queues it on every subscriber.
// Slow subscribers lose messages instead of blocking ingestion.
func (h *RealtimeHub) Broadcast(msgs []realtimeprotocol.Message) {
	if h.shutdown.Load() || len(msgs) == 0 {
		return
	}

	frames := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Errorw("failed to encode realtime message",
				"type", msg.Type,
				"error", err,
			)
			continue
		}
		frames = append(frames, data)
	}

	h.subsMu.RLock()
	defer h.subsMu.RUnlock()

	for _, sub := range h.subs {
		for _, frame := range frames {
			if !sub.TrySend(frame) {
				h.dropped.Add(1)
				h.logger.Warnw("realtime subscriber buffer full, dropping message",
					"subscriber_id", sub.ID,
				)
				break
			}
		}
	}
}

// PublishLogEvents delivers msgs to local subscribers only.
func (h *RealtimeHub) PublishLogEvents(_ context.Context, msgs []realtimeprotocol.Message) error {
	h.Broadcast(msgs)
	return nil
}

func (h *RealtimeHub) SubscriberCount() int {
	h.subsMu.RLock()
	defer h.subsMu.RUnlock()
	return len(h.subs)
}

// Dropped returns the number of frames lost to full subscriber buffers.
func (h *RealtimeHub) Dropped() int64 {
	return h.dropped.Load()
}

// Shutdown closes every subscriber. Safe to call multiple times.
func (h *RealtimeHub) Shutdown() {
	if !h.shutdown.CompareAndSwap(false, true) {
		return
	}

	h.subsMu.Lock()
	for _, sub := range h.subs {
		sub.Close()
	}
	h.subs = make(map[string]*Subscriber)
	h.subsMu.Unlock()
}
