package pubsub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

type collector struct {
	mu   sync.Mutex
	msgs []realtimeprotocol.Message
	got  chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 16)}
}

func (c *collector) handle(msgs []realtimeprotocol.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msgs...)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no relayed messages")
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestLogEventEnvelope_Wire(t *testing.T) {
	env := LogEventEnvelope{
		InstanceID: "instance-1",
		Messages:   []realtimeprotocol.Message{{Type: realtimeprotocol.MsgTypeNewLog, Timestamp: 1700000000}},
	}

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"instance_id":"instance-1"`)
	assert.Contains(t, string(data), `"type":"new_log"`)
}

func TestRedisLogEventBus_RelaysAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	localA := newCollector()
	busA := NewRedisLogEventBus(newClient(), localA.handle, logger.NewNop())
	remoteB := newCollector()
	busB := NewRedisLogEventBus(newClient(), nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayedToA := newCollector()
	go func() { _ = busA.Subscribe(ctx, relayedToA.handle) }()
	go func() { _ = busB.Subscribe(ctx, remoteB.handle) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(logEventChannel)[logEventChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs := []realtimeprotocol.Message{{Type: realtimeprotocol.MsgTypeNewLog}, {Type: realtimeprotocol.MsgTypeAccessDenied}}
	require.NoError(t, busA.PublishLogEvents(ctx, msgs))

	localA.wait(t)
	assert.Equal(t, 2, localA.count())

	remoteB.wait(t)
	assert.Equal(t, 2, remoteB.count())

	select {
	case <-relayedToA.got:
		t.Fatal("instance received its own event through redis")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLocalLogEventBus(t *testing.T) {
	c := newCollector()
	bus := NewLocalLogEventBus(c.handle)

	require.NoError(t, bus.PublishLogEvents(context.Background(), []realtimeprotocol.Message{{Type: realtimeprotocol.MsgTypeNewLog}}))
	require.NoError(t, bus.PublishLogEvents(context.Background(), nil))

	c.wait(t)
	assert.Equal(t, 1, c.count())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Subscribe(ctx, nil), context.Canceled)
}
