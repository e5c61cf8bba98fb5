package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

func TestRealtimeHub_BroadcastReachesSubscribers(t *testing.T) {
	hub := NewRealtimeHub(logger.NewNop(), nil)
	a := hub.Register("a", "127.0.0.1")
	b := hub.Register("b", "127.0.0.2")
	require.NotNil(t, a)
	require.NotNil(t, b)

	hub.Broadcast([]realtimeprotocol.Message{{Type: realtimeprotocol.MsgTypeNewLog, Timestamp: 1}})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case frame := <-sub.Send:
			var msg realtimeprotocol.Message
			require.NoError(t, json.Unmarshal(frame, &msg))
			assert.Equal(t, realtimeprotocol.MsgTypeNewLog, msg.Type)
		default:
			t.Fatalf("subscriber %s got nothing", sub.ID)
		}
	}
}

func TestRealtimeHub_Limit(t *testing.T) {
	hub := NewRealtimeHub(logger.NewNop(), &RealtimeHubConfig{MaxSubscribers: 1})

	require.NotNil(t, hub.Register("a", ""))
	assert.Nil(t, hub.Register("b", ""))

	hub.Unregister("a")
	assert.NotNil(t, hub.Register("b", ""))
}

func TestRealtimeHub_FullBufferDrops(t *testing.T) {
	hub := NewRealtimeHub(logger.NewNop(), nil)
	sub := hub.Register("slow", "")
	require.NotNil(t, sub)

	msgs := make([]realtimeprotocol.Message, subscriberBuffer+5)
	for i := range msgs {
		msgs[i] = realtimeprotocol.Message{Type: realtimeprotocol.MsgTypeNewLog}
	}
	hub.Broadcast(msgs)

	assert.Len(t, sub.Send, subscriberBuffer)
	assert.Equal(t, int64(1), hub.Dropped())
}

func TestRealtimeHub_Shutdown(t *testing.T) {
	hub := NewRealtimeHub(logger.NewNop(), nil)
	sub := hub.Register("a", "")

	hub.Shutdown()
	hub.Shutdown()

	_, open := <-sub.Send
	assert.False(t, open)
	assert.False(t, sub.TrySend([]byte("x")))
	assert.Nil(t, hub.Register("b", ""))
	assert.Zero(t, hub.SubscriberCount())
}
