package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

type fakeReader struct {
	mu       sync.Mutex
	entries  []device.LogEntry
	err      error
	limits   []int
	counts   int
	countErr error
}

func (f *fakeReader) Recent(_ context.Context, limit int) ([]device.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	out := f.entries
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeReader) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.entries)), f.err
}

func (f *fakeReader) countCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts
}

type subscriber struct {
	incoming chan realtimeprotocol.ClientMessage
	out      chan realtimeprotocol.Message
	done     chan error
}

func startSubscriber(t *testing.T, b *Broadcaster) (*subscriber, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscriber{
		incoming: make(chan realtimeprotocol.ClientMessage),
		out:      make(chan realtimeprotocol.Message, 16),
		done:     make(chan error, 1),
	}
	go func() {
		s.done <- b.Run(ctx, s.incoming, func(m realtimeprotocol.Message) error {
			s.out <- m
			return nil
		})
	}()
	t.Cleanup(cancel)
	return s, cancel
}

func (s *subscriber) next(t *testing.T) realtimeprotocol.Message {
	t.Helper()
	select {
	case m := <-s.out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return realtimeprotocol.Message{}
	}
}

func entries(n int) []device.LogEntry {
	out := make([]device.LogEntry, n)
	for i := range out {
		out[i] = device.LogEntry{ID: uint(n - i), DeviceID: 1, DeviceLogID: int64(n - i), EventType: device.EventAccessGranted}
	}
	return out
}

func TestBroadcaster_InitialSnapshot(t *testing.T) {
	reader := &fakeReader{entries: entries(30)}
	b := NewBroadcaster(reader, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())

	s, _ := startSubscriber(t, b)
	msg := s.next(t)

	assert.Equal(t, realtimeprotocol.MsgTypeInitialLogs, msg.Type)
	data, ok := msg.Data.(realtimeprotocol.SnapshotData)
	require.True(t, ok)
	assert.Len(t, data.Logs, 20)
	assert.Equal(t, int64(30), data.TotalCount)
	assert.Equal(t, uint(30), data.Logs[0].ID)
	assert.Equal(t, "access_granted", data.Logs[0].EventName)
}

func TestBroadcaster_RequestUpdatePushesImmediately(t *testing.T) {
	reader := &fakeReader{entries: entries(2)}
	b := NewBroadcaster(reader, BroadcasterConfig{SnapshotSize: 5, PushInterval: time.Hour}, logger.NewNop())

	s, _ := startSubscriber(t, b)
	require.Equal(t, realtimeprotocol.MsgTypeInitialLogs, s.next(t).Type)

	reader.mu.Lock()
	reader.entries = entries(3)
	reader.mu.Unlock()

	s.incoming <- realtimeprotocol.ClientMessage{Type: realtimeprotocol.MsgTypeRequestUpdate}
	msg := s.next(t)

	assert.Equal(t, realtimeprotocol.MsgTypeLogsUpdate, msg.Type)
	data := msg.Data.(realtimeprotocol.SnapshotData)
	assert.Equal(t, int64(3), data.TotalCount)
}

func TestBroadcaster_SubscribersShareCount(t *testing.T) {
	reader := &fakeReader{entries: entries(4)}
	b := NewBroadcaster(reader, BroadcasterConfig{PushInterval: time.Second}, logger.NewNop())
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := b.Snapshot(ctx)
			assert.NoError(t, err)
			assert.Equal(t, int64(4), data.TotalCount)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, reader.countCalls())

	reader.mu.Lock()
	reader.entries = entries(5)
	reader.mu.Unlock()

	data, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), data.TotalCount, "count is reused within one interval")

	clock = clock.Add(time.Second)
	data, err = b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), data.TotalCount)
	assert.Equal(t, 2, reader.countCalls())
}

func TestBroadcaster_FailedCountIsNotReused(t *testing.T) {
	reader := &fakeReader{entries: entries(2), countErr: errors.New("database locked")}
	b := NewBroadcaster(reader, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())
	ctx := context.Background()

	_, err := b.Snapshot(ctx)
	require.Error(t, err)

	reader.mu.Lock()
	reader.countErr = nil
	reader.mu.Unlock()

	data, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), data.TotalCount)
	assert.Equal(t, 2, reader.countCalls())
}

func TestBroadcaster_PeriodicUpdates(t *testing.T) {
	reader := &fakeReader{entries: entries(1)}
	b := NewBroadcaster(reader, BroadcasterConfig{PushInterval: 20 * time.Millisecond}, logger.NewNop())

	s, _ := startSubscriber(t, b)
	require.Equal(t, realtimeprotocol.MsgTypeInitialLogs, s.next(t).Type)

	assert.Equal(t, realtimeprotocol.MsgTypeLogsUpdate, s.next(t).Type)
	assert.Equal(t, realtimeprotocol.MsgTypeLogsUpdate, s.next(t).Type)
}

func TestBroadcaster_PingAndUnknown(t *testing.T) {
	b := NewBroadcaster(&fakeReader{}, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())

	s, _ := startSubscriber(t, b)
	require.Equal(t, realtimeprotocol.MsgTypeInitialLogs, s.next(t).Type)

	s.incoming <- realtimeprotocol.ClientMessage{Type: "subscribe_everything"}
	s.incoming <- realtimeprotocol.ClientMessage{Type: realtimeprotocol.MsgTypePing}

	msg := s.next(t)
	assert.Equal(t, realtimeprotocol.MsgTypePong, msg.Type)
	pong, ok := msg.Data.(realtimeprotocol.PongData)
	require.True(t, ok)
	assert.False(t, pong.ServerTime.IsZero())
}

func TestBroadcaster_StopsWhenIncomingCloses(t *testing.T) {
	b := NewBroadcaster(&fakeReader{}, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())

	s, _ := startSubscriber(t, b)
	s.next(t)
	close(s.incoming)

	select {
	case err := <-s.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

func TestBroadcaster_StopsOnCancel(t *testing.T) {
	b := NewBroadcaster(&fakeReader{}, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())

	s, cancel := startSubscriber(t, b)
	s.next(t)
	cancel()

	select {
	case err := <-s.done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

func TestBroadcaster_SendFailureEnds(t *testing.T) {
	b := NewBroadcaster(&fakeReader{}, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())
	gone := errors.New("connection closed")

	err := b.Run(context.Background(), make(chan realtimeprotocol.ClientMessage), func(realtimeprotocol.Message) error {
		return gone
	})

	assert.ErrorIs(t, err, gone)
}

func TestBroadcaster_ReadFailureSkipsPush(t *testing.T) {
	reader := &fakeReader{err: errors.New("database locked")}
	b := NewBroadcaster(reader, BroadcasterConfig{PushInterval: time.Hour}, logger.NewNop())

	s, cancel := startSubscriber(t, b)
	s.incoming <- realtimeprotocol.ClientMessage{Type: realtimeprotocol.MsgTypePing}

	assert.Equal(t, realtimeprotocol.MsgTypePong, s.next(t).Type)
	cancel()
}

type recordingPublisher struct {
	msgs []realtimeprotocol.Message
}

func (p *recordingPublisher) PublishLogEvents(_ context.Context, msgs []realtimeprotocol.Message) error {
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func TestLogFanout_DeniedEventsAreDoubled(t *testing.T) {
	pub := &recordingPublisher{}
	f := NewLogFanout(pub, logger.NewNop())

	f.OnLogsIngested(context.Background(), device.IngestedBatch{
		DeviceID:   1,
		DeviceSID:  "dev_gate",
		DeviceName: "gate",
		Entries: []device.LogEntry{
			{DeviceLogID: 1, EventType: device.EventAccessGranted},
			{DeviceLogID: 2, EventType: device.EventAccessDenied},
		},
	})

	require.Len(t, pub.msgs, 3)
	assert.Equal(t, realtimeprotocol.MsgTypeNewLog, pub.msgs[0].Type)
	assert.Equal(t, realtimeprotocol.MsgTypeNewLog, pub.msgs[1].Type)
	assert.Equal(t, realtimeprotocol.MsgTypeAccessDenied, pub.msgs[2].Type)
	data := pub.msgs[2].Data.(realtimeprotocol.LogEventData)
	assert.Equal(t, "dev_gate", data.DeviceSID)
	assert.Equal(t, int64(2), data.Log.DeviceLogID)
}
