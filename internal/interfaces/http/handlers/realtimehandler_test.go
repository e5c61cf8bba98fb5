package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accesshub/accesshub/internal/application/realtime"
	"github.com/accesshub/accesshub/internal/domain/device"
	"github.com/accesshub/accesshub/internal/infrastructure/services"
	"github.com/accesshub/accesshub/internal/interfaces/http/handlers/testutil"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

type stubLogReader struct {
	mu      sync.Mutex
	entries []device.LogEntry
}

func (r *stubLogReader) Recent(_ context.Context, limit int) ([]device.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	return append([]device.LogEntry(nil), r.entries[:limit]...), nil
}

func (r *stubLogReader) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.entries)), nil
}

type wireMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func startRealtimeServer(t *testing.T, reader realtime.LogReader, hub *services.RealtimeHub) string {
	t.Helper()

	broadcaster := realtime.NewBroadcaster(reader, realtime.BroadcasterConfig{
		SnapshotSize: 5,
		PushInterval: time.Hour,
	}, testutil.NewMockLogger())
	handler := NewRealtimeHandler(hub, broadcaster, RealtimeConfig{}, testutil.NewMockLogger())

	engine := gin.New()
	engine.GET("/ws/access-logs", handler.AccessLogsWS)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/access-logs"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wireMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestRealtimeHandler_InitialSnapshotAndRequestUpdate(t *testing.T) {
	reader := &stubLogReader{entries: []device.LogEntry{
		{ID: 3, DeviceID: 1, DeviceLogID: 30, EventType: device.EventAccessGranted},
		{ID: 2, DeviceID: 1, DeviceLogID: 20, EventType: device.EventAccessDenied},
	}}
	hub := services.NewRealtimeHub(testutil.NewMockLogger(), nil)
	conn := dial(t, startRealtimeServer(t, reader, hub))

	initial := readUntil(t, conn, realtimeprotocol.MsgTypeInitialLogs)
	var snapshot realtimeprotocol.SnapshotData
	require.NoError(t, json.Unmarshal(initial.Data, &snapshot))
	assert.Equal(t, int64(2), snapshot.TotalCount)
	require.Len(t, snapshot.Logs, 2)
	assert.Equal(t, int64(30), snapshot.Logs[0].DeviceLogID)

	reader.mu.Lock()
	reader.entries = append([]device.LogEntry{{ID: 4, DeviceID: 1, DeviceLogID: 40}}, reader.entries...)
	reader.mu.Unlock()

	require.NoError(t, conn.WriteJSON(realtimeprotocol.ClientMessage{Type: realtimeprotocol.MsgTypeRequestUpdate}))
	update := readUntil(t, conn, realtimeprotocol.MsgTypeLogsUpdate)
	require.NoError(t, json.Unmarshal(update.Data, &snapshot))
	assert.Equal(t, int64(3), snapshot.TotalCount)
}

func TestRealtimeHandler_PingPong(t *testing.T) {
	hub := services.NewRealtimeHub(testutil.NewMockLogger(), nil)
	conn := dial(t, startRealtimeServer(t, &stubLogReader{}, hub))
	readUntil(t, conn, realtimeprotocol.MsgTypeInitialLogs)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteJSON(realtimeprotocol.ClientMessage{Type: realtimeprotocol.MsgTypePing}))

	pong := readUntil(t, conn, realtimeprotocol.MsgTypePong)
	var data realtimeprotocol.PongData
	require.NoError(t, json.Unmarshal(pong.Data, &data))
	assert.False(t, data.ServerTime.IsZero())
}

func TestRealtimeHandler_ReceivesHubEvents(t *testing.T) {
	hub := services.NewRealtimeHub(testutil.NewMockLogger(), nil)
	conn := dial(t, startRealtimeServer(t, &stubLogReader{}, hub))
	readUntil(t, conn, realtimeprotocol.MsgTypeInitialLogs)

	batch := device.IngestedBatch{
		DeviceID:   1,
		DeviceSID:  testDeviceSID,
		DeviceName: "Main entrance",
		Entries:    []device.LogEntry{{ID: 9, DeviceID: 1, DeviceLogID: 90, EventType: device.EventAccessDenied}},
	}
	hub.Broadcast(realtime.BuildLogEvents(batch))

	newLog := readUntil(t, conn, realtimeprotocol.MsgTypeNewLog)
	var data realtimeprotocol.LogEventData
	require.NoError(t, json.Unmarshal(newLog.Data, &data))
	assert.Equal(t, testDeviceSID, data.DeviceSID)
	assert.Equal(t, int64(90), data.Log.DeviceLogID)

	readUntil(t, conn, realtimeprotocol.MsgTypeAccessDenied)
}

func TestRealtimeHandler_UnregistersOnClose(t *testing.T) {
	hub := services.NewRealtimeHub(testutil.NewMockLogger(), nil)
	conn := dial(t, startRealtimeServer(t, &stubLogReader{}, hub))
	readUntil(t, conn, realtimeprotocol.MsgTypeInitialLogs)
	assert.Equal(t, 1, hub.SubscriberCount())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestRealtimeHandler_RejectsWhenHubFull(t *testing.T) {
	hub := services.NewRealtimeHub(testutil.NewMockLogger(), &services.RealtimeHubConfig{MaxSubscribers: 1})
	url := startRealtimeServer(t, &stubLogReader{}, hub)

	first := dial(t, url)
	readUntil(t, first, realtimeprotocol.MsgTypeInitialLogs)

	second := dial(t, url)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := second.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater))
}
