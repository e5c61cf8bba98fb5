package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/accesshub/accesshub/internal/infrastructure/services"
	"github.com/accesshub/accesshub/internal/shared/goroutine"
	"github.com/accesshub/accesshub/internal/shared/logger"
	"github.com/accesshub/accesshub/internal/shared/realtimeprotocol"
)

const (
	defaultWriteWait  = 10 * time.Second
	defaultPongWait   = 60 * time.Second
	defaultPingPeriod = 30 * time.Second

	realtimeReadLimit = 4096
	clientQueueSize   = 8
	directQueueSize   = 8
)

type realtimeHub interface {
	Register(id, remoteAddr string) *services.Subscriber
	Unregister(id string)
}

type snapshotStreamer interface {
	Run(ctx context.Context, incoming <-chan realtimeprotocol.ClientMessage, send func(realtimeprotocol.Message) error) error
}

// RealtimeConfig tunes the websocket keepalive. PingPeriod must be shorter
// than PongWait.
type RealtimeConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	AllowedOrigins []string
}

// RealtimeHandler serves the live access log stream.
type RealtimeHandler struct {
	hub         realtimeHub
	broadcaster snapshotStreamer
	cfg         RealtimeConfig
	upgrader    websocket.Upgrader
	logger      logger.Interface
}

func NewRealtimeHandler(hub realtimeHub, broadcaster snapshotStreamer, cfg RealtimeConfig, logger logger.Interface) *RealtimeHandler {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}

	h := &RealtimeHandler{
		hub:         hub,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts same-host requests, requests without an Origin header
// and whitelisted origins.
func (h *RealtimeHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.cfg.AllowedOrigins, "*") || slices.Contains(h.cfg.AllowedOrigins, origin) {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// AccessLogsWS handles GET /ws/access-logs.
func (h *RealtimeHandler) AccessLogsWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("failed to upgrade to websocket",
			"error", err,
			"ip", c.ClientIP(),
		)
		return
	}

	subID := uuid.NewString()
	sub := h.hub.Register(subID, c.ClientIP())
	if sub == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber limit reached"),
			time.Now().Add(h.cfg.WriteWait))
		conn.Close()
		return
	}
	defer h.hub.Unregister(subID)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	incoming := make(chan realtimeprotocol.ClientMessage, clientQueueSize)
	direct := make(chan []byte, directQueueSize)

	readerDone := make(chan struct{})
	goroutine.SafeGo(h.logger, "realtime-read-pump", func() {
		defer close(readerDone)
		defer cancel()
		h.readPump(ctx, subID, conn, incoming)
	})

	writerDone := make(chan struct{})
	goroutine.SafeGo(h.logger, "realtime-write-pump", func() {
		defer close(writerDone)
		defer cancel()
		h.writePump(ctx, subID, conn, sub.Send, direct)
	})

	send := func(msg realtimeprotocol.Message) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		select {
		case direct <- data:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := h.broadcaster.Run(ctx, incoming, send); err != nil && ctx.Err() == nil {
		h.logger.Warnw("realtime stream ended with error",
			"subscriber_id", subID,
			"error", err,
		)
	}

	// The writer owns the connection until it returns; closing the
	// connection afterwards unblocks the reader.
	cancel()
	<-writerDone
	conn.Close()
	<-readerDone
}

func (h *RealtimeHandler) readPump(ctx context.Context, subID string, conn *websocket.Conn, incoming chan<- realtimeprotocol.ClientMessage) {
	defer close(incoming)

	conn.SetReadLimit(realtimeReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Warnw("realtime websocket read error",
					"subscriber_id", subID,
					"error", err,
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		var msg realtimeprotocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debugw("ignoring malformed realtime message",
				"subscriber_id", subID,
				"error", err,
			)
			continue
		}

		select {
		case incoming <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *RealtimeHandler) writePump(ctx context.Context, subID string, conn *websocket.Conn, events <-chan []byte, direct <-chan []byte) {
	ticker := time.NewTicker(h.cfg.PingPeriod)
	defer ticker.Stop()

	write := func(data []byte) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debugw("failed to write to realtime websocket",
				"subscriber_id", subID,
				"error", err,
			)
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return

		case data := <-direct:
			if !write(data) {
				return
			}

		case data, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(h.cfg.WriteWait))
				return
			}
			if !write(data) {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
