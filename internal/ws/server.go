package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler receives the frames a device sends
type Handler interface {
	HandleMessage(ctx context.Context, deviceID string, msg realtime.Message) error
}

// Client bridges one websocket connection with a hub subscription
type Client struct {
	conn     *websocket.Conn
	sub      *realtime.Subscription
	handler  Handler
	codec    realtime.Codec
	deviceID string
	logger   *slog.Logger
}

func NewClient(conn *websocket.Conn, sub *realtime.Subscription, h Handler, codec realtime.Codec, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn:     conn,
		sub:      sub,
		handler:  h,
		codec:    codec,
		deviceID: sub.DeviceID,
		logger:   logger.With("device_id", sub.DeviceID, "codec", codec.Name()),
	}
}

// Run pumps frames until the device disconnects or ctx ends
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(ctx)
	}()

	c.readPump(ctx)
	c.sub.Unsubscribe()
	<-done
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg realtime.Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		if err := c.handler.HandleMessage(ctx, c.deviceID, msg); err != nil {
			c.logger.Debug("frame refused", "kind", msg.Kind, "error", err)
		}
	}
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.sub.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "channel closed"))
				return
			}
			data, err := c.codec.Marshal(msg)
			if err != nil {
				c.logger.Error("encode message", "kind", msg.Kind, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(frameType, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// IsClosed reports whether err is a normal websocket closure
func IsClosed(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) && (ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway)
}
