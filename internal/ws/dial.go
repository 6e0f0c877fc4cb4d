package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
)

// Conn is the device side of a team channel connection
type Conn struct {
	conn  *websocket.Conn
	codec realtime.Codec
	in    chan realtime.Message

	writeMu sync.Mutex
	errMu   sync.Mutex
	err     error
}

// Dial connects to a team channel endpoint such as
// ws://host/ws/games/{game}/teams/{team}?device=a1&codec=msgpack
func Dial(ctx context.Context, url string, codec realtime.Codec) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Conn{
		conn:  conn,
		codec: codec,
		in:    make(chan realtime.Message, realtime.DefaultBufferSize),
	}
	go c.readLoop()
	return c, nil
}

// Messages yields received messages and is closed when the connection drops
func (c *Conn) Messages() <-chan realtime.Message {
	return c.in
}

// Err returns the error that ended the connection, if any
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) readLoop() {
	defer close(c.in)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()
			return
		}
		var msg realtime.Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.in <- msg
	}
}

// Send writes msg as one frame
func (c *Conn) Send(ctx context.Context, msg realtime.Message) error {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		return err
	}
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(deadline)
	return c.conn.WriteMessage(frameType, data)
}

// Close sends a close frame and closes the connection
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}
