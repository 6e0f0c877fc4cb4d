package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultSendTimeout = 2 * time.Second
	DefaultBufferSize  = 32
)

// Options tunes a Hub. Zero values take the defaults.
type Options struct {
	SendTimeout time.Duration
	BufferSize  int
	Logger      *slog.Logger
	Debug       bool
}

// Hub is the publish/subscribe channel of one team in one game. Delivery is
// best effort per subscriber: a subscriber that does not drain its buffer
// within SendTimeout misses the message.
//
// The last open_task is retained until a task_decided follows it, so a device
// that subscribes late still sees the task that is currently open.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Subscription]struct{}
	retained *Message
	closed   bool

	sendTimeout time.Duration
	bufferSize  int
	logger      *slog.Logger
	debug       bool
}

// NewHub creates an empty hub
func NewHub(opts Options) *Hub {
	h := &Hub{
		clients:     make(map[*Subscription]struct{}),
		sendTimeout: opts.SendTimeout,
		bufferSize:  opts.BufferSize,
		logger:      opts.Logger,
		debug:       opts.Debug,
	}
	if h.sendTimeout <= 0 {
		h.sendTimeout = DefaultSendTimeout
	}
	if h.bufferSize <= 0 {
		h.bufferSize = DefaultBufferSize
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Subscription receives a hub's messages on C until Unsubscribe is called or
// the hub closes, after which C is closed.
type Subscription struct {
	DeviceID string
	C        <-chan Message

	ch     chan Message
	done   chan struct{}
	hub    *Hub
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// Subscribe registers deviceID. An empty deviceID subscribes an observer.
func (h *Hub) Subscribe(deviceID string) *Subscription {
	ch := make(chan Message, h.bufferSize)
	sub := &Subscription{
		DeviceID: deviceID,
		C:        ch,
		ch:       ch,
		done:     make(chan struct{}),
		hub:      h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.shutdown()
		return sub
	}
	dup := 0
	for c := range h.clients {
		if deviceID != "" && c.DeviceID == deviceID {
			dup++
		}
	}
	h.clients[sub] = struct{}{}
	if h.retained != nil {
		ch <- *h.retained
	}
	count := len(h.clients)
	h.mu.Unlock()

	if dup > 0 {
		h.logger.Warn("device opened additional subscription", "device_id", deviceID, "existing", dup)
	}
	if h.debug {
		h.logger.Debug("subscribed", "device_id", deviceID, "clients", count)
	}
	return sub
}

// Unsubscribe detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s)
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Subscription) deliver(msg Message, timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case s.ch <- msg:
		return true
	case <-s.done:
		return false
	case <-t.C:
		return false
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.clients, sub)
	count := len(h.clients)
	h.mu.Unlock()
	if h.debug {
		h.logger.Debug("unsubscribed", "device_id", sub.DeviceID, "clients", count)
	}
}

// Publish sends msg to every subscriber and returns how many received it
func (h *Hub) Publish(ctx context.Context, msg Message) int {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0
	}
	switch msg.Kind {
	case KindOpenTask:
		retained := msg
		h.retained = &retained
	case KindTaskDecided:
		h.retained = nil
	}
	clients := make([]*Subscription, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	return h.send(ctx, clients, msg)
}

// SendTo delivers msg only to the subscriptions of deviceID
func (h *Hub) SendTo(ctx context.Context, deviceID string, msg Message) int {
	h.mu.RLock()
	var clients []*Subscription
	for c := range h.clients {
		if c.DeviceID == deviceID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	return h.send(ctx, clients, msg)
}

// send runs without holding the hub lock
func (h *Hub) send(ctx context.Context, clients []*Subscription, msg Message) int {
	delivered := 0
	for _, c := range clients {
		if ctx.Err() != nil {
			break
		}
		if c.deliver(msg, h.sendTimeout) {
			delivered++
		} else if h.debug {
			h.logger.Debug("dropped message", "kind", msg.Kind, "device_id", c.DeviceID)
		}
	}
	if h.debug {
		h.logger.Debug("published", "kind", msg.Kind, "point_id", msg.PointID(), "delivered", delivered, "clients", len(clients))
	}
	return delivered
}

// Retained returns the open task a late subscriber would receive
func (h *Hub) Retained() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.retained == nil {
		return Message{}, false
	}
	return *h.retained, true
}

// Count returns the number of live subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}
