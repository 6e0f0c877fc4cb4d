package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
)

// KeepAliveInterval is how often an idle stream sends a comment line
const KeepAliveInterval = 15 * time.Second

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Event is one server-sent event. Data is JSON encoded.
type Event struct {
	Name string
	ID   string
	Data any
}

// Stream writes server-sent events to one observer
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// Open sets the event-stream headers and flushes them
func Open(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering in nginx/proxies
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Stream{w: w, flusher: flusher}, nil
}

// Send writes and flushes one event
func (s *Stream) Send(ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Name, err)
	}
	var b strings.Builder
	if ev.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", ev.ID)
	}
	fmt.Fprintf(&b, "event: %s\ndata: %s\n\n", ev.Name, data)
	if _, err := fmt.Fprint(s.w, b.String()); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Stream) keepAlive() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// MessageEvent converts a channel message into an event named after its kind
func MessageEvent(msg realtime.Message) Event {
	return Event{Name: string(msg.Kind), ID: msg.ID, Data: msg}
}

// Forward streams messages until ctx ends or the channel closes. After each
// message, follow may add events, such as refreshed standings.
func Forward(ctx context.Context, s *Stream, messages <-chan realtime.Message, follow func(realtime.Message) []Event, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("sse client disconnected")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := s.Send(MessageEvent(msg)); err != nil {
				return err
			}
			if follow == nil {
				continue
			}
			for _, ev := range follow(msg) {
				if err := s.Send(ev); err != nil {
					return err
				}
			}
		case <-ticker.C:
			if err := s.keepAlive(); err != nil {
				return err
			}
		}
	}
}
