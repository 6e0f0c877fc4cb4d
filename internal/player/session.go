package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
)

// Action is a local UI input
type Action interface{ isAction() }

// Vote submits an answer for the open task
type Vote struct{ Answer models.AnswerValue }

// Ack dismisses the result screen
type Ack struct{}

func (Vote) isAction() {}
func (Ack) isAction()  {}

// Sender carries the device's frames to the team channel
type Sender interface {
	Send(ctx context.Context, msg realtime.Message) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg realtime.Message) error

func (f SenderFunc) Send(ctx context.Context, msg realtime.Message) error { return f(ctx, msg) }

const seenWindow = 256

// Session drives a Machine from channel messages and local actions
type Session struct {
	Machine  *Machine
	GameID   string
	TeamID   string
	Sender   Sender
	Clock    func() time.Time
	Logger   *slog.Logger
	OnChange func(View)

	seen  map[string]struct{}
	order []string
}

// Run processes messages and actions until ctx ends or the subscription
// closes, in which case it returns game.ErrTransportDisconnected. The caller
// should then fetch the team's open task and call Machine.Resync.
func (s *Session) Run(ctx context.Context, messages <-chan realtime.Message, actions <-chan Action) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("device_id", s.Machine.DeviceID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				return game.ErrTransportDisconnected
			}
			if s.duplicate(msg.ID) {
				continue
			}
			if err := s.apply(msg); err != nil {
				logger.Debug("message ignored", "kind", msg.Kind, "error", err)
				continue
			}

		case a, ok := <-actions:
			if !ok {
				actions = nil
				continue
			}
			if err := s.act(ctx, a); err != nil {
				if errors.Is(err, game.ErrTransportDisconnected) {
					return err
				}
				logger.Warn("action refused", "error", err)
				continue
			}
		}

		if s.OnChange != nil {
			s.OnChange(s.Machine.View())
		}
	}
}

func (s *Session) apply(msg realtime.Message) error {
	switch msg.Kind {
	case realtime.KindOpenTask:
		s.Machine.HandleOpenTask(*msg.OpenTask)
	case realtime.KindVoteProgress:
		s.Machine.HandleVoteProgress(*msg.VoteProgress)
	case realtime.KindTaskDecided:
		return s.Machine.HandleTaskDecided(*msg.TaskDecided)
	case realtime.KindError:
		return fmt.Errorf("server refused: %s: %s", msg.Error.Code, msg.Error.Message)
	case realtime.KindVote:
		// teammates' votes are not shown
	default:
		return fmt.Errorf("%w: kind %q", realtime.ErrInvalidMessage, msg.Kind)
	}
	return nil
}

func (s *Session) act(ctx context.Context, a Action) error {
	switch a := a.(type) {
	case Vote:
		payload, err := s.Machine.SubmitVote(a.Answer)
		if err != nil {
			return err
		}
		now := time.Now
		if s.Clock != nil {
			now = s.Clock
		}
		if err := s.Sender.Send(ctx, realtime.NewVote(s.GameID, s.TeamID, payload, now())); err != nil {
			return fmt.Errorf("%w: %v", game.ErrTransportDisconnected, err)
		}
		return nil
	case Ack:
		return s.Machine.Acknowledge()
	default:
		return fmt.Errorf("unknown action %T", a)
	}
}

// duplicate reports whether id was already processed. Delivery is
// at-least-once, so redelivered frames are dropped here.
func (s *Session) duplicate(id string) bool {
	if id == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{}, seenWindow)
	}
	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > seenWindow {
		delete(s.seen, s.order[0])
		s.order = s.order[1:]
	}
	return false
}
