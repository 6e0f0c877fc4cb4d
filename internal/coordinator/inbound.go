package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
)

var (
	ErrNotCaptain     = errors.New("only the captain may do that")
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// HandleMessage applies a frame sent by deviceID. The sender on the frame is
// ignored in favour of the connection's device. Refusals other than rejected
// votes are reported back to that device as an error message.
func (c *Coordinator) HandleMessage(ctx context.Context, deviceID string, msg realtime.Message) error {
	err := c.dispatch(ctx, deviceID, msg)
	if err != nil && !errors.Is(err, game.ErrVoteRejected) {
		c.pub.SendTo(ctx, deviceID, realtime.NewError(c.gameID, c.teamID, ErrorCode(err), err.Error(), c.now()))
	}
	return err
}

func (c *Coordinator) dispatch(ctx context.Context, deviceID string, msg realtime.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	switch msg.Kind {
	case realtime.KindVote:
		return c.CastVote(ctx, deviceID, msg.Vote.PointID, msg.Vote.Answer)
	case realtime.KindOpenTask:
		if !c.isCaptain(ctx, deviceID) {
			return ErrNotCaptain
		}
		_, err := c.OpenTask(ctx, msg.OpenTask.PointID)
		return err
	case realtime.KindTaskDecided:
		if !c.isCaptain(ctx, deviceID) {
			return ErrNotCaptain
		}
		d := msg.TaskDecided
		_, err := c.Decide(ctx, d.PointID, Verdict{IsCorrect: d.IsCorrect, PointsAwarded: d.PointsAwarded})
		return err
	default:
		return fmt.Errorf("%w: devices may not send %s", realtime.ErrInvalidMessage, msg.Kind)
	}
}

func (c *Coordinator) isCaptain(ctx context.Context, deviceID string) bool {
	snap, err := c.store.Get(ctx, c.gameID)
	if err != nil {
		return false
	}
	team, ok := snap.Game.Team(c.teamID)
	return ok && team.IsCaptain(deviceID)
}

// ErrorCode maps an error to the code sent to devices
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrAlreadyCaptured):
		return "already_captured"
	case errors.Is(err, game.ErrStaleTask):
		return "stale_task"
	case errors.Is(err, game.ErrVoteRejected):
		return "vote_rejected"
	case errors.Is(err, game.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, game.ErrOnCooldown):
		return "on_cooldown"
	case errors.Is(err, game.ErrUnknownPoint):
		return "unknown_point"
	case errors.Is(err, game.ErrUnknownTeam):
		return "unknown_team"
	case errors.Is(err, ErrNotCaptain):
		return "not_captain"
	case errors.Is(err, ErrInvalidVerdict):
		return "invalid_verdict"
	case errors.Is(err, realtime.ErrInvalidMessage):
		return "invalid_message"
	default:
		return "internal"
	}
}
