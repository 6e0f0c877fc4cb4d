package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
)

var tracer = otel.Tracer("github.com/aaronzipp/scavenger-hunt/internal/coordinator")

// State of the task lifecycle
type State string

const (
	StateIdle     State = "idle"
	StateOpen     State = "open"
	StateDeciding State = "deciding"
)

// Verdict is the captain's ruling on the open task
type Verdict struct {
	IsCorrect     bool
	PointsAwarded int // zero on a correct verdict means the task's own points
}

// Publisher delivers messages on the team channel. *realtime.Hub implements it.
type Publisher interface {
	Publish(ctx context.Context, msg realtime.Message) int
	SendTo(ctx context.Context, deviceID string, msg realtime.Message) int
}

type Config struct {
	GameID    string
	TeamID    string
	Store     store.Store
	Publisher Publisher
	Clock     func() time.Time
	Logger    *slog.Logger
}

// Coordinator runs the open -> decide cycle for one team. It is the only
// writer of open_task and task_decided on the team channel.
type Coordinator struct {
	gameID string
	teamID string
	store  store.Store
	pub    Publisher
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	state State
	team  models.Team
	open  *models.OpenTaskPayload
	votes *Aggregator
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.GameID == "" || cfg.TeamID == "" {
		return nil, errors.New("game and team are required")
	}
	if cfg.Store == nil || cfg.Publisher == nil {
		return nil, errors.New("store and publisher are required")
	}
	c := &Coordinator{
		gameID: cfg.GameID,
		teamID: cfg.TeamID,
		store:  cfg.Store,
		pub:    cfg.Publisher,
		now:    cfg.Clock,
		logger: cfg.Logger,
		state:  StateIdle,
		votes:  NewAggregator(),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("game_id", cfg.GameID, "team_id", cfg.TeamID)
	return c, nil
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the open task, if any
func (c *Coordinator) Current() (models.OpenTaskPayload, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == nil {
		return models.OpenTaskPayload{}, false
	}
	return *c.open, true
}

// Progress returns vote progress for the open task
func (c *Coordinator) Progress() models.VoteProgressPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votes.Progress(c.team)
}

// Votes returns the votes cast for the open task in receive order
func (c *Coordinator) Votes() []models.Vote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.votes.Votes()
}

// OpenTask publishes pointID to the team and starts a voting round.
// The task must not be captured already or on cooldown for the team.
// Members receive the task without its correct answer; the returned payload
// keeps it for the captain.
func (c *Coordinator) OpenTask(ctx context.Context, pointID string) (models.OpenTaskPayload, error) {
	ctx, span := tracer.Start(ctx, "coordinator.OpenTask", trace.WithAttributes(
		attribute.String("game.id", c.gameID),
		attribute.String("team.id", c.teamID),
		attribute.String("point.id", pointID),
	))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		err := fmt.Errorf("%w: open %q while %s", game.ErrInvalidTransition, pointID, c.state)
		span.SetStatus(codes.Error, err.Error())
		return models.OpenTaskPayload{}, err
	}

	snap, err := c.store.Get(ctx, c.gameID)
	if err != nil {
		span.RecordError(err)
		return models.OpenTaskPayload{}, fmt.Errorf("load game: %w", err)
	}
	g := snap.Game
	team, ok := g.Team(c.teamID)
	if !ok {
		return models.OpenTaskPayload{}, fmt.Errorf("%w: %q", game.ErrUnknownTeam, c.teamID)
	}
	point, ok := g.Point(pointID)
	if !ok {
		return models.OpenTaskPayload{}, fmt.Errorf("%w: %q", game.ErrUnknownPoint, pointID)
	}
	if owner, taken := g.CapturedTasks[pointID]; taken {
		return models.OpenTaskPayload{}, fmt.Errorf("%w: %q is held by team %q", game.ErrAlreadyCaptured, pointID, owner)
	}
	now := c.now()
	if game.IsTaskOnCooldown(g, pointID, c.teamID, now) {
		return models.OpenTaskPayload{}, fmt.Errorf("%w: %ds left on %q",
			game.ErrOnCooldown, game.RemainingCooldownSeconds(g, pointID, c.teamID, now), pointID)
	}

	payload := models.OpenTaskPayload{PointID: point.ID, Task: point.Task, Title: point.Title}
	c.team = team
	c.open = &payload
	c.votes.Reset(pointID)
	c.state = StateOpen

	c.pub.Publish(ctx, realtime.NewOpenTask(c.gameID, c.teamID, team.CaptainDeviceID, payload.ForMembers(), now))
	c.logger.Info("task opened", "point_id", pointID)
	return payload, nil
}

// CastVote records a member's vote for the open task and publishes the vote
// and the new progress. Votes for any other task, or arriving after voting
// closed, fail with ErrVoteRejected and change nothing.
func (c *Coordinator) CastVote(ctx context.Context, deviceID, pointID string, answer models.AnswerValue) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.open == nil || c.open.PointID != pointID {
		return fmt.Errorf("%w: %q is not open", game.ErrVoteRejected, pointID)
	}
	member, ok := c.team.Member(deviceID)
	if !ok || member.Retired {
		return fmt.Errorf("%w: device %q is not an active member", game.ErrVoteRejected, deviceID)
	}

	now := c.now()
	vote := models.Vote{DeviceID: deviceID, TaskID: pointID, Answer: answer, CastAt: now}
	if err := c.votes.Cast(vote); err != nil {
		return err
	}

	c.pub.Publish(ctx, realtime.NewVote(c.gameID, c.teamID, models.VotePayload{
		PointID:  pointID,
		DeviceID: deviceID,
		Answer:   answer,
	}, now))
	c.pub.Publish(ctx, realtime.NewVoteProgress(c.gameID, c.teamID, c.votes.Progress(c.team), now))
	c.logger.Debug("vote cast", "point_id", pointID, "device_id", deviceID)
	return nil
}

// CloseVoting ends the voting window so the captain can review the votes
func (c *Coordinator) CloseVoting(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return fmt.Errorf("%w: close voting while %s", game.ErrInvalidTransition, c.state)
	}
	c.votes.Close()
	c.state = StateDeciding
	c.logger.Debug("voting closed", "point_id", c.open.PointID, "votes", len(c.votes.Votes()))
	return nil
}

// Decide applies the verdict for pointID, publishes task_decided and returns
// to idle. A correct verdict captures the task for the team, an incorrect one
// starts a cooldown.
//
// When another team captured the task first the round still closes, with
// AlreadyTaken set and no points, and the returned error wraps
// game.ErrAlreadyCaptured. A pointID other than the open task fails with a
// *game.StaleTaskError and changes nothing, as does a negative points
// award, which fails with ErrInvalidVerdict.
func (c *Coordinator) Decide(ctx context.Context, pointID string, v Verdict) (models.TaskDecidedPayload, error) {
	ctx, span := tracer.Start(ctx, "coordinator.Decide", trace.WithAttributes(
		attribute.String("game.id", c.gameID),
		attribute.String("team.id", c.teamID),
		attribute.String("point.id", pointID),
		attribute.Bool("verdict.correct", v.IsCorrect),
	))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle || c.open == nil {
		err := &game.StaleTaskError{Got: pointID}
		span.SetStatus(codes.Error, err.Error())
		return models.TaskDecidedPayload{}, err
	}
	if c.open.PointID != pointID {
		err := &game.StaleTaskError{Want: c.open.PointID, Got: pointID}
		span.SetStatus(codes.Error, err.Error())
		return models.TaskDecidedPayload{}, err
	}

	if v.PointsAwarded < 0 {
		err := fmt.Errorf("%w: %d points", ErrInvalidVerdict, v.PointsAwarded)
		span.SetStatus(codes.Error, err.Error())
		return models.TaskDecidedPayload{}, err
	}

	task := c.open.Task
	decided := models.TaskDecidedPayload{PointID: pointID, IsCorrect: v.IsCorrect}
	if !task.CorrectAnswer.IsZero() {
		correct := task.CorrectAnswer
		decided.CorrectAnswer = &correct
	}
	if task.RequiresConsensus {
		if agreed, ok := c.votes.Consensus(); ok {
			decided.AgreedAnswer = &agreed
		}
	}
	if v.IsCorrect {
		decided.PointsAwarded = v.PointsAwarded
		if decided.PointsAwarded == 0 {
			decided.PointsAwarded = task.Points
		}
	}

	now := c.now()
	_, err := c.store.Update(ctx, c.gameID, func(g models.Game) (models.Game, error) {
		if v.IsCorrect {
			return game.CaptureTask(g, pointID, c.teamID)
		}
		return game.RecordFailedAttempt(g, pointID, c.teamID, now), nil
	})

	var result error
	switch {
	case err == nil:
	case errors.Is(err, game.ErrAlreadyCaptured):
		decided.AlreadyTaken = true
		decided.PointsAwarded = 0
		result = err
		c.logger.Warn("task already captured by another team", "point_id", pointID)
	default:
		// store failure: keep the round open so the captain can retry
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.TaskDecidedPayload{}, fmt.Errorf("record decision: %w", err)
	}

	c.pub.Publish(ctx, realtime.NewTaskDecided(c.gameID, c.teamID, c.team.CaptainDeviceID, decided, now))
	c.open = nil
	c.votes.Reset("")
	c.state = StateIdle

	c.logger.Info("task decided",
		"point_id", pointID,
		"correct", decided.IsCorrect,
		"points", decided.PointsAwarded,
		"already_taken", decided.AlreadyTaken,
	)
	return decided, result
}

// Resync sends the current vote progress to one device. The hub replays the
// open task itself when the device subscribes again.
func (c *Coordinator) Resync(ctx context.Context, deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open == nil {
		return
	}
	c.pub.SendTo(ctx, deviceID, realtime.NewVoteProgress(c.gameID, c.teamID, c.votes.Progress(c.team), c.now()))
}
