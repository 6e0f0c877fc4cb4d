package realtime

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// Kind identifies a message on a team channel
type Kind string

const (
	KindOpenTask     Kind = "open_task"
	KindVote         Kind = "vote"
	KindTaskDecided  Kind = "task_decided"
	KindVoteProgress Kind = "vote_progress"
	KindError        Kind = "error"
)

// Message is the envelope carried on a team channel. Exactly one payload
// field is set, matching Kind.
type Message struct {
	Kind     Kind      `json:"kind"`
	ID       string    `json:"id"`
	GameID   string    `json:"gameId"`
	TeamID   string    `json:"teamId"`
	DeviceID string    `json:"deviceId,omitempty"` // sender
	SentAt   time.Time `json:"sentAt"`

	OpenTask     *models.OpenTaskPayload     `json:"openTask,omitempty"`
	Vote         *models.VotePayload         `json:"vote,omitempty"`
	TaskDecided  *models.TaskDecidedPayload  `json:"taskDecided,omitempty"`
	VoteProgress *models.VoteProgressPayload `json:"voteProgress,omitempty"`
	Error        *models.ErrorPayload        `json:"error,omitempty"`
}

var ErrInvalidMessage = errors.New("invalid message")

// Validate checks that the payload matches the kind
func (m Message) Validate() error {
	var ok bool
	switch m.Kind {
	case KindOpenTask:
		ok = m.OpenTask != nil && m.OpenTask.PointID != ""
	case KindVote:
		ok = m.Vote != nil && m.Vote.PointID != ""
	case KindTaskDecided:
		ok = m.TaskDecided != nil && m.TaskDecided.PointID != ""
	case KindVoteProgress:
		ok = m.VoteProgress != nil
	case KindError:
		ok = m.Error != nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: missing %s payload", ErrInvalidMessage, m.Kind)
	}
	return nil
}

// PointID returns the task the message refers to, if any
func (m Message) PointID() string {
	switch {
	case m.OpenTask != nil:
		return m.OpenTask.PointID
	case m.Vote != nil:
		return m.Vote.PointID
	case m.TaskDecided != nil:
		return m.TaskDecided.PointID
	case m.VoteProgress != nil:
		return m.VoteProgress.PointID
	}
	return ""
}

func newMessage(kind Kind, gameID, teamID, deviceID string, now time.Time) Message {
	return Message{
		Kind:     kind,
		ID:       uuid.NewString(),
		GameID:   gameID,
		TeamID:   teamID,
		DeviceID: deviceID,
		SentAt:   now,
	}
}

func NewOpenTask(gameID, teamID, captainID string, p models.OpenTaskPayload, now time.Time) Message {
	m := newMessage(KindOpenTask, gameID, teamID, captainID, now)
	m.OpenTask = &p
	return m
}

func NewVote(gameID, teamID string, p models.VotePayload, now time.Time) Message {
	m := newMessage(KindVote, gameID, teamID, p.DeviceID, now)
	m.Vote = &p
	return m
}

func NewTaskDecided(gameID, teamID, captainID string, p models.TaskDecidedPayload, now time.Time) Message {
	m := newMessage(KindTaskDecided, gameID, teamID, captainID, now)
	m.TaskDecided = &p
	return m
}

func NewVoteProgress(gameID, teamID string, p models.VoteProgressPayload, now time.Time) Message {
	m := newMessage(KindVoteProgress, gameID, teamID, "", now)
	m.VoteProgress = &p
	return m
}

func NewError(gameID, teamID, code, message string, now time.Time) Message {
	m := newMessage(KindError, gameID, teamID, "", now)
	m.Error = &models.ErrorPayload{Code: code, Message: message}
	return m
}
