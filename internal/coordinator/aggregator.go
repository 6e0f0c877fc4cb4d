package coordinator

import (
	"fmt"
	"slices"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// Aggregator collects one vote per device for the open task. It is not safe
// for concurrent use; the Coordinator serializes access.
type Aggregator struct {
	taskID string
	open   bool
	order  []string // device IDs, oldest vote first
	votes  map[string]models.Vote
}

func NewAggregator() *Aggregator {
	return &Aggregator{votes: make(map[string]models.Vote)}
}

// Reset drops all votes and starts accepting votes for taskID
func (a *Aggregator) Reset(taskID string) {
	a.taskID = taskID
	a.open = taskID != ""
	a.order = a.order[:0]
	clear(a.votes)
}

// Cast records v, replacing the device's earlier vote. A replaced vote moves
// to the back of the receive order.
func (a *Aggregator) Cast(v models.Vote) error {
	if !a.open || v.TaskID != a.taskID {
		return fmt.Errorf("%w: %q is not open", game.ErrVoteRejected, v.TaskID)
	}
	if v.Answer.IsZero() {
		return fmt.Errorf("%w: empty answer", game.ErrVoteRejected)
	}
	if _, ok := a.votes[v.DeviceID]; ok {
		a.order = slices.DeleteFunc(a.order, func(id string) bool { return id == v.DeviceID })
	}
	a.order = append(a.order, v.DeviceID)
	a.votes[v.DeviceID] = v
	return nil
}

// Close stops accepting votes, keeping the ones already cast
func (a *Aggregator) Close() {
	a.open = false
}

// Open reports whether votes are being accepted
func (a *Aggregator) Open() bool {
	return a.open
}

// Votes returns the live votes in receive order
func (a *Aggregator) Votes() []models.Vote {
	out := make([]models.Vote, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.votes[id])
	}
	return out
}

// Progress returns votes received against the team's active members
func (a *Aggregator) Progress(team models.Team) models.VoteProgressPayload {
	return models.VoteProgressPayload{
		PointID:           a.taskID,
		VotesReceived:     len(a.votes),
		ActiveMemberCount: team.ActiveMemberCount(),
	}
}

// Consensus returns the modal answer of the current votes
func (a *Aggregator) Consensus() (models.AnswerValue, bool) {
	return game.ConsensusAnswer(a.Votes())
}
