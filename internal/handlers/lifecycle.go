package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aaronzipp/scavenger-hunt/internal/coordinator"
	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/rooms"
)

// captainRoom resolves the team room and checks that the calling device
// captains the team.
func (ctx *Context) captainRoom(r *http.Request) (*rooms.Room, error) {
	device := deviceID(r)
	if device == "" {
		return nil, errNoDevice
	}
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		return nil, err
	}
	if !team.IsCaptain(device) {
		return nil, coordinator.ErrNotCaptain
	}
	return ctx.Rooms.Get(r.Context(), snap.Game.ID, team.ID)
}

type taskStatus struct {
	State     coordinator.State           `json:"state"`
	Task      *models.OpenTaskPayload     `json:"task,omitempty"`
	Progress  *models.VoteProgressPayload `json:"progress,omitempty"`
	Votes     []models.Vote               `json:"votes"`
	Consensus *models.AnswerValue         `json:"consensus,omitempty"`
	Suggested *bool                       `json:"suggestedCorrect,omitempty"` // consensus checked against the stored answer
}

// HandleCurrentTask shows the captain the open task, its votes and a
// suggested verdict for the team's consensus answer.
func (ctx *Context) HandleCurrentTask(w http.ResponseWriter, r *http.Request) {
	room, err := ctx.captainRoom(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	c := room.Coordinator
	status := taskStatus{State: c.State(), Votes: c.Votes()}
	if open, ok := c.Current(); ok {
		progress := c.Progress()
		status.Task = &open
		status.Progress = &progress
		if answer, ok := game.ConsensusAnswer(status.Votes); ok {
			correct := game.EvaluateAnswer(open.Task, answer)
			status.Consensus = &answer
			status.Suggested = &correct
		}
	}
	if status.Votes == nil {
		status.Votes = []models.Vote{}
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleOpenTaskForMember returns the team's open task, without its answer,
// to any active member. 204 when nothing is open.
func (ctx *Context) HandleOpenTaskForMember(w http.ResponseWriter, r *http.Request) {
	device := deviceID(r)
	if device == "" {
		ctx.writeError(w, errNoDevice)
		return
	}
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	if m, ok := team.Member(device); !ok || m.Retired {
		ctx.writeError(w, fmt.Errorf("%w: %q", errUnknownMember, device))
		return
	}
	room, ok := ctx.Rooms.Lookup(snap.Game.ID, team.ID)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	open, ok := room.Coordinator.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, open.ForMembers())
}

type openTaskRequest struct {
	PointID string `json:"pointId"`
}

// HandleOpenTask opens a point's task for the captain's team
func (ctx *Context) HandleOpenTask(w http.ResponseWriter, r *http.Request) {
	var req openTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.PointID == "" {
		badRequest(w, errors.New("pointId is required"))
		return
	}
	room, err := ctx.captainRoom(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	open, err := room.Coordinator.OpenTask(r.Context(), req.PointID)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, open)
}

// HandleCloseVoting stops accepting votes on the open task
func (ctx *Context) HandleCloseVoting(w http.ResponseWriter, r *http.Request) {
	room, err := ctx.captainRoom(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	if err := room.Coordinator.CloseVoting(r.Context()); err != nil {
		ctx.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    room.Coordinator.State(),
		"progress": room.Coordinator.Progress(),
	})
}

type decideRequest struct {
	PointID       string `json:"pointId"`
	IsCorrect     bool   `json:"isCorrect"`
	PointsAwarded int    `json:"pointsAwarded,omitempty"`
}

// HandleDecide records the captain's verdict. A capture lost to another
// team still closes the round; the response then carries alreadyTaken.
func (ctx *Context) HandleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	room, err := ctx.captainRoom(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	decided, err := room.Coordinator.Decide(r.Context(), req.PointID, coordinator.Verdict{
		IsCorrect:     req.IsCorrect,
		PointsAwarded: req.PointsAwarded,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, decided)
	case errors.Is(err, game.ErrAlreadyCaptured):
		writeJSON(w, http.StatusConflict, decided)
	default:
		ctx.writeError(w, err)
	}
}
