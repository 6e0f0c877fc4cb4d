package handlers

import (
	"fmt"
	"net/http"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/gorilla/mux"
)

type placeBombRequest struct {
	TeamID          string          `json:"teamId"`
	Location        models.Location `json:"location"`
	DurationSeconds int             `json:"durationSeconds"`
}

// HandlePlaceBomb arms a bomb for a team
func (ctx *Context) HandlePlaceBomb(w http.ResponseWriter, r *http.Request) {
	var req placeBombRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	now := ctx.now()
	snap, err := ctx.Store.Update(r.Context(), mux.Vars(r)["game"], func(g models.Game) (models.Game, error) {
		if _, ok := g.Team(req.TeamID); !ok {
			return g, fmt.Errorf("%w: %q", game.ErrUnknownTeam, req.TeamID)
		}
		return game.PlaceBomb(g, req.TeamID, req.Location, req.DurationSeconds, now)
	})
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	bomb := snap.Game.Bombs[len(snap.Game.Bombs)-1]
	ctx.logger().Info("bomb placed", "game_id", snap.Game.ID, "team_id", req.TeamID, "bomb_id", bomb.ID, "detonates_at", bomb.DetonatesAt)
	writeJSON(w, http.StatusCreated, bomb)
}

// HandleListBombs lists bombs that have not detonated yet
func (ctx *Context) HandleListBombs(w http.ResponseWriter, r *http.Request) {
	snap, err := ctx.Store.Get(r.Context(), mux.Vars(r)["game"])
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game.GetActiveBombs(snap.Game, ctx.now()))
}

type dangerRequest struct {
	Location *models.Location `json:"location"`
}

type dangerResponse struct {
	InDanger            bool `json:"inDanger"`
	LocationUnavailable bool `json:"locationUnavailable,omitempty"`
	ActiveBombs         int  `json:"activeBombs"`
}

// HandleDangerCheck reports whether a position lies in an active bomb's
// blast radius. A device without a location fix is never in danger.
func (ctx *Context) HandleDangerCheck(w http.ResponseWriter, r *http.Request) {
	var req dangerRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	snap, err := ctx.Store.Get(r.Context(), mux.Vars(r)["game"])
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	now := ctx.now()
	writeJSON(w, http.StatusOK, dangerResponse{
		InDanger:            game.IsTeamInDangerZone(snap.Game, req.Location, now),
		LocationUnavailable: req.Location == nil,
		ActiveBombs:         len(game.GetActiveBombs(snap.Game, now)),
	})
}
