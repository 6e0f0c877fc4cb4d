package handlers

import (
	"net/http"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/render"
	"github.com/gorilla/mux"
)

type leaderboardResponse struct {
	GameID    string          `json:"gameId"`
	Version   int64           `json:"version"`
	Standings []game.Standing `json:"standings"`
	Remaining int             `json:"remaining"` // points nobody has captured yet
}

func leaderboardFor(g models.Game, version int64) leaderboardResponse {
	return leaderboardResponse{
		GameID:    g.ID,
		Version:   version,
		Standings: game.GetEliminationLeaderboard(g, g.Teams),
		Remaining: len(g.Points) - len(g.CapturedTasks),
	}
}

// HandleLeaderboard ranks the game's teams by captures
func (ctx *Context) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	snap, err := ctx.Store.Get(r.Context(), mux.Vars(r)["game"])
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardFor(snap.Game, snap.Version))
}

// HandleScoreboard serves the standings and rosters as a page for a shared screen
func (ctx *Context) HandleScoreboard(w http.ResponseWriter, r *http.Request) {
	snap, err := ctx.Store.Get(r.Context(), mux.Vars(r)["game"])
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(render.Scoreboard(snap.Game, game.GetEliminationLeaderboard(snap.Game, snap.Game.Teams))))
}
