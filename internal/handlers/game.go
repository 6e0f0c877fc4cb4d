package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/gorilla/mux"
)

type gameSummary struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Mode      models.GameMode   `json:"mode"`
	Status    models.GameStatus `json:"status"`
	Teams     int               `json:"teams"`
	Points    int               `json:"points"`
	Captured  int               `json:"captured"`
	Version   int64             `json:"version"`
	UpdatedAt string            `json:"updatedAt"`
}

// HandleListGames lists stored games, most recently updated first
func (ctx *Context) HandleListGames(w http.ResponseWriter, r *http.Request) {
	snaps, err := ctx.Store.List(r.Context())
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	out := make([]gameSummary, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, gameSummary{
			ID:        s.Game.ID,
			Name:      s.Game.Name,
			Mode:      s.Game.Mode,
			Status:    s.Game.Status,
			Teams:     len(s.Game.Teams),
			Points:    len(s.Game.Points),
			Captured:  len(s.Game.CapturedTasks),
			Version:   s.Version,
			UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateGame stores a new game. Elimination games are initialized
// with their teams straight away.
func (ctx *Context) HandleCreateGame(w http.ResponseWriter, r *http.Request) {
	var g models.Game
	if err := decodeJSON(r, &g); err != nil {
		badRequest(w, err)
		return
	}
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		badRequest(w, errors.New("name is required"))
		return
	}
	seen := make(map[string]bool, len(g.Points))
	for _, p := range g.Points {
		if p.ID == "" || seen[p.ID] {
			badRequest(w, errors.New("every point needs a unique id"))
			return
		}
		seen[p.ID] = true
	}
	if g.Mode == "" {
		g.Mode = models.ModeClassic
	}
	if g.Status == "" {
		g.Status = models.StatusDraft
	}
	if g.Mode == models.ModeElimination {
		g = game.InitializeEliminationGame(g, g.Teams)
	}

	snap, err := ctx.Store.Create(r.Context(), g)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	ctx.logger().Info("game created", "game_id", snap.Game.ID, "mode", snap.Game.Mode, "points", len(snap.Game.Points))
	writeJSON(w, http.StatusCreated, snap)
}

// HandleGetGame returns the full game snapshot
func (ctx *Context) HandleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := ctx.Store.Get(r.Context(), mux.Vars(r)["game"])
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type startEliminationRequest struct {
	Teams []models.Team `json:"teams,omitempty"`
}

// HandleStartElimination (re)starts an elimination match. Without teams in
// the body the game's current teams are used. Live rooms are dropped so
// devices reconnect to the fresh match.
func (ctx *Context) HandleStartElimination(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["game"]
	var req startEliminationRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}

	snap, err := ctx.Store.Update(r.Context(), gameID, func(g models.Game) (models.Game, error) {
		teams := req.Teams
		if len(teams) == 0 {
			teams = g.Teams
		}
		if len(teams) == 0 {
			return g, errNoTeams
		}
		next := game.InitializeEliminationGame(g, teams)
		next.Status = models.StatusActive
		return next, nil
	})
	if err != nil {
		ctx.writeError(w, err)
		return
	}

	closed := ctx.Rooms.CloseGame(gameID)
	ctx.logger().Info("elimination started", "game_id", gameID, "teams", len(snap.Game.Teams), "rooms_closed", closed)
	writeJSON(w, http.StatusOK, snap)
}

// HandleVisiblePoints returns the points a team can still see. Correct
// answers are withheld.
func (ctx *Context) HandleVisiblePoints(w http.ResponseWriter, r *http.Request) {
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	points := game.GetVisiblePointsForTeam(snap.Game, team.ID)
	for i := range points {
		points[i].Task.CorrectAnswer = models.AnswerValue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"teamId":   team.ID,
		"color":    snap.Game.TeamColors[team.ID],
		"points":   points,
		"captured": game.GetTeamCapturedTasks(snap.Game, team.ID),
	})
}

type cooldownResponse struct {
	PointID          string `json:"pointId"`
	TeamID           string `json:"teamId"`
	OnCooldown       bool   `json:"onCooldown"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

// HandleCooldown reports whether a team may retry a point yet
func (ctx *Context) HandleCooldown(w http.ResponseWriter, r *http.Request) {
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	pointID := mux.Vars(r)["point"]
	if _, ok := snap.Game.Point(pointID); !ok {
		ctx.writeError(w, game.ErrUnknownPoint)
		return
	}
	now := ctx.now()
	writeJSON(w, http.StatusOK, cooldownResponse{
		PointID:          pointID,
		TeamID:           team.ID,
		OnCooldown:       game.IsTaskOnCooldown(snap.Game, pointID, team.ID, now),
		RemainingSeconds: game.RemainingCooldownSeconds(snap.Game, pointID, team.ID, now),
	})
}
