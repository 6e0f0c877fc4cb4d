package handlers

import (
	"net/http"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/sse"
)

type teamSnapshot struct {
	TeamID   string   `json:"teamId"`
	Color    string   `json:"color,omitempty"`
	Captured []string `json:"captured"`
	Visible  int      `json:"visible"`
}

// HandleSSE streams a team channel to a read-only observer such as a
// scoreboard. The stream opens with the team snapshot and the leaderboard,
// and the leaderboard is sent again after every decision.
func (ctx *Context) HandleSSE(w http.ResponseWriter, r *http.Request) {
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	room, err := ctx.Rooms.Get(r.Context(), snap.Game.ID, team.ID)
	if err != nil {
		ctx.writeError(w, err)
		return
	}

	stream, err := sse.Open(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	logger := ctx.logger().With("game_id", snap.Game.ID, "team_id", team.ID)

	sub := room.Hub.Subscribe("")
	defer sub.Unsubscribe()

	initial := []sse.Event{
		{Name: sse.EventSnapshot, Data: teamSnapshot{
			TeamID:   team.ID,
			Color:    snap.Game.TeamColors[team.ID],
			Captured: game.GetTeamCapturedTasks(snap.Game, team.ID),
			Visible:  len(game.GetVisiblePointsForTeam(snap.Game, team.ID)),
		}},
		{Name: sse.EventLeaderboard, Data: leaderboardFor(snap.Game, snap.Version)},
	}
	for _, ev := range initial {
		if err := stream.Send(ev); err != nil {
			return
		}
	}

	follow := func(msg realtime.Message) []sse.Event {
		if msg.Kind != realtime.KindTaskDecided {
			return nil
		}
		latest, err := ctx.Store.Get(r.Context(), snap.Game.ID)
		if err != nil {
			logger.Warn("leaderboard refresh failed", "error", err)
			return []sse.Event{{Name: sse.EventErrorMessage, Data: errorResponse{Code: "internal", Error: err.Error()}}}
		}
		return []sse.Event{{Name: sse.EventLeaderboard, Data: leaderboardFor(latest.Game, latest.Version)}}
	}

	logger.Debug("observer connected")
	if err := sse.Forward(r.Context(), stream, sub.C, follow, logger); err != nil {
		logger.Debug("observer stream ended", "error", err)
	}
}
