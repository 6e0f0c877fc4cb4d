package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/rooms"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
	"github.com/gorilla/mux"
)

// Context holds shared application dependencies
type Context struct {
	Store     store.Store
	Rooms     *rooms.Registry
	Logger    *slog.Logger
	PublicURL string           // base URL put into share codes; derived from the request when empty
	Clock     func() time.Time // defaults to time.Now
}

func (ctx *Context) logger() *slog.Logger {
	if ctx.Logger == nil {
		return slog.Default()
	}
	return ctx.Logger
}

func (ctx *Context) now() time.Time {
	if ctx.Clock == nil {
		return time.Now()
	}
	return ctx.Clock()
}

// Router wires every endpoint
func (ctx *Context) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", ctx.HandleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", ctx.HandleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/games", ctx.HandleListGames).Methods(http.MethodGet)
	api.HandleFunc("/games", ctx.HandleCreateGame).Methods(http.MethodPost)
	api.HandleFunc("/games/{game}", ctx.HandleGetGame).Methods(http.MethodGet)
	api.HandleFunc("/games/{game}/elimination", ctx.HandleStartElimination).Methods(http.MethodPost)
	api.HandleFunc("/games/{game}/leaderboard", ctx.HandleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/games/{game}/bombs", ctx.HandleListBombs).Methods(http.MethodGet)
	api.HandleFunc("/games/{game}/bombs", ctx.HandlePlaceBomb).Methods(http.MethodPost)
	api.HandleFunc("/games/{game}/danger", ctx.HandleDangerCheck).Methods(http.MethodPost)

	team := api.PathPrefix("/games/{game}/teams/{team}").Subrouter()
	team.HandleFunc("/points", ctx.HandleVisiblePoints).Methods(http.MethodGet)
	team.HandleFunc("/cooldowns/{point}", ctx.HandleCooldown).Methods(http.MethodGet)
	team.HandleFunc("/members", ctx.HandleJoinTeam).Methods(http.MethodPost)
	team.HandleFunc("/members/{device}", ctx.HandleLeaveTeam).Methods(http.MethodDelete)
	team.HandleFunc("/qr", ctx.HandleTeamQR).Methods(http.MethodGet)
	team.HandleFunc("/task", ctx.HandleCurrentTask).Methods(http.MethodGet)
	team.HandleFunc("/task", ctx.HandleOpenTask).Methods(http.MethodPost)
	team.HandleFunc("/task/open", ctx.HandleOpenTaskForMember).Methods(http.MethodGet)
	team.HandleFunc("/task/close", ctx.HandleCloseVoting).Methods(http.MethodPost)
	team.HandleFunc("/task/decide", ctx.HandleDecide).Methods(http.MethodPost)

	r.HandleFunc("/ws/games/{game}/teams/{team}", ctx.HandleWebSocket)
	r.HandleFunc("/sse/games/{game}/teams/{team}", ctx.HandleSSE).Methods(http.MethodGet)
	r.HandleFunc("/games/{game}/scoreboard", ctx.HandleScoreboard).Methods(http.MethodGet)
	return r
}

// HandleIndex describes the service
func (ctx *Context) HandleIndex(w http.ResponseWriter, r *http.Request) {
	snaps, err := ctx.Store.List(r.Context())
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "scavenger-hunt",
		"games":   len(snaps),
		"rooms":   len(ctx.Rooms.Rooms()),
	})
}

func (ctx *Context) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
