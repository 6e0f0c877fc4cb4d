package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aaronzipp/scavenger-hunt/internal/coordinator"
	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
	"github.com/gorilla/mux"
)

var (
	errNoDevice = errors.New("device id is required")
	errNoTeams  = errors.New("an elimination game needs at least one team")

	errOtherTeam     = errors.New("device already plays for another team")
	errUnknownMember = errors.New("not a team member")
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, game.ErrUnknownPoint),
		errors.Is(err, game.ErrUnknownTeam),
		errors.Is(err, errUnknownMember):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, game.ErrAlreadyCaptured),
		errors.Is(err, game.ErrStaleTask),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrOnCooldown),
		errors.Is(err, errOtherTeam):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrNotCaptain):
		return http.StatusForbidden
	case errors.Is(err, game.ErrVoteRejected),
		errors.Is(err, coordinator.ErrInvalidVerdict),
		errors.Is(err, game.ErrInvalidBombDuration),
		errors.Is(err, game.ErrGeolocationUnavailable),
		errors.Is(err, errNoDevice),
		errors.Is(err, errNoTeams):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (ctx *Context) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := coordinator.ErrorCode(err)
	switch {
	case status == http.StatusInternalServerError:
		ctx.logger().Error("request failed", "error", err)
	case code == "internal":
		code = "bad_request"
	}
	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Error: err.Error()})
}

// deviceID reads the acting device from the X-Device-ID header or the device query parameter
func deviceID(r *http.Request) string {
	if id := r.Header.Get("X-Device-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("device")
}

// loadTeam fetches the game and the team named in the route
func (ctx *Context) loadTeam(r *http.Request) (store.Snapshot, models.Team, error) {
	vars := mux.Vars(r)
	snap, err := ctx.Store.Get(r.Context(), vars["game"])
	if err != nil {
		return store.Snapshot{}, models.Team{}, err
	}
	team, ok := snap.Game.Team(vars["team"])
	if !ok {
		return store.Snapshot{}, models.Team{}, fmt.Errorf("%w: %q", game.ErrUnknownTeam, vars["team"])
	}
	return snap, team, nil
}
