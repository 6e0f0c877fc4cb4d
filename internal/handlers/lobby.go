package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"
)

type joinRequest struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name"`
}

// HandleJoinTeam adds a device to a team roster. A retired member rejoining
// becomes active again. The first member of a team without a captain
// becomes its captain.
func (ctx *Context) HandleJoinTeam(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.Name = strings.TrimSpace(req.Name)
	if req.DeviceID == "" || req.Name == "" {
		badRequest(w, errors.New("deviceId and name are required"))
		return
	}
	vars := mux.Vars(r)
	teamID := vars["team"]

	snap, err := ctx.Store.Update(r.Context(), vars["game"], func(g models.Game) (models.Game, error) {
		next := g.Clone()
		idx := -1
		for i, t := range next.Teams {
			if t.ID == teamID {
				idx = i
				continue
			}
			if m, ok := t.Member(req.DeviceID); ok && !m.Retired {
				return g, fmt.Errorf("%w: %q", errOtherTeam, t.ID)
			}
		}
		if idx < 0 {
			return g, fmt.Errorf("%w: %q", game.ErrUnknownTeam, teamID)
		}
		team := &next.Teams[idx]
		joined := false
		for i := range team.Members {
			if team.Members[i].DeviceID == req.DeviceID {
				team.Members[i].Name = req.Name
				team.Members[i].Retired = false
				joined = true
			}
		}
		if !joined {
			team.Members = append(team.Members, models.Member{DeviceID: req.DeviceID, Name: req.Name})
		}
		if team.CaptainDeviceID == "" {
			team.CaptainDeviceID = req.DeviceID
		}
		return next, nil
	})
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	team, _ := snap.Game.Team(teamID)
	ctx.logger().Info("device joined team", "game_id", snap.Game.ID, "team_id", teamID, "device_id", req.DeviceID)
	writeJSON(w, http.StatusOK, team)
}

// HandleLeaveTeam retires a member. Its votes no longer count towards
// progress. A leaving captain hands over to the next active member.
func (ctx *Context) HandleLeaveTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	teamID, device := vars["team"], vars["device"]

	snap, err := ctx.Store.Update(r.Context(), vars["game"], func(g models.Game) (models.Game, error) {
		next := g.Clone()
		for i := range next.Teams {
			team := &next.Teams[i]
			if team.ID != teamID {
				continue
			}
			found := false
			for j := range team.Members {
				if team.Members[j].DeviceID == device {
					team.Members[j].Retired = true
					found = true
				}
			}
			if !found {
				return g, fmt.Errorf("%w: device %q", errUnknownMember, device)
			}
			if team.CaptainDeviceID == device {
				team.CaptainDeviceID = ""
				for _, m := range team.Members {
					if !m.Retired {
						team.CaptainDeviceID = m.DeviceID
						break
					}
				}
			}
			return next, nil
		}
		return g, fmt.Errorf("%w: %q", game.ErrUnknownTeam, teamID)
	})
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	team, _ := snap.Game.Team(teamID)
	ctx.logger().Info("device left team", "game_id", snap.Game.ID, "team_id", teamID, "device_id", device)
	writeJSON(w, http.StatusOK, team)
}

// joinURL is the websocket address a device uses to connect to a team
func (ctx *Context) joinURL(r *http.Request, gameID, teamID string) string {
	base := ctx.PublicURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return base
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws/games/" + url.PathEscape(gameID) + "/teams/" + url.PathEscape(teamID)
	return u.String()
}

// HandleTeamQR renders the team's join address as a PNG QR code
func (ctx *Context) HandleTeamQR(w http.ResponseWriter, r *http.Request) {
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	png, err := qrcode.Encode(ctx.joinURL(r, snap.Game.ID, team.ID), qrcode.Medium, 320)
	if err != nil {
		ctx.writeError(w, fmt.Errorf("encode qr code: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}
