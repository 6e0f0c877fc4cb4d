package handlers

import (
	"fmt"
	"net/http"

	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/ws"
)

// HandleWebSocket connects a team member's device to the team channel.
// Query parameters: device (required) and codec (json or msgpack).
func (ctx *Context) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	device := deviceID(r)
	if device == "" {
		ctx.writeError(w, errNoDevice)
		return
	}
	codec, err := realtime.CodecByName(r.URL.Query().Get("codec"))
	if err != nil {
		badRequest(w, err)
		return
	}
	snap, team, err := ctx.loadTeam(r)
	if err != nil {
		ctx.writeError(w, err)
		return
	}
	if m, ok := team.Member(device); !ok || m.Retired {
		ctx.writeError(w, fmt.Errorf("%w: device %q", errUnknownMember, device))
		return
	}
	room, err := ctx.Rooms.Get(r.Context(), snap.Game.ID, team.ID)
	if err != nil {
		ctx.writeError(w, err)
		return
	}

	conn, err := ws.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		ctx.logger().Warn("websocket upgrade failed", "error", err)
		return
	}

	logger := ctx.logger().With("game_id", snap.Game.ID, "team_id", team.ID)
	sub := room.Hub.Subscribe(device)
	room.Coordinator.Resync(r.Context(), device)
	logger.Info("device connected", "device_id", device, "codec", codec.Name())

	ws.NewClient(conn, sub, room.Coordinator, codec, logger).Run(r.Context())
	logger.Info("device disconnected", "device_id", device)
}
