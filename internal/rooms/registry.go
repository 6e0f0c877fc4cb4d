// Package rooms keeps the live team channels: one hub and one task
// coordinator per (game, team), created on first use.
package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/coordinator"
	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
)

// Key identifies a team channel
type Key struct {
	GameID string
	TeamID string
}

func (k Key) String() string { return k.GameID + "/" + k.TeamID }

// Room is one team's channel in one game
type Room struct {
	Key         Key
	Hub         *realtime.Hub
	Coordinator *coordinator.Coordinator

	mu         sync.Mutex
	lastActive time.Time
}

func (r *Room) touch(now time.Time) {
	r.mu.Lock()
	r.lastActive = now
	r.mu.Unlock()
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActive
}

type Config struct {
	Store  store.Store
	Hub    realtime.Options
	Clock  func() time.Time
	Logger *slog.Logger
}

// Registry holds the rooms of all running games
type Registry struct {
	store  store.Store
	hub    realtime.Options
	now    func() time.Time
	logger *slog.Logger

	mu    sync.Mutex
	rooms map[Key]*Room
}

func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		store:  cfg.Store,
		hub:    cfg.Hub,
		now:    cfg.Clock,
		logger: cfg.Logger,
		rooms:  make(map[Key]*Room),
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.hub.Logger == nil {
		r.hub.Logger = r.logger
	}
	return r
}

// Get returns the room for the team, creating it when the game has that team
func (r *Registry) Get(ctx context.Context, gameID, teamID string) (*Room, error) {
	key := Key{GameID: gameID, TeamID: teamID}
	if room, ok := r.Lookup(gameID, teamID); ok {
		room.touch(r.now())
		return room, nil
	}

	snap, err := r.store.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if _, ok := snap.Game.Team(teamID); !ok {
		return nil, fmt.Errorf("%w: %q", game.ErrUnknownTeam, teamID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[key]; ok {
		return room, nil
	}
	hub := realtime.NewHub(r.hub)
	coord, err := coordinator.New(coordinator.Config{
		GameID:    gameID,
		TeamID:    teamID,
		Store:     r.store,
		Publisher: hub,
		Clock:     r.now,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}
	room := &Room{Key: key, Hub: hub, Coordinator: coord, lastActive: r.now()}
	r.rooms[key] = room
	r.logger.Info("room created", "game_id", gameID, "team_id", teamID)
	return room, nil
}

// Lookup returns an existing room without creating one
func (r *Registry) Lookup(gameID, teamID string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[Key{GameID: gameID, TeamID: teamID}]
	return room, ok
}

// Rooms returns all rooms ordered by key
func (r *Registry) Rooms() []*Room {
	r.mu.Lock()
	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// CloseGame drops every room of gameID, disconnecting its subscribers
func (r *Registry) CloseGame(gameID string) int {
	r.mu.Lock()
	var closing []*Room
	for key, room := range r.rooms {
		if key.GameID == gameID {
			closing = append(closing, room)
			delete(r.rooms, key)
		}
	}
	r.mu.Unlock()

	for _, room := range closing {
		room.Hub.Close()
	}
	return len(closing)
}

// Reap drops rooms with no subscribers and no open task that have been
// idle longer than idle.
func (r *Registry) Reap(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	var closing []*Room
	for key, room := range r.rooms {
		if room.Hub.Count() == 0 && room.Coordinator.State() == coordinator.StateIdle && room.LastActive().Before(cutoff) {
			closing = append(closing, room)
			delete(r.rooms, key)
		}
	}
	r.mu.Unlock()

	for _, room := range closing {
		room.Hub.Close()
		r.logger.Debug("room reaped", "room", room.Key.String())
	}
	return len(closing)
}

// Close disconnects every room
func (r *Registry) Close() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[Key]*Room)
	r.mu.Unlock()
	for _, room := range rooms {
		room.Hub.Close()
	}
}
