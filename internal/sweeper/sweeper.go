// Package sweeper periodically drops expired cooldowns and detonated bombs
// from stored games and reaps idle team rooms.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/game"
	"github.com/aaronzipp/scavenger-hunt/internal/models"
	"github.com/aaronzipp/scavenger-hunt/internal/rooms"
	"github.com/aaronzipp/scavenger-hunt/internal/store"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultRoomIdle = 30 * time.Minute
)

type Config struct {
	Store    store.Store
	Rooms    *rooms.Registry // optional
	Interval time.Duration
	RoomIdle time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
}

type Sweeper struct {
	store    store.Store
	rooms    *rooms.Registry
	interval time.Duration
	roomIdle time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Result counts what one pass removed
type Result struct {
	Games     int // games rewritten
	Cooldowns int
	Bombs     int
	Rooms     int
}

func New(cfg Config) *Sweeper {
	s := &Sweeper{
		store:    cfg.Store,
		rooms:    cfg.Rooms,
		interval: cfg.Interval,
		roomIdle: cfg.RoomIdle,
		now:      cfg.Clock,
		logger:   cfg.Logger,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.roomIdle <= 0 {
		s.roomIdle = DefaultRoomIdle
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Run sweeps every interval until ctx ends
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Warn("sweep failed", "error", err)
			}
			if res.Games > 0 || res.Rooms > 0 {
				s.logger.Debug("sweep", "games", res.Games, "cooldowns", res.Cooldowns, "bombs", res.Bombs, "rooms", res.Rooms)
			}
		}
	}
}

// Sweep runs one pass. Games with nothing to drop are not rewritten. A game
// that fails to update does not stop the pass; the errors are joined.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	var res Result
	snaps, err := s.store.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list games: %w", err)
	}

	now := s.now()
	var errs []error
	for _, snap := range snaps {
		cooldowns, bombs := expired(snap.Game, now)
		if cooldowns == 0 && bombs == 0 {
			continue
		}
		_, err := s.store.Update(ctx, snap.Game.ID, func(g models.Game) (models.Game, error) {
			g = game.CleanupExpiredCooldowns(g, now)
			return game.CleanupDetonatedBombs(g, now), nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep game %s: %w", snap.Game.ID, err))
			continue
		}
		res.Games++
		res.Cooldowns += cooldowns
		res.Bombs += bombs
	}

	if s.rooms != nil {
		res.Rooms = s.rooms.Reap(s.roomIdle)
	}
	return res, errors.Join(errs...)
}

func expired(g models.Game, now time.Time) (cooldowns, bombs int) {
	for _, a := range g.FailedAttempts {
		if !a.CooldownUntil.After(now) {
			cooldowns++
		}
	}
	bombs = len(g.Bombs) - len(game.GetActiveBombs(g, now))
	return cooldowns, bombs
}
