package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// PlaceBomb arms a bomb for teamID at loc. durationSeconds must be one of
// BombDurations.
func PlaceBomb(g models.Game, teamID string, loc models.Location, durationSeconds int, now time.Time) (models.Game, error) {
	if !slices.Contains(BombDurations, durationSeconds) {
		return g, fmt.Errorf("%w: %ds", ErrInvalidBombDuration, durationSeconds)
	}

	next := g.Clone()
	next.Bombs = append(next.Bombs, models.Bomb{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		Location:    loc,
		Duration:    durationSeconds,
		CreatedAt:   now,
		DetonatesAt: now.Add(time.Duration(durationSeconds) * time.Second),
	})
	return next, nil
}

// IsInDangerZone reports whether point lies within radiusMeters of bombLoc,
// plus DangerToleranceMeters (half a meter).
func IsInDangerZone(point, bombLoc models.Location, radiusMeters float64) bool {
	return HaversineMeters(point, bombLoc) <= radiusMeters+DangerToleranceMeters
}

// GetActiveBombs returns the bombs that have not detonated at now
func GetActiveBombs(g models.Game, now time.Time) []models.Bomb {
	active := make([]models.Bomb, 0, len(g.Bombs))
	for _, b := range g.Bombs {
		if b.DetonatesAt.After(now) {
			active = append(active, b)
		}
	}
	return active
}

// IsTeamInDangerZone reports whether loc is inside any active bomb's zone.
// A nil location means geolocation is unavailable and is never in danger.
func IsTeamInDangerZone(g models.Game, loc *models.Location, now time.Time) bool {
	if loc == nil {
		return false
	}
	for _, b := range GetActiveBombs(g, now) {
		if IsInDangerZone(*loc, b.Location, DangerRadiusMeters) {
			return true
		}
	}
	return false
}

// CleanupDetonatedBombs drops every bomb that detonated at or before now
func CleanupDetonatedBombs(g models.Game, now time.Time) models.Game {
	next := g.Clone()
	next.Bombs = GetActiveBombs(next, now)
	return next
}
