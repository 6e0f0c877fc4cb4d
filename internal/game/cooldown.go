package game

import (
	"math"
	"time"

	"github.com/aaronzipp/scavenger-hunt/internal/models"
)

// RecordFailedAttempt appends a failed attempt for (taskID, teamID) starting
// at now. Repeated failures append repeated entries.
func RecordFailedAttempt(g models.Game, taskID, teamID string, now time.Time) models.Game {
	next := g.Clone()
	next.FailedAttempts = append(next.FailedAttempts, models.FailedAttempt{
		TaskID:        taskID,
		TeamID:        teamID,
		Timestamp:     now,
		CooldownUntil: now.Add(CooldownDuration),
	})
	return next
}

// IsTaskOnCooldown reports whether teamID is still barred from taskID at now
func IsTaskOnCooldown(g models.Game, taskID, teamID string, now time.Time) bool {
	for _, a := range g.FailedAttempts {
		if a.TaskID == taskID && a.TeamID == teamID && a.CooldownUntil.After(now) {
			return true
		}
	}
	return false
}

// RemainingCooldownSeconds returns the longest remaining cooldown for the
// pair, rounded up to whole seconds. Zero when not on cooldown.
func RemainingCooldownSeconds(g models.Game, taskID, teamID string, now time.Time) int {
	var longest time.Duration
	for _, a := range g.FailedAttempts {
		if a.TaskID != taskID || a.TeamID != teamID {
			continue
		}
		if left := a.CooldownUntil.Sub(now); left > longest {
			longest = left
		}
	}
	if longest <= 0 {
		return 0
	}
	return int(math.Ceil(longest.Seconds()))
}

// CleanupExpiredCooldowns drops every attempt whose cooldown ended at or before now
func CleanupExpiredCooldowns(g models.Game, now time.Time) models.Game {
	next := g.Clone()
	kept := next.FailedAttempts[:0]
	for _, a := range next.FailedAttempts {
		if a.CooldownUntil.After(now) {
			kept = append(kept, a)
		}
	}
	next.FailedAttempts = kept
	return next
}
